package formats

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// createTestDocument builds a document with one colored triangle under a
// translated parent node.
func createTestDocument() *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	col := modeler.WriteColor(doc, [][4]uint8{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}})

	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{
			{
				Indices:    gltf.Index(idx),
				Attributes: map[string]int{gltf.POSITION: pos, gltf.COLOR_0: col},
			},
			{
				Mode:       gltf.PrimitiveLines,
				Attributes: map[string]int{gltf.POSITION: pos},
			},
		},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Translation: [3]float64{10, 0, 0}, Children: []int{1}},
		{Name: "leaf", Mesh: gltf.Index(0), Scale: [3]float64{2, 2, 2}},
	}
	doc.Scenes[0].Nodes = []int{0}
	return doc
}

func TestGeometryFromDocument(t *testing.T) {
	g, err := GeometryFromDocument(createTestDocument())
	if err != nil {
		t.Fatalf("GeometryFromDocument failed: %v", err)
	}
	if len(g.Positions) != 3 || g.TriangleCount() != 1 {
		t.Fatalf("got %d vertices, %d triangles", len(g.Positions), g.TriangleCount())
	}
	if g.Positions[1] != (mgl32.Vec3{12, 0, 0}) {
		t.Errorf("vertex 1 = %v, want (12,0,0)", g.Positions[1])
	}
	if !g.HasColors() || g.Colors[2] != (mgl32.Vec4{0, 0, 1, 1}) {
		t.Errorf("colors = %v", g.Colors)
	}
}

func TestGeometryFromDocument_NoTriangles(t *testing.T) {
	doc := createTestDocument()
	doc.Meshes[0].Primitives = doc.Meshes[0].Primitives[1:]
	if _, err := GeometryFromDocument(doc); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestGeometryFromDocument_BadNode(t *testing.T) {
	doc := createTestDocument()
	doc.Nodes[0].Children = []int{5}
	if _, err := GeometryFromDocument(doc); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestParseGLB(t *testing.T) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(createTestDocument()); err != nil {
		t.Fatal(err)
	}
	g, err := ParseGLB(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseGLB failed: %v", err)
	}
	if len(g.Positions) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(g.Positions))
	}

	if _, err := ParseGLB([]byte("not a glb")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseGLTFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.glb")
	if err := gltf.SaveBinary(createTestDocument(), path); err != nil {
		t.Fatal(err)
	}
	g, err := ParseGLTFFile(path)
	if err != nil {
		t.Fatalf("ParseGLTFFile failed: %v", err)
	}
	if g.TriangleCount() != 1 {
		t.Errorf("expected 1 triangle, got %d", g.TriangleCount())
	}
}
