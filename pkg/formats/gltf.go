package formats

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ParseGLTFFile loads a .gltf or .glb file and flattens its default scene
// into one triangle Geometry.
func ParseGLTFFile(path string) (*Geometry, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF file: %w", err)
	}
	return GeometryFromDocument(doc)
}

// ParseGLB parses a self-contained binary glTF. External buffer URIs are
// not resolved.
func ParseGLB(data []byte) (*Geometry, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return GeometryFromDocument(doc)
}

// GeometryFromDocument walks the default scene (or every root node when no
// scene is set), applies node transforms and merges all triangle
// primitives. Primitives of other modes are skipped. Colors are kept only
// when every merged primitive has COLOR_0.
func GeometryFromDocument(doc *gltf.Document) (*Geometry, error) {
	g := &Geometry{}
	colored := true

	var visit func(idx int, parent mgl64.Mat4, depth int) error
	visit = func(idx int, parent mgl64.Mat4, depth int) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("%w: node %d out of range", ErrInvalidData, idx)
		}
		if depth > len(doc.Nodes) {
			return fmt.Errorf("%w: node hierarchy has a cycle", ErrInvalidData)
		}
		node := doc.Nodes[idx]
		world := parent.Mul4(nodeMatrix(node))
		if node.Mesh != nil {
			if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
				return fmt.Errorf("%w: mesh %d out of range", ErrInvalidData, *node.Mesh)
			}
			for _, prim := range doc.Meshes[*node.Mesh].Primitives {
				if prim.Mode != gltf.PrimitiveTriangles {
					continue
				}
				hasColor, err := appendPrimitive(doc, prim, world, g)
				if err != nil {
					return fmt.Errorf("node %q: %w", node.Name, err)
				}
				colored = colored && hasColor
			}
		}
		for _, c := range node.Children {
			if err := visit(c, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := visit(root, mgl64.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	if len(g.Positions) == 0 {
		return nil, fmt.Errorf("%w: glTF has no triangle geometry", ErrInvalidData)
	}
	if !colored {
		g.Colors = nil
	}
	return g, nil
}

func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}
	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// nodeMatrix returns the local transform of n: its matrix when set,
// otherwise T*R*S.
func nodeMatrix(n *gltf.Node) mgl64.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return mgl64.Mat4(m)
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
	return mgl64.Translate3D(t[0], t[1], t[2]).
		Mul4(q.Mat4()).
		Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

func appendPrimitive(doc *gltf.Document, prim *gltf.Primitive, world mgl64.Mat4, g *Geometry) (bool, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return false, fmt.Errorf("%w: primitive without POSITION", ErrInvalidData)
	}
	if posIdx < 0 || posIdx >= len(doc.Accessors) {
		return false, fmt.Errorf("%w: accessor %d out of range", ErrInvalidData, posIdx)
	}
	pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return false, fmt.Errorf("reading positions: %w", err)
	}

	var idx []uint32
	if prim.Indices != nil {
		if *prim.Indices < 0 || *prim.Indices >= len(doc.Accessors) {
			return false, fmt.Errorf("%w: accessor %d out of range", ErrInvalidData, *prim.Indices)
		}
		if idx, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return false, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		idx = make([]uint32, len(pos))
		for i := range idx {
			idx[i] = uint32(i)
		}
	}
	for _, i := range idx {
		if int(i) >= len(pos) {
			return false, fmt.Errorf("%w: index %d out of range", ErrInvalidData, i)
		}
	}

	var colors [][4]uint8
	if ci, ok := prim.Attributes[gltf.COLOR_0]; ok && ci >= 0 && ci < len(doc.Accessors) {
		if colors, err = modeler.ReadColor(doc, doc.Accessors[ci], nil); err != nil {
			return false, fmt.Errorf("reading colors: %w", err)
		}
		if len(colors) != len(pos) {
			colors = nil
		}
	}

	base := uint32(len(g.Positions))
	for i, p := range pos {
		w := mgl64.TransformCoordinate(mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}, world)
		g.Positions = append(g.Positions, mgl32.Vec3{float32(w[0]), float32(w[1]), float32(w[2])})
		if colors != nil {
			c := colors[i]
			g.Colors = append(g.Colors, mgl32.Vec4{
				float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255,
			})
		}
	}
	for t := 0; t+2 < len(idx); t += 3 {
		g.Indices = append(g.Indices, base+idx[t], base+idx[t+1], base+idx[t+2])
	}
	return colors != nil, nil
}
