package mesh

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func checkPart(t *testing.T, p Part) {
	t.Helper()
	if len(p.Colors) != len(p.Positions) {
		t.Errorf("%s part: %d colors for %d positions", p.Primitive, len(p.Colors), len(p.Positions))
	}
	for _, i := range p.Indices {
		if int(i) >= len(p.Positions) {
			t.Fatalf("%s part: index %d out of range", p.Primitive, i)
		}
	}
}

func TestGrid(t *testing.T) {
	g := Grid()
	if len(g.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(g.Parts))
	}
	p := g.Parts[0]
	checkPart(t, p)

	// 21 lines every 10 units plus 201 lines every unit, both directions,
	// two endpoints each.
	if want := (21 + 201) * 2 * 2; len(p.Positions) != want {
		t.Errorf("positions = %d, want %d", len(p.Positions), want)
	}

	pivots := map[mgl32.Vec4]int{}
	for _, c := range p.Colors {
		if c == ColorAxisX || c == ColorAxisY {
			pivots[c]++
		}
	}
	if pivots[ColorAxisX] != 2 || pivots[ColorAxisY] != 2 {
		t.Errorf("pivot endpoints = %v, want two per axis", pivots)
	}

	for _, v := range p.Positions {
		if v[2] != 0 {
			t.Fatalf("grid vertex off the ground plane: %v", v)
		}
	}
}

func TestCube(t *testing.T) {
	c := Cube(2)
	p := c.Parts[0]
	checkPart(t, p)
	if len(p.Positions) != 8 || len(p.Indices) != 36 {
		t.Errorf("cube has %d vertices, %d indices", len(p.Positions), len(p.Indices))
	}
	if p.Colors[6] != (mgl32.Vec4{1, 1, 1, 1}) || p.Colors[0] != (mgl32.Vec4{0, 0, 0, 1}) {
		t.Errorf("octant colors wrong: %v %v", p.Colors[6], p.Colors[0])
	}
	b, ok := c.Bounds()
	if !ok || b.Min != (mgl32.Vec3{-1, -1, -1}) || b.Max != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("bounds = %+v", b)
	}
}

func TestFrustum(t *testing.T) {
	f := Frustum(1, 0.5, 0.3, 2)
	if len(f.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(f.Parts))
	}
	for _, p := range f.Parts {
		checkPart(t, p)
	}
	if got := f.Parts[0].Positions[1]; got != (mgl32.Vec3{1, 0.6, 2}) {
		t.Errorf("corner = %v, want scaled (1,0.6,2)", got)
	}
	if len(f.Parts[0].Indices) != 16 {
		t.Errorf("line indices = %d, want 16", len(f.Parts[0].Indices))
	}
	// The image plane is not filled: the only faces are the up marker.
	faces := 0
	for _, p := range f.Parts {
		if p.Primitive == Triangles {
			faces += len(p.Indices) / 3
		}
	}
	if faces != 1 {
		t.Errorf("frustum has %d triangles, want only the up marker", faces)
	}

	red := mgl32.Vec4{1, 0, 0, 1}
	f.SetColor(red)
	if f.Parts[0].Colors[0] != red || f.Parts[1].Colors[2] != red {
		t.Error("SetColor did not recolor the body")
	}
	if f.Parts[2].Colors[0] != ColorAxisX {
		t.Error("SetColor recolored the axis marker")
	}
}

func TestRandomPointCloudDeterministic(t *testing.T) {
	a := RandomPointCloud(500, 7)
	b := RandomPointCloud(500, 7)
	c := RandomPointCloud(500, 8)

	checkPart(t, a.Parts[0])
	if a.VertexCount() != 500 {
		t.Errorf("VertexCount = %d", a.VertexCount())
	}
	if a.Parts[0].Positions[123] != b.Parts[0].Positions[123] {
		t.Error("same seed produced different clouds")
	}
	if a.Parts[0].Positions[123] == c.Parts[0].Positions[123] {
		t.Error("different seeds produced the same point")
	}
	bounds, _ := a.Bounds()
	for i := 0; i < 3; i++ {
		if bounds.Min[i] < -1 || bounds.Max[i] > 1 {
			t.Fatalf("point outside the unit cube: %+v", bounds)
		}
	}
}

func TestColoredPointCloud(t *testing.T) {
	pts := []mgl32.Vec3{{0, 0, 0}, {1, 1, 1}}
	if _, err := ColoredPointCloud(pts, []mgl32.Vec4{{1, 1, 1, 1}}); !errors.Is(err, ErrColorCount) {
		t.Errorf("expected ErrColorCount, got %v", err)
	}
	m, err := ColoredPointCloud(pts, []mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	pts[0] = mgl32.Vec3{9, 9, 9}
	if m.Parts[0].Positions[0] != (mgl32.Vec3{}) {
		t.Error("point cloud aliases the caller's slice")
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name  string
		pts   []mgl32.Vec3
		empty bool
	}{
		{"none", nil, true},
		{"single", []mgl32.Vec3{{1, 2, 3}}, true},
		{"segment", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Line(tt.pts, mgl32.Vec4{1, 1, 1, 1})
			if m.Empty() != tt.empty {
				t.Errorf("Empty() = %v, want %v", m.Empty(), tt.empty)
			}
			if !tt.empty && m.Parts[0].Primitive != LineStrip {
				t.Errorf("primitive = %s", m.Parts[0].Primitive)
			}
		})
	}
}

func TestTriangleMeshValidates(t *testing.T) {
	pos := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	if _, err := TriangleMesh(pos, nil, []uint32{0, 1, 3}, mgl32.Vec4{}); err == nil {
		t.Error("expected out-of-range index error")
	}
	m, err := TriangleMesh(pos, nil, nil, mgl32.Vec4{0, 0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Parts[0].Indices) != 3 || m.Parts[0].Colors[1] != (mgl32.Vec4{0, 0, 1, 1}) {
		t.Errorf("unexpected mesh %+v", m.Parts[0])
	}
}

func TestTransformAndBounds(t *testing.T) {
	m := CoordinateFrame(1)
	m.Transform(mgl32.Translate3D(10, 0, 0))

	b, ok := m.Bounds()
	if !ok {
		t.Fatal("no bounds")
	}
	if b.Min != (mgl32.Vec3{10, 0, 0}) || b.Max != (mgl32.Vec3{11, 1, 1}) {
		t.Errorf("bounds = %+v", b)
	}
	if c := b.Center(); c != (mgl32.Vec3{10.5, 0.5, 0.5}) {
		t.Errorf("center = %v", c)
	}

	if _, ok := (&Mesh{}).Bounds(); ok {
		t.Error("empty mesh reported bounds")
	}
}

func TestBoundsUnion(t *testing.T) {
	a := Bounds{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	b := Bounds{Min: mgl32.Vec3{-1, 0.5, 0}, Max: mgl32.Vec3{0.5, 2, 1}}
	u := a.Union(b)
	if u.Min != (mgl32.Vec3{-1, 0, 0}) || u.Max != (mgl32.Vec3{1, 2, 1}) {
		t.Errorf("union = %+v", u)
	}
}

func TestBoxWireframe(t *testing.T) {
	b := Bounds{Min: mgl32.Vec3{-1, -2, -3}, Max: mgl32.Vec3{1, 2, 3}}
	m := BoxWireframe(b, mgl32.Vec4{1, 1, 0, 1})
	checkPart(t, m.Parts[0])
	if n := len(m.Parts[0].Positions); n != 24 {
		t.Errorf("vertices = %d, want 24", n)
	}
	got, _ := m.Bounds()
	if got != b {
		t.Errorf("wireframe bounds %+v, want %+v", got, b)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Cube(1)
	b := a.Clone()
	b.Parts[0].Positions[0] = mgl32.Vec3{5, 5, 5}
	b.SetColor(mgl32.Vec4{0, 0, 0, 0})
	if a.Parts[0].Positions[0] == (mgl32.Vec3{5, 5, 5}) || a.Parts[0].Colors[6] != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Error("Clone shares storage with the original")
	}
}
