// Package mesh builds CPU-side geometry for the viewer: helper meshes such
// as the ground grid and camera frustums, and containers for loaded point
// clouds, trajectories and triangle meshes.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Primitive selects how a part's indices are assembled.
type Primitive int

const (
	Points Primitive = iota
	Lines
	LineStrip
	Triangles
)

func (p Primitive) String() string {
	switch p {
	case Points:
		return "points"
	case Lines:
		return "lines"
	case LineStrip:
		return "line_strip"
	case Triangles:
		return "triangles"
	default:
		return "unknown"
	}
}

// Axis colors shared by the grid pivots, frustum markers and coordinate
// frames.
var (
	ColorAxisX = mgl32.Vec4{0.819, 0.219, 0.305, 0.5}
	ColorAxisY = mgl32.Vec4{0.454, 0.674, 0.098, 0.5}
	ColorAxisZ = mgl32.Vec4{0.207, 0.403, 0.619, 0.5}
)

// Part is one draw call worth of geometry. Colors is per vertex and always
// as long as Positions.
type Part struct {
	Primitive Primitive
	Positions []mgl32.Vec3
	Colors    []mgl32.Vec4
	Indices   []uint32

	// KeepColor exempts the part from SetColor (axis markers).
	KeepColor bool
}

// Mesh holds the complete geometry of one scene item, ready for GPU upload.
type Mesh struct {
	Parts []Part
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Empty reports whether the mesh has no vertices at all.
func (m *Mesh) Empty() bool {
	for _, p := range m.Parts {
		if len(p.Positions) > 0 {
			return false
		}
	}
	return true
}

// VertexCount returns the total number of vertices over all parts.
func (m *Mesh) VertexCount() int {
	n := 0
	for _, p := range m.Parts {
		n += len(p.Positions)
	}
	return n
}

// Bounds returns the bounding box of all parts. ok is false for an empty
// mesh.
func (m *Mesh) Bounds() (b Bounds, ok bool) {
	const big = 1e30
	b = Bounds{Min: mgl32.Vec3{big, big, big}, Max: mgl32.Vec3{-big, -big, -big}}
	for _, p := range m.Parts {
		for _, v := range p.Positions {
			for i := 0; i < 3; i++ {
				if v[i] < b.Min[i] {
					b.Min[i] = v[i]
				}
				if v[i] > b.Max[i] {
					b.Max[i] = v[i]
				}
			}
			ok = true
		}
	}
	if !ok {
		return Bounds{}, false
	}
	return b, true
}

// Union grows b to contain o.
func (b Bounds) Union(o Bounds) Bounds {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], o.Min[i])
		b.Max[i] = max(b.Max[i], o.Max[i])
	}
	return b
}

// Center returns the midpoint of the box.
func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// SetColor recolors every vertex of every part not marked KeepColor.
func (m *Mesh) SetColor(c mgl32.Vec4) {
	for i := range m.Parts {
		if m.Parts[i].KeepColor {
			continue
		}
		for j := range m.Parts[i].Colors {
			m.Parts[i].Colors[j] = c
		}
	}
}

// Transform applies a rigid transform to all vertex positions in place.
func (m *Mesh) Transform(t mgl32.Mat4) {
	for i := range m.Parts {
		for j, v := range m.Parts[i].Positions {
			m.Parts[i].Positions[j] = t.Mul4x1(v.Vec4(1)).Vec3()
		}
	}
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{Parts: make([]Part, len(m.Parts))}
	for i, p := range m.Parts {
		out.Parts[i] = Part{
			Primitive: p.Primitive,
			Positions: append([]mgl32.Vec3(nil), p.Positions...),
			Colors:    append([]mgl32.Vec4(nil), p.Colors...),
			Indices:   append([]uint32(nil), p.Indices...),
			KeepColor: p.KeepColor,
		}
	}
	return out
}

func sequence(n int) []uint32 {
	idx := make([]uint32, n)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}

func fill(n int, c mgl32.Vec4) []mgl32.Vec4 {
	out := make([]mgl32.Vec4, n)
	for i := range out {
		out[i] = c
	}
	return out
}
