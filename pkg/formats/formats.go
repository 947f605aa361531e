// Package formats provides parsers for point cloud, mesh and trajectory
// files: PCD, PLY, XYZ, TUM and glTF.
package formats

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Errors shared by all parsers. Parsers wrap them with position details.
var (
	ErrInvalidHeader     = errors.New("invalid header")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTruncated         = errors.New("truncated data")
	ErrInvalidData       = errors.New("invalid data")
)

// Geometry is the common result of the point cloud and mesh parsers.
// Colors is nil when the file carries none; otherwise it has one entry per
// position. Indices holds triangles and is nil for point clouds.
type Geometry struct {
	Positions []mgl32.Vec3
	Colors    []mgl32.Vec4
	Indices   []uint32
}

// HasColors reports whether per-vertex colors were read.
func (g *Geometry) HasColors() bool { return g.Colors != nil }

// IsMesh reports whether the geometry has faces.
func (g *Geometry) IsMesh() bool { return len(g.Indices) > 0 }

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int { return len(g.Indices) / 3 }

// Bounds returns the axis-aligned bounding box. ok is false when there are
// no positions.
func (g *Geometry) Bounds() (min, max mgl32.Vec3, ok bool) {
	if len(g.Positions) == 0 {
		return min, max, false
	}
	min, max = g.Positions[0], g.Positions[0]
	for _, p := range g.Positions[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max, true
}

func unpackRGB(v uint32, withAlpha bool) mgl32.Vec4 {
	c := mgl32.Vec4{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
		1,
	}
	if withAlpha {
		c[3] = float32((v>>24)&0xff) / 255
	}
	return c
}

func isFinite3(v mgl32.Vec3) bool {
	for _, f := range v {
		if f != f || f > 3.4e38 || f < -3.4e38 {
			return false
		}
	}
	return true
}
