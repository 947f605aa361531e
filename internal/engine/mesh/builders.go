package mesh

import (
	"errors"
	"fmt"
	gomath "math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrColorCount is returned when per-point colors do not match the points.
var ErrColorCount = errors.New("color count does not match point count")

// gridHalfSize is the half extent of the ground grid.
const gridHalfSize = 100.5

var gridGray = mgl32.Vec4{0.5, 0.5, 0.5, 0.25}

// Grid builds the ground grid on the z = 0 plane: a coarse level every 10
// units with the two lines through the origin colored as axes, and a fine
// level every unit drawn fainter.
func Grid() *Mesh {
	const scale = 1.0
	level := gomath.Log10(5 * scale)
	base := int(gomath.Floor(level))

	part := Part{Primitive: Lines}

	xs, ys := gridLevel(scale, base-1)
	for _, v := range xs {
		part.Positions = append(part.Positions, v)
		part.Colors = append(part.Colors, pivotColor(v[0], ColorAxisY))
	}
	for _, v := range ys {
		part.Positions = append(part.Positions, v)
		part.Colors = append(part.Colors, pivotColor(v[1], ColorAxisX))
	}

	alpha := float32(gomath.Pow(level-gomath.Floor(level), 0.9) * 0.25)
	faint := mgl32.Vec4{0.5, 0.5, 0.5, alpha}
	xs, ys = gridLevel(scale, base)
	for _, v := range append(xs, ys...) {
		part.Positions = append(part.Positions, v)
		part.Colors = append(part.Colors, faint)
	}

	part.Indices = sequence(len(part.Positions))
	return &Mesh{Parts: []Part{part}}
}

func pivotColor(coord float32, axis mgl32.Vec4) mgl32.Vec4 {
	if int(coord) == 0 {
		return axis
	}
	return gridGray
}

// gridLevel returns line endpoints for lines parallel to Y (xs) and to X
// (ys) spaced 10^-level apart.
func gridLevel(scale float64, level int) (xs, ys []mgl32.Vec3) {
	gap := gomath.Pow(10, float64(-level)) * scale
	lo := int(gomath.Ceil(-gridHalfSize / gap))
	hi := int(gomath.Floor(gridHalfSize / gap))

	for i := lo; i <= hi; i++ {
		c := float32(float64(i) * gap)
		xs = append(xs, mgl32.Vec3{c, -gridHalfSize, 0}, mgl32.Vec3{c, gridHalfSize, 0})
		ys = append(ys, mgl32.Vec3{-gridHalfSize, c, 0}, mgl32.Vec3{gridHalfSize, c, 0})
	}
	return xs, ys
}

// Cube builds a solid cube of the given edge length centered at the
// origin. Vertex colors encode the octant: red for +x, green for +y, blue
// for +z.
func Cube(size float32) *Mesh {
	h := size / 2
	pos := []mgl32.Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	colors := make([]mgl32.Vec4, len(pos))
	for i, p := range pos {
		colors[i] = mgl32.Vec4{positive(p[0]), positive(p[1]), positive(p[2]), 1}
	}
	indices := []uint32{
		4, 5, 6, 6, 7, 4, // +Z
		0, 1, 2, 2, 3, 0, // -Z
		1, 5, 6, 6, 2, 1, // +X
		0, 4, 7, 7, 3, 0, // -X
		3, 2, 6, 6, 7, 3, // +Y
		0, 1, 5, 5, 4, 0, // -Y
	}
	return &Mesh{Parts: []Part{{Primitive: Triangles, Positions: pos, Colors: colors, Indices: indices}}}
}

func positive(v float32) float32 {
	if v > 0 {
		return 1
	}
	return 0
}

// Frustum builds a camera glyph in computer-vision camera axes (z forward,
// y down): lines from the apex to the image plane corners at z = fx, a
// small triangle below the image marking "up", and an axis marker of
// length cx. Everything is multiplied by scale.
func Frustum(fx, cx, cy, scale float32) *Mesh {
	white := mgl32.Vec4{1, 1, 1, 1}

	body := []mgl32.Vec3{
		{0, 0, 0},
		{cx, cy, fx},
		{-cx, cy, fx},
		{-cx, -cy, fx},
		{cx, -cy, fx},
	}
	marker := []mgl32.Vec3{
		{cx / 3, -cy * 1.05, fx},
		{-cx / 3, -cy * 1.05, fx},
		{0, -cy * 1.25, fx},
	}
	axes := []mgl32.Vec3{
		{0, 0, 0}, {cx, 0, 0},
		{0, 0, 0}, {0, cx, 0},
		{0, 0, 0}, {0, 0, cx},
	}
	scaleAll(body, scale)
	scaleAll(marker, scale)
	scaleAll(axes, scale)

	return &Mesh{Parts: []Part{
		{
			Primitive: Lines,
			Positions: body,
			Colors:    fill(len(body), white),
			Indices:   []uint32{0, 1, 0, 2, 0, 3, 0, 4, 1, 2, 2, 3, 3, 4, 4, 1},
		},
		{
			Primitive: Triangles,
			Positions: marker,
			Colors:    fill(len(marker), white),
			Indices:   []uint32{0, 1, 2},
		},
		{
			Primitive: Lines,
			Positions: axes,
			Colors:    []mgl32.Vec4{ColorAxisX, ColorAxisX, ColorAxisY, ColorAxisY, ColorAxisZ, ColorAxisZ},
			Indices:   sequence(len(axes)),
			KeepColor: true,
		},
	}}
}

func scaleAll(vs []mgl32.Vec3, s float32) {
	for i := range vs {
		vs[i] = vs[i].Mul(s)
	}
}

// CoordinateFrame builds X, Y and Z axis segments of the given length.
func CoordinateFrame(length float32) *Mesh {
	pos := []mgl32.Vec3{
		{0, 0, 0}, {length, 0, 0},
		{0, 0, 0}, {0, length, 0},
		{0, 0, 0}, {0, 0, length},
	}
	return &Mesh{Parts: []Part{{
		Primitive: Lines,
		Positions: pos,
		Colors:    []mgl32.Vec4{ColorAxisX, ColorAxisX, ColorAxisY, ColorAxisY, ColorAxisZ, ColorAxisZ},
		Indices:   sequence(len(pos)),
		KeepColor: true,
	}}}
}

// RandomPointCloud scatters n points uniformly in the [-1, 1] cube with
// random opaque colors. The same seed yields the same cloud.
func RandomPointCloud(n int, seed uint64) *Mesh {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	part := Part{
		Primitive: Points,
		Positions: make([]mgl32.Vec3, n),
		Colors:    make([]mgl32.Vec4, n),
	}
	for i := 0; i < n; i++ {
		part.Positions[i] = mgl32.Vec3{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}
		part.Colors[i] = mgl32.Vec4{r.Float32(), r.Float32(), r.Float32(), 1}
	}
	part.Indices = sequence(n)
	return &Mesh{Parts: []Part{part}}
}

// PointCloud builds a single-color point cloud.
func PointCloud(points []mgl32.Vec3, color mgl32.Vec4) *Mesh {
	pos := append([]mgl32.Vec3(nil), points...)
	return &Mesh{Parts: []Part{{
		Primitive: Points,
		Positions: pos,
		Colors:    fill(len(pos), color),
		Indices:   sequence(len(pos)),
	}}}
}

// ColoredPointCloud builds a point cloud with one color per point.
func ColoredPointCloud(points []mgl32.Vec3, colors []mgl32.Vec4) (*Mesh, error) {
	if len(colors) != len(points) {
		return nil, fmt.Errorf("%w: %d points, %d colors", ErrColorCount, len(points), len(colors))
	}
	return &Mesh{Parts: []Part{{
		Primitive: Points,
		Positions: append([]mgl32.Vec3(nil), points...),
		Colors:    append([]mgl32.Vec4(nil), colors...),
		Indices:   sequence(len(points)),
	}}}, nil
}

// Line builds a polyline through points. Fewer than two points give an
// empty mesh.
func Line(points []mgl32.Vec3, color mgl32.Vec4) *Mesh {
	if len(points) < 2 {
		return &Mesh{}
	}
	pos := append([]mgl32.Vec3(nil), points...)
	return &Mesh{Parts: []Part{{
		Primitive: LineStrip,
		Positions: pos,
		Colors:    fill(len(pos), color),
		Indices:   sequence(len(pos)),
	}}}
}

// TriangleMesh wraps indexed triangles. Missing colors default to color.
func TriangleMesh(positions []mgl32.Vec3, colors []mgl32.Vec4, indices []uint32, color mgl32.Vec4) (*Mesh, error) {
	if colors == nil {
		colors = fill(len(positions), color)
	}
	if len(colors) != len(positions) {
		return nil, fmt.Errorf("%w: %d vertices, %d colors", ErrColorCount, len(positions), len(colors))
	}
	if indices == nil {
		indices = sequence(len(positions))
	}
	for _, i := range indices {
		if int(i) >= len(positions) {
			return nil, fmt.Errorf("index %d out of range (%d vertices)", i, len(positions))
		}
	}
	return &Mesh{Parts: []Part{{
		Primitive: Triangles,
		Positions: positions,
		Colors:    colors,
		Indices:   indices,
	}}}, nil
}

// BoxWireframe outlines a bounding box with its 12 edges.
func BoxWireframe(b Bounds, color mgl32.Vec4) *Mesh {
	lo, hi := b.Min, b.Max
	pos := []mgl32.Vec3{
		// bottom
		{lo[0], lo[1], lo[2]}, {hi[0], lo[1], lo[2]},
		{hi[0], lo[1], lo[2]}, {hi[0], hi[1], lo[2]},
		{hi[0], hi[1], lo[2]}, {lo[0], hi[1], lo[2]},
		{lo[0], hi[1], lo[2]}, {lo[0], lo[1], lo[2]},
		// top
		{lo[0], lo[1], hi[2]}, {hi[0], lo[1], hi[2]},
		{hi[0], lo[1], hi[2]}, {hi[0], hi[1], hi[2]},
		{hi[0], hi[1], hi[2]}, {lo[0], hi[1], hi[2]},
		{lo[0], hi[1], hi[2]}, {lo[0], lo[1], hi[2]},
		// vertical
		{lo[0], lo[1], lo[2]}, {lo[0], lo[1], hi[2]},
		{hi[0], lo[1], lo[2]}, {hi[0], lo[1], hi[2]},
		{hi[0], hi[1], lo[2]}, {hi[0], hi[1], hi[2]},
		{lo[0], hi[1], lo[2]}, {lo[0], hi[1], hi[2]},
	}
	return &Mesh{Parts: []Part{{
		Primitive: Lines,
		Positions: pos,
		Colors:    fill(len(pos), color),
		Indices:   sequence(len(pos)),
	}}}
}
