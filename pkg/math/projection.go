package math

import (
	"errors"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateViewport is returned when a viewport rectangle has no area.
var ErrDegenerateViewport = errors.New("degenerate viewport")

// Rect is a viewport rectangle in window pixels.
type Rect struct {
	X, Y, W, H float64
}

// Aspect returns w/h with the height clamped to at least 1.
func Aspect(width, height int) float64 {
	if height < 1 {
		height = 1
	}
	if width < 0 {
		width = 0
	}
	return float64(width) / float64(height)
}

// Perspective builds an OpenGL perspective matrix mapping eye-space depth
// -near..-far to NDC -1..1. fovY is in degrees.
//
// Invalid parameters (fov outside (0, 180), non-positive aspect, near equal
// to far) yield the zero matrix, which every unprojection rejects as
// singular.
func Perspective(fovYDeg, aspect, near, far float64) mgl64.Mat4 {
	if fovYDeg <= 0 || fovYDeg >= 180 || aspect <= 0 || far == near {
		return mgl64.Mat4{}
	}
	tanHalfFov := gomath.Tan(mgl64.DegToRad(fovYDeg) / 2)

	var m mgl64.Mat4
	m.Set(0, 0, 1/(aspect*tanHalfFov))
	m.Set(1, 1, 1/tanHalfFov)
	m.Set(2, 2, -(far+near)/(far-near))
	m.Set(2, 3, -(2*far*near)/(far-near))
	m.Set(3, 2, -1)
	return m
}

// Unproject maps a window coordinate (x, y in pixels, z in [0,1]) back
// through combined = Projection*Model. It fails instead of producing NaN
// when combined is singular or the homogeneous w vanishes.
func Unproject(win mgl64.Vec3, combined mgl64.Mat4, vp Rect) (mgl64.Vec3, error) {
	if vp.W <= 0 || vp.H <= 0 {
		return mgl64.Vec3{}, ErrDegenerateViewport
	}
	det := combined.Det()
	if gomath.IsNaN(det) || gomath.Abs(det) < Epsilon {
		return mgl64.Vec3{}, ErrSingular
	}
	inv := combined.Inv()

	ndc := mgl64.Vec4{
		(win[0]-vp.X)/vp.W*2 - 1,
		(win[1]-vp.Y)/vp.H*2 - 1,
		2*win[2] - 1,
		1,
	}
	out := inv.Mul4x1(ndc)
	if gomath.Abs(out[3]) < Epsilon || !finite(out) {
		return mgl64.Vec3{}, ErrSingular
	}
	return out.Vec3().Mul(1 / out[3]), nil
}

// Project is the inverse of Unproject: it maps a point through combined
// and the viewport rectangle to window coordinates with z in [0,1].
func Project(obj mgl64.Vec3, combined mgl64.Mat4, vp Rect) (mgl64.Vec3, error) {
	if vp.W <= 0 || vp.H <= 0 {
		return mgl64.Vec3{}, ErrDegenerateViewport
	}
	clip := combined.Mul4x1(obj.Vec4(1))
	if gomath.Abs(clip[3]) < Epsilon || !finite(clip) {
		return mgl64.Vec3{}, ErrSingular
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	return mgl64.Vec3{
		vp.X + (ndc[0]+1)/2*vp.W,
		vp.Y + (ndc[1]+1)/2*vp.H,
		(ndc[2] + 1) / 2,
	}, nil
}

func finite(v mgl64.Vec4) bool {
	for _, c := range v {
		if gomath.IsNaN(c) || gomath.IsInf(c, 0) {
			return false
		}
	}
	return true
}
