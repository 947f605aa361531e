// Package picking turns a cursor position plus a depth sample into a 3D
// point in camera and world space.
//
// Depth contract with the renderer: the depth buffer is cleared to
// FarDepth before each frame, and a DepthSampler reports window-space
// depth in [0, 1] for the pixel under the cursor. A sample equal to
// FarDepth means nothing was drawn there.
package picking

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/pkg/math"
)

// FarDepth is the cleared depth value, i.e. "no geometry under the cursor".
const FarDepth = 1.0

// DepthSampler reads the depth buffer at a window pixel. x and y are window
// coordinates with the origin at the top-left, as delivered with cursor
// events. ok is false when the pixel is outside the buffer or the sample is
// not available yet; callers treat that like FarDepth.
type DepthSampler interface {
	DepthAt(x, y float64) (depth float64, ok bool)
}

// DepthFunc adapts a plain function to DepthSampler.
type DepthFunc func(x, y float64) (float64, bool)

// DepthAt implements DepthSampler.
func (f DepthFunc) DepthAt(x, y float64) (float64, bool) {
	return f(x, y)
}

// Result is the outcome of a pick.
type Result struct {
	World  mgl64.Vec3 // camera pose applied to Camera
	Camera mgl64.Vec3 // OpenGL eye space (camera looks down -Z)
	Depth  float64    // window-space depth actually used
	Hit    bool       // the sample hit geometry; false means the fallback depth was used
	OK     bool       // unprojection succeeded; on failure Camera is the zero vector
}

// ResolveDepth samples s at pos and substitutes fallback for background or
// missing samples. hit reports whether the sample itself was usable.
func ResolveDepth(s DepthSampler, pos mgl64.Vec2, fallback float64) (depth float64, hit bool) {
	if s == nil {
		return fallback, false
	}
	d, ok := s.DepthAt(pos[0], pos[1])
	if !ok || d >= FarDepth || d < 0 {
		return fallback, false
	}
	return d, true
}

// Unprojector holds what is needed to map window pixels back into space:
// the projection matrix, the window size the cursor lives in, and the
// camera-to-world pose.
type Unprojector struct {
	Projection mgl64.Mat4
	Width      float64
	Height     float64
	Pose       math.Rigid
}

// Unproject maps a cursor position at window-space depth into camera and
// world space. The cursor y axis points down, GL window y points up.
// It never fails loudly: on a singular projection Camera is zero and OK is
// false, World is then the camera position.
func (u Unprojector) Unproject(pos mgl64.Vec2, depth float64) Result {
	win := mgl64.Vec3{pos[0], u.Height - pos[1], depth}
	cam, err := math.Unproject(win, u.Projection, math.Rect{W: u.Width, H: u.Height})
	if err != nil {
		cam = mgl64.Vec3{}
	}
	return Result{
		World:  u.Pose.TransformPoint(cam),
		Camera: cam,
		Depth:  depth,
		OK:     err == nil,
	}
}

// Pick resolves the depth under pos through s, then unprojects.
func (u Unprojector) Pick(s DepthSampler, pos mgl64.Vec2, fallback float64) Result {
	depth, hit := ResolveDepth(s, pos, fallback)
	res := u.Unproject(pos, depth)
	res.Hit = hit
	return res
}

// FramebufferPixel maps a window position (top-left origin, screen units)
// to a framebuffer pixel (bottom-left origin, device pixels). ok is false
// outside the buffer or for empty sizes.
func FramebufferPixel(x, y float64, winW, winH, fbW, fbH int) (px, py int, ok bool) {
	if winW <= 0 || winH <= 0 || fbW <= 0 || fbH <= 0 || x < 0 || y < 0 {
		return 0, 0, false
	}
	px = int(x * float64(fbW) / float64(winW))
	row := int(y * float64(fbH) / float64(winH))
	if px >= fbW || row >= fbH {
		return 0, 0, false
	}
	return px, fbH - 1 - row, true
}
