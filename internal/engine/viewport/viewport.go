// Package viewport ties window geometry, projection parameters and the
// navigating camera together. It produces the view and projection matrices
// consumed by the renderers and answers pick queries for the camera.
package viewport

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/engine/camera"
	"github.com/Faultbox/liteviz/internal/engine/picking"
	"github.com/Faultbox/liteviz/pkg/math"
)

// ErrBadPose is returned when an initial eye/center/up triple does not
// define a camera frame.
var ErrBadPose = errors.New("eye, center and up do not define a camera frame")

// ErrBadProjection is returned for a field of view outside (0, 180)
// degrees or clip distances that do not satisfy 0 < near < far.
var ErrBadProjection = errors.New("invalid projection parameters")

func validFoV(fov float64) bool { return fov > 0 && fov < 180 }

func checkProjection(near, far, fov float64) error {
	if !validFoV(fov) {
		return fmt.Errorf("%w: fov %v", ErrBadProjection, fov)
	}
	if !(near > 0 && far > near) || gomath.IsInf(far, 0) {
		return fmt.Errorf("%w: near %v, far %v", ErrBadProjection, near, far)
	}
	return nil
}

// Size is a pixel extent.
type Size struct {
	W, H int
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Config describes the initial viewport.
type Config struct {
	Width, Height int

	Eye, Center, Up mgl64.Vec3

	FoV, Near, Far float64

	Sensitivity  camera.Sensitivity
	DefaultDepth float64
}

// DefaultConfig returns a 1280x720 viewport looking at the origin from
// (2,2,2) with +Z up.
func DefaultConfig() Config {
	return Config{
		Width:        1280,
		Height:       720,
		Eye:          mgl64.Vec3{2, 2, 2},
		Center:       mgl64.Vec3{0, 0, 0},
		Up:           mgl64.Vec3{0, 0, 1},
		FoV:          60,
		Near:         0.2,
		Far:          100,
		Sensitivity:  camera.DefaultSensitivity(),
		DefaultDepth: camera.DefaultDepth,
	}
}

// cvToGL turns a computer-vision camera frame (x right, y down, z forward)
// into the OpenGL one (x right, y up, z backward): a half turn about X.
var cvToGL = math.Rigid{Rot: mgl64.Quat{W: 0, V: mgl64.Vec3{1, 0, 0}}}

// Viewport owns one camera and the parameters needed to project through it.
// It is not safe for concurrent use; the render loop owns it.
type Viewport struct {
	window      Size
	framebuffer Size
	fbExplicit  bool

	fov, near, far float64

	cam       *camera.Motion
	depth     picking.DepthSampler
	following bool

	initial Config
}

// New builds a viewport from cfg. The camera starts at Eye looking at
// Center.
func New(cfg Config) (*Viewport, error) {
	if err := checkProjection(cfg.Near, cfg.Far, cfg.FoV); err != nil {
		return nil, err
	}
	pose, err := LookAt(cfg.Eye, cfg.Center, cfg.Up)
	if err != nil {
		return nil, err
	}
	v := &Viewport{
		window: Size{cfg.Width, cfg.Height},
		fov:    cfg.FoV,
		near:   cfg.Near,
		far:    cfg.Far,
	}
	v.framebuffer = v.window
	v.cam = camera.NewMotion(v, pose, cfg.Sensitivity, cfg.DefaultDepth)
	v.initial = cfg
	return v, nil
}

// LookAt returns the camera-to-world pose of a camera at eye looking at
// center. The camera's +Z points from center to eye.
func LookAt(eye, center, up mgl64.Vec3) (math.Rigid, error) {
	z := eye.Sub(center)
	if z.Len() < math.Epsilon {
		return math.Rigid{}, fmt.Errorf("%w: eye equals center", ErrBadPose)
	}
	z = z.Normalize()
	x := up.Cross(z)
	if x.Len() < math.Epsilon {
		return math.Rigid{}, fmt.Errorf("%w: up is parallel to the view direction", ErrBadPose)
	}
	x = x.Normalize()
	y := z.Cross(x)
	return math.RigidFromAxes(x, y, z, eye)
}

// Camera exposes the navigation state machine. Input handlers drive it
// directly.
func (v *Viewport) Camera() *camera.Motion { return v.cam }

// SetWindowSize records the window size in screen coordinates. Unless a
// framebuffer size was set explicitly it is assumed to match.
func (v *Viewport) SetWindowSize(w, h int) {
	v.window = Size{w, h}
	if !v.fbExplicit {
		v.framebuffer = v.window
	}
}

// SetFramebufferSize records the drawable size in pixels, which differs
// from the window size on high-DPI displays.
func (v *Viewport) SetFramebufferSize(w, h int) {
	v.framebuffer = Size{w, h}
	v.fbExplicit = true
}

// WindowSize returns the window size.
func (v *Viewport) WindowSize() Size { return v.window }

// FramebufferSize returns the drawable size.
func (v *Viewport) FramebufferSize() Size { return v.framebuffer }

// SetDepthSampler installs the source of depth samples for picking.
func (v *Viewport) SetDepthSampler(s picking.DepthSampler) { v.depth = s }

// ViewMatrix returns world-to-camera, the inverse of the camera pose.
func (v *Viewport) ViewMatrix() mgl64.Mat4 {
	return v.cam.Transformation().Inverse().Mat4()
}

// ProjectionMatrix builds the perspective matrix for the current
// framebuffer aspect. A zero-height framebuffer is clamped to one row.
func (v *Viewport) ProjectionMatrix() mgl64.Mat4 {
	return math.Perspective(v.fov, math.Aspect(v.framebuffer.W, v.framebuffer.H), v.near, v.far)
}

// ViewProjection returns projection*view narrowed for shader upload.
func (v *Viewport) ViewProjection() mgl32.Mat4 {
	return math.Mat4To32(v.ProjectionMatrix().Mul4(v.ViewMatrix()))
}

// SetViewMatrix re-seeds the camera from an external camera-to-world pose
// given in computer-vision axes (x right, y down, z forward). A pose whose
// rotation block is singular is rejected and the camera stays put.
func (v *Viewport) SetViewMatrix(pose mgl64.Mat4) error {
	r, err := math.RigidFromMat4(pose)
	if err != nil {
		return fmt.Errorf("set view matrix: %w", err)
	}
	v.cam.InitTransformation(r.Mul(cvToGL))
	return nil
}

// SetFoV sets the vertical field of view in degrees. Values outside
// (0, 180) are rejected and leave the projection unchanged.
func (v *Viewport) SetFoV(fov float64) error {
	if !validFoV(fov) {
		return fmt.Errorf("%w: fov %v", ErrBadProjection, fov)
	}
	v.fov = fov
	return nil
}

// FoV returns the vertical field of view in degrees.
func (v *Viewport) FoV() float64 { return v.fov }

// Clip returns the near and far clip distances.
func (v *Viewport) Clip() (near, far float64) { return v.near, v.far }

// SetProjection replaces near, far and field of view. Invalid values are
// rejected and leave the projection unchanged.
func (v *Viewport) SetProjection(near, far, fov float64) error {
	if err := checkProjection(near, far, fov); err != nil {
		return err
	}
	v.near, v.far, v.fov = near, far, fov
	return nil
}

// Follow makes the camera ride along with target while enable is true.
// The first call after enabling only records the reference pose.
func (v *Viewport) Follow(target math.Rigid, enable bool) {
	if !enable {
		v.following = false
		return
	}
	if !v.following {
		v.cam.InitTargetTransform(target)
	}
	v.following = true
	v.cam.Follow(target)
}

// Following reports whether follow mode is on.
func (v *Viewport) Following() bool { return v.following }

// CameraPosition returns the camera position in world space.
func (v *Viewport) CameraPosition() mgl64.Vec3 { return v.cam.Position() }

// CameraRotation returns the camera orientation in world space.
func (v *Viewport) CameraRotation() mgl64.Mat3 { return v.cam.Rotation() }

// Focal returns the focal length in window pixels.
func (v *Viewport) Focal() float64 {
	return float64(v.window.H) / (2 * tanHalf(v.fov))
}

// TanXY returns the tangents of the horizontal and vertical half angles.
func (v *Viewport) TanXY() mgl64.Vec2 {
	t := tanHalf(v.fov)
	return mgl64.Vec2{math.Aspect(v.framebuffer.W, v.framebuffer.H) * t, t}
}

func tanHalf(fovDeg float64) float64 {
	return gomath.Tan(mgl64.DegToRad(fovDeg) / 2)
}

func (v *Viewport) unprojector() picking.Unprojector {
	return picking.Unprojector{
		Projection: v.ProjectionMatrix(),
		Width:      float64(v.window.W),
		Height:     float64(v.window.H),
		Pose:       v.cam.Transformation(),
	}
}

// PixelPosition picks the point under a window position, using fallback
// when the depth buffer shows background there.
func (v *Viewport) PixelPosition(pos mgl64.Vec2, fallback float64) picking.Result {
	return v.unprojector().Pick(v.depth, pos, fallback)
}

// PixelUnproject maps a window position at a known depth into camera and
// world space.
func (v *Viewport) PixelUnproject(pos mgl64.Vec2, depth float64) picking.Result {
	return v.unprojector().Unproject(pos, depth)
}

// Degenerate reports whether the window has no area.
func (v *Viewport) Degenerate() bool { return v.window.Empty() }

// Reset returns the camera to its initial pose and leaves follow mode.
func (v *Viewport) Reset() {
	pose, err := LookAt(v.initial.Eye, v.initial.Center, v.initial.Up)
	if err != nil {
		return
	}
	v.cam.InitTransformation(pose)
	v.following = false
}

// Frame points the camera at the center of an axis-aligned box from a
// distance that fits the box in the vertical field of view. The viewing
// direction is kept.
func (v *Viewport) Frame(min, max mgl64.Vec3) {
	center := min.Add(max).Mul(0.5)
	radius := max.Sub(min).Len() / 2
	if radius < math.Epsilon || gomath.IsNaN(radius) || gomath.IsInf(radius, 0) || !validFoV(v.fov) {
		return
	}
	dist := radius / gomath.Sin(mgl64.DegToRad(v.fov)/2)

	back := v.cam.Transformation().TransformDirection(mgl64.Vec3{0, 0, 1})
	pos := center.Add(back.Mul(dist))
	v.cam.InitTransformation(math.NewRigid(v.cam.Transformation().Rot, pos))
}
