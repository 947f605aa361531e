// Package camera implements interactive camera navigation anchored on the
// point under the cursor.
//
// Composition convention: the pose is camera-to-world in OpenGL eye
// convention (camera looks down -Z, +Y up). User input (orbit, pan, zoom)
// produces a delta expressed in the camera's own frame and is applied on
// the right, pose = pose * delta^-1. Follow deltas describe motion of an
// external object in the world frame and are applied on the left,
// pose = delta * pose.
package camera

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/engine/picking"
	"github.com/Faultbox/liteviz/pkg/math"
)

// DefaultDepth is the window-space depth assumed for picks before anything
// was hit.
const DefaultDepth = 0.8

// Sensitivity scales raw input into camera motion.
type Sensitivity struct {
	Rotate float64 // radians per pixel
	Pan    float64 // world units per pixel when no depth anchor exists
	Zoom   float64 // world units per scroll step
}

// DefaultSensitivity returns the stock tuning.
func DefaultSensitivity() Sensitivity {
	return Sensitivity{Rotate: 0.005, Pan: 0.1, Zoom: 1.0}
}

// Unprojector maps cursor positions back into camera space. The viewport
// implements it with the current projection and pose.
type Unprojector interface {
	// PixelPosition samples depth under pos, substituting fallback for
	// background.
	PixelPosition(pos mgl64.Vec2, fallback float64) picking.Result
	// PixelUnproject unprojects pos at a known window-space depth.
	PixelUnproject(pos mgl64.Vec2, depth float64) picking.Result
	// Degenerate reports a zero-sized window. All interaction is skipped
	// while it holds.
	Degenerate() bool
}

// Motion is the navigation state machine. Each call computes a delta,
// applies it and forgets it, so no delta survives between calls.
type Motion struct {
	transform  math.Rigid
	prevTarget math.Rigid

	prevPos mgl64.Vec2
	lastZ   float64
	anchor  mgl64.Vec3 // camera space

	sens Sensitivity
	view Unprojector
}

// NewMotion creates a motion controller posed at transform.
func NewMotion(view Unprojector, transform math.Rigid, sens Sensitivity, defaultDepth float64) *Motion {
	if defaultDepth <= 0 || defaultDepth > picking.FarDepth {
		defaultDepth = DefaultDepth
	}
	return &Motion{
		transform:  transform,
		prevTarget: math.RigidIdentity(),
		lastZ:      defaultDepth,
		sens:       sens,
		view:       view,
	}
}

// InitScreenPos anchors navigation on the point under pos. A background
// sample falls back to the last anchored depth, so clicking empty space
// re-anchors at that depth. The anchor only stays untouched when the
// resulting depth is the far sentinel.
func (m *Motion) InitScreenPos(pos mgl64.Vec2) {
	defer func() { m.prevPos = pos }()
	if m.view.Degenerate() {
		return
	}
	res := m.view.PixelPosition(pos, m.lastZ)
	if res.Depth != picking.FarDepth && res.OK {
		m.lastZ = res.Depth
		m.anchor = res.Camera
	}
}

// Rotate orbits the camera around the anchor by the cursor offset since
// the last call.
func (m *Motion) Rotate(pos mgl64.Vec2) {
	defer func() { m.prevPos = pos }()
	if m.view.Degenerate() {
		return
	}
	off := pos.Sub(m.prevPos).Mul(m.sens.Rotate)

	rx := mgl64.QuatRotate(off[1], mgl64.Vec3{1, 0, 0})
	ry := mgl64.QuatRotate(off[0], mgl64.Vec3{0, 1, 0})
	rot := rx.Mul(ry)

	// Move the anchor to the origin, rotate, move it back.
	toOrigin := math.NewRigid(rot, rot.Rotate(m.anchor.Mul(-1)))
	back := math.Translation(m.anchor)
	m.apply(back.Mul(toOrigin))
}

// Translate pans so the surface point grabbed in InitScreenPos stays under
// the cursor. Without a depth anchor it pans in the camera plane instead.
func (m *Motion) Translate(pos mgl64.Vec2) {
	defer func() { m.prevPos = pos }()
	if m.view.Degenerate() {
		return
	}

	if m.lastZ == picking.FarDepth {
		off := pos.Sub(m.prevPos).Mul(m.sens.Pan)
		m.apply(math.Translation(mgl64.Vec3{off[0], -off[1], 0}))
		return
	}

	res := m.view.PixelUnproject(pos, m.lastZ)
	if !res.OK {
		return
	}
	d := res.Camera.Sub(m.anchor)
	m.apply(math.Translation(mgl64.Vec3{d[0], d[1], 0}))
	m.anchor = res.Camera
}

// Zoom moves the camera along its viewing axis. Positive steps move
// forward.
func (m *Motion) Zoom(steps float64) {
	if m.view.Degenerate() {
		return
	}
	m.apply(math.Translation(mgl64.Vec3{0, 0, steps * m.sens.Zoom}))
}

// Follow moves the camera rigidly with an external pose since the previous
// call.
func (m *Motion) Follow(target math.Rigid) {
	delta := target.Mul(m.prevTarget.Inverse())
	m.transform = delta.Mul(m.transform)
	m.prevTarget = target
}

// InitTargetTransform sets the reference pose for the next Follow.
func (m *Motion) InitTargetTransform(target math.Rigid) {
	m.prevTarget = target
}

// InitTransformation replaces the camera pose.
func (m *Motion) InitTransformation(t math.Rigid) {
	m.transform = t
}

func (m *Motion) apply(delta math.Rigid) {
	m.transform = m.transform.Mul(delta.Inverse())
}

// Transformation returns the camera-to-world pose.
func (m *Motion) Transformation() math.Rigid { return m.transform }

// Rotation returns the camera orientation in world space.
func (m *Motion) Rotation() mgl64.Mat3 { return m.transform.Rotation() }

// Position returns the camera position in world space.
func (m *Motion) Position() mgl64.Vec3 { return m.transform.Position() }

// Anchor returns the current pivot in camera space and its window depth.
func (m *Motion) Anchor() (mgl64.Vec3, float64) { return m.anchor, m.lastZ }

// AnchorWorld returns the pivot in world space.
func (m *Motion) AnchorWorld() mgl64.Vec3 { return m.transform.TransformPoint(m.anchor) }

// Sensitivity returns the input scaling.
func (m *Motion) Sensitivity() Sensitivity { return m.sens }

// SetSensitivity replaces the input scaling. Non-positive or non-finite
// fields keep their previous value.
func (m *Motion) SetSensitivity(s Sensitivity) {
	m.sens.Rotate = pick(s.Rotate, m.sens.Rotate)
	m.sens.Pan = pick(s.Pan, m.sens.Pan)
	m.sens.Zoom = pick(s.Zoom, m.sens.Zoom)
}

func pick(v, old float64) float64 {
	if v <= 0 || gomath.IsNaN(v) || gomath.IsInf(v, 0) {
		return old
	}
	return v
}
