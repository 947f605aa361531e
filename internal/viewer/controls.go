package viewer

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/engine/viewport"
)

// MouseButton identifies the buttons the camera reacts to.
type MouseButton int

const (
	ButtonNone MouseButton = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// Key identifies the keyboard shortcuts the viewer reacts to. Frontends
// translate their own key codes.
type Key int

const (
	KeyNone Key = iota
	KeyReset
	KeyFollow
	KeyGrid
	KeySnapshot
	KeyPause
	KeyFrame
	KeyBounds
)

// ScrollThreshold is the smallest wheel delta that zooms.
const ScrollThreshold = 1e-2

// Controls turns frontend input into camera motion. Each gesture is a
// closure so frontends and tests can rebind them.
type Controls struct {
	// Captured reports whether the GUI owns the mouse this frame.
	Captured func() bool

	OnPress  func(pos mgl64.Vec2)
	OnDrag   map[MouseButton]func(pos mgl64.Vec2)
	OnScroll func(delta float64)

	keys map[Key]func()
	held MouseButton
}

// NewControls binds the default gestures to vp: pressing left or right
// picks the anchor, dragging left pans, dragging right orbits and the
// wheel zooms.
func NewControls(vp *viewport.Viewport) *Controls {
	cam := vp.Camera()
	return &Controls{
		Captured: func() bool { return false },
		OnPress:  cam.InitScreenPos,
		OnDrag: map[MouseButton]func(mgl64.Vec2){
			ButtonLeft:  cam.Translate,
			ButtonRight: cam.Rotate,
		},
		OnScroll: cam.Zoom,
		keys:     make(map[Key]func()),
	}
}

// BindKey attaches fn to k, replacing any earlier binding.
func (c *Controls) BindKey(k Key, fn func()) {
	c.keys[k] = fn
}

// MouseDown starts a gesture.
func (c *Controls) MouseDown(b MouseButton, pos mgl64.Vec2) {
	if c.Captured() {
		return
	}
	if _, ok := c.OnDrag[b]; !ok {
		return
	}
	c.held = b
	c.OnPress(pos)
}

// MouseUp ends the gesture started with b.
func (c *Controls) MouseUp(b MouseButton) {
	if c.held == b {
		c.held = ButtonNone
	}
}

// MouseMove continues the current gesture, if any.
func (c *Controls) MouseMove(pos mgl64.Vec2) {
	if c.held == ButtonNone || c.Captured() {
		return
	}
	if fn := c.OnDrag[c.held]; fn != nil {
		fn(pos)
	}
}

// Scroll zooms by delta wheel steps. Tiny deltas from touchpads are
// dropped.
func (c *Controls) Scroll(delta float64) {
	if c.Captured() || gomath.Abs(delta) < ScrollThreshold {
		return
	}
	c.OnScroll(delta)
}

// KeyDown runs the action bound to k. It reports whether one ran.
func (c *Controls) KeyDown(k Key) bool {
	fn, ok := c.keys[k]
	if !ok {
		return false
	}
	fn()
	return true
}

// Dragging returns the button of the gesture in progress.
func (c *Controls) Dragging() MouseButton { return c.held }
