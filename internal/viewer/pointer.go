package viewer

import "github.com/go-gl/mathgl/mgl64"

// Pointer turns polled mouse state (button levels, cursor position, wheel)
// into the edge events Controls expects. Frontends that only expose levels,
// like immediate-mode GUIs, fill it once per frame and call Feed.
type Pointer struct {
	Pos   mgl64.Vec2
	Down  [3]bool // left, right, middle
	Wheel float64

	prevDown [3]bool
	prevPos  mgl64.Vec2
	started  bool
}

var pointerButtons = [3]MouseButton{ButtonLeft, ButtonRight, ButtonMiddle}

// Pressed reports whether button i went down since the last Feed.
func (p *Pointer) Pressed(i int) bool { return p.Down[i] && !p.prevDown[i] }

// Released reports whether button i went up since the last Feed.
func (p *Pointer) Released(i int) bool { return !p.Down[i] && p.prevDown[i] }

// Feed sends the changes since the previous frame to c: releases first,
// then motion, then presses, then the wheel.
func (p *Pointer) Feed(c *Controls) {
	for i, b := range pointerButtons {
		if p.Released(i) {
			c.MouseUp(b)
		}
	}
	if p.started && p.Pos != p.prevPos {
		c.MouseMove(p.Pos)
	}
	for i, b := range pointerButtons {
		if p.Pressed(i) {
			c.MouseDown(b, p.Pos)
		}
	}
	if p.Wheel != 0 {
		c.Scroll(p.Wheel)
	}

	p.prevDown = p.Down
	p.prevPos = p.Pos
	p.Wheel = 0
	p.started = true
}
