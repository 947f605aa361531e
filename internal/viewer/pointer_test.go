package viewer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/engine/viewport"
)

func TestPointer_Feed(t *testing.T) {
	vp, err := viewport.New(viewport.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	c := NewControls(vp)

	var log []string
	c.OnPress = func(pos mgl64.Vec2) { log = append(log, "press") }
	c.OnDrag[ButtonLeft] = func(pos mgl64.Vec2) { log = append(log, "pan") }
	c.OnDrag[ButtonRight] = func(pos mgl64.Vec2) { log = append(log, "orbit") }
	c.OnScroll = func(d float64) { log = append(log, "zoom") }

	var p Pointer
	frames := []struct {
		pos   mgl64.Vec2
		down  [3]bool
		wheel float64
	}{
		{pos: mgl64.Vec2{10, 10}},
		{pos: mgl64.Vec2{10, 10}, down: [3]bool{false, true, false}}, // press right
		{pos: mgl64.Vec2{15, 10}, down: [3]bool{false, true, false}}, // orbit
		{pos: mgl64.Vec2{15, 10}, down: [3]bool{false, true, false}}, // still
		{pos: mgl64.Vec2{20, 10}},                                    // release then move: nothing
		{pos: mgl64.Vec2{20, 10}, wheel: 1},
	}
	for _, f := range frames {
		p.Pos, p.Down, p.Wheel = f.pos, f.down, f.wheel
		p.Feed(c)
	}

	want := []string{"press", "orbit", "zoom"}
	if len(log) != len(want) {
		t.Fatalf("events = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, log[i], want[i])
		}
	}
	if c.Dragging() != ButtonNone {
		t.Errorf("gesture still active: %v", c.Dragging())
	}
}

func TestPointer_Edges(t *testing.T) {
	var p Pointer
	p.Down[0] = true
	if !p.Pressed(0) || p.Released(0) {
		t.Error("expected press edge")
	}
	p.prevDown = p.Down
	p.Down[0] = false
	if p.Pressed(0) || !p.Released(0) {
		t.Error("expected release edge")
	}
}
