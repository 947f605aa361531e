// Package input handles SDL2 input events.
package input

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/liteviz/internal/viewer"
)

// EventType identifies an input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
	EventDrop
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	Mouse  mgl64.Vec2 // window coordinates, top-left origin
	Button uint8
	Wheel  float64 // positive away from the user
	Path   string  // dropped file
}

// Input handles all input processing.
type Input struct {
	events []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events and converts them to viewer events.
// Returns true if the viewer should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			quit = true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			if e.Repeat != 0 {
				continue
			}
			t := EventKeyUp
			if e.Type == sdl.KEYDOWN {
				t = EventKeyDown
			}
			i.events = append(i.events, Event{Type: t, Key: e.Keysym.Scancode})

		case *sdl.MouseMotionEvent:
			i.events = append(i.events, Event{
				Type:  EventMouseMove,
				Mouse: mgl64.Vec2{float64(e.X), float64(e.Y)},
			})

		case *sdl.MouseButtonEvent:
			t := EventMouseUp
			if e.Type == sdl.MOUSEBUTTONDOWN {
				t = EventMouseDown
			}
			i.events = append(i.events, Event{
				Type:   t,
				Mouse:  mgl64.Vec2{float64(e.X), float64(e.Y)},
				Button: e.Button,
			})

		case *sdl.MouseWheelEvent:
			dy := float64(e.Y)
			if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
				dy = -dy
			}
			i.events = append(i.events, Event{Type: EventMouseWheel, Wheel: dy})

		case *sdl.DropEvent:
			if e.Type == sdl.DROPFILE {
				i.events = append(i.events, Event{Type: EventDrop, Path: e.File})
			}
		}
	}

	return quit
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed checks if a specific key was pressed this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

// Button maps an SDL mouse button to the viewer's.
func Button(b uint8) viewer.MouseButton {
	switch b {
	case sdl.BUTTON_LEFT:
		return viewer.ButtonLeft
	case sdl.BUTTON_RIGHT:
		return viewer.ButtonRight
	case sdl.BUTTON_MIDDLE:
		return viewer.ButtonMiddle
	default:
		return viewer.ButtonNone
	}
}

// Keys maps scancodes to viewer shortcuts.
var Keys = map[sdl.Scancode]viewer.Key{
	sdl.SCANCODE_R:     viewer.KeyReset,
	sdl.SCANCODE_F:     viewer.KeyFollow,
	sdl.SCANCODE_G:     viewer.KeyGrid,
	sdl.SCANCODE_F12:   viewer.KeySnapshot,
	sdl.SCANCODE_SPACE: viewer.KeyPause,
	sdl.SCANCODE_HOME:  viewer.KeyFrame,
	sdl.SCANCODE_B:     viewer.KeyBounds,
}

// Handler receives the events Dispatch does not turn into camera input.
type Handler interface {
	DropFile(path string)
	Resize(winW, winH, fbW, fbH int)
}

// Dispatch feeds events to the camera controls. Resize events report the
// new window size; drawable is asked for the matching pixel size.
func Dispatch(events []Event, c *viewer.Controls, h Handler, drawable func() (int, int)) {
	for _, e := range events {
		switch e.Type {
		case EventMouseDown:
			c.MouseDown(Button(e.Button), e.Mouse)
		case EventMouseUp:
			c.MouseUp(Button(e.Button))
		case EventMouseMove:
			c.MouseMove(e.Mouse)
		case EventMouseWheel:
			c.Scroll(e.Wheel)
		case EventKeyDown:
			if k, ok := Keys[e.Key]; ok {
				c.KeyDown(k)
			}
		case EventDrop:
			h.DropFile(e.Path)
		case EventWindowResize:
			fbW, fbH := e.Width, e.Height
			if drawable != nil {
				fbW, fbH = drawable()
			}
			h.Resize(e.Width, e.Height, fbW, fbH)
		}
	}
}
