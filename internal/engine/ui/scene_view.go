package ui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/viewer"
)

// Keys maps ImGui keys to viewer shortcuts.
var Keys = map[imgui.Key]viewer.Key{
	imgui.KeyR:     viewer.KeyReset,
	imgui.KeyF:     viewer.KeyFollow,
	imgui.KeyG:     viewer.KeyGrid,
	imgui.KeyF12:   viewer.KeySnapshot,
	imgui.KeySpace: viewer.KeyPause,
	imgui.KeyHome:  viewer.KeyFrame,
	imgui.KeyB:     viewer.KeyBounds,
}

// SceneView draws the offscreen scene texture behind every other window
// and routes mouse and keyboard input to the camera controls.
type SceneView struct {
	controls *viewer.Controls
	pointer  viewer.Pointer
}

// NewSceneView creates a view driving c.
func NewSceneView(c *viewer.Controls) *SceneView {
	return &SceneView{controls: c}
}

// Render draws textureID over the rectangle at pos with the given size
// and feeds this frame's input. Cursor positions are made relative to pos.
func (s *SceneView) Render(textureID uint32, pos, size imgui.Vec2) {
	if textureID != 0 {
		imgui.SetNextWindowPos(pos)
		imgui.SetNextWindowSize(size)

		flags := imgui.WindowFlagsNoTitleBar | imgui.WindowFlagsNoResize |
			imgui.WindowFlagsNoMove | imgui.WindowFlagsNoScrollbar |
			imgui.WindowFlagsNoScrollWithMouse | imgui.WindowFlagsNoBringToFrontOnFocus |
			imgui.WindowFlagsNoInputs | imgui.WindowFlagsNoSavedSettings

		imgui.PushStyleVarVec2(imgui.StyleVarWindowPadding, imgui.NewVec2(0, 0))
		if imgui.BeginV("##Scene", nil, flags) {
			texRef := imgui.NewTextureRefTextureID(imgui.TextureID(textureID))
			// GL textures are bottom-up.
			imgui.ImageV(*texRef, size, imgui.NewVec2(0, 1), imgui.NewVec2(1, 0))
		}
		imgui.End()
		imgui.PopStyleVar()
	}

	s.updateInput(pos)
}

func (s *SceneView) updateInput(origin imgui.Vec2) {
	io := imgui.CurrentIO()
	mouse := imgui.MousePos()

	s.pointer.Pos = mgl64.Vec2{float64(mouse.X - origin.X), float64(mouse.Y - origin.Y)}
	s.pointer.Down = [3]bool{
		imgui.IsMouseDown(imgui.MouseButtonLeft),
		imgui.IsMouseDown(imgui.MouseButtonRight),
		imgui.IsMouseDown(imgui.MouseButtonMiddle),
	}
	s.pointer.Wheel = float64(io.MouseWheel())
	s.pointer.Feed(s.controls)

	if imgui.IsAnyItemActive() {
		return
	}
	for key, k := range Keys {
		if IsKeyPressed(key) {
			s.controls.KeyDown(k)
		}
	}
}
