// Package ui provides the ImGui frontend: the SDL backend, the scene view
// and the configuration panel.
package ui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/logger"
)

// Backend wraps the ImGui SDL backend.
type Backend struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	log     *zap.Logger
}

// NewBackend creates the window and the GL context. bg is the clear color
// behind every ImGui window.
func NewBackend(cfg config.WindowConfig, bg mgl32.Vec4) (*Backend, error) {
	b := &Backend{log: logger.Named("ui")}

	var err error
	b.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	b.backend.SetAfterCreateContextHook(func() {
		imgui.StyleColorsLight()
	})

	b.backend.SetBgColor(imgui.NewVec4(bg[0], bg[1], bg[2], bg[3]))
	b.backend.CreateWindow(cfg.Title, cfg.Width, cfg.Height)

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}

	b.log.Info("gui window created",
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
	)
	return b, nil
}

// Run starts the main render loop. It returns when the window closes.
func (b *Backend) Run(renderFunc func()) {
	b.backend.Run(renderFunc)
}

// OnDrop calls fn with the paths of files dropped on the window.
func (b *Backend) OnDrop(fn func(paths []string)) {
	b.backend.SetDropCallback(fn)
}

// SetWindowTitle updates the window title.
func (b *Backend) SetWindowTitle(title string) {
	b.backend.SetWindowTitle(title)
}

// WorkArea returns the main viewport work area in screen units.
func WorkArea() (pos, size imgui.Vec2) {
	viewport := imgui.MainViewport()
	return viewport.WorkPos(), viewport.WorkSize()
}

// FramebufferScale returns the pixels per screen unit.
func FramebufferScale() imgui.Vec2 {
	return imgui.CurrentIO().DisplayFramebufferScale()
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}
