package ui

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sqweek/dialog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/internal/viewer"
)

// PointSizer is the part of the GL renderer the panel adjusts.
type PointSizer interface {
	SetPointSize(size float32)
	PointSize() float32
}

// Panel is the "Configuration" window.
type Panel struct {
	v   *viewer.Viewer
	gpu PointSizer
	cfg *config.Config
	log *zap.Logger

	hovered bool

	// File dialog results, applied on the main thread.
	mu         sync.Mutex
	pending    []string
	dialogOpen bool

	fov, near, far float32
	pointSize      int32
	bg, pointColor [4]float32

	preview        *backend.Texture
	previewName    string
	previewVersion uint64
	previewSize    [2]int
}

// NewPanel creates the panel for v. gpu may be nil when point size is
// fixed.
func NewPanel(v *viewer.Viewer, gpu PointSizer) *Panel {
	cfg := v.Config()
	near, far := v.Viewport().Clip()
	p := &Panel{
		v:         v,
		gpu:       gpu,
		cfg:       cfg,
		log:       logger.Named("panel"),
		fov:       float32(v.Viewport().FoV()),
		near:      float32(near),
		far:       float32(far),
		pointSize: int32(cfg.Render.PointSize),
	}
	copy(p.bg[:], cfg.Render.Background)
	copy(p.pointColor[:], viewer.Color(cfg.Render.PointColor)[:])
	return p
}

// Captured reports whether the panel owns the mouse. Install it as
// viewer.Controls.Captured.
func (p *Panel) Captured() bool {
	return imgui.IsAnyItemActive() || p.hovered
}

// Background returns the clear color picked in the panel.
func (p *Panel) Background() mgl32.Vec4 { return mgl32.Vec4(p.bg) }

// ProcessPending opens files chosen in the dialog. Call it from the render
// thread.
func (p *Panel) ProcessPending() {
	p.mu.Lock()
	paths := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	if err := p.v.OpenAll(paths); err != nil {
		p.log.Warn("open failed", zap.Error(err))
	}
}

// Queue adds paths to be opened on the next frame. Safe to call from any
// goroutine, which makes it usable as a drop callback.
func (p *Panel) Queue(paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, paths...)
}

// openFileDialog shows a native dialog without blocking the frame loop.
func (p *Panel) openFileDialog() {
	p.mu.Lock()
	if p.dialogOpen {
		p.mu.Unlock()
		return
	}
	p.dialogOpen = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.dialogOpen = false
			p.mu.Unlock()
		}()

		filename, err := dialog.File().
			Filter("Point clouds", "pcd", "ply", "xyz", "pts").
			Filter("Meshes", "gltf", "glb", "ply").
			Filter("Trajectories", "tum", "txt").
			Filter("Images", "png", "jpg", "jpeg", "bmp").
			Filter("All Files", "*").
			Title("Open").
			Load()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				p.log.Warn("file dialog error", zap.Error(err))
			}
			return
		}
		p.Queue([]string{filename})
	}()
}

// RenderGUI implements viewer.GUIRenderer.
func (p *Panel) RenderGUI() {
	if !p.cfg.Panel.Show {
		p.hovered = false
		return
	}

	pos, size := WorkArea()
	width := p.cfg.Panel.Width
	imgui.SetNextWindowPos(imgui.NewVec2(pos.X+size.X-width, pos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(width, 0))
	if p.cfg.Panel.Transparent {
		imgui.SetNextWindowBgAlpha(0.6)
	}

	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize |
		imgui.WindowFlagsAlwaysAutoResize | imgui.WindowFlagsNoSavedSettings
	if imgui.BeginV("Configuration", nil, flags) {
		p.hovered = imgui.IsWindowHovered()
		p.renderCamera()
		imgui.Separator()
		p.renderAppearance()
		imgui.Separator()
		p.renderActions()
		imgui.Separator()
		p.renderStatus()
		p.renderPreview()
	} else {
		p.hovered = false
	}
	imgui.End()
}

func (p *Panel) renderCamera() {
	vp := p.v.Viewport()
	logClamp := imgui.SliderFlagsLogarithmic | imgui.SliderFlagsAlwaysClamp
	changed := imgui.SliderFloatV("FoV", &p.fov, 10, 120, "%.0f deg", imgui.SliderFlagsAlwaysClamp)
	changed = imgui.SliderFloatV("Near", &p.near, 0.01, 10, "%.2f", logClamp) || changed
	changed = imgui.SliderFloatV("Far", &p.far, 1, 10000, "%.0f", logClamp) || changed
	if changed {
		if p.far <= p.near {
			p.far = p.near * 10
		}
		if err := vp.SetProjection(float64(p.near), float64(p.far), float64(p.fov)); err != nil {
			p.log.Warn("projection rejected", zap.Error(err))
			near, far := vp.Clip()
			p.near, p.far, p.fov = float32(near), float32(far), float32(vp.FoV())
		}
	}

	follow := p.v.Following()
	if imgui.Checkbox("Follow", &follow) {
		p.v.SetFollow(follow)
	}
	imgui.SameLine()
	if imgui.Button("Reset view") {
		vp.Reset()
	}
	imgui.SameLine()
	if imgui.Button("Frame all") {
		p.v.FrameScene()
	}
}

func (p *Panel) renderAppearance() {
	if p.gpu != nil {
		if imgui.SliderIntV("Point size", &p.pointSize, 1, 10, "%d", imgui.SliderFlagsNone) {
			p.gpu.SetPointSize(float32(p.pointSize))
			p.cfg.Render.PointSize = int(p.pointSize)
		}
	}

	if sr := p.v.SceneRenderer(); sr != nil {
		imgui.Checkbox("Show grid", &sr.ShowGrid)
		imgui.SameLine()
		imgui.Checkbox("Show axes", &sr.ShowAxes)
		imgui.SameLine()
		imgui.Checkbox("Bounds", &sr.ShowBounds)
	}

	if imgui.ColorEdit4("Background", &p.bg) {
		p.cfg.Render.Background = p.bg[:]
	}
	if imgui.ColorEdit4("Point color", &p.pointColor) {
		p.cfg.Render.PointColor = p.pointColor[:]
		p.v.RecolorPoints(mgl32.Vec4(p.pointColor))
	}
}

func (p *Panel) renderActions() {
	if imgui.Button("Open...") {
		p.openFileDialog()
	}
	imgui.SameLine()
	if imgui.Button("Save snapshot") {
		if _, err := p.v.Snapshot(); err != nil {
			p.log.Warn("snapshot failed", zap.Error(err))
		}
	}
	imgui.SameLine()

	n := p.v.Notifier()
	label := "Stopped"
	if n.Running() {
		label = "Running"
	}
	if imgui.Button(label) {
		n.Toggle()
	}

	if pb := p.v.Playback(); pb != nil && pb.Len() > 0 {
		frame := int32(pb.Index())
		if imgui.SliderIntV("Pose", &frame, 0, int32(pb.Len()-1), "%d", imgui.SliderFlagsNone) {
			pb.Seek(int(frame))
		}
	}
}

func (p *Panel) renderStatus() {
	io := imgui.CurrentIO()
	cam := p.v.Viewport().CameraPosition()
	imgui.Text(fmt.Sprintf("%.0f FPS, %d items", io.Framerate(), p.v.Scene().Len()))
	imgui.Text(fmt.Sprintf("Camera %.2f %.2f %.2f", cam[0], cam[1], cam[2]))
	if s := p.v.Status(); s != "" {
		imgui.TextWrapped(s)
	}
	debug := logger.Level() == zapcore.DebugLevel
	if imgui.Checkbox("Debug log", &debug) {
		if debug {
			logger.SetLevel(zapcore.DebugLevel)
		} else {
			logger.SetLevel(zapcore.InfoLevel)
		}
	}
}

// renderPreview shows the most recently added image item.
func (p *Panel) renderPreview() {
	var latest viewer.Item
	scene := p.v.Scene()
	for _, name := range scene.Names() {
		it, ok := scene.Get(name)
		if ok && it.Type == viewer.Image && it.Image != nil && it.Version > latest.Version {
			latest = it
		}
	}
	if latest.Image == nil {
		p.releasePreview()
		return
	}
	if latest.Name != p.previewName || latest.Version != p.previewVersion {
		p.releasePreview()
		b := latest.Image.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), latest.Image, b.Min, draw.Src)
		p.preview = backend.NewTextureFromRgba(rgba)
		p.previewName, p.previewVersion = latest.Name, latest.Version
		p.previewSize = [2]int{b.Dx(), b.Dy()}
	}

	imgui.Separator()
	imgui.Text(fmt.Sprintf("%s (%dx%d)", p.previewName, p.previewSize[0], p.previewSize[1]))
	avail := imgui.ContentRegionAvail()
	w := avail.X
	h := w * float32(p.previewSize[1]) / float32(p.previewSize[0])
	imgui.ImageWithBgV(
		p.preview.ID,
		imgui.NewVec2(w, h),
		imgui.NewVec2(0, 0),
		imgui.NewVec2(1, 1),
		imgui.NewVec4(0, 0, 0, 0),
		imgui.NewVec4(1, 1, 1, 1),
	)
}

func (p *Panel) releasePreview() {
	if p.preview != nil {
		p.preview.Release()
		p.preview = nil
	}
	p.previewName, p.previewVersion = "", 0
}

// Close releases the preview texture.
func (p *Panel) Close() error {
	p.releasePreview()
	return nil
}
