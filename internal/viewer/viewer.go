// Package viewer holds the scene data model and the frame loop logic shared
// by the GUI and the raw SDL frontends: camera controls, follow mode,
// trajectory playback, file loading and snapshots.
package viewer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/camera"
	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/engine/snapshot"
	"github.com/Faultbox/liteviz/internal/engine/viewport"
	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/pkg/math"
)

// ErrNoLoader is returned by Open when no LoadFunc was configured.
var ErrNoLoader = errors.New("no loader configured")

// ErrNoFrame is returned by Snapshot when no frame source is attached.
var ErrNoFrame = errors.New("no frame source attached")

// LoadFunc reads a file into a scene item.
type LoadFunc func(path string) (Item, error)

// FrameSource exposes the pixels of the last rendered frame. The offscreen
// framebuffer implements it.
type FrameSource interface {
	ReadColor() []byte
	ReadDepth() []float32
	Size() (width, height int32)
}

// ViewportConfig converts the camera section of the config into a
// viewport configuration for a width x height window.
func ViewportConfig(c config.CameraConfig, width, height int) (viewport.Config, error) {
	if len(c.Eye) != 3 || len(c.Center) != 3 || len(c.Up) != 3 {
		return viewport.Config{}, fmt.Errorf("%w: eye, center and up need 3 components", config.ErrInvalid)
	}
	return viewport.Config{
		Width:  width,
		Height: height,
		Eye:    mgl64.Vec3{c.Eye[0], c.Eye[1], c.Eye[2]},
		Center: mgl64.Vec3{c.Center[0], c.Center[1], c.Center[2]},
		Up:     mgl64.Vec3{c.Up[0], c.Up[1], c.Up[2]},
		FoV:    c.FoV,
		Near:   c.Near,
		Far:    c.Far,
		Sensitivity: camera.Sensitivity{
			Rotate: c.RotateSensitivity,
			Pan:    c.PanSensitivity,
			Zoom:   c.ZoomSensitivity,
		},
		DefaultDepth: c.DefaultDepth,
	}, nil
}

// Color converts an RGBA config slice. Missing components default to 1.
func Color(c []float32) mgl32.Vec4 {
	out := mgl32.Vec4{1, 1, 1, 1}
	copy(out[:], c)
	return out
}

// Viewer ties the viewport, the scene and the registered renderers
// together. All methods except those of Scene and Notifier must be called
// from the render thread.
type Viewer struct {
	cfg *config.Config
	log *zap.Logger

	vp       *viewport.Viewport
	scene    *Scene
	notifier *Notifier
	controls *Controls
	limiter  *FrameLimiter
	capture  *snapshot.Capture

	renderers []Renderer
	guis      []GUIRenderer
	sceneR    *SceneRenderer
	closers   []io.Closer

	load  LoadFunc
	frame FrameSource

	follow   bool
	playback *Playback
	playName string

	status string
}

// New builds a viewer from cfg.
func New(cfg *config.Config) (*Viewer, error) {
	vpCfg, err := ViewportConfig(cfg.Camera, cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		return nil, err
	}
	vp, err := viewport.New(vpCfg)
	if err != nil {
		return nil, fmt.Errorf("creating viewport: %w", err)
	}

	v := &Viewer{
		cfg:      cfg,
		log:      logger.Named("viewer"),
		vp:       vp,
		scene:    NewScene(),
		notifier: NewNotifier(),
		controls: NewControls(vp),
		limiter:  NewFrameLimiter(cfg.Window.TargetFPS),
		capture:  snapshot.New(cfg.Snapshot.Dir),
	}
	v.bindKeys()
	return v, nil
}

func (v *Viewer) bindKeys() {
	v.controls.BindKey(KeyReset, v.vp.Reset)
	v.controls.BindKey(KeyFollow, func() { v.SetFollow(!v.follow) })
	v.controls.BindKey(KeyGrid, func() {
		if v.sceneR != nil {
			v.sceneR.ShowGrid = !v.sceneR.ShowGrid
		}
	})
	v.controls.BindKey(KeySnapshot, func() {
		if _, err := v.Snapshot(); err != nil {
			v.log.Warn("snapshot failed", zap.Error(err))
		}
	})
	v.controls.BindKey(KeyPause, func() {
		running := v.notifier.Toggle()
		v.log.Info("producers toggled", zap.Bool("running", running))
	})
	v.controls.BindKey(KeyFrame, v.FrameScene)
	v.controls.BindKey(KeyBounds, func() {
		if v.sceneR != nil {
			v.sceneR.ShowBounds = !v.sceneR.ShowBounds
		}
	})
}

// Viewport returns the viewport.
func (v *Viewer) Viewport() *viewport.Viewport { return v.vp }

// Scene returns the shared scene store.
func (v *Viewer) Scene() *Scene { return v.scene }

// Notifier returns the run/pause gate.
func (v *Viewer) Notifier() *Notifier { return v.notifier }

// Controls returns the input bindings.
func (v *Viewer) Controls() *Controls { return v.controls }

// Limiter returns the frame limiter.
func (v *Viewer) Limiter() *FrameLimiter { return v.limiter }

// Config returns the configuration the viewer was built with.
func (v *Viewer) Config() *config.Config { return v.cfg }

// SetLoader installs the function used by Open.
func (v *Viewer) SetLoader(fn LoadFunc) { v.load = fn }

// SetFrameSource attaches the framebuffer snapshots read from.
func (v *Viewer) SetFrameSource(fs FrameSource) { v.frame = fs }

// AttachGPU creates the scene renderer on top of gpu and registers it
// first.
func (v *Viewer) AttachGPU(gpu Uploader) *SceneRenderer {
	v.sceneR = NewSceneRenderer(v.scene, gpu)
	v.sceneR.ShowGrid = v.cfg.Render.ShowGrid
	v.sceneR.ShowAxes = v.cfg.Render.ShowAxes
	v.renderers = append([]Renderer{v.sceneR}, v.renderers...)
	return v.sceneR
}

// SceneRenderer returns the renderer created by AttachGPU, or nil.
func (v *Viewer) SceneRenderer() *SceneRenderer { return v.sceneR }

// AddRenderer registers an extra scene renderer.
func (v *Viewer) AddRenderer(r Renderer) { v.renderers = append(v.renderers, r) }

// AddGUI registers a panel renderer.
func (v *Viewer) AddGUI(g GUIRenderer) { v.guis = append(v.guis, g) }

// AddCloser registers a resource released by Close, in reverse order.
func (v *Viewer) AddCloser(c io.Closer) { v.closers = append(v.closers, c) }

// Status returns the last status message.
func (v *Viewer) Status() string { return v.status }

// SetFollow turns follow mode on or off.
func (v *Viewer) SetFollow(on bool) {
	v.follow = on
	if !on {
		v.vp.Follow(math.Rigid{}, false)
	}
	v.log.Debug("follow mode", zap.Bool("on", on))
}

// Following reports whether follow mode is requested.
func (v *Viewer) Following() bool { return v.follow }

// Playback returns the active trajectory playback, or nil.
func (v *Viewer) Playback() *Playback { return v.playback }

// Update advances per-frame state: trajectory playback while producers
// run, then follow mode.
func (v *Viewer) Update() {
	if v.playback != nil && v.notifier.Running() {
		if v.playback.Step(1) {
			v.scene.SetPose(v.playName+"/camera", v.playback.CurrentRigid())
		}
	}
	if !v.follow {
		return
	}
	if target, ok := v.followTarget(); ok {
		v.vp.Follow(target, true)
	}
}

// followTarget prefers a streamed pose over the trajectory being played.
func (v *Viewer) followTarget() (math.Rigid, bool) {
	if pose, ok := v.scene.Follow(); ok {
		return pose, true
	}
	if v.playback != nil && v.playback.Len() > 0 {
		return v.playback.CurrentRigid(), true
	}
	return math.Rigid{}, false
}

// Render runs every registered scene renderer.
func (v *Viewer) Render() {
	for _, r := range v.renderers {
		r.Render(v.vp)
	}
}

// RenderGUI runs every registered panel renderer.
func (v *Viewer) RenderGUI() {
	for _, g := range v.guis {
		g.RenderGUI()
	}
}

// Resize updates the window and framebuffer sizes.
func (v *Viewer) Resize(winW, winH, fbW, fbH int) {
	v.vp.SetWindowSize(winW, winH)
	v.vp.SetFramebufferSize(fbW, fbH)
}

// Open loads path and adds it to the scene under its base name.
// Trajectories also start playback and get a camera frustum.
func (v *Viewer) Open(path string) error {
	if v.load == nil {
		return ErrNoLoader
	}
	it, err := v.load(path)
	if err != nil {
		v.status = fmt.Sprintf("failed to open %s", filepath.Base(path))
		return fmt.Errorf("opening %s: %w", path, err)
	}
	v.Add(it)
	v.status = fmt.Sprintf("opened %s (%s)", it.Name, it.Type)
	v.log.Info("file opened",
		zap.String("path", path),
		zap.String("name", it.Name),
		zap.Stringer("type", it.Type),
		zap.Int("vertices", vertexCount(it.Mesh)),
	)
	return nil
}

// OpenAll opens every path and returns the combined errors.
func (v *Viewer) OpenAll(paths []string) error {
	var err error
	for _, p := range paths {
		err = multierr.Append(err, v.Open(p))
	}
	return err
}

// Add puts an item in the scene, recoloring uncolored geometry with the
// configured colors.
func (v *Viewer) Add(it Item) {
	switch it.Type {
	case Trajectory:
		if it.Mesh != nil {
			it.Mesh.SetColor(Color(v.cfg.Render.TrajectoryColor))
		}
		if it.Trajectory != nil && it.Trajectory.Len() > 0 {
			v.playback = NewPlayback(it.Trajectory)
			v.playName = it.Name
			cam := mesh.Frustum(1, 0.5, 0.3, 0.2)
			cam.SetColor(Color(v.cfg.Render.FrustumColor))
			v.scene.Put(Item{
				Name: it.Name + "/camera",
				Type: Mesh,
				Mesh: cam,
				Pose: v.playback.CurrentRigid(),
			})
		}
	}
	v.scene.Put(it)
}

// RecolorPoints applies c to every single-color point cloud. Clouds with
// per-point colors are left alone.
func (v *Viewer) RecolorPoints(c mgl32.Vec4) {
	for _, name := range v.scene.Names() {
		it, ok := v.scene.Get(name)
		if !ok || it.Type != PointCloud || it.Mesh == nil || !uniformColor(it.Mesh) {
			continue
		}
		m := it.Mesh.Clone()
		m.SetColor(c)
		it.Mesh = m
		v.scene.Put(it)
	}
}

func uniformColor(m *mesh.Mesh) bool {
	var first mgl32.Vec4
	seen := false
	for _, p := range m.Parts {
		for _, c := range p.Colors {
			if !seen {
				first, seen = c, true
			} else if c != first {
				return false
			}
		}
	}
	return seen
}

// DropFile handles a file dropped on the window.
func (v *Viewer) DropFile(path string) {
	if err := v.Open(path); err != nil {
		v.log.Warn("dropped file not loaded", zap.String("path", path), zap.Error(err))
	}
}

// FrameScene moves the camera so every scene item is in view.
func (v *Viewer) FrameScene() {
	var all mesh.Bounds
	found := false
	for _, name := range v.scene.Names() {
		it, ok := v.scene.Get(name)
		if !ok || it.Mesh == nil {
			continue
		}
		b, ok := it.Mesh.Bounds()
		if !ok {
			continue
		}
		b = transformBounds(b, it.Pose)
		if !found {
			all, found = b, true
		} else {
			all = all.Union(b)
		}
	}
	if found {
		v.vp.Frame(math.Vec3To64(all.Min), math.Vec3To64(all.Max))
	}
}

// transformBounds returns the box enclosing b after pose.
func transformBounds(b mesh.Bounds, pose math.Rigid) mesh.Bounds {
	var out mesh.Bounds
	for i := 0; i < 8; i++ {
		c := b.Min
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		p := math.Vec3To32(pose.TransformPoint(math.Vec3To64(c)))
		if i == 0 {
			out = mesh.Bounds{Min: p, Max: p}
			continue
		}
		out = out.Union(mesh.Bounds{Min: p, Max: p})
	}
	return out
}

// Snapshot writes the current frame to the snapshot directory.
func (v *Viewer) Snapshot() (snapshot.Paths, error) {
	if v.frame == nil {
		return snapshot.Paths{}, ErrNoFrame
	}
	w, h := v.frame.Size()
	paths, err := v.capture.Save(v.frame.ReadColor(), v.frame.ReadDepth(), int(w), int(h))
	if err != nil {
		v.status = "snapshot failed"
		return paths, err
	}
	v.status = "saved " + strings.Join([]string{filepath.Base(paths.Color), filepath.Base(paths.Depth)}, ", ")
	v.log.Info("snapshot saved", zap.String("color", paths.Color), zap.String("depth", paths.Depth))
	return paths, nil
}

// Close releases registered resources in reverse order and reports every
// failure.
func (v *Viewer) Close() error {
	var err error
	for i := len(v.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, v.closers[i].Close())
	}
	v.closers = nil
	return err
}

func vertexCount(m *mesh.Mesh) int {
	if m == nil {
		return 0
	}
	return m.VertexCount()
}

// DemoScene fills s with the default content shown when no file is given:
// a cube, a random point cloud and a camera frustum.
func DemoScene(s *Scene, cfg *config.Config) {
	s.Put(Item{Name: "demo/cube", Type: Mesh, Mesh: mesh.Cube(0.5)})

	cloud := mesh.RandomPointCloud(2000, 1)
	cloud.SetColor(Color(cfg.Render.PointColor))
	s.Put(Item{
		Name: "demo/points",
		Type: PointCloud,
		Mesh: cloud,
		Pose: math.Translation(mgl64.Vec3{0, 0, 1.5}),
	})

	frustum := mesh.Frustum(1, 0.5, 0.3, 0.3)
	frustum.SetColor(Color(cfg.Render.FrustumColor))
	s.Put(Item{
		Name: "demo/camera",
		Type: Mesh,
		Mesh: frustum,
		Pose: math.NewRigid(mgl64.QuatRotate(mgl64.DegToRad(-90), mgl64.Vec3{1, 0, 0}), mgl64.Vec3{1.5, 0, 0.5}),
	})
}
