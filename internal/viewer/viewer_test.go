package viewer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/engine/viewport"
	"github.com/Faultbox/liteviz/pkg/formats"
	"github.com/Faultbox/liteviz/pkg/math"
)

func newTestViewer(t *testing.T) *Viewer {
	t.Helper()
	cfg := config.Default()
	cfg.Snapshot.Dir = t.TempDir()
	v, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

func TestViewportConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.RotateSensitivity = 0.01
	vc, err := ViewportConfig(cfg.Camera, 640, 480)
	if err != nil {
		t.Fatal(err)
	}
	if vc.Width != 640 || vc.Eye != (mgl64.Vec3{2, 2, 2}) || vc.Sensitivity.Rotate != 0.01 {
		t.Errorf("config = %+v", vc)
	}

	cfg.Camera.Up = []float64{0, 1}
	if _, err := ViewportConfig(cfg.Camera, 640, 480); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestColor(t *testing.T) {
	if c := Color([]float32{0.5, 0.25}); c != (mgl32.Vec4{0.5, 0.25, 1, 1}) {
		t.Errorf("Color = %v", c)
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) fn(name string) func(mgl64.Vec2) {
	return func(mgl64.Vec2) { r.calls = append(r.calls, name) }
}

func TestControls_Gestures(t *testing.T) {
	v := newTestViewer(t)
	c := v.Controls()
	rec := &recorder{}
	c.OnPress = rec.fn("press")
	c.OnDrag = map[MouseButton]func(mgl64.Vec2){
		ButtonLeft:  rec.fn("translate"),
		ButtonRight: rec.fn("rotate"),
	}
	var zoomed []float64
	c.OnScroll = func(d float64) { zoomed = append(zoomed, d) }

	c.MouseMove(mgl64.Vec2{1, 1}) // no button held
	c.MouseDown(ButtonLeft, mgl64.Vec2{1, 1})
	c.MouseMove(mgl64.Vec2{2, 2})
	c.MouseUp(ButtonLeft)
	c.MouseDown(ButtonRight, mgl64.Vec2{1, 1})
	c.MouseMove(mgl64.Vec2{3, 3})
	c.MouseDown(ButtonMiddle, mgl64.Vec2{0, 0}) // unbound
	c.MouseUp(ButtonRight)
	c.Scroll(0.005)
	c.Scroll(-1)

	want := []string{"press", "translate", "press", "rotate"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", rec.calls, want)
		}
	}
	if len(zoomed) != 1 || zoomed[0] != -1 {
		t.Errorf("zoom calls = %v", zoomed)
	}
}

func TestControls_CapturedByGUI(t *testing.T) {
	v := newTestViewer(t)
	c := v.Controls()
	rec := &recorder{}
	c.OnPress = rec.fn("press")
	c.OnScroll = func(float64) { rec.calls = append(rec.calls, "zoom") }
	c.Captured = func() bool { return true }

	c.MouseDown(ButtonLeft, mgl64.Vec2{})
	c.Scroll(3)
	if len(rec.calls) != 0 || c.Dragging() != ButtonNone {
		t.Errorf("captured input reached the camera: %v", rec.calls)
	}
}

func TestControls_DefaultBindingsMoveCamera(t *testing.T) {
	v := newTestViewer(t)
	before := v.Viewport().CameraPosition()
	v.Controls().Scroll(2)
	if v.Viewport().CameraPosition() == before {
		t.Error("scroll did not zoom")
	}
}

func TestViewer_Keys(t *testing.T) {
	v := newTestViewer(t)
	start := v.Viewport().CameraPosition()
	v.Controls().Scroll(5)
	if !v.Controls().KeyDown(KeyReset) {
		t.Fatal("reset key unbound")
	}
	if !math.Vec3Near(v.Viewport().CameraPosition(), start, 1e-9) {
		t.Error("reset did not restore the camera")
	}

	v.Controls().KeyDown(KeyFollow)
	if !v.Following() {
		t.Error("follow key did not enable follow mode")
	}

	v.Controls().KeyDown(KeyPause)
	if v.Notifier().Running() {
		t.Error("pause key did not stop producers")
	}

	if v.Controls().KeyDown(KeyNone) {
		t.Error("unbound key reported handled")
	}
}

type fakeGPU struct {
	uploads map[string]int
	removed []string
	drawn   []string
}

func newFakeGPU() *fakeGPU { return &fakeGPU{uploads: map[string]int{}} }

func (g *fakeGPU) Upload(key string, m *mesh.Mesh) { g.uploads[key]++ }
func (g *fakeGPU) Remove(key string)               { g.removed = append(g.removed, key) }
func (g *fakeGPU) Draw(key string, viewProj, model mgl32.Mat4, alpha float32) {
	g.drawn = append(g.drawn, key)
}

func TestSceneRenderer(t *testing.T) {
	v := newTestViewer(t)
	gpu := newFakeGPU()
	r := v.AttachGPU(gpu)
	r.ShowAxes = false

	v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: mesh.Cube(1)})
	v.Scene().Put(Item{Name: "img", Type: Image})
	v.Render()

	if gpu.uploads[itemKey("cube")] != 1 || gpu.uploads[gridKey] != 1 {
		t.Errorf("uploads = %v", gpu.uploads)
	}
	if len(gpu.drawn) != 2 || gpu.drawn[0] != gridKey || gpu.drawn[1] != itemKey("cube") {
		t.Errorf("drawn = %v", gpu.drawn)
	}

	// A pose change must not re-upload geometry.
	v.Scene().SetPose("cube", math.Translation(mgl64.Vec3{1, 0, 0}))
	v.Render()
	if gpu.uploads[itemKey("cube")] != 1 {
		t.Errorf("pose update re-uploaded: %v", gpu.uploads)
	}

	v.Scene().Remove("cube")
	gpu.drawn = nil
	v.Render()
	if len(gpu.removed) != 1 || gpu.removed[0] != itemKey("cube") {
		t.Errorf("removed = %v", gpu.removed)
	}
	if len(gpu.drawn) != 1 {
		t.Errorf("drawn after removal = %v", gpu.drawn)
	}
}

func TestSceneRenderer_ItemKeysDoNotAlias(t *testing.T) {
	tests := []struct {
		name  string
		alias string
	}{
		{"grid", gridKey},
		{"axes", axesKey},
		{"bounds of other item", boundsKey("cube")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViewer(t)
			gpu := newFakeGPU()
			r := v.AttachGPU(gpu)
			r.ShowBounds = true

			v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: mesh.Cube(1)})
			v.Scene().Put(Item{Name: tt.alias, Type: Mesh, Mesh: mesh.Cube(2)})
			v.Render()
			v.Scene().Remove(tt.alias)
			v.Render()

			if gpu.uploads[tt.alias] != 1 {
				t.Errorf("uploads[%q] = %d, want 1", tt.alias, gpu.uploads[tt.alias])
			}
			for _, key := range gpu.removed {
				if key == tt.alias {
					t.Errorf("removing item %q dropped buffer %q", tt.alias, key)
				}
			}
			if gpu.uploads[itemKey(tt.alias)] != 1 {
				t.Errorf("item %q uploaded %d times", tt.alias, gpu.uploads[itemKey(tt.alias)])
			}
		})
	}
}

type overlay struct {
	gpu *fakeGPU
}

func (o overlay) Render(vp *viewport.Viewport) { o.gpu.drawn = append(o.gpu.drawn, "overlay") }

func TestViewer_SceneDrawsBeforeExtraRenderers(t *testing.T) {
	v := newTestViewer(t)
	gpu := newFakeGPU()
	v.AddRenderer(overlay{gpu: gpu})
	r := v.AttachGPU(gpu)
	r.ShowGrid, r.ShowAxes = false, false

	v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: mesh.Cube(1)})
	v.Render()

	if len(gpu.drawn) != 2 || gpu.drawn[0] != itemKey("cube") || gpu.drawn[1] != "overlay" {
		t.Errorf("drawn = %v, want [cube overlay]", gpu.drawn)
	}
}

func TestViewer_Open(t *testing.T) {
	v := newTestViewer(t)
	if err := v.Open("x.pcd"); !errors.Is(err, ErrNoLoader) {
		t.Fatalf("expected ErrNoLoader, got %v", err)
	}

	failure := errors.New("boom")
	v.SetLoader(func(path string) (Item, error) {
		if filepath.Ext(path) == ".bad" {
			return Item{}, failure
		}
		return Item{Name: filepath.Base(path), Type: PointCloud, Mesh: mesh.RandomPointCloud(5, 2)}, nil
	})

	err := v.OpenAll([]string{"a.pcd", "b.bad", "c.bad"})
	if !errors.Is(err, failure) {
		t.Errorf("OpenAll = %v", err)
	}
	if _, ok := v.Scene().Get("a.pcd"); !ok {
		t.Error("a.pcd not in scene")
	}
	if v.Scene().Len() != 1 {
		t.Errorf("scene has %d items", v.Scene().Len())
	}
}

func TestViewer_TrajectoryPlaybackDrivesFollow(t *testing.T) {
	v := newTestViewer(t)
	traj := &formats.Trajectory{Poses: []formats.Pose{
		{Time: 0, Position: mgl64.Vec3{0, 0, 0}, Rotation: mgl64.QuatIdent()},
		{Time: 1, Position: mgl64.Vec3{1, 0, 0}, Rotation: mgl64.QuatIdent()},
	}}
	v.Add(Item{Name: "run", Type: Trajectory, Mesh: mesh.Line([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, mgl32.Vec4{}), Trajectory: traj})
	if _, ok := v.Scene().Get("run/camera"); !ok {
		t.Fatal("trajectory camera not added")
	}

	v.SetFollow(true)
	start := v.Viewport().CameraPosition()
	v.Update() // seeds follow at pose 1
	v.Update() // end reached, target unchanged
	if !math.Vec3Near(v.Viewport().CameraPosition(), start, 1e-9) {
		t.Error("camera moved on the seeding frame")
	}
	if v.Playback().Index() != 1 {
		t.Errorf("playback index = %d", v.Playback().Index())
	}
	cam, _ := v.Scene().Get("run/camera")
	if cam.Pose.Position() != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("camera item at %v", cam.Pose.Position())
	}
}

func TestViewer_StreamedFollowMovesCamera(t *testing.T) {
	v := newTestViewer(t)
	v.SetFollow(true)
	v.Scene().SetFollow(math.RigidIdentity())
	v.Update()
	start := v.Viewport().CameraPosition()

	v.Scene().SetFollow(math.Translation(mgl64.Vec3{0, 0, 2}))
	v.Update()
	got := v.Viewport().CameraPosition()
	if !math.Vec3Near(got, start.Add(mgl64.Vec3{0, 0, 2}), 1e-9) {
		t.Errorf("camera at %v, want %v", got, start.Add(mgl64.Vec3{0, 0, 2}))
	}
}

func TestPlayback(t *testing.T) {
	p := NewPlayback(&formats.Trajectory{Poses: make([]formats.Pose, 3)})
	if !p.Step(1) || !p.Step(1) || p.Step(1) {
		t.Error("Step did not stop at the end")
	}
	p.Seek(-4)
	if p.Index() != 0 {
		t.Errorf("Seek clamped to %d", p.Index())
	}
	empty := NewPlayback(nil)
	if _, ok := empty.Current(); ok || empty.CurrentRigid() != math.RigidIdentity() {
		t.Error("empty playback returned a pose")
	}
}

type fakeFrame struct{ w, h int32 }

func (f fakeFrame) ReadColor() []byte    { return make([]byte, f.w*f.h*4) }
func (f fakeFrame) ReadDepth() []float32 { return make([]float32, f.w*f.h) }
func (f fakeFrame) Size() (int32, int32) { return f.w, f.h }

func TestViewer_Snapshot(t *testing.T) {
	v := newTestViewer(t)
	if _, err := v.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
	v.SetFrameSource(fakeFrame{4, 3})
	paths, err := v.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{paths.Color, paths.Depth} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("snapshot file missing: %v", err)
		}
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestViewer_CloseAggregatesErrors(t *testing.T) {
	v := newTestViewer(t)
	var order []int
	errA, errB := errors.New("a"), errors.New("b")
	v.AddCloser(closeFunc(func() error { order = append(order, 1); return errA }))
	v.AddCloser(closeFunc(func() error { order = append(order, 2); return nil }))
	v.AddCloser(closeFunc(func() error { order = append(order, 3); return errB }))

	err := v.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("close order = %v", order)
	}
}

func TestViewer_FrameScene(t *testing.T) {
	v := newTestViewer(t)
	v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: mesh.Cube(2), Pose: math.Translation(mgl64.Vec3{10, 0, 0})})
	v.FrameScene()

	// The cube center must end up straight ahead of the camera.
	res := v.Viewport().PixelUnproject(mgl64.Vec2{640, 360}, 0.5)
	dir := res.World.Sub(v.Viewport().CameraPosition()).Normalize()
	toCube := mgl64.Vec3{10, 0, 0}.Sub(v.Viewport().CameraPosition()).Normalize()
	if !math.Vec3Near(dir, toCube, 1e-6) {
		t.Errorf("view direction %v, want %v", dir, toCube)
	}
}

func TestDemoScene(t *testing.T) {
	s := NewScene()
	DemoScene(s, config.Default())
	if s.Len() != 3 {
		t.Errorf("demo scene has %d items", s.Len())
	}
}

func TestViewer_RecolorPoints(t *testing.T) {
	v := newTestViewer(t)
	plain := mesh.PointCloud([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, mgl32.Vec4{0, 0, 0, 1})
	colored, err := mesh.ColoredPointCloud(
		[]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}},
		[]mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}},
	)
	if err != nil {
		t.Fatal(err)
	}
	v.Scene().Put(Item{Name: "plain", Type: PointCloud, Mesh: plain})
	v.Scene().Put(Item{Name: "colored", Type: PointCloud, Mesh: colored})

	red := mgl32.Vec4{1, 0, 0, 1}
	v.RecolorPoints(red)

	it, _ := v.Scene().Get("plain")
	if it.Mesh == plain || it.Mesh.Parts[0].Colors[1] != red {
		t.Errorf("plain cloud not recolored: %v", it.Mesh.Parts[0].Colors)
	}
	if plain.Parts[0].Colors[0] != (mgl32.Vec4{0, 0, 0, 1}) {
		t.Error("original mesh was modified")
	}
	it, _ = v.Scene().Get("colored")
	if it.Mesh != colored {
		t.Error("per-point colors were replaced")
	}
}

func TestSceneRenderer_Bounds(t *testing.T) {
	v := newTestViewer(t)
	gpu := newFakeGPU()
	v.AttachGPU(gpu)

	cube := mesh.Cube(1)
	v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: cube})
	v.Render()
	if gpu.uploads[boundsKey("cube")] != 0 {
		t.Fatal("bounds uploaded while hidden")
	}

	v.Controls().KeyDown(KeyBounds)
	v.Render()
	v.Render()
	if gpu.uploads[boundsKey("cube")] != 1 {
		t.Errorf("bounds uploads = %d, want 1", gpu.uploads[boundsKey("cube")])
	}
	last := gpu.drawn[len(gpu.drawn)-1]
	if last != boundsKey("cube") {
		t.Errorf("last draw = %s", last)
	}

	// New geometry invalidates the box.
	v.Scene().Put(Item{Name: "cube", Type: Mesh, Mesh: mesh.Cube(2)})
	v.Render()
	if gpu.uploads[boundsKey("cube")] != 2 {
		t.Errorf("bounds not rebuilt: %v", gpu.uploads)
	}

	v.Scene().Remove("cube")
	v.Render()
	if len(gpu.removed) != 3 {
		t.Errorf("removed = %v", gpu.removed)
	}
}
