package viewer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/engine/viewport"
	"github.com/Faultbox/liteviz/pkg/math"
)

// Renderer draws something through the viewport each frame.
type Renderer interface {
	Render(vp *viewport.Viewport)
}

// GUIRenderer draws panel widgets after the scene.
type GUIRenderer interface {
	RenderGUI()
}

// Uploader is the GPU side of the scene renderer. The GL renderer
// implements it. Keys are opaque buffer names.
type Uploader interface {
	Upload(key string, m *mesh.Mesh)
	Remove(key string)
	Draw(key string, viewProj, model mgl32.Mat4, alpha float32)
}

// Buffer keys live in separate prefixes so an item name never aliases a
// helper or another item's bounding box.
const (
	gridKey      = "builtin/grid"
	axesKey      = "builtin/axes"
	itemPrefix   = "item/"
	boundsPrefix = "bounds/"
)

func itemKey(name string) string   { return itemPrefix + name }
func boundsKey(name string) string { return boundsPrefix + name }

type entry struct {
	mesh   *mesh.Mesh
	model  mgl32.Mat4
	bounds bool // box uploaded under boundsKey(name)
}

// SceneRenderer mirrors a Scene into GPU buffers and draws it. Only items
// that changed since the previous frame are re-uploaded.
type SceneRenderer struct {
	scene *Scene
	gpu   Uploader
	since uint64

	entries map[string]entry
	order   []string

	ShowGrid   bool
	ShowAxes   bool
	ShowBounds bool
	Alpha      float32

	BoundsColor mgl32.Vec4

	builtins bool
}

// NewSceneRenderer returns a renderer drawing scene through gpu.
func NewSceneRenderer(scene *Scene, gpu Uploader) *SceneRenderer {
	return &SceneRenderer{
		scene:    scene,
		gpu:      gpu,
		entries:  make(map[string]entry),
		ShowGrid: true,
		ShowAxes: true,
		Alpha:    1,

		BoundsColor: mgl32.Vec4{1, 0.6, 0, 1},
	}
}

// Sync uploads pending scene changes. It must run on the GL thread.
func (r *SceneRenderer) Sync() {
	if !r.builtins {
		r.gpu.Upload(gridKey, mesh.Grid())
		r.gpu.Upload(axesKey, mesh.CoordinateFrame(1))
		r.builtins = true
	}

	changes, version := r.scene.Snapshot(r.since)
	r.since = version
	if len(changes) == 0 {
		return
	}
	for _, c := range changes {
		name := c.Item.Name
		e, known := r.entries[name]
		if c.Removed || c.Item.Mesh == nil || c.Item.Mesh.Empty() {
			if known {
				r.gpu.Remove(itemKey(name))
				r.dropBounds(name, &e)
				delete(r.entries, name)
			}
			continue
		}
		// A pose-only update keeps the mesh pointer.
		if !known || e.mesh != c.Item.Mesh {
			r.gpu.Upload(itemKey(name), c.Item.Mesh)
			r.dropBounds(name, &e)
		}
		e.mesh = c.Item.Mesh
		e.model = math.Mat4To32(c.Item.Pose.Mat4())
		r.entries[name] = e
	}
	r.order = r.scene.Names()
}

// Render draws the built-in helpers and every uploaded item.
func (r *SceneRenderer) Render(vp *viewport.Viewport) {
	r.Sync()
	vpMat := vp.ViewProjection()
	ident := mgl32.Ident4()
	if r.ShowGrid {
		r.gpu.Draw(gridKey, vpMat, ident, r.Alpha)
	}
	if r.ShowAxes {
		r.gpu.Draw(axesKey, vpMat, ident, r.Alpha)
	}
	for _, name := range r.order {
		e, ok := r.entries[name]
		if !ok {
			continue
		}
		r.gpu.Draw(itemKey(name), vpMat, e.model, r.Alpha)
		if r.ShowBounds && r.ensureBounds(name, &e) {
			r.gpu.Draw(boundsKey(name), vpMat, e.model, r.Alpha)
		}
	}
}

// ensureBounds uploads the bounding box of an item the first time it is
// shown.
func (r *SceneRenderer) ensureBounds(name string, e *entry) bool {
	if e.bounds {
		return true
	}
	b, ok := e.mesh.Bounds()
	if !ok {
		return false
	}
	r.gpu.Upload(boundsKey(name), mesh.BoxWireframe(b, r.BoundsColor))
	e.bounds = true
	r.entries[name] = *e
	return true
}

func (r *SceneRenderer) dropBounds(name string, e *entry) {
	if e.bounds {
		r.gpu.Remove(boundsKey(name))
		e.bounds = false
	}
}
