// Package renderer uploads meshes to the GPU and draws them with the color
// program.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/engine/shader"
	"github.com/Faultbox/liteviz/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	PointSize float32
}

// Renderer owns the color program and one set of GPU buffers per uploaded
// mesh. It must only be used on the thread owning the GL context.
type Renderer struct {
	config  Config
	program *shader.Program
	meshes  map[string]*gpuMesh
}

type gpuPart struct {
	vao, vbo, cbo, ebo uint32
	count              int32
	mode               uint32
}

type gpuMesh struct {
	parts []gpuPart
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Enable(gl.LINE_SMOOTH)

	program, err := shader.NewColorProgram()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	if cfg.PointSize < 1 {
		cfg.PointSize = 1
	}

	return &Renderer{
		config:  cfg,
		program: program,
		meshes:  make(map[string]*gpuMesh),
	}, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer", zap.Int("meshes", len(r.meshes)))
	for key := range r.meshes {
		r.Remove(key)
	}
	r.program.Delete()
}

// SetPointSize changes the rasterized point size in pixels.
func (r *Renderer) SetPointSize(size float32) {
	if size >= 1 {
		r.config.PointSize = size
	}
}

// PointSize returns the current point size.
func (r *Renderer) PointSize() float32 { return r.config.PointSize }

// Begin clears the bound framebuffer. Depth is cleared to 1, the "nothing
// drawn" value picking relies on.
func (r *Renderer) Begin(bg mgl32.Vec4) {
	gl.ClearColor(bg[0], bg[1], bg[2], bg[3])
	gl.ClearDepth(1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Has reports whether key is uploaded.
func (r *Renderer) Has(key string) bool {
	_, ok := r.meshes[key]
	return ok
}

// Upload replaces the GPU copy of key with m.
func (r *Renderer) Upload(key string, m *mesh.Mesh) {
	r.Remove(key)

	gm := &gpuMesh{}
	for _, p := range m.Parts {
		if len(p.Positions) == 0 || len(p.Indices) == 0 {
			continue
		}
		gm.parts = append(gm.parts, uploadPart(p))
	}
	r.meshes[key] = gm

	logger.Debug("mesh uploaded",
		zap.String("key", key),
		zap.Int("parts", len(gm.parts)),
		zap.Int("vertices", m.VertexCount()),
	)
}

func uploadPart(p mesh.Part) gpuPart {
	gp := gpuPart{count: int32(len(p.Indices)), mode: glMode(p.Primitive)}

	gl.GenVertexArrays(1, &gp.vao)
	gl.BindVertexArray(gp.vao)

	gl.GenBuffers(1, &gp.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, gp.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(p.Positions)*3*4, unsafe.Pointer(&p.Positions[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(shader.PositionLocation, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(shader.PositionLocation)

	gl.GenBuffers(1, &gp.cbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, gp.cbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(p.Colors)*4*4, unsafe.Pointer(&p.Colors[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(shader.ColorLocation, 4, gl.FLOAT, false, 4*4, 0)
	gl.EnableVertexAttribArray(shader.ColorLocation)

	gl.GenBuffers(1, &gp.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gp.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(p.Indices)*4, unsafe.Pointer(&p.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return gp
}

func glMode(p mesh.Primitive) uint32 {
	switch p {
	case mesh.Points:
		return gl.POINTS
	case mesh.Lines:
		return gl.LINES
	case mesh.LineStrip:
		return gl.LINE_STRIP
	default:
		return gl.TRIANGLES
	}
}

// Remove frees the GPU copy of key, if any.
func (r *Renderer) Remove(key string) {
	gm, ok := r.meshes[key]
	if !ok {
		return
	}
	for i := range gm.parts {
		p := &gm.parts[i]
		gl.DeleteVertexArrays(1, &p.vao)
		gl.DeleteBuffers(1, &p.vbo)
		gl.DeleteBuffers(1, &p.cbo)
		gl.DeleteBuffers(1, &p.ebo)
	}
	delete(r.meshes, key)
}

// Draw renders key with the combined projection*view matrix and a model
// matrix. Unknown keys are skipped.
func (r *Renderer) Draw(key string, viewProj, model mgl32.Mat4, alpha float32) {
	gm, ok := r.meshes[key]
	if !ok {
		return
	}
	r.program.Use()
	r.program.SetMat4("ProjMat", viewProj.Mul4(model))
	r.program.SetFloat("Alpha", alpha)
	r.program.SetFloat("PointSize", r.config.PointSize)

	for _, p := range gm.parts {
		gl.BindVertexArray(p.vao)
		gl.DrawElementsWithOffset(p.mode, p.count, gl.UNSIGNED_INT, 0)
	}
	gl.BindVertexArray(0)
}
