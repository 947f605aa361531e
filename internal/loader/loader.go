// Package loader turns files on disk into scene items and keeps watched
// files in sync with the scene.
package loader

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	_ "golang.org/x/image/bmp" // BMP decoder registration

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/viewer"
	"github.com/Faultbox/liteviz/pkg/formats"
	"github.com/Faultbox/liteviz/pkg/math"
)

// ErrUnknownExtension is returned for files no parser claims.
var ErrUnknownExtension = errors.New("unknown file extension")

// Options controls how uncolored geometry is shown.
type Options struct {
	PointColor mgl32.Vec4
	MeshColor  mgl32.Vec4
	LineColor  mgl32.Vec4
}

// DefaultOptions returns dark gray points, light gray meshes and green
// trajectories.
func DefaultOptions() Options {
	return Options{
		PointColor: mgl32.Vec4{0.2, 0.2, 0.2, 1},
		MeshColor:  mgl32.Vec4{0.7, 0.7, 0.7, 1},
		LineColor:  mgl32.Vec4{0.1, 0.6, 0.2, 1},
	}
}

// OptionsFromConfig returns DefaultOptions with the point and trajectory
// colors taken from the render section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.PointColor = viewer.Color(cfg.Render.PointColor)
	opts.LineColor = viewer.Color(cfg.Render.TrajectoryColor)
	return opts
}

// Loader reads files into scene items.
type Loader struct {
	opts Options
}

// New creates a loader.
func New(opts Options) *Loader {
	return &Loader{opts: opts}
}

// Load reads path with the default options.
func Load(path string) (viewer.Item, error) {
	return New(DefaultOptions()).Load(path)
}

// Kind guesses the data type from the file extension. PLY files may turn
// out to be meshes once parsed.
func Kind(path string) viewer.DataType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcd", ".ply", ".xyz", ".pts":
		return viewer.PointCloud
	case ".gltf", ".glb":
		return viewer.Mesh
	case ".tum", ".txt":
		return viewer.Trajectory
	case ".png", ".jpg", ".jpeg", ".bmp":
		return viewer.Image
	default:
		return viewer.Unknown
	}
}

// Load reads path into an item named after the file.
func (l *Loader) Load(path string) (viewer.Item, error) {
	it := viewer.Item{
		Name:   filepath.Base(path),
		Type:   Kind(path),
		Pose:   math.RigidIdentity(),
		Source: path,
	}

	var err error
	switch it.Type {
	case viewer.PointCloud, viewer.Mesh:
		err = l.loadGeometry(path, &it)
	case viewer.Trajectory:
		err = l.loadTrajectory(path, &it)
	case viewer.Image:
		it.Image, err = loadImage(path)
	default:
		return it, fmt.Errorf("%w: %s", ErrUnknownExtension, filepath.Ext(path))
	}
	return it, err
}

// ParseGeometry reads a point cloud or mesh file, picking the parser by
// extension. Unknown extensions are read as XYZ text.
func ParseGeometry(path string) (*formats.Geometry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcd":
		return formats.ParsePCDFile(path)
	case ".ply":
		return formats.ParsePLYFile(path)
	case ".gltf", ".glb":
		return formats.ParseGLTFFile(path)
	default:
		return formats.ParseXYZFile(path)
	}
}

func (l *Loader) loadGeometry(path string, it *viewer.Item) error {
	g, err := ParseGeometry(path)
	if err != nil {
		return err
	}
	m, err := l.GeometryMesh(g)
	if err != nil {
		return fmt.Errorf("building mesh for %s: %w", path, err)
	}
	it.Mesh = m
	if g.IsMesh() {
		it.Type = viewer.Mesh
	} else {
		it.Type = viewer.PointCloud
	}
	return nil
}

// GeometryMesh converts parsed geometry into a drawable mesh: triangles
// when it has faces, points otherwise.
func (l *Loader) GeometryMesh(g *formats.Geometry) (*mesh.Mesh, error) {
	if g.IsMesh() {
		return mesh.TriangleMesh(g.Positions, g.Colors, g.Indices, l.opts.MeshColor)
	}
	if g.HasColors() {
		return mesh.ColoredPointCloud(g.Positions, g.Colors)
	}
	return mesh.PointCloud(g.Positions, l.opts.PointColor), nil
}

func (l *Loader) loadTrajectory(path string, it *viewer.Item) error {
	tr, err := formats.ParseTUMFile(path)
	if err != nil {
		return err
	}
	pts := make([]mgl32.Vec3, tr.Len())
	for i, p := range tr.Positions() {
		pts[i] = math.Vec3To32(p)
	}
	it.Trajectory = tr
	it.Mesh = mesh.Line(pts, l.opts.LineColor)
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}
