package viewer

import (
	"image"
	"sort"
	"sync"

	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/pkg/formats"
	"github.com/Faultbox/liteviz/pkg/math"
)

// DataType classifies scene items.
type DataType int

const (
	Unknown DataType = iota
	PointCloud
	Mesh
	Trajectory
	Image
)

func (t DataType) String() string {
	switch t {
	case PointCloud:
		return "point cloud"
	case Mesh:
		return "mesh"
	case Trajectory:
		return "trajectory"
	case Image:
		return "image"
	default:
		return "unknown"
	}
}

// Item is one named piece of scene data. Mesh is drawn with Pose as its
// model transform. Image items carry pixels for the panel preview and no
// mesh; trajectory items keep the parsed poses next to their line mesh.
// A mesh must not be modified once the item is in a Scene; Put a new one.
type Item struct {
	Name string
	Type DataType

	Mesh       *mesh.Mesh
	Pose       math.Rigid
	Image      image.Image
	Trajectory *formats.Trajectory
	Source     string // file path, empty for generated or streamed data

	Version uint64
}

// Change is one entry of a Scene snapshot.
type Change struct {
	Item    Item
	Removed bool
}

// Scene is the store shared between producer goroutines and the frame
// loop. Every write bumps a version counter so readers only pick up what
// changed since their last look.
type Scene struct {
	mu      sync.Mutex
	version uint64
	items   map[string]Item
	removed map[string]uint64

	follow    math.Rigid
	hasFollow bool
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{
		items:   make(map[string]Item),
		removed: make(map[string]uint64),
	}
}

// Put adds or replaces an item and returns its version.
func (s *Scene) Put(it Item) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	it.Version = s.version
	if it.Pose == (math.Rigid{}) {
		it.Pose = math.RigidIdentity()
	}
	s.items[it.Name] = it
	delete(s.removed, it.Name)
	return it.Version
}

// SetPose moves an existing item. It reports false when name is unknown.
func (s *Scene) SetPose(name string, pose math.Rigid) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[name]
	if !ok {
		return false
	}
	s.version++
	it.Pose = pose
	it.Version = s.version
	s.items[name] = it
	return true
}

// Remove deletes an item. It reports whether the item existed.
func (s *Scene) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[name]; !ok {
		return false
	}
	s.version++
	delete(s.items, name)
	s.removed[name] = s.version
	return true
}

// Get returns a copy of the named item.
func (s *Scene) Get(name string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[name]
	return it, ok
}

// Names returns the item names in sorted order.
func (s *Scene) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.items))
	for n := range s.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of items.
func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Version returns the current version counter.
func (s *Scene) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns every change newer than since, ordered by version, and
// the version to pass next time.
func (s *Scene) Snapshot(since uint64) ([]Change, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Change
	for _, it := range s.items {
		if it.Version > since {
			out = append(out, Change{Item: it})
		}
	}
	for name, v := range s.removed {
		if v > since {
			out = append(out, Change{Item: Item{Name: name, Version: v}, Removed: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.Version < out[j].Item.Version })
	return out, s.version
}

// SetFollow records the latest pose of the tracked target.
func (s *Scene) SetFollow(pose math.Rigid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follow = pose
	s.hasFollow = true
}

// Follow returns the tracked pose, if one was ever set.
func (s *Scene) Follow() (math.Rigid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follow, s.hasFollow
}
