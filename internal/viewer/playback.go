package viewer

import (
	"github.com/Faultbox/liteviz/pkg/formats"
	"github.com/Faultbox/liteviz/pkg/math"
)

// Playback steps through a trajectory one pose at a time. There is no
// interpolation between poses.
type Playback struct {
	traj  *formats.Trajectory
	index int
}

// NewPlayback starts at the first pose of t.
func NewPlayback(t *formats.Trajectory) *Playback {
	return &Playback{traj: t}
}

// Len returns the number of poses.
func (p *Playback) Len() int {
	if p.traj == nil {
		return 0
	}
	return p.traj.Len()
}

// Index returns the current pose index.
func (p *Playback) Index() int { return p.index }

// Seek moves to pose i, clamped to the valid range.
func (p *Playback) Seek(i int) {
	n := p.Len()
	switch {
	case n == 0 || i < 0:
		p.index = 0
	case i >= n:
		p.index = n - 1
	default:
		p.index = i
	}
}

// Step moves by n poses. It reports false once the end (or start) is
// reached.
func (p *Playback) Step(n int) bool {
	before := p.index
	p.Seek(p.index + n)
	return p.index != before
}

// Current returns the pose at the current index.
func (p *Playback) Current() (formats.Pose, bool) {
	if p.Len() == 0 {
		return formats.Pose{}, false
	}
	return p.traj.Poses[p.index], true
}

// CurrentRigid returns the current pose as a transform, or identity for
// an empty trajectory.
func (p *Playback) CurrentRigid() math.Rigid {
	pose, ok := p.Current()
	if !ok {
		return math.RigidIdentity()
	}
	return pose.Rigid()
}
