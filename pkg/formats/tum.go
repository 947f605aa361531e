package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	gomath "math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/pkg/math"
)

// Pose is one timestamped entry of a trajectory.
type Pose struct {
	Time     float64
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Rigid returns the pose as a rigid transform.
func (p Pose) Rigid() math.Rigid {
	return math.NewRigid(p.Rotation, p.Position)
}

// Trajectory is a time-ordered sequence of poses.
type Trajectory struct {
	Poses []Pose
}

// Len returns the number of poses.
func (t *Trajectory) Len() int { return len(t.Poses) }

// Duration returns the time span between the first and last pose.
func (t *Trajectory) Duration() float64 {
	if len(t.Poses) < 2 {
		return 0
	}
	return t.Poses[len(t.Poses)-1].Time - t.Poses[0].Time
}

// PathLength returns the summed distance between consecutive positions.
func (t *Trajectory) PathLength() float64 {
	var l float64
	for i := 1; i < len(t.Poses); i++ {
		l += t.Poses[i].Position.Sub(t.Poses[i-1].Position).Len()
	}
	return l
}

// Positions returns the positions in order.
func (t *Trajectory) Positions() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(t.Poses))
	for i, p := range t.Poses {
		out[i] = p.Position
	}
	return out
}

// ParseTUM parses a trajectory in the TUM RGB-D format: one
// "timestamp tx ty tz qx qy qz qw" entry per line, '#' comments allowed.
// Entries are sorted by timestamp and quaternions are normalized.
func ParseTUM(data []byte) (*Trajectory, error) {
	tr := &Trajectory{}
	sc := bufio.NewScanner(bytes.NewReader(data))

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		tok := strings.Fields(text)
		if len(tok) != 8 {
			return nil, fmt.Errorf("%w: TUM line %d has %d values, want 8", ErrInvalidData, line, len(tok))
		}
		var v [8]float64
		for i, s := range tok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || gomath.IsNaN(f) || gomath.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: TUM line %d: bad value %q", ErrInvalidData, line, s)
			}
			v[i] = f
		}
		q := mgl64.Quat{W: v[7], V: mgl64.Vec3{v[4], v[5], v[6]}}
		if q.Len() < math.Epsilon {
			return nil, fmt.Errorf("%w: TUM line %d: zero quaternion", ErrInvalidData, line)
		}
		tr.Poses = append(tr.Poses, Pose{
			Time:     v[0],
			Position: mgl64.Vec3{v[1], v[2], v[3]},
			Rotation: q.Scale(1 / q.Len()),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading TUM data: %w", err)
	}
	sort.SliceStable(tr.Poses, func(i, j int) bool { return tr.Poses[i].Time < tr.Poses[j].Time })
	return tr, nil
}

// ParseTUMFile parses a TUM trajectory file from disk.
func ParseTUMFile(path string) (*Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TUM file: %w", err)
	}
	return ParseTUM(data)
}

// WriteTUM writes t in the TUM format.
func WriteTUM(w io.Writer, t *Trajectory) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("# timestamp tx ty tz qx qy qz qw\n")
	for _, p := range t.Poses {
		q := p.Rotation
		fmt.Fprintf(bw, "%.6f %g %g %g %g %g %g %g\n",
			p.Time, p.Position[0], p.Position[1], p.Position[2], q.V[0], q.V[1], q.V[2], q.W)
	}
	return bw.Flush()
}
