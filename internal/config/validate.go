package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var err error

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		err = multierr.Append(err, invalidf("window size %dx%d", c.Window.Width, c.Window.Height))
	}

	cam := c.Camera
	if cam.FoV <= 0 || cam.FoV >= 180 {
		err = multierr.Append(err, invalidf("camera.fov %v outside (0, 180)", cam.FoV))
	}
	if cam.Near <= 0 {
		err = multierr.Append(err, invalidf("camera.near %v must be positive", cam.Near))
	}
	if cam.Far <= cam.Near {
		err = multierr.Append(err, invalidf("camera.far %v must exceed near %v", cam.Far, cam.Near))
	}
	err = multierr.Append(err, checkLen("camera.eye", len(cam.Eye), 3))
	err = multierr.Append(err, checkLen("camera.center", len(cam.Center), 3))
	err = multierr.Append(err, checkLen("camera.up", len(cam.Up), 3))
	if cam.DefaultDepth <= 0 || cam.DefaultDepth > 1 {
		err = multierr.Append(err, invalidf("camera.default_depth %v outside (0, 1]", cam.DefaultDepth))
	}

	r := c.Render
	err = multierr.Append(err, checkLen("render.background", len(r.Background), 4))
	err = multierr.Append(err, checkLen("render.point_color", len(r.PointColor), 4))
	err = multierr.Append(err, checkLen("render.frustum_color", len(r.FrustumColor), 4))
	err = multierr.Append(err, checkLen("render.trajectory_color", len(r.TrajectoryColor), 4))
	if r.PointSize < 1 || r.PointSize > 10 {
		err = multierr.Append(err, invalidf("render.point_size %d outside [1, 10]", r.PointSize))
	}

	if c.Stream.Enabled {
		if c.Stream.Addr == "" {
			err = multierr.Append(err, invalidf("stream.addr is empty"))
		}
		if !strings.HasPrefix(c.Stream.Path, "/") {
			err = multierr.Append(err, invalidf("stream.path %q must start with /", c.Stream.Path))
		}
	}

	return err
}

func checkLen(field string, got, want int) error {
	if got != want {
		return invalidf("%s has %d components, want %d", field, got, want)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
