package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagWidth   = flag.Int("width", 0, "Window width")
	flagHeight  = flag.Int("height", 0, "Window height")
	flagFPS     = flag.Int("fps", 0, "Target frame rate (0 keeps the config value)")
	flagFoV     = flag.Float64("fov", 0, "Vertical field of view in degrees")
	flagStream  = flag.String("stream", "", "Serve the pose/point stream on this address")
	flagNoGrid  = flag.Bool("no-grid", false, "Hide the ground grid")
	flagSnapDir = flag.String("snapshot-dir", "", "Directory for snapshots")
	flagRotate  = flag.Float64("rotate-sensitivity", 0, "Orbit speed in radians per pixel")
	flagPan     = flag.Float64("pan-sensitivity", 0, "Pan speed when nothing is under the cursor")
	flagLogFile = flag.String("log-file", "", "Write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// Args returns the positional arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if *flagFPS != 0 {
		cfg.Window.TargetFPS = *flagFPS
	}
	if *flagFoV > 0 {
		cfg.Camera.FoV = *flagFoV
	}
	if *flagStream != "" {
		cfg.Stream.Enabled = true
		cfg.Stream.Addr = *flagStream
	}
	if *flagNoGrid {
		cfg.Render.ShowGrid = false
	}
	if *flagSnapDir != "" {
		cfg.Snapshot.Dir = *flagSnapDir
	}
	if *flagRotate > 0 {
		cfg.Camera.RotateSensitivity = *flagRotate
	}
	if *flagPan > 0 {
		cfg.Camera.PanSensitivity = *flagPan
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
