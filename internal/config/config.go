// Package config handles viewer configuration loading and validation.
package config

// Config holds all viewer settings.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Camera   CameraConfig   `yaml:"camera"`
	Render   RenderConfig   `yaml:"render"`
	Panel    PanelConfig    `yaml:"panel"`
	Stream   StreamConfig   `yaml:"stream"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig holds window and frame pacing settings.
type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	VSync     bool   `yaml:"vsync"`
	TargetFPS int    `yaml:"target_fps"` // <= 0 means unlimited
}

// CameraConfig holds the initial camera pose, projection and navigation tuning.
type CameraConfig struct {
	FoV    float64   `yaml:"fov"` // vertical, degrees
	Near   float64   `yaml:"near"`
	Far    float64   `yaml:"far"`
	Eye    []float64 `yaml:"eye"`
	Center []float64 `yaml:"center"`
	Up     []float64 `yaml:"up"`

	RotateSensitivity float64 `yaml:"rotate_sensitivity"` // radians per pixel
	PanSensitivity    float64 `yaml:"pan_sensitivity"`    // world units per pixel without a pick anchor
	ZoomSensitivity   float64 `yaml:"zoom_sensitivity"`   // world units per scroll step
	DefaultDepth      float64 `yaml:"default_depth"`      // window-space depth used before the first pick
}

// RenderConfig holds scene appearance settings.
type RenderConfig struct {
	Background      []float32 `yaml:"background"` // RGBA
	PointSize       int       `yaml:"point_size"`
	ShowGrid        bool      `yaml:"show_grid"`
	ShowAxes        bool      `yaml:"show_axes"`
	PointColor      []float32 `yaml:"point_color"`
	FrustumColor    []float32 `yaml:"frustum_color"`
	TrajectoryColor []float32 `yaml:"trajectory_color"`
}

// PanelConfig holds configuration panel layout settings.
type PanelConfig struct {
	Show        bool    `yaml:"show"`
	Width       float32 `yaml:"width"`
	Transparent bool    `yaml:"transparent"`
}

// StreamConfig holds the live pose/point stream server settings.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// SnapshotConfig holds snapshot output settings.
type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:     "LiteViz Viewer",
			Width:     1280,
			Height:    720,
			VSync:     true,
			TargetFPS: 0,
		},
		Camera: CameraConfig{
			FoV:               60,
			Near:              0.2,
			Far:               100,
			Eye:               []float64{2, 2, 2},
			Center:            []float64{0, 0, 0},
			Up:                []float64{0, 0, 1},
			RotateSensitivity: 0.005,
			PanSensitivity:    0.1,
			ZoomSensitivity:   1.0,
			DefaultDepth:      0.8,
		},
		Render: RenderConfig{
			Background:      []float32{1, 1, 1, 1},
			PointSize:       1,
			ShowGrid:        true,
			ShowAxes:        true,
			PointColor:      []float32{0.2, 0.2, 0.2, 1},
			FrustumColor:    []float32{0.9, 0.3, 0.1, 1},
			TrajectoryColor: []float32{0.1, 0.6, 0.2, 1},
		},
		Panel: PanelConfig{
			Show:        true,
			Width:       300,
			Transparent: true,
		},
		Stream: StreamConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9870",
			Path:    "/ws",
		},
		Snapshot: SnapshotConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
