// Package config loads the YAML job configuration. A file overlays the
// built-in defaults, so it only needs the settings it changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/edgescan/internal/domain"
)

// Config holds everything a job or the server needs.
type Config struct {
	Job        JobConfig        `yaml:"job"`
	Material   MaterialConfig   `yaml:"material"`
	Stage      StageConfig      `yaml:"stage"`
	Probe      ProbeConfig      `yaml:"probe"`
	Search     SearchConfig     `yaml:"search"`
	Raster     RasterConfig     `yaml:"raster"`
	Trace      TraceConfig      `yaml:"trace"`
	Fit        FitConfig        `yaml:"fit"`
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// JobConfig names the run and picks what it does.
type JobConfig struct {
	Name string `yaml:"name"` // used for run records and export file names
	Mode string `yaml:"mode"` // search, raster (default: search)
}

// MaterialConfig describes the sample. Recorded with the run only.
type MaterialConfig struct {
	Name string `yaml:"name"`
}

// AxisAddress maps one stage axis to a device on the chain.
type AxisAddress struct {
	Device int `yaml:"device"`
	Axis   int `yaml:"axis"`
}

// StageConfig selects and tunes the motion stage.
type StageConfig struct {
	Driver         string        `yaml:"driver"`  // sim, zaber (default: sim)
	Address        string        `yaml:"address"` // zaber serial bridge, host:port
	Axes           []AxisAddress `yaml:"axes"`
	Velocity       float64       `yaml:"velocity"`       // mm/s
	MicrostepSize  float64       `yaml:"microstep_size"` // mm
	CommandRate    float64       `yaml:"command_rate"`   // commands/s
	ReplyTimeoutMs int           `yaml:"reply_timeout_ms"`
}

// ProbeConfig tunes acquisition.
type ProbeConfig struct {
	Channels       []int  `yaml:"channels"`
	Mode           string `yaml:"mode"` // rms, spectrum (default: rms)
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// SearchConfig is the domain search area and its thresholds.
type SearchConfig struct {
	OriginX            float64 `yaml:"origin_x"`
	OriginY            float64 `yaml:"origin_y"`
	Width              float64 `yaml:"width"`
	Height             float64 `yaml:"height"`
	Rotation           float64 `yaml:"rotation"`
	SnakeSeparation    float64 `yaml:"snake_separation"`
	FuzzySeparation    float64 `yaml:"fuzzy_separation"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	SweepVelocity      float64 `yaml:"sweep_velocity"`
	TraceVelocity      float64 `yaml:"trace_velocity"`
	Epsilon            float64 `yaml:"epsilon"`
}

// RasterConfig is the raster scan area.
type RasterConfig struct {
	OriginX    float64 `yaml:"origin_x"`
	OriginY    float64 `yaml:"origin_y"`
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	Rotation   float64 `yaml:"rotation"`
	Separation float64 `yaml:"separation"`
	Velocity   float64 `yaml:"velocity"`
	Epsilon    float64 `yaml:"epsilon"`
	Liftoff    string  `yaml:"liftoff"` // "", linear, quadratic
}

// TraceConfig bounds the tracers.
type TraceConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// FitConfig tunes the rectangle fit.
type FitConfig struct {
	GradientFraction float64 `yaml:"gradient_fraction"`
	Restarts         int     `yaml:"restarts"`
	MaxEvaluations   int     `yaml:"max_evaluations"`
	MaxPoints        int     `yaml:"max_points"`
}

// SimRectangle is a simulated inclusion.
type SimRectangle struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Rotation float64 `yaml:"rotation"`
	Contrast float64 `yaml:"contrast"`
}

// SimCrack is a simulated crack.
type SimCrack struct {
	X1    float64 `yaml:"x1"`
	Y1    float64 `yaml:"y1"`
	X2    float64 `yaml:"x2"`
	Y2    float64 `yaml:"y2"`
	Depth float64 `yaml:"depth"`
	Width float64 `yaml:"width"`
}

// SimulationConfig describes the simulated rig used by the sim driver.
type SimulationConfig struct {
	Axes       int            `yaml:"axes"`
	Background float64        `yaml:"background"`
	EdgeWidth  float64        `yaml:"edge_width"`
	Noise      float64        `yaml:"noise"`
	Seed       uint64         `yaml:"seed"`
	Drift      [2]float64     `yaml:"drift"`
	Rectangles []SimRectangle `yaml:"rectangles"`
	Cracks     []SimCrack     `yaml:"cracks"`
}

// DatabaseConfig selects where runs are stored.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey, sqlite (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite file
	KeyPrefix        string   `yaml:"key_prefix"`
	RunTTLHours      int      `yaml:"run_ttl_hours"` // 0 = keep forever
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"`
	ReadOnlyKeys    []string `yaml:"read_only_keys"`
}

// ExportConfig selects the files written after a run.
type ExportConfig struct {
	Dir           string   `yaml:"dir"`
	Formats       []string `yaml:"formats"` // csv, parquet, heatmap
	SpectrumBins  []int    `yaml:"spectrum_bins"`
	AllowWideCSV  bool     `yaml:"allow_wide_csv"`
	HeatmapWidth  int      `yaml:"heatmap_width"`
	HeatmapHeight int      `yaml:"heatmap_height"`
	HeatmapSmooth float64  `yaml:"heatmap_smooth"`
}

// Has reports whether format is selected.
func (e ExportConfig) Has(format string) bool {
	for _, f := range e.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns the built-in configuration: a simulated 2-axis rig with
// one inclusion, runs kept in memory.
func Default() Config {
	return Config{
		Job:      JobConfig{Name: "TestScan", Mode: "search"},
		Material: MaterialConfig{Name: "Aluminium"},
		Stage:    StageConfig{Driver: "sim", Velocity: 5},
		Probe:    ProbeConfig{Channels: []int{0}, Mode: "rms"},
		Search: SearchConfig{
			OriginX:            0,
			OriginY:            0,
			Width:              60,
			Height:             40,
			SnakeSeparation:    4,
			FuzzySeparation:    1,
			DetectionThreshold: 0.1,
			SweepVelocity:      5,
			TraceVelocity:      2,
			Epsilon:            1e-4,
		},
		Raster: RasterConfig{Width: 60, Height: 40, Separation: 2, Velocity: 5, Epsilon: 1e-4},
		Simulation: SimulationConfig{
			Axes:       2,
			Background: 1,
			Rectangles: []SimRectangle{{X: 10, Y: 10, Width: 30, Height: 20, Contrast: 1}},
		},
		Database: DatabaseConfig{Driver: "memory"},
		HTTP:     HTTPConfig{Port: 8080},
		Export:   ExportConfig{Dir: "output"},
	}
}

// Load reads a YAML file over the defaults, then applies and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.overlayFile(path); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFiles reads several YAML files in order onto the same config. Only
// keys present in a file are set, so later files win, explicit zeros too.
func LoadFiles(paths ...string) (Config, error) {
	cfg := Default()
	for _, p := range paths {
		if err := cfg.overlayFile(p); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv reads config/<env>.yaml.
func LoadEnv(env string) (Config, error) {
	return Load(findConfigPath(env))
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Job.Mode == "" {
		c.Job.Mode = "search"
	}
	if c.Stage.Driver == "" {
		c.Stage.Driver = "sim"
	}
	if c.Stage.Driver == "zaber" && len(c.Stage.Axes) == 0 {
		c.Stage.Axes = []AxisAddress{{Device: 1, Axis: 1}, {Device: 2, Axis: 1}}
	}
	if c.Probe.Mode == "" {
		c.Probe.Mode = "rms"
	}
	if len(c.Probe.Channels) == 0 {
		c.Probe.Channels = []int{0}
	}
	if c.Probe.PollIntervalMs <= 0 {
		c.Probe.PollIntervalMs = 10
	}
	if c.Search.Epsilon <= 0 {
		c.Search.Epsilon = 1e-4
	}
	if c.Raster.Epsilon <= 0 {
		c.Raster.Epsilon = 1e-4
	}
	if c.Trace.MaxSteps <= 0 {
		c.Trace.MaxSteps = 10000
	}
	if c.Simulation.Axes <= 0 {
		c.Simulation.Axes = 2
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = filepath.Join("data", "edgescan.db")
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = domain.KeyPrefix
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "output"
	}
}

// Validate checks the configuration for correctness. Every error wraps
// domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateJob, c.validateStage, c.validateProbe, c.validateScan,
		c.validateDatabase, c.validateHTTP, c.validateExport,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) validateJob() error {
	if c.Job.Name == "" {
		return fmt.Errorf("job.name is required")
	}
	if strings.ContainsAny(c.Job.Name, `/\`) {
		return fmt.Errorf("job.name must not contain path separators, got %q", c.Job.Name)
	}
	switch c.Job.Mode {
	case "search", "raster":
	default:
		return fmt.Errorf("job.mode must be \"search\" or \"raster\", got %q", c.Job.Mode)
	}
	return nil
}

func (c *Config) validateStage() error {
	switch c.Stage.Driver {
	case "sim":
		if c.Simulation.Axes < 2 || c.Simulation.Axes > 3 {
			return fmt.Errorf("simulation.axes must be 2 or 3, got %d", c.Simulation.Axes)
		}
	case "zaber":
		if c.Stage.Address == "" {
			return fmt.Errorf("stage.address is required for the zaber driver")
		}
		if n := len(c.Stage.Axes); n < 2 || n > 3 {
			return fmt.Errorf("stage.axes must list 2 or 3 axes, got %d", n)
		}
		for i, a := range c.Stage.Axes {
			if a.Device <= 0 || a.Axis <= 0 {
				return fmt.Errorf("stage.axes[%d] must have positive device and axis", i)
			}
		}
	default:
		return fmt.Errorf("stage.driver must be \"sim\" or \"zaber\", got %q", c.Stage.Driver)
	}
	if c.Stage.Velocity < 0 {
		return fmt.Errorf("stage.velocity must not be negative")
	}
	return nil
}

func (c *Config) validateProbe() error {
	switch c.Probe.Mode {
	case "rms", "spectrum":
	default:
		return fmt.Errorf("probe.mode must be \"rms\" or \"spectrum\", got %q", c.Probe.Mode)
	}
	for _, ch := range c.Probe.Channels {
		if ch < 0 {
			return fmt.Errorf("probe.channels must not be negative, got %d", ch)
		}
	}
	return nil
}

func (c *Config) validateScan() error {
	s := c.Search
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("search.width and search.height must be positive")
	case s.SnakeSeparation <= 0:
		return fmt.Errorf("search.snake_separation must be positive")
	case s.FuzzySeparation <= 0:
		return fmt.Errorf("search.fuzzy_separation must be positive")
	case s.DetectionThreshold < 0:
		return fmt.Errorf("search.detection_threshold must not be negative")
	case s.SweepVelocity < 0 || s.TraceVelocity < 0:
		return fmt.Errorf("search velocities must not be negative")
	}
	r := c.Raster
	switch {
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("raster.width and raster.height must be positive")
	case r.Separation <= 0:
		return fmt.Errorf("raster.separation must be positive")
	case r.Velocity < 0:
		return fmt.Errorf("raster.velocity must not be negative")
	}
	switch r.Liftoff {
	case "", "linear", "quadratic":
	default:
		return fmt.Errorf("raster.liftoff must be \"linear\" or \"quadratic\", got %q", r.Liftoff)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "memory":
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the %s driver", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be memory, redis, valkey or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.RunTTLHours < 0 {
		return fmt.Errorf("database.run_ttl_hours must not be negative")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

func (c *Config) validateExport() error {
	for _, f := range c.Export.Formats {
		switch f {
		case "csv", "parquet", "heatmap":
		default:
			return fmt.Errorf("export.formats: unknown format %q", f)
		}
	}
	if len(c.Export.SpectrumBins) > 10 && !c.Export.AllowWideCSV {
		return fmt.Errorf("export.spectrum_bins has %d bins, set export.allow_wide_csv for more than 10", len(c.Export.SpectrumBins))
	}
	if len(c.Export.SpectrumBins) > 0 && c.Probe.Mode != "spectrum" {
		return fmt.Errorf("export.spectrum_bins needs probe.mode \"spectrum\"")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
