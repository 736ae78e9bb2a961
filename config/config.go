package config

import (
	"encoding/json"
	"os"
	"time"

	"espvision/telemetry"
	"espvision/tracking"
)

// Config holds runtime configuration for capture, tracking and telemetry.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	// Capture and display
	Camera         int    `json:"camera"`
	WindowName     string `json:"window_name"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	Mirror         bool   `json:"mirror"`

	// Colour model
	HistBins int     `json:"hist_bins"`
	HueMax   float64 `json:"hue_max"`
	SatMin   float64 `json:"sat_min"`
	ValMin   float64 `json:"val_min"`

	// CAMShift termination
	MaxIterations int     `json:"max_iterations"`
	Epsilon       float64 `json:"epsilon"`

	// Telemetry sink
	TelemetryAddr      string `json:"telemetry_addr"`
	DialTimeoutSeconds int    `json:"dial_timeout_seconds"`

	// Consecutive failed camera reads tolerated before giving up
	MaxReadFailures int `json:"max_read_failures"`

	// Optional Prometheus endpoint, empty disables
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	p := tracking.DefaultParams()
	return &Config{
		Camera:             0,
		WindowName:         "Window",
		PollIntervalMS:     30,
		Mirror:             true,
		HistBins:           p.HistBins,
		HueMax:             p.HueMax,
		SatMin:             p.SatMin,
		ValMin:             p.ValMin,
		MaxIterations:      p.Criteria.MaxIter,
		Epsilon:            p.Criteria.Epsilon,
		TelemetryAddr:      telemetry.DefaultAddress,
		DialTimeoutSeconds: 5,
		MaxReadFailures:    30,
		MetricsAddr:        "",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.Camera < 0 {
		c.Camera = d.Camera
	}
	if c.WindowName == "" {
		c.WindowName = d.WindowName
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = d.PollIntervalMS
	}
	if c.HistBins <= 0 || c.HistBins > 180 {
		c.HistBins = d.HistBins
	}
	if c.HueMax <= 0 || c.HueMax > 180 {
		c.HueMax = d.HueMax
	}
	if c.SatMin < 0 || c.SatMin > 255 {
		c.SatMin = d.SatMin
	}
	if c.ValMin < 0 || c.ValMin > 255 {
		c.ValMin = d.ValMin
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.TelemetryAddr == "" {
		c.TelemetryAddr = d.TelemetryAddr
	}
	if c.DialTimeoutSeconds <= 0 {
		c.DialTimeoutSeconds = d.DialTimeoutSeconds
	}
	if c.MaxReadFailures <= 0 {
		c.MaxReadFailures = d.MaxReadFailures
	}
	return nil
}

// PollInterval returns the display wait per frame
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DialTimeout returns the telemetry connect timeout
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// TrackingParams converts the colour model settings for the tracker.
func (c *Config) TrackingParams() tracking.Params {
	p := tracking.DefaultParams()
	p.HistBins = c.HistBins
	p.HueMax = c.HueMax
	p.SatMin = c.SatMin
	p.ValMin = c.ValMin
	p.Criteria = tracking.Criteria{MaxIter: c.MaxIterations, Epsilon: c.Epsilon}
	p.Mirror = c.Mirror
	return p
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
