// internal/anomaly/config.go
package anomaly

import "time"

// Config holds the detection thresholds. Zero values fall back to
// DefaultConfig when the detector is built.
type Config struct {
	DisconnectWindow        time.Duration `yaml:"disconnect_window"`
	DisconnectThreshold     int           `yaml:"disconnect_threshold"`
	TimeoutWindow           time.Duration `yaml:"timeout_window"`
	TimeoutThreshold        int           `yaml:"timeout_threshold"`
	ErrorBurstWindow        time.Duration `yaml:"error_burst_window"`
	ErrorBurstThreshold     int           `yaml:"error_burst_threshold"`
	SlowConnect             time.Duration `yaml:"slow_connect"`
	CommandFailureThreshold int           `yaml:"command_failure_threshold"`
	SampleLimit             int           `yaml:"sample_limit"`
	PreviewLength           int           `yaml:"preview_length"`
}

// DefaultConfig returns the built-in thresholds
func DefaultConfig() Config {
	return Config{
		DisconnectWindow:        60 * time.Second,
		DisconnectThreshold:     3,
		TimeoutWindow:           5 * time.Minute,
		TimeoutThreshold:        3,
		ErrorBurstWindow:        10 * time.Second,
		ErrorBurstThreshold:     5,
		SlowConnect:             5 * time.Second,
		CommandFailureThreshold: 1,
		SampleLimit:             5,
		PreviewLength:           200,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DisconnectWindow <= 0 {
		c.DisconnectWindow = def.DisconnectWindow
	}
	if c.DisconnectThreshold <= 0 {
		c.DisconnectThreshold = def.DisconnectThreshold
	}
	if c.TimeoutWindow <= 0 {
		c.TimeoutWindow = def.TimeoutWindow
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = def.TimeoutThreshold
	}
	if c.ErrorBurstWindow <= 0 {
		c.ErrorBurstWindow = def.ErrorBurstWindow
	}
	if c.ErrorBurstThreshold <= 0 {
		c.ErrorBurstThreshold = def.ErrorBurstThreshold
	}
	if c.SlowConnect <= 0 {
		c.SlowConnect = def.SlowConnect
	}
	if c.CommandFailureThreshold <= 0 {
		c.CommandFailureThreshold = def.CommandFailureThreshold
	}
	if c.SampleLimit <= 0 {
		c.SampleLimit = def.SampleLimit
	}
	if c.PreviewLength <= 0 {
		c.PreviewLength = def.PreviewLength
	}
	return c
}
