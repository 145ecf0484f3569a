// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/blescope/internal/anomaly"
	"github.com/signalnine/blescope/internal/matcher"
	"github.com/signalnine/blescope/internal/quality"
)

// Environment overrides
const (
	EnvAPIKey = "BLESCOPE_API_KEY"
	EnvSource = "BLESCOPE_SOURCE"
)

// AnalysisConfig tunes the analyzers. Empty fields keep built-in defaults.
type AnalysisConfig struct {
	Catalog         []quality.RequiredEvent  `yaml:"catalog"`
	Pairs           []quality.PairCheck      `yaml:"pairs"`
	PhasePatterns   matcher.Patterns         `yaml:"phase_patterns"`
	OutcomePatterns *matcher.OutcomePatterns `yaml:"outcome_patterns"`
	Anomaly         anomaly.Config           `yaml:"anomaly"`
	SlowestLimit    int                      `yaml:"slowest_limit"`
	PendingTimeout  time.Duration            `yaml:"pending_timeout"`
	DiffTolerance   time.Duration            `yaml:"diff_tolerance"`
	PreviewLength   int                      `yaml:"preview_length"`
}

// Outcomes returns the outcome keyword table with unset lists filled from
// the defaults, or nil when none is configured.
func (c AnalysisConfig) Outcomes() *matcher.OutcomePatterns {
	if c.OutcomePatterns == nil {
		return nil
	}
	def := matcher.DefaultOutcomePatterns()
	out := *c.OutcomePatterns
	if len(out.Timeout) == 0 {
		out.Timeout = def.Timeout
	}
	if len(out.Error) == 0 {
		out.Error = def.Error
	}
	if len(out.OK) == 0 {
		out.OK = def.OK
	}
	if len(out.Start) == 0 {
		out.Start = def.Start
	}
	return &out
}

// AgentConfig for the ingestion agent
type AgentConfig struct {
	CollectorURL  string        `yaml:"collector_url"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	StateFile     string        `yaml:"state_file"`
	EventFile     string        `yaml:"event_file"`
	Source        string        `yaml:"source"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
	APIKey        string        `yaml:"-"` // from env only
}

// CollectorConfig for the central collector
type CollectorConfig struct {
	ListenAddr      string         `yaml:"listen_addr"`
	DBPath          string         `yaml:"db_path"`
	MaxRows         int            `yaml:"max_rows"`
	MaxPayloadBytes int64          `yaml:"max_payload_bytes"`
	TLSCert         string         `yaml:"tls_cert"`
	TLSKey          string         `yaml:"tls_key"`
	Analysis        AnalysisConfig `yaml:"analysis"`
	APIKey          string         `yaml:"-"` // agent auth, from env
}

// Collector defaults
const (
	DefaultMaxRows         = 500000
	DefaultMaxPayloadBytes = 10 << 20
	DefaultPollInterval    = time.Minute
)

func decodeFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadAgentConfig loads agent config from YAML file with env overrides
func LoadAgentConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Env overrides
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}
	if source := os.Getenv(EnvSource); source != "" {
		cfg.Source = source
	}

	// Default source to os.Hostname if not set
	if cfg.Source == "" {
		cfg.Source, _ = os.Hostname()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &cfg, nil
}

// LoadCollectorConfig loads collector config from YAML file with env overrides
func LoadCollectorConfig(path string) (*CollectorConfig, error) {
	var cfg CollectorConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	return &cfg, nil
}

// LoadAnalysisConfig loads a standalone analysis config for the CLI.
// An empty path yields the defaults.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	var cfg AnalysisConfig
	if path == "" {
		return &cfg, nil
	}
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
