package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no -config flag is given.
const DefaultPath = "scriptd.yaml"

// Config is the daemon configuration file.
type Config struct {
	Addr string `yaml:"address"`
	Port string `yaml:"port"`

	// RedisAddr enables persistent exit records; empty keeps them in memory only.
	RedisAddr   string        `yaml:"redis_address"`
	RedisDB     int           `yaml:"redis_db"`
	ExitHistory int64         `yaml:"exit_history"`
	ExitTTL     time.Duration `yaml:"exit_ttl"`

	CyclesPerRun int64 `yaml:"cycles_per_run"`
	TimeBudgetMS int64 `yaml:"time_budget_ms"`
	MaxProcs     int64 `yaml:"max_procs"`

	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	SummaryTTL            time.Duration `yaml:"summary_ttl"`
}

// Default returns the configuration used for missing keys.
func Default() Config {
	return Config{
		Addr:                  "127.0.0.1",
		Port:                  "8080",
		ExitHistory:           1000,
		ExitTTL:               24 * time.Hour,
		CyclesPerRun:          100,
		TimeBudgetMS:          10,
		MaxProcs:              1024,
		MaxConcurrentRequests: 64,
		SummaryTTL:            250 * time.Millisecond,
	}
}

// Load reads path over the defaults. A missing file at DefaultPath is not an
// error; a missing explicitly named file is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.CyclesPerRun <= 0 {
		errs = append(errs, errors.New("cycles_per_run must be > 0"))
	}
	if c.TimeBudgetMS <= 0 {
		errs = append(errs, errors.New("time_budget_ms must be > 0"))
	}
	if c.MaxProcs <= 0 {
		errs = append(errs, errors.New("max_procs must be > 0"))
	}
	if c.MaxConcurrentRequests < 0 {
		errs = append(errs, errors.New("max_concurrent_requests must be >= 0"))
	}
	return errors.Join(errs...)
}

// ListenAddr joins Addr and Port.
func (c Config) ListenAddr() string { return c.Addr + ":" + c.Port }
