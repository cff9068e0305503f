// Package config loads codescribe settings from .codescribe.yaml, .env and
// CODESCRIBE_* environment variables, in increasing order of precedence.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codescribe-dev/codescribe/internal/archive"
	"github.com/codescribe-dev/codescribe/internal/discover"
	"github.com/codescribe-dev/codescribe/internal/tracer"
)

// FileName is the YAML config file looked up in the project directory.
const FileName = ".codescribe.yaml"

// Environment variables that override file settings.
const (
	EnvPython           = "CODESCRIBE_PYTHON"
	EnvTraceTimeout     = "CODESCRIBE_TRACE_TIMEOUT"
	EnvTraceConcurrency = "CODESCRIBE_TRACE_CONCURRENCY"
	EnvTraceMaxEvents   = "CODESCRIBE_TRACE_MAX_EVENTS"
	EnvTraceMaxBytes    = "CODESCRIBE_TRACE_MAX_BYTES"
	EnvArchiveMaxBytes  = "CODESCRIBE_ARCHIVE_MAX_BYTES"
)

// Config holds user-overridable settings. Nil fields mean "use the default".
type Config struct {
	Trace    TraceConfig    `yaml:"trace"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Discover DiscoverConfig `yaml:"discover"`
}

// TraceConfig configures the execution tracer.
type TraceConfig struct {
	Python      *string        `yaml:"python"`
	Timeout     *time.Duration `yaml:"timeout"` // e.g. "5s"
	MaxEvents   *int           `yaml:"max_events"`
	MaxOutput   *int           `yaml:"max_output"`
	MaxBytes    *int           `yaml:"max_bytes"` // local variable data per trace
	Concurrency *int           `yaml:"concurrency"`
}

// ArchiveConfig bounds archive extraction.
type ArchiveConfig struct {
	MaxBytes *int64 `yaml:"max_bytes"`
	MaxFiles *int   `yaml:"max_files"`
}

// DiscoverConfig configures project file collection.
type DiscoverConfig struct {
	MaxFileBytes *int64 `yaml:"max_file_bytes"`
}

// DefaultConfig returns a config with every field unset.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads FileName from dir, then dir/.env, then the environment.
// A missing or invalid file leaves the defaults in place.
func Load(dir string) *Config {
	cfg := DefaultConfig()

	path := filepath.Join(dir, FileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Warn("config.yaml.invalid", "path", path, "err", err)
			cfg = DefaultConfig()
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		slog.Warn("config.dotenv.err", "err", err)
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvPython)); v != "" {
		c.Trace.Python = &v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTraceTimeout)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Trace.Timeout = &d
		} else {
			slog.Warn("config.env.invalid", "key", EnvTraceTimeout, "value", v)
		}
	}
	setInt(EnvTraceConcurrency, &c.Trace.Concurrency)
	setInt(EnvTraceMaxEvents, &c.Trace.MaxEvents)
	setInt(EnvTraceMaxBytes, &c.Trace.MaxBytes)
	if v := strings.TrimSpace(os.Getenv(EnvArchiveMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Archive.MaxBytes = &n
		} else {
			slog.Warn("config.env.invalid", "key", EnvArchiveMaxBytes, "value", v)
		}
	}
}

func setInt(key string, dst **int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config.env.invalid", "key", key, "value", v)
		return
	}
	*dst = &n
}

// TracerOptions converts the trace settings; unset fields take the
// tracer's own defaults.
func (c *Config) TracerOptions() tracer.Options {
	var opts tracer.Options
	if c.Trace.Python != nil {
		opts.Python = *c.Trace.Python
	}
	if c.Trace.Timeout != nil {
		opts.Timeout = *c.Trace.Timeout
	}
	if c.Trace.MaxEvents != nil {
		opts.MaxEvents = *c.Trace.MaxEvents
	}
	if c.Trace.MaxOutput != nil {
		opts.MaxOutput = *c.Trace.MaxOutput
	}
	if c.Trace.MaxBytes != nil {
		opts.MaxBytes = *c.Trace.MaxBytes
	}
	if c.Trace.Concurrency != nil {
		opts.Concurrency = *c.Trace.Concurrency
	}
	return opts
}

// Extractor returns an archive extractor with the configured limits.
func (c *Config) Extractor() *archive.Extractor {
	x := &archive.Extractor{MaxBytes: archive.DefaultMaxBytes, MaxFiles: archive.DefaultMaxFiles}
	if c.Archive.MaxBytes != nil {
		x.MaxBytes = *c.Archive.MaxBytes
	}
	if c.Archive.MaxFiles != nil {
		x.MaxFiles = *c.Archive.MaxFiles
	}
	return x
}

// DiscoverOptions returns file collection options.
func (c *Config) DiscoverOptions() *discover.Options {
	opts := &discover.Options{}
	if c.Discover.MaxFileBytes != nil {
		opts.MaxFileBytes = *c.Discover.MaxFileBytes
	}
	return opts
}
