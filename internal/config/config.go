package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hletrd/data-waster/internal/engine"
	"github.com/hletrd/data-waster/internal/payload"
	"github.com/hletrd/data-waster/internal/progress"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "DATAWASTER_"

// Config defines configuration for the datawaster CLI.
type Config struct {
	Mode             string        `yaml:"mode"`
	SizeMB           int           `yaml:"size_mb"`
	Threads          int           `yaml:"threads"`
	DownloadURL      string        `yaml:"download_url"`
	UploadURL        string        `yaml:"upload_url"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	SlowAfter        time.Duration `yaml:"slow_after"`
	SlowThreshold    int64         `yaml:"slow_threshold"`
	Language         string        `yaml:"language"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	Retry            RetryConfig   `yaml:"retry"`
	Filler           FillerConfig  `yaml:"filler"`
}

// RetryConfig defines worker pacing after failures.
type RetryConfig struct {
	DownloadBackoff []time.Duration `yaml:"download_backoff"`
	UploadBackoff   time.Duration   `yaml:"upload_backoff"`
	LoopPause       time.Duration   `yaml:"loop_pause"`
}

// FillerConfig shapes the upload filler.
type FillerConfig struct {
	QueryLength  int `yaml:"query_length"`
	HeaderCount  int `yaml:"header_count"`
	HeaderLength int `yaml:"header_length"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	opts := engine.DefaultOptions()
	return Config{
		Mode:             engine.ModeBoth.String(),
		SizeMB:           100,
		Threads:          8,
		DownloadURL:      "http://localhost:8080/data-waste.bin",
		UploadURL:        "http://localhost:8080/wastebin",
		SnapshotInterval: opts.SnapshotInterval,
		SlowAfter:        opts.SlowAfter,
		SlowThreshold:    int64(opts.SlowThreshold),
		LogLevel:         "info",
		LogFormat:        "text",
		Retry: RetryConfig{
			DownloadBackoff: opts.DownloadBackoff,
			UploadBackoff:   opts.UploadBackoff,
			LoopPause:       opts.LoopPause,
		},
		Filler: FillerConfig{
			QueryLength:  opts.Filler.QueryLength,
			HeaderCount:  opts.Filler.HeaderCount,
			HeaderLength: opts.Filler.HeaderValueLength,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
// size_mb is a pointer because 0 (unbounded) must override the default.
type yamlConfig struct {
	Mode             string           `yaml:"mode"`
	SizeMB           *int             `yaml:"size_mb"`
	Threads          int              `yaml:"threads"`
	DownloadURL      string           `yaml:"download_url"`
	UploadURL        string           `yaml:"upload_url"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	SlowAfter        string           `yaml:"slow_after"`
	SlowThreshold    string           `yaml:"slow_threshold"`
	Language         string           `yaml:"language"`
	LogLevel         string           `yaml:"log_level"`
	LogFormat        string           `yaml:"log_format"`
	Retry            yamlRetryConfig  `yaml:"retry"`
	Filler           yamlFillerConfig `yaml:"filler"`
}

type yamlRetryConfig struct {
	DownloadBackoff []string `yaml:"download_backoff"`
	UploadBackoff   string   `yaml:"upload_backoff"`
	LoopPause       string   `yaml:"loop_pause"`
}

// Filler lengths may legitimately be 0 (e.g. a query-only filler), so
// absence is told apart from zero.
type yamlFillerConfig struct {
	QueryLength  *int `yaml:"query_length"`
	HeaderCount  *int `yaml:"header_count"`
	HeaderLength *int `yaml:"header_length"`
}

// LoadFromFile loads configuration from a YAML file on top of Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Mode != "" {
		cfg.Mode = yc.Mode
	}
	if yc.SizeMB != nil {
		cfg.SizeMB = *yc.SizeMB
	}
	if yc.Threads != 0 {
		cfg.Threads = yc.Threads
	}
	if yc.DownloadURL != "" {
		cfg.DownloadURL = yc.DownloadURL
	}
	if yc.UploadURL != "" {
		cfg.UploadURL = yc.UploadURL
	}
	if err := parseDuration(yc.SnapshotInterval, "snapshot_interval", &cfg.SnapshotInterval); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.SlowAfter, "slow_after", &cfg.SlowAfter); err != nil {
		return Config{}, err
	}
	if yc.SlowThreshold != "" {
		n, err := progress.ParseBytes(yc.SlowThreshold)
		if err != nil {
			return Config{}, fmt.Errorf("parse slow_threshold: %w", err)
		}
		cfg.SlowThreshold = n
	}
	if yc.Language != "" {
		cfg.Language = yc.Language
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogFormat != "" {
		cfg.LogFormat = yc.LogFormat
	}
	if len(yc.Retry.DownloadBackoff) > 0 {
		steps, err := parseDurations(yc.Retry.DownloadBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.download_backoff: %w", err)
		}
		cfg.Retry.DownloadBackoff = steps
	}
	if err := parseDuration(yc.Retry.UploadBackoff, "retry.upload_backoff", &cfg.Retry.UploadBackoff); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.Retry.LoopPause, "retry.loop_pause", &cfg.Retry.LoopPause); err != nil {
		return Config{}, err
	}
	if yc.Filler.QueryLength != nil {
		cfg.Filler.QueryLength = *yc.Filler.QueryLength
	}
	if yc.Filler.HeaderCount != nil {
		cfg.Filler.HeaderCount = *yc.Filler.HeaderCount
	}
	if yc.Filler.HeaderLength != nil {
		cfg.Filler.HeaderLength = *yc.Filler.HeaderLength
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DATAWASTER_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := env("MODE"); v != "" {
		c.Mode = v
	}
	if v := env("SIZE_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sSIZE_MB: %w", EnvPrefix, err)
		}
		c.SizeMB = n
	}
	if v := env("THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sTHREADS: %w", EnvPrefix, err)
		}
		c.Threads = n
	}
	if v := env("DOWNLOAD_URL"); v != "" {
		c.DownloadURL = v
	}
	if v := env("UPLOAD_URL"); v != "" {
		c.UploadURL = v
	}
	if err := parseDuration(env("SNAPSHOT_INTERVAL"), EnvPrefix+"SNAPSHOT_INTERVAL", &c.SnapshotInterval); err != nil {
		return err
	}
	if err := parseDuration(env("SLOW_AFTER"), EnvPrefix+"SLOW_AFTER", &c.SlowAfter); err != nil {
		return err
	}
	if v := env("SLOW_THRESHOLD"); v != "" {
		n, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse %sSLOW_THRESHOLD: %w", EnvPrefix, err)
		}
		c.SlowThreshold = n
	}
	if v := env("LANG"); v != "" {
		c.Language = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := env("RETRY_DOWNLOAD_BACKOFF"); v != "" {
		steps, err := parseDurations(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("parse %sRETRY_DOWNLOAD_BACKOFF: %w", EnvPrefix, err)
		}
		c.Retry.DownloadBackoff = steps
	}
	if err := parseDuration(env("RETRY_UPLOAD_BACKOFF"), EnvPrefix+"RETRY_UPLOAD_BACKOFF", &c.Retry.UploadBackoff); err != nil {
		return err
	}
	if err := parseDuration(env("RETRY_LOOP_PAUSE"), EnvPrefix+"RETRY_LOOP_PAUSE", &c.Retry.LoopPause); err != nil {
		return err
	}
	for name, dst := range map[string]*int{
		"FILLER_QUERY_LENGTH":  &c.Filler.QueryLength,
		"FILLER_HEADER_COUNT":  &c.Filler.HeaderCount,
		"FILLER_HEADER_LENGTH": &c.Filler.HeaderLength,
	} {
		if v := env(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	mode, err := engine.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.SizeMB < 0 {
		return errors.New("config: size_mb must not be negative")
	}
	if c.Threads <= 0 {
		return errors.New("config: threads must be positive")
	}
	if mode.Has(engine.Download) && c.DownloadURL == "" {
		return errors.New("config: download_url is required")
	}
	if mode.Has(engine.Upload) && c.UploadURL == "" {
		return errors.New("config: upload_url is required")
	}
	if c.SnapshotInterval <= 0 {
		return errors.New("config: snapshot_interval must be positive")
	}
	if c.Filler.QueryLength < 0 || c.Filler.HeaderCount < 0 || c.Filler.HeaderLength < 0 {
		return errors.New("config: filler lengths must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored, so an unbounded size (0) or a zero
// filler length must be assigned directly rather than merged. The file and
// environment loaders both accept explicit zeros.
func (c Config) Merge(override Config) Config {
	if override.Mode != "" {
		c.Mode = override.Mode
	}
	if override.SizeMB != 0 {
		c.SizeMB = override.SizeMB
	}
	if override.Threads != 0 {
		c.Threads = override.Threads
	}
	if override.DownloadURL != "" {
		c.DownloadURL = override.DownloadURL
	}
	if override.UploadURL != "" {
		c.UploadURL = override.UploadURL
	}
	if override.SnapshotInterval != 0 {
		c.SnapshotInterval = override.SnapshotInterval
	}
	if override.SlowAfter != 0 {
		c.SlowAfter = override.SlowAfter
	}
	if override.SlowThreshold != 0 {
		c.SlowThreshold = override.SlowThreshold
	}
	if override.Language != "" {
		c.Language = override.Language
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if len(override.Retry.DownloadBackoff) > 0 {
		c.Retry.DownloadBackoff = override.Retry.DownloadBackoff
	}
	if override.Retry.UploadBackoff != 0 {
		c.Retry.UploadBackoff = override.Retry.UploadBackoff
	}
	if override.Retry.LoopPause != 0 {
		c.Retry.LoopPause = override.Retry.LoopPause
	}
	if override.Filler.QueryLength != 0 {
		c.Filler.QueryLength = override.Filler.QueryLength
	}
	if override.Filler.HeaderCount != 0 {
		c.Filler.HeaderCount = override.Filler.HeaderCount
	}
	if override.Filler.HeaderLength != 0 {
		c.Filler.HeaderLength = override.Filler.HeaderLength
	}
	return c
}

// SessionConfig returns the engine session described by c.
func (c *Config) SessionConfig() (engine.SessionConfig, error) {
	mode, err := engine.ParseMode(c.Mode)
	if err != nil {
		return engine.SessionConfig{}, err
	}
	return engine.SessionConfig{Mode: mode, TargetMB: c.SizeMB, Threads: c.Threads}, nil
}

// ControllerOptions returns engine options carrying the URLs and pacing of
// c. Transport, Display, Messages and Logger are left for the caller.
func (c *Config) ControllerOptions() engine.Options {
	filler := payload.DefaultFillerOptions()
	filler.QueryLength = c.Filler.QueryLength
	filler.HeaderCount = c.Filler.HeaderCount
	filler.HeaderValueLength = c.Filler.HeaderLength

	return engine.Options{
		DownloadURL:      c.DownloadURL,
		UploadURL:        c.UploadURL,
		SnapshotInterval: c.SnapshotInterval,
		SlowAfter:        c.SlowAfter,
		SlowThreshold:    float64(c.SlowThreshold),
		DownloadBackoff:  c.Retry.DownloadBackoff,
		UploadBackoff:    c.Retry.UploadBackoff,
		LoopPause:        c.Retry.LoopPause,
		Filler:           filler,
	}
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func parseDuration(v, name string, dst *time.Duration) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func parseDurations(vs []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(vs))
	for _, v := range vs {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
