package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hletrd/data-waster/internal/engine"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Mode != "both" {
		t.Errorf("expected default mode both, got %s", cfg.Mode)
	}
	if cfg.SizeMB != 100 {
		t.Errorf("expected default size 100, got %d", cfg.SizeMB)
	}
	if cfg.Threads != 8 {
		t.Errorf("expected default threads 8, got %d", cfg.Threads)
	}
	if cfg.SlowAfter != 30*time.Second {
		t.Errorf("expected default slow_after 30s, got %v", cfg.SlowAfter)
	}
	if cfg.SlowThreshold != engine.MB {
		t.Errorf("expected default slow_threshold 1MiB, got %d", cfg.SlowThreshold)
	}
	if cfg.Filler.HeaderLength != 4000 {
		t.Errorf("expected default header length 4000, got %d", cfg.Filler.HeaderLength)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
mode: download
size_mb: 0
threads: 16
download_url: https://example.com/data-waste.bin
snapshot_interval: 250ms
slow_threshold: 512KiB
language: ko
log_format: json
retry:
  download_backoff: [10ms, 20ms]
  upload_backoff: 2s
  loop_pause: 5ms
filler:
  query_length: 100
  header_count: 2
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Mode != "download" {
		t.Errorf("expected mode download, got %s", cfg.Mode)
	}
	if cfg.SizeMB != 0 {
		t.Errorf("expected explicit size 0 to override default, got %d", cfg.SizeMB)
	}
	if cfg.Threads != 16 {
		t.Errorf("expected threads 16, got %d", cfg.Threads)
	}
	if cfg.SnapshotInterval != 250*time.Millisecond {
		t.Errorf("expected snapshot interval 250ms, got %v", cfg.SnapshotInterval)
	}
	if cfg.SlowThreshold != 512*1024 {
		t.Errorf("expected slow threshold 512KiB, got %d", cfg.SlowThreshold)
	}
	if cfg.Language != "ko" || cfg.LogFormat != "json" {
		t.Errorf("unexpected language/log format: %s/%s", cfg.Language, cfg.LogFormat)
	}
	if !reflect.DeepEqual(cfg.Retry.DownloadBackoff, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}) {
		t.Errorf("unexpected download backoff %v", cfg.Retry.DownloadBackoff)
	}
	if cfg.Retry.UploadBackoff != 2*time.Second {
		t.Errorf("expected upload backoff 2s, got %v", cfg.Retry.UploadBackoff)
	}
	if cfg.Retry.LoopPause != 5*time.Millisecond {
		t.Errorf("expected loop pause 5ms, got %v", cfg.Retry.LoopPause)
	}
	if cfg.Filler.QueryLength != 100 || cfg.Filler.HeaderCount != 2 || cfg.Filler.HeaderLength != 4000 {
		t.Errorf("unexpected filler %+v", cfg.Filler)
	}
	// Unset keys keep their defaults.
	if cfg.UploadURL != Default().UploadURL {
		t.Errorf("expected default upload URL, got %s", cfg.UploadURL)
	}
}

func TestLoadFromYAMLKeepsSizeWhenAbsent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("threads: 2\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.SizeMB != 100 {
		t.Errorf("expected default size 100, got %d", cfg.SizeMB)
	}
}

func TestLoadFromYAMLZeroFiller(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "filler:\n  header_count: 0\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Filler.HeaderCount != 0 {
		t.Errorf("expected explicit header count 0, got %d", cfg.Filler.HeaderCount)
	}
	if cfg.Filler.QueryLength != Default().Filler.QueryLength {
		t.Errorf("expected default query length, got %d", cfg.Filler.QueryLength)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("query-only filler should validate: %v", err)
	}
	if n := cfg.ControllerOptions().Filler.HeaderCount; n != 0 {
		t.Errorf("expected engine filler without headers, got %d", n)
	}
}

func TestLoadFromEnvZeroFiller(t *testing.T) {
	t.Setenv("DATAWASTER_FILLER_HEADER_COUNT", "0")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Filler.HeaderCount != 0 {
		t.Errorf("expected header count 0, got %d", cfg.Filler.HeaderCount)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATAWASTER_MODE", "upload")
	t.Setenv("DATAWASTER_SIZE_MB", "0")
	t.Setenv("DATAWASTER_THREADS", "3")
	t.Setenv("DATAWASTER_UPLOAD_URL", "https://example.com/echo")
	t.Setenv("DATAWASTER_SLOW_THRESHOLD", "2MiB")
	t.Setenv("DATAWASTER_RETRY_DOWNLOAD_BACKOFF", "1ms, 2ms,3ms")
	t.Setenv("DATAWASTER_RETRY_UPLOAD_BACKOFF", "500ms")
	t.Setenv("DATAWASTER_FILLER_HEADER_COUNT", "4")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Mode != "upload" {
		t.Errorf("expected mode upload, got %s", cfg.Mode)
	}
	if cfg.SizeMB != 0 {
		t.Errorf("expected size 0, got %d", cfg.SizeMB)
	}
	if cfg.Threads != 3 {
		t.Errorf("expected threads 3, got %d", cfg.Threads)
	}
	if cfg.UploadURL != "https://example.com/echo" {
		t.Errorf("unexpected upload URL %s", cfg.UploadURL)
	}
	if cfg.SlowThreshold != 2*1024*1024 {
		t.Errorf("expected slow threshold 2MiB, got %d", cfg.SlowThreshold)
	}
	if !reflect.DeepEqual(cfg.Retry.DownloadBackoff, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}) {
		t.Errorf("unexpected download backoff %v", cfg.Retry.DownloadBackoff)
	}
	if cfg.Retry.UploadBackoff != 500*time.Millisecond {
		t.Errorf("expected upload backoff 500ms, got %v", cfg.Retry.UploadBackoff)
	}
	if cfg.Filler.HeaderCount != 4 {
		t.Errorf("expected header count 4, got %d", cfg.Filler.HeaderCount)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("DATAWASTER_THREADS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid threads")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DATAWASTER_THREADS=12\nDATAWASTER_MODE=download\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// Variables already in the environment win over the file.
	t.Setenv("DATAWASTER_MODE", "upload")
	t.Setenv("DATAWASTER_THREADS", "")
	os.Unsetenv("DATAWASTER_THREADS")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Threads != 12 {
		t.Errorf("expected threads 12 from .env, got %d", cfg.Threads)
	}
	if cfg.Mode != "upload" {
		t.Errorf("expected environment to win, got mode %s", cfg.Mode)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"unbounded", func(c *Config) { c.SizeMB = 0 }, false},
		{"unknown mode", func(c *Config) { c.Mode = "sideways" }, true},
		{"negative size", func(c *Config) { c.SizeMB = -1 }, true},
		{"no threads", func(c *Config) { c.Threads = 0 }, true},
		{"missing download URL", func(c *Config) { c.DownloadURL = "" }, true},
		{"upload only without download URL", func(c *Config) { c.Mode = "upload"; c.DownloadURL = "" }, false},
		{"missing upload URL", func(c *Config) { c.UploadURL = "" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"negative filler", func(c *Config) { c.Filler.HeaderCount = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.DownloadURL = "https://example.com/data-waste.bin"

	override := Config{
		Threads: 32,
		Mode:    "upload",
	}

	merged := base.Merge(override)

	if merged.DownloadURL != "https://example.com/data-waste.bin" {
		t.Errorf("expected DownloadURL preserved, got %s", merged.DownloadURL)
	}
	if merged.SizeMB != 100 {
		t.Errorf("expected SizeMB preserved, got %d", merged.SizeMB)
	}
	if merged.Threads != 32 {
		t.Errorf("expected Threads overridden to 32, got %d", merged.Threads)
	}
	if merged.Mode != "upload" {
		t.Errorf("expected Mode overridden to upload, got %s", merged.Mode)
	}
}

func TestSessionAndControllerOptions(t *testing.T) {
	cfg := Default()
	cfg.Mode = "download"
	cfg.SizeMB = 5
	cfg.Threads = 2
	cfg.Filler.QueryLength = 10

	sc, err := cfg.SessionConfig()
	if err != nil {
		t.Fatalf("SessionConfig: %v", err)
	}
	if sc != (engine.SessionConfig{Mode: engine.ModeDownload, TargetMB: 5, Threads: 2}) {
		t.Errorf("unexpected session config %+v", sc)
	}

	opts := cfg.ControllerOptions()
	if opts.DownloadURL != cfg.DownloadURL || opts.UploadURL != cfg.UploadURL {
		t.Errorf("URLs not carried over: %+v", opts)
	}
	if opts.Filler.QueryLength != 10 || opts.Filler.HeaderNameLength != 10 {
		t.Errorf("unexpected filler options %+v", opts.Filler)
	}
	if opts.SlowThreshold != float64(engine.MB) {
		t.Errorf("unexpected slow threshold %v", opts.SlowThreshold)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
