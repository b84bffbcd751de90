// Package config defines configuration structures for the datawaster CLI.
//
// Configuration can be provided via (later sources win):
//   - YAML configuration file
//   - .env file and environment variables (DATAWASTER_ prefix)
//   - Command-line flags
//
// # Structure
//
//	type Config struct {
//	    Mode             string // download, upload or both
//	    SizeMB           int    // 0 = unbounded
//	    Threads          int
//	    DownloadURL      string
//	    UploadURL        string
//	    SnapshotInterval time.Duration
//	    SlowAfter        time.Duration
//	    SlowThreshold    int64 // bytes/s
//	    Language         string
//	    LogLevel         string
//	    LogFormat        string
//	    Retry            RetryConfig
//	    Filler           FillerConfig
//	}
//
// # Example
//
//	mode: both
//	size_mb: 500
//	threads: 8
//	download_url: https://example.com/data-waste.bin
//	upload_url: https://example.com/wastebin
//	slow_threshold: 1MiB
//	retry:
//	  download_backoff: [50ms, 100ms, 500ms]
//	  upload_backoff: 1s
package config
