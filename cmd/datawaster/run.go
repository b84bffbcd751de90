package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hletrd/data-waster/internal/config"
	"github.com/hletrd/data-waster/internal/engine"
	dwhttp "github.com/hletrd/data-waster/internal/http"
	"github.com/hletrd/data-waster/internal/locale"
	"github.com/hletrd/data-waster/internal/logging"
	"github.com/hletrd/data-waster/internal/progress"
)

// runSession runs one transfer session until the target is reached or the
// process is interrupted.
func runSession(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env-file", ".env", "Environment file loaded before DATAWASTER_* variables")
	mode := fs.String("mode", "", "Transfer mode: download, upload or both")
	size := fs.Int("size", 0, "Target size in MB, 0 for unbounded")
	threads := fs.Int("threads", 0, "Number of parallel workers")
	downloadURL := fs.String("download-url", "", "Backing resource URL")
	uploadURL := fs.String("upload-url", "", "Echo endpoint URL")
	lang := fs.String("lang", "", "Display language (en, ko); defaults to $LANG")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (text, json)")
	quiet := fs.Bool("quiet", false, "Disable progress output")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: datawaster run [options]

Download from the backing resource and/or upload filler to the echo endpoint
until the target size is reached. With -size 0 the session runs until
interrupted.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	cfg = cfg.Merge(config.Config{
		Mode:        *mode,
		Threads:     *threads,
		DownloadURL: *downloadURL,
		UploadURL:   *uploadURL,
		Language:    *lang,
		LogLevel:    *logLevel,
		LogFormat:   *logFormat,
	})
	// Merge ignores zero values; an explicit -size 0 selects unbounded.
	if isSet(fs, "size") {
		cfg.SizeMB = *size
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	language := cfg.Language
	if language == "" {
		language = locale.Detect()
	}
	catalog, err := locale.Load(language)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	httpOpts := dwhttp.DefaultOptions()
	httpOpts.MaxIdleConnsPerHost = cfg.Threads * 2

	opts := cfg.ControllerOptions()
	opts.Transport = dwhttp.NewClient(httpOpts)
	opts.Messages = catalog
	opts.Logger = log
	if !*quiet {
		opts.Display = progress.NewRenderer(progress.Options{Output: os.Stdout, Labels: catalog})
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[datawaster] Received interrupt, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	c := engine.NewController(opts)
	if err := c.Start(ctx, sessCfg); err != nil {
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", validationMessage(catalog, ve))
			return ExitValidationFailed
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	<-c.Done()
	c.Wait()

	down, up := c.Session().Accountant().Totals()
	switch c.State() {
	case engine.StateCompleted:
		fmt.Fprintf(os.Stderr, "[datawaster] Done: downloaded %s, uploaded %s\n",
			progress.FormatBytes(down), progress.FormatBytes(up))
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "[datawaster] %s: downloaded %s, uploaded %s\n",
			catalog.Text(locale.KeyStoppedMessage), progress.FormatBytes(down), progress.FormatBytes(up))
		if c.Session().Unbounded() {
			// Interrupting is the only way an unbounded session ends.
			return ExitSuccess
		}
		return ExitGeneralError
	}
}

func loadConfig(path, envFile string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func validationMessage(catalog *locale.Catalog, err *engine.ValidationError) string {
	switch {
	case errors.Is(err, engine.ErrNoDirection):
		return catalog.Text(locale.KeyNoDirection)
	case errors.Is(err, engine.ErrInvalidSize):
		return catalog.Text(locale.KeyInvalidSize)
	case errors.Is(err, engine.ErrNoWorkers):
		return catalog.Text(locale.KeyNoWorkers)
	default:
		return err.Error()
	}
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
