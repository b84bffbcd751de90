package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/hletrd/data-waster/internal/logging"
	"github.com/hletrd/data-waster/internal/server"
)

// runServe serves the backing resource out of a bucket, plus the echo
// endpoint, until interrupted.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	addr := fs.String("addr", ":8080", "Listen address")
	bucket := fs.String("bucket", "", "Bucket URL holding the backing resource (required)")
	object := fs.String("object", server.DefaultObject, "Object key of the backing resource")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "text", "Log format (text, json)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: datawaster serve [options]

Serve the backing resource at /data-waste.bin (HEAD, GET and byte ranges)
and accept upload filler at /wastebin.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	// Validate required flags
	if *bucket == "" {
		fmt.Fprintln(os.Stderr, "Error: -bucket is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	log, err := logging.New(logging.Options{Level: *logLevel, Format: *logFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[datawaster] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Open bucket
	bkt, err := blob.OpenBucket(ctx, *bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bkt.Close()

	exists, err := bkt.Exists(ctx, *object)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error accessing object: %v\n", err)
		return ExitStorageError
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "Error: %s not found in %s; run 'datawaster generate' first\n", *object, *bucket)
		return ExitSourceNotAccess
	}

	srv, err := server.New(server.Options{Bucket: bkt, Object: *object, Logger: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	fmt.Fprintf(os.Stderr, "[datawaster] Serving %s/%s on %s\n", *bucket, *object, *addr)
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}
