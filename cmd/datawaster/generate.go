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

	"github.com/hletrd/data-waster/internal/payload"
	"github.com/hletrd/data-waster/internal/progress"
	"github.com/hletrd/data-waster/internal/server"
)

// runGenerate writes a random backing resource into a bucket.
func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)

	bucket := fs.String("bucket", "", "Destination bucket URL (required)")
	object := fs.String("object", server.DefaultObject, "Destination object key")
	size := fs.String("size", "100MiB", "Size of the resource")
	showProgress := fs.Bool("progress", false, "Show progress output")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: datawaster generate [options]

Write cryptographically random bytes into a bucket object, to be served by
'datawaster serve' as the backing resource.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *bucket == "" {
		fmt.Fprintln(os.Stderr, "Error: -bucket is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	sizeBytes, err := progress.ParseBytes(*size)
	if err != nil || sizeBytes <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid size: %s\n", *size)
		return ExitInvalidArgs
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[datawaster] Received interrupt, aborting...")
			cancel()
		case <-ctx.Done():
		}
	}()

	bkt, err := blob.OpenBucket(ctx, *bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bkt.Close()

	// Cancelling ctx before Close aborts the write.
	w, err := bkt.NewWriter(ctx, *object, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating object: %v\n", err)
		return ExitStorageError
	}

	var report payload.ProgressFunc
	if *showProgress {
		report = func(done, total int64) {
			if done%(16*payload.ChunkSize) != 0 && done != total {
				return
			}
			fmt.Fprintf(os.Stderr, "\r[datawaster] Generating: %.1f%% | %s / %s    ",
				float64(done)/float64(total)*100,
				progress.FormatBytes(done),
				progress.FormatBytes(total),
			)
		}
	}

	if err := payload.Generate(w, sizeBytes, report); err != nil {
		cancel()
		w.Close()
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		return ExitStorageError
	}
	if err := w.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError writing object: %v\n", err)
		return ExitStorageError
	}
	if *showProgress {
		fmt.Fprintln(os.Stderr)
	}

	fmt.Fprintf(os.Stderr, "[datawaster] Generated %s at %s/%s\n", progress.FormatBytes(sizeBytes), *bucket, *object)
	return ExitSuccess
}
