package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Default paths and object name.
const (
	DefaultObject   = "data-waste.bin"
	DefaultDataPath = "/data-waste.bin"
	DefaultEchoPath = "/wastebin"
)

// Options configures the server.
type Options struct {
	// Bucket holds the backing resource (required).
	Bucket *blob.Bucket

	// Object is the key of the backing resource in Bucket.
	// Default: data-waste.bin
	Object string

	// DataPath is where the backing resource is served.
	// Default: /data-waste.bin
	DataPath string

	// EchoPath is where upload filler is accepted and discarded.
	// Default: /wastebin
	EchoPath string

	// Logger receives request logs.
	// Default: logrus standard logger
	Logger logrus.FieldLogger
}

// Server serves the backing resource and the echo endpoint.
type Server struct {
	opts Options
	mux  *http.ServeMux
}

// New creates a server.
func New(opts Options) (*Server, error) {
	if opts.Bucket == nil {
		return nil, errors.New("server: bucket is required")
	}
	if opts.Object == "" {
		opts.Object = DefaultObject
	}
	if opts.DataPath == "" {
		opts.DataPath = DefaultDataPath
	}
	if opts.EchoPath == "" {
		opts.EchoPath = DefaultEchoPath
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc(opts.DataPath, s.serveData)
	s.mux.HandleFunc(opts.EchoPath, s.serveEcho)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) serveData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	log := s.opts.Logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})

	attrs, err := s.opts.Bucket.Attributes(ctx, s.opts.Object)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			http.NotFound(w, r)
			return
		}
		log.WithError(err).Error("read attributes")
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	size := attrs.Size

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Type", "application/octet-stream")
	if attrs.ETag != "" {
		h.Set("ETag", attrs.ETag)
	}
	if !attrs.ModTime.IsZero() {
		h.Set("Last-Modified", attrs.ModTime.UTC().Format(http.TimeFormat))
	}

	if r.Method == http.MethodHead {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	start, length, ok := parseRange(r.Header.Get("Range"), size)
	switch {
	case !ok:
		s.copyObject(w, r, log, 0, -1, size, http.StatusOK)
	case length == 0:
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
	default:
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, size))
		s.copyObject(w, r, log, start, length, length, http.StatusPartialContent)
	}
}

// copyObject streams length bytes from offset (all remaining when length is
// negative) with the given status.
func (s *Server) copyObject(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, offset, length, contentLength int64, status int) {
	rd, err := s.opts.Bucket.NewRangeReader(r.Context(), s.opts.Object, offset, length, nil)
	if err != nil {
		log.WithError(err).Error("open object")
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	defer rd.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.WriteHeader(status)

	n, err := io.Copy(w, rd)
	if err != nil && r.Context().Err() == nil {
		log.WithError(err).WithField("written", n).Debug("copy interrupted")
	}
}

func (s *Server) serveEcho(w http.ResponseWriter, r *http.Request) {
	n, _ := io.Copy(io.Discard, r.Body)

	h := w.Header()
	h.Set("Cache-Control", "no-store")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	w.WriteHeader(http.StatusNoContent)

	s.opts.Logger.WithFields(logrus.Fields{
		"method":  r.Method,
		"path":    r.URL.Path,
		"body":    n,
		"headers": len(r.Header),
	}).Debug("echo")
}

// parseRange parses a single-range "bytes=" header against size. ok is
// false when the header is absent, malformed or multi-range, in which case
// the whole resource is served. A zero length with ok set means the range
// is unsatisfiable.
func parseRange(header string, size int64) (start, length int64, ok bool) {
	rangeSpec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(rangeSpec, ",") {
		return 0, 0, false
	}
	first, last, found := strings.Cut(strings.TrimSpace(rangeSpec), "-")
	if !found {
		return 0, 0, false
	}

	if first == "" {
		// Suffix range: the last n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		n = min(n, size)
		return size - n, n, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if start >= size {
		return start, 0, true
	}

	end := size - 1
	if last != "" {
		e, err := strconv.ParseInt(last, 10, 64)
		if err != nil || e < start {
			return 0, 0, false
		}
		end = min(e, size-1)
	}
	return start, end - start + 1, true
}
