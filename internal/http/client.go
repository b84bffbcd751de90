package http

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/hletrd/data-waster/internal/payload"
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout bounds a whole request including the body. Zero leaves
	// requests bounded only by the transport and the caller's context.
	// Default: 0
	Timeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers.
	// Default: 0 (transport default)
	ResponseHeaderTimeout time.Duration

	// ProbeAttempts is the number of HEAD attempts made by Head.
	// Default: 3
	ProbeAttempts int

	// ProbeBackoff is the initial backoff between HEAD attempts.
	// Default: 100ms
	ProbeBackoff time.Duration

	// ProbeMaxBackoff caps the HEAD backoff.
	// Default: 1s
	ProbeMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		ProbeAttempts:       3,
		ProbeBackoff:        100 * time.Millisecond,
		ProbeMaxBackoff:     time.Second,
	}
}

// FileInfo is what a HEAD probe learns about the backing resource.
type FileInfo struct {
	Size int64

	// AcceptsRanges is set for "Accept-Ranges: bytes", RangesRefused for
	// "Accept-Ranges: none". Both are false when the header is absent.
	AcceptsRanges bool
	RangesRefused bool
}

// ByteRange is an inclusive byte interval, as in the Range header.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) String() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Response is a streaming GET response.
type Response struct {
	Body          io.ReadCloser
	StatusCode    int
	ContentLength int64

	// Ranged reports whether the server honoured the Range header.
	Ranged bool
}

// Client issues the download and upload requests of a transfer session.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 100
	}
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = 1
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		DisableCompression:    true, // byte counts must reflect the wire
		ForceAttemptHTTP2:     true,
	}
	// Errors from the HTTP/2 path then surface as x/net/http2 types,
	// which classify() recognises.
	if _, err := http2.ConfigureTransports(transport); err != nil {
		transport.ForceAttemptHTTP2 = false
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Head performs a HEAD request to discover the resource size.
// Server errors and network failures are retried up to ProbeAttempts times.
func (c *Client) Head(ctx context.Context, rawURL string) (*FileInfo, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.ProbeAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, wrap(ctx, "head", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = wrap(ctx, "head", err)
			if KindOf(lastErr) == KindCancelled {
				return nil, lastErr
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = statusError("head", KindOtherTransient, resp.StatusCode)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusError("head", KindOtherTransient, resp.StatusCode)
		}

		accept := strings.ToLower(strings.TrimSpace(resp.Header.Get("Accept-Ranges")))
		return &FileInfo{
			Size:          resp.ContentLength,
			AcceptsRanges: accept == "bytes",
			RangesRefused: accept == "none",
		}, nil
	}

	return nil, fmt.Errorf("head request failed after %d attempts: %w", c.opts.ProbeAttempts, lastErr)
}

// Get streams rawURL. When rng is non-nil a Range header is sent; a 416,
// any status other than 200/206, or a 206 whose Content-Range does not start
// at rng.Start is reported as KindRangeUnsupported. Every
// request carries a unique cache-defeating query token and asks for an
// uncompressed body.
func (c *Client) Get(ctx context.Context, rawURL string, rng *ByteRange) (*Response, error) {
	target, err := withQuery(rawURL, "t", uuid.NewString())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	if rng != nil {
		req.Header.Set("Range", rng.String())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrap(ctx, "get", err)
	}

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		if rng != nil {
			if err := checkContentRange(resp.Header.Get("Content-Range"), *rng); err != nil {
				drain(resp.Body)
				return nil, &Error{Kind: KindRangeUnsupported, Op: "get", StatusCode: resp.StatusCode, Err: err}
			}
		}
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable, rng != nil:
		drain(resp.Body)
		return nil, statusError("get", KindRangeUnsupported, resp.StatusCode)
	default:
		drain(resp.Body)
		return nil, statusError("get", KindOtherTransient, resp.StatusCode)
	}

	return &Response{
		Body:          resp.Body,
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		Ranged:        rng != nil && resp.StatusCode == http.StatusPartialContent,
	}, nil
}

// SendFiller issues a GET to rawURL carrying f as a query value and headers.
// The response body is discarded. Once the exchange completes the filler has
// been sent, so any status is a success except 405, which is reported as
// KindBenignTransient.
func (c *Client) SendFiller(ctx context.Context, rawURL string, f payload.Filler) error {
	target, err := withQuery(rawURL, "waste", f.Query)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Encoding", "identity")
	for _, h := range f.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return wrap(ctx, "send", err)
	}
	drain(resp.Body)

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return statusError("send", KindBenignTransient, resp.StatusCode)
	}
	return nil
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.ProbeBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.ProbeMaxBackoff {
		backoff = c.opts.ProbeMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}

// ParseContentRange parses a "bytes first-last/total" Content-Range value.
// total is -1 when the server reports it as "*".
func ParseContentRange(header string) (first, last, total int64, err error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("content-range %q: not a byte range", header)
	}
	span, size, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("content-range %q: missing total", header)
	}
	from, to, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("content-range %q: missing span", header)
	}

	if first, err = strconv.ParseInt(from, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("content-range %q: first byte: %w", header, err)
	}
	if last, err = strconv.ParseInt(to, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("content-range %q: last byte: %w", header, err)
	}
	if last < first {
		return 0, 0, 0, fmt.Errorf("content-range %q: last byte before first", header)
	}

	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("content-range %q: total: %w", header, err)
		}
	}
	return first, last, total, nil
}

// checkContentRange reports whether a 206 answers the requested range. The
// server may shorten the span at the end of the resource, but it must start
// where it was asked to.
func checkContentRange(header string, want ByteRange) error {
	first, last, _, err := ParseContentRange(header)
	if err != nil {
		return err
	}
	if first != want.Start || last > want.End {
		return fmt.Errorf("content-range %d-%d does not match requested %d-%d", first, last, want.Start, want.End)
	}
	return nil
}
