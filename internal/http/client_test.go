package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/http2"

	"github.com/hletrd/data-waster/internal/payload"
)

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Length", "1024")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	info, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	if info.Size != 1024 {
		t.Errorf("expected size 1024, got %d", info.Size)
	}
	if !info.AcceptsRanges {
		t.Error("expected AcceptsRanges to be true")
	}
	if info.RangesRefused {
		t.Error("expected RangesRefused to be false")
	}
}

func TestHeadAcceptRanges(t *testing.T) {
	tests := []struct {
		header  string
		accepts bool
		refused bool
	}{
		{"bytes", true, false},
		{"None", false, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Accept-Ranges", tt.header)
				}
			}))
			defer server.Close()

			info, err := NewClient(DefaultOptions()).Head(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Head: %v", err)
			}
			if info.AcceptsRanges != tt.accepts || info.RangesRefused != tt.refused {
				t.Errorf("Accept-Ranges %q: got accepts=%v refused=%v, want %v/%v",
					tt.header, info.AcceptsRanges, info.RangesRefused, tt.accepts, tt.refused)
			}
		})
	}
}

func TestHeadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	_, err := client.Head(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var te *Error
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 error, got %v", err)
	}
}

func TestHeadRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Length", "10")
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.ProbeBackoff = 5 * time.Millisecond
	opts.ProbeMaxBackoff = 20 * time.Millisecond

	client := NewClient(opts)
	info, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if info.Size != 10 {
		t.Errorf("expected size 10, got %d", info.Size)
	}
}

func TestGetRange(t *testing.T) {
	data := []byte("Hello, World! This is test data for range requests.")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "" {
			t.Error("expected cache token in query")
		}
		if got := r.Header.Get("Accept-Encoding"); got != "identity" {
			t.Errorf("expected Accept-Encoding identity, got %q", got)
		}

		rangeHeader := strings.TrimPrefix(r.Header.Get("Range"), "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)

		w.Header().Set("Content-Range", "bytes "+rangeHeader+"/"+strconv.Itoa(len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(int(end-start+1)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL, &ByteRange{Start: 0, End: 4})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", string(body))
	}
	if !resp.Ranged {
		t.Error("expected Ranged to be true")
	}
}

func TestGetCacheTokenUnique(t *testing.T) {
	seen := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL.Query().Get("t")
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), server.URL+"/data.bin", nil)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		resp.Body.Close()
	}
	if a, b := <-seen, <-seen; a == b {
		t.Errorf("expected distinct cache tokens, got %q twice", a)
	}
}

func TestGetFullBodyOnRangedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL, &ByteRange{Start: 0, End: 4})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.Ranged {
		t.Error("expected Ranged to be false for a 200 response")
	}
}

func TestGetRejectsMismatchedContentRange(t *testing.T) {
	tests := []struct {
		name         string
		contentRange string
	}{
		{"other start", "bytes 0-99/1000"},
		{"past requested end", "bytes 100-299/1000"},
		{"missing", ""},
		{"garbage", "items 100-199/1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentRange != "" {
					w.Header().Set("Content-Range", tt.contentRange)
				}
				w.WriteHeader(http.StatusPartialContent)
				w.Write(make([]byte, 100))
			}))
			defer server.Close()

			client := NewClient(DefaultOptions())
			_, err := client.Get(context.Background(), server.URL, &ByteRange{Start: 100, End: 199})
			if got := KindOf(err); got != KindRangeUnsupported {
				t.Errorf("KindOf = %q, want %q (err=%v)", got, KindRangeUnsupported, err)
			}
		})
	}
}

func TestGetAcceptsShortenedContentRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 100-149/150")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 50))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL, &ByteRange{Start: 100, End: 199})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if !resp.Ranged {
		t.Error("expected Ranged to be true")
	}
}

func TestGetClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		rng    *ByteRange
		want   Kind
	}{
		{"416 ranged", http.StatusRequestedRangeNotSatisfiable, &ByteRange{0, 10}, KindRangeUnsupported},
		{"416 unranged", http.StatusRequestedRangeNotSatisfiable, nil, KindRangeUnsupported},
		{"403 ranged", http.StatusForbidden, &ByteRange{0, 10}, KindRangeUnsupported},
		{"500 ranged", http.StatusInternalServerError, &ByteRange{0, 10}, KindRangeUnsupported},
		{"500 unranged", http.StatusInternalServerError, nil, KindOtherTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(DefaultOptions())
			_, err := client.Get(context.Background(), server.URL, tt.rng)
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf = %q, want %q (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestSendFiller(t *testing.T) {
	filler, err := payload.NewFiller(payload.FillerOptions{
		QueryLength:       64,
		HeaderCount:       4,
		HeaderNameLength:  6,
		HeaderValueLength: 32,
	})
	if err != nil {
		t.Fatalf("NewFiller: %v", err)
	}

	var headers atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("waste"); got != filler.Query {
			t.Errorf("expected waste query %q, got %q", filler.Query, got)
		}
		for name := range r.Header {
			if strings.HasPrefix(name, payload.HeaderPrefix) {
				headers.Add(1)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	if err := client.SendFiller(context.Background(), server.URL, filler); err != nil {
		t.Fatalf("SendFiller: %v", err)
	}
	if headers.Load() != 4 {
		t.Errorf("expected 4 filler headers, got %d", headers.Load())
	}
}

func TestSendFillerClassification(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusOK, ""},
		{http.StatusNotFound, ""},
		{http.StatusMethodNotAllowed, KindBenignTransient},
		{http.StatusInternalServerError, ""},
		{http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(DefaultOptions())
			err := client.SendFiller(context.Background(), server.URL, payload.Filler{Query: "x"})
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf = %q, want %q (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestConnectionRefusedIsBenign(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(DefaultOptions())
	err = client.SendFiller(context.Background(), "http://"+addr, payload.Filler{Query: "x"})
	if got := KindOf(err); got != KindBenignTransient {
		t.Errorf("KindOf = %q, want %q (err=%v)", got, KindBenignTransient, err)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(DefaultOptions())
	_, err := client.Get(ctx, server.URL, nil)
	if got := KindOf(err); got != KindCancelled {
		t.Errorf("KindOf = %q, want %q (err=%v)", got, KindCancelled, err)
	}
}

func TestKindOfForeignErrors(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{context.Canceled, KindCancelled},
		{io.ErrUnexpectedEOF, KindBenignTransient},
		{http2.StreamError{StreamID: 1, Code: http2.ErrCodeProtocol}, KindBenignTransient},
		{http2.GoAwayError{ErrCode: http2.ErrCodeProtocol}, KindBenignTransient},
		{errors.New("boom"), KindOtherTransient},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header string
		first  int64
		last   int64
		total  int64
	}{
		{"bytes 0-99/1000", 0, 99, 1000},
		{"bytes 100-199/1000", 100, 199, 1000},
		{"bytes 0-99/*", 0, 99, -1},
	}

	for _, tt := range tests {
		first, last, total, err := ParseContentRange(tt.header)
		if err != nil {
			t.Errorf("ParseContentRange(%q): %v", tt.header, err)
			continue
		}
		if first != tt.first || last != tt.last || total != tt.total {
			t.Errorf("ParseContentRange(%q) = (%d, %d, %d), want (%d, %d, %d)",
				tt.header, first, last, total, tt.first, tt.last, tt.total)
		}
	}

	for _, bad := range []string{"", "bytes */1000", "bytes 9-0/10", "bytes 0-9", "bytes a-9/10"} {
		if _, _, _, err := ParseContentRange(bad); err == nil {
			t.Errorf("ParseContentRange(%q): expected error", bad)
		}
	}
}
