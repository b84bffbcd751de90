// Package testutils provides shared test infrastructure.
package testutils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// RangeMode selects how a test server treats Range headers.
type RangeMode int

const (
	// RangeSupported answers ranges with 206 and 416 past the end.
	RangeSupported RangeMode = iota
	// RangeRejected answers every ranged request with 416.
	RangeRejected
	// RangeIgnored serves the full body with 200 regardless of Range.
	RangeIgnored
	// RangeRefused advertises "Accept-Ranges: none" and answers any ranged
	// request with 416.
	RangeRefused
)

// Server is an httptest server exposing a backing resource and an echo
// endpoint, with request counters.
type Server struct {
	*httptest.Server

	DataPath string
	EchoPath string

	Ranged   atomic.Int64
	Unranged atomic.Int64
	Rejected atomic.Int64
	Echoed   atomic.Int64
}

// DataURL returns the URL of the backing resource.
func (s *Server) DataURL() string {
	return s.URL + s.DataPath
}

// EchoURL returns the URL of the echo endpoint.
func (s *Server) EchoURL() string {
	return s.URL + s.EchoPath
}

// GenerateTestData generates deterministic test data of the given size.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// StartServer starts a server serving data at /data-waste.bin and an echo
// endpoint at /wastebin. The server is closed when the test ends.
func StartServer(t *testing.T, data []byte, mode RangeMode) *Server {
	t.Helper()

	s := &Server{DataPath: "/data-waste.bin", EchoPath: "/wastebin"}
	size := int64(len(data))

	mux := http.NewServeMux()
	mux.HandleFunc(s.DataPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		switch mode {
		case RangeSupported:
			w.Header().Set("Accept-Ranges", "bytes")
		case RangeRefused:
			w.Header().Set("Accept-Ranges", "none")
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" || mode == RangeIgnored {
			s.Unranged.Add(1)
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Write(data)
			return
		}

		if mode == RangeRejected || mode == RangeRefused {
			s.Rejected.Add(1)
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		// Parse range header: bytes=start-end
		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)

		if start >= size {
			s.Rejected.Add(1)
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= size {
			end = size - 1
		}

		s.Ranged.Add(1)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	})
	mux.HandleFunc(s.EchoPath, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		s.Echoed.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}
