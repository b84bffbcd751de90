package payload

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// HeaderPrefix is prepended to every random filler header name.
const HeaderPrefix = "X-Random-"

// headerSeparator is the ": " between a header name and its value on the wire.
const headerSeparator = 2

// ErrInvalidLength is returned when a negative length is requested.
var ErrInvalidLength = errors.New("payload: length must not be negative")

// FillerOptions configures the shape of an upload filler.
type FillerOptions struct {
	// QueryLength is the length of the random query value.
	// Default: 4000
	QueryLength int

	// HeaderCount is the number of random headers.
	// Default: 16
	HeaderCount int

	// HeaderNameLength is the length of the random part of each header name.
	// Default: 10
	HeaderNameLength int

	// HeaderValueLength is the length of each header value.
	// Default: 4000
	HeaderValueLength int
}

// DefaultFillerOptions returns the filler shape used by upload workers.
func DefaultFillerOptions() FillerOptions {
	return FillerOptions{
		QueryLength:       4000,
		HeaderCount:       16,
		HeaderNameLength:  10,
		HeaderValueLength: 4000,
	}
}

// Header is a single filler header.
type Header struct {
	Name  string
	Value string
}

// Filler is one request's worth of random outbound payload.
type Filler struct {
	Query   string
	Headers []Header
}

// Size returns the number of filler bytes carried by f.
func (f Filler) Size() int64 {
	n := int64(len(f.Query))
	for _, h := range f.Headers {
		n += int64(len(h.Name) + headerSeparator + len(h.Value))
	}
	return n
}

// Size returns the filler size produced by opts without generating it.
func (o FillerOptions) Size() int64 {
	header := int64(len(HeaderPrefix) + o.HeaderNameLength + headerSeparator + o.HeaderValueLength)
	return int64(o.QueryLength) + int64(o.HeaderCount)*header
}

// NewFiller generates a fresh random filler.
func NewFiller(opts FillerOptions) (Filler, error) {
	query, err := String(opts.QueryLength)
	if err != nil {
		return Filler{}, err
	}

	headers := make([]Header, 0, opts.HeaderCount)
	for i := 0; i < opts.HeaderCount; i++ {
		name, err := String(opts.HeaderNameLength)
		if err != nil {
			return Filler{}, err
		}
		value, err := String(opts.HeaderValueLength)
		if err != nil {
			return Filler{}, err
		}
		headers = append(headers, Header{Name: HeaderPrefix + name, Value: value})
	}

	return Filler{Query: query, Headers: headers}, nil
}

// String returns a random alphanumeric string of length n.
func String(n int) (string, error) {
	if n < 0 {
		return "", ErrInvalidLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("payload: read random: %w", err)
	}
	// 256 is not a multiple of 62; the slight bias is irrelevant for filler.
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// Bytes returns n random bytes.
func Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("payload: read random: %w", err)
	}
	return buf, nil
}

// ChunkSize is the granularity of Generate's writes and progress callbacks.
const ChunkSize = 64 * 1024

// ProgressFunc receives the number of bytes generated so far.
type ProgressFunc func(done, total int64)

// Generate writes size random bytes to w in ChunkSize pieces.
// A size below one byte produces a single byte.
func Generate(w io.Writer, size int64, progress ProgressFunc) error {
	if size < 1 {
		size = 1
	}

	buf := make([]byte, ChunkSize)
	var done int64
	for done < size {
		n := int64(len(buf))
		if remaining := size - done; remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if _, err := rand.Read(chunk); err != nil {
			return fmt.Errorf("payload: read random: %w", err)
		}
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("payload: write: %w", err)
		}
		done += n
		if progress != nil {
			progress(done, size)
		}
	}
	return nil
}
