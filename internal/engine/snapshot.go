package engine

import (
	"sync"
	"time"
)

// Snapshot is an immutable view of a session handed to the display.
type Snapshot struct {
	State           State
	Mode            Mode
	TargetBytes     int64
	BytesDownloaded int64
	BytesUploaded   int64
	TotalBytes      int64
	DownloadPercent float64
	UploadPercent   float64
	ThroughputMBps  float64
	Elapsed         time.Duration
	StatusText      string
	StatusSeverity  Severity
}

// Display receives periodic snapshots. Show is called from the
// controller's monitor goroutine and must not block for long.
type Display interface {
	Show(Snapshot)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(Snapshot)

// Show calls f(s).
func (f DisplayFunc) Show(s Snapshot) {
	f(s)
}

// Advisory holds the session's status line. Workers post soft warnings to
// it; the controller reads it when building snapshots.
type Advisory struct {
	mu       sync.Mutex
	text     string
	severity Severity
}

// Set replaces the status line.
func (a *Advisory) Set(text string, severity Severity) {
	a.mu.Lock()
	a.text, a.severity = text, severity
	a.mu.Unlock()
}

// ClearIf clears the status line if it still reads text.
func (a *Advisory) ClearIf(text string) {
	a.mu.Lock()
	if a.text == text {
		a.text, a.severity = "", SeverityNone
	}
	a.mu.Unlock()
}

// Get returns the current status line.
func (a *Advisory) Get() (string, Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text, a.severity
}

func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	p := float64(part) / float64(whole) * 100
	return min(max(p, 0), 100)
}
