package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MB is the unit of the configured target size.
const MB = 1024 * 1024

// Mode selects which directions a session drives.
type Mode uint8

const (
	ModeDownload Mode = 1 << iota
	ModeUpload

	ModeNone Mode = 0
	ModeBoth      = ModeDownload | ModeUpload
)

// ParseMode parses "download", "upload" or "both".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "download", "down", "dl":
		return ModeDownload, nil
	case "upload", "up", "ul":
		return ModeUpload, nil
	case "both", "download+upload", "all":
		return ModeBoth, nil
	default:
		return ModeNone, fmt.Errorf("engine: unknown mode %q", s)
	}
}

// Has reports whether m includes d.
func (m Mode) Has(d Direction) bool {
	switch d {
	case Download:
		return m&ModeDownload != 0
	case Upload:
		return m&ModeUpload != 0
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case ModeDownload:
		return "download"
	case ModeUpload:
		return "upload"
	case ModeBoth:
		return "both"
	default:
		return "none"
	}
}

// Direction is one side of the transfer.
type Direction uint8

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// State is the controller lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Severity grades the status text of a snapshot.
type Severity string

const (
	SeverityNone    Severity = ""
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Validation failures returned by Controller.Start.
var (
	ErrNoDirection    = errors.New("no direction selected")
	ErrInvalidSize    = errors.New("invalid target size")
	ErrInvalidThreads = errors.New("thread count must be positive")
	ErrNoWorkers      = errors.New("thread count leaves no worker for a direction")
	ErrAlreadyRunning = errors.New("engine: session already running")
)

// ValidationError wraps a configuration rejected by Controller.Start.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "engine: validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SessionConfig is the configuration surface consumed by the engine.
type SessionConfig struct {
	Mode Mode

	// TargetMB is the volume to transfer in MiB. Zero runs unbounded.
	TargetMB int

	Threads int
}

// Validate checks c.
func (c SessionConfig) Validate() error {
	if !c.Mode.Has(Download) && !c.Mode.Has(Upload) {
		return &ValidationError{Err: ErrNoDirection}
	}
	if c.TargetMB < 0 {
		return &ValidationError{Err: ErrInvalidSize}
	}
	if c.Threads < 1 {
		return &ValidationError{Err: ErrInvalidThreads}
	}
	return nil
}

// Session is one run of the engine. Counters live in the accountant.
type Session struct {
	Mode        Mode
	TargetBytes int64
	Threads     int
	StartedAt   time.Time
	Plan        Plan

	acct     *Accountant
	advisory *Advisory
	stopped  time.Time
}

// Unbounded reports whether the session runs until stopped.
func (s *Session) Unbounded() bool {
	return s.TargetBytes == 0
}

// Accountant returns the session's byte accountant.
func (s *Session) Accountant() *Accountant {
	return s.acct
}
