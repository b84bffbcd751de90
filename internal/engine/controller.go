package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hletrd/data-waster/internal/locale"
	"github.com/hletrd/data-waster/internal/payload"
)

// Messages supplies display strings. *locale.Catalog satisfies it.
type Messages interface {
	Text(key string) string
	Format(key string, args map[string]string) string
}

// Options configures the controller.
type Options struct {
	// DownloadURL is the backing resource streamed by download workers.
	DownloadURL string

	// UploadURL is the echo endpoint that receives upload filler.
	UploadURL string

	// Transport performs the network requests (required).
	Transport Transport

	// Display receives snapshots. Optional.
	Display Display

	// Messages supplies status strings.
	// Default: English catalog
	Messages Messages

	// Logger receives worker diagnostics.
	// Default: logrus standard logger
	Logger logrus.FieldLogger

	// SnapshotInterval is the snapshot cadence.
	// Default: 100ms
	SnapshotInterval time.Duration

	// SlowAfter is how long a session runs before the slow network
	// advisory may appear.
	// Default: 30s
	SlowAfter time.Duration

	// SlowThreshold is the throughput in bytes/s below which the
	// network is considered slow.
	// Default: 1 MiB/s
	SlowThreshold float64

	// DownloadBackoff is the escalating pause after download failures.
	// Default: 50ms, 100ms, 500ms
	DownloadBackoff []time.Duration

	// UploadBackoff is the pause after an upload failure.
	// Default: 1s
	UploadBackoff time.Duration

	// LoopPause is the pause before re-requesting an exhausted body.
	// A negative value disables it.
	// Default: 10ms
	LoopPause time.Duration

	// ReadBufferSize is the size of each body read.
	// Default: 64KiB
	ReadBufferSize int

	// Filler shapes the upload payload.
	// Default: payload.DefaultFillerOptions()
	Filler payload.FillerOptions
}

// DefaultOptions returns controller options with default pacing.
func DefaultOptions() Options {
	return Options{
		SnapshotInterval: 100 * time.Millisecond,
		SlowAfter:        30 * time.Second,
		SlowThreshold:    MB,
		DownloadBackoff:  []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond},
		UploadBackoff:    time.Second,
		LoopPause:        10 * time.Millisecond,
		ReadBufferSize:   64 * 1024,
		Filler:           payload.DefaultFillerOptions(),
	}
}

// Controller orchestrates one transfer session at a time.
type Controller struct {
	opts Options

	mu      sync.Mutex
	state   State
	session *Session
	handles []*WorkerHandle
	stopCh  chan struct{}
	wg      *sync.WaitGroup
}

// NewController creates a controller. Zero-valued options take defaults.
func NewController(opts Options) *Controller {
	def := DefaultOptions()
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = def.SnapshotInterval
	}
	if opts.SlowAfter <= 0 {
		opts.SlowAfter = def.SlowAfter
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = def.SlowThreshold
	}
	if opts.DownloadBackoff == nil {
		opts.DownloadBackoff = def.DownloadBackoff
	}
	if opts.UploadBackoff <= 0 {
		opts.UploadBackoff = def.UploadBackoff
	}
	switch {
	case opts.LoopPause == 0:
		opts.LoopPause = def.LoopPause
	case opts.LoopPause < 0:
		opts.LoopPause = 0
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = def.ReadBufferSize
	}
	if opts.Filler == (payload.FillerOptions{}) {
		opts.Filler = def.Filler
	}
	if opts.Messages == nil {
		opts.Messages = locale.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Controller{
		opts: opts,
		wg:   &sync.WaitGroup{},
	}
}

// Start validates cfg, plans the work and spawns the workers. It returns
// once the session is running. Cancelling ctx stops the session.
func (c *Controller) Start(ctx context.Context, cfg SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.opts.Transport == nil {
		return fmt.Errorf("engine: no transport configured")
	}

	target := int64(cfg.TargetMB) * MB

	// Best-effort size probe; failure falls back to planning on target.
	var (
		hint    int64
		refused bool
	)
	if cfg.Mode.Has(Download) {
		if info, err := c.opts.Transport.Head(ctx, c.opts.DownloadURL); err != nil {
			c.opts.Logger.WithError(err).Debug("size probe failed, planning on target size")
		} else {
			if info.Size > 0 {
				hint = info.Size
			}
			refused = info.RangesRefused
			c.opts.Logger.WithFields(logrus.Fields{
				"size":          info.Size,
				"accept_ranges": info.AcceptsRanges,
			}).Debug("backing resource probed")
		}
	}

	plan := NewPlan(target, hint, cfg.Threads, cfg.Mode)
	if refused {
		plan = plan.WithoutRanges()
	}
	down, up := plan.Workers()
	if (cfg.Mode.Has(Download) && down == 0) || (cfg.Mode.Has(Upload) && up == 0) {
		return &ValidationError{Err: ErrNoWorkers}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrAlreadyRunning
	}

	sess := &Session{
		Mode:        cfg.Mode,
		TargetBytes: target,
		Threads:     cfg.Threads,
		StartedAt:   time.Now(),
		Plan:        plan,
		acct:        NewAccountant(target),
		advisory:    &Advisory{},
	}
	c.session = sess
	c.handles = nil
	c.stopCh = make(chan struct{})
	c.wg = &sync.WaitGroup{}
	c.state = StateRunning

	env := workerEnv{
		client:   c.opts.Transport,
		acct:     sess.acct,
		advisory: sess.advisory,
		messages: c.opts.Messages,
		log:      c.opts.Logger,
	}

	for i, r := range plan.Ranges {
		c.spawn(&WorkerHandle{ID: i, Direction: Download, Range: &r}, &downloadWorker{
			workerEnv: env,
			id:        i,
			url:       c.opts.DownloadURL,
			rng:       &r,
			bufSize:   c.opts.ReadBufferSize,
			backoff:   c.opts.DownloadBackoff,
			loopPause: c.opts.LoopPause,
		})
	}
	for i := 0; i < plan.Unranged; i++ {
		id := len(plan.Ranges) + i
		c.spawn(&WorkerHandle{ID: id, Direction: Download}, &downloadWorker{
			workerEnv: env,
			id:        id,
			url:       c.opts.DownloadURL,
			bufSize:   c.opts.ReadBufferSize,
			backoff:   c.opts.DownloadBackoff,
			loopPause: c.opts.LoopPause,
		})
	}
	for i, q := range plan.Quotas {
		c.spawn(&WorkerHandle{ID: i, Direction: Upload, Quota: q}, &uploadWorker{
			workerEnv: env,
			id:        i,
			url:       c.opts.UploadURL,
			quota:     q,
			filler:    c.opts.Filler,
			backoff:   c.opts.UploadBackoff,
		})
	}

	c.opts.Logger.WithFields(logrus.Fields{
		"mode":      cfg.Mode,
		"target":    target,
		"hint":      hint,
		"downloads": down,
		"uploads":   up,
	}).Info("session started")

	c.wg.Add(1)
	go c.monitor(ctx, sess, c.stopCh, c.wg)

	return nil
}

type runner interface {
	run(ctx context.Context)
}

// spawn starts w under a fresh cancellable context. Callers hold c.mu.
func (c *Controller) spawn(h *WorkerHandle, w runner) {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	c.handles = append(c.handles, h)

	wg := c.wg
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		w.run(ctx)
	}()
}

// monitor emits snapshots until the session stops, and completes it when
// the accountant reports the target reached.
func (c *Controller) monitor(ctx context.Context, sess *Session, stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(c.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			c.Stop()
			return
		case <-sess.acct.Done():
			c.completeOperation(sess)
			return
		case <-ticker.C:
			c.emit(sess)
		}
	}
}

// Stop cancels every worker of the running session. Stopping a session
// that is not running is a no-op.
func (c *Controller) Stop() {
	sess := c.finish(StateStopped)
	if sess != nil {
		c.opts.Logger.Info("session stopped")
		c.show(c.snapshot(sess))
	}
}

// finish moves a running session to final and cancels its workers.
// It returns nil if no session was running.
func (c *Controller) finish(final State) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return nil
	}
	c.state = final
	c.session.stopped = time.Now()
	for _, h := range c.handles {
		h.Cancel()
	}
	close(c.stopCh)
	return c.session
}

// completeOperation finalizes a session whose target was reached. The
// accountant has already settled the counters.
func (c *Controller) completeOperation(sess *Session) {
	if c.finish(StateCompleted) == nil {
		return
	}

	down, up := sess.acct.Totals()
	var modes []string
	if down > 0 {
		modes = append(modes, c.opts.Messages.Text(locale.KeyModeDownload))
	}
	if up > 0 {
		modes = append(modes, c.opts.Messages.Text(locale.KeyModeUpload))
	}
	text := c.opts.Messages.Format(locale.KeyCompletion, map[string]string{
		"mode": strings.Join(modes, c.opts.Messages.Text(locale.KeyModeJoiner)),
		"size": fmt.Sprintf("%.2f", float64(sess.TargetBytes)/MB),
	})
	sess.advisory.Set(text, SeveritySuccess)

	c.opts.Logger.WithFields(logrus.Fields{
		"downloaded": down,
		"uploaded":   up,
	}).Info("session completed")
	c.show(c.snapshot(sess))
}

// emit refreshes the slow network advisory and shows a snapshot.
func (c *Controller) emit(sess *Session) {
	snap := c.snapshot(sess)
	slow := c.opts.Messages.Text(locale.KeySlowNetwork)

	if snap.State == StateRunning && !sess.Unbounded() &&
		snap.Elapsed > c.opts.SlowAfter &&
		snap.ThroughputMBps*MB < c.opts.SlowThreshold &&
		sess.acct.Responded() {
		sess.advisory.Set(slow, SeverityWarning)
	} else if snap.State == StateRunning {
		sess.advisory.ClearIf(slow)
	}

	c.show(c.snapshot(sess))
}

func (c *Controller) show(s Snapshot) {
	if c.opts.Display != nil {
		c.opts.Display.Show(s)
	}
}

func (c *Controller) snapshot(sess *Session) Snapshot {
	c.mu.Lock()
	state := c.state
	if c.session != sess {
		// Superseded sessions are only ever reported as finished.
		state = StateStopped
	}
	end := sess.stopped
	c.mu.Unlock()

	if end.IsZero() {
		end = time.Now()
	}
	elapsed := end.Sub(sess.StartedAt)

	down, up := sess.acct.Totals()
	total := down + up

	var throughput float64
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(total) / MB / secs
	}

	text, severity := sess.advisory.Get()
	return Snapshot{
		State:           state,
		Mode:            sess.Mode,
		TargetBytes:     sess.TargetBytes,
		BytesDownloaded: down,
		BytesUploaded:   up,
		TotalBytes:      total,
		DownloadPercent: percent(down, sess.TargetBytes),
		UploadPercent:   percent(up, sess.TargetBytes),
		ThroughputMBps:  throughput,
		Elapsed:         elapsed,
		StatusText:      text,
		StatusSeverity:  severity,
	}
}

// Snapshot returns the current view of the last session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return Snapshot{State: StateIdle}
	}
	return c.snapshot(sess)
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current or last session, or nil before the first start.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Handles returns a copy of the worker handles of the current session.
func (c *Controller) Handles() []WorkerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WorkerHandle, len(c.handles))
	for i, h := range c.handles {
		out[i] = *h
	}
	return out
}

// Done returns a channel closed when the current session leaves Running.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.stopCh
}

// Wait blocks until every goroutine of the current session has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	wg := c.wg
	c.mu.Unlock()
	wg.Wait()
}
