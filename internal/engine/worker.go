package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	dwhttp "github.com/hletrd/data-waster/internal/http"
	"github.com/hletrd/data-waster/internal/payload"
)

// Transport is the network surface the workers drive.
// *http.Client from internal/http satisfies it.
type Transport interface {
	Head(ctx context.Context, url string) (*dwhttp.FileInfo, error)
	Get(ctx context.Context, url string, rng *dwhttp.ByteRange) (*dwhttp.Response, error)
	SendFiller(ctx context.Context, url string, f payload.Filler) error
}

// WorkerHandle is the controller's record of one spawned worker.
type WorkerHandle struct {
	ID        int
	Direction Direction

	// Range is the download range, nil for unranged workers and uploads.
	Range *Range

	// Quota is the upload quota, zero for unlimited.
	Quota int64

	cancel context.CancelFunc
}

// Cancel revokes the worker's context. Safe to call more than once.
func (h *WorkerHandle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// workerEnv is what every worker shares: the accountant, the status line
// and the transport. Workers never see each other or the controller.
type workerEnv struct {
	client   Transport
	acct     *Accountant
	advisory *Advisory
	messages Messages
	log      logrus.FieldLogger
}

// pause sleeps for d unless ctx is done first. It reports whether the
// caller should continue.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoffFor returns the delay after the n-th consecutive failure,
// holding at the last step.
func backoffFor(steps []time.Duration, n int) time.Duration {
	if len(steps) == 0 {
		return 0
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	return steps[n]
}
