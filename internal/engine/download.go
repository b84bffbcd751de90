package engine

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	dwhttp "github.com/hletrd/data-waster/internal/http"
	"github.com/hletrd/data-waster/internal/locale"
)

// downloadWorker streams its range (or the whole resource once fallen
// back) until the session completes or its context is cancelled.
type downloadWorker struct {
	workerEnv

	id        int
	url       string
	rng       *Range
	bufSize   int
	backoff   []time.Duration
	loopPause time.Duration
}

func (w *downloadWorker) run(ctx context.Context) {
	log := w.log.WithFields(logrus.Fields{"direction": Download, "worker": w.id})
	failures := 0

	for ctx.Err() == nil && !w.acct.Complete() {
		err := w.fetch(ctx, log)

		switch kind := dwhttp.KindOf(err); kind {
		case "":
			// Body exhausted before the target: request it again.
			failures = 0
			if !pause(ctx, w.loopPause) {
				return
			}

		case dwhttp.KindCancelled:
			return

		case dwhttp.KindRangeUnsupported:
			if w.rng != nil {
				log.WithError(err).Info("range request rejected, falling back to unranged download")
				w.rng = nil
				failures = 0
				continue
			}
			w.warn(ctx, log, err)
			if !pause(ctx, backoffFor(w.backoff, failures)) {
				return
			}
			failures++

		case dwhttp.KindBenignTransient:
			log.WithError(err).WithField("kind", kind).Debug("download interrupted, retrying")
			if !pause(ctx, backoffFor(w.backoff, failures)) {
				return
			}
			failures++

		default:
			w.warn(ctx, log, err)
			if !pause(ctx, backoffFor(w.backoff, failures)) {
				return
			}
			failures++
		}
	}
}

// fetch issues one request and counts its body. It returns nil on EOF or
// when the session target is reached.
func (w *downloadWorker) fetch(ctx context.Context, log logrus.FieldLogger) error {
	var rng *dwhttp.ByteRange
	if w.rng != nil {
		rng = &dwhttp.ByteRange{Start: w.rng.Start, End: w.rng.End}
	}

	resp, err := w.client.Get(ctx, w.url, rng)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	w.acct.MarkResponse()
	if w.rng != nil && !resp.Ranged {
		// A 200 to a ranged request: the server ignores Range. Keep
		// streaming this body and stop asking for ranges.
		log.Info("server ignored range request, continuing unranged")
		w.rng = nil
	}

	buf := make([]byte, w.bufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			res := w.acct.Add(Download, min(int64(n), w.acct.Remaining()))
			if res.Complete {
				return nil
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return readErr
		}
	}
}

func (w *downloadWorker) warn(ctx context.Context, log logrus.FieldLogger, err error) {
	if ctx.Err() != nil || w.acct.Complete() {
		return
	}
	log.WithError(err).Warn("download failed, backing off")
	w.advisory.Set(w.messages.Format(locale.KeyDownloadError, map[string]string{"error": err.Error()}), SeverityWarning)
}
