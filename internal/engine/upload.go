package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	dwhttp "github.com/hletrd/data-waster/internal/http"
	"github.com/hletrd/data-waster/internal/locale"
	"github.com/hletrd/data-waster/internal/payload"
)

// uploadWorker sends filler requests until its quota is spent, the session
// completes, or its context is cancelled.
type uploadWorker struct {
	workerEnv

	id      int
	url     string
	quota   int64
	filler  payload.FillerOptions
	backoff time.Duration
}

func (w *uploadWorker) run(ctx context.Context) {
	log := w.log.WithFields(logrus.Fields{"direction": Upload, "worker": w.id})
	var sent int64

	for w.quota == 0 || sent < w.quota {
		if ctx.Err() != nil || w.acct.Complete() {
			return
		}

		f, err := payload.NewFiller(w.filler)
		if err != nil {
			w.warn(ctx, log, err)
			if !pause(ctx, w.backoff) {
				return
			}
			continue
		}

		err = w.client.SendFiller(ctx, w.url, f)
		switch kind := dwhttp.KindOf(err); kind {
		case "", dwhttp.KindBenignTransient:
			if err != nil {
				log.WithError(err).WithField("kind", kind).Debug("upload attempt failed benignly, counting it")
			}
			w.acct.MarkResponse()
			size := f.Size()
			w.acct.Add(Upload, min(size, w.acct.Remaining()))
			sent += size

		case dwhttp.KindCancelled:
			return

		default:
			w.warn(ctx, log, err)
			if !pause(ctx, w.backoff) {
				return
			}
		}
	}
}

func (w *uploadWorker) warn(ctx context.Context, log logrus.FieldLogger, err error) {
	if ctx.Err() != nil || w.acct.Complete() {
		return
	}
	log.WithError(err).Warn("upload failed, backing off")
	w.advisory.Set(w.messages.Format(locale.KeyUploadError, map[string]string{"error": err.Error()}), SeverityWarning)
}
