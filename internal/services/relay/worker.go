package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
	"github.com/vshulcz/wxrelay/internal/ports"
)

// Augmenter adds derived fields to a record before it is delivered.
type Augmenter interface {
	Augment(ctx context.Context, rec domain.Record) domain.Record
}

// Worker drains a Queue into a Sink, one record at a time, in arrival order.
type Worker struct {
	queue   *Queue
	sink    ports.Sink
	augment Augmenter
	log     *zap.Logger
	stats   *Stats
	now     func() time.Time

	policy   Policies
	lastPost int64
	posted   bool
}

// NewWorker builds a worker. A nil logger disables logging.
func NewWorker(q *Queue, sink ports.Sink, p Policies, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		queue:  q,
		sink:   sink,
		policy: p,
		log:    log,
		stats:  &Stats{},
		now:    time.Now,
	}
}

// Run processes records until the queue is closed and drained or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		rec, err := w.queue.Get(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			return nil
		case err != nil:
			return err
		}

		if rec, err = w.trimBacklog(ctx, rec); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		w.handle(ctx, rec)
	}
}

// trimBacklog drops held along with the oldest pending records while more
// than max_backlog remain behind it, and returns the record to process next.
func (w *Worker) trimBacklog(ctx context.Context, held domain.Record) (domain.Record, error) {
	limit, ok := w.policy.Backlog.MaxBacklog.Get()
	if !ok || w.queue.Len() <= limit {
		return held, nil
	}
	dropped := w.queue.TrimTo(limit + 1)
	w.stats.trimmed.Add(uint64(len(dropped) + 1))
	w.log.Info("backlog trimmed",
		zap.Int("dropped", len(dropped)+1),
		zap.Int64("oldest", held.DateTime),
		zap.Int("max_backlog", limit))
	return w.queue.Get(ctx)
}

// admit applies the staleness and post interval checks.
func (w *Worker) admit(rec domain.Record) error {
	if stale, ok := w.policy.Backlog.Stale.Get(); ok {
		if age := w.now().Unix() - rec.DateTime; age > int64(stale/time.Second) {
			w.stats.stale.Add(1)
			return fmt.Errorf("%w: age %ds exceeds %s", domain.ErrStale, age, stale)
		}
	}
	if iv := int64(w.policy.Post.Interval / time.Second); iv > 0 && w.posted {
		if since := rec.DateTime - w.lastPost; since < iv {
			w.stats.tooSoon.Add(1)
			return fmt.Errorf("%w: %ds since last post, interval %ds", domain.ErrTooSoon, since, iv)
		}
	}
	w.lastPost = rec.DateTime
	w.posted = true
	return nil
}

func (w *Worker) handle(ctx context.Context, rec domain.Record) {
	log := w.log.With(zap.Int64("dateTime", rec.DateTime))

	if err := w.admit(rec); err != nil {
		log.Debug("record skipped", zap.Error(err))
		return
	}
	if w.policy.SkipUpload {
		w.stats.skipped.Add(1)
		log.Debug("skip_upload set, record not uploaded")
		return
	}
	if w.augment != nil {
		rec = w.augment.Augment(ctx, rec)
	}

	delays := misc.ConstantBackoff(w.policy.Retry.MaxTries, w.policy.Retry.RetryWait)
	err := misc.Retry(ctx, delays, isRetryable, func(attempt int) error {
		actx, cancel := w.attemptContext(ctx)
		defer cancel()
		err := w.sink.Process(actx, rec)
		if err != nil && w.policy.LogFailure {
			log.Warn("upload attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})

	switch {
	case err == nil:
		w.stats.published.Add(1)
		if w.policy.LogSuccess {
			log.Info("published record")
		}
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		w.stats.failed.Add(1)
		log.Debug("upload abandoned on shutdown")
	default:
		if errors.Is(err, domain.ErrBadLogin) || errors.Is(err, domain.ErrInvalidRecord) {
			w.stats.rejected.Add(1)
		} else {
			w.stats.failed.Add(1)
		}
		if w.policy.LogFailure {
			log.Error("failed to publish record", zap.Int("max_tries", w.policy.Retry.MaxTries), zap.Error(err))
		}
	}
}

func (w *Worker) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.policy.Retry.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.policy.Retry.Timeout)
}

// isRetryable treats everything except bad credentials and malformed records as transient.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrBadLogin),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
