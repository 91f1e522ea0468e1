// Package host is the standalone stand-in for the weather station software: it archives
// incoming records and announces them to every registered binder.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/ports"
	"github.com/vshulcz/wxrelay/internal/services/audit"
	"github.com/vshulcz/wxrelay/internal/services/relay"
	"github.com/vshulcz/wxrelay/pkg/observer"
)

// Service owns the new-archive-record subject and the binders attached to it.
type Service struct {
	subject *observer.Subject[domain.Record]
	audit   *audit.Subject
	archive ports.Archive
	log     *zap.Logger
	now     func() time.Time
	binders []*relay.Binder
	mu      sync.RWMutex

	ingested atomic.Uint64
}

// New returns a Service. archive may be nil, in which case records are only published.
func New(archive ports.Archive, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		subject: observer.NewSubject[domain.Record](),
		audit:   audit.NewSubject(),
		archive: archive,
		log:     log,
		now:     time.Now,
	}
	s.subject.SetErrorHandler(func(err error) {
		s.log.Warn("observer failed", zap.Error(err))
	})
	s.audit.SetErrorHandler(func(err error) {
		s.log.Warn("audit failed", zap.Error(err))
	})
	return s
}

// Events is what binders subscribe to.
func (s *Service) Events() observer.Subscriber[domain.Record] {
	return s.subject
}

// Audit is what audit sinks subscribe to. One event follows every accepted record.
func (s *Service) Audit() observer.Subscriber[audit.Event] {
	return s.audit
}

// Archive returns the configured archive, or nil.
func (s *Service) Archive() ports.Archive {
	return s.archive
}

// Register keeps b for Status and Close.
func (s *Service) Register(b *relay.Binder) {
	s.mu.Lock()
	s.binders = append(s.binders, b)
	s.mu.Unlock()
}

// Ingest archives rec, audits it and publishes it. Publishing never fails; only archive errors are returned.
// The client address for the audit event comes from audit.WithClientIP.
func (s *Service) Ingest(ctx context.Context, rec domain.Record) error {
	if rec.DateTime <= 0 {
		return fmt.Errorf("%w: dateTime must be positive", domain.ErrInvalidRecord)
	}
	if s.archive != nil {
		if err := s.archive.Add(ctx, rec); err != nil {
			return fmt.Errorf("archive record %d: %w", rec.DateTime, err)
		}
	}
	s.ingested.Add(1)
	s.audit.Publish(ctx, audit.NewEvent(rec, audit.ClientIPFromContext(ctx), s.now()))
	s.subject.Publish(ctx, rec)
	return nil
}

// Ping checks the archive, if any.
func (s *Service) Ping(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.Ping(ctx)
}

// Status describes the host and each binder.
type Status struct {
	Sites    []relay.StatsSnapshot `json:"sites"`
	Ingested uint64                `json:"ingested"`
}

// Status returns the current counters.
func (s *Service) Status() Status {
	return Status{Ingested: s.ingested.Load(), Sites: s.Sites()}
}

// Sites returns the counters of every registered binder.
func (s *Service) Sites() []relay.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]relay.StatsSnapshot, 0, len(s.binders))
	for _, b := range s.binders {
		out = append(out, b.Stats())
	}
	return out
}

// Close shuts every binder down, letting each drain its queue.
func (s *Service) Close() error {
	s.mu.RLock()
	binders := slices.Clone(s.binders)
	s.mu.RUnlock()

	var errs []error
	for _, b := range binders {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
