// Package relay forwards host archive records to remote sinks through a per-site queue and worker.
package relay

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/config"
	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/ports"
	"github.com/vshulcz/wxrelay/pkg/observer"
)

// SinkFactory describes how to build the sink of one uploader from its site section.
type SinkFactory struct {
	New      func(site *config.Site, log *zap.Logger) (ports.Sink, error)
	Defaults map[string]any
	Required []string
}

// Binder ties one site to the host: it queues every published record for its worker.
// A binder whose site is incomplete stays disabled and never subscribes.
type Binder struct {
	log    *zap.Logger
	queue  *Queue
	worker *Worker
	sink   ports.Sink
	detach func()
	done   chan struct{}
	name   string

	augment Augmenter
	once    sync.Once
}

// Option customizes a Binder.
type Option func(*Binder)

// WithLogger sets the parent logger; the binder names it after the site.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithAugmenter adds derived archive fields to each record before upload.
func WithAugmenter(a Augmenter) Option {
	return func(b *Binder) { b.augment = a }
}

// NewBinder validates site, builds the sink and starts the worker under ctx.
// Any configuration problem is logged once and leaves the binder disabled.
func NewBinder(
	ctx context.Context,
	name string,
	site *config.Site,
	factory SinkFactory,
	host observer.Subscriber[domain.Record],
	opts ...Option,
) *Binder {
	b := &Binder{name: name, log: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.Named(name)

	sink, policies, err := b.build(site, factory)
	if err != nil {
		b.log.Info("data will not be posted: " + err.Error())
		return b
	}

	b.sink = sink
	b.queue = NewQueue()
	b.worker = NewWorker(b.queue, sink, policies, b.log)
	b.worker.augment = b.augment
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		if err := b.worker.Run(ctx); err != nil && ctx.Err() == nil {
			b.log.Error("worker stopped", zap.Error(err))
		}
	}()
	b.detach = host.Attach(b)

	b.log.Info("data will be sent to "+sink.Endpoint(),
		zap.Stringer("max_backlog", policies.Backlog.MaxBacklog),
		zap.Stringer("stale", policies.Backlog.Stale),
		zap.Duration("post_interval", policies.Post.Interval),
		zap.Bool("skip_upload", policies.SkipUpload))
	return b
}

func (b *Binder) build(site *config.Site, factory SinkFactory) (ports.Sink, Policies, error) {
	if site == nil {
		site = config.NewSite(b.name, nil)
	}
	if err := site.Require(factory.Required...); err != nil {
		return nil, Policies{}, err
	}
	for k, v := range factory.Defaults {
		site.SetDefault(k, v)
	}
	p, err := PoliciesFromSite(site)
	if err != nil {
		return nil, Policies{}, err
	}
	if factory.New == nil {
		return nil, Policies{}, fmt.Errorf("no sink factory for %s", b.name)
	}
	sink, err := factory.New(site, b.log)
	if err != nil {
		return nil, Policies{}, err
	}
	return sink, p, nil
}

// Name returns the site name.
func (b *Binder) Name() string { return b.name }

// Enabled reports whether the binder has a running worker.
func (b *Binder) Enabled() bool { return b.queue != nil }

// Notify queues rec for upload. It never blocks and never fails.
func (b *Binder) Notify(_ context.Context, rec domain.Record) error {
	if !b.Enabled() {
		return nil
	}
	if !b.queue.Put(rec) {
		b.log.Debug("binder closed, record dropped", zap.Int64("dateTime", rec.DateTime))
		return nil
	}
	b.worker.stats.queued.Add(1)
	return nil
}

// Close detaches from the host, lets the worker drain the queue and closes the sink.
// The drain is bounded by the context the binder was started with.
func (b *Binder) Close() error {
	if !b.Enabled() {
		return nil
	}
	var err error
	b.once.Do(func() {
		b.detach()
		b.queue.Close()
		<-b.done
		err = b.sink.Close()
	})
	return err
}

// Stats reports the binder's counters.
func (b *Binder) Stats() StatsSnapshot {
	s := StatsSnapshot{Site: b.name, Enabled: b.Enabled()}
	if !b.Enabled() {
		return s
	}
	snap := b.worker.stats.snapshot()
	snap.Site = b.name
	snap.Enabled = true
	snap.Endpoint = b.sink.Endpoint()
	snap.Pending = b.queue.Len()
	return snap
}
