package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vshulcz/wxrelay/internal/domain"
)

type fakeSink struct {
	mu     sync.Mutex
	got    []int64
	calls  int
	err    error
	block  bool
	closed bool
}

func (s *fakeSink) Process(ctx context.Context, rec domain.Record) error {
	s.mu.Lock()
	s.calls++
	block, err := s.block, s.err
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.got = append(s.got, rec.DateTime)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Endpoint() string { return "fake:2003" }

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) delivered() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.got...)
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func rec(ts int64) domain.Record {
	return domain.NewRecord(ts, map[string]float64{"outTemp": 61.6})
}
