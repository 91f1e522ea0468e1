// Package memory implements an in-memory record archive.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/ports"
)

// Archive keeps records in memory with coarse-grained RW locking.
// Records older than the retention window are pruned on Add.
type Archive struct {
	records   map[int64]domain.Record
	retention int64
	mu        sync.RWMutex
}

var _ ports.Archive = (*Archive)(nil)

// DefaultRetention covers the longest rain window the augmenter asks for.
const DefaultRetention = 2 * 86400

// New returns an empty archive keeping retention seconds of history (<= 0 keeps everything).
func New(retention int64) *Archive {
	return &Archive{records: make(map[int64]domain.Record), retention: retention}
}

// Add stores a copy of rec, replacing any record with the same dateTime.
func (a *Archive) Add(_ context.Context, rec domain.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.DateTime] = rec.Clone()
	if a.retention > 0 {
		cutoff := rec.DateTime - a.retention
		for ts := range a.records {
			if ts < cutoff {
				delete(a.records, ts)
			}
		}
	}
	return nil
}

// SumRain totals rain over from < dateTime <= to.
func (a *Archive) SumRain(_ context.Context, from, to int64) (float64, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var (
		sum   float64
		found bool
		units float64
		seen  bool
	)
	for ts, r := range a.records {
		if ts <= from || ts > to {
			continue
		}
		found = true
		if u, ok := r.Value("usUnits"); ok {
			if seen && u != units {
				return 0, false, fmt.Errorf("%w: usUnits %v and %v between %d and %d",
					domain.ErrMixedUnits, units, u, from, to)
			}
			units, seen = u, true
		}
		if v, ok := r.Value("rain"); ok {
			sum += v
		}
	}
	return sum, found, nil
}

// Ping always succeeds.
func (a *Archive) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Records returns copies of the stored records ordered by dateTime.
func (a *Archive) Records() []domain.Record {
	a.mu.RLock()
	out := make([]domain.Record, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Clone())
	}
	a.mu.RUnlock()
	slices.SortFunc(out, func(x, y domain.Record) int { return cmp.Compare(x.DateTime, y.DateTime) })
	return out
}
