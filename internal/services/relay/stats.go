package relay

import "sync/atomic"

// Stats counts what happened to the records handed to one binder.
type Stats struct {
	queued    atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	stale     atomic.Uint64
	tooSoon   atomic.Uint64
	trimmed   atomic.Uint64
	rejected  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats plus the current queue depth.
type StatsSnapshot struct {
	Site      string `json:"site"`
	Endpoint  string `json:"endpoint,omitempty"`
	Enabled   bool   `json:"enabled"`
	Pending   int    `json:"pending"`
	Queued    uint64 `json:"queued"`
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
	Stale     uint64 `json:"stale"`
	TooSoon   uint64 `json:"too_soon"`
	Trimmed   uint64 `json:"trimmed"`
	Rejected  uint64 `json:"rejected"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queued:    s.queued.Load(),
		Published: s.published.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
		Stale:     s.stale.Load(),
		TooSoon:   s.tooSoon.Load(),
		Trimmed:   s.trimmed.Load(),
		Rejected:  s.rejected.Load(),
	}
}
