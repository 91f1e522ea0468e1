package runtime

import (
	"maps"
	"sync"
)

// stats holds the latest sample; each tick replaces the gauges it measured.
type stats struct {
	gauges  map[string]float64
	samples int64
	mu      sync.RWMutex
}

func newStats() *stats {
	return &stats{gauges: make(map[string]float64)}
}

func (s *stats) set(values map[string]float64) {
	s.mu.Lock()
	maps.Copy(s.gauges, values)
	s.mu.Unlock()
}

func (s *stats) tick() {
	s.mu.Lock()
	s.samples++
	s.mu.Unlock()
}

func (s *stats) snapshot() (map[string]float64, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.gauges), s.samples
}
