// Package relaystats exports per-site forwarding counters to Prometheus.
package relaystats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshulcz/wxrelay/internal/services/relay"
)

// Source reports the current counters of every binder.
type Source func() []relay.StatsSnapshot

// Collector reads the binder counters on every scrape.
type Collector struct {
	src      Source
	records  *prometheus.Desc
	pending  *prometheus.Desc
	enabled  *prometheus.Desc
	received *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns a collector over src.
func New(src Source) *Collector {
	return &Collector{
		src: src,
		records: prometheus.NewDesc("wxrelay_records_total",
			"Records handled per site, by outcome.", []string{"site", "outcome"}, nil),
		pending: prometheus.NewDesc("wxrelay_queue_pending",
			"Records waiting in the site queue.", []string{"site"}, nil),
		enabled: prometheus.NewDesc("wxrelay_site_enabled",
			"1 when the site is configured and forwarding.", []string{"site"}, nil),
		received: prometheus.NewDesc("wxrelay_records_queued_total",
			"Records handed to the site queue.", []string{"site"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.pending
	ch <- c.enabled
	ch <- c.received
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.src() {
		enabled := 0.0
		if s.Enabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, enabled, s.Site)
		if !s.Enabled {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Pending), s.Site)
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(s.Queued), s.Site)
		for outcome, n := range map[string]uint64{
			"published": s.Published,
			"failed":    s.Failed,
			"rejected":  s.Rejected,
			"skipped":   s.Skipped,
			"stale":     s.Stale,
			"too_soon":  s.TooSoon,
			"trimmed":   s.Trimmed,
		} {
			ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue, float64(n), s.Site, outcome)
		}
	}
}
