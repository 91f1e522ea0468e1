package relay

import (
	"testing"
	"time"

	"github.com/vshulcz/wxrelay/internal/config"
)

func TestPoliciesFromSite(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := PoliciesFromSite(config.NewSite("graphite", nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Post.Interval != DefaultPostInterval || p.Retry.Timeout != DefaultTimeout ||
			p.Retry.MaxTries != DefaultMaxTries || p.Retry.RetryWait != DefaultRetryWait {
			t.Fatalf("defaults = %+v", p)
		}
		if _, ok := p.Backlog.MaxBacklog.Get(); ok {
			t.Fatal("max_backlog should be unlimited")
		}
		if _, ok := p.Backlog.Stale.Get(); ok {
			t.Fatal("stale should be unlimited")
		}
		if !p.LogSuccess || !p.LogFailure || p.SkipUpload {
			t.Fatalf("flags = %+v", p)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		site := config.NewSite("graphite", map[string]any{
			"post_interval": "60",
			"timeout":       "5s",
			"retry_wait":    2,
			"max_tries":     "5",
			"max_backlog":   10,
			"stale":         "3600",
			"skip_upload":   "true",
			"log_success":   "no",
		})
		p, err := PoliciesFromSite(site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Post.Interval != time.Minute || p.Retry.Timeout != 5*time.Second ||
			p.Retry.RetryWait != 2*time.Second || p.Retry.MaxTries != 5 {
			t.Fatalf("got %+v", p)
		}
		if n, ok := p.Backlog.MaxBacklog.Get(); !ok || n != 10 {
			t.Fatalf("max_backlog = %v", p.Backlog.MaxBacklog)
		}
		if d, ok := p.Backlog.Stale.Get(); !ok || d != time.Hour {
			t.Fatalf("stale = %v", p.Backlog.Stale)
		}
		if !p.SkipUpload || p.LogSuccess {
			t.Fatalf("flags = %+v", p)
		}
	})

	t.Run("explicit unlimited", func(t *testing.T) {
		p, err := PoliciesFromSite(config.NewSite("idokep", map[string]any{"max_backlog": "unlimited", "stale": "none"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Backlog.MaxBacklog.String() != "unlimited" || p.Backlog.Stale.String() != "unlimited" {
			t.Fatalf("got %v / %v", p.Backlog.MaxBacklog, p.Backlog.Stale)
		}
	})

	bad := []map[string]any{
		{"max_tries": "0"},
		{"max_tries": "many"},
		{"max_backlog": "-1"},
		{"post_interval": "soon"},
		{"stale": "old"},
	}
	for _, opts := range bad {
		if _, err := PoliciesFromSite(config.NewSite("graphite", opts)); err == nil {
			t.Errorf("PoliciesFromSite(%v) expected error", opts)
		}
	}
}
