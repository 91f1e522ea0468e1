package relay

import (
	"fmt"
	"time"

	"github.com/vshulcz/wxrelay/internal/config"
)

const (
	DefaultPostInterval = 300 * time.Second
	DefaultTimeout      = 60 * time.Second
	DefaultMaxTries     = 3
	DefaultRetryWait    = 5 * time.Second
)

// Limit is an optional upper bound; the zero value means no limit.
type Limit[T any] struct {
	v   T
	set bool
}

// LimitOf bounds a value at v.
func LimitOf[T any](v T) Limit[T] {
	return Limit[T]{v: v, set: true}
}

// Unlimited is the explicit "no limit" option.
func Unlimited[T any]() Limit[T] {
	return Limit[T]{}
}

// Get returns the bound and whether one is set.
func (l Limit[T]) Get() (T, bool) {
	return l.v, l.set
}

func (l Limit[T]) String() string {
	if !l.set {
		return "unlimited"
	}
	return fmt.Sprint(l.v)
}

// RetryPolicy bounds delivery of one record.
type RetryPolicy struct {
	MaxTries  int
	RetryWait time.Duration
	// Timeout applies to each attempt; zero disables it.
	Timeout time.Duration
}

// BacklogPolicy limits how many records may wait and how old they may get.
type BacklogPolicy struct {
	MaxBacklog Limit[int]
	Stale      Limit[time.Duration]
}

// PostPolicy throttles uploads by record timestamp. Zero posts every record.
type PostPolicy struct {
	Interval time.Duration
}

// Policies gathers everything the worker needs besides its sink.
type Policies struct {
	Retry      RetryPolicy
	Backlog    BacklogPolicy
	Post       PostPolicy
	SkipUpload bool
	LogSuccess bool
	LogFailure bool
}

// DefaultPolicies mirrors the RESTful uploader defaults.
func DefaultPolicies() Policies {
	return Policies{
		Retry:      RetryPolicy{MaxTries: DefaultMaxTries, RetryWait: DefaultRetryWait, Timeout: DefaultTimeout},
		Post:       PostPolicy{Interval: DefaultPostInterval},
		LogSuccess: true,
		LogFailure: true,
	}
}

// PoliciesFromSite reads the forwarding knobs of a site section over DefaultPolicies.
func PoliciesFromSite(site *config.Site) (Policies, error) {
	p := DefaultPolicies()
	var err error

	if p.Post.Interval, err = site.Duration("post_interval", p.Post.Interval); err != nil {
		return p, err
	}
	if p.Retry.Timeout, err = site.Duration("timeout", p.Retry.Timeout); err != nil {
		return p, err
	}
	if p.Retry.RetryWait, err = site.Duration("retry_wait", p.Retry.RetryWait); err != nil {
		return p, err
	}
	if p.Retry.MaxTries, err = site.Int("max_tries", p.Retry.MaxTries); err != nil {
		return p, err
	}
	if p.Retry.MaxTries < 1 {
		return p, fmt.Errorf("%s.max_tries must be >= 1, got %d", site.Name(), p.Retry.MaxTries)
	}

	if !site.IsUnlimited("max_backlog") {
		n, err := site.Int("max_backlog", 0)
		if err != nil {
			return p, err
		}
		if n < 0 {
			return p, fmt.Errorf("%s.max_backlog must be >= 0, got %d", site.Name(), n)
		}
		p.Backlog.MaxBacklog = LimitOf(n)
	}
	if !site.IsUnlimited("stale") {
		d, err := site.Duration("stale", 0)
		if err != nil {
			return p, err
		}
		p.Backlog.Stale = LimitOf(d)
	}

	p.SkipUpload = site.Bool("skip_upload", false)
	p.LogSuccess = site.Bool("log_success", true)
	p.LogFailure = site.Bool("log_failure", true)
	return p, nil
}
