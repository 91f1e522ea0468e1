// Package remoteaudit posts ingest audit events to an HTTP collector.
package remoteaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/wxrelay/internal/misc"
	"github.com/vshulcz/wxrelay/internal/services/audit"
)

const hashHeader = "HashSHA256"

var errServer = errors.New("audit server error")

// Client sends audit events to a remote HTTP endpoint.
type Client struct {
	hc       *http.Client
	endpoint string
	key      string
	backoff  []time.Duration
}

var _ audit.Observer = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (5s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithKey signs every body with the HashSHA256 header.
func WithKey(key string) Option {
	return func(c *Client) { c.key = key }
}

// WithBackoff retries transport failures and 5xx responses with the given waits.
func WithBackoff(delays []time.Duration) Option {
	return func(c *Client) { c.backoff = delays }
}

// New validates the endpoint URL and returns a Client that POSTs audit events there.
func New(rawURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("audit url is empty")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid audit url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{endpoint: rawURL, hc: &http.Client{Timeout: 5 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Notify serializes the audit event and POSTs it, retrying per the configured backoff.
func (c *Client) Notify(ctx context.Context, evt audit.Event) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return misc.Retry(ctx, c.backoff, isRetryable, func(int) error {
		return c.post(ctx, payload)
	})
}

func (c *Client) post(ctx context.Context, payload []byte) (retErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set(hashHeader, misc.SumSHA256(payload, c.key))
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("audit post: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit response: %w", cerr)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain audit response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("audit post status %d", resp.StatusCode)
	}
	return nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var uerr *url.Error
	return errors.Is(err, errServer) || errors.As(err, &uerr)
}
