// Package httpjson forwards records to another relay's ingest API as gzipped, optionally
// signed JSON, so stations can be chained through a central wxrelay.
package httpjson

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

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
	"github.com/vshulcz/wxrelay/internal/ports"
)

const (
	ingestPath    = "/archive"
	hashHeader    = "HashSHA256"
	maxPooledBody = 64 << 10
	maxResponse   = 64 << 10
)

// StatusError is a non-200 answer from the upstream relay.
type StatusError struct {
	Status string
	Code   int
}

func (e *StatusError) Error() string { return "upstream status: " + e.Status }

// Unwrap classifies refusals the worker must not retry.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrBadLogin
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return domain.ErrInvalidRecord
	}
	return nil
}

// gzBody is a pooled compression buffer.
type gzBody struct {
	zw  *gzip.Writer
	buf bytes.Buffer
}

func (g *gzBody) Reset() {
	g.buf.Reset()
	g.zw.Reset(&g.buf)
}

// Client posts records to an upstream relay.
type Client struct {
	hc     *http.Client
	log    *zap.Logger
	bodies *misc.Pool[*gzBody]
	target string
	key    string
}

var _ ports.Sink = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithKey signs the uncompressed body with the HashSHA256 header.
func WithKey(key string) Option {
	return func(c *Client) { c.key = strings.TrimSpace(key) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New normalizes the upstream address: a bare host:port gets http://, and the ingest path is appended.
func New(serverAddr string, opts ...Option) (*Client, error) {
	u, err := url.Parse(normalizeBase(serverAddr))
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream url %q has no host", serverAddr)
	}
	u.Path = strings.TrimRight(u.Path, "/") + ingestPath
	c := &Client{
		target: u.String(),
		hc:     &http.Client{},
		log:    zap.NewNop(),
		bodies: misc.NewPool(func() *gzBody {
			g := &gzBody{}
			g.zw = gzip.NewWriter(&g.buf)
			return g
		}).WithDiscard(func(g *gzBody) bool { return g.buf.Cap() > maxPooledBody }),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func normalizeBase(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

// Endpoint returns the ingest URL.
func (c *Client) Endpoint() string { return c.target }

// Process posts rec once. Retries belong to the caller.
func (c *Client) Process(ctx context.Context, rec domain.Record) (retErr error) {
	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", rec.DateTime, err)
	}

	body := c.bodies.Get()
	defer c.bodies.Put(body)
	body.Reset()
	if _, err := body.zw.Write(plain); err != nil {
		return fmt.Errorf("gzip write: %w", err)
	}
	if err := body.zw.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target, bytes.NewReader(body.buf.Bytes()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if c.key != "" {
		req.Header.Set(hashHeader, misc.SumSHA256(plain, c.key))
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("upstream post: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()
	if err := drain(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.Status, Code: resp.StatusCode}
	}
	c.log.Debug("record forwarded", zap.Int64("dateTime", rec.DateTime), zap.Int("bytes", len(plain)))
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func drain(resp *http.Response) error {
	var r io.Reader = io.LimitReader(resp.Body, maxResponse)
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(r)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("bad gzip: %w", err)
		}
		if gr != nil {
			defer func() { _ = gr.Close() }()
			r = gr
		}
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("drain body: %w", err)
	}
	return nil
}
