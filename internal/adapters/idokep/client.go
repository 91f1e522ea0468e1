// Package idokep uploads records to an Idokep-style endpoint as a single GET request per record.
package idokep

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
)

const (
	DefaultServerURL     = "http://pro.idokep.hu/sendws.php"
	DefaultSuccessMarker = "OK"
	DefaultStationType   = "WeeWX"
	DefaultUserAgent     = "wxrelay"

	maxResponseBody = 64 << 10
)

// field maps one query parameter to a record field and its format.
type field struct {
	param  string
	name   string
	format string
}

var fields = []field{
	{"hom", "outTemp", "%.1f"},
	{"rh", "outHumidity", "%.0f"},
	{"szelirany", "windDir", "%.0f"},
	{"szelero", "windSpeed", "%.1f"},
	{"szellokes", "windGust", "%.1f"},
	{"p", "barometer", "%.1f"},
	{"csap", "dayRain", "%.1f"},
	{"csap1h", "hourRain", "%.1f"},
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return "unexpected response status: " + e.Status
}

// Unwrap maps refused credentials to domain.ErrBadLogin.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return domain.ErrBadLogin
	}
	return nil
}

// Client posts records to the vendor endpoint.
type Client struct {
	hc          *http.Client
	base        *url.URL
	loc         *time.Location
	log         *zap.Logger
	username    string
	password    string
	marker      string
	stationType string
	userAgent   string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithSuccessMarker sets the token a response line must contain for the upload to count.
func WithSuccessMarker(m string) Option { return func(c *Client) { c.marker = m } }

func WithStationType(t string) Option { return func(c *Client) { c.stationType = t } }

// WithLocation sets the zone used to split dateTime into calendar fields.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New validates serverURL and returns a Client.
func New(serverURL, username, password string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server_url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		hc:          &http.Client{},
		base:        u,
		loc:         time.Local,
		log:         zap.NewNop(),
		username:    username,
		password:    password,
		marker:      DefaultSuccessMarker,
		stationType: DefaultStationType,
		userAgent:   DefaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Endpoint returns the server URL without credentials.
func (c *Client) Endpoint() string {
	u := *c.base
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Query renders rec as the upload query string, parameters in protocol order.
// rec must already be in METRICWX units.
func (c *Client) Query(rec domain.Record) string {
	t := rec.Time().In(c.loc)

	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	add("user", c.username)
	add("pass", c.password)
	add("ev", fmt.Sprintf("%04d", t.Year()))
	add("ho", fmt.Sprintf("%02d", int(t.Month())))
	add("nap", fmt.Sprintf("%02d", t.Day()))
	add("ora", fmt.Sprintf("%02d", t.Hour()))
	add("perc", fmt.Sprintf("%02d", t.Minute()))
	add("mp", fmt.Sprintf("%02d", t.Second()))
	for _, f := range fields {
		v := ""
		if x, ok := rec.Value(f.name); ok {
			v = fmt.Sprintf(f.format, x)
		}
		add(f.param, v)
	}
	add("tipus", c.stationType)
	return b.String()
}

// Process converts rec to METRICWX, sends it and checks the response for the success marker.
func (c *Client) Process(ctx context.Context, rec domain.Record) (retErr error) {
	u := *c.base
	q := c.Query(domain.ToMetricWX(rec))
	if u.RawQuery != "" {
		q = u.RawQuery + "&" + q
	}
	u.RawQuery = q

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return redact(err, c.password)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return c.checkBody(resp.Body)
}

// checkBody succeeds if any line contains the marker. The match is a plain substring test.
func (c *Client) checkBody(body io.Reader) error {
	sc := bufio.NewScanner(io.LimitReader(body, maxResponseBody))
	var first string
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, c.marker) {
			return nil
		}
		if first == "" {
			first = strings.TrimSpace(line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("success marker not found", zap.String("marker", c.marker), zap.String("response", first))
	return fmt.Errorf("%w: server returned %q", domain.ErrResponseRejected, first)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// redact keeps the password out of logged url.Error messages.
func redact(err error, password string) error {
	var uerr *url.Error
	if password == "" || !errors.As(err, &uerr) {
		return err
	}
	uerr.URL = strings.ReplaceAll(uerr.URL, url.QueryEscape(password), "xxx")
	return uerr
}
