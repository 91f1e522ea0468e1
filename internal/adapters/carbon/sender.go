// Package carbon ships records to a Graphite/Carbon collector using the plaintext line protocol.
package carbon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
)

// Mode selects how TCP connections are used.
type Mode string

const (
	// ModePerMetric opens a connection for every line.
	ModePerMetric Mode = "per_metric"
	// ModePerRecord opens one connection per record.
	ModePerRecord Mode = "per_record"
	// ModePersistent keeps one connection and redials after a failed write.
	ModePersistent Mode = "persistent"
)

// ParseMode accepts the connection option spellings.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePerMetric, ModePerRecord, ModePersistent:
		return m, nil
	case "":
		return ModePersistent, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q", s)
	}
}

// Dialer opens connections to the collector.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const maxPooledBuffer = 64 << 10

// Sender formats records as "<name> <value> <timestamp>\n" lines.
type Sender struct {
	dialer Dialer
	conn   net.Conn
	fields domain.FieldSet
	log    *zap.Logger
	bufs   *misc.Pool[*bytes.Buffer]
	addr   string
	prefix string
	mode   Mode
	mu     sync.Mutex
}

// Option configures a Sender.
type Option func(*Sender)

func WithPrefix(p string) Option { return func(s *Sender) { s.prefix = p } }

// WithFields replaces the default allow-list. A nil set admits every field.
func WithFields(fs domain.FieldSet) Option { return func(s *Sender) { s.fields = fs } }

func WithMode(m Mode) Option { return func(s *Sender) { s.mode = m } }

func WithDialer(d Dialer) Option {
	return func(s *Sender) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a sender for addr ("host:port").
func New(addr string, opts ...Option) *Sender {
	s := &Sender{
		addr:   addr,
		prefix: DefaultPrefix,
		fields: domain.DefaultFields(),
		mode:   ModePersistent,
		dialer: &net.Dialer{KeepAlive: 30 * time.Second},
		log:    zap.NewNop(),
		bufs: misc.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
			WithDiscard(func(b *bytes.Buffer) bool { return b.Cap() > maxPooledBuffer }),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Endpoint returns the collector address.
func (s *Sender) Endpoint() string { return s.addr }

// Process sends every allowed field of rec. A failure leaves the remaining lines unsent.
func (s *Sender) Process(ctx context.Context, rec domain.Record) error {
	if dropped := rec.Dropped(s.fields); len(dropped) > 0 {
		s.log.Debug("fields not forwarded", zap.Strings("fields", dropped))
	}
	metrics := rec.Metrics(s.prefix, s.fields)
	if len(metrics) == 0 {
		return nil
	}

	buf := s.bufs.Get()
	defer s.bufs.Put(buf)

	if s.mode == ModePerMetric {
		for _, m := range metrics {
			buf.Reset()
			writeLine(buf, m)
			if err := s.sendOnce(ctx, buf.Bytes()); err != nil {
				return fmt.Errorf("send %s: %w", m.Name, err)
			}
		}
		return nil
	}

	for _, m := range metrics {
		writeLine(buf, m)
	}
	if s.mode == ModePerRecord {
		return s.sendOnce(ctx, buf.Bytes())
	}
	return s.sendPersistent(ctx, buf.Bytes())
}

func writeLine(buf *bytes.Buffer, m domain.Metric) {
	fmt.Fprintf(buf, "%s %f %d\n", m.Name, m.Value, m.Timestamp)
}

func (s *Sender) dial(ctx context.Context) (net.Conn, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("carbon dial %s: %w", s.addr, err)
	}
	return conn, nil
}

func write(ctx context.Context, conn net.Conn, data []byte) error {
	var dl time.Time
	if d, ok := ctx.Deadline(); ok {
		dl = d
	}
	if err := conn.SetWriteDeadline(dl); err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("carbon write: %w", err)
	}
	return nil
}

func (s *Sender) sendOnce(ctx context.Context, data []byte) (retErr error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	return write(ctx, conn, data)
}

func (s *Sender) sendPersistent(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && peerClosed(s.conn) {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.conn == nil {
		conn, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.conn = conn
	}
	if err := write(ctx, s.conn, data); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// peerClosed reports whether the collector has hung up on conn. Carbon never
// writes back, so anything but a read timeout means the connection is gone.
func peerClosed(conn net.Conn) bool {
	if err := conn.SetReadDeadline(time.Now()); err != nil {
		return true
	}
	var b [1]byte
	_, err := conn.Read(b[:])
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return conn.SetReadDeadline(time.Time{}) != nil
	}
	return true
}

// Close drops the persistent connection, if any.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
