package ports

import (
	"context"

	"github.com/vshulcz/wxrelay/internal/domain"
)

// Sink delivers one archive record to a remote service. Process must be safe to call again
// with the same record after a failure.
type Sink interface {
	Process(ctx context.Context, rec domain.Record) error
	Endpoint() string
	Close() error
}

// Archive is the host's record database, used to derive rain totals.
type Archive interface {
	Add(ctx context.Context, rec domain.Record) error
	// SumRain totals the rain field over from < dateTime <= to. ok is false when no rows match.
	SumRain(ctx context.Context, from, to int64) (sum float64, ok bool, err error)
	Ping(ctx context.Context) error
}
