// Package postgres implements the record archive on Postgres.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
	"github.com/vshulcz/wxrelay/internal/ports"
)

// Archive stores records keyed by dateTime, retrying transient failures.
type Archive struct {
	db *sql.DB
}

var _ ports.Archive = (*Archive)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

// New wraps an open database handle.
func New(db *sql.DB) *Archive {
	return &Archive{db: db}
}

const qUpsert = `
INSERT INTO archive (date_time, us_units, rain, fields, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (date_time)
DO UPDATE SET us_units=EXCLUDED.us_units, rain=EXCLUDED.rain, fields=EXCLUDED.fields, updated_at=now();`

// Add upserts rec.
func (a *Archive) Add(ctx context.Context, rec domain.Record) error {
	fields, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var units sql.NullInt64
	if v, ok := rec.Value("usUnits"); ok {
		units = sql.NullInt64{Int64: int64(v), Valid: true}
	}
	var rain sql.NullFloat64
	if v, ok := rec.Value("rain"); ok {
		rain = sql.NullFloat64{Float64: v, Valid: true}
	}

	op := func(int) error {
		_, err := a.db.ExecContext(ctx, qUpsert, rec.DateTime, units, rain, string(fields))
		return err
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

const qSumRain = `SELECT SUM(rain), COUNT(*), MIN(us_units), MAX(us_units) FROM archive WHERE date_time > $1 AND date_time <= $2`

// SumRain totals rain over from < dateTime <= to.
func (a *Archive) SumRain(ctx context.Context, from, to int64) (float64, bool, error) {
	var (
		sum    sql.NullFloat64
		n      int64
		lo, hi sql.NullInt64
	)
	op := func(int) error {
		sum, n, lo, hi = sql.NullFloat64{}, 0, sql.NullInt64{}, sql.NullInt64{}
		return a.db.QueryRowContext(ctx, qSumRain, from, to).Scan(&sum, &n, &lo, &hi)
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	if lo.Valid && hi.Valid && lo.Int64 != hi.Int64 {
		return 0, false, fmt.Errorf("%w: usUnits %d and %d between %d and %d",
			domain.ErrMixedUnits, lo.Int64, hi.Int64, from, to)
	}
	return sum.Float64, true, nil
}

// Ping verifies the database connection using a short-lived context.
func (a *Archive) Ping(ctx context.Context) error {
	if a.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func(int) error {
		return a.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	// connection exceptions and transaction rollbacks
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
