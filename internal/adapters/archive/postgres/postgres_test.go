package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *Archive, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
		_ = db.Close()
	}
	return mock, New(db), cleanup
}

func fastBackoff(t *testing.T) {
	t.Helper()
	orig := misc.DefaultBackoff
	misc.DefaultBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { misc.DefaultBackoff = orig })
}

var upsertPat = regexp.QuoteMeta(`INSERT INTO archive (date_time, us_units, rain, fields, updated_at)`)

func TestArchive_Add(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		mock, a, done := newMock(t)
		defer done()

		rec := domain.NewRecord(1417218600, map[string]float64{"usUnits": 1, "rain": 0.02, "outTemp": 61.6})
		mock.ExpectExec(upsertPat).
			WithArgs(int64(1417218600), int64(1), 0.02, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := a.Add(context.Background(), rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	t.Run("missing rain and units stored as NULL", func(t *testing.T) {
		mock, a, done := newMock(t)
		defer done()

		mock.ExpectExec(upsertPat).
			WithArgs(int64(5), nil, nil, `{"dateTime":5}`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := a.Add(context.Background(), domain.NewRecord(5, nil)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	t.Run("retries transient error", func(t *testing.T) {
		fastBackoff(t)
		mock, a, done := newMock(t)
		defer done()

		mock.ExpectExec(upsertPat).WillReturnError(&pq.Error{Code: pq.ErrorCode(pgerrcode.ConnectionFailure)})
		mock.ExpectExec(upsertPat).WillReturnResult(sqlmock.NewResult(0, 1))

		if err := a.Add(context.Background(), domain.NewRecord(5, nil)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		mock, a, done := newMock(t)
		defer done()

		mock.ExpectExec(upsertPat).WillReturnError(&pq.Error{Code: pq.ErrorCode(pgerrcode.UndefinedTable)})

		if err := a.Add(context.Background(), domain.NewRecord(5, nil)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestArchive_SumRain(t *testing.T) {
	pat := regexp.QuoteMeta(qSumRain)
	cols := []string{"sum", "count", "min", "max"}

	tests := []struct {
		name    string
		row     []driver.Value
		wantSum float64
		wantOK  bool
		wantErr error
	}{
		{"sum of rows", []driver.Value{1.25, int64(3), int64(1), int64(1)}, 1.25, true, nil},
		{"no rows", []driver.Value{nil, int64(0), nil, nil}, 0, false, nil},
		{"all rain null", []driver.Value{nil, int64(2), int64(16), int64(16)}, 0, true, nil},
		{"mixed units", []driver.Value{3.0, int64(2), int64(1), int64(16)}, 0, false, domain.ErrMixedUnits},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock, a, done := newMock(t)
			defer done()

			mock.ExpectQuery(pat).WithArgs(int64(100), int64(200)).
				WillReturnRows(sqlmock.NewRows(cols).AddRow(tc.row...))

			sum, ok, err := a.SumRain(context.Background(), 100, 200)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sum != tc.wantSum || ok != tc.wantOK {
				t.Fatalf("got (%v, %v), want (%v, %v)", sum, ok, tc.wantSum, tc.wantOK)
			}
		})
	}

	t.Run("query error", func(t *testing.T) {
		mock, a, done := newMock(t)
		defer done()

		mock.ExpectQuery(pat).WillReturnError(errors.New("boom"))
		if _, _, err := a.SumRain(context.Background(), 0, 1); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestArchive_Ping(t *testing.T) {
	mock, a, done := newMock(t)
	defer done()

	mock.ExpectPing()
	if err := a.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if err := (&Archive{}).Ping(context.Background()); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func Test_isRetryablePG(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"driver.ErrBadConn", driver.ErrBadConn, true},
		{"net.OpError", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"pq 08 (ConnectionFailure)", &pq.Error{Code: pq.ErrorCode(pgerrcode.ConnectionFailure)}, true},
		{"pq 40 (SerializationFailure)", &pq.Error{Code: pq.ErrorCode(pgerrcode.SerializationFailure)}, true},
		{"pq CannotConnectNow", &pq.Error{Code: pq.ErrorCode(pgerrcode.CannotConnectNow)}, true},
		{"pq UniqueViolation (non-retryable)", &pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation)}, false},
		{"no rows", sql.ErrNoRows, false},
		{"generic", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%T) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
