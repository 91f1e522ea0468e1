package misc

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("connection refused")
	errFatal     = errors.New("bad login")
)

// script returns an op that answers with results in turn, repeating the last one.
func script(results ...error) (op func(int) error, calls *int) {
	n := 0
	return func(attempt int) error {
		n = attempt
		if attempt > len(results) {
			return results[len(results)-1]
		}
		return results[attempt-1]
	}, &n
}

func TestRetry(t *testing.T) {
	t.Parallel()
	transient := func(err error) bool { return errors.Is(err, errTransient) }
	short := ConstantBackoff(4, time.Millisecond)

	tests := []struct {
		wantErr   error
		ctx       func() (context.Context, context.CancelFunc)
		name      string
		delays    []time.Duration
		results   []error
		wantCalls int
	}{
		{name: "first try succeeds", delays: short, results: []error{nil}, wantCalls: 1},
		{name: "fatal error stops", delays: short, results: []error{errFatal}, wantCalls: 1, wantErr: errFatal},
		{name: "recovers on third try", delays: short, results: []error{errTransient, errTransient, nil}, wantCalls: 3},
		{name: "max tries exhausted", delays: short, results: []error{errTransient}, wantCalls: 4, wantErr: errTransient},
		{name: "fatal after transient", delays: short, results: []error{errTransient, errFatal, nil}, wantCalls: 2, wantErr: errFatal},
		{name: "zero waits", delays: ConstantBackoff(3, 0), results: []error{errTransient, errTransient, nil}, wantCalls: 3},
		{name: "single try", delays: ConstantBackoff(1, time.Second), results: []error{errTransient}, wantCalls: 1, wantErr: errTransient},
		{
			name:    "deadline during wait",
			delays:  ConstantBackoff(3, time.Second),
			results: []error{errTransient},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			wantCalls: 1,
			wantErr:   context.DeadlineExceeded,
		},
		{
			name:    "already canceled",
			delays:  short,
			results: []error{errTransient},
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			wantCalls: 1,
			wantErr:   context.Canceled,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tc.ctx != nil {
				ctx, cancel = tc.ctx()
			}
			defer cancel()

			op, calls := script(tc.results...)
			err := Retry(ctx, tc.delays, transient, op)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if *calls != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", *calls, tc.wantCalls)
			}
		})
	}
}

func TestConstantBackoff(t *testing.T) {
	for _, tc := range []struct {
		tries int
		want  int
	}{{0, 0}, {1, 0}, {3, 2}} {
		got := ConstantBackoff(tc.tries, 5*time.Second)
		if len(got) != tc.want {
			t.Fatalf("ConstantBackoff(%d) len = %d, want %d", tc.tries, len(got), tc.want)
		}
		for _, d := range got {
			if d != 5*time.Second {
				t.Fatalf("delay = %v", d)
			}
		}
	}
}
