package audit

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/vshulcz/wxrelay/internal/domain"
)

func TestNewEvent(t *testing.T) {
	rec := domain.NewRecord(1417218600, map[string]float64{"rain": 0, "outTemp": 61.6})
	now := time.Unix(1417218655, 0)

	evt := NewEvent(rec, "10.0.0.7", now)
	if evt.Received != 1417218655 || evt.DateTime != 1417218600 || evt.IPAddress != "10.0.0.7" {
		t.Fatalf("event = %+v", evt)
	}
	if !slices.Equal(evt.Fields, []string{"outTemp", "rain"}) {
		t.Fatalf("Fields = %v", evt.Fields)
	}
}

func TestSubject_PublishAndErrors(t *testing.T) {
	s := NewSubject()
	var got []Event
	var errs []error
	s.SetErrorHandler(func(err error) { errs = append(errs, err) })

	s.Attach(ObserverFunc(func(_ context.Context, evt Event) error {
		got = append(got, evt)
		return nil
	}))
	detach := s.Attach(ObserverFunc(func(context.Context, Event) error {
		return errors.New("boom")
	}))

	s.Publish(context.Background(), Event{DateTime: 1})
	detach()
	s.Publish(context.Background(), Event{DateTime: 2})

	if len(got) != 2 || got[1].DateTime != 2 {
		t.Fatalf("delivered %+v", got)
	}
	if len(errs) != 1 || errs[0].Error() != "boom" {
		t.Fatalf("errors = %v", errs)
	}
}
