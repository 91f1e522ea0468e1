// Package archive derives rain totals from the host archive.
package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/ports"
)

// Augmenter adds dayRain, hourRain and rain24 to outgoing records.
type Augmenter struct {
	archive ports.Archive
	loc     *time.Location
	log     *zap.Logger
}

// New returns an Augmenter. Day boundaries are taken in loc (time.Local when nil).
func New(a ports.Archive, loc *time.Location, log *zap.Logger) *Augmenter {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Augmenter{archive: a, loc: loc, log: log}
}

// Augment returns a copy of rec with the rain totals that could be computed.
// A failed lookup is logged and leaves that field unset.
func (a *Augmenter) Augment(ctx context.Context, rec domain.Record) domain.Record {
	out := rec.Clone()
	ts := rec.DateTime

	t := rec.Time().In(a.loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc).Unix()

	windows := []struct {
		field string
		from  int64
	}{
		{"dayRain", midnight},
		{"hourRain", ts - 3600},
		{"rain24", ts - 86400},
	}
	for _, w := range windows {
		sum, ok, err := a.archive.SumRain(ctx, w.from, ts)
		if err != nil {
			a.log.Warn("rain total unavailable", zap.String("field", w.field), zap.Int64("dateTime", ts), zap.Error(err))
			continue
		}
		if ok {
			out.Set(w.field, sum)
		}
	}
	return out
}
