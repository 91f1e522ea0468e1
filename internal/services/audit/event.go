package audit

import (
	"time"

	"github.com/vshulcz/wxrelay/internal/domain"
)

// Event records one accepted archive record: when it arrived, what it carried and who sent it.
type Event struct {
	Fields    []string `json:"fields"`
	IPAddress string   `json:"ip_address"`
	Received  int64    `json:"ts"`
	DateTime  int64    `json:"dateTime"`
}

// NewEvent describes rec as received at now. Fields are sorted.
func NewEvent(rec domain.Record, ip string, now time.Time) Event {
	return Event{
		Received:  now.Unix(),
		DateTime:  rec.DateTime,
		Fields:    rec.Names(),
		IPAddress: ip,
	}
}
