// Package domain holds the archive record and metric types shared by the relay.
package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// FieldDateTime is the mandatory record timestamp key (Unix seconds).
const FieldDateTime = "dateTime"

// Unit systems as carried in the usUnits field.
const (
	US       = 1
	Metric   = 16
	MetricWX = 17
)

// Record is one archive interval snapshot. Null observations are kept as nil values.
type Record struct {
	Fields   map[string]*float64
	DateTime int64
}

// Metric is a single (name, value, timestamp) triple derived from a record field.
type Metric struct {
	Name      string
	Value     float64
	Timestamp int64
}

// NewRecord builds a record from plain values, mostly for callers that never produce nulls.
func NewRecord(ts int64, values map[string]float64) Record {
	fields := make(map[string]*float64, len(values))
	for k, v := range values {
		fields[k] = &v
	}
	return Record{DateTime: ts, Fields: fields}
}

// Time returns the record timestamp in UTC.
func (r Record) Time() time.Time {
	return time.Unix(r.DateTime, 0).UTC()
}

// Value returns the field value and whether it is present and non-null.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Set stores a non-null value.
func (r *Record) Set(name string, v float64) {
	if r.Fields == nil {
		r.Fields = make(map[string]*float64)
	}
	r.Fields[name] = &v
}

// UnitSystem returns the usUnits value, or 0 when absent.
func (r Record) UnitSystem() int {
	v, ok := r.Value("usUnits")
	if !ok {
		return 0
	}
	return int(v)
}

// Clone returns a deep copy so the original published record stays untouched.
func (r Record) Clone() Record {
	out := Record{DateTime: r.DateTime, Fields: make(map[string]*float64, len(r.Fields))}
	for k, v := range r.Fields {
		if v == nil {
			out.Fields[k] = nil
			continue
		}
		vv := *v
		out.Fields[k] = &vv
	}
	return out
}

// Names returns the field names, sorted.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r.Fields))
}

// Metrics converts every allowed field into a metric. A nil allow set admits every field.
// Null values become 0; output is ordered by field name.
func (r Record) Metrics(prefix string, allow FieldSet) []Metric {
	names := r.Names()
	out := make([]Metric, 0, len(names))
	for _, name := range names {
		if name == FieldDateTime || !allow.Contains(name) {
			continue
		}
		var v float64
		if p := r.Fields[name]; p != nil {
			v = *p
		}
		out = append(out, Metric{Name: MetricName(prefix, name), Value: v, Timestamp: r.DateTime})
	}
	return out
}

// Dropped lists the fields Metrics would skip for the given allow set.
func (r Record) Dropped(allow FieldSet) []string {
	var out []string
	for name := range r.Fields {
		if name != FieldDateTime && !allow.Contains(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// MetricName joins prefix and field with a dot, or returns the bare field for an empty prefix.
func MetricName(prefix, field string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

// UnmarshalJSON accepts the flat weewx mapping, e.g. {"dateTime": 1417218600.0, "outTemp": 61.6}.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	ts, ok := raw[FieldDateTime]
	if !ok || ts == nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, FieldDateTime)
	}
	delete(raw, FieldDateTime)
	r.DateTime = int64(*ts)
	r.Fields = raw
	return nil
}

// MarshalJSON emits the same flat mapping UnmarshalJSON reads.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]*float64, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	ts := float64(r.DateTime)
	out[FieldDateTime] = &ts
	return json.Marshal(out)
}
