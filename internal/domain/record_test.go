package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestRecord_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantTS  int64
		wantLen int
		wantErr bool
	}{
		{"weewx float timestamp", `{"dateTime": 1417218600.0, "outTemp": 61.6, "rain": 0.0}`, 1417218600, 2, false},
		{"fractional seconds truncated", `{"dateTime": 1417218600.9}`, 1417218600, 0, false},
		{"null field kept", `{"dateTime": 1, "windGust": null}`, 1, 1, false},
		{"missing dateTime", `{"outTemp": 1}`, 0, 0, true},
		{"null dateTime", `{"dateTime": null}`, 0, 0, true},
		{"string value", `{"dateTime": 1, "outTemp": "warm"}`, 0, 0, true},
		{"not an object", `[1,2]`, 0, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var r Record
			err := json.Unmarshal([]byte(tc.in), &r)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Fatalf("err = %v, want ErrInvalidRecord", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.DateTime != tc.wantTS {
				t.Fatalf("DateTime = %d, want %d", r.DateTime, tc.wantTS)
			}
			if len(r.Fields) != tc.wantLen {
				t.Fatalf("len(Fields) = %d, want %d", len(r.Fields), tc.wantLen)
			}
			if _, ok := r.Fields[FieldDateTime]; ok {
				t.Fatal("dateTime must not stay in Fields")
			}
		})
	}
}

func TestRecord_MarshalJSON_RoundTripsNulls(t *testing.T) {
	r := NewRecord(1417218600, map[string]float64{"outTemp": 61.6})
	r.Fields["windGust"] = nil

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.DateTime != r.DateTime {
		t.Fatalf("DateTime = %d", back.DateTime)
	}
	if v, ok := back.Fields["windGust"]; !ok || v != nil {
		t.Fatalf("windGust = %v, %v; want present null", v, ok)
	}
}

func TestRecord_Metrics(t *testing.T) {
	r := NewRecord(1417218600, map[string]float64{"outTemp": 61.6, "rain": 0})
	r.Fields["windGust"] = nil
	r.Fields["bogus"] = ptr(1)

	t.Run("prefixed with null as zero", func(t *testing.T) {
		got := r.Metrics("weewx", NewFieldSet("outTemp", "rain", "windGust"))
		want := []Metric{
			{Name: "weewx.outTemp", Value: 61.6, Timestamp: 1417218600},
			{Name: "weewx.rain", Value: 0, Timestamp: 1417218600},
			{Name: "weewx.windGust", Value: 0, Timestamp: 1417218600},
		}
		if len(got) != len(want) {
			t.Fatalf("got %d metrics, want %d: %+v", len(got), len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("metric[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("empty prefix gives bare names", func(t *testing.T) {
		got := r.Metrics("", NewFieldSet("outTemp"))
		if len(got) != 1 || got[0].Name != "outTemp" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("nil allow set admits all", func(t *testing.T) {
		if got := r.Metrics("p", nil); len(got) != 4 {
			t.Fatalf("got %d metrics, want 4", len(got))
		}
	})

	t.Run("dropped lists filtered fields", func(t *testing.T) {
		got := r.Dropped(DefaultFields())
		if len(got) != 1 || got[0] != "bogus" {
			t.Fatalf("Dropped = %v", got)
		}
	})
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := NewRecord(1, map[string]float64{"outTemp": 10})
	c := r.Clone()
	c.Set("outTemp", 20)
	if v, _ := r.Value("outTemp"); v != 10 {
		t.Fatalf("original mutated: %v", v)
	}
}

func TestRecord_Names(t *testing.T) {
	r := NewRecord(1, map[string]float64{"rain": 0, "outTemp": 1, "UV": 2})
	got := r.Names()
	want := []string{"UV", "outTemp", "rain"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestMetricName(t *testing.T) {
	tests := []struct{ prefix, field, want string }{
		{"weewx", "outTemp", "weewx.outTemp"},
		{"", "outTemp", "outTemp"},
		{"weewx.", "rain", "weewx.rain"},
		{"a.b", "UV", "a.b.UV"},
	}
	for _, tc := range tests {
		if got := MetricName(tc.prefix, tc.field); got != tc.want {
			t.Errorf("MetricName(%q, %q) = %q, want %q", tc.prefix, tc.field, got, tc.want)
		}
	}
}

func TestToMetricWX(t *testing.T) {
	us := NewRecord(1, map[string]float64{
		"usUnits": US, "outTemp": 212, "windSpeed": 10, "barometer": 30, "rain": 1,
	})
	got := ToMetricWX(us)

	check := func(name string, want float64) {
		t.Helper()
		v, ok := got.Value(name)
		if !ok || math.Abs(v-want) > 1e-6 {
			t.Errorf("%s = %v (ok=%v), want %v", name, v, ok, want)
		}
	}
	check("outTemp", 100)
	check("windSpeed", 4.4704)
	check("barometer", 1015.917)
	check("rain", 25.4)
	check("usUnits", MetricWX)

	if v, _ := us.Value("outTemp"); v != 212 {
		t.Fatalf("input mutated: outTemp = %v", v)
	}

	metric := NewRecord(1, map[string]float64{"usUnits": Metric, "windSpeed": 36, "rain": 0.5, "outTemp": 5})
	got = ToMetricWX(metric)
	check("windSpeed", 10)
	check("rain", 5)
	check("outTemp", 5)
}

func ptr(v float64) *float64 { return &v }
