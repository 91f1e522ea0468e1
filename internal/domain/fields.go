package domain

import (
	"maps"
	"slices"
	"strings"
)

// FieldSet is an allow-list of record fields. The nil set admits everything.
type FieldSet map[string]struct{}

// NewFieldSet builds a set from names, ignoring blanks.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			fs[n] = struct{}{}
		}
	}
	return fs
}

// Contains reports whether name is allowed.
func (fs FieldSet) Contains(name string) bool {
	if fs == nil {
		return true
	}
	_, ok := fs[name]
	return ok
}

// Names returns the sorted members.
func (fs FieldSet) Names() []string {
	return slices.Sorted(maps.Keys(fs))
}

// weewx archive schema observation types plus the derived rain totals.
var defaultFields = []string{
	"usUnits", "interval",
	"barometer", "pressure", "altimeter",
	"inTemp", "outTemp", "inHumidity", "outHumidity",
	"windSpeed", "windDir", "windGust", "windGustDir",
	"rainRate", "rain", "dewpoint", "windchill", "heatindex",
	"ET", "radiation", "UV",
	"extraTemp1", "extraTemp2", "extraTemp3",
	"soilTemp1", "soilTemp2", "soilTemp3", "soilTemp4",
	"leafTemp1", "leafTemp2",
	"extraHumid1", "extraHumid2",
	"soilMoist1", "soilMoist2", "soilMoist3", "soilMoist4",
	"leafWet1", "leafWet2",
	"rxCheckPercent", "txBatteryStatus", "consBatteryVoltage",
	"hail", "hailRate", "heatingTemp", "heatingVoltage", "supplyVoltage",
	"referenceVoltage", "windBatteryStatus", "rainBatteryStatus",
	"outTempBatteryStatus", "inTempBatteryStatus",
	"appTemp", "cloudbase", "humidex", "maxSolarRad", "windrun",
	"wind_average", "daily_rain", "long_term_rain", "day_of_year", "minute_of_day",
	"dayRain", "hourRain", "rain24",
}

// DefaultFields returns a fresh copy of the recognized observation types.
func DefaultFields() FieldSet {
	return NewFieldSet(defaultFields...)
}
