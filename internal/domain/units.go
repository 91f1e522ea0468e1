package domain

var (
	temperatureFields = []string{
		"outTemp", "inTemp", "dewpoint", "windchill", "heatindex", "appTemp", "humidex",
		"extraTemp1", "extraTemp2", "extraTemp3",
		"soilTemp1", "soilTemp2", "soilTemp3", "soilTemp4",
		"leafTemp1", "leafTemp2",
	}
	speedFields    = []string{"windSpeed", "windGust", "wind_average"}
	pressureFields = []string{"barometer", "pressure", "altimeter"}
	rainFields     = []string{"rain", "rainRate", "dayRain", "hourRain", "rain24", "daily_rain", "long_term_rain"}
)

// ToMetricWX converts a copy of r to the METRICWX system (degC, m/s, mbar, mm).
// Records without usUnits, or already in METRICWX, are returned as a plain copy.
func ToMetricWX(r Record) Record {
	out := r.Clone()
	var (
		temp     func(float64) float64
		speed    func(float64) float64
		pressure func(float64) float64
		rain     func(float64) float64
	)
	switch r.UnitSystem() {
	case US:
		temp = func(f float64) float64 { return (f - 32) * 5 / 9 }
		speed = func(mph float64) float64 { return mph * 0.44704 }
		pressure = func(inHg float64) float64 { return inHg * 33.8639 }
		rain = func(in float64) float64 { return in * 25.4 }
	case Metric:
		speed = func(kph float64) float64 { return kph / 3.6 }
		rain = func(cm float64) float64 { return cm * 10 }
	default:
		return out
	}
	convert(out, temperatureFields, temp)
	convert(out, speedFields, speed)
	convert(out, pressureFields, pressure)
	convert(out, rainFields, rain)
	out.Set("usUnits", MetricWX)
	return out
}

func convert(r Record, names []string, fn func(float64) float64) {
	if fn == nil {
		return
	}
	for _, n := range names {
		if v := r.Fields[n]; v != nil {
			*v = fn(*v)
		}
	}
}
