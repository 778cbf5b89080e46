package forecast

import (
	"time"
)

// Normalize converts a raw forecast event plus the entity's current
// attribute bag into a display-ready sample sequence. A nil event (stream
// has not delivered yet) or an event of a different granularity yields nil,
// which is distinct from an arrived-but-empty event yielding an empty
// slice. Sample order is preserved.
func Normalize(entityAttrs map[string]any, ev *Event, t Type) []Attribute {
	if ev == nil || ev.Type != t {
		return nil
	}

	out := make([]Attribute, 0, len(ev.Forecast))
	for _, sample := range ev.Forecast {
		dt, ok := sampleTime(sample["datetime"])
		if !ok {
			continue
		}

		attr := Attribute{Datetime: dt}
		if cond, ok := sample["condition"].(string); ok {
			attr.Condition = cond
		}

		attr.Temperature = sampleNumber(sample, "temperature")
		attr.TempLow = sampleNumber(sample, "templow")
		attr.Precipitation = sampleNumber(sample, "precipitation")
		attr.PrecipitationProbability = sampleNumber(sample, "precipitation_probability")
		attr.WindSpeed = sampleNumber(sample, "wind_speed")
		attr.UVIndex = sampleNumber(sample, "uv_index")
		attr.ApparentTemperature = sampleNumber(sample, "apparent_temperature")
		attr.CloudCoverage = sampleNumber(sample, "cloud_coverage")
		attr.DewPoint = sampleNumber(sample, "dew_point")

		// The entity's own state supplies these when a sample omits them.
		attr.Humidity = fallbackNumber(sample, entityAttrs, "humidity")
		attr.Pressure = fallbackNumber(sample, entityAttrs, "pressure")
		attr.WindBearing = fallbackNumber(sample, entityAttrs, "wind_bearing")

		if day, ok := sample["is_daytime"].(bool); ok {
			b := day
			attr.IsDaytime = &b
		}

		out = append(out, attr)
	}
	return out
}

func sampleTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sampleNumber(sample map[string]any, key string) *float64 {
	return toNumber(sample[key])
}

func fallbackNumber(sample, entityAttrs map[string]any, key string) *float64 {
	if n := toNumber(sample[key]); n != nil {
		return n
	}
	return toNumber(entityAttrs[key])
}

func toNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		f := n
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}
