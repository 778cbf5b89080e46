package forecast

import (
	"encoding/json"
	"time"
)

// Type identifies a forecast granularity as advertised by the weather entity.
type Type string

const (
	TypeHourly     Type = "hourly"
	TypeDaily      Type = "daily"
	TypeTwiceDaily Type = "twice_daily"
)

// Capability bits from the entity's supported_features attribute.
const (
	SupportsDaily      = 1
	SupportsHourly     = 2
	SupportsTwiceDaily = 4
)

// SupportsType reports whether the capability bitmask includes the given granularity.
func SupportsType(features int, t Type) bool {
	switch t {
	case TypeDaily:
		return features&SupportsDaily != 0
	case TypeHourly:
		return features&SupportsHourly != 0
	case TypeTwiceDaily:
		return features&SupportsTwiceDaily != 0
	}
	return false
}

// SupportsAnyType reports whether the entity supports at least one forecast granularity.
func SupportsAnyType(features int) bool {
	return features&(SupportsDaily|SupportsHourly|SupportsTwiceDaily) != 0
}

// DailyLikeType resolves the granularity playing the low-frequency role
// opposite hourly. Entities advertising both daily and twice_daily always
// resolve to daily; twice_daily is only the substitute when daily is
// unsupported. Returns "" when neither is supported.
func DailyLikeType(features int) Type {
	if features&SupportsDaily != 0 {
		return TypeDaily
	}
	if features&SupportsTwiceDaily != 0 {
		return TypeTwiceDaily
	}
	return ""
}

// IsDailyLike reports whether t is a daily or twice_daily granularity.
func IsDailyLike(t Type) bool {
	return t == TypeDaily || t == TypeTwiceDaily
}

// Attribute is one forecast sample in display-ready form. Optional fields
// are pointers so that "absent" stays distinguishable from zero.
type Attribute struct {
	Datetime                 time.Time  `json:"datetime"`
	Condition                string     `json:"condition,omitempty"`
	Temperature              *float64   `json:"temperature,omitempty"`
	TempLow                  *float64   `json:"templow,omitempty"`
	Precipitation            *float64   `json:"precipitation,omitempty"`
	PrecipitationProbability *float64   `json:"precipitation_probability,omitempty"`
	Humidity                 *float64   `json:"humidity,omitempty"`
	Pressure                 *float64   `json:"pressure,omitempty"`
	WindSpeed                *float64   `json:"wind_speed,omitempty"`
	WindBearing              *float64   `json:"wind_bearing,omitempty"`
	UVIndex                  *float64   `json:"uv_index,omitempty"`
	ApparentTemperature      *float64   `json:"apparent_temperature,omitempty"`
	CloudCoverage            *float64   `json:"cloud_coverage,omitempty"`
	DewPoint                 *float64   `json:"dew_point,omitempty"`
	IsDaytime                *bool      `json:"is_daytime,omitempty"`
	GroupEndtime             *time.Time `json:"group_endtime,omitempty"`
}

// Event is one full forecast payload pushed by the host. Forecast holds the
// raw samples in arrival order; Raw is the original wire payload, kept so
// events can be persisted and replayed byte-identically.
type Event struct {
	Type     Type             `json:"type"`
	Forecast []map[string]any `json:"forecast"`
	Raw      json.RawMessage  `json:"-"`
}

// ParseEvent decodes a forecast event payload as sent by the host
// (an object with "type" and "forecast" keys).
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	ev.Raw = append(json.RawMessage(nil), raw...)
	return &ev, nil
}

// Span is a maximal run of consecutive samples sharing the same night-aware
// condition. Spans partition a sequence: contiguous, non-overlapping,
// order-preserving, with sum(Count) equal to the sequence length.
type Span struct {
	Condition  string `json:"condition"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Count      int    `json:"count"`
}
