package card

import (
	"time"

	"github.com/simonhale/forecastcard/internal/forecast"
	"github.com/simonhale/forecastcard/internal/suntimes"
	"github.com/simonhale/forecastcard/internal/timefmt"
)

// LabelKind says what a slot label represents, so a renderer can pick an
// icon alongside sunrise and sunset labels.
type LabelKind string

const (
	LabelDay     LabelKind = "day"
	LabelHour    LabelKind = "hour"
	LabelSunrise LabelKind = "sunrise"
	LabelSunset  LabelKind = "sunset"
)

// Label is one slot's header text. Secondary carries the AM/PM marker for
// hour labels, or the day-of-month for daily labels, when the locale uses
// a 12-hour clock; otherwise it is empty and the label renders one row.
type Label struct {
	Kind      LabelKind `json:"kind"`
	Primary   string    `json:"primary"`
	Secondary string    `json:"secondary,omitempty"`
}

// Labeler formats slot header labels, marking the hourly slots that
// contain the local sunrise or sunset.
type Labeler struct {
	fmt          *timefmt.Formatter
	lat, lon     float64
	showSunTimes bool
}

// NewLabeler builds a labeler. Zero lat and lon disables sun markers, as
// does showSunTimes false.
func NewLabeler(f *timefmt.Formatter, lat, lon float64, showSunTimes bool) *Labeler {
	return &Labeler{fmt: f, lat: lat, lon: lon, showSunTimes: showSunTimes}
}

// For formats the header label for one forecast slot.
func (l *Labeler) For(sample forecast.Attribute, t forecast.Type) Label {
	if forecast.IsDailyLike(t) {
		lbl := Label{Kind: LabelDay, Primary: l.fmt.FormatDay(sample.Datetime)}
		if l.fmt.UsesAmPm() {
			lbl.Secondary = l.fmt.FormatDayOfMonth(sample.Datetime)
		}
		return lbl
	}

	if kind, at, ok := l.sunEventIn(sample); ok {
		parts := l.fmt.FormatTimeParts(at)
		return Label{Kind: kind, Primary: parts.Time, Secondary: parts.Suffix}
	}

	parts := l.fmt.FormatHourParts(sample.Datetime)
	return Label{Kind: LabelHour, Primary: parts.Hour, Secondary: parts.Suffix}
}

// sunEventIn reports whether the slot's time window contains today's
// sunrise or sunset, and at what clock time. The sun event's clock time is
// projected onto the slot's calendar day so multi-day hourly sequences
// mark the event in every day's matching slot.
func (l *Labeler) sunEventIn(sample forecast.Attribute) (LabelKind, time.Time, bool) {
	if !l.showSunTimes {
		return "", time.Time{}, false
	}
	info := suntimes.At(sample.Datetime, l.lat, l.lon)
	if info == nil {
		return "", time.Time{}, false
	}

	start := sample.Datetime
	end := forecast.EndOfHour(start)
	if sample.GroupEndtime != nil {
		end = *sample.GroupEndtime
	}

	if at := projectClock(info.Sunrise, start); !at.Before(start) && !at.After(end) {
		return LabelSunrise, at, true
	}
	if at := projectClock(info.Sunset, start); !at.Before(start) && !at.After(end) {
		return LabelSunset, at, true
	}
	return "", time.Time{}, false
}

// projectClock keeps src's local clock time but moves it onto day's
// calendar date, in day's location.
func projectClock(src, day time.Time) time.Time {
	src = src.In(day.Location())
	return time.Date(day.Year(), day.Month(), day.Day(),
		src.Hour(), src.Minute(), src.Second(), 0, day.Location())
}
