// Package suntimes answers "is this instant at night, and when does the
// sun rise and set" for the host's configured coordinates.
package suntimes

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Info holds the sun events bracketing an instant.
type Info struct {
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
	IsNightTime bool      `json:"is_night_time"`
}

// At returns sun information for the given instant and coordinate. It
// returns nil when coordinates are unavailable (the host reports 0,0 when
// unset) or when the sun never rises or sets on that date; callers treat
// nil as "not night".
func At(t time.Time, latitude, longitude float64) *Info {
	if latitude == 0 && longitude == 0 {
		return nil
	}

	utc := t.UTC()
	rise, set := sunrise.SunriseSunset(latitude, longitude, utc.Year(), utc.Month(), utc.Day())
	if rise.IsZero() && set.IsZero() {
		// Polar day or night.
		return nil
	}

	return &Info{
		Sunrise:     rise,
		Sunset:      set,
		IsNightTime: utc.Before(rise) || utc.After(set),
	}
}

// Resolver adapts a fixed coordinate to the condition grouper's night
// function. Unknown sun state resolves to daytime.
func Resolver(latitude, longitude float64) func(time.Time) bool {
	if latitude == 0 && longitude == 0 {
		return nil
	}
	return func(t time.Time) bool {
		info := At(t, latitude, longitude)
		return info != nil && info.IsNightTime
	}
}
