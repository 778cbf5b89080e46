package forecast

import (
	"strings"
	"time"
)

// Condition codes safe to render at night unchanged.
var nightSafeConditions = map[string]bool{
	"clear-night":     true,
	"cloudy":          true,
	"fog":             true,
	"hail":            true,
	"lightning":       true,
	"lightning-rainy": true,
	"pouring":         true,
	"rainy":           true,
	"snowy":           true,
	"snowy-rainy":     true,
}

// Day-only condition codes remapped to clear-night after sunset.
var nightFallbackConditions = map[string]bool{
	"sunny":         true,
	"clear":         true,
	"windy":         true,
	"windy-variant": true,
	"partlycloudy":  true,
	"exceptional":   true,
}

// NormalizeCondition canonicalizes a raw condition code: lowercase with
// underscores mapped to hyphens.
func NormalizeCondition(condition string) string {
	return strings.ReplaceAll(strings.ToLower(condition), "_", "-")
}

// NightAwareCondition maps a condition code to the value that drives its
// visual appearance. At night, day-only conditions collapse to clear-night
// so a "sunny" sample after sunset does not render with a sun.
func NightAwareCondition(condition string, isNight bool) string {
	normalized := NormalizeCondition(condition)
	if !isNight {
		return normalized
	}
	if nightSafeConditions[normalized] {
		return normalized
	}
	if nightFallbackConditions[normalized] {
		return "clear-night"
	}
	return normalized
}

// NightResolver reports whether an instant falls at night at the host's
// configured coordinates. A nil resolver means coordinates are unavailable
// and every instant is treated as daytime.
type NightResolver func(time.Time) bool

// GroupByCondition collapses consecutive samples sharing the same
// night-aware condition into spans. The comparison uses the night-aware
// normalized value; the emitted span carries the original condition string.
func GroupByCondition(seq []Attribute, nightAt NightResolver) []Span {
	if len(seq) == 0 {
		return nil
	}

	isNight := func(t time.Time) bool {
		return nightAt != nil && nightAt(t)
	}

	spans := make([]Span, 0, 1)
	currentCondition := seq[0].Condition
	currentKey := NightAwareCondition(currentCondition, isNight(seq[0].Datetime))
	startIndex := 0

	for i := 1; i < len(seq); i++ {
		key := NightAwareCondition(seq[i].Condition, isNight(seq[i].Datetime))
		if key == currentKey {
			continue
		}

		spans = append(spans, Span{
			Condition:  currentCondition,
			StartIndex: startIndex,
			EndIndex:   i - 1,
			Count:      i - startIndex,
		})
		currentCondition = seq[i].Condition
		currentKey = key
		startIndex = i
	}

	spans = append(spans, Span{
		Condition:  currentCondition,
		StartIndex: startIndex,
		EndIndex:   len(seq) - 1,
		Count:      len(seq) - startIndex,
	})
	return spans
}
