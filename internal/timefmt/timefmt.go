// Package timefmt renders hour and day labels for forecast slots in a
// locale- and clock-format-aware way. The presence of a suffix (the AM/PM
// day-period marker) is what the layout uses to pick single-row versus
// two-row label rendering, so suffixes only ever appear under a 12-hour
// clock.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

// Clock is the user's clock-format preference.
type Clock string

const (
	Clock12       Clock = "12"
	Clock24       Clock = "24"
	ClockLanguage Clock = "language"
)

// HourParts is a whole-hour label. Suffix is empty under a 24-hour clock.
type HourParts struct {
	Hour   string `json:"hour"`
	Suffix string `json:"suffix,omitempty"`
}

// TimeParts is an hour-and-minute label. Suffix is empty under a 24-hour clock.
type TimeParts struct {
	Time   string `json:"time"`
	Suffix string `json:"suffix,omitempty"`
}

// Formatter renders labels for one locale and clock preference. Obtain via
// New, which caches formatters keyed by their inputs.
type Formatter struct {
	tag    language.Tag
	locale monday.Locale
	amPm   bool
}

var cache sync.Map

// New returns the formatter for a BCP-47 locale string and clock
// preference. Formatters are pure and cached; repeated calls with the same
// inputs return the same instance.
func New(locale string, clock Clock) *Formatter {
	key := locale + "|" + string(clock)
	if f, ok := cache.Load(key); ok {
		return f.(*Formatter)
	}

	tag := language.Make(locale)
	f := &Formatter{
		tag:    tag,
		locale: mondayLocale(tag),
		amPm:   usesAmPm(tag, clock),
	}
	actual, _ := cache.LoadOrStore(key, f)
	return actual.(*Formatter)
}

// UsesAmPm reports whether this formatter renders a 12-hour clock.
func (f *Formatter) UsesAmPm() bool {
	return f.amPm
}

// FormatHourParts renders the hour label for a forecast slot.
func (f *Formatter) FormatHourParts(t time.Time) HourParts {
	if !f.amPm {
		return HourParts{Hour: strconv.Itoa(t.Hour())}
	}

	if marker, ok := dayPeriodMarker(f.tag, t.Hour() >= 12); ok {
		return HourParts{Hour: strconv.Itoa(hour12(t)), Suffix: marker}
	}

	// No structured day-period marker for this language: fall back to
	// regex extraction over a fully formatted string.
	primary, suffix := splitFormatted(t.Format("3 PM"), hourPattern)
	return HourParts{Hour: primary, Suffix: suffix}
}

// FormatTimeParts renders an hour-and-minute label, used for sunrise and
// sunset slots where the minute matters.
func (f *Formatter) FormatTimeParts(t time.Time) TimeParts {
	if !f.amPm {
		return TimeParts{Time: fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())}
	}

	if marker, ok := dayPeriodMarker(f.tag, t.Hour() >= 12); ok {
		return TimeParts{Time: fmt.Sprintf("%d:%02d", hour12(t), t.Minute()), Suffix: marker}
	}

	primary, suffix := splitFormatted(t.Format("3:04 PM"), timePattern)
	return TimeParts{Time: primary, Suffix: suffix}
}

// FormatDay renders the abbreviated weekday name.
func (f *Formatter) FormatDay(t time.Time) string {
	return monday.Format(t, "Mon", f.locale)
}

// FormatDayOfMonth renders the day-of-month numeral.
func (f *Formatter) FormatDayOfMonth(t time.Time) string {
	return monday.Format(t, "2", f.locale)
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return h
}

var (
	hourPattern = regexp.MustCompile(`\d+`)
	timePattern = regexp.MustCompile(`\d+[:.]\d+`)
)

func splitFormatted(full string, pattern *regexp.Regexp) (primary, suffix string) {
	loc := pattern.FindStringIndex(full)
	if loc == nil {
		return full, ""
	}
	primary = full[loc[0]:loc[1]]
	rest := full[:loc[0]] + full[loc[1]:]
	return primary, strings.TrimSpace(rest)
}

// Languages whose default clock convention is 12-hour.
var amPmLanguages = map[string]bool{
	"en": true,
	"ar": true,
	"bn": true,
	"el": true,
	"hi": true,
	"ko": true,
}

func usesAmPm(tag language.Tag, clock Clock) bool {
	switch clock {
	case Clock12:
		return true
	case Clock24:
		return false
	}
	base, _ := tag.Base()
	return amPmLanguages[base.String()]
}

// Localized day-period markers, covering every language in
// amPmLanguages. Locales outside the table only reach 12-hour rendering
// when the clock preference forces it; those take the regex fallback
// path, whose markers are English.
var dayPeriodMarkers = map[string][2]string{
	"en": {"AM", "PM"},
	"ar": {"ص", "م"},
	"bn": {"AM", "PM"},
	"el": {"π.μ.", "μ.μ."},
	"hi": {"am", "pm"},
	"ko": {"오전", "오후"},
}

func dayPeriodMarker(tag language.Tag, pm bool) (string, bool) {
	base, _ := tag.Base()
	markers, ok := dayPeriodMarkers[base.String()]
	if !ok {
		return "", false
	}
	if pm {
		return markers[1], true
	}
	return markers[0], true
}

var supportedLocales = []struct {
	tag    language.Tag
	locale monday.Locale
}{
	{language.AmericanEnglish, monday.LocaleEnUS},
	{language.BritishEnglish, monday.LocaleEnGB},
	{language.German, monday.LocaleDeDE},
	{language.French, monday.LocaleFrFR},
	{language.Spanish, monday.LocaleEsES},
	{language.Italian, monday.LocaleItIT},
	{language.Dutch, monday.LocaleNlNL},
	{language.EuropeanPortuguese, monday.LocalePtPT},
	{language.BrazilianPortuguese, monday.LocalePtBR},
	{language.Russian, monday.LocaleRuRU},
	{language.Polish, monday.LocalePlPL},
	{language.Swedish, monday.LocaleSvSE},
	{language.Danish, monday.LocaleDaDK},
	{language.Finnish, monday.LocaleFiFI},
	{language.Norwegian, monday.LocaleNbNO},
	{language.Turkish, monday.LocaleTrTR},
	{language.Czech, monday.LocaleCsCZ},
	{language.Hungarian, monday.LocaleHuHU},
	{language.Greek, monday.LocaleElGR},
	{language.Japanese, monday.LocaleJaJP},
	{language.Korean, monday.LocaleKoKR},
	{language.SimplifiedChinese, monday.LocaleZhCN},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(supportedLocales))
	for i, s := range supportedLocales {
		tags[i] = s.tag
	}
	return language.NewMatcher(tags)
}()

func mondayLocale(tag language.Tag) monday.Locale {
	_, idx, _ := localeMatcher.Match(tag)
	return supportedLocales[idx].locale
}
