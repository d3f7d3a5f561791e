package result

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Placeholder is shown for any value that is absent or not a number.
const Placeholder = "N/A"

// NoPnLData is the single row shown when there is no time series.
const NoPnLData = "No PnL data"

// FormatPercent renders a weight fraction as a percentage with 4 decimals.
func FormatPercent(v float64) string {
	return fixed(v*100, 4) + "%"
}

// FormatCurrency renders v with a $ prefix and 2 decimals. The sign
// follows the prefix: -20 renders as $-20.00.
func FormatCurrency(v float64) string {
	return "$" + fixed(v, 2)
}

// FormatRatio renders a volatility-style metric with 4 decimals.
func FormatRatio(v float64) string {
	return fixed(v, 4)
}

func fixed(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// DateLayoutISO is the wire format of configuration and series dates.
const DateLayoutISO = "2006-01-02"

// LocaleISO renders series dates unchanged in ISO form.
const LocaleISO = "iso"

var localeLayouts = map[string]string{
	LocaleISO: DateLayoutISO,
	"en-US":   "1/2/2006",
	"en-GB":   "02/01/2006",
	"de-DE":   "2.1.2006",
	"fr-FR":   "02/01/2006",
	"ja-JP":   "2006/1/2",
}

// Locales returns the supported display locales, sorted.
func Locales() []string {
	out := make([]string, 0, len(localeLayouts))
	for k := range localeLayouts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownLocale reports whether locale has a date layout.
func KnownLocale(locale string) bool {
	_, ok := localeLayouts[locale]
	return ok
}

// ParseDate reads a calendar date, accepting a full RFC 3339 timestamp
// as well. The calendar day is taken as written, with no zone shift.
func ParseDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(DateLayoutISO, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// FormatDate renders a series date for locale. Unknown locales fall back
// to ISO; unparseable dates are returned as given.
func FormatDate(raw, locale string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return raw
	}
	layout, ok := localeLayouts[locale]
	if !ok {
		layout = DateLayoutISO
	}
	return t.Format(layout)
}
