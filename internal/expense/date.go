package expense

import (
	"fmt"
	"time"
)

// Dates carry day-only semantics but are stored as absolute instants. Anchoring
// every date at 12:00:00 UTC keeps the calendar day stable when a client
// renders it in a local timezone a few hours either side of UTC.

// excelEpochOffsetDays is the offset between the 1900-based spreadsheet date
// serial epoch and the Unix epoch (1970-01-01), in days.
const excelEpochOffsetDays = 25569

// dateLayouts are the textual date formats the importers accept, tried in
// order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// MiddayUTC returns the canonical instant for t's calendar day: 12:00:00 UTC.
func MiddayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// ParseDate parses a textual date in any accepted layout and returns it at
// canonical midday UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MiddayUTC(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FromSerial converts a 1900-based spreadsheet date serial to the canonical
// midday-UTC instant of the day it encodes.
func FromSerial(serial float64) time.Time {
	t := time.UnixMilli(int64((serial - excelEpochOffsetDays) * 86400 * 1000)).UTC()
	return MiddayUTC(t)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DayKey returns the UTC calendar day of t in ISO format, for use in derived
// identity keys.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
