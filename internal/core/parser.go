package core

// parser.go turns one CSV line into a Record.
//
// Lines are `date;firstName;lastName;surName;city;country`. Blank lines and
// lines with fewer than six fields are skipped. A date that cannot be parsed
// leaves Record.Date invalid; the row is still imported.

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jackc/pgx/v5/pgtype"
)

// FieldSeparator splits CSV input fields.
const FieldSeparator = ";"

// MinFields is the number of fields a line must have to become a Record.
const MinFields = 6

// fallbackDateLayouts are tried in order after the general parser fails.
var fallbackDateLayouts = []string{
	"02.01.2006", // dd.MM.yyyy
	"2006-01-02", // yyyy-MM-dd
	"01/02/2006", // MM/dd/yyyy
}

// dottedDayMonth matches numeric dates with '.' separators. Their day/month
// order is fixed by the dd.MM.yyyy layout, so the general parser leaves them
// alone rather than guessing month-first.
var dottedDayMonth = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2,4}$`)

// bareDigits matches numbers with no separators. dateparse reads them as Unix
// timestamps or compact yyyymmdd dates; neither is a date here.
var bareDigits = regexp.MustCompile(`^\d+$`)

// monthYearLayouts cover month-and-year values, which dateparse rejects.
// The day defaults to the first of the month.
var monthYearLayouts = []string{
	"January 2006",
	"Jan 2006",
}

// ParseLine converts one line into a Record. ok is false when the line must
// be skipped (blank, or fewer than MinFields fields).
func ParseLine(line string) (rec Record, ok bool) {
	if strings.TrimSpace(line) == "" {
		return Record{}, false
	}

	values := strings.Split(line, FieldSeparator)
	if len(values) < MinFields {
		return Record{}, false
	}

	return Record{
		Date:      ParseDate(values[0]),
		FirstName: values[1],
		LastName:  values[2],
		SurName:   values[3],
		City:      values[4],
		Country:   values[5],
	}, true
}

// IsCandidateLine reports whether ParseLine would accept line, without
// parsing the date. The importer's pre-pass uses it to compute totals.
func IsCandidateLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return strings.Count(line, FieldSeparator) >= MinFields-1
}

// ParseDate parses s with the general parser and then each fallback layout.
// The result is invalid when nothing matches.
func ParseDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}

	if t, ok := parseGeneralDate(s); ok {
		return toDate(t)
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return toDate(t)
		}
	}

	return pgtype.Date{}
}

// parseGeneralDate accepts the wide range of formats dateparse understands,
// interpreting zone-less values as UTC, plus month-year values. Bare digit
// strings are rejected.
func parseGeneralDate(s string) (time.Time, bool) {
	if dottedDayMonth.MatchString(s) || bareDigits.MatchString(s) {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t, true
	}
	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toDate(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}
