package core

// fields.go maps export field identifiers to record accessors.
//
// The mapping is fixed at compile time: a caller selects an ordered subset of
// Field values and the exporter projects each record through the matching
// accessor. Unknown names are rejected when the selection is parsed.

import (
	"fmt"
	"strings"
	"time"
)

// Field identifies one exportable Record attribute.
type Field string

const (
	FieldDate      Field = "Date"
	FieldFirstName Field = "FirstName"
	FieldLastName  Field = "LastName"
	FieldSurName   Field = "SurName"
	FieldCity      Field = "City"
	FieldCountry   Field = "Country"
)

// DateLayout is how dates render in tabular exports and previews.
const DateLayout = "2006-01-02"

// AllFields lists every exportable field in table order.
var AllFields = []Field{FieldDate, FieldFirstName, FieldLastName, FieldSurName, FieldCity, FieldCountry}

var fieldAccessors = map[Field]func(Record) string{
	FieldDate: func(r Record) string {
		if !r.Date.Valid {
			return ""
		}
		return r.Date.Time.Format(DateLayout)
	},
	FieldFirstName: func(r Record) string { return r.FirstName },
	FieldLastName:  func(r Record) string { return r.LastName },
	FieldSurName:   func(r Record) string { return r.SurName },
	FieldCity:      func(r Record) string { return r.City },
	FieldCountry:   func(r Record) string { return r.Country },
}

// Value returns the field's value for r, or "" for missing values.
func (f Field) Value(r Record) string {
	if get, ok := fieldAccessors[f]; ok {
		return get(r)
	}
	return ""
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	_, ok := fieldAccessors[f]
	return ok
}

// ParseField resolves a field name case-insensitively.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for _, f := range AllFields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export field %q", name)
}

// ParseFields resolves an ordered list of field names. Duplicates are kept in
// the order given, matching what the caller asked for.
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, err := ParseField(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyFieldSelection
	}
	return fields, nil
}

// Project returns the selected field values of r in selection order.
func Project(r Record, fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Value(r)
	}
	return out
}

// ParseDateBound parses a YYYY-MM-DD filter bound. An empty string yields nil.
func ParseDateBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}
