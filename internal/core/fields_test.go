package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		in      string
		want    Field
		wantErr bool
	}{
		{"FirstName", FieldFirstName, false},
		{"firstname", FieldFirstName, false},
		{"  city ", FieldCity, false},
		{"DATE", FieldDate, false},
		{"age", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseField(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseField(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFields(t *testing.T) {
	got, err := ParseFields([]string{"country", "", "date", "country"})
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	want := []Field{FieldCountry, FieldDate, FieldCountry}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFields = %v, want %v", got, want)
	}

	for _, names := range [][]string{nil, {}, {" ", ""}} {
		if _, err := ParseFields(names); !errors.Is(err, ErrEmptyFieldSelection) {
			t.Errorf("ParseFields(%q) error = %v, want ErrEmptyFieldSelection", names, err)
		}
	}

	if _, err := ParseFields([]string{"city", "height"}); err == nil {
		t.Error("ParseFields with unknown name should fail")
	}
}

func TestProject(t *testing.T) {
	r := Record{
		Date:      pgtype.Date{Time: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Valid: true},
		FirstName: "Ivan",
		City:      "Moscow",
	}

	got := Project(r, []Field{FieldCity, FieldDate, FieldLastName})
	want := []string{"Moscow", "2024-02-29", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Project = %q, want %q", got, want)
	}

	r.Date = pgtype.Date{}
	if v := FieldDate.Value(r); v != "" {
		t.Errorf("missing date renders as %q, want empty", v)
	}
	if Field("Nope").Valid() {
		t.Error("unknown field reported valid")
	}
}

func TestParseDateBound(t *testing.T) {
	if d, err := ParseDateBound("  "); d != nil || err != nil {
		t.Errorf("ParseDateBound(blank) = %v, %v; want nil, nil", d, err)
	}

	d, err := ParseDateBound("2024-07-01")
	if err != nil {
		t.Fatalf("ParseDateBound: %v", err)
	}
	if !d.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDateBound = %v", d)
	}

	for _, in := range []string{"01.07.2024", "2024-13-01", "yesterday"} {
		if _, err := ParseDateBound(in); err == nil {
			t.Errorf("ParseDateBound(%q) should fail", in)
		}
	}
}
