package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/persons/internal/core"
)

// Placeholder renders the nth (1-based) bind parameter.
type Placeholder func(n int) string

// Dollar renders PostgreSQL parameters: $1, $2, ...
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Numbered renders SQLite numbered parameters: ?1, ?2, ...
func Numbered(n int) string { return "?" + strconv.Itoa(n) }

// WhereBuilder accumulates AND-ed conditions and their arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
	bind       Placeholder
}

// NewWhereBuilder creates a builder using PostgreSQL placeholders.
func NewWhereBuilder() *WhereBuilder {
	return NewWhereBuilderWith(Dollar)
}

// NewWhereBuilderWith creates a builder with the given placeholder style.
func NewWhereBuilderWith(bind Placeholder) *WhereBuilder {
	return &WhereBuilder{argIndex: 1, bind: bind}
}

// Add appends "col = value". Empty values are skipped.
func (wb *WhereBuilder) Add(col, value string) {
	if value == "" {
		return
	}
	wb.addCondition(col, "=", value)
}

// AddRange appends "col >= from" and "col <= to". A nil bound is skipped.
func (wb *WhereBuilder) AddRange(col string, from, to any) {
	if from != nil {
		wb.addCondition(col, ">=", from)
	}
	if to != nil {
		wb.addCondition(col, "<=", to)
	}
}

func (wb *WhereBuilder) addCondition(col, op string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s %s %s", col, op, wb.bind(wb.argIndex)))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// Build returns the WHERE clause (with a leading space) and its arguments.
// Both are empty when no condition was added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the index the next parameter should use.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// dialect captures what differs between the two SQL engines.
type dialect struct {
	bind Placeholder
	// dateArg converts a filter bound into a driver value.
	dateArg func(time.Time) any
	// noLimit is the LIMIT value meaning "all rows" when only OFFSET applies.
	noLimit string
}

var postgresDialect = dialect{
	bind:    Dollar,
	dateArg: func(t time.Time) any { return t },
	noLimit: "ALL",
}

var sqliteDialect = dialect{
	bind:    Numbered,
	dateArg: func(t time.Time) any { return t.Format(core.DateLayout) },
	noLimit: "-1",
}

const personColumns = "date, first_name, last_name, sur_name, city, country"

func (d dialect) where(f core.Filter) *WhereBuilder {
	wb := NewWhereBuilderWith(d.bind)

	var from, to any
	if f.DateFrom != nil {
		from = d.dateArg(*f.DateFrom)
	}
	if f.DateTo != nil {
		to = d.dateArg(*f.DateTo)
	}
	wb.AddRange("date", from, to)

	wb.Add("first_name", f.FirstName)
	wb.Add("last_name", f.LastName)
	wb.Add("sur_name", f.SurName)
	wb.Add("city", f.City)
	wb.Add("country", f.Country)
	return wb
}

// countQuery counts the filtered persons.
func (d dialect) countQuery(f core.Filter) (string, []any) {
	whereClause, args := d.where(f).Build()
	return "SELECT COUNT(*) FROM persons" + whereClause, args
}

// selectQuery selects the filtered persons ordered by id. limit <= 0 means
// no limit.
func (d dialect) selectQuery(f core.Filter, offset, limit int64) (string, []any) {
	wb := d.where(f)
	whereClause, args := wb.Build()

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(personColumns)
	b.WriteString(" FROM persons")
	b.WriteString(whereClause)
	b.WriteString(" ORDER BY id")

	next := wb.NextArgIndex()
	switch {
	case limit > 0:
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", d.bind(next), d.bind(next+1))
		args = append(args, limit, offset)
	case offset > 0:
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", d.noLimit, d.bind(next))
		args = append(args, offset)
	}
	return b.String(), args
}
