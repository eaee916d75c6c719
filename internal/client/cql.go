package client

import (
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/models"
)

// Quote renders s as a CQL string literal, doubling embedded quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Eq builds "field = 'value'".
func Eq(field, value string) string {
	return field + " = " + Quote(value)
}

// EqInt builds "field = n".
func EqInt(field string, n int) string {
	return field + " = " + strconv.Itoa(n)
}

// In builds "field in ('a', 'b')".
func In(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, Quote(v))
	}
	return field + " in (" + strings.Join(quoted, ", ") + ")"
}

// InInts builds "field in (1, 2)".
func InInts(field string, values []int) string {
	items := make([]string, 0, len(values))
	for _, v := range values {
		items = append(items, strconv.Itoa(v))
	}
	return field + " in (" + strings.Join(items, ", ") + ")"
}

// Gte builds "field >= 'value'".
func Gte(field, value string) string {
	return field + " >= " + Quote(value)
}

// Lte builds "field <= 'value'".
func Lte(field, value string) string {
	return field + " <= " + Quote(value)
}

// And joins the non-empty expressions with AND. Expressions containing OR
// are parenthesised so they keep their meaning.
func And(exprs ...string) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(e), " OR ") {
			e = "(" + e + ")"
		}
		parts = append(parts, e)
	}
	return strings.Join(parts, " AND ")
}

// Range bounds a time-filtered lookup. Nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// filters returns the CQL comparisons of the range against field.
func (r Range) filters(field string) []string {
	var out []string
	if r.From != nil {
		out = append(out, Gte(field, models.Instant(*r.From)))
	}
	if r.To != nil {
		out = append(out, Lte(field, models.Instant(*r.To)))
	}
	return out
}
