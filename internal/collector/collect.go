// Package collector gathers and validates the field values of one submission.
package collector

import (
	"context"
	"fmt"
	"time"

	"escritos/internal/schema"
)

// DateLayout is the DD/MM/YYYY form dates are stored and rendered in.
const DateLayout = "02/01/2006"

// Values maps field name to its collected string value.
type Values map[string]string

// Clone returns an independent copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Source supplies raw input for one field at a time. Each method corresponds
// to one schema.FieldKind.
type Source interface {
	Text(ctx context.Context, field schema.Field) (string, error)
	MultiLine(ctx context.Context, field schema.Field) (string, error)
	// Date returns the zero time when the field was left blank.
	Date(ctx context.Context, field schema.Field) (time.Time, error)
}

// Collect asks src for every field of dt in declaration order. The result
// holds exactly the fields of dt. Dates are stored as DD/MM/YYYY; nothing
// else is transformed.
func Collect(ctx context.Context, dt schema.DocumentType, src Source) (Values, error) {
	values := make(Values, len(dt.Fields))
	for _, field := range dt.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			value string
			err   error
		)
		switch field.Kind {
		case schema.SingleLineText:
			value, err = src.Text(ctx, field)
		case schema.MultiLineText:
			value, err = src.MultiLine(ctx, field)
		case schema.Date:
			var d time.Time
			d, err = src.Date(ctx, field)
			value = FormatDate(d)
		default:
			err = fmt.Errorf("field %q: unknown kind %q", field.Name, field.Kind)
		}
		if err != nil {
			return nil, err
		}
		values[field.Name] = value
	}
	return values, nil
}

// FormatDate renders d as DD/MM/YYYY, or "" for the zero time.
func FormatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}
