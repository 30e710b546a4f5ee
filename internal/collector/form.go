package collector

import (
	"context"
	"strings"
	"time"

	"escritos/internal/schema"
)

// HTMLDateLayout is what <input type="date"> submits and expects as value.
const HTMLDateLayout = "2006-01-02"

// FormSource reads values from a key/value lookup such as submitted form
// values or a decoded JSON object.
type FormSource struct {
	Get func(key string) string
	// MaxBytes limits each value; zero disables the check.
	MaxBytes int
}

// MapSource is a FormSource over a plain map.
func MapSource(m map[string]string, maxBytes int) FormSource {
	return FormSource{
		Get:      func(key string) string { return m[key] },
		MaxBytes: maxBytes,
	}
}

func (s FormSource) get(field schema.Field) (string, error) {
	v := s.Get(field.Name)
	if s.MaxBytes > 0 && len(v) > s.MaxBytes {
		return "", &FieldTooLongError{Field: field.Name, Limit: s.MaxBytes}
	}
	return v, nil
}

func (s FormSource) Text(_ context.Context, field schema.Field) (string, error) {
	return s.get(field)
}

func (s FormSource) MultiLine(_ context.Context, field schema.Field) (string, error) {
	return s.get(field)
}

func (s FormSource) Date(_ context.Context, field schema.Field) (time.Time, error) {
	raw, err := s.get(field)
	if err != nil {
		return time.Time{}, err
	}
	return ParseDate(field.Name, raw)
}

// ParseDate accepts YYYY-MM-DD or DD/MM/YYYY. Blank input yields the zero time.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{HTMLDateLayout, DateLayout} {
		if d, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return d, nil
		}
	}
	return time.Time{}, &InvalidDateError{Field: field, Value: raw}
}
