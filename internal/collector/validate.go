package collector

import (
	"fmt"
	"strings"

	"escritos/internal/schema"
)

// MissingFieldsError lists the fields left empty at submit time, in schema
// order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Labels returns the missing fields in display form.
func (e *MissingFieldsError) Labels() []string {
	return Labels(e.Fields)
}

// InvalidDateError reports a date input that is neither YYYY-MM-DD nor
// DD/MM/YYYY.
type InvalidDateError struct {
	Field string
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("field %s: invalid date %q", e.Field, e.Value)
}

// FieldTooLongError reports a value above the configured size limit.
type FieldTooLongError struct {
	Field string
	Limit int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("field %s exceeds %d bytes", e.Field, e.Limit)
}

// IsEmpty reports whether v has no content once surrounding whitespace is
// removed.
func IsEmpty(v string) bool {
	return strings.TrimSpace(v) == ""
}

// Validate checks that every field of dt has a non-empty value. It returns a
// *MissingFieldsError naming the offenders, or nil.
func Validate(dt schema.DocumentType, values Values) error {
	var missing []string
	for _, f := range dt.Fields {
		if IsEmpty(values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}
