package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escritos/internal/schema"
)

// recordingSource answers from a map and records which method served each field.
type recordingSource struct {
	text  map[string]string
	dates map[string]time.Time
	calls []string
}

func (s *recordingSource) Text(_ context.Context, f schema.Field) (string, error) {
	s.calls = append(s.calls, "text:"+f.Name)
	return s.text[f.Name], nil
}

func (s *recordingSource) MultiLine(_ context.Context, f schema.Field) (string, error) {
	s.calls = append(s.calls, "area:"+f.Name)
	return s.text[f.Name], nil
}

func (s *recordingSource) Date(_ context.Context, f schema.Field) (time.Time, error) {
	s.calls = append(s.calls, "date:"+f.Name)
	return s.dates[f.Name], nil
}

func lookup(t *testing.T, name string) schema.DocumentType {
	t.Helper()
	dt, err := schema.Default().Lookup(name)
	require.NoError(t, err)
	return dt
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"nombre":             "Nombre",
		"rit":                "Rit",
		"fecha_observacion":  "Fecha Observacion",
		"numero_observacion": "Numero Observacion",
		"descripcion":        "Descripcion",
	}
	for in, want := range tests {
		assert.Equal(t, want, Label(in), in)
	}
	assert.Equal(t, []string{"Ciudad", "Materia"}, Labels([]string{"ciudad", "materia"}))
}

func TestCollect_DispatchesInSchemaOrder(t *testing.T) {
	dt := lookup(t, "Respuesta a observación")
	src := &recordingSource{
		text:  map[string]string{"nombre": "Ana"},
		dates: map[string]time.Time{"fecha_observacion": time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local)},
	}

	values, err := Collect(context.Background(), dt, src)
	require.NoError(t, err)

	want := []string{
		"text:nombre", "text:rit", "text:tribunal", "date:fecha_observacion",
		"text:numero_observacion", "area:respuesta", "area:fundamento",
	}
	if diff := cmp.Diff(want, src.calls); diff != "" {
		t.Fatalf("dispatch mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, values, len(dt.Fields))
	assert.Equal(t, "05/03/2024", values["fecha_observacion"])
	assert.Equal(t, "", values["rit"])
}

func TestCollect_ExactlySchemaFields(t *testing.T) {
	for _, dt := range schema.Default().All() {
		form := map[string]string{"extra": "ignored"}
		values, err := Collect(context.Background(), dt, MapSource(form, 0))
		require.NoError(t, err)

		keys := make([]string, 0, len(values))
		for _, f := range dt.Fields {
			_, ok := values[f.Name]
			assert.True(t, ok, "%s: missing %s", dt.Name, f.Name)
			keys = append(keys, f.Name)
		}
		assert.Len(t, values, len(keys), dt.Name)
		assert.NotContains(t, values, "extra")
	}
}

func TestCollect_FormDateIsReformatted(t *testing.T) {
	dt := lookup(t, "Respuesta a observación")

	for _, raw := range []string{"2024-11-07", "07/11/2024"} {
		values, err := Collect(context.Background(), dt, MapSource(map[string]string{"fecha_observacion": raw}, 0))
		require.NoError(t, err)
		assert.Equal(t, "07/11/2024", values["fecha_observacion"], raw)
	}
}

func TestCollect_InvalidDate(t *testing.T) {
	dt := lookup(t, "Respuesta a observación")

	_, err := Collect(context.Background(), dt, MapSource(map[string]string{"fecha_observacion": "ayer"}, 0))

	var dateErr *InvalidDateError
	require.True(t, errors.As(err, &dateErr))
	assert.Equal(t, "fecha_observacion", dateErr.Field)
}

func TestCollect_FieldTooLong(t *testing.T) {
	dt := lookup(t, "Solicitud simple")

	_, err := Collect(context.Background(), dt, MapSource(map[string]string{"descripcion": strings.Repeat("x", 11)}, 10))

	var tooLong *FieldTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, "descripcion", tooLong.Field)
}

func TestCollect_UnknownKind(t *testing.T) {
	dt := schema.DocumentType{Name: "X", Template: "x.docx", Fields: []schema.Field{{Name: "a", Kind: "slider"}}}
	_, err := Collect(context.Background(), dt, MapSource(nil, 0))
	assert.Error(t, err)
}

func TestCollect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, lookup(t, "Oficio"), MapSource(nil, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	dt := lookup(t, "Solicitud simple")
	full := Values{
		"nombre":      "Juan Pérez",
		"ciudad":      "Santiago",
		"rit":         "C-123-2024",
		"materia":     "Civil",
		"tribunal":    "1º Juzgado",
		"descripcion": "Texto.",
	}

	assert.NoError(t, Validate(dt, full))

	blank := full.Clone()
	blank["ciudad"] = ""
	err := Validate(dt, blank)
	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"ciudad"}, missing.Fields)
	assert.Equal(t, []string{"Ciudad"}, missing.Labels())
	assert.Equal(t, "Texto.", full["descripcion"], "Clone must not alias")
}

func TestValidate_WhitespaceAndAbsentAreEmpty(t *testing.T) {
	dt := lookup(t, "Solicitud simple")
	values := Values{
		"nombre":   "  ",
		"ciudad":   "Santiago",
		"rit":      "\t\n",
		"materia":  "Civil",
		"tribunal": "1º Juzgado",
	}

	err := Validate(dt, values)
	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"nombre", "rit", "descripcion"}, missing.Fields)
	assert.Equal(t, []string{"Nombre", "Rit", "Descripcion"}, missing.Labels())
	assert.Contains(t, missing.Error(), "nombre, rit, descripcion")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(time.Time{}))
	assert.Equal(t, "31/12/2023", FormatDate(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
}
