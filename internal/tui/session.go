package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"escritos/internal/collector"
	"escritos/internal/escritos"
	"escritos/internal/schema"
)

const (
	msgSaved   = "Escrito generado y guardado en: "
	msgMissing = "Por favor completa los siguientes campos: "
	msgFailed  = "Error al generar el escrito: "
)

// Session drives one terminal submission.
type Session struct {
	Generator *escritos.Generator
	Driver    PromptDriver
	Out       io.Writer
	// MaxAttempts bounds re-prompting after missing fields; zero means 3.
	MaxAttempts int
}

// Run asks for the type when docType is empty, then prompts for its fields
// until the submission succeeds, the attempts run out or the user aborts.
func (s *Session) Run(ctx context.Context, docType string) (*escritos.Result, error) {
	if docType == "" {
		var err error
		docType, err = ChooseType(ctx, s.Driver, s.Generator.Registry.Names())
		if err != nil {
			return nil, err
		}
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	src := NewPromptSource(s.Driver)
	if s.Generator.Now != nil {
		src.Now = s.Generator.Now
	}

	fmt.Fprintf(s.Out, "Datos del escrito (%s)\n", docType)
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := s.Generator.Generate(ctx, escritos.Submission{Type: docType, Source: src})
		if err == nil {
			fmt.Fprintln(s.Out, msgSaved+res.Folder)
			PrintResult(s.Out, res)
			return res, nil
		}

		var missing *collector.MissingFieldsError
		if !errors.As(err, &missing) {
			if !errors.Is(err, ErrAborted) && !errors.Is(err, schema.ErrUnknownDocumentType) {
				fmt.Fprintln(s.Out, msgFailed+err.Error())
			}
			return nil, err
		}
		fmt.Fprintln(s.Out, msgMissing+strings.Join(missing.Labels(), ", "))
		lastErr = err
	}
	return nil, lastErr
}

// PrintResult renders the written files as a table.
func PrintResult(w io.Writer, res *escritos.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Archivo", "Ruta"})
	tw.AppendRow(table.Row{res.Document.Filename, res.Document.Path})
	tw.AppendRow(table.Row{res.PDF.Filename, res.PDF.Path})
	tw.Render()
}

// PrintTypes renders the registry as a table, one row per document type.
func PrintTypes(w io.Writer, reg *schema.Registry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Tipo", "Plantilla", "Campos"})
	for _, dt := range reg.All() {
		fields := make([]string, len(dt.Fields))
		for i, f := range dt.Fields {
			fields[i] = collector.Label(f.Name) + " (" + string(f.Kind) + ")"
		}
		tw.AppendRow(table.Row{dt.Name, dt.Template, strings.Join(fields, ", ")})
	}
	tw.Render()
}
