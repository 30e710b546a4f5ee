// Package docx fills .docx templates whose text carries Jinja-style
// placeholders ({{ nombre }}, {{ fecha }}).
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"

	"escritos/internal/collector"
	"escritos/internal/schema"
)

// DateField is the context key holding the generation date.
const DateField = "fecha"

// ErrUnknownPlaceholder is wrapped when a template references a name the
// context does not provide.
var ErrUnknownPlaceholder = errors.New("template references unknown field")

// TemplateRenderError reports a template that is missing, unreadable,
// malformed, or out of step with the submitted fields.
type TemplateRenderError struct {
	Template string
	Err      error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("docx: render %s: %v", e.Template, e.Err)
}

func (e *TemplateRenderError) Unwrap() error {
	return e.Err
}

// Context is the data a template is executed with.
type Context map[string]string

// BuildContext copies values and adds the generation date under DateField.
func BuildContext(values map[string]string, now time.Time) Context {
	ctx := make(Context, len(values)+1)
	for k, v := range values {
		ctx[k] = v
	}
	ctx[DateField] = now.Format(collector.DateLayout)
	return ctx
}

func (c Context) pongo() pongo2.Context {
	out := make(pongo2.Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Renderer loads templates from a directory.
type Renderer struct {
	Dir string
}

// NewRenderer returns a Renderer reading templates under dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir}
}

// Render fills the template of dt with ctx and returns the new .docx bytes.
func (r *Renderer) Render(dt schema.DocumentType, ctx Context) ([]byte, error) {
	path := filepath.Join(r.Dir, dt.Template)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateRenderError{Template: dt.Template, Err: err}
	}
	out, err := Fill(src, ctx)
	if err != nil {
		return nil, &TemplateRenderError{Template: dt.Template, Err: err}
	}
	return out, nil
}

// templatePart matches the document parts that may carry placeholders.
var templatePart = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)

// Fill executes every text part of the .docx archive src against ctx. Parts
// without text (styles, media, relationships) are copied as-is.
func Fill(src []byte, ctx Context) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if !templatePart.MatchString(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		rendered, err := fillPart(f, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := io.WriteString(w, rendered); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func fillPart(f *zip.File, ctx Context) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", err
	}

	xml := repairPlaceholders(string(raw))
	if !strings.Contains(xml, "{{") && !strings.Contains(xml, "{%") {
		return xml, nil
	}

	var unknown []string
	for _, name := range referencedVariables(xml) {
		if _, ok := ctx[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholder, strings.Join(unknown, ", "))
	}

	tpl, err := pongo2.FromString(xml)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	out, err := tpl.Execute(ctx.pongo())
	if err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return out, nil
}
