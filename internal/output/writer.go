// Package output writes the generated document pair to disk.
package output

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"escritos/internal/collector"
	"escritos/internal/schema"
	u "escritos/internal/utils"
)

// FallbackIdentifier names the folder when neither rit nor nombre is set.
const FallbackIdentifier = "escrito"

const timestampLayout = "20060102_150405"

// Kind tells the two artifacts of a submission apart.
type Kind string

const (
	KindDocument Kind = "docx"
	KindPDF      Kind = "pdf"
)

// ContentType returns the MIME type served for k.
func (k Kind) ContentType() string {
	switch k {
	case KindDocument:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case KindPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Artifact is one file written for a submission.
type Artifact struct {
	Kind     Kind
	Path     string
	Filename string
}

// Result describes the files written for one submission.
type Result struct {
	Identifier string
	Folder     string
	Document   Artifact
	PDF        Artifact
}

// Identifier picks the folder key: rit, then nombre, then FallbackIdentifier.
func Identifier(values map[string]string) string {
	for _, key := range []string{"rit", "nombre"} {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
	}
	return FallbackIdentifier
}

// Stem returns "<type with underscores>_<YYYYMMDD_HHMMSS>".
func Stem(docType string, now time.Time) string {
	return strings.ReplaceAll(docType, " ", "_") + "_" + now.Format(timestampLayout)
}

func checkIdentifier(id string) error {
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`+"\x00") {
		return ErrInvalidIdentifier
	}
	return nil
}

// PDFRenderer lays out text as a PDF document.
type PDFRenderer func(w io.Writer, title, text string) error

// Writer places each submission under Root/<identifier>/.
type Writer struct {
	Root string
	// RenderPDF defaults to RenderPDF.
	RenderPDF PDFRenderer
}

// NewWriter returns a Writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{Root: root, RenderPDF: RenderPDF}
}

// Write stores rendered as <stem>.docx and a flat text PDF copy of values as
// <stem>.pdf. If the PDF cannot be produced the .docx is removed again so a
// failed submission never leaves half a pair behind; the folder is kept.
func (w *Writer) Write(dt schema.DocumentType, values map[string]string, rendered []byte, now time.Time) (Result, error) {
	id := Identifier(values)
	folder := filepath.Join(w.Root, id)
	if err := checkIdentifier(id); err != nil {
		return Result{}, &FilesystemError{Op: "validate", Path: folder, Err: err}
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Result{}, &FilesystemError{Op: "mkdir", Path: folder, Err: err}
	}

	stem := Stem(dt.Name, now)
	res := Result{
		Identifier: id,
		Folder:     folder,
		Document: Artifact{
			Kind:     KindDocument,
			Filename: stem + ".docx",
			Path:     filepath.Join(folder, stem+".docx"),
		},
		PDF: Artifact{
			Kind:     KindPDF,
			Filename: stem + ".pdf",
			Path:     filepath.Join(folder, stem+".pdf"),
		},
	}

	if err := os.WriteFile(res.Document.Path, rendered, 0o644); err != nil {
		return Result{}, &FilesystemError{Op: "write", Path: res.Document.Path, Err: err}
	}

	if err := w.writePDF(res.PDF.Path, dt, values, now); err != nil {
		if rmErr := os.Remove(res.Document.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			u.Warn("Could not roll back document after PDF failure", "path", res.Document.Path, "error", rmErr)
		}
		return Result{}, err
	}
	return res, nil
}

func (w *Writer) writePDF(path string, dt schema.DocumentType, values map[string]string, now time.Time) error {
	render := w.RenderPDF
	if render == nil {
		render = RenderPDF
	}

	var buf bytes.Buffer
	text := PDFText(dt, values, now.Format(collector.DateLayout))
	if err := render(&buf, dt.Name, text); err != nil {
		return &FilesystemError{Op: "render pdf", Path: path, Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &FilesystemError{Op: "write", Path: path, Err: err}
	}
	return nil
}
