// Package testsupport builds .docx fixtures for tests.
package testsupport

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"escritos/internal/schema"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

// DocumentXML wraps paragraphs (already-formed <w:p> elements) in a document part.
func DocumentXML(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(paragraphs, "") +
		`</w:body></w:document>`
}

// Paragraph returns a single-run paragraph holding text.
func Paragraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

// Docx assembles a minimal .docx archive around documentXML. Extra parts are
// added verbatim by name.
func Docx(t *testing.T, documentXML string, extra map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", documentXML},
	}
	for name, body := range extra {
		parts = append(parts, struct{ name, body string }{name, body})
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			t.Fatalf("testsupport: create %s: %v", p.name, err)
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			t.Fatalf("testsupport: write %s: %v", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("testsupport: close docx: %v", err)
	}
	return buf.Bytes()
}

// Part returns the content of the named part of a .docx archive.
func Part(t *testing.T, docx []byte, name string) string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		t.Fatalf("testsupport: open docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("testsupport: open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("testsupport: read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("testsupport: part %s not found", name)
	return ""
}

// FieldTemplate returns a document part with one "<Field>: {{ field }}"
// paragraph per field of dt, preceded by the date placeholder.
func FieldTemplate(dt schema.DocumentType) string {
	paragraphs := []string{Paragraph("Fecha: {{ fecha }}")}
	for _, f := range dt.Fields {
		paragraphs = append(paragraphs, Paragraph(f.Name+": {{ "+f.Name+" }}"))
	}
	return DocumentXML(paragraphs...)
}

// WriteTemplates writes a FieldTemplate .docx for every type of reg into dir.
func WriteTemplates(t *testing.T, dir string, reg *schema.Registry) {
	t.Helper()

	for _, dt := range reg.All() {
		path := filepath.Join(dir, dt.Template)
		if err := os.WriteFile(path, Docx(t, FieldTemplate(dt), nil), 0o644); err != nil {
			t.Fatalf("testsupport: write template %s: %v", path, err)
		}
	}
}
