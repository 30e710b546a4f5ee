package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"

	"escritos/internal/collector"
	"escritos/internal/schema"
)

// PDFText builds the flat text copy of a submission: a header naming the
// document type, the date, then one "<Label>: <value>" line per field.
func PDFText(dt schema.DocumentType, values map[string]string, fecha string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ESCRITO: %s\n\n", dt.Name)
	fmt.Fprintf(&b, "Fecha: %s\n\n", fecha)
	for _, f := range dt.Fields {
		fmt.Fprintf(&b, "%s: %s\n", collector.Label(f.Name), values[f.Name])
	}
	return b.String()
}

// UnsupportedTextError reports characters the core PDF fonts cannot draw.
type UnsupportedTextError struct {
	Chars []rune
}

func (e *UnsupportedTextError) Error() string {
	quoted := make([]string, len(e.Chars))
	for i, r := range e.Chars {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	return "characters not representable in cp1252: " + strings.Join(quoted, ", ")
}

// encodeCP1252 converts text to the single-byte encoding of the core fonts.
// Any rune outside cp1252 fails the whole text instead of being replaced.
func encodeCP1252(text string) (string, error) {
	var (
		out  = make([]byte, 0, len(text))
		bad  []rune
		seen = map[rune]bool{}
	)
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			if !seen[r] {
				seen[r] = true
				bad = append(bad, r)
			}
			continue
		}
		out = append(out, b)
	}
	if len(bad) > 0 {
		return "", &UnsupportedTextError{Chars: bad}
	}
	return string(out), nil
}

// RenderPDF lays text out on A4 pages with the core Arial font, wrapping long
// lines, and writes the document to w. Text outside cp1252 is rejected with
// an *UnsupportedTextError.
func RenderPDF(w io.Writer, title, text string) error {
	encoded, err := encodeCP1252(text)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("escritos", true)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, encoded, "", "L", false)

	if pdf.Err() {
		return fmt.Errorf("pdf layout: %w", pdf.Error())
	}
	return pdf.Output(w)
}
