package handlers

import (
	"embed"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"

	"escritos/internal/collector"
	"escritos/internal/schema"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	pages    = pongo2.NewSet("escritos", pongo2.NewFSLoader(templatesFS))
	formPage = pongo2.Must(pages.FromFile("templates/form.html"))
)

// pageState is everything the form page shows besides the schema.
type pageState struct {
	Values  map[string]string
	Missing []string
	Error   string
	Success pongo2.Context
}

func formFields(dt schema.DocumentType, values map[string]string, today string) []pongo2.Context {
	fields := make([]pongo2.Context, 0, len(dt.Fields))
	for _, f := range dt.Fields {
		value := values[f.Name]
		if f.Kind == schema.Date {
			value = htmlDateValue(value, today)
		}
		fields = append(fields, pongo2.Context{
			"name":   f.Name,
			"label":  collector.Label(f.Name),
			"widget": f.Kind.Widget(),
			"value":  value,
		})
	}
	return fields
}

// htmlDateValue converts a submitted date back to the YYYY-MM-DD form the
// date input expects. Blank dates show today.
func htmlDateValue(raw, today string) string {
	if d, err := collector.ParseDate("", raw); err == nil && !d.IsZero() {
		return d.Format(collector.HTMLDateLayout)
	}
	if raw != "" {
		return raw
	}
	return today
}

func (svc *EscritoService) renderPage(c *fiber.Ctx, status int, dt schema.DocumentType, st pageState) error {
	out, err := formPage.Execute(pongo2.Context{
		"types":    svc.Generator.Registry.Names(),
		"selected": dt.Name,
		"fields":   formFields(dt, st.Values, svc.now().Format(collector.HTMLDateLayout)),
		"missing":  st.Missing,
		"error":    st.Error,
		"success":  st.Success,
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString(out)
}
