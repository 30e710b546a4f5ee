package handlers

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"

	"escritos/internal/artifacts"
	"escritos/internal/collector"
	"escritos/internal/escritos"
	"escritos/internal/schema"
	u "escritos/internal/utils"
)

const (
	msgMissing = "Por favor completa los siguientes campos: "
	msgFailed  = "Error al generar el escrito: "
)

// EscritoService serves the form, the JSON API and the downloads.
type EscritoService struct {
	Config    *u.Config
	Generator *escritos.Generator
}

// NewEscritoService creates a new EscritoService instance.
func NewEscritoService(cfg u.Config, gen *escritos.Generator) *EscritoService {
	return &EscritoService{
		Config:    &cfg,
		Generator: gen,
	}
}

func (svc *EscritoService) now() time.Time {
	if svc.Generator.Now != nil {
		return svc.Generator.Now()
	}
	return time.Now()
}

// formSource reads fields from the request body. Values are copied because
// fiber reuses its buffers once the handler returns.
func (svc *EscritoService) formSource(c *fiber.Ctx) collector.FormSource {
	return collector.FormSource{
		Get:      func(key string) string { return strings.Clone(c.FormValue(key)) },
		MaxBytes: svc.Config.Limits.MaxFieldBytes,
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		missing *collector.MissingFieldsError
		badDate *collector.InvalidDateError
		tooLong *collector.FieldTooLongError
	)
	switch {
	case errors.Is(err, schema.ErrUnknownDocumentType):
		return fiber.StatusNotFound
	case errors.As(err, &missing):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &badDate):
		return fiber.StatusBadRequest
	case errors.As(err, &tooLong):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func downloadURL(id string) string {
	if id == "" {
		return ""
	}
	return "/descargas/" + id
}

// HandleForm renders the form for ?tipo= or the first document type.
func (svc *EscritoService) HandleForm(c *fiber.Ctx) error {
	name := c.Query("tipo")
	if name == "" {
		name = svc.Generator.Registry.Names()[0]
	}
	dt, err := svc.Generator.Registry.Lookup(name)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return svc.renderPage(c, fiber.StatusOK, dt, pageState{})
}

// HandleSubmit generates the escrito posted from the form and re-renders the
// page with the outcome.
func (svc *EscritoService) HandleSubmit(c *fiber.Ctx) error {
	name := strings.Clone(c.FormValue("tipo"))
	dt, err := svc.Generator.Registry.Lookup(name)
	if err != nil {
		// Fall back to the default form so the user can pick a valid type.
		fallback, _ := svc.Generator.Registry.Lookup(svc.Generator.Registry.Names()[0])
		return svc.renderPage(c, fiber.StatusNotFound, fallback, pageState{Error: err.Error()})
	}

	src := svc.formSource(c)
	res, err := svc.Generator.Generate(c.UserContext(), escritos.Submission{Type: dt.Name, Source: src})
	if err == nil {
		u.Info("Escrito ready", "type", res.Type, "folder", res.Folder, "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return svc.renderPage(c, fiber.StatusOK, dt, pageState{
			Success: pongo2.Context{
				"folder":       res.Folder,
				"document_url": downloadURL(res.DocumentID),
				"pdf_url":      downloadURL(res.PDFID),
			},
		})
	}

	entered := make(map[string]string, len(dt.Fields))
	for _, f := range dt.Fields {
		entered[f.Name] = strings.Clone(c.FormValue(f.Name))
	}
	status := statusFor(err)

	var missing *collector.MissingFieldsError
	if errors.As(err, &missing) {
		return svc.renderPage(c, status, dt, pageState{Values: entered, Missing: missing.Labels()})
	}
	if status == fiber.StatusInternalServerError {
		u.Error("Escrito generation failed", "type", dt.Name, "error", err)
	}
	return svc.renderPage(c, status, dt, pageState{Values: entered, Error: err.Error()})
}

// HandleDownload streams a generated file registered under :id.
func (svc *EscritoService) HandleDownload(c *fiber.Ctx) error {
	store := svc.Generator.Artifacts
	if store == nil {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	}
	rec, err := store.Lookup(c.UserContext(), c.Params("id"))
	if errors.Is(err, artifacts.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Download link expired or unknown")
	}
	if err != nil {
		u.Error("Artifact lookup failed", "id", c.Params("id"), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Artifact lookup failed")
	}

	data, err := os.ReadFile(rec.Path)
	if errors.Is(err, os.ErrNotExist) {
		return fiber.NewError(fiber.StatusGone, "File no longer available")
	}
	if err != nil {
		u.Error("Artifact read failed", "path", rec.Path, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Artifact read failed")
	}

	c.Attachment(rec.Filename)
	c.Set(fiber.HeaderContentType, rec.ContentType())
	return c.Send(data)
}
