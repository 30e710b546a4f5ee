package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"escritos/internal/collector"
	"escritos/internal/escritos"
	"escritos/internal/output"
	u "escritos/internal/utils"
)

// CreateRequest is the JSON body of POST /v1/escritos.
type CreateRequest struct {
	Tipo   string            `json:"tipo"`
	Campos map[string]string `json:"campos"`
}

type fieldView struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Widget string `json:"widget"`
}

type typeView struct {
	Name     string      `json:"name"`
	Template string      `json:"template"`
	Fields   []fieldView `json:"fields"`
}

type fileView struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
}

type createResponse struct {
	Type        string            `json:"tipo"`
	Identifier  string            `json:"identifier"`
	Folder      string            `json:"folder"`
	GeneratedAt time.Time         `json:"generated_at"`
	Values      map[string]string `json:"campos"`
	Document    fileView          `json:"docx"`
	PDF         fileView          `json:"pdf"`
}

func newFileView(a output.Artifact, id string) fileView {
	return fileView{Filename: a.Filename, URL: downloadURL(id)}
}

// HandleTypes lists every document type with its ordered fields.
func (svc *EscritoService) HandleTypes(c *fiber.Ctx) error {
	all := svc.Generator.Registry.All()
	types := make([]typeView, 0, len(all))
	for _, dt := range all {
		tv := typeView{Name: dt.Name, Template: dt.Template, Fields: make([]fieldView, 0, len(dt.Fields))}
		for _, f := range dt.Fields {
			tv.Fields = append(tv.Fields, fieldView{
				Name:   f.Name,
				Label:  collector.Label(f.Name),
				Kind:   string(f.Kind),
				Widget: f.Kind.Widget(),
			})
		}
		types = append(types, tv)
	}
	return c.JSON(fiber.Map{"types": types})
}

// HandleCreate generates an escrito from a JSON body.
func (svc *EscritoService) HandleCreate(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	if strings.TrimSpace(req.Tipo) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing 'tipo'")
	}

	src := collector.MapSource(req.Campos, svc.Config.Limits.MaxFieldBytes)
	res, err := svc.Generator.Generate(c.UserContext(), escritos.Submission{Type: req.Tipo, Source: src})
	if err != nil {
		status := statusFor(err)
		var missing *collector.MissingFieldsError
		if errors.As(err, &missing) {
			labels := missing.Labels()
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    status,
					"message": msgMissing + strings.Join(labels, ", "),
					"missing": labels,
				},
			})
		}
		if status == fiber.StatusInternalServerError {
			u.Error("Escrito generation failed", "type", req.Tipo, "error", err)
			return fiber.NewError(status, msgFailed+err.Error())
		}
		return fiber.NewError(status, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(createResponse{
		Type:        res.Type,
		Identifier:  res.Identifier,
		Folder:      res.Folder,
		GeneratedAt: res.GeneratedAt,
		Values:      res.Values,
		Document:    newFileView(res.Document, res.DocumentID),
		PDF:         newFileView(res.PDF, res.PDFID),
	})
}
