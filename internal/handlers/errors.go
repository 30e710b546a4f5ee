package handlers

import (
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"

	u "escritos/internal/utils"
)

var errorPage = pongo2.Must(pages.FromFile("templates/error.html"))

// WantsHTML reports whether an error on this request should be shown as a
// page. The JSON API and the ops endpoints always get the envelope; browser
// routes get HTML when the client prefers it over JSON.
func WantsHTML(c *fiber.Ctx) bool {
	path := c.Path()
	if strings.HasPrefix(path, "/v1") || strings.HasPrefix(path, "/ops") {
		return false
	}
	return c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML
}

// SendError answers with the error page or the {"error":{"code","message"}}
// envelope, whichever the request negotiates.
func SendError(c *fiber.Ctx, status int, message string) error {
	if !WantsHTML(c) {
		return c.Status(status).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    status,
				"message": message,
			},
		})
	}

	out, err := errorPage.Execute(pongo2.Context{"message": message})
	if err != nil {
		u.Error("Error page failed to render", "path", c.Path(), "error", err)
		out = msgFailed + message
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString(out)
}
