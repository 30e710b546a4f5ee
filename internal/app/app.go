package app

import (
	"escritos/internal/escritos"
	"escritos/internal/handlers"
	u "escritos/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
)

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, gen *escritos.Generator) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
			return handlers.SendError(c, code, msg)
		},
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, cfg, gen)

	// Unmatched routes go through the ErrorHandler too: JSON for the API,
	// the error page for browsers.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, cfg u.Config, gen *escritos.Generator) {
	// One service for the form and the API so both share the generator lock.
	svc := handlers.NewEscritoService(cfg, gen)

	app.Get("/", svc.HandleForm)
	app.Post("/escritos", svc.HandleSubmit)
	app.Get("/descargas/:id", svc.HandleDownload)

	v1 := app.Group("/v1")
	v1.Get("/types", svc.HandleTypes)
	v1.Post("/escritos", svc.HandleCreate)

	v1.Get("/monitor", monitor.New())
}

