package httpapi

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed static/index.html
var dashboardHTML []byte

// RegisterDashboard serves the single-page dashboard at the site root.
func RegisterDashboard(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(dashboardHTML)
	})
}
