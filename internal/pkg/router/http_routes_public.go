package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BillFox/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealthz)

	// provider callbacks are authenticated by their signature
	app.Post("/webhooks/:provider", h.deps.Billing.HandleProviderWebhook)
}
