package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ManuelReschke/BillFox/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are built once in main and shared by all routers.
type Dependencies struct {
	Billing *controllers.BillingController
	// Metrics is served on /metrics. Nil disables the endpoint.
	Metrics *prometheus.Registry
	// LimiterStorage backs the API rate limiter. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
