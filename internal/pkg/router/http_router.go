package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/BillFox/internal/pkg/env"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
	h.registerMetricsRoute(app)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}

// registerMetricsRoute exposes the Prometheus registry. Basic auth is applied
// when METRICS_USER is set.
func (h HttpRouter) registerMetricsRoute(app *fiber.App) {
	if h.deps.Metrics == nil {
		return
	}

	handlers := []fiber.Handler{}
	if user := env.GetEnv("METRICS_USER", ""); user != "" {
		handlers = append(handlers, basicauth.New(basicauth.Config{
			Users: map[string]string{
				user: env.GetEnv("METRICS_PASSWORD", ""),
			},
		}))
	}
	handlers = append(handlers, adaptor.HTTPHandler(promhttp.HandlerFor(h.deps.Metrics, promhttp.HandlerOpts{})))

	app.Get("/metrics", handlers...)
}
