package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ManuelReschke/BillFox/app/controllers"
	"github.com/ManuelReschke/BillFox/app/repository"
	"github.com/ManuelReschke/BillFox/internal/pkg/billing"
	"github.com/ManuelReschke/BillFox/internal/pkg/cache"
	"github.com/ManuelReschke/BillFox/internal/pkg/database"
	"github.com/ManuelReschke/BillFox/internal/pkg/env"
	"github.com/ManuelReschke/BillFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/BillFox/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	settings, err := billing.NewSettingsFromEnv()
	if err != nil {
		log.Fatalf("billing settings: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := billing.NewMetrics(registry)

	gatewayCfg := billing.NewGatewayConfigFromEnv()
	gatewayCfg.Metrics = metrics
	if gatewayCfg.PayMongo.WebhookSecret == "" {
		log.Println("PAYMONGO_WEBHOOK_SECRET is empty, webhooks will be rejected")
	}
	gateways := billing.NewRegistry(gatewayCfg, billing.DefaultGatewayFactories())
	if err := gateways.Preload(); err != nil {
		log.Fatalf("payment gateways: %v", err)
	}

	svc := billing.NewService(database.GetDB(), gateways, settings,
		billing.WithJobDispatcher(jobqueue.NewQueue(cache.GetClient())),
		billing.WithMetrics(metrics),
	)
	repos := repository.NewFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/billfox to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // provider callbacks and checkout requests are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        controllers.NewBillingController(svc, repos.GetPlanRepository()),
		Metrics:        registry,
		LimiterStorage: cache.NewLimiterStorage(),
	})

	return app
}
