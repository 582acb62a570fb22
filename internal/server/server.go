// Package server assembles the HTTP application from its dependencies.
package server

import (
	"strings"

	"marketplace/internal/handlers"
	"marketplace/internal/middleware"
	"marketplace/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// DefaultBodyLimit caps request bodies, image uploads included.
const DefaultBodyLimit = 10 * 1024 * 1024

// Deps holds what the application needs to serve requests.
type Deps struct {
	AuthService    *services.AuthService
	ProductService *services.ProductService

	// CORSOrigins is a comma separated list; empty allows every origin.
	CORSOrigins string
	// BodyLimit in bytes; zero selects DefaultBodyLimit.
	BodyLimit int
	// RequestLog enables the access log middleware.
	RequestLog bool
}

// New builds the Fiber app with every route mounted under /api.
func New(deps Deps) *fiber.App {
	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:      "marketplace",
		BodyLimit:    bodyLimit,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	if deps.RequestLog {
		app.Use(logger.New())
	}
	origins := strings.TrimSpace(deps.CORSOrigins)
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	auth := middleware.AuthRequired(deps.AuthService)

	api := app.Group("/api")
	api.Get("/health", handlers.HandleHealth)

	handlers.NewAuthHandler(deps.AuthService).RegisterRoutes(api)
	handlers.NewProductHandler(deps.ProductService).RegisterRoutes(api, auth)
	handlers.NewUserHandler(deps.AuthService, deps.ProductService).RegisterRoutes(api, auth)

	return app
}
