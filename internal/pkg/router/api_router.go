package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/imagedataextract/ImageDataExtract/app/controllers"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/middleware"
)

type ApiRouter struct {
	api *controllers.APIController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", middleware.RateLimiter())

	// Browsers upload directly from other origins (embeds, extensions)
	api.Use("/upload", cors.New(cors.Config{
		AllowOrigins: env.GetEnv("UPLOAD_ALLOWED_ORIGIN", "*"),
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	api.Post("/upload", h.api.HandleUpload)
	api.Post("/metadata", h.api.HandleMetadata)
	api.Post("/cleanup", middleware.CronAuth(middleware.CronAuthConfigFromEnv()), h.api.HandleCleanup)

	for _, path := range []string{"/upload", "/metadata", "/cleanup"} {
		api.All(path, controllers.HandleMethodNotAllowed)
	}
}

func NewApiRouter(api *controllers.APIController) *ApiRouter {
	return &ApiRouter{api: api}
}
