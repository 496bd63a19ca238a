package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/imagedataextract/ImageDataExtract/app/controllers"
)

type HttpRouter struct {
	pages *controllers.PageController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)

	// must stay last
	app.Use(h.pages.HandleNotFound)
}

func NewHttpRouter(pages *controllers.PageController) *HttpRouter {
	return &HttpRouter{pages: pages}
}
