package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/imagedataextract/ImageDataExtract/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, api *controllers.APIController, pages *controllers.PageController) {
	// ApiRouter goes first, HttpRouter ends with the catch-all 404 page.
	setup(app, NewApiRouter(api), NewHttpRouter(pages))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
