package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/", h.pages.HandleIndex)

	// Blog
	app.Get("/blog", h.pages.HandleBlog)
	app.Get("/blog/:slug", h.pages.HandleBlogPost)

	// Legal
	app.Get("/terms", h.pages.HandleTerms)
	app.Get("/privacy", h.pages.HandlePrivacy)
}
