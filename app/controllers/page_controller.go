package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/content"
)

const layoutMain = "layouts/main"

// PageController renders the static site pages from the embedded content.
type PageController struct {
	Content *content.Content
	SiteKey string
}

func NewPageController(c *content.Content, siteKey string) *PageController {
	return &PageController{Content: c, SiteKey: siteKey}
}

func (p *PageController) render(c *fiber.Ctx, view, title string, data fiber.Map) error {
	data["Site"] = p.Content.Site
	data["Title"] = title
	data["Year"] = time.Now().Year()
	data["Path"] = c.Path()
	return c.Render(view, data, layoutMain)
}

func (p *PageController) HandleIndex(c *fiber.Ctx) error {
	return p.render(c, "index", p.Content.Site.Tagline, fiber.Map{
		"SiteKey": p.SiteKey,
		"FAQ":     p.Content.FAQ,
		"Posts":   p.Content.Posts,
	})
}

func (p *PageController) HandleBlog(c *fiber.Ctx) error {
	return p.render(c, "blog", "Blog", fiber.Map{
		"Posts": p.Content.Posts,
	})
}

func (p *PageController) HandleBlogPost(c *fiber.Ctx) error {
	post, err := p.Content.Post(c.Params("slug"))
	if errors.Is(err, content.ErrPostNotFound) {
		return p.HandleNotFound(c)
	}
	if err != nil {
		return err
	}
	return p.render(c, "post", post.Title, fiber.Map{
		"Post": post,
	})
}

func (p *PageController) HandleTerms(c *fiber.Ctx) error {
	return p.renderPage(c, "terms")
}

func (p *PageController) HandlePrivacy(c *fiber.Ctx) error {
	return p.renderPage(c, "privacy")
}

func (p *PageController) renderPage(c *fiber.Ctx, key string) error {
	page, ok := p.Content.Page(key)
	if !ok {
		fiberlog.Warnf("[Pages] No content for page %q", key)
		return p.HandleNotFound(c)
	}
	return p.render(c, "page", page.Title, fiber.Map{
		"Page": page,
	})
}

// HandleNotFound is the catch-all for unknown routes.
func (p *PageController) HandleNotFound(c *fiber.Ctx) error {
	c.Status(fiber.StatusNotFound)
	return p.render(c, "404", "Page not found", fiber.Map{})
}
