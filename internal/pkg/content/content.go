package content

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed content.toml
var raw string

type Site struct {
	Name         string `toml:"name"`
	Tagline      string `toml:"tagline"`
	BaseURL      string `toml:"base_url"`
	ContactEmail string `toml:"contact_email"`
}

type FAQ struct {
	Question string `toml:"question"`
	Answer   string `toml:"answer"`
}

type Section struct {
	Heading    string   `toml:"heading"`
	Paragraphs []string `toml:"paragraphs"`
}

type Post struct {
	Slug        string    `toml:"slug"`
	Title       string    `toml:"title"`
	Headline    string    `toml:"headline"`
	Description string    `toml:"description"`
	Sections    []Section `toml:"sections"`
}

type Page struct {
	Title    string    `toml:"title"`
	Updated  string    `toml:"updated"`
	Sections []Section `toml:"sections"`
}

// Content is everything the static pages render.
type Content struct {
	Site  Site            `toml:"site"`
	FAQ   []FAQ           `toml:"faq"`
	Posts []Post          `toml:"posts"`
	Pages map[string]Page `toml:"pages"`
}

var (
	ErrPostNotFound = errors.New("post not found")

	loadOnce sync.Once
	loaded   *Content
	loadErr  error
)

// Parse decodes a content document and checks slugs are unique.
func Parse(doc string) (*Content, error) {
	var c Content
	md, err := toml.Decode(doc, &c)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown content keys: %v", undecoded)
	}

	seen := make(map[string]bool, len(c.Posts))
	for _, p := range c.Posts {
		if p.Slug == "" {
			return nil, fmt.Errorf("post %q has no slug", p.Title)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate post slug %q", p.Slug)
		}
		seen[p.Slug] = true
	}
	return &c, nil
}

// Load returns the embedded content, parsed once.
func Load() (*Content, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(raw)
	})
	return loaded, loadErr
}

// Post looks up a blog post by slug.
func (c *Content) Post(slug string) (*Post, error) {
	for i := range c.Posts {
		if c.Posts[i].Slug == slug {
			return &c.Posts[i], nil
		}
	}
	return nil, ErrPostNotFound
}

// Page returns a static page by key ("terms", "privacy").
func (c *Content) Page(key string) (Page, bool) {
	p, ok := c.Pages[key]
	return p, ok
}
