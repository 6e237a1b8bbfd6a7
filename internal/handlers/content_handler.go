package handlers

import (
	"bytes"
	"errors"

	"clubsite/internal/content"

	"github.com/gofiber/fiber/v2"
)

// ContentHandler serves the page shell, section fragments and welcome page.
type ContentHandler struct {
	renderer    *content.Renderer
	welcomePath string
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(renderer *content.Renderer, welcomePath string) *ContentHandler {
	if welcomePath == "" {
		welcomePath = "/welcome.html"
	}
	return &ContentHandler{
		renderer:    renderer,
		welcomePath: welcomePath,
	}
}

// RegisterRoutes registers the content routes with the Fiber app.
func (h *ContentHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandlePage)
	router.Get("/sections/:name", h.HandleSection)
	router.Get(h.welcomePath, h.HandleWelcome)
}

// HandlePage renders the full page with the default section.
func (h *ContentHandler) HandlePage(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.renderer.RenderPage(&buf, content.DefaultSection); err != nil {
		return err
	}
	return sendHTML(c, buf.Bytes())
}

// HandleSection renders one section fragment by name.
func (h *ContentHandler) HandleSection(c *fiber.Ctx) error {
	section, err := content.ParseSection(c.Params("name"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Section not found")
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderSection(&buf, section); err != nil {
		if errors.Is(err, content.ErrUnknownSection) {
			return fiber.NewError(fiber.StatusNotFound, "Section not found")
		}
		return err
	}
	return sendHTML(c, buf.Bytes())
}

// HandleWelcome renders the post-login landing page.
func (h *ContentHandler) HandleWelcome(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.renderer.RenderWelcome(&buf); err != nil {
		return err
	}
	return sendHTML(c, buf.Bytes())
}

func sendHTML(c *fiber.Ctx, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(body)
}
