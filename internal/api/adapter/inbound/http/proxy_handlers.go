package http_handler

import (
	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleUpload(c *fiber.Ctx) error {
	name := c.Get(headerFileName)
	if name == "" {
		return s.sendError(c, domain.InvalidQuery("http.upload", errMissingFileName))
	}
	declared, err := declaredLength(c)
	if err != nil {
		return s.sendError(c, err)
	}

	id, err := s.service.Upload(c.Context(), name, declared, requestBody(c))
	if err != nil {
		return s.sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).SendString(id.String())
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	id, err := parseFileID(c)
	if err != nil {
		return s.sendError(c, err)
	}

	stream, err := s.service.Download(c.Context(), id)
	if err != nil {
		return s.sendError(c, err)
	}

	c.Set(headerFileName, stream.Name)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return sendStream(c, stream)
}

func (s *Server) handleFileName(c *fiber.Ctx) error {
	id, err := parseFileID(c)
	if err != nil {
		return s.sendError(c, err)
	}

	name, err := s.service.FileName(c.Context(), id)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.SendString(name)
}

// sendStream hands the body to fasthttp, which closes it after writing.
func sendStream(c *fiber.Ctx, stream *domain.FileStream) error {
	if stream.Length >= 0 {
		return c.SendStream(stream.Body, int(stream.Length))
	}
	return c.SendStream(stream.Body)
}
