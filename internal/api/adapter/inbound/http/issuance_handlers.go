package http_handler

import (
	"fmt"
	"net/url"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleRequestUpload(c *fiber.Ctx) error {
	declared, err := parseLength(headerUploadLength, c.Get(headerUploadLength))
	if err != nil {
		return s.sendError(c, err)
	}

	handle, err := s.service.RequestUpload(c.Context(), declared)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(handle)
}

func (s *Server) handleRequestDownload(c *fiber.Ctx) error {
	id, err := parseFileID(c)
	if err != nil {
		return s.sendError(c, err)
	}
	hints, err := parseHints(c.Query(domain.ParamTypeHint), c.Query(domain.ParamExtHint))
	if err != nil {
		return s.sendError(c, err)
	}

	handle, err := s.service.RequestDownload(c.Context(), id, hints)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(handle)
}

// handleSignedUpload stores a body sent to a URL minted by the local issuer.
func (s *Server) handleSignedUpload(c *fiber.Ctx) error {
	query, err := s.verifySigned(c)
	if err != nil {
		return s.sendError(c, err)
	}
	id, err := parseFileID(c)
	if err != nil {
		return s.sendError(c, err)
	}
	limit, err := parseLength(domain.ParamLength, query.Get(domain.ParamLength))
	if err != nil {
		return s.sendError(c, err)
	}

	if err := s.service.StoreSigned(c.Context(), id, c.Get(headerFileName), limit, requestBody(c)); err != nil {
		return s.sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).SendString(id.String())
}

// handleSignedDownload streams a file through a URL minted by the local
// issuer, applying the signed hints to the response headers.
func (s *Server) handleSignedDownload(c *fiber.Ctx) error {
	query, err := s.verifySigned(c)
	if err != nil {
		return s.sendError(c, err)
	}
	id, err := parseFileID(c)
	if err != nil {
		return s.sendError(c, err)
	}
	hints, err := parseHints(query.Get(domain.ParamTypeHint), query.Get(domain.ParamExtHint))
	if err != nil {
		return s.sendError(c, err)
	}

	stream, err := s.service.Download(c.Context(), id)
	if err != nil {
		return s.sendError(c, err)
	}

	contentType := hints.TypeHint
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", domain.AttachmentName(id, hints.ExtHint)))
	c.Set(headerFileName, stream.Name)
	return sendStream(c, stream)
}

func (s *Server) verifySigned(c *fiber.Ctx) (url.Values, error) {
	const op = "http.verify_signature"

	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return nil, domain.Unauthorized(op, err)
	}
	if err := s.signer.Verify(c.Path(), query); err != nil {
		return nil, domain.Unauthorized(op, err)
	}
	return query, nil
}
