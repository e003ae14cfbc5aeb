package http_handler

import (
	"errors"
	"fmt"
	"mime"
	"strconv"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/pkg/fileext"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errMissingFileName = errors.New("missing " + headerFileName + " header")

func parseFileID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("uuid")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.InvalidQuery("http.parse_id", fmt.Errorf("invalid file id %q", raw))
	}
	return id, nil
}

// parseLength parses a non-negative byte count. An empty value is
// domain.UnknownLength.
func parseLength(name, raw string) (int64, error) {
	if raw == "" {
		return domain.UnknownLength, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, domain.InvalidQuery("http.parse_length", fmt.Errorf("invalid %s %q", name, raw))
	}
	return n, nil
}

// declaredLength prefers X-Upload-Length and falls back to Content-Length.
func declaredLength(c *fiber.Ctx) (int64, error) {
	if raw := c.Get(headerUploadLength); raw != "" {
		return parseLength(headerUploadLength, raw)
	}
	if n := c.Request().Header.ContentLength(); n >= 0 {
		return int64(n), nil
	}
	return domain.UnknownLength, nil
}

// parseHints validates the optional type_hint and ext_hint values.
func parseHints(typeHint, extHint string) (domain.DownloadHints, error) {
	const op = "http.parse_hints"

	var hints domain.DownloadHints
	if typeHint != "" {
		mediaType, params, err := mime.ParseMediaType(typeHint)
		if err != nil {
			return hints, domain.InvalidQuery(op, fmt.Errorf("invalid %s %q", domain.ParamTypeHint, typeHint))
		}
		hints.TypeHint = mime.FormatMediaType(mediaType, params)
	}
	if extHint != "" {
		ext, err := fileext.Parse(extHint)
		if err != nil {
			return hints, domain.InvalidQuery(op, err)
		}
		hints.ExtHint = ext
	}
	return hints, nil
}
