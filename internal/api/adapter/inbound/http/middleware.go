package http_handler

import (
	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

// blocklistMiddleware refuses clients on the blocklist. Lookup failures let
// the request through.
func (s *Server) blocklistMiddleware(c *fiber.Ctx) error {
	if s.blocklist == nil {
		return c.Next()
	}

	ip := c.IP()
	blocked, err := s.blocklist.IsBlocked(c.Context(), ip)
	if err != nil {
		sdklogger.Warnw("Blocklist lookup failed", "ip", ip, "error", err.Error())
		return c.Next()
	}
	if blocked {
		return s.sendError(c, domain.Blocked("blocklist"))
	}
	return c.Next()
}
