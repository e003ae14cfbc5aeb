package http_handler

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/anthanhphan/go-file-relay/internal/api/config"
	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/signedurl"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	headerFileName     = "X-File-Name"
	headerUploadLength = "X-Upload-Length"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	service   port.FileService
	blocklist port.Blocklist
	signer    *signedurl.Signer
}

// NewServer builds the HTTP surface for the service's mode. blocklist may be
// nil. signer enables the signed transfer endpoints used by the local backend
// in issuance mode.
func NewServer(cfg *config.Config, service port.FileService, blocklist port.Blocklist, signer *signedurl.Signer) *Server {
	s := &Server{
		cfg:       cfg,
		service:   service,
		blocklist: blocklist,
		signer:    signer,
	}

	s.app = fiber.New(fiber.Config{
		BodyLimit:             int(cfg.App.MaxUploadSize),
		StreamRequestBody:     true,
		ProxyHeader:           cfg.Server.ProxyHeader,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleFiberError,
	})

	// Middleware
	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		AllowHeaders:  "Content-Type, " + headerFileName + ", " + headerUploadLength,
		ExposeHeaders: headerFileName + ", Content-Length, Content-Disposition",
	}))

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	// Registered ahead of the blocklist so probes are never refused.
	s.app.Get("/health", s.handleHealth)

	s.app.Use(s.blocklistMiddleware)

	switch s.service.Mode() {
	case domain.ModeIssuance:
		s.app.Post("/upload", s.handleRequestUpload)
		s.app.Get("/download/:uuid", s.handleRequestDownload)
		if s.signer != nil {
			s.app.Put(domain.SignedUploadPrefix+":uuid", s.handleSignedUpload)
			s.app.Get(domain.SignedDownloadPrefix+":uuid", s.handleSignedDownload)
		}
	default:
		s.app.Post("/upload", s.handleUpload)
		s.app.Get("/download/:uuid", s.handleDownload)
		s.app.Get("/filename/:uuid", s.handleFileName)
	}
}

func (s *Server) Start() error {
	sdklogger.Infow("HTTP server listening", "addr", s.cfg.Server.Addr, "mode", string(s.service.Mode()))
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"mode":   s.service.Mode(),
	})
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// sendError writes err using its taxonomy status and client message. Only
// server-side failures are logged; client mistakes are not.
func (s *Server) sendError(c *fiber.Ctx, err error) error {
	de := domain.AsError(err)
	if de.Status() >= fiber.StatusInternalServerError {
		sdklogger.Errorw("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"kind", de.Kind.String(),
			"error", de.Error(),
		)
	}
	return s.sendJSONError(c, de.Status(), de.Message())
}

// handleFiberError covers failures raised by fiber itself, such as unknown
// routes or an oversized body.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusRequestEntityTooLarge {
			return s.sendError(c, domain.TooLarge("http", int64(c.Request().Header.ContentLength()), s.cfg.App.MaxUploadSize))
		}
		return s.sendJSONError(c, fe.Code, fe.Message)
	}
	return s.sendError(c, err)
}

// requestBody returns the streamed request body, falling back to the
// buffered one when fasthttp did not stream it.
func requestBody(c *fiber.Ctx) io.Reader {
	if stream := c.Context().RequestBodyStream(); stream != nil {
		return stream
	}
	return bytes.NewReader(c.Body())
}
