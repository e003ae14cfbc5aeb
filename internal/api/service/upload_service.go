package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

var (
	errBodyTooLong   = errors.New("body exceeds the permitted length")
	errSlotUsed      = errors.New("upload slot already used")
	errLengthMissing = errors.New("upload length is required")
)

// uploadService stores bodies under fresh or pre-issued ids while enforcing
// the size policy.
type uploadService struct {
	core    *FileServiceImpl
	backend port.Backend
	ids     port.IDGenerator
}

func newUploadService(core *FileServiceImpl, backend port.Backend, ids port.IDGenerator) *uploadService {
	return &uploadService{core: core, backend: backend, ids: ids}
}

// upload performs a proxy upload and returns the new id.
func (s *uploadService) upload(ctx context.Context, name string, declared int64, body io.Reader) (uuid.UUID, error) {
	const op = "upload"

	if err := s.core.checkSize(op, declared); err != nil {
		return uuid.Nil, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return uuid.Nil, domain.StorageIO(op, fmt.Errorf("generate id: %w", err))
	}

	logger.Infow("Upload started", "file_id", id, "file_name", name, "declared_bytes", declared)
	if err := s.store(ctx, op, id, name, declared, body); err != nil {
		logger.Warnw("Upload failed", "file_id", id, "kind", domain.KindOf(err).String(), "error", err.Error())
		return uuid.Nil, err
	}

	logger.Infow("Upload completed", "file_id", id)
	return id, nil
}

// storeSigned fills a slot issued by RequestUpload. Each slot accepts one body.
func (s *uploadService) storeSigned(ctx context.Context, id uuid.UUID, name string, limit int64, body io.Reader) error {
	const op = "signed_upload"

	if limit < 0 {
		return domain.InvalidQuery(op, errLengthMissing)
	}
	if err := s.core.checkSize(op, limit); err != nil {
		return err
	}

	exists, err := s.backend.Exists(ctx, id)
	if err != nil {
		return domain.AsError(err)
	}
	if exists {
		return domain.Unauthorized(op, errSlotUsed)
	}

	if err := s.store(ctx, op, id, name, limit, body); err != nil {
		logger.Warnw("Signed upload failed", "file_id", id, "kind", domain.KindOf(err).String(), "error", err.Error())
		return err
	}
	logger.Infow("Signed upload completed", "file_id", id, "file_name", name)
	return nil
}

// store caps body at the declared length, or at the size limit when the
// length is unknown, and translates what the backend reports.
func (s *uploadService) store(ctx context.Context, op string, id uuid.UUID, name string, declared int64, body io.Reader) error {
	limit := declared
	if declared == domain.UnknownLength {
		limit = s.core.maxUploadSize()
	}
	capped := &cappedReader{r: body, remaining: limit}

	err := s.backend.Write(ctx, id, name, declared, capped)
	switch {
	case capped.exceeded && declared == domain.UnknownLength:
		return domain.TooLarge(op, limit+capped.extra, limit)
	case capped.exceeded:
		return domain.ContentRead(op, fmt.Errorf("%w: declared %d bytes", errBodyTooLong, declared))
	case err != nil:
		return domain.AsError(err)
	default:
		return nil
	}
}

// cappedReader fails once more than remaining bytes are read.
type cappedReader struct {
	r         io.Reader
	remaining int64
	extra     int64
	exceeded  bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, errBodyTooLong
	}
	// Ask for one byte past the limit so an over-long body is noticed before
	// the source reports EOF.
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	if int64(n) > c.remaining {
		c.extra = int64(n) - c.remaining
		n = int(c.remaining)
		c.remaining = 0
		c.exceeded = true
		return n, errBodyTooLong
	}
	c.remaining -= int64(n)
	return n, err
}
