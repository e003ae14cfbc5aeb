package service

import (
	"context"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

// downloadService opens stored files for proxy downloads.
type downloadService struct {
	backend port.Backend
}

func newDownloadService(backend port.Backend) *downloadService {
	return &downloadService{backend: backend}
}

func (s *downloadService) download(ctx context.Context, id uuid.UUID) (*domain.FileStream, error) {
	stream, err := s.backend.Read(ctx, id)
	if err != nil {
		return nil, domain.AsError(err)
	}
	logger.Debugw("Download opened", "file_id", id, "file_name", stream.Name, "length", stream.Length)
	return stream, nil
}

// fileName reads only the envelope header of id.
func (s *downloadService) fileName(ctx context.Context, id uuid.UUID) (string, error) {
	stream, err := s.backend.Read(ctx, id)
	if err != nil {
		return "", domain.AsError(err)
	}
	_ = stream.Body.Close()
	return stream.Name, nil
}
