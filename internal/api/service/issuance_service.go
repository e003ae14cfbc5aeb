package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

var errNoIssuer = errors.New("no URL issuer configured")

// issuanceService hands out direct-transfer URLs instead of moving bytes.
type issuanceService struct {
	core    *FileServiceImpl
	backend port.Backend
	issuer  port.Issuer
	ids     port.IDGenerator
}

func newIssuanceService(core *FileServiceImpl, backend port.Backend, issuer port.Issuer, ids port.IDGenerator) *issuanceService {
	return &issuanceService{core: core, backend: backend, issuer: issuer, ids: ids}
}

func (s *issuanceService) requestUpload(ctx context.Context, declared int64) (*domain.UploadHandle, error) {
	const op = "request_upload"

	if s.issuer == nil {
		return nil, domain.Access(op, errNoIssuer)
	}
	if declared < 0 {
		return nil, domain.InvalidQuery(op, errLengthMissing)
	}
	if err := s.core.checkSize(op, declared); err != nil {
		return nil, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, domain.StorageIO(op, fmt.Errorf("generate id: %w", err))
	}

	url, err := s.issuer.UploadURL(ctx, id, declared)
	if err != nil {
		return nil, asAccessError(op, err)
	}

	logger.Infow("Upload URL issued", "file_id", id, "declared_bytes", declared)
	return &domain.UploadHandle{URL: url, UUID: id}, nil
}

// requestDownload checks that id exists before issuing, so unknown ids fail
// here rather than at the storage provider.
func (s *issuanceService) requestDownload(ctx context.Context, id uuid.UUID, hints domain.DownloadHints) (*domain.DownloadHandle, error) {
	const op = "request_download"

	if s.issuer == nil {
		return nil, domain.Access(op, errNoIssuer)
	}

	exists, err := s.backend.Exists(ctx, id)
	if err != nil {
		return nil, domain.AsError(err)
	}
	if !exists {
		return nil, domain.NotFound(op, fmt.Errorf("file %s", id))
	}

	url, err := s.issuer.DownloadURL(ctx, id, hints)
	if err != nil {
		return nil, asAccessError(op, err)
	}
	return &domain.DownloadHandle{URL: url}, nil
}

func asAccessError(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Access(op, err)
}
