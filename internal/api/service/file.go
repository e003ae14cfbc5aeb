package service

import (
	"context"
	"io"

	"github.com/anthanhphan/go-file-relay/internal/api/config"
	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/google/uuid"
)

// FileServiceImpl is the facade that wires use-case services for file operations.
type FileServiceImpl struct {
	cfg     *config.Config
	backend port.Backend
	issuer  port.Issuer
	ids     port.IDGenerator

	uploadUseCase   *uploadService
	downloadUseCase *downloadService
	issueUseCase    *issuanceService
}

// Ensure FileServiceImpl implements port.FileService.
var _ port.FileService = (*FileServiceImpl)(nil)

// NewFileService builds the facade. issuer may be nil in proxy mode.
func NewFileService(cfg *config.Config, backend port.Backend, issuer port.Issuer, ids port.IDGenerator) *FileServiceImpl {
	svc := &FileServiceImpl{
		cfg:     cfg,
		backend: backend,
		issuer:  issuer,
		ids:     ids,
	}

	svc.uploadUseCase = newUploadService(svc, backend, ids)
	svc.downloadUseCase = newDownloadService(backend)
	svc.issueUseCase = newIssuanceService(svc, backend, issuer, ids)

	return svc
}

func (s *FileServiceImpl) Mode() domain.Mode {
	return s.cfg.App.Mode
}

// Upload delegates proxy uploads to the upload use-case service.
func (s *FileServiceImpl) Upload(ctx context.Context, name string, declared int64, body io.Reader) (uuid.UUID, error) {
	return s.uploadUseCase.upload(ctx, name, declared, body)
}

// Download delegates to the download use-case service.
func (s *FileServiceImpl) Download(ctx context.Context, fileID uuid.UUID) (*domain.FileStream, error) {
	return s.downloadUseCase.download(ctx, fileID)
}

func (s *FileServiceImpl) FileName(ctx context.Context, fileID uuid.UUID) (string, error) {
	return s.downloadUseCase.fileName(ctx, fileID)
}

// RequestUpload mints a new id and an upload URL for it.
func (s *FileServiceImpl) RequestUpload(ctx context.Context, declared int64) (*domain.UploadHandle, error) {
	return s.issueUseCase.requestUpload(ctx, declared)
}

func (s *FileServiceImpl) RequestDownload(ctx context.Context, fileID uuid.UUID, hints domain.DownloadHints) (*domain.DownloadHandle, error) {
	return s.issueUseCase.requestDownload(ctx, fileID, hints)
}

// StoreSigned stores the body of a verified signed upload.
func (s *FileServiceImpl) StoreSigned(ctx context.Context, fileID uuid.UUID, name string, limit int64, body io.Reader) error {
	return s.uploadUseCase.storeSigned(ctx, fileID, name, limit, body)
}

// maxUploadSize returns the configured limit.
func (s *FileServiceImpl) maxUploadSize() int64 {
	return s.cfg.App.MaxUploadSize
}

// checkSize rejects a declared length over the limit before any backend call.
func (s *FileServiceImpl) checkSize(op string, declared int64) error {
	if declared > s.maxUploadSize() {
		return domain.TooLarge(op, declared, s.maxUploadSize())
	}
	return nil
}
