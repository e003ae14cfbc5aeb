package port

import (
	"context"
	"io"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/google/uuid"
)

// FileService is the storage contract exposed to the HTTP layer.
type FileService interface {
	// Mode reports the access model chosen at startup.
	Mode() domain.Mode

	// Upload streams body into the backend and returns the new file id.
	// declared is the client-announced length or domain.UnknownLength.
	Upload(ctx context.Context, name string, declared int64, body io.Reader) (uuid.UUID, error)

	// Download opens a stored file for streaming.
	Download(ctx context.Context, fileID uuid.UUID) (*domain.FileStream, error)

	// FileName returns the original name of a stored file.
	FileName(ctx context.Context, fileID uuid.UUID) (string, error)

	// RequestUpload mints an id and a URL the client uploads declared bytes to.
	RequestUpload(ctx context.Context, declared int64) (*domain.UploadHandle, error)

	// RequestDownload returns a URL the client downloads fileID from.
	RequestDownload(ctx context.Context, fileID uuid.UUID, hints domain.DownloadHints) (*domain.DownloadHandle, error)

	// StoreSigned stores a body sent to a verified signed upload URL. limit is
	// the length the URL was signed for.
	StoreSigned(ctx context.Context, fileID uuid.UUID, name string, limit int64, body io.Reader) error
}
