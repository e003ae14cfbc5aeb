package port

import (
	"context"
	"io"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=../service/mocks/backend_mock.go -package=mocks -source=backend.go

// Backend stores framed files keyed by id. Errors are *domain.Error values.
type Backend interface {
	// Write stores content under id together with name. length is the declared
	// content length or domain.UnknownLength. On error nothing is published
	// under id.
	Write(ctx context.Context, id uuid.UUID, name string, length int64, content io.Reader) error

	// Read opens the file stored under id. The caller closes the body.
	Read(ctx context.Context, id uuid.UUID) (*domain.FileStream, error)

	// Exists reports whether id has been stored.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Issuer mints time-limited URLs for direct transfers.
type Issuer interface {
	// UploadURL authorizes writing length bytes to id's slot.
	UploadURL(ctx context.Context, id uuid.UUID, length int64) (string, error)

	// DownloadURL authorizes reading id, applying hints to the response where
	// the backend supports it.
	DownloadURL(ctx context.Context, id uuid.UUID, hints domain.DownloadHints) (string, error)
}

// PartialSweeper is implemented by backends that can leave abandoned partial
// writes behind.
type PartialSweeper interface {
	// SweepPartials removes partial writes older than olderThan and reports how
	// many files and bytes were reclaimed.
	SweepPartials(ctx context.Context, olderThan time.Duration) (int, int64, error)
}
