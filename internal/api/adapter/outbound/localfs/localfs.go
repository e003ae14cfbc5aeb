package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/framing"
	"github.com/anthanhphan/go-file-relay/pkg/iox"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

const (
	// PartialPrefix marks files still being written. They are never served.
	PartialPrefix = ".partial-"

	dirPerm  = 0o750
	filePerm = 0o640
)

// ErrExists means another write already published the id.
var ErrExists = errors.New("localfs: file already exists")

// Config configures the local backend.
type Config struct {
	Dir   string
	FSync bool
}

// Storage keeps one framed file per id in a flat directory.
type Storage struct {
	dir   string
	fsync bool
}

var (
	_ port.Backend        = (*Storage)(nil)
	_ port.PartialSweeper = (*Storage)(nil)
)

// New returns a Storage rooted at cfg.Dir. The directory is created on first
// write.
func New(cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("localfs: directory is required")
	}
	return &Storage{dir: filepath.Clean(cfg.Dir), fsync: cfg.FSync}, nil
}

func (s *Storage) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String())
}

// Write stores the envelope under a partial name and links it into place once
// complete. An existing id is never replaced.
func (s *Storage) Write(ctx context.Context, id uuid.UUID, name string, length int64, content io.Reader) error {
	const op = "localfs.write"

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return domain.StorageIO(op, fmt.Errorf("create directory: %w", err))
	}

	tmp, err := os.CreateTemp(s.dir, PartialPrefix+id.String()+"-*")
	if err != nil {
		return domain.StorageIO(op, fmt.Errorf("create partial file: %w", err))
	}
	tmpPath := tmp.Name()
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warnw("Failed to remove partial file", "path", tmpPath, "error", rmErr.Error())
		}
	}()

	src := iox.NewTrackedReader(ctx, content)
	written, copyErr := io.Copy(tmp, framing.Encode(name, src))
	if copyErr == nil && s.fsync {
		copyErr = tmp.Sync()
	}
	if closeErr := tmp.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if src.Err() != nil {
			return domain.ContentRead(op, src.Err())
		}
		return domain.StorageIO(op, fmt.Errorf("write %s: %w", id, copyErr))
	}

	if length != domain.UnknownLength && written != framing.EncodedLength(name, length) {
		return domain.ContentRead(op, fmt.Errorf("body length mismatch: declared %d bytes, stored %d", length, written-framing.HeaderLength(name)))
	}

	if err := os.Link(tmpPath, s.path(id)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.Unauthorized(op, fmt.Errorf("%w: %s", ErrExists, id))
		}
		return domain.StorageIO(op, fmt.Errorf("publish %s: %w", id, err))
	}
	return nil
}

// Read opens id and positions the body at the start of the content.
func (s *Storage) Read(ctx context.Context, id uuid.UUID) (*domain.FileStream, error) {
	const op = "localfs.read"

	if err := ctx.Err(); err != nil {
		return nil, domain.StorageIO(op, err)
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NotFound(op, err)
		}
		return nil, domain.StorageIO(op, err)
	}

	stream, err := openStream(op, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return stream, nil
}

func openStream(op string, f *os.File) (*domain.FileStream, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, domain.StorageIO(op, err)
	}

	name, headerSize, err := framing.ReadHeader(f)
	if err != nil {
		if framing.IsMalformed(err) {
			return nil, domain.Corrupted(op, err)
		}
		return nil, domain.StorageIO(op, err)
	}
	if headerSize > info.Size() {
		return nil, domain.Corrupted(op, fmt.Errorf("header of %d bytes exceeds file size %d", headerSize, info.Size()))
	}

	return &domain.FileStream{
		Name:   name,
		Length: info.Size() - headerSize,
		Body:   f,
	}, nil
}

func (s *Storage) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "localfs.exists"

	if err := ctx.Err(); err != nil {
		return false, domain.StorageIO(op, err)
	}
	_, err := os.Stat(s.path(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, domain.StorageIO(op, err)
	}
}

// SweepPartials removes partial files whose last write is older than olderThan.
func (s *Storage) SweepPartials(ctx context.Context, olderThan time.Duration) (int, int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, domain.StorageIO("localfs.sweep", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var removed int
	var reclaimed int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, reclaimed, ctx.Err()
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), PartialPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			logger.Warnw("Failed to sweep partial file", "name", entry.Name(), "error", err.Error())
			continue
		}
		removed++
		reclaimed += info.Size()
	}
	return removed, reclaimed, nil
}
