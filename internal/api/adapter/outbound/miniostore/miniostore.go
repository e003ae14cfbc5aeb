package miniostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/framing"
	"github.com/anthanhphan/go-file-relay/pkg/iox"
	"github.com/anthanhphan/go-file-relay/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	contentType = "application/octet-stream"

	// DefaultPartSize bounds the memory used per upload of unknown length.
	DefaultPartSize = 16 << 20
)

type Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	PathStyle    bool
	CreateBucket bool
	PartSize     uint64
	URLTTL       time.Duration
}

// Storage keeps framed files as objects in a MinIO (or other S3-compatible)
// bucket. Unlike the S3 backend it accepts uploads of unknown length.
type Storage struct {
	client   *minio.Client
	bucket   string
	partSize uint64
	ttl      time.Duration
	breaker  *resilience.CircuitBreaker
}

var (
	_ port.Backend = (*Storage)(nil)
	_ port.Issuer  = (*Storage)(nil)
)

// New connects to cfg.Endpoint and, if asked to, creates the bucket.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("miniostore: create client: %w", err)
	}

	if cfg.CreateBucket {
		if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
			return nil, err
		}
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client using the bucket, part size and TTL
// from cfg.
func NewWithClient(client *minio.Client, cfg Config) *Storage {
	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	return &Storage{
		client:   client,
		bucket:   cfg.Bucket,
		partSize: partSize,
		ttl:      cfg.URLTTL,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "minio:" + cfg.Bucket,
			IsFailure: domain.IsBackendFailure,
		}),
	}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("miniostore: check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("miniostore: create bucket %q: %w", bucket, err)
	}
	logger.Infow("Created storage bucket", "bucket", bucket)
	return nil
}

func (s *Storage) Write(ctx context.Context, id uuid.UUID, name string, length int64, content io.Reader) error {
	const op = "minio.write"

	body := content
	if length >= 0 {
		body = iox.RequireLength(content, length)
	}
	src := iox.NewTrackedReader(ctx, body)

	return s.do(ctx, op, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, id.String(), framing.Encode(name, src), framing.EncodedLength(name, length), minio.PutObjectOptions{
			ContentType: contentType,
			PartSize:    s.partSize,
		})
		if src.Err() != nil {
			if err == nil {
				s.discard(ctx, id)
			}
			return domain.ContentRead(op, src.Err())
		}
		return classify(op, err)
	})
}

// discard removes an object written from a rejected body.
func (s *Storage) discard(ctx context.Context, id uuid.UUID) {
	if err := s.client.RemoveObject(ctx, s.bucket, id.String(), minio.RemoveObjectOptions{}); err != nil {
		logger.Warnw("Failed to remove rejected object", "bucket", s.bucket, "key", id.String(), "error", err.Error())
	}
}

// Read stats the object first so a missing id fails before any body is
// returned.
func (s *Storage) Read(ctx context.Context, id uuid.UUID) (*domain.FileStream, error) {
	const op = "minio.read"

	var (
		obj  *minio.Object
		info minio.ObjectInfo
	)
	err := s.do(ctx, op, func(ctx context.Context) error {
		var err error
		obj, err = s.client.GetObject(ctx, s.bucket, id.String(), minio.GetObjectOptions{})
		if err != nil {
			return classify(op, err)
		}
		info, err = obj.Stat()
		if err != nil {
			_ = obj.Close()
			return classify(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	name, rest, err := framing.Decode(obj)
	if err != nil {
		_ = obj.Close()
		if framing.IsMalformed(err) {
			return nil, domain.Corrupted(op, err)
		}
		return nil, domain.StorageIO(op, err)
	}

	length := domain.UnknownLength
	if info.Size >= framing.HeaderLength(name) {
		length = info.Size - framing.HeaderLength(name)
	}
	return &domain.FileStream{
		Name:   name,
		Length: length,
		Body:   iox.WithCloser(rest, obj),
	}, nil
}

func (s *Storage) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "minio.exists"

	err := s.do(ctx, op, func(ctx context.Context) error {
		_, err := s.client.StatObject(ctx, s.bucket, id.String(), minio.StatObjectOptions{})
		return classify(op, err)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// UploadURL presigns a PUT for an object of length bytes.
func (s *Storage) UploadURL(ctx context.Context, id uuid.UUID, length int64) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Length", strconv.FormatInt(length, 10))

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, id.String(), s.ttl, nil, headers)
	if err != nil {
		return "", domain.Access("minio.upload_url", err)
	}
	return u.String(), nil
}

func (s *Storage) DownloadURL(ctx context.Context, id uuid.UUID, hints domain.DownloadHints) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", domain.AttachmentName(id, hints.ExtHint)))
	if hints.TypeHint != "" {
		params.Set("response-content-type", hints.TypeHint)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, id.String(), s.ttl, params)
	if err != nil {
		return "", domain.Access("minio.download_url", err)
	}
	return u.String(), nil
}

func (s *Storage) do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.breaker.Execute(ctx, fn)
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.StorageIO(op, err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return domain.NotFound(op, err)
	}
	return domain.StorageIO(op, err)
}
