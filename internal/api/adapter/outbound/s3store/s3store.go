package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/framing"
	"github.com/anthanhphan/go-file-relay/pkg/iox"
	"github.com/anthanhphan/go-file-relay/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ErrLengthRequired is returned by Write when the content length is unknown.
var ErrLengthRequired = errors.New("s3store: upload length is required")

const contentType = "application/octet-stream"

type Config struct {
	Region         string
	Bucket         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	URLTTL         time.Duration
}

// Storage keeps framed files as S3 objects named by id and presigns direct
// transfers.
type Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

var (
	_ port.Backend = (*Storage)(nil)
	_ port.Issuer  = (*Storage)(nil)
)

// New builds an S3 client from the default AWS chain, overridden by any
// explicit credentials and endpoint in cfg.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return NewWithClient(client, cfg.Bucket, cfg.URLTTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, bucket string, ttl time.Duration) *Storage {
	return &Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "s3:" + bucket,
			IsFailure: domain.IsBackendFailure,
		}),
	}
}

func (s *Storage) key(id uuid.UUID) *string {
	return aws.String(id.String())
}

// Write uploads the envelope in a single PutObject. S3 needs the size up
// front, so length must be known.
func (s *Storage) Write(ctx context.Context, id uuid.UUID, name string, length int64, content io.Reader) error {
	const op = "s3.write"

	if length < 0 {
		return domain.ContentRead(op, ErrLengthRequired)
	}

	src := iox.NewTrackedReader(ctx, iox.RequireLength(content, length))
	return s.do(ctx, op, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           s.key(id),
			Body:          framing.Encode(name, src),
			ContentLength: aws.Int64(framing.EncodedLength(name, length)),
			ContentType:   aws.String(contentType),
		}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
		if src.Err() != nil {
			if err == nil {
				// The SDK stopped at the declared length and stored a
				// truncated body.
				s.discard(ctx, id)
			}
			return domain.ContentRead(op, src.Err())
		}
		return classify(op, err)
	})
}

// discard removes an object written from a rejected body.
func (s *Storage) discard(ctx context.Context, id uuid.UUID) {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(id),
	})
	if err != nil {
		logger.Warnw("Failed to remove rejected object", "bucket", s.bucket, "key", id.String(), "error", err.Error())
	}
}

func (s *Storage) Read(ctx context.Context, id uuid.UUID) (*domain.FileStream, error) {
	const op = "s3.read"

	var out *s3.GetObjectOutput
	err := s.do(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    s.key(id),
		})
		return classify(op, err)
	})
	if err != nil {
		return nil, err
	}

	name, rest, err := framing.Decode(out.Body)
	if err != nil {
		_ = out.Body.Close()
		if framing.IsMalformed(err) {
			return nil, domain.Corrupted(op, err)
		}
		return nil, domain.StorageIO(op, err)
	}

	return &domain.FileStream{
		Name:   name,
		Length: contentLength(out.ContentLength, name),
		Body:   iox.WithCloser(rest, out.Body),
	}, nil
}

func (s *Storage) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "s3.exists"

	err := s.do(ctx, op, func(ctx context.Context) error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    s.key(id),
		})
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

// UploadURL presigns a PUT of exactly length bytes. Objects uploaded this way
// hold raw content without an envelope.
func (s *Storage) UploadURL(ctx context.Context, id uuid.UUID, length int64) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.key(id),
		ContentLength: aws.Int64(length),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", domain.Access("s3.upload_url", err)
	}
	return req.URL, nil
}

// DownloadURL presigns a GET whose response headers follow hints.
func (s *Storage) DownloadURL(ctx context.Context, id uuid.UUID, hints domain.DownloadHints) (string, error) {
	in := &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        s.key(id),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", domain.AttachmentName(id, hints.ExtHint))),
	}
	if hints.TypeHint != "" {
		in.ResponseContentType = aws.String(hints.TypeHint)
	}

	req, err := s.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", domain.Access("s3.download_url", err)
	}
	return req.URL, nil
}

// do runs fn through the breaker and makes sure the result is a *domain.Error.
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

func contentLength(total *int64, name string) int64 {
	if total == nil || *total < framing.HeaderLength(name) {
		return domain.UnknownLength
	}
	return *total - framing.HeaderLength(name)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return domain.NotFound(op, err)
	}
	return domain.StorageIO(op, err)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		default:
			return false
		}
	}

	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
