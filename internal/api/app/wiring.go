package app

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-file-relay/internal/api/adapter/outbound/blocklist"
	"github.com/anthanhphan/go-file-relay/internal/api/adapter/outbound/localfs"
	"github.com/anthanhphan/go-file-relay/internal/api/adapter/outbound/miniostore"
	"github.com/anthanhphan/go-file-relay/internal/api/adapter/outbound/s3store"
	"github.com/anthanhphan/go-file-relay/internal/api/config"
	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/signedurl"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// storage is the backend chosen at startup together with what it offers
// beyond port.Backend.
type storage struct {
	backend port.Backend
	// issuer is nil in proxy mode.
	issuer  port.Issuer
	sweeper port.PartialSweeper
	// signer is set only for local issuance, which serves its own signed URLs.
	signer *signedurl.Signer
}

func newStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	issuing := cfg.App.Mode == domain.ModeIssuance

	switch cfg.Storage.Kind {
	case config.StorageLocal:
		local, err := localfs.New(localfs.Config{Dir: cfg.Storage.Local.Dir, FSync: cfg.Storage.Local.FSync})
		if err != nil {
			return nil, err
		}
		st := &storage{backend: local, sweeper: local}
		if issuing {
			signer, err := signedurl.NewSigner([]byte(cfg.Signing.Secret), cfg.Signing.PublicBaseURL)
			if err != nil {
				return nil, fmt.Errorf("create signer: %w", err)
			}
			st.signer = signer
			st.issuer = localfs.NewIssuer(signer, cfg.App.URLTTL())
		}
		return st, nil

	case config.StorageS3:
		s3cfg := cfg.Storage.S3
		store, err := s3store.New(ctx, s3store.Config{
			Region:         s3cfg.Region,
			Bucket:         s3cfg.Bucket,
			Endpoint:       s3cfg.Endpoint,
			AccessKey:      s3cfg.AccessKey,
			SecretKey:      s3cfg.SecretKey,
			ForcePathStyle: s3cfg.ForcePathStyle,
			URLTTL:         cfg.App.URLTTL(),
		})
		if err != nil {
			return nil, err
		}
		return withIssuer(store, store, issuing), nil

	case config.StorageMinIO:
		mcfg := cfg.Storage.MinIO
		store, err := miniostore.New(ctx, miniostore.Config{
			Endpoint:     mcfg.Endpoint,
			Region:       mcfg.Region,
			Bucket:       mcfg.Bucket,
			AccessKey:    mcfg.AccessKey,
			SecretKey:    mcfg.SecretKey,
			UseSSL:       mcfg.UseSSL,
			PathStyle:    mcfg.PathStyle,
			CreateBucket: mcfg.CreateBucket,
			PartSize:     mcfg.PartSize(),
			URLTTL:       cfg.App.URLTTL(),
		})
		if err != nil {
			return nil, err
		}
		return withIssuer(store, store, issuing), nil

	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
}

func withIssuer(backend port.Backend, issuer port.Issuer, issuing bool) *storage {
	st := &storage{backend: backend}
	if issuing {
		st.issuer = issuer
	}
	return st
}

// newBlocklist combines the configured addresses with the optional Redis set.
// It returns a nil blocklist when nothing is configured.
func newBlocklist(ctx context.Context, cfg *config.Config) (port.Blocklist, *redis.Client, error) {
	var chain blocklist.Chain

	if len(cfg.Blocklist.IPs) > 0 {
		static, err := blocklist.NewStatic(cfg.Blocklist.IPs)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, static)
	}

	var client *redis.Client
	if cfg.Blocklist.RedisEnabled {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnw("Redis blocklist unreachable at startup", "addr", cfg.Redis.Addr, "error", err.Error())
		}
		chain = append(chain, blocklist.NewRedis(client, cfg.Blocklist.RedisKey))
	}

	if len(chain) == 0 {
		return nil, client, nil
	}
	return chain, client, nil
}
