package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	httpHandler "github.com/anthanhphan/go-file-relay/internal/api/adapter/inbound/http"
	"github.com/anthanhphan/go-file-relay/internal/api/config"
	"github.com/anthanhphan/go-file-relay/internal/api/service"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg     *config.Config
	server  *httpHandler.Server
	janitor *service.Janitor
	redis   *redis.Client
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Storage backend and URL issuer
	ctx := context.Background()
	st, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 4. Blocklist
	bl, redisClient, err := newBlocklist(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init blocklist: %w", err)
	}

	// 5. Services
	svc := service.NewFileService(cfg, st.backend, st.issuer, service.RandomIDGenerator{})

	var janitor *service.Janitor
	if st.sweeper != nil && cfg.App.JanitorInterval() > 0 {
		janitor = service.NewJanitor(st.sweeper, cfg.App.JanitorInterval(), cfg.App.PartialMaxAge())
	}

	// 6. HTTP Server
	httpServer := httpHandler.NewServer(cfg, svc, bl, st.signer)

	logger.Infow("Relay configured",
		"mode", string(cfg.App.Mode),
		"storage", cfg.Storage.Kind,
		"max_upload_size", cfg.App.MaxUploadSize,
	)

	return &App{
		cfg:     cfg,
		server:  httpServer,
		janitor: janitor,
		redis:   redisClient,
	}, nil
}

func (a *App) Run() error {
	if a.janitor != nil {
		go a.janitor.Start(context.Background())
	}

	// Start HTTP
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Relay server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down relay")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		logger.Errorw("HTTP shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warnw("Redis close error", "error", err.Error())
		}
	}

	return runErr
}
