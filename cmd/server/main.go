package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/audiokeep/audiokeep/internal/blob"
	"github.com/audiokeep/audiokeep/internal/config"
	"github.com/audiokeep/audiokeep/internal/ingest"
	"github.com/audiokeep/audiokeep/internal/metadata"
	"github.com/audiokeep/audiokeep/internal/middleware"
	"github.com/audiokeep/audiokeep/internal/observability"
	"github.com/audiokeep/audiokeep/internal/server"
	"github.com/audiokeep/audiokeep/internal/signature"
	"github.com/audiokeep/audiokeep/internal/tags"
	"github.com/audiokeep/audiokeep/internal/token"
	"github.com/audiokeep/audiokeep/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.InitLogger(cfg.DevLog)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracerProvider(ctx, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownTracerProvider(context.Background(), tp, logger)

	blobs, err := blob.NewFilesystemStore(cfg.DataDir)
	if err != nil {
		return err
	}

	var meta metadata.Store
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory metadata store")
		meta = metadata.NewMemoryStore()
	} else {
		pg, err := metadata.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		meta = pg
	}

	codec, err := token.NewCodec(cfg.TokenSalt, cfg.TokenMinLength)
	if err != nil {
		return err
	}

	extractor := tags.AudiometaExtractor{}
	svc := ingest.NewService(
		signature.NewValidator(signature.DefaultSignatures()...),
		codec,
		blobs,
		meta,
		extractor,
		logger,
		ingest.Options{
			MaxConcurrentUploads: cfg.MaxConcurrentUploads,
			SpoolDir:             cfg.SpoolDir,
			ExtractArtwork:       cfg.ExtractArtwork,
		},
	)

	reconciler := ingest.NewReconciler(svc, cfg.ReconcileInterval, logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	if cfg.ExtractArtwork {
		artwork := worker.New(worker.Config{
			Meta:         meta,
			Paths:        blobs,
			Renderer:     worker.NewRenderer(blobs),
			Extractor:    extractor,
			Logger:       logger,
			PollInterval: cfg.ArtworkPollInterval,
		})
		artwork.Start(ctx)
		defer artwork.Stop()
	}

	observability.StartMetricsServer(cfg.MetricsPort, logger)

	h := server.NewHandler(svc, logger, cfg.MaxUploadBytes)
	routes := h.Routes(
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Metrics(),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           otelhttp.NewHandler(routes, "audiokeep", otelhttp.WithTracerProvider(tp)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
