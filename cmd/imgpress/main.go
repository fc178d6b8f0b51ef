package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	converthandler "github.com/imgpress/imgpress/internal/api/handlers/convert"
	"github.com/imgpress/imgpress/internal/api/router"
	"github.com/imgpress/imgpress/internal/api/server"
	"github.com/imgpress/imgpress/internal/codec"
	nativecodec "github.com/imgpress/imgpress/internal/codec/native"
	vipscodec "github.com/imgpress/imgpress/internal/codec/vips"
	"github.com/imgpress/imgpress/internal/config"
	"github.com/imgpress/imgpress/internal/converter"
	"github.com/imgpress/imgpress/internal/events"
	"github.com/imgpress/imgpress/internal/repository/history"
	convertsvc "github.com/imgpress/imgpress/internal/service/convert"
	filestorage "github.com/imgpress/imgpress/internal/storage/file"
	miniostorage "github.com/imgpress/imgpress/internal/storage/minio"
	"github.com/imgpress/imgpress/internal/store"
)

// stagingStorage is the transient upload area shared by the HTTP handler
// (writes) and the conversion worker (reads and releases).
type stagingStorage interface {
	Save(ctx context.Context, key string, src io.Reader) (string, error)
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad()

	// Staging storage for uploads awaiting conversion.
	var staging stagingStorage
	switch cfg.Storage.Backend {
	case "s3":
		s, err := miniostorage.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		staging = s
	default:
		s, err := filestorage.NewStorage(cfg.Storage.BaseDir)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to initialize staging directory")
		}
		staging = s
	}

	// Image codec backend.
	var imageCodec codec.Codec
	switch cfg.Codec.Backend {
	case "vips":
		c := vipscodec.New(cfg.Convert.DefaultQuality)
		defer c.Shutdown()
		imageCodec = c
	default:
		imageCodec = nativecodec.New()
	}

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Optional batch history persistence (PostgreSQL).
	var (
		db   *dbpg.DB
		hist convertsvc.History
	)
	if cfg.Database.Enabled {
		opts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}

		slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
		for _, s := range cfg.Database.Slaves {
			slaveDSNs = append(slaveDSNs, s.DSN())
		}

		var err error
		db, err = dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		hist = history.NewRepository(db)
	}

	// Optional batch completion events (Kafka).
	var (
		producer  *events.Producer
		eventSink convertsvc.EventProducer
	)
	if cfg.Kafka.Enabled {
		producer = events.New(&cfg.Kafka, strategy)
		eventSink = producer
	}

	// Result store, worker, service, and HTTP handler.
	resultStore := store.New()
	worker := converter.New(imageCodec, staging)
	service := convertsvc.NewService(worker, resultStore, hist, eventSink, cfg.Convert.Timeout)
	handler := converthandler.NewHandler(service, staging, cfg.Convert.DefaultQuality)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(handler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if db != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Printf("failed to close master DB: %v", err)
		}
		for i, slave := range db.Slaves {
			if err := slave.Close(); err != nil {
				zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
			}
		}
	}

	// Close Kafka producer client.
	if producer != nil {
		if err := producer.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
}
