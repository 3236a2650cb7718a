package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/video-share/internal/cache"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/media"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/service"
	"github.com/pribylovaa/video-share/internal/storage/driver"
	transport "github.com/pribylovaa/video-share/internal/transport/http"
	"github.com/pribylovaa/video-share/internal/transport/http/handlers"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// pinger — зависимость, проверяемая в /healthz.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting users-service", "env", cfg.Env, "storage", cfg.Storage.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var deps []pinger

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := driver.Open(dbCtx, cfg, log)
	dbCancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("storage_close_failed", slog.String("err", err.Error()))
		}
	}()
	if p, ok := store.(pinger); ok {
		deps = append(deps, p)
	}

	m := metrics.New()
	svc := service.New(store, cfg.Auth)
	svc.SetMetrics(m)

	if cfg.S3.Endpoint != "" {
		s3Ctx, s3Cancel := context.WithTimeout(ctx, 10*time.Second)
		mediaStore, err := media.NewMinio(s3Ctx, cfg)
		s3Cancel()
		if err != nil {
			return fmt.Errorf("minio connect: %w", err)
		}
		svc.SetMedia(mediaStore)
		deps = append(deps, mediaStore)
		log.Info("minio_connected", slog.String("bucket", cfg.S3.Bucket))
	} else {
		log.Warn("minio_disabled", slog.String("reason", "s3.endpoint is empty, only hosted image urls are accepted"))
	}

	if cfg.Redis.URL != "" {
		rCtx, rCancel := context.WithTimeout(ctx, 5*time.Second)
		limiter, err := cache.NewRedisLoginLimiter(rCtx, cfg.Redis.URL, cfg.Redis.LoginMaxAttempts, cfg.Redis.LoginWindow)
		rCancel()
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = limiter.Close() }()

		svc.SetLoginLimiter(limiter)
		if p, ok := limiter.(pinger); ok {
			deps = append(deps, p)
		}
		log.Info("redis_connected")
	}

	log.Info("service_initialized")

	var ready atomic.Bool

	api := transport.NewRouter(handlers.New(svc, cfg.Cookies), svc.Sessions(), transport.Options{
		Logger:   log,
		Metrics:  m,
		Timeout:  cfg.Timeouts.Service,
		BasePath: cfg.HTTP.BasePath,
	})

	root := chi.NewRouter()
	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, d := range deps {
			if err := d.Ping(pingCtx); err != nil {
				log.Warn("healthz_dependency_down", slog.String("err", err.Error()))
				http.Error(w, "dependency unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("/metrics", m.Handler())
	root.Mount("/", api)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	log.Info("http_stopped")

	return serveErr
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
