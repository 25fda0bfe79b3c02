package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/utsavlook/booking-functions/internal/config"
	"github.com/utsavlook/booking-functions/internal/database"
	"github.com/utsavlook/booking-functions/internal/handler"
	"github.com/utsavlook/booking-functions/internal/logger"
	"github.com/utsavlook/booking-functions/internal/middleware"
	"github.com/utsavlook/booking-functions/internal/obs"
	"github.com/utsavlook/booking-functions/internal/queue"
	"github.com/utsavlook/booking-functions/internal/repository"
	"github.com/utsavlook/booking-functions/internal/router"
	"github.com/utsavlook/booking-functions/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	lg := logger.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, lg)
	stop()
	if err != nil {
		lg.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Every resource
// it opens is released before it returns.
func run(ctx context.Context, cfg config.Config, lg *slog.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		lg.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			lg.Warn("tracer shutdown", "err", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitMQURL, cfg.BookingExchange)
		if err != nil {
			lg.Warn("rabbitmq unavailable, booking events disabled", "err", err)
		} else {
			defer pub.Close()
			events = pub
		}
		if cfg.AuditEnabled {
			consumer := &queue.AuditConsumer{
				URL:      cfg.RabbitMQURL,
				Exchange: cfg.BookingExchange,
				Queue:    cfg.AuditQueue,
				LogPath:  cfg.AuditLogPath,
				Logger:   lg,
			}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lg.Error("booking audit consumer stopped", "err", err)
				}
			}()
		}
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		lg.Warn("redis unavailable, using local rate limits and no response cache")
	} else {
		defer rdb.Close()
	}

	svc := service.NewBookingService(store, events, lg)
	h := handler.NewBookingHandler(svc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			lg.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	router.RegisterAll(e, h, router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	serveErr := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", "err", err)
	}
	lg.Info("stopped")
	return nil
}

// openStore picks the in-memory store when no database is configured,
// otherwise it connects to MySQL and migrates the schema.
func openStore(ctx context.Context, cfg config.Config, lg *slog.Logger) (service.BookingStore, func(), error) {
	if cfg.UseMemoryStore() {
		lg.Warn("DB_HOST not set, using in-memory booking store")
		return repository.NewMemoryBookingStore(cfg.RetryPolicy()), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return repository.NewBookingRepo(db, cfg.RetryPolicy()), func() { _ = db.Close() }, nil
}
