package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/swami086/gentle-space-realty/internal/app/migrate"
	httpx "github.com/swami086/gentle-space-realty/internal/http"
	"github.com/swami086/gentle-space-realty/internal/repository"
	"github.com/swami086/gentle-space-realty/internal/repository/memory"
	"github.com/swami086/gentle-space-realty/internal/repository/postgres"
	"github.com/swami086/gentle-space-realty/internal/repository/redisstore"
	"github.com/swami086/gentle-space-realty/internal/service/auth"
	"github.com/swami086/gentle-space-realty/pkg/config"
	"github.com/swami086/gentle-space-realty/pkg/logger"
	"github.com/swami086/gentle-space-realty/pkg/mq"
	"github.com/swami086/gentle-space-realty/pkg/telemetry"
)

const serviceName = "gsr-api"

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log := logger.NewWithOptions(serviceName, logger.Options{Level: level, RevealSecrets: cfg.RevealSecrets()})
	if cfg.RevealSecrets() {
		log.Warn("LOG_SECRETS is enabled; credentials will appear in logs")
	}
	log.Info("configuration loaded", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL.Reveal())
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.DatabaseURL.Reveal(), log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if cfg.RunMigrations {
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	repo := postgres.New(pool)
	checks := []httpx.HealthCheck{{Name: "database", Check: repo.Ping}}

	var (
		states  repository.OAuthStateStore
		limiter httpx.RateLimiter
	)
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client, err := redisstore.Connect(ctx, addr, cfg.RedisPassword.Reveal(), cfg.RedisDB)
		if err != nil {
			log.Error("redis unavailable", "addr", addr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		states = redisstore.NewStateStore(client)
		limiter = httpx.NewRedisRateLimiter(client, log)
		checks = append(checks, httpx.HealthCheck{Name: "redis", Check: redisPing(client)})
		log.Info("using redis for login state and rate limits", "addr", addr)
	} else {
		memStates := memory.NewStateStore()
		defer memStates.Close()
		states = memStates
		limiter = httpx.NewMemoryRateLimiter()
		log.Info("using in-process login state and rate limits")
	}

	opts := []auth.Option{auth.WithMetrics(auth.NewMetrics(prometheus.DefaultRegisterer))}
	if cfg.AMQPURL.IsSet() {
		publisher, err := mq.NewPublisher(cfg.AMQPURL.Reveal(), cfg.AMQPExchange)
		if err != nil {
			log.Warn("auth events disabled", "error", err)
		} else {
			defer publisher.Close()
			opts = append(opts, auth.WithEvents(publisher))
			log.Info("publishing auth events", "exchange", cfg.AMQPExchange)
		}
	}
	if enabled, reason := cfg.GoogleStatus(); enabled {
		opts = append(opts, auth.WithProvider(auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret.Reveal(),
			RedirectURL:  cfg.OAuthRedirectURL,
			HTTPClient: &http.Client{
				Timeout:   10 * time.Second,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
		})))
	} else {
		log.Warn("google sign-in unavailable", "reason", reason)
	}

	authSvc := auth.New(repo, states, log, cfg, opts...)

	router, err := httpx.NewRouter(log, authSvc, limiter, cfg, checks...)
	if err != nil {
		log.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "callback_path", cfg.CallbackPath())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func redisPing(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
