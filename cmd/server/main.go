// Command server runs the compensation negotiation API.
//
// @title           Compensation Negotiation API
// @version         1.0
// @description     Negotiation sessions, offer evaluation, preparation material and progression analytics.
// @BasePath        /api/v1
// @schemes         http https
//
// @securityDefinitions.apikey UserHeader
// @in   header
// @name X-User-ID
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-negotiation-backend/docs"
	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/config"
	"github.com/tbourn/go-negotiation-backend/internal/events"
	httpapi "github.com/tbourn/go-negotiation-backend/internal/http"
	"github.com/tbourn/go-negotiation-backend/internal/observability"
	"github.com/tbourn/go-negotiation-backend/internal/playbook"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
	"github.com/tbourn/go-negotiation-backend/internal/scheduler"
	"github.com/tbourn/go-negotiation-backend/internal/sysutil"
)

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	version := sysutil.BuildVersion()
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, version)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if cfg.Benchmark.SeedTable {
		n, err := benchmark.Seed(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("seed benchmarks")
		}
		if n > 0 {
			log.Info().Int("rows", n).Msg("benchmark table seeded")
		}
	}

	var (
		cache benchmark.Cache  = benchmark.NewMemoryCache()
		pub   events.Publisher = events.Nop{}
		rdb   *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = repo.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		cache = benchmark.RedisCache{Client: rdb}
		pub = events.RedisPublisher{Client: rdb}
		log.Info().Msg("redis cache and event publisher enabled")
	}

	var sources []benchmark.Source
	if cfg.Benchmark.StatsURL != "" {
		sources = append(sources, benchmark.NewStatsSource(cfg.Benchmark.StatsURL, cfg.Benchmark.Timeout))
	}
	sources = append(sources, benchmark.TableSource{DB: db})
	provider := benchmark.NewProvider(cache, benchmark.Multipliers{
		Location:    cfg.Benchmark.LocationMultipliers,
		CompanySize: cfg.Benchmark.CompanySizeMultipliers,
	}, cfg.Benchmark.Timeout, cfg.Benchmark.CacheTTL, sources...)

	idx, err := playbook.Load(cfg.PlaybookPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PlaybookPath).Msg("load playbook")
	}
	log.Info().Int("paragraphs", playbook.Len(idx)).Msg("playbook indexed")

	svc := httpapi.NewServices(db, cfg, provider, playbook.NewCoach(idx), pub)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	sched := scheduler.New(cfg.Scheduler, db, svc.Negotiations, provider)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("base_path", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("scheduler jobs still running at shutdown")
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}
