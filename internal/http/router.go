// Package httpapi wires the HTTP transport (Gin) to the negotiation
// services, middleware and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, redacted logging, panic
// recovery, compression, metrics, CORS, security headers, idempotency and
// rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/config"
	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/events"
	"github.com/tbourn/go-negotiation-backend/internal/http/handlers"
	"github.com/tbourn/go-negotiation-backend/internal/http/middleware"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/playbook"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
	"github.com/tbourn/go-negotiation-backend/internal/services"
)

// offerRepoShim adapts the repository free functions to services.OfferRepo.
type offerRepoShim struct{}

func (offerRepoShim) CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	return repo.CreateOffer(ctx, db, o)
}

func (offerRepoShim) GetOffer(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Offer, error) {
	return repo.GetOffer(ctx, db, id, userID)
}

func (offerRepoShim) ListOffersByJob(ctx context.Context, db *gorm.DB, userID, jobID string) ([]domain.Offer, error) {
	return repo.ListOffersByJob(ctx, db, userID, jobID)
}

func (offerRepoShim) LatestActiveOffer(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.Offer, error) {
	return repo.LatestActiveOffer(ctx, db, userID, jobID)
}

func (offerRepoShim) UpdateOfferStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.OfferStatus) error {
	return repo.UpdateOfferStatus(ctx, db, id, userID, status)
}

func (offerRepoShim) GetSessionByJob(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.NegotiationSession, error) {
	return repo.GetSessionByJob(ctx, db, userID, jobID)
}

func (offerRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
}

// Services is the application layer the router exposes. The server also
// hands Negotiations to the scheduler for the deadline sweep.
type Services struct {
	Negotiations *services.NegotiationService
	Offers       *services.OfferService
	Analytics    *services.AnalyticsService
	Benchmarks   services.BenchmarkLookup
}

// EngineSettings maps the engine configuration onto the rules engine
// settings. The market band is configured as a fraction and the engine
// works in percent.
func EngineSettings(ec config.EngineConfig) negotiation.Settings {
	st := negotiation.DefaultSettings()
	if ec.MarketBand > 0 {
		st.MarketBandPct = ec.MarketBand * 100
	}
	if ec.TrendThreshold > 0 {
		st.TrendThresholdPct = ec.TrendThreshold
	}
	if ec.MinIncrement >= 0 {
		st.MinIncrement = ec.MinIncrement
	}
	if ec.FinalOfferPolicy == string(negotiation.FinalDecline) {
		st.FinalOfferPolicy = negotiation.FinalDecline
	}
	if ec.HighGapThreshold > 0 {
		st.HighGapPct = ec.HighGapThreshold
	}
	return st
}

// NewServices builds the services over db. bench may be nil, in which case
// evaluations run without market context; coach and pub default to the
// embedded playbook and a no-op publisher.
func NewServices(db *gorm.DB, cfg config.Config, bench services.BenchmarkLookup, coach *playbook.Coach, pub events.Publisher) Services {
	st := EngineSettings(cfg.Engine)

	neg := services.NewNegotiationService(db, bench, coach, pub, st)
	neg.MaxRetries = cfg.SessionMutationRetries
	offers := services.NewOfferService(db, offerRepoShim{})
	if cfg.IdempotencyTTL > 0 {
		neg.IdempotencyTTL = cfg.IdempotencyTTL
		offers.IdempotencyTTL = cfg.IdempotencyTTL
	}

	return Services{
		Negotiations: neg,
		Offers:       offers,
		Analytics:    services.NewAnalyticsService(db, bench, st),
		Benchmarks:   bench,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the engine
// and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access logs with PII and salary scrubbing
//  4. Logger: request-scoped logger for handlers
//  5. Recovery: capture panics after the loggers
//  6. Body size limiter and gzip
//  7. Metrics
//  8. Idempotency validator (before the rate limiter so replays bypass it)
//  9. Rate limiter (per user/IP)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders:     []string{"X-API-Key"},
		MaskQueryParams: []string{"final_salary"},
	}))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		PrivateCache: true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc.Negotiations, svc.Negotiations, svc.Offers, svc.Analytics, svc.Benchmarks)
	mountAPI(groupWithPrefix(r, cfg.APIBasePath), h)
}

// mountAPI registers the public route table. The static /negotiations/user
// routes are registered before /negotiations/:id.
func mountAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	// Sessions
	api.POST("/negotiations", h.CreateNegotiation)
	api.GET("/negotiations", h.ListNegotiations)
	api.GET("/negotiations/user/progression", h.Progression)
	api.GET("/negotiations/user/analytics", h.Analytics)
	api.GET("/negotiations/:id", h.GetNegotiation)
	api.PUT("/negotiations/:id", h.UpdateNegotiation)
	api.DELETE("/negotiations/:id", h.DeleteNegotiation)

	// Offers and evaluation
	api.POST("/negotiations/:id/offers", h.AddOffer)
	api.POST("/negotiations/:id/counteroffer", h.EvaluateCounteroffer)
	api.POST("/negotiations/:id/complete", h.CompleteNegotiation)

	// Preparation
	api.POST("/negotiations/:id/talking-points", h.GenerateTalkingPoints)
	api.POST("/negotiations/:id/scripts", h.GenerateScript)
	api.POST("/negotiations/:id/checklist", h.AddChecklistItem)
	api.PATCH("/negotiations/:id/checklist/:itemId", h.ToggleChecklistItem)
	api.PATCH("/negotiations/:id/exercises/:exerciseId", h.CompleteExercise)
	api.POST("/negotiations/:id/conversation", h.PostConversation)
	api.GET("/negotiations/:id/conversation", h.ListConversation)

	// Market data
	api.GET("/benchmarks", h.GetBenchmark)

	// Job-scoped offer tracking
	api.POST("/salary/negotiation/:jobId/offers", h.TrackOffer)
	api.GET("/salary/negotiation/:jobId/offers", h.ListOffers)
	api.PATCH("/salary/negotiation/:jobId/offers/:offerId", h.UpdateOfferStatus)
	api.POST("/salary/negotiation/:jobId/script", h.JobScript)
	api.GET("/salary/negotiation/:jobId/exercises", h.JobExercises)
	api.GET("/salary/negotiation/:jobId/timing", h.JobTiming)
}

// corsMiddleware allows every origin when none is configured, otherwise
// echoes allowlisted origins. Credentials are never allowed.
func corsMiddleware(cc config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-Match", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Retry-After", "Idempotent-Replay", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(cc.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		// ACAO: * even without an Origin header, so plain health checks see it.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = cc.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
