package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
	"github.com/tbourn/go-negotiation-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handlers.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// testOfferRepo implements services.OfferRepo with the repo package, like router.go.
type testOfferRepo struct{}

func (testOfferRepo) CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	return repo.CreateOffer(ctx, db, o)
}

func (testOfferRepo) GetOffer(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Offer, error) {
	return repo.GetOffer(ctx, db, id, userID)
}

func (testOfferRepo) ListOffersByJob(ctx context.Context, db *gorm.DB, userID, jobID string) ([]domain.Offer, error) {
	return repo.ListOffersByJob(ctx, db, userID, jobID)
}

func (testOfferRepo) LatestActiveOffer(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.Offer, error) {
	return repo.LatestActiveOffer(ctx, db, userID, jobID)
}

func (testOfferRepo) UpdateOfferStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.OfferStatus) error {
	return repo.UpdateOfferStatus(ctx, db, id, userID, status)
}

func (testOfferRepo) GetSessionByJob(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.NegotiationSession, error) {
	return repo.GetSessionByJob(ctx, db, userID, jobID)
}

func (testOfferRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
}

// stubBench serves one entry for Technology/Senior and ErrNotFound otherwise.
type stubBench struct{ err error }

func (s stubBench) Lookup(_ context.Context, key domain.BenchmarkKey) (domain.BenchmarkEntry, error) {
	if s.err != nil {
		return domain.BenchmarkEntry{}, s.err
	}
	k := key.Normalized()
	if k.Industry != "technology" || k.ExperienceLevel != "senior" {
		return domain.BenchmarkEntry{}, benchmark.ErrNotFound
	}
	return domain.BenchmarkEntry{
		Key:    k,
		Min:    100000,
		Median: 150000,
		Max:    220000,
		Percentiles: domain.Percentiles{
			P10: 110000, P25: 130000, P50: 150000, P75: 175000, P90: 200000,
		},
		Source: "stub",
	}, nil
}

// ---------- router under test ----------

type testAPI struct {
	r   *gin.Engine
	db  *gorm.DB
	neg *services.NegotiationService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)

	bench := stubBench{}
	st := negotiation.DefaultSettings()
	neg := services.NewNegotiationService(db, bench, nil, nil, st)
	offers := services.NewOfferService(db, testOfferRepo{})
	analytics := services.NewAnalyticsService(db, bench, st)
	h := New(neg, neg, offers, analytics, bench)

	r := gin.New()
	mount(r.Group(""), h)
	return &testAPI{r: r, db: db, neg: neg}
}

// mount mirrors the route table registered by the router.
func mount(api *gin.RouterGroup, h *Handlers) {
	api.POST("/negotiations", h.CreateNegotiation)
	api.GET("/negotiations", h.ListNegotiations)
	api.GET("/negotiations/user/progression", h.Progression)
	api.GET("/negotiations/user/analytics", h.Analytics)
	api.GET("/negotiations/:id", h.GetNegotiation)
	api.PUT("/negotiations/:id", h.UpdateNegotiation)
	api.DELETE("/negotiations/:id", h.DeleteNegotiation)
	api.POST("/negotiations/:id/offers", h.AddOffer)
	api.POST("/negotiations/:id/counteroffer", h.EvaluateCounteroffer)
	api.POST("/negotiations/:id/complete", h.CompleteNegotiation)
	api.POST("/negotiations/:id/talking-points", h.GenerateTalkingPoints)
	api.POST("/negotiations/:id/scripts", h.GenerateScript)
	api.POST("/negotiations/:id/checklist", h.AddChecklistItem)
	api.PATCH("/negotiations/:id/checklist/:itemId", h.ToggleChecklistItem)
	api.PATCH("/negotiations/:id/exercises/:exerciseId", h.CompleteExercise)
	api.POST("/negotiations/:id/conversation", h.PostConversation)
	api.GET("/negotiations/:id/conversation", h.ListConversation)
	api.GET("/benchmarks", h.GetBenchmark)
	api.POST("/salary/negotiation/:jobId/offers", h.TrackOffer)
	api.GET("/salary/negotiation/:jobId/offers", h.ListOffers)
	api.PATCH("/salary/negotiation/:jobId/offers/:offerId", h.UpdateOfferStatus)
	api.POST("/salary/negotiation/:jobId/script", h.JobScript)
	api.GET("/salary/negotiation/:jobId/exercises", h.JobExercises)
	api.GET("/salary/negotiation/:jobId/timing", h.JobTiming)
}

// do performs a request as user u1 unless headers override X-User-ID.
func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", "u1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func sessionBody() map[string]any {
	return map[string]any{
		"company":          "Acme",
		"position":         "Backend Engineer",
		"industry":         "Technology",
		"experience_level": "Senior",
		"location":         "Berlin",
		"job_id":           "job-1",
		"goals": map[string]any{
			"minimum_acceptable": 140000,
			"target_salary":      160000,
			"ideal_salary":       180000,
		},
	}
}

func offerBody(typ string, base float64) map[string]any {
	return map[string]any{
		"company":       "Acme",
		"position":      "Backend Engineer",
		"type":          typ,
		"status":        "Active",
		"base_salary":   base,
		"signing_bonus": 5000,
		"pto_days":      20,
	}
}

// createSession creates a session through the API and returns it.
func (a *testAPI) createSession(t *testing.T) domain.NegotiationSession {
	t.Helper()
	w := a.do(t, http.MethodPost, "/negotiations", sessionBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	return decode[domain.NegotiationSession](t, w)
}
