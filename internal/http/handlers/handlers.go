// Package handlers exposes the REST endpoints of the negotiation API.
//
// Handlers are transport-thin: they bind and check input, call application
// services, and translate results into HTTP responses (including conditional
// 304s and version preconditions).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/http/middleware"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/services"
	"github.com/tbourn/go-negotiation-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// NegotiationService covers the session lifecycle and the counteroffer
// ledger.
type NegotiationService interface {
	Create(ctx context.Context, userID string, in services.SessionInput) (*domain.NegotiationSession, error)
	ListPage(ctx context.Context, userID, status string, page, pageSize int) ([]domain.NegotiationSession, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.NegotiationSession, error)
	Update(ctx context.Context, userID, id string, in services.SessionInput, expected *int64) (*domain.NegotiationSession, error)
	Delete(ctx context.Context, userID, id string) error
	AddOffer(ctx context.Context, userID, negID string, in services.OfferInput, idemKey string, expected *int64) (*domain.Offer, bool, error)
	EvaluateCounteroffer(ctx context.Context, userID, negID string, in services.EvaluateInput, expected *int64) (*services.CounterofferResult, error)
	Complete(ctx context.Context, userID, negID string, in services.CompleteInput, expected *int64) (*domain.NegotiationSession, error)
}

// PreparationService generates and tracks preparation material of a session.
type PreparationService interface {
	GenerateTalkingPoints(ctx context.Context, userID, negID string, p negotiation.Profile, expected *int64) ([]domain.TalkingPoint, error)
	GenerateScript(ctx context.Context, userID, negID string, req services.ScriptInput, expected *int64) (*domain.Script, error)
	ScriptForJob(ctx context.Context, userID, jobID string, req services.ScriptInput) (*domain.Script, error)
	ExercisesForJob(ctx context.Context, userID, jobID string) ([]domain.ConfidenceExercise, error)
	AddChecklistItem(ctx context.Context, userID, negID, category, label string, expected *int64) (*domain.ChecklistItem, error)
	ToggleChecklistItem(ctx context.Context, userID, negID, itemID string, done *bool, expected *int64) (*domain.ChecklistItem, error)
	CompleteExercise(ctx context.Context, userID, negID, exerciseID string, expected *int64) (*domain.ConfidenceExercise, error)
	Practice(ctx context.Context, userID, negID, line string, expected *int64) (*services.PracticeResult, error)
	ListPractice(ctx context.Context, userID, negID string, limit int) ([]domain.ConversationTurn, error)
}

// OfferService manages the per-job offer ledger.
type OfferService interface {
	Track(ctx context.Context, userID, jobID string, in services.OfferInput, idemKey string) (*domain.Offer, bool, error)
	List(ctx context.Context, userID, jobID string) ([]domain.Offer, error)
	UpdateStatus(ctx context.Context, userID, jobID, offerID, status string) (*domain.Offer, error)
	Timing(ctx context.Context, userID, jobID string) (*negotiation.TimingStrategy, error)
}

// AnalyticsService computes read-only reports over a user's history.
type AnalyticsService interface {
	Progression(ctx context.Context, userID string, key domain.BenchmarkKey) (*services.ProgressionReport, error)
	Analytics(ctx context.Context, userID string) (*services.Analytics, error)
}

// BenchmarkLookup resolves market data for a key.
type BenchmarkLookup interface {
	Lookup(ctx context.Context, key domain.BenchmarkKey) (domain.BenchmarkEntry, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on service interfaces only.
type Handlers struct {
	negSvc       NegotiationService
	prepSvc      PreparationService
	offerSvc     OfferService
	analyticsSvc AnalyticsService
	bench        BenchmarkLookup
}

// New constructs a Handlers instance bound to the given services. bench may
// be nil, in which case GET /benchmarks always answers benchmark_unavailable.
func New(neg NegotiationService, prep PreparationService, offers OfferService, analytics AnalyticsService, bench BenchmarkLookup) *Handlers {
	return &Handlers{negSvc: neg, prepSvc: prep, offerSvc: offers, analyticsSvc: analytics, bench: bench}
}

// userID extracts the caller id from the Gin context (set by upstream auth
// middleware), then from the X-User-ID header, and finally falls back to
// "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Versioned is embedded by mutation payloads. A non-nil Version makes the
// write conditional; If-Match carries the same precondition as a header.
type Versioned struct {
	Version *int64 `json:"version,omitempty" example:"3"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// expectedVersion merges the body version with If-Match. When both are
// present they must agree. It writes the 400 itself and reports false.
func expectedVersion(c *gin.Context, body Versioned) (*int64, bool) {
	hdr, err := utils.ParseVersionTag(c.GetHeader("If-Match"))
	if err != nil {
		failField(c, http.StatusBadRequest, ErrCodeValidation, "If-Match", "must be a positive version number")
		return nil, false
	}
	switch {
	case hdr == nil:
		return body.Version, true
	case body.Version == nil:
		return hdr, true
	case *hdr != *body.Version:
		failField(c, http.StatusBadRequest, ErrCodeValidation, "version", "body version and If-Match disagree")
		return nil, false
	}
	return hdr, true
}

// bindOptionalJSON binds a JSON body when one was sent. An empty body leaves
// dst untouched.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// idempotencyKey prefers the key validated by the idempotency middleware and
// falls back to the raw header.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// weakETag sets a weak ETag derived from (count, max updated_at) and reports
// whether the request's If-None-Match already matches it.
func weakETag(c *gin.Context, kind, scope string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, ts)
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	return inm != "" && inm == etag
}

// setVersionETag exposes a session's version so clients can echo it in If-Match.
func setVersionETag(c *gin.Context, s *domain.NegotiationSession) {
	if s != nil {
		c.Header("ETag", fmt.Sprintf(`"%d"`, s.Version))
	}
}
