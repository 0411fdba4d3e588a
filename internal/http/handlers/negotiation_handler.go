// Negotiation session HTTP handlers.
//
// This file exposes the session lifecycle and the counteroffer ledger:
//   - POST   /negotiations                    (create)
//   - GET    /negotiations                    (list, paginated, ETag support)
//   - GET    /negotiations/{id}               (detail with collections)
//   - PUT    /negotiations/{id}               (update, versioned)
//   - DELETE /negotiations/{id}               (soft delete)
//   - POST   /negotiations/{id}/offers        (add offer, Idempotency-Key)
//   - POST   /negotiations/{id}/counteroffer  (evaluate offer)
//   - POST   /negotiations/{id}/complete      (record outcome)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
	"github.com/tbourn/go-negotiation-backend/internal/services"
)

//
// DTOs
//

// CreateNegotiationRequest is the JSON payload for creating a session.
type CreateNegotiationRequest struct {
	services.SessionInput
}

// UpdateNegotiationRequest replaces the editable fields of a session.
type UpdateNegotiationRequest struct {
	services.SessionInput
	Versioned
}

// AddOfferRequest appends an offer to the session ledger.
type AddOfferRequest struct {
	services.OfferInput
	Versioned
}

// EvaluateCounterofferRequest selects the offer to evaluate.
type EvaluateCounterofferRequest struct {
	services.EvaluateInput
	Versioned
}

// CompleteNegotiationRequest records the final outcome.
type CompleteNegotiationRequest struct {
	services.CompleteInput
	Versioned
}

// ListNegotiationsResponse wraps a page of sessions and pagination information.
type ListNegotiationsResponse struct {
	Negotiations []domain.NegotiationSession `json:"negotiations"`
	Pagination   Pagination                  `json:"pagination"`
}

//
// Handlers
//

// CreateNegotiation godoc
// @ID          createNegotiation
// @Summary     Create a negotiation session
// @Description Creates a session in Preparing status, seeded with the default checklist and confidence exercises.
// @Tags        Negotiations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateNegotiationRequest  true  "Session payload"
//
// @Success     201  {object}  domain.NegotiationSession
// @Header      201  {string}  ETag  "Session version"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /negotiations [post]
func (h *Handlers) CreateNegotiation(c *gin.Context) {
	var req CreateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sess, err := h.negSvc.Create(c.Request.Context(), userID(c), req.SessionInput)
	if err != nil {
		failErr(c, err)
		return
	}
	setVersionETag(c, sess)
	ok(c, http.StatusCreated, sess)
}

// ListNegotiations godoc
// @ID          listNegotiations
// @Summary     List negotiation sessions (paginated)
// @Description Returns a page of the user's sessions, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Negotiations
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       status         query   string  false "Filter by status"            example(Preparing)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListNegotiationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations [get]
func (h *Handlers) ListNegotiations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)
	status := c.Query("status")

	// ETag pre-check (best effort). The tag covers all of the user's sessions,
	// so it is only meaningful for the unfiltered listing.
	var db *gorm.DB
	if svc, ok := h.negSvc.(*services.NegotiationService); ok {
		db = svc.DB
	}
	if db != nil && status == "" {
		if count, maxTS, err := repo.NegotiationsStats(ctx, db, uid); err == nil {
			if weakETag(c, "negotiations", uid, count, maxTS) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.negSvc.ListPage(ctx, uid, status, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.NegotiationSession{}
	}
	ok(c, http.StatusOK, ListNegotiationsResponse{
		Negotiations: items,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// GetNegotiation godoc
// @ID          getNegotiation
// @Summary     Get a negotiation session
// @Description Returns the session with its offers, counteroffers, talking points, scripts, checklist, exercises and practice turns.
// @Tags        Negotiations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} domain.NegotiationSession
// @Header      200  {string} ETag  "Session version"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id} [get]
func (h *Handlers) GetNegotiation(c *gin.Context) {
	sess, err := h.negSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	setVersionETag(c, sess)
	ok(c, http.StatusOK, sess)
}

// UpdateNegotiation godoc
// @ID          updateNegotiation
// @Summary     Update a negotiation session
// @Description Replaces context and goals. Send the last seen version in the body or If-Match to make the write conditional.
// @Tags        Negotiations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.UpdateNegotiationRequest  true  "Session payload"
//
// @Success     200  {object} domain.NegotiationSession
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id} [put]
func (h *Handlers) UpdateNegotiation(c *gin.Context) {
	var req UpdateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	sess, err := h.negSvc.Update(c.Request.Context(), userID(c), c.Param("id"), req.SessionInput, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	setVersionETag(c, sess)
	ok(c, http.StatusOK, sess)
}

// DeleteNegotiation godoc
// @ID          deleteNegotiation
// @Summary     Delete a negotiation session
// @Tags        Negotiations
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id} [delete]
func (h *Handlers) DeleteNegotiation(c *gin.Context) {
	if err := h.negSvc.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// AddOffer godoc
// @ID          addNegotiationOffer
// @Summary     Add an offer to a session
// @Description Appends an offer to the session ledger. Counter and Final offers move a Preparing session to In Negotiation. Total compensation is computed server-side. A repeated Idempotency-Key replays the original offer with 200.
// @Tags        Negotiations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Deduplicates retries"   example(offer-2026-03-01-1)
// @Param       If-Match         header  string  false "Expected version"        example(3)
// @Param       id               path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body             body    handlers.AddOfferRequest  true  "Offer payload"
//
// @Success     201  {object} domain.Offer
// @Success     200  {object} domain.Offer "Replayed"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/offers [post]
func (h *Handlers) AddOffer(c *gin.Context) {
	var req AddOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	offer, replayed, err := h.negSvc.AddOffer(c.Request.Context(), userID(c), c.Param("id"), req.OfferInput, idempotencyKey(c), expected)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replay", "true")
		ok(c, http.StatusOK, offer)
		return
	}
	ok(c, http.StatusCreated, offer)
}

// EvaluateCounteroffer godoc
// @ID          evaluateCounteroffer
// @Summary     Evaluate an offer and record a counteroffer
// @Description Evaluates a stored offer (offer_id), an inline offer, or the latest session offer against goals and market data. Missing market data degrades the evaluation instead of failing it.
// @Tags        Negotiations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.EvaluateCounterofferRequest  false  "Offer selection"
//
// @Success     201  {object} services.CounterofferResult
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Session or offer not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/counteroffer [post]
func (h *Handlers) EvaluateCounteroffer(c *gin.Context) {
	var req EvaluateCounterofferRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	res, err := h.negSvc.EvaluateCounteroffer(c.Request.Context(), userID(c), c.Param("id"), req.EvaluateInput, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// CompleteNegotiation godoc
// @ID          completeNegotiation
// @Summary     Complete a negotiation
// @Description Moves the session to Accepted, Declined or Withdrawn, closes its active offers and freezes preparation material.
// @Tags        Negotiations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.CompleteNegotiationRequest  true  "Outcome"
//
// @Success     200  {object} domain.NegotiationSession
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or invalid transition"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/complete [post]
func (h *Handlers) CompleteNegotiation(c *gin.Context) {
	var req CompleteNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	sess, err := h.negSvc.Complete(c.Request.Context(), userID(c), c.Param("id"), req.CompleteInput, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	setVersionETag(c, sess)
	ok(c, http.StatusOK, sess)
}
