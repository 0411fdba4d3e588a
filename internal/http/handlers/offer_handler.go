// Job offer HTTP handlers.
//
// Endpoints under /salary/negotiation/{jobId} track offers per job
// application and serve job-scoped views of the linked session.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
	"github.com/tbourn/go-negotiation-backend/internal/services"
)

//
// DTOs
//

// TrackOfferRequest records an offer received for a job.
type TrackOfferRequest struct {
	services.OfferInput
}

// UpdateOfferStatusRequest moves an offer out of Active.
type UpdateOfferStatusRequest struct {
	Status string `json:"status" example:"Accepted"`
}

// JobScriptRequest selects the scenario for the job's session.
type JobScriptRequest struct {
	services.ScriptInput
}

// ListOffersResponse lists a job's offers, oldest first.
type ListOffersResponse struct {
	Offers []domain.Offer `json:"offers"`
}

// ExercisesResponse lists the confidence exercises of the job's session.
type ExercisesResponse struct {
	Exercises []domain.ConfidenceExercise `json:"exercises"`
}

//
// Handlers
//

// TrackOffer godoc
// @ID          trackJobOffer
// @Summary     Track an offer for a job
// @Description Records an offer against a job id. The offer is linked to the job's negotiation session when one exists. A repeated Idempotency-Key replays the original offer with 200.
// @Tags        Offers
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Deduplicates retries"   example(job-42-offer-1)
// @Param       jobId            path    string  true  "Job ID"                 example(job-42)
// @Param       body             body    handlers.TrackOfferRequest  true  "Offer payload"
//
// @Success     201  {object} domain.Offer
// @Success     200  {object} domain.Offer "Replayed"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/offers [post]
func (h *Handlers) TrackOffer(c *gin.Context) {
	var req TrackOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	offer, replayed, err := h.offerSvc.Track(c.Request.Context(), userID(c), c.Param("jobId"), req.OfferInput, idempotencyKey(c))
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

// ListOffers godoc
// @ID          listJobOffers
// @Summary     List offers for a job
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Offers
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       jobId          path    string  true  "Job ID"                       example(job-42)
//
// @Success     200  {object} handlers.ListOffersResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/offers [get]
func (h *Handlers) ListOffers(c *gin.Context) {
	ctx := c.Request.Context()
	uid, jobID := userID(c), c.Param("jobId")

	if svc, isDB := h.offerSvc.(*services.OfferService); isDB && svc.DB != nil {
		if count, maxTS, err := repo.OffersStats(ctx, svc.DB, uid, jobID); err == nil {
			if weakETag(c, "offers", uid+":"+jobID, count, maxTS) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	offers, err := h.offerSvc.List(ctx, uid, jobID)
	if err != nil {
		failErr(c, err)
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	ok(c, http.StatusOK, ListOffersResponse{Offers: offers})
}

// UpdateOfferStatus godoc
// @ID          updateJobOfferStatus
// @Summary     Update an offer's status
// @Description Moves an Active offer to Accepted, Declined, Expired or Withdrawn. Repeating the current status is a no-op.
// @Tags        Offers
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       jobId      path    string  true  "Job ID"                 example(job-42)
// @Param       offerId    path    string  true  "Offer ID"               format(uuid)
// @Param       body       body    handlers.UpdateOfferStatusRequest  true  "New status"
//
// @Success     200  {object} domain.Offer
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Offer not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/offers/{offerId} [patch]
func (h *Handlers) UpdateOfferStatus(c *gin.Context) {
	var req UpdateOfferStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	offer, err := h.offerSvc.UpdateStatus(c.Request.Context(), userID(c), c.Param("jobId"), c.Param("offerId"), req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, offer)
}

// JobScript godoc
// @ID          jobScript
// @Summary     Generate a script for a job's session
// @Tags        Offers
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       jobId      path    string  true  "Job ID"                 example(job-42)
// @Param       body       body    handlers.JobScriptRequest  true  "Scenario"
//
// @Success     201  {object} domain.Script
// @Failure     400  {object} handlers.ErrorResponse "Unknown scenario or missing values"
// @Failure     404  {object} handlers.ErrorResponse "No session for job"
// @Failure     409  {object} handlers.ErrorResponse "Closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/script [post]
func (h *Handlers) JobScript(c *gin.Context) {
	var req JobScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sc, err := h.prepSvc.ScriptForJob(c.Request.Context(), userID(c), c.Param("jobId"), req.ScriptInput)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, sc)
}

// JobExercises godoc
// @ID          jobExercises
// @Summary     Confidence exercises for a job's session
// @Tags        Offers
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       jobId      path    string  true  "Job ID"                 example(job-42)
//
// @Success     200  {object} handlers.ExercisesResponse
// @Failure     404  {object} handlers.ErrorResponse "No session for job"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/exercises [get]
func (h *Handlers) JobExercises(c *gin.Context) {
	exs, err := h.prepSvc.ExercisesForJob(c.Request.Context(), userID(c), c.Param("jobId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if exs == nil {
		exs = []domain.ConfidenceExercise{}
	}
	ok(c, http.StatusOK, ExercisesResponse{Exercises: exs})
}

// JobTiming godoc
// @ID          jobTiming
// @Summary     Timing strategy for the latest active offer
// @Description Derives urgency and suggested response windows from the offer deadline.
// @Tags        Offers
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       jobId      path    string  true  "Job ID"                 example(job-42)
//
// @Success     200  {object} negotiation.TimingStrategy
// @Failure     404  {object} handlers.ErrorResponse "No active offer"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /salary/negotiation/{jobId}/timing [get]
func (h *Handlers) JobTiming(c *gin.Context) {
	ts, err := h.offerSvc.Timing(c.Request.Context(), userID(c), c.Param("jobId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ts)
}
