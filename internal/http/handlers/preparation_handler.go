// Preparation HTTP handlers.
//
// Endpoints that generate or track the material a user prepares before a
// negotiation conversation. All writes are versioned like other session
// mutations and refused once the session is closed.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/services"
	"github.com/tbourn/go-negotiation-backend/internal/utils"
)

//
// DTOs
//

// TalkingPointsRequest carries the candidate profile used for generation.
type TalkingPointsRequest struct {
	Profile negotiation.Profile `json:"profile"`
	Versioned
}

// TalkingPointsResponse lists the regenerated talking points in order.
type TalkingPointsResponse struct {
	TalkingPoints []domain.TalkingPoint `json:"talking_points"`
}

// ScriptRequest selects a scenario and the values it needs.
type ScriptRequest struct {
	services.ScriptInput
	Versioned
}

// AddChecklistItemRequest adds a custom checklist entry.
type AddChecklistItemRequest struct {
	Category string `json:"category" example:"logistics"`
	Label    string `json:"label"    example:"Book a quiet room for the call"`
	Versioned
}

// ToggleChecklistItemRequest sets or flips an item. A missing done flips it.
type ToggleChecklistItemRequest struct {
	Done *bool `json:"done,omitempty"`
	Versioned
}

// CompleteExerciseRequest optionally carries the expected version.
type CompleteExerciseRequest struct {
	Versioned
}

// PracticeRequest is one line said to the practice coach.
type PracticeRequest struct {
	Message string `json:"message" example:"How do I ask for a higher signing bonus?"`
	Versioned
}

// ConversationResponse lists practice turns, oldest first.
type ConversationResponse struct {
	Turns []domain.ConversationTurn `json:"turns"`
}

//
// Handlers
//

// GenerateTalkingPoints godoc
// @ID          generateTalkingPoints
// @Summary     Generate talking points
// @Description Replaces the session's talking points with a fresh set built from the profile, goals, latest offer and market data.
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.TalkingPointsRequest  false  "Candidate profile"
//
// @Success     200  {object} handlers.TalkingPointsResponse
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/talking-points [post]
func (h *Handlers) GenerateTalkingPoints(c *gin.Context) {
	var req TalkingPointsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	points, err := h.prepSvc.GenerateTalkingPoints(c.Request.Context(), userID(c), c.Param("id"), req.Profile, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	if points == nil {
		points = []domain.TalkingPoint{}
	}
	ok(c, http.StatusOK, TalkingPointsResponse{TalkingPoints: points})
}

// GenerateScript godoc
// @ID          generateScript
// @Summary     Generate a negotiation script
// @Description Renders the script of a scenario for the session and stores it. Scenarios that need extra values (e.g. competing_offer) reject the request when they are missing.
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.ScriptRequest  true  "Scenario"
//
// @Success     201  {object} domain.Script
// @Failure     400  {object} handlers.ErrorResponse "Unknown scenario or missing values"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/scripts [post]
func (h *Handlers) GenerateScript(c *gin.Context) {
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	sc, err := h.prepSvc.GenerateScript(c.Request.Context(), userID(c), c.Param("id"), req.ScriptInput, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, sc)
}

// AddChecklistItem godoc
// @ID          addChecklistItem
// @Summary     Add a checklist item
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.AddChecklistItemRequest  true  "Item"
//
// @Success     201  {object} domain.ChecklistItem
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/checklist [post]
func (h *Handlers) AddChecklistItem(c *gin.Context) {
	var req AddChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	it, err := h.prepSvc.AddChecklistItem(c.Request.Context(), userID(c), c.Param("id"), req.Category, req.Label, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, it)
}

// ToggleChecklistItem godoc
// @ID          toggleChecklistItem
// @Summary     Toggle a checklist item
// @Description Sets done to the given value, or flips it when done is omitted.
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       itemId     path    string  true  "Checklist item ID"      format(uuid)
// @Param       body       body    handlers.ToggleChecklistItemRequest  false  "Target state"
//
// @Success     200  {object} domain.ChecklistItem
// @Failure     404  {object} handlers.ErrorResponse "Session or item not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/checklist/{itemId} [patch]
func (h *Handlers) ToggleChecklistItem(c *gin.Context) {
	var req ToggleChecklistItemRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	it, err := h.prepSvc.ToggleChecklistItem(c.Request.Context(), userID(c), c.Param("id"), c.Param("itemId"), req.Done, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// CompleteExercise godoc
// @ID          completeExercise
// @Summary     Mark a confidence exercise complete
// @Description Completing an exercise twice keeps the first completion time.
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID   header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match    header  string  false "Expected version"        example(3)
// @Param       id          path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       exerciseId  path    string  true  "Exercise ID"            format(uuid)
//
// @Success     200  {object} domain.ConfidenceExercise
// @Failure     404  {object} handlers.ErrorResponse "Session or exercise not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/exercises/{exerciseId} [patch]
func (h *Handlers) CompleteExercise(c *gin.Context) {
	var req CompleteExerciseRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	ex, err := h.prepSvc.CompleteExercise(c.Request.Context(), userID(c), c.Param("id"), c.Param("exerciseId"), expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ex)
}

// PostConversation godoc
// @ID          postConversation
// @Summary     Practice a negotiation line
// @Description Stores the user's line and the coach's reply, retrieved from the negotiation playbook.
// @Tags        Preparation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       If-Match   header  string  false "Expected version"        example(3)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.PracticeRequest  true  "Practice line"
//
// @Success     201  {object} services.PracticeResult
// @Failure     400  {object} handlers.ErrorResponse "Empty or oversized message"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Version conflict or closed session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/conversation [post]
func (h *Handlers) PostConversation(c *gin.Context) {
	var req PracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	expected, good := expectedVersion(c, req.Versioned)
	if !good {
		return
	}

	res, err := h.prepSvc.Practice(c.Request.Context(), userID(c), c.Param("id"), req.Message, expected)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// ListConversation godoc
// @ID          listConversation
// @Summary     List practice turns
// @Tags        Preparation
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       limit      query   int     false "Most recent turns"      minimum(1) maximum(50) default(50)
//
// @Success     200  {object} handlers.ConversationResponse
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/{id}/conversation [get]
func (h *Handlers) ListConversation(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	turns, err := h.prepSvc.ListPractice(c.Request.Context(), userID(c), c.Param("id"), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	ok(c, http.StatusOK, ConversationResponse{Turns: turns})
}
