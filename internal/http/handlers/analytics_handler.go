// Analytics and market data HTTP handlers.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// benchmarkKeyFromQuery reads the market segment from query params.
func benchmarkKeyFromQuery(c *gin.Context) domain.BenchmarkKey {
	return domain.BenchmarkKey{
		Industry:        strings.TrimSpace(c.Query("industry")),
		ExperienceLevel: strings.TrimSpace(c.Query("experience_level")),
		Location:        strings.TrimSpace(c.Query("location")),
		CompanySize:     strings.TrimSpace(c.Query("company_size")),
	}
}

// Progression godoc
// @ID          userProgression
// @Summary     Salary progression and recommendations
// @Description Analyzes the user's offer history. Market comparison uses the given segment, or the newest session with industry and level when none is given.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-User-ID         header  string  false "User ID (demo header)"  example(user123)
// @Param       industry          query   string  false "Industry"               example(Technology)
// @Param       experience_level  query   string  false "Experience level"       example(Senior)
// @Param       location          query   string  false "Location"               example(Berlin)
// @Param       company_size      query   string  false "Company size"           example(Enterprise)
//
// @Success     200  {object} services.ProgressionReport
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/user/progression [get]
func (h *Handlers) Progression(c *gin.Context) {
	rep, err := h.analyticsSvc.Progression(c.Request.Context(), userID(c), benchmarkKeyFromQuery(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// Analytics godoc
// @ID          userAnalytics
// @Summary     Negotiation analytics
// @Description Aggregates session counts, outcome rates, rounds and counteroffer verdicts for the user.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} services.Analytics
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /negotiations/user/analytics [get]
func (h *Handlers) Analytics(c *gin.Context) {
	a, err := h.analyticsSvc.Analytics(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// GetBenchmark godoc
// @ID          getBenchmark
// @Summary     Look up market salary data
// @Description Returns percentiles for a segment. industry and experience_level are required.
// @Tags        Benchmarks
// @Produce     json
//
// @Param       industry          query   string  true  "Industry"          example(Technology)
// @Param       experience_level  query   string  true  "Experience level"  example(Senior)
// @Param       location          query   string  false "Location"          example(Berlin)
// @Param       company_size      query   string  false "Company size"      example(Enterprise)
//
// @Success     200  {object} domain.BenchmarkEntry
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "benchmark_unavailable"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /benchmarks [get]
func (h *Handlers) GetBenchmark(c *gin.Context) {
	key := benchmarkKeyFromQuery(c)
	if key.Industry == "" {
		failField(c, http.StatusBadRequest, ErrCodeValidation, "industry", "is required")
		return
	}
	if key.ExperienceLevel == "" {
		failField(c, http.StatusBadRequest, ErrCodeValidation, "experience_level", "is required")
		return
	}
	if h.bench == nil {
		failErr(c, benchmark.ErrUnavailable)
		return
	}

	entry, err := h.bench.Lookup(c.Request.Context(), key)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, entry)
}
