package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// StatsSource queries a statistics API that answers
// GET {endpoint}?industry=..&experience_level=.. with a JSON distribution.
// A 404 means the pair is not covered.
type StatsSource struct {
	Endpoint string
	client   *http.Client
}

// NewStatsSource constructs a source with a client bounded by timeout.
func NewStatsSource(endpoint string, timeout time.Duration) *StatsSource {
	return &StatsSource{
		Endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// statsResponse mirrors the statistics API payload.
type statsResponse struct {
	Min         float64             `json:"min"`
	Median      float64             `json:"median"`
	Max         float64             `json:"max"`
	Benefits    float64             `json:"benefits"`
	Percentiles *domain.Percentiles `json:"percentiles"`
	SourceYear  int                 `json:"source_year"`
}

// Name implements Source.
func (s *StatsSource) Name() string { return "statistics_api" }

// Base implements Source.
func (s *StatsSource) Base(ctx context.Context, industry, level string) (Base, error) {
	params := url.Values{}
	params.Set("industry", industry)
	params.Set("experience_level", level)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Base{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Base{}, fmt.Errorf("%w: http GET: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Base{}, ErrNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Base{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Base{}, fmt.Errorf("%w: statistics API returned %d", ErrUnavailable, resp.StatusCode)
	}

	var out statsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Base{}, fmt.Errorf("%w: json unmarshal: %v", ErrUnavailable, err)
	}
	return Base{
		Min:         out.Min,
		Median:      out.Median,
		Max:         out.Max,
		Benefits:    out.Benefits,
		Percentiles: out.Percentiles,
		SourceYear:  out.SourceYear,
	}, nil
}
