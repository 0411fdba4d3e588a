package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
)

func TestTrackAndListJobOffers(t *testing.T) {
	api := newTestAPI(t)
	path := "/salary/negotiation/job-42/offers"

	w := api.do(t, http.MethodPost, path, offerBody("Initial", 100000), "Idempotency-Key", "job-42-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	first := decode[domain.Offer](t, w)
	if first.JobID != "job-42" || first.Status != domain.OfferActive {
		t.Fatalf("offer = %+v", first)
	}

	w = api.do(t, http.MethodPost, path, offerBody("Initial", 100000), "Idempotency-Key", "job-42-1")
	if w.Code != http.StatusOK || decode[domain.Offer](t, w).ID != first.ID {
		t.Fatalf("replay status=%d body=%s", w.Code, w.Body.String())
	}

	body := offerBody("Initial", 100000)
	delete(body, "company")
	w = api.do(t, http.MethodPost, path, body)
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Field != "company" {
		t.Fatalf("missing company status=%d body=%s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	if offers := decode[ListOffersResponse](t, w).Offers; len(offers) != 1 {
		t.Fatalf("offers = %d", len(offers))
	}
	etag := w.Header().Get("ETag")
	if w := api.do(t, http.MethodGet, path, nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional status=%d", w.Code)
	}
}

func TestUpdateOfferStatus_Handler(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/salary/negotiation/job-1/offers", offerBody("Initial", 100000))
	o := decode[domain.Offer](t, w)
	path := "/salary/negotiation/job-1/offers/" + o.ID

	if w := api.do(t, http.MethodPatch, path, map[string]any{"status": "Pending"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status code=%d", w.Code)
	}
	w = api.do(t, http.MethodPatch, path, map[string]any{"status": "Accepted"})
	if w.Code != http.StatusOK || decode[domain.Offer](t, w).Status != domain.OfferAccepted {
		t.Fatalf("accept status=%d body=%s", w.Code, w.Body.String())
	}
	w = api.do(t, http.MethodPatch, path, map[string]any{"status": "Declined"})
	if w.Code != http.StatusConflict || decode[ErrorResponse](t, w).Code != ErrCodeInvalidTransition {
		t.Fatalf("leave accepted status=%d body=%s", w.Code, w.Body.String())
	}
	if w := api.do(t, http.MethodPatch, "/salary/negotiation/job-2/offers/"+o.ID, map[string]any{"status": "Declined"}); w.Code != http.StatusNotFound {
		t.Fatalf("wrong job status=%d", w.Code)
	}
}

func TestJobTiming_Handler(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, http.MethodGet, "/salary/negotiation/job-1/timing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("no offer status=%d", w.Code)
	}

	body := offerBody("Initial", 100000)
	body["deadline_date"] = time.Now().Add(10 * 24 * time.Hour).UTC().Format(time.RFC3339)
	o := decode[domain.Offer](t, api.do(t, http.MethodPost, "/salary/negotiation/job-1/offers", body))

	w := api.do(t, http.MethodGet, "/salary/negotiation/job-1/timing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	ts := decode[negotiation.TimingStrategy](t, w)
	if ts.OfferID != o.ID || ts.DeadlineDate == nil || ts.Urgency == "" {
		t.Fatalf("timing = %+v", ts)
	}
}

func TestJobScopedSessionViews(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, http.MethodGet, "/salary/negotiation/job-1/exercises", nil); w.Code != http.StatusNotFound {
		t.Fatalf("no session status=%d", w.Code)
	}
	api.createSession(t) // job-1

	w := api.do(t, http.MethodGet, "/salary/negotiation/job-1/exercises", nil)
	if w.Code != http.StatusOK || len(decode[ExercisesResponse](t, w).Exercises) == 0 {
		t.Fatalf("exercises status=%d body=%s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/salary/negotiation/job-1/script", map[string]any{"scenario": "Benefits Negotiation"})
	if w.Code != http.StatusCreated || decode[domain.Script](t, w).Scenario != "Benefits Negotiation" {
		t.Fatalf("script status=%d body=%s", w.Code, w.Body.String())
	}
}
