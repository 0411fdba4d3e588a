package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/events"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/playbook"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%s.db", uuid.NewString()))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakeBench struct {
	mu    sync.Mutex
	entry domain.BenchmarkEntry
	err   error
	keys  []domain.BenchmarkKey
}

func (f *fakeBench) Lookup(_ context.Context, key domain.BenchmarkKey) (domain.BenchmarkEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return domain.BenchmarkEntry{}, f.err
	}
	e := f.entry
	e.Key = key
	return e, nil
}

func techSenior() domain.BenchmarkEntry {
	return domain.BenchmarkEntry{
		Min:    100000,
		Median: 150000,
		Max:    210000,
		Percentiles: domain.Percentiles{
			P10: 110000, P25: 130000, P50: 150000, P75: 175000, P90: 200000,
		},
		SourceYear: 2026,
		Source:     "test",
	}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNegotiationService(t *testing.T, bench BenchmarkLookup) (*NegotiationService, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	svc := NewNegotiationService(newSvcDB(t), bench, playbook.NewCoach(playbook.Default()), rec, negotiation.DefaultSettings())
	svc.Now = func() time.Time { return fixedNow }
	return svc, rec
}

func sampleSession() SessionInput {
	return SessionInput{
		Company:         "Acme",
		Position:        "Backend Engineer",
		Industry:        "Technology",
		ExperienceLevel: "Senior",
		Location:        "Berlin",
		JobID:           "job-1",
		Goals: domain.NegotiationGoals{
			MinimumAcceptable: 140000,
			TargetSalary:      160000,
			IdealSalary:       f64(180000),
		},
	}
}

func sampleOffer(t string, base float64) OfferInput {
	received := fixedNow.Add(-48 * time.Hour)
	return OfferInput{
		Type:         t,
		Status:       "Active",
		BaseSalary:   base,
		SigningBonus: 5000,
		PTODays:      20,
		ReceivedDate: &received,
	}
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }
