package repo

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// newRepoDB opens a file-backed SQLite database in a temp dir. When migrate
// is true every table is created.
func newRepoDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newSession(userID, jobID string) *domain.NegotiationSession {
	return &domain.NegotiationSession{
		UserID:   userID,
		JobID:    jobID,
		Company:  "Acme",
		Position: "Backend Engineer",
		Goals:    domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000},
	}
}

func f64(v float64) *float64 { return &v }
