package domain

import "time"

// Idempotency records the resource produced by a POST carrying an
// Idempotency-Key, keyed by (user_id, scope, key). Scope is the negotiation
// id or job id the request was addressed to. A retry with the same key
// returns the stored resource instead of appending a second offer.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	ResourceID string    `gorm:"type:varchar(36);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
