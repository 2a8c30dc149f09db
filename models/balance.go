package models

import (
	"time"
)

// Balance is the per-user points total. TotalPoints always equals the sum of
// the user's ledger entry amounts and is never negative.
type Balance struct {
	UserID      string        `gorm:"primaryKey;size:64" json:"user_id"`
	TotalPoints int64         `gorm:"not null;check:total_points >= 0" json:"points"`
	History     []LedgerEntry `gorm:"foreignKey:UserID;references:UserID" json:"history,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
