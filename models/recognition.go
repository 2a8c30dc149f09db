package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Badge string

const (
	BadgeTeamwork      Badge = "TEAMWORK"
	BadgeInnovation    Badge = "INNOVATION"
	BadgeLeadership    Badge = "LEADERSHIP"
	BadgeCustomerFocus Badge = "CUSTOMER_FOCUS"
	BadgeExcellence    Badge = "EXCELLENCE"
	BadgeHelpingHand   Badge = "HELPING_HAND"
)

// Badges lists every badge a recognition may carry.
var Badges = []Badge{
	BadgeTeamwork,
	BadgeInnovation,
	BadgeLeadership,
	BadgeCustomerFocus,
	BadgeExcellence,
	BadgeHelpingHand,
}

func (b Badge) IsValid() bool {
	for _, known := range Badges {
		if b == known {
			return true
		}
	}
	return false
}

// Recognition is a peer-to-peer appreciation. It is immutable once created.
type Recognition struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	SenderID   string    `gorm:"size:64;not null;index" json:"sender_id"`
	ReceiverID string    `gorm:"size:64;not null;index" json:"receiver_id"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	Badge      Badge     `gorm:"size:32" json:"badge,omitempty"`
	Points     int64     `gorm:"not null;check:points >= 0" json:"points"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (r *Recognition) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Recognition) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

func (r *Recognition) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}
