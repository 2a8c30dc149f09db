package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "PENDING"
	RedemptionStatusApproved  RedemptionStatus = "APPROVED"
	RedemptionStatusRejected  RedemptionStatus = "REJECTED"
	RedemptionStatusFulfilled RedemptionStatus = "FULFILLED"
)

func (s RedemptionStatus) IsValid() bool {
	_, ok := AllowedTransitions[s]
	return ok
}

// Redemption exchanges points for a catalog reward. PointsSpent is fixed when
// the redemption is requested. Rows are never deleted.
type Redemption struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID           string           `gorm:"size:64;not null;index" json:"user_id"`
	RewardID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"reward_id"`
	PointsSpent      int64            `gorm:"not null" json:"points_spent"`
	Status           RedemptionStatus `gorm:"size:16;not null;index" json:"status"`
	ApprovedBy       *string          `gorm:"size:64" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
	RejectedAt       *time.Time       `json:"rejected_at,omitempty"`
	FulfillmentNotes string           `json:"fulfillment_notes,omitempty"`
	FulfilledAt      *time.Time       `json:"fulfilled_at,omitempty"`
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (r *Redemption) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RedemptionStatusPending
	}
	return nil
}

// AllowedTransitions defines the valid redemption state machine.
var AllowedTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionStatusPending:   {RedemptionStatusApproved, RedemptionStatusRejected},
	RedemptionStatusApproved:  {RedemptionStatusRejected, RedemptionStatusFulfilled},
	RedemptionStatusRejected:  {},
	RedemptionStatusFulfilled: {},
}

// IsValidTransition checks if a status transition is allowed.
func IsValidTransition(from, to RedemptionStatus) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// SourceStatuses returns every status that may transition to the given one.
func SourceStatuses(to RedemptionStatus) []RedemptionStatus {
	var from []RedemptionStatus
	for _, s := range []RedemptionStatus{
		RedemptionStatusPending,
		RedemptionStatusApproved,
		RedemptionStatusRejected,
		RedemptionStatusFulfilled,
	} {
		if IsValidTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
