package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrImmutableRecord is returned by hooks on append-only tables.
var ErrImmutableRecord = errors.New("record is immutable")

type EntryKind string

const (
	EntryKindEarned   EntryKind = "EARNED"
	EntryKindRedeemed EntryKind = "REDEEMED"
	EntryKindRefunded EntryKind = "REFUNDED"
)

type EntrySource string

const (
	SourceRecognition     EntrySource = "RECOGNITION"
	SourceRedemption      EntrySource = "REDEMPTION"
	SourceRefund          EntrySource = "REFUND"
	SourceAdminAdjustment EntrySource = "ADMIN_ADJUSTMENT"
)

func (s EntrySource) IsValid() bool {
	switch s {
	case SourceRecognition, SourceRedemption, SourceRefund, SourceAdminAdjustment:
		return true
	}
	return false
}

// LedgerEntry is one balance change. Entries are never updated or deleted;
// (user_id, source, reference_id) is unique so a retried operation cannot be applied twice.
// ID is assigned in commit order and gives the per-user history its order.
type LedgerEntry struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string      `gorm:"size:64;not null;index;uniqueIndex:idx_ledger_entries_reference,priority:1" json:"user_id"`
	Amount      int64       `gorm:"not null" json:"amount"`
	Kind        EntryKind   `gorm:"size:16;not null" json:"kind"`
	Source      EntrySource `gorm:"size:32;not null;uniqueIndex:idx_ledger_entries_reference,priority:2" json:"source"`
	ReferenceID *string     `gorm:"size:64;uniqueIndex:idx_ledger_entries_reference,priority:3" json:"reference_id,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `gorm:"index" json:"timestamp"`
}

func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}
