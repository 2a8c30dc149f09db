package services

import (
	"context"
	"errors"
	"strings"

	"kudos-backend/metrics"
	"kudos-backend/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns every balance mutation. All changes go through a single
// transaction that appends the ledger entry and moves total_points together.
type LedgerService struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func NewLedgerService(db *gorm.DB, log logrus.FieldLogger) *LedgerService {
	return &LedgerService{DB: db, Log: log}
}

// entry describes one requested ledger change. Amount is always positive here;
// the sign is derived from Kind.
type entry struct {
	UserID      string
	Amount      int64
	Kind        models.EntryKind
	Source      models.EntrySource
	ReferenceID string
	Description string
}

func (e entry) signedAmount() int64 {
	if e.Kind == models.EntryKindRedeemed {
		return -e.Amount
	}
	return e.Amount
}

func (e entry) fields() logrus.Fields {
	return logrus.Fields{
		"user_id":      e.UserID,
		"amount":       e.Amount,
		"kind":         e.Kind,
		"source":       e.Source,
		"reference_id": e.ReferenceID,
	}
}

func (e entry) validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return invalidInput("user_id is required")
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !e.Source.IsValid() {
		return invalidInput("unknown ledger source %q", e.Source)
	}
	return nil
}

type outcome string

const (
	outcomeApplied   outcome = "applied"
	outcomeDuplicate outcome = "duplicate"
	outcomeRejected  outcome = "rejected"
	outcomeError     outcome = "error"
)

// Credit adds points to a user's balance and returns the new total. With a
// reference, a repeated call for the same source is a no-op.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, source models.EntrySource, referenceID string) (int64, error) {
	return s.apply(ctx, "credit", entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.EntryKindEarned,
		Source:      source,
		ReferenceID: referenceID,
	})
}

// Debit removes points if and only if the balance covers them at the instant
// the update is applied.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, source models.EntrySource, referenceID string) (int64, error) {
	return s.apply(ctx, "debit", entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.EntryKindRedeemed,
		Source:      source,
		ReferenceID: referenceID,
	})
}

// Refund returns points previously debited for the referenced operation.
func (s *LedgerService) Refund(ctx context.Context, userID string, amount int64, referenceID string) (int64, error) {
	return s.apply(ctx, "refund", refundEntry(userID, amount, referenceID))
}

// Adjust applies an administrative correction. Positive amounts credit,
// negative amounts debit and are subject to the same balance check.
func (s *LedgerService) Adjust(ctx context.Context, userID string, amount int64, referenceID, description string) (int64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	e := entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.EntryKindEarned,
		Source:      models.SourceAdminAdjustment,
		ReferenceID: referenceID,
		Description: description,
	}
	if amount < 0 {
		e.Amount = -amount
		e.Kind = models.EntryKindRedeemed
	}
	return s.apply(ctx, "adjust", e)
}

func refundEntry(userID string, amount int64, referenceID string) entry {
	return entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.EntryKindRefunded,
		Source:      models.SourceRefund,
		ReferenceID: referenceID,
	}
}

func (s *LedgerService) apply(ctx context.Context, op string, e entry) (int64, error) {
	if err := e.validate(); err != nil {
		metrics.RecordLedgerOperation(op, string(outcomeRejected))
		return 0, err
	}

	var (
		balance int64
		result  outcome
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, result, err = s.applyTx(tx, e)
		return err
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			metrics.RecordLedgerOperation(op, string(outcomeError))
			s.Log.WithFields(e.fields()).WithError(err).Error("ledger operation failed")
			return 0, internal(op+" failed", err)
		}
		metrics.RecordLedgerOperation(op, string(outcomeRejected))
		return 0, err
	}

	metrics.RecordLedgerOperation(op, string(result))
	if result == outcomeApplied {
		metrics.RecordLedgerPoints(string(e.Kind), e.Amount)
	}
	s.Log.WithFields(e.fields()).WithField("balance", balance).Debugf("ledger %s %s", op, result)
	return balance, nil
}

// applyTx performs one ledger change inside tx. Callers that compose ledger
// changes with other writes (redemptions) pass their own transaction.
func (s *LedgerService) applyTx(tx *gorm.DB, e entry) (int64, outcome, error) {
	if err := e.validate(); err != nil {
		return 0, outcomeRejected, err
	}

	row := models.LedgerEntry{
		UserID:      e.UserID,
		Amount:      e.signedAmount(),
		Kind:        e.Kind,
		Source:      e.Source,
		Description: e.Description,
	}
	if e.ReferenceID != "" {
		ref := e.ReferenceID
		row.ReferenceID = &ref
	}

	// Entries reference the balance row, so it has to exist before the insert.
	// A failed debit rolls the empty row back with the rest of the transaction.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Balance{UserID: e.UserID}).Error; err != nil {
		return 0, outcomeError, err
	}

	// The unique (user_id, source, reference_id) index turns a replay into a no-op insert.
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			balance, err := balanceTx(tx, e.UserID)
			return balance, outcomeDuplicate, err
		}
		return 0, outcomeError, res.Error
	}
	if res.RowsAffected == 0 {
		balance, err := balanceTx(tx, e.UserID)
		return balance, outcomeDuplicate, err
	}

	if e.Kind == models.EntryKindRedeemed {
		// Check and decrement in one statement; the row lock held by a concurrent
		// debit forces this WHERE to be re-evaluated against the committed total.
		res = tx.Model(&models.Balance{}).
			Where("user_id = ? AND total_points >= ?", e.UserID, e.Amount).
			Update("total_points", gorm.Expr("total_points - ?", e.Amount))
		if res.Error != nil {
			return 0, outcomeError, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, outcomeRejected, ErrInsufficientBalance
		}
	} else {
		res = tx.Model(&models.Balance{}).
			Where("user_id = ?", e.UserID).
			Update("total_points", gorm.Expr("total_points + ?", e.Amount))
		if res.Error != nil {
			return 0, outcomeError, res.Error
		}
	}

	balance, err := balanceTx(tx, e.UserID)
	if err != nil {
		return 0, outcomeError, err
	}
	return balance, outcomeApplied, nil
}

func balanceTx(tx *gorm.DB, userID string) (int64, error) {
	var bal models.Balance
	res := tx.Where("user_id = ?", userID).Limit(1).Find(&bal)
	if res.Error != nil {
		return 0, res.Error
	}
	return bal.TotalPoints, nil
}

// GetBalance returns the user's total, or 0 for a user with no ledger record.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, invalidInput("user_id is required")
	}
	balance, err := balanceTx(s.DB.WithContext(ctx), userID)
	if err != nil {
		return 0, internal("failed to load balance", err)
	}
	return balance, nil
}

// History returns a page of the user's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, userID string, page, limit int) ([]models.LedgerEntry, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, invalidInput("user_id is required")
	}
	page, limit = normalizePage(page, limit)

	db := s.DB.WithContext(ctx).Model(&models.LedgerEntry{}).Where("user_id = ?", userID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, internal("failed to count ledger entries", err)
	}

	entries := []models.LedgerEntry{}
	if err := db.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, internal("failed to load ledger entries", err)
	}
	return entries, total, nil
}

// Reconciliation compares the stored total with the sum of ledger entries.
type Reconciliation struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
	LedgerSum   int64  `json:"ledger_sum"`
	EntryCount  int64  `json:"entry_count"`
	Consistent  bool   `json:"consistent"`
}

func (s *LedgerService) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidInput("user_id is required")
	}

	var rec Reconciliation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec.TotalPoints, err = balanceTx(tx, userID)
		if err != nil {
			return err
		}
		var agg struct {
			Sum   int64
			Count int64
		}
		if err := tx.Model(&models.LedgerEntry{}).
			Select("COALESCE(SUM(amount), 0) AS sum, COUNT(*) AS count").
			Where("user_id = ?", userID).
			Scan(&agg).Error; err != nil {
			return err
		}
		rec.LedgerSum = agg.Sum
		rec.EntryCount = agg.Count
		return nil
	})
	if err != nil {
		return nil, internal("failed to reconcile balance", err)
	}

	rec.UserID = userID
	rec.Consistent = rec.TotalPoints == rec.LedgerSum && rec.TotalPoints >= 0
	if !rec.Consistent {
		s.Log.WithFields(logrus.Fields{
			"user_id":      userID,
			"total_points": rec.TotalPoints,
			"ledger_sum":   rec.LedgerSum,
		}).Error("balance does not match ledger")
	}
	return &rec, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// MaxPage bounds the offset so (page-1)*limit cannot overflow.
	MaxPage         = 100000
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
