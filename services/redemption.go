package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kudos-backend/metrics"
	"kudos-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RedemptionService drives the redemption state machine. It is the only
// caller of debits on behalf of users.
type RedemptionService struct {
	DB            *gorm.DB
	Ledger        *LedgerService
	Catalog       Catalog
	Notifications NotificationQueue
	Log           logrus.FieldLogger
}

func NewRedemptionService(db *gorm.DB, ledger *LedgerService, catalog Catalog, queue NotificationQueue, log logrus.FieldLogger) *RedemptionService {
	if queue == nil {
		queue = discardQueue{}
	}
	return &RedemptionService{
		DB:            db,
		Ledger:        ledger,
		Catalog:       catalog,
		Notifications: queue,
		Log:           log,
	}
}

// RequestRedemption creates a PENDING redemption and debits its cost in the
// same transaction. If the debit fails no redemption row survives.
func (s *RedemptionService) RequestRedemption(ctx context.Context, userID string, rewardID uuid.UUID) (*models.Redemption, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("user_id is required")
	}
	if rewardID == uuid.Nil {
		return nil, invalidInput("reward_id is required")
	}

	item, err := s.Catalog.GetItem(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, ErrRewardUnavailable
	}

	balance, err := s.Ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < item.Points {
		return nil, ErrInsufficientBalance
	}

	var redemption models.Redemption
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cost := item.Points
		if tc, ok := s.Catalog.(TxCatalog); ok {
			fresh, err := tc.GetItemTx(tx, rewardID)
			if err != nil {
				return err
			}
			if !fresh.IsActive {
				return ErrRewardUnavailable
			}
			cost = fresh.Points
		}

		redemption = models.Redemption{
			UserID:      userID,
			RewardID:    rewardID,
			PointsSpent: cost,
			Status:      models.RedemptionStatusPending,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return err
		}
		if cost == 0 {
			return nil
		}
		_, _, err := s.Ledger.applyTx(tx, entry{
			UserID:      userID,
			Amount:      cost,
			Kind:        models.EntryKindRedeemed,
			Source:      models.SourceRedemption,
			ReferenceID: redemption.ID.String(),
		})
		return err
	})
	if err != nil {
		metrics.RecordLedgerOperation("debit", ledgerResult(err))
		if KindOf(err) == KindInternal {
			s.Log.WithFields(logrus.Fields{"user_id": userID, "reward_id": rewardID}).WithError(err).Error("failed to create redemption")
			return nil, internal("failed to create redemption", err)
		}
		return nil, err
	}

	if redemption.PointsSpent > 0 {
		metrics.RecordLedgerOperation("debit", string(outcomeApplied))
		metrics.RecordLedgerPoints(string(models.EntryKindRedeemed), redemption.PointsSpent)
	}
	metrics.RecordRedemptionTransition(string(models.RedemptionStatusPending))
	s.Log.WithFields(logrus.Fields{
		"user_id":       userID,
		"redemption_id": redemption.ID,
		"points":        redemption.PointsSpent,
	}).Info("redemption requested")
	return &redemption, nil
}

func ledgerResult(err error) string {
	if KindOf(err) == KindInternal {
		return string(outcomeError)
	}
	return string(outcomeRejected)
}

// Approve moves a PENDING redemption to APPROVED. It has no balance effect.
func (s *RedemptionService) Approve(ctx context.Context, redemptionID uuid.UUID, approverID string) (*models.Redemption, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, invalidInput("approver is required")
	}
	now := time.Now()
	red, changed, err := s.transition(ctx, redemptionID, models.RedemptionStatusApproved, map[string]interface{}{
		"approved_by": approverID,
		"approved_at": now,
	}, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(red, "Redemption approved", "Your reward redemption has been approved.")
	}
	return red, nil
}

// Reject moves a PENDING or APPROVED redemption to REJECTED and refunds the
// points spent. Rejecting an already rejected redemption changes nothing.
func (s *RedemptionService) Reject(ctx context.Context, redemptionID uuid.UUID, reason string) (*models.Redemption, error) {
	now := time.Now()
	red, changed, err := s.transition(ctx, redemptionID, models.RedemptionStatusRejected, map[string]interface{}{
		"rejection_reason": strings.TrimSpace(reason),
		"rejected_at":      now,
	}, func(tx *gorm.DB, r *models.Redemption) error {
		if r.PointsSpent == 0 {
			return nil
		}
		_, _, err := s.Ledger.applyTx(tx, refundEntry(r.UserID, r.PointsSpent, r.ID.String()))
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		if red.PointsSpent > 0 {
			metrics.RecordLedgerOperation("refund", string(outcomeApplied))
			metrics.RecordLedgerPoints(string(models.EntryKindRefunded), red.PointsSpent)
		}
		msg := fmt.Sprintf("Your reward redemption was rejected. %d points have been returned to your balance.", red.PointsSpent)
		if red.RejectionReason != "" {
			msg = fmt.Sprintf("Your reward redemption was rejected (%s). %d points have been returned to your balance.", red.RejectionReason, red.PointsSpent)
		}
		s.notify(red, "Redemption rejected", msg)
	}
	return red, nil
}

// Fulfill moves an APPROVED redemption to its terminal FULFILLED state.
func (s *RedemptionService) Fulfill(ctx context.Context, redemptionID uuid.UUID, notes string) (*models.Redemption, error) {
	now := time.Now()
	red, changed, err := s.transition(ctx, redemptionID, models.RedemptionStatusFulfilled, map[string]interface{}{
		"fulfillment_notes": strings.TrimSpace(notes),
		"fulfilled_at":      now,
	}, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(red, "Reward on its way", "Your reward redemption has been fulfilled.")
	}
	return red, nil
}

// transition applies one state change under a row lock. The status update is
// conditional on the status that was read, so a concurrent transition cannot
// be applied twice. effect runs in the same transaction after the update.
func (s *RedemptionService) transition(
	ctx context.Context,
	redemptionID uuid.UUID,
	to models.RedemptionStatus,
	updates map[string]interface{},
	effect func(tx *gorm.DB, r *models.Redemption) error,
) (*models.Redemption, bool, error) {
	if redemptionID == uuid.Nil {
		return nil, false, invalidInput("redemption id is required")
	}

	var (
		red     models.Redemption
		changed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", redemptionID).Limit(1).Find(&red)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRedemptionNotFound
		}

		if red.Status == to && to == models.RedemptionStatusRejected {
			return nil
		}
		if !models.IsValidTransition(red.Status, to) {
			return invalidTransition(string(red.Status), string(to))
		}

		from := red.Status
		updates["status"] = to
		res = tx.Model(&models.Redemption{}).
			Where("id = ? AND status = ?", redemptionID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidTransition(string(from), string(to))
		}

		if err := tx.Where("id = ?", redemptionID).First(&red).Error; err != nil {
			return err
		}
		if effect != nil {
			if err := effect(tx, &red); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			s.Log.WithFields(logrus.Fields{"redemption_id": redemptionID, "status": to}).WithError(err).Error("redemption transition failed")
			return nil, false, internal("failed to update redemption", err)
		}
		return nil, false, err
	}

	if changed {
		metrics.RecordRedemptionTransition(string(to))
		s.Log.WithFields(logrus.Fields{
			"redemption_id": red.ID,
			"user_id":       red.UserID,
			"status":        red.Status,
		}).Info("redemption updated")
	}
	return &red, changed, nil
}

func (s *RedemptionService) notify(r *models.Redemption, title, message string) {
	s.Notifications.Enqueue(Notification{
		UserID:  r.UserID,
		Title:   title,
		Message: message,
		Data: map[string]string{
			"type":          "redemption",
			"redemption_id": r.ID.String(),
			"status":        string(r.Status),
		},
	})
}

// Get loads a single redemption.
func (s *RedemptionService) Get(ctx context.Context, redemptionID uuid.UUID) (*models.Redemption, error) {
	var red models.Redemption
	res := s.DB.WithContext(ctx).Where("id = ?", redemptionID).Limit(1).Find(&red)
	if res.Error != nil {
		return nil, internal("failed to load redemption", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRedemptionNotFound
	}
	return &red, nil
}

// RedemptionFilter narrows List. Empty fields match everything.
type RedemptionFilter struct {
	UserID string
	Status models.RedemptionStatus
}

// List returns a page of redemptions, newest first, and the total match count.
func (s *RedemptionService) List(ctx context.Context, filter RedemptionFilter, page, limit int) ([]models.Redemption, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, invalidInput("unknown redemption status %q", filter.Status)
	}
	page, limit = normalizePage(page, limit)

	db := s.DB.WithContext(ctx).Model(&models.Redemption{})
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, internal("failed to count redemptions", err)
	}

	redemptions := []models.Redemption{}
	if err := db.Order("created_at DESC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&redemptions).Error; err != nil {
		return nil, 0, internal("failed to list redemptions", err)
	}
	return redemptions, total, nil
}
