package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kudos-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type redemptionFixture struct {
	db       *gorm.DB
	ledger   *LedgerService
	catalog  *GormCatalog
	queue    *recordingQueue
	workflow *RedemptionService
}

func newRedemptionFixture(t *testing.T) *redemptionFixture {
	db := newTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	catalog := NewGormCatalog(db)
	queue := &recordingQueue{}
	return &redemptionFixture{
		db:       db,
		ledger:   ledger,
		catalog:  catalog,
		queue:    queue,
		workflow: NewRedemptionService(db, ledger, catalog, queue, testLogger()),
	}
}

func (f *redemptionFixture) fund(t *testing.T, userID string, points int64) {
	_, err := f.ledger.Credit(context.Background(), userID, points, models.SourceAdminAdjustment, "seed-"+userID)
	require.NoError(t, err)
}

func (f *redemptionFixture) redemptionCount(userID string) int64 {
	var count int64
	f.db.Model(&models.Redemption{}).Where("user_id = ?", userID).Count(&count)
	return count
}

func TestRequestRedemptionDebitsCost(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	reward := seedReward(t, f.db, "Headphones", 60, true)
	f.fund(t, "alice", 100)

	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusPending, red.Status)
	assert.Equal(t, int64(60), red.PointsSpent)
	assert.Equal(t, reward.ID, red.RewardID)

	balance, err := f.ledger.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	var debit models.LedgerEntry
	require.NoError(t, f.db.Where("source = ? AND reference_id = ?", models.SourceRedemption, red.ID.String()).First(&debit).Error)
	assert.Equal(t, int64(-60), debit.Amount)
	assert.Equal(t, models.EntryKindRedeemed, debit.Kind)
	requireConsistent(t, f.ledger, "alice")
}

func TestRequestRedemptionInsufficientBalance(t *testing.T) {
	f := newRedemptionFixture(t)
	reward := seedReward(t, f.db, "Mug", 50, true)

	_, err := f.workflow.RequestRedemption(context.Background(), "alice", reward.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, f.redemptionCount("alice"))
}

func TestRequestRedemptionUnknownReward(t *testing.T) {
	f := newRedemptionFixture(t)
	f.fund(t, "alice", 100)
	_, err := f.workflow.RequestRedemption(context.Background(), "alice", uuid.New())
	assert.ErrorIs(t, err, ErrRewardNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRequestRedemptionInactiveReward(t *testing.T) {
	f := newRedemptionFixture(t)
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Retired", 10, false)

	_, err := f.workflow.RequestRedemption(context.Background(), "alice", reward.ID)
	assert.ErrorIs(t, err, ErrRewardUnavailable)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Zero(t, f.redemptionCount("alice"))
}

func TestRequestRedemptionValidatesInput(t *testing.T) {
	f := newRedemptionFixture(t)
	_, err := f.workflow.RequestRedemption(context.Background(), "", uuid.New())
	assert.Equal(t, KindInvalidInput, KindOf(err))
	_, err = f.workflow.RequestRedemption(context.Background(), "alice", uuid.Nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

// staleCatalog returns a snapshot that no longer matches the stored item.
type staleCatalog struct {
	*GormCatalog
	snapshot models.RewardCatalogItem
}

func (c *staleCatalog) GetItem(ctx context.Context, rewardID uuid.UUID) (*models.RewardCatalogItem, error) {
	item := c.snapshot
	return &item, nil
}

func TestRequestRedemptionRevalidatesInsideTransaction(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 200)
	reward := seedReward(t, f.db, "Jacket", 40, true)

	snapshot := *reward
	require.NoError(t, f.db.Model(reward).Updates(map[string]interface{}{"points": 70}).Error)
	f.workflow.Catalog = &staleCatalog{GormCatalog: f.catalog, snapshot: snapshot}

	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), red.PointsSpent, "cost must come from the item read with the debit")

	require.NoError(t, f.db.Model(reward).Update("is_active", false).Error)
	_, err = f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	assert.ErrorIs(t, err, ErrRewardUnavailable)
	assert.Equal(t, int64(1), f.redemptionCount("alice"))
}

func TestRequestRedemptionPriceRaisedPastBalanceLeavesNoOrphan(t *testing.T) {
	f := newRedemptionFixture(t)
	f.fund(t, "alice", 50)
	reward := seedReward(t, f.db, "Bike", 50, true)
	snapshot := *reward
	require.NoError(t, f.db.Model(reward).Update("points", 80).Error)
	f.workflow.Catalog = &staleCatalog{GormCatalog: f.catalog, snapshot: snapshot}

	_, err := f.workflow.RequestRedemption(context.Background(), "alice", reward.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, f.redemptionCount("alice"))
	requireConsistent(t, f.ledger, "alice")
}

func TestPointsSpentSurvivesPriceChange(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Book", 60, true)

	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(reward).Update("points", 10).Error)

	rejected, err := f.workflow.Reject(ctx, red.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, int64(60), rejected.PointsSpent)

	balance, _ := f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance)
}

func TestConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Voucher", 60, true)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(1), f.redemptionCount("alice"))
	rec := requireConsistent(t, f.ledger, "alice")
	assert.Equal(t, int64(40), rec.TotalPoints)
}

func TestRedeemThenRejectRestoresBalance(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Speaker", 60, true)

	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	balance, _ := f.ledger.GetBalance(ctx, "alice")
	require.Equal(t, int64(40), balance)

	rejected, err := f.workflow.Reject(ctx, red.ID, "budget")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusRejected, rejected.Status)
	assert.Equal(t, "budget", rejected.RejectionReason)
	assert.NotNil(t, rejected.RejectedAt)

	balance, _ = f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance)

	again, err := f.workflow.Reject(ctx, red.ID, "second time")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusRejected, again.Status)
	assert.Equal(t, "budget", again.RejectionReason)

	balance, _ = f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance, "second reject must not refund again")

	var refunds int64
	f.db.Model(&models.LedgerEntry{}).Where("source = ?", models.SourceRefund).Count(&refunds)
	assert.Equal(t, int64(1), refunds)
	requireConsistent(t, f.ledger, "alice")
}

func TestConcurrentRejectsRefundOnce(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Lamp", 30, true)
	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.workflow.Reject(ctx, red.ID, "dup"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, _ := f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance)
}

func TestApproveAndFulfill(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Gift card", 50, true)
	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)

	approved, err := f.workflow.Approve(ctx, red.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	balance, _ := f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(50), balance, "approval has no balance effect")

	fulfilled, err := f.workflow.Fulfill(ctx, red.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusFulfilled, fulfilled.Status)
	assert.Equal(t, "shipped", fulfilled.FulfillmentNotes)
	assert.NotNil(t, fulfilled.FulfilledAt)

	_, err = f.workflow.Reject(ctx, red.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.workflow.Approve(ctx, red.ID, "admin-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	statuses := []string{}
	for _, n := range f.queue.all() {
		statuses = append(statuses, n.Data["status"])
	}
	assert.Equal(t, []string{"APPROVED", "FULFILLED"}, statuses)
}

func TestRejectApprovedRefunds(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Hoodie", 70, true)
	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, red.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.workflow.Reject(ctx, red.ID, "supplier cancelled")
	require.NoError(t, err)
	balance, _ := f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance)
}

func TestInvalidTransitions(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Pen", 5, true)
	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)

	_, err = f.workflow.Fulfill(ctx, red.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot be fulfilled")

	_, err = f.workflow.Approve(ctx, red.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, red.ID, "admin-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.workflow.Approve(ctx, red.ID, "")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = f.workflow.Approve(ctx, uuid.New(), "admin-1")
	assert.ErrorIs(t, err, ErrRedemptionNotFound)
	_, err = f.workflow.Reject(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, ErrRedemptionNotFound)
}

func TestZeroCostRedemption(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	reward := seedReward(t, f.db, "Sticker", 0, true)

	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), red.PointsSpent)

	_, err = f.workflow.Reject(ctx, red.ID, "")
	require.NoError(t, err)

	var entries int64
	f.db.Model(&models.LedgerEntry{}).Where("user_id = ?", "alice").Count(&entries)
	assert.Zero(t, entries)
}

func TestRejectRefundFailureKeepsStatus(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	reward := seedReward(t, f.db, "Desk", 60, true)
	red, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)

	restore := failLedgerWrites(t, f.db)
	_, err = f.workflow.Reject(ctx, red.ID, "no")
	assert.Equal(t, KindInternal, KindOf(err))
	restore()

	current, err := f.workflow.Get(ctx, red.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusPending, current.Status, "failed refund must roll back the transition")

	_, err = f.workflow.Reject(ctx, red.ID, "no")
	require.NoError(t, err)
	balance, _ := f.ledger.GetBalance(ctx, "alice")
	assert.Equal(t, int64(100), balance)
}

func TestGetAndListRedemptions(t *testing.T) {
	f := newRedemptionFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)
	reward := seedReward(t, f.db, "Cap", 10, true)

	a1, err := f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	_, err = f.workflow.RequestRedemption(ctx, "alice", reward.ID)
	require.NoError(t, err)
	_, err = f.workflow.RequestRedemption(ctx, "bob", reward.ID)
	require.NoError(t, err)
	_, err = f.workflow.Reject(ctx, a1.ID, "")
	require.NoError(t, err)

	got, err := f.workflow.Get(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusRejected, got.Status)

	_, err = f.workflow.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRedemptionNotFound)

	list, total, err := f.workflow.List(ctx, RedemptionFilter{UserID: "alice"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, total, err = f.workflow.List(ctx, RedemptionFilter{Status: models.RedemptionStatusPending}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, r := range list {
		assert.Equal(t, models.RedemptionStatusPending, r.Status)
	}

	list, total, err = f.workflow.List(ctx, RedemptionFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	_, _, err = f.workflow.List(ctx, RedemptionFilter{Status: "CANCELLED"}, 1, 10)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
