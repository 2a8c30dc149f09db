package services

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"kudos-backend/database"
	"kudos-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordingQueue struct {
	mu    sync.Mutex
	items []Notification
}

func (q *recordingQueue) Enqueue(n Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return true
}

func (q *recordingQueue) all() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

func seedReward(t *testing.T, db *gorm.DB, name string, points int64, active bool) *models.RewardCatalogItem {
	t.Helper()
	item := &models.RewardCatalogItem{Name: name, Points: points, IsActive: active}
	require.NoError(t, db.Create(item).Error)
	return item
}

// failLedgerWrites makes every insert into ledger_entries fail until the returned func is called.
func failLedgerWrites(t *testing.T, db *gorm.DB) func() {
	t.Helper()
	name := "test:fail_ledger_" + uuid.NewString()
	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == "ledger_entries" {
			tx.AddError(errors.New("ledger store unavailable"))
		}
	})
	require.NoError(t, err)
	return func() {
		require.NoError(t, db.Callback().Create().Remove(name))
	}
}

func requireConsistent(t *testing.T, ledger *LedgerService, userID string) *Reconciliation {
	t.Helper()
	rec, err := ledger.Reconcile(contextBG(), userID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "total %d != ledger sum %d", rec.TotalPoints, rec.LedgerSum)
	require.GreaterOrEqual(t, rec.TotalPoints, int64(0))
	return rec
}
