package services

import (
	"context"

	"kudos-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the read contract of the rewards catalog.
type Catalog interface {
	GetItem(ctx context.Context, rewardID uuid.UUID) (*models.RewardCatalogItem, error)
}

// TxCatalog is implemented by catalogs stored alongside the ledger. The
// redemption workflow uses it to re-read the item inside its own transaction.
type TxCatalog interface {
	GetItemTx(tx *gorm.DB, rewardID uuid.UUID) (*models.RewardCatalogItem, error)
}

// GormCatalog reads reward_catalog_items.
type GormCatalog struct {
	DB *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{DB: db}
}

func (c *GormCatalog) GetItem(ctx context.Context, rewardID uuid.UUID) (*models.RewardCatalogItem, error) {
	return c.find(c.DB.WithContext(ctx), rewardID)
}

// GetItemTx holds a share lock on the row so a concurrent price or activation
// change waits for the redemption to commit.
func (c *GormCatalog) GetItemTx(tx *gorm.DB, rewardID uuid.UUID) (*models.RewardCatalogItem, error) {
	return c.find(tx.Clauses(clause.Locking{Strength: "SHARE"}), rewardID)
}

func (c *GormCatalog) find(db *gorm.DB, rewardID uuid.UUID) (*models.RewardCatalogItem, error) {
	var item models.RewardCatalogItem
	res := db.Where("id = ?", rewardID).Limit(1).Find(&item)
	if res.Error != nil {
		return nil, internal("failed to load reward", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRewardNotFound
	}
	return &item, nil
}

// ListActive returns redeemable rewards, cheapest first.
func (c *GormCatalog) ListActive(ctx context.Context) ([]models.RewardCatalogItem, error) {
	items := []models.RewardCatalogItem{}
	if err := c.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("points ASC, name ASC").
		Find(&items).Error; err != nil {
		return nil, internal("failed to list rewards", err)
	}
	return items, nil
}
