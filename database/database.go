package database

import (
	"fmt"
	"os"
	"strings"

	"kudos-backend/models"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=kudos port=5432 sslmode=disable"

// Connect opens the ledger store. Unique violations are translated to
// gorm.ErrDuplicatedKey so callers can detect replays portably.
func Connect(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch strings.ToLower(driver) {
	case "", "postgres":
		if dsn == "" {
			dsn = defaultPostgresDSN
		}
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		if dsn == "" {
			dsn = "file:kudos.db"
		}
		db, err := gorm.Open(sqlite.Open(withForeignKeys(dsn)), cfg)
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer; serialize access instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// withForeignKeys turns on foreign key enforcement, which SQLite leaves off
// per connection unless asked.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Balance{},
		&models.LedgerEntry{},
		&models.Recognition{},
		&models.RewardCatalogItem{},
		&models.Redemption{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// CatalogSeed is the YAML layout of a reward catalog file.
type CatalogSeed struct {
	Rewards []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Points      int64  `yaml:"points"`
		Active      *bool  `yaml:"active"`
	} `yaml:"rewards"`
}

// SeedCatalog upserts the rewards listed in a YAML file, matching on name.
// Items are active unless the file says otherwise.
func SeedCatalog(db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var seed CatalogSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	items := make([]models.RewardCatalogItem, 0, len(seed.Rewards))
	for i, r := range seed.Rewards {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return 0, fmt.Errorf("catalog seed entry %d has no name", i)
		}
		if r.Points < 0 {
			return 0, fmt.Errorf("catalog seed entry %q has negative points", name)
		}
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		items = append(items, models.RewardCatalogItem{
			Name:        name,
			Description: r.Description,
			Points:      r.Points,
			IsActive:    active,
		})
	}
	if len(items) == 0 {
		return 0, nil
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "points", "is_active", "updated_at"}),
	}).Create(&items).Error
	if err != nil {
		return 0, fmt.Errorf("failed to seed catalog: %w", err)
	}
	return len(items), nil
}
