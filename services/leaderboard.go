package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kudos-backend/metrics"
	"kudos-backend/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Period selects the window a leaderboard is computed over.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periodWindows = map[Period]time.Duration{
	PeriodDay:   24 * time.Hour,
	PeriodWeek:  7 * 24 * time.Hour,
	PeriodMonth: 30 * 24 * time.Hour,
	PeriodYear:  365 * 24 * time.Hour,
}

// ParsePeriod accepts the period names case-insensitively; empty means all time.
func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" || p == PeriodAll {
		return PeriodAll, nil
	}
	if _, ok := periodWindows[p]; !ok {
		return "", invalidInput("unknown period %q", raw)
	}
	return p, nil
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// LeaderboardCache stores computed leaderboards. Staleness is acceptable.
type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]LeaderboardEntry, bool, error)
	Set(ctx context.Context, key string, entries []LeaderboardEntry) error
}

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// LeaderboardService ranks users by points. It only reads.
type LeaderboardService struct {
	DB    *gorm.DB
	Cache LeaderboardCache
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewLeaderboardService(db *gorm.DB, cache LeaderboardCache, log logrus.FieldLogger) *LeaderboardService {
	return &LeaderboardService{DB: db, Cache: cache, Log: log, Now: time.Now}
}

// Rank returns up to limit entries sorted by points descending, ties broken by
// ascending user id. Ranks are 1-based positions in that order.
func (s *LeaderboardService) Rank(ctx context.Context, limit int, period Period) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	if period == "" {
		period = PeriodAll
	}
	window, windowed := periodWindows[period]
	if period != PeriodAll && !windowed {
		return nil, invalidInput("unknown period %q", period)
	}

	key := fmt.Sprintf("leaderboard:%s:%d", period, limit)
	if s.Cache != nil {
		entries, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			s.Log.WithError(err).Warn("leaderboard cache read failed")
		} else {
			metrics.RecordLeaderboardCache(ok)
			if ok {
				return entries, nil
			}
		}
	}

	var rows []struct {
		UserID string
		Points int64
	}
	db := s.DB.WithContext(ctx)
	var err error
	if windowed {
		since := s.Now().Add(-window)
		err = db.Model(&models.LedgerEntry{}).
			Select("user_id, SUM(amount) AS points").
			Where("created_at >= ?", since).
			Group("user_id").
			Order("points DESC, user_id ASC").
			Limit(limit).
			Scan(&rows).Error
	} else {
		err = db.Model(&models.Balance{}).
			Select("user_id, total_points AS points").
			Order("total_points DESC, user_id ASC").
			Limit(limit).
			Scan(&rows).Error
	}
	if err != nil {
		return nil, internal("failed to compute leaderboard", err)
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = LeaderboardEntry{Rank: i + 1, UserID: row.UserID, Points: row.Points}
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, entries); err != nil {
			s.Log.WithError(err).Warn("leaderboard cache write failed")
		}
	}
	return entries, nil
}
