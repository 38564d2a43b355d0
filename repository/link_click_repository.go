package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/shortlink/models"
	"gorm.io/gorm"
)

// LinkClickRepositoryImpl implements LinkClickRepository
type LinkClickRepositoryImpl struct {
	*BaseRepository[models.LinkClick, models.LinkClickFilter]
}

func NewLinkClickRepository(db *gorm.DB) LinkClickRepository {
	return &LinkClickRepositoryImpl{BaseRepository: NewBaseRepository[models.LinkClick, models.LinkClickFilter](db)}
}

type dailyCount struct {
	Day   string
	Total int64
}

// DailyCountsByUser lets PostgreSQL do the calendar bucketing; created_at is stored as naive UTC
func (r *LinkClickRepositoryImpl) DailyCountsByUser(ctx context.Context, userID uint, since time.Time, timezone string) (map[string]int64, error) {
	db := r.getDB(ctx)

	var rows []dailyCount
	err := db.Model(&models.LinkClick{}).
		Select("to_char((link_clicks.created_at AT TIME ZONE 'UTC') AT TIME ZONE ?, 'YYYY-MM-DD') AS day, COUNT(*) AS total", timezone).
		Joins("JOIN links ON links.id = link_clicks.link_id").
		Where("link_clicks.user_id = ? AND link_clicks.created_at >= ? AND links.is_active = ?", userID, since.UTC(), true).
		Group("day").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks by day: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Day] = row.Total
	}
	return out, nil
}

func (r *LinkClickRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkClickFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.LinkID != nil {
		db = db.Where("link_id = ?", *f.LinkID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *LinkClickRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkClickFilter, orderBy string, limit, offset int) ([]*models.LinkClick, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.LinkClick{}), filter), orderBy, limit, offset)
	var rows []*models.LinkClick
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find link clicks: %w", err)
	}
	return rows, nil
}

func (r *LinkClickRepositoryImpl) Count(ctx context.Context, filter models.LinkClickFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.LinkClick{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count link clicks: %w", err)
	}
	return count, nil
}

func (r *LinkClickRepositoryImpl) Exists(ctx context.Context, filter models.LinkClickFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
