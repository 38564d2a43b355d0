package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/shortlink/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkRepositoryImpl implements LinkRepository
type LinkRepositoryImpl struct {
	*BaseRepository[models.Link, models.LinkFilter]
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{BaseRepository: NewBaseRepository[models.Link, models.LinkFilter](db)}
}

func (r *LinkRepositoryImpl) ActiveByShortCode(ctx context.Context, code string) (*models.Link, error) {
	active := true
	return r.first(ctx, models.LinkFilter{ShortCode: &code, IsActive: &active})
}

func (r *LinkRepositoryImpl) first(ctx context.Context, filter models.LinkFilter) (*models.Link, error) {
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListActiveByUser returns the user's active links, newest first
func (r *LinkRepositoryImpl) ListActiveByUser(ctx context.Context, userID uint) ([]*models.Link, error) {
	active := true
	return r.ByFilter(ctx, models.LinkFilter{UserID: &userID, IsActive: &active}, "created_at DESC, id DESC", 0, 0)
}

func (r *LinkRepositoryImpl) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	active := true
	return r.Count(ctx, models.LinkFilter{UserID: &userID, IsActive: &active})
}

func (r *LinkRepositoryImpl) StatsByUser(ctx context.Context, userID uint) (LinkStats, error) {
	db := r.getDB(ctx)
	var stats LinkStats
	err := db.Model(&models.Link{}).
		Select("COUNT(*) AS total_links, COALESCE(SUM(clicks), 0) AS total_clicks").
		Where("user_id = ? AND is_active = ?", userID, true).
		Scan(&stats).Error
	if err != nil {
		return LinkStats{}, fmt.Errorf("failed to aggregate link stats: %w", err)
	}
	return stats, nil
}

// Deactivate filters on both id and owner, so a foreign link is untouched and yields zero rows
func (r *LinkRepositoryImpl) Deactivate(ctx context.Context, linkID, userID uint) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Model(&models.Link{}).
		Where("id = ? AND user_id = ? AND is_active = ?", linkID, userID, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		err = fmt.Errorf("failed to deactivate link: %w", res.Error)
	}

	return res.RowsAffected, finish(db, shouldCommit, err)
}

// IncrementClicks is a single UPDATE ... RETURNING, so concurrent clicks never lose an increment
func (r *LinkRepositoryImpl) IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.Link
	res := db.Model(&rows).
		Clauses(clause.Returning{}).
		Where("short_code = ? AND is_active = ?", code, true).
		Updates(map[string]any{
			"clicks":          gorm.Expr("clicks + 1"),
			"last_clicked_at": at,
			"updated_at":      at,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to increment clicks: %w", res.Error)
	}
	if err = finish(db, shouldCommit, err); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *LinkRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.ShortCode != nil {
		db = db.Where("short_code = ?", *f.ShortCode)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *LinkRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.Link{}), filter), orderBy, limit, offset)
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find links: %w", err)
	}
	return rows, nil
}

func (r *LinkRepositoryImpl) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

func (r *LinkRepositoryImpl) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
