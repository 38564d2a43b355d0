package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/shortlink/models"
	"gorm.io/gorm"
)

// UserSessionRepositoryImpl implements UserSessionRepository interface
type UserSessionRepositoryImpl struct {
	*BaseRepository[models.UserSession, models.UserSessionFilter]
}

// NewUserSessionRepository creates a new session repository
func NewUserSessionRepository(db *gorm.DB) UserSessionRepository {
	return &UserSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserSession, models.UserSessionFilter](db),
	}
}

// BySessionToken returns the active, unexpired session for an access token id
func (r *UserSessionRepositoryImpl) BySessionToken(ctx context.Context, token string) (*models.UserSession, error) {
	return r.firstValid(ctx, models.UserSessionFilter{SessionToken: &token})
}

// ByRefreshToken returns the active, unexpired session for a refresh token id
func (r *UserSessionRepositoryImpl) ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error) {
	return r.firstValid(ctx, models.UserSessionFilter{RefreshToken: &token})
}

func (r *UserSessionRepositoryImpl) firstValid(ctx context.Context, filter models.UserSessionFilter) (*models.UserSession, error) {
	active := true
	filter.IsActive = &active
	db := r.getDB(ctx)

	var rows []*models.UserSession
	err := r.applyFilter(db.Model(&models.UserSession{}), filter).
		Where("expires_at > ?", time.Now().UTC()).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *UserSessionRepositoryImpl) Deactivate(ctx context.Context, sessionID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	err = db.Model(&models.UserSession{}).Where("id = ?", sessionID).Update("is_active", false).Error
	if err != nil {
		err = fmt.Errorf("failed to deactivate session: %w", err)
	}

	return finish(db, shouldCommit, err)
}

func (r *UserSessionRepositoryImpl) Touch(ctx context.Context, sessionID uint, at time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	err = db.Model(&models.UserSession{}).Where("id = ?", sessionID).Update("last_accessed_at", at).Error
	if err != nil {
		err = fmt.Errorf("failed to touch session: %w", err)
	}

	return finish(db, shouldCommit, err)
}

// CleanupExpiredSessions deactivates every expired session still flagged active
func (r *UserSessionRepositoryImpl) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Model(&models.UserSession{}).
		Where("is_active = ? AND expires_at <= ?", true, time.Now().UTC()).
		Update("is_active", false)
	if res.Error != nil {
		err = fmt.Errorf("failed to cleanup expired sessions: %w", res.Error)
	}

	return res.RowsAffected, finish(db, shouldCommit, err)
}

func (r *UserSessionRepositoryImpl) applyFilter(db *gorm.DB, f models.UserSessionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CorrelationID != nil {
		db = db.Where("correlation_id = ?", *f.CorrelationID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.SessionToken != nil {
		db = db.Where("session_token = ?", *f.SessionToken)
	}
	if f.RefreshToken != nil {
		db = db.Where("refresh_token = ?", *f.RefreshToken)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.ExpiresBefore != nil {
		db = db.Where("expires_at <= ?", *f.ExpiresBefore)
	}
	return db
}

func (r *UserSessionRepositoryImpl) ByFilter(ctx context.Context, filter models.UserSessionFilter, orderBy string, limit, offset int) ([]*models.UserSession, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.UserSession{}), filter), orderBy, limit, offset)
	var rows []*models.UserSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	return rows, nil
}

func (r *UserSessionRepositoryImpl) Count(ctx context.Context, filter models.UserSessionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.UserSession{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (r *UserSessionRepositoryImpl) Exists(ctx context.Context, filter models.UserSessionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
