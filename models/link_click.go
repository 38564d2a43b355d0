package models

import "time"

// LinkClick is an append-only record of one tracked redirect.
// UserID is the link owner, denormalized for per-user analytics.
type LinkClick struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LinkID    uint      `gorm:"not null;index:idx_link_clicks_link_id" json:"link_id"`
	UserID    uint      `gorm:"not null;index:idx_link_clicks_user_created,priority:1" json:"user_id"`
	ShortCode string    `gorm:"size:64;not null" json:"short_code"`
	UserAgent *string   `gorm:"type:text" json:"user_agent,omitempty"`
	IP        *string   `gorm:"size:64" json:"ip,omitempty"`
	Referrer  *string   `gorm:"type:text" json:"referrer,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_link_clicks_user_created,priority:2" json:"created_at"`
}

// TableName returns the table name for LinkClick
func (LinkClick) TableName() string { return "link_clicks" }

// LinkClickFilter provides filter fields for repository queries
type LinkClickFilter struct {
	ID            *uint
	LinkID        *uint
	UserID        *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
