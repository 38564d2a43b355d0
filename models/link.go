package models

import (
	"time"

	"github.com/amirphl/shortlink/utils"
)

// Link maps a short code to its destination. Rows are never physically removed;
// delete clears IsActive so click history survives.
type Link struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index:idx_links_user_id" json:"user_id"`
	OriginalURL   string     `gorm:"type:text;not null" json:"original_url"`
	ShortCode     string     `gorm:"size:64;not null;uniqueIndex:uk_links_short_code" json:"short_code"`
	Clicks        int64      `gorm:"not null;default:0" json:"clicks"`
	IsActive      *bool      `gorm:"not null;default:true;index:idx_links_is_active" json:"is_active"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Link
func (Link) TableName() string { return "links" }

func (l *Link) Active() bool {
	return utils.IsTrue(l.IsActive)
}

// LinkFilter provides filter fields for repository queries
type LinkFilter struct {
	ID            *uint
	UserID        *uint
	ShortCode     *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
