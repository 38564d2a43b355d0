package dto

import "time"

// CreateLinkRequest represents the payload for shortening a URL
type CreateLinkRequest struct {
	OriginalURL string  `json:"original_url" validate:"required,max=2048" example:"https://example.com/some/long/page"`
	CustomSlug  *string `json:"custom_slug,omitempty" validate:"omitempty,min=1,max=50" example:"my-link"`
}

// LinkDTO is a link as shown in the dashboard
type LinkDTO struct {
	ID            uint       `json:"id" example:"42"`
	ShortCode     string     `json:"short_code" example:"a1b2c3"`
	ShortURL      string     `json:"short_url" example:"https://sho.rt/a1b2c3"`
	OriginalURL   string     `json:"original_url" example:"https://example.com/some/long/page"`
	Clicks        int64      `json:"clicks" example:"17"`
	IsActive      bool       `json:"is_active" example:"true"`
	CreatedAt     time.Time  `json:"created_at" example:"2024-01-15T10:30:00Z"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty" example:"2024-01-16T08:00:00Z"`
}

// ListLinksResponse holds the caller's active links, newest first
type ListLinksResponse struct {
	Links []LinkDTO `json:"links"`
	Total int       `json:"total" example:"3"`
}

// DeleteLinkResponse reports a soft delete
type DeleteLinkResponse struct {
	ID      uint `json:"id" example:"42"`
	Deleted bool `json:"deleted" example:"true"`
}

// ExportLinksRequest selects the export format
type ExportLinksRequest struct {
	Format string `query:"format" validate:"omitempty,oneof=csv xlsx" example:"csv"`
}

// ExportFile is a rendered export ready to be sent as an attachment
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
