package dto

import "time"

// DashboardStatsDTO summarizes the caller's active links
type DashboardStatsDTO struct {
	TotalLinks    int64 `json:"total_links" example:"3"`
	TotalClicks   int64 `json:"total_clicks" example:"60"`
	AverageClicks int64 `json:"average_clicks" example:"20"`
}

// DailyClicksDTO is one bucket of the seven day click series
type DailyClicksDTO struct {
	Day        string `json:"day" example:"Mon"`
	Date       string `json:"date" example:"2024-01-15"`
	ClickCount int64  `json:"click_count" example:"12"`
}

// ClickAnalyticsResponse is the trailing seven day series, oldest first
type ClickAnalyticsResponse struct {
	Mode string           `json:"mode" example:"events"`
	Days []DailyClicksDTO `json:"days"`
}

// DashboardSnapshotDTO is everything the dashboard renders in one payload
type DashboardSnapshotDTO struct {
	Links       []LinkDTO              `json:"links"`
	Stats       DashboardStatsDTO      `json:"stats"`
	Analytics   ClickAnalyticsResponse `json:"analytics"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// DashboardStateDTO is pushed over the live stream
type DashboardStateDTO struct {
	Snapshot *DashboardSnapshotDTO `json:"snapshot,omitempty"`
	Loading  bool                  `json:"loading"`
	Error    string                `json:"error,omitempty"`
	Version  uint64                `json:"version"`
}
