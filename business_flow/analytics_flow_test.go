package businessflow

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/amirphl/shortlink/config"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalytics(links *fakeLinkRepo, clicks *fakeClickRepo, mode, tz string, now time.Time) *AnalyticsFlowImpl {
	af := NewAnalyticsFlow(links, clicks, mode, tz).(*AnalyticsFlowImpl)
	af.now = func() time.Time { return now }
	return af
}

func TestAnalyticsFlow_DashboardStats(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		clicks []int64
		want   [3]int64
	}{
		{"NoLinks", nil, [3]int64{0, 0, 0}},
		{"ExactAverage", []int64{10, 20, 30}, [3]int64{3, 60, 20}},
		{"RoundsHalfUp", []int64{1, 2}, [3]int64{2, 3, 2}},
		{"RoundsDown", []int64{1, 1, 2}, [3]int64{3, 4, 1}},
		{"AllZero", []int64{0, 0}, [3]int64{2, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := newFakeLinkRepo()
			for i, c := range tt.clicks {
				links.add(1, string(rune('a'+i)), "https://example.com", c, true)
			}
			// inactive and foreign links never count
			links.add(1, "deleted", "https://example.com", 1000, false)
			links.add(2, "foreign", "https://example.com", 1000, true)

			af := newTestAnalytics(links, newFakeClickRepo(links), config.AnalyticsModeEvents, "UTC", time.Now())
			stats, err := af.DashboardStats(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want[0], stats.TotalLinks)
			assert.Equal(t, tt.want[1], stats.TotalClicks)
			assert.Equal(t, tt.want[2], stats.AverageClicks)
		})
	}

	t.Run("StoreFailure", func(t *testing.T) {
		links := newFakeLinkRepo()
		links.setFail(errStoreDown)
		af := newTestAnalytics(links, newFakeClickRepo(links), config.AnalyticsModeEvents, "UTC", time.Now())

		_, err := af.DashboardStats(ctx, 1)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestAnalyticsFlow_ClickAnalyticsEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	links := newFakeLinkRepo()
	live := links.add(1, "live", "https://example.com", 0, true)
	dead := links.add(1, "dead", "https://example.com", 0, false)
	clicks := newFakeClickRepo(links)

	record := func(link *models.Link, at time.Time) {
		require.NoError(t, clicks.Save(ctx, &models.LinkClick{LinkID: link.ID, UserID: link.UserID, ShortCode: link.ShortCode, CreatedAt: at}))
	}
	record(live, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	record(live, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	record(live, time.Date(2025, 3, 8, 23, 59, 0, 0, time.UTC))
	record(live, time.Date(2025, 3, 4, 0, 30, 0, 0, time.UTC))
	record(live, time.Date(2025, 3, 3, 23, 0, 0, 0, time.UTC))
	record(dead, time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC))

	af := newTestAnalytics(links, clicks, config.AnalyticsModeEvents, "UTC", now)
	resp, err := af.ClickAnalytics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, config.AnalyticsModeEvents, resp.Mode)
	require.Len(t, resp.Days, 7)

	assert.Equal(t, "2025-03-04", resp.Days[0].Date)
	assert.Equal(t, "Tue", resp.Days[0].Day)
	assert.Equal(t, "2025-03-10", resp.Days[6].Date)
	assert.Equal(t, "Mon", resp.Days[6].Day)

	got := make([]int64, 0, 7)
	for _, d := range resp.Days {
		got = append(got, d.ClickCount)
	}
	assert.Equal(t, []int64{1, 0, 0, 0, 1, 0, 2}, got)
}

func TestAnalyticsFlow_ClickAnalyticsTimezone(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	links := newFakeLinkRepo()
	live := links.add(1, "live", "https://example.com", 0, true)
	clicks := newFakeClickRepo(links)
	// 00:30 on March 10th in Tehran (+03:30)
	require.NoError(t, clicks.Save(ctx, &models.LinkClick{LinkID: live.ID, UserID: 1, CreatedAt: time.Date(2025, 3, 9, 21, 0, 0, 0, time.UTC)}))

	af := newTestAnalytics(links, clicks, config.AnalyticsModeEvents, "Asia/Tehran", now)
	resp, err := af.ClickAnalytics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", resp.Days[6].Date)
	assert.Equal(t, int64(1), resp.Days[6].ClickCount)
	assert.Equal(t, int64(0), resp.Days[5].ClickCount)
}

func TestAnalyticsFlow_ClickAnalyticsStoreFailure(t *testing.T) {
	for _, mode := range []string{config.AnalyticsModeEvents, config.AnalyticsModeHeuristic} {
		t.Run(mode, func(t *testing.T) {
			links := newFakeLinkRepo()
			clicks := newFakeClickRepo(links)
			links.setFail(errStoreDown)
			clicks.failWith = errStoreDown

			af := newTestAnalytics(links, clicks, mode, "UTC", time.Now())
			resp, err := af.ClickAnalytics(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, resp.Days, 7)
			for _, d := range resp.Days {
				assert.Zero(t, d.ClickCount)
				assert.NotEmpty(t, d.Day)
			}
		})
	}
}

func TestAnalyticsFlow_UnknownModeFallsBackToEvents(t *testing.T) {
	af := NewAnalyticsFlow(newFakeLinkRepo(), newFakeClickRepo(nil), "magic", "UTC").(*AnalyticsFlowImpl)
	assert.Equal(t, config.AnalyticsModeEvents, af.mode)
}

func TestHeuristicDistribution(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		at := now.Add(-time.Duration(d) * 24 * time.Hour)
		return &at
	}

	tests := []struct {
		name  string
		links []*models.Link
		want  []int64
	}{
		{
			name:  "NoLinks",
			links: nil,
			want:  []int64{0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:  "NoClicks",
			links: []*models.Link{{Clicks: 0, LastClickedAt: daysAgo(0)}},
			want:  []int64{0, 0, 0, 0, 0, 0, 0},
		},
		{
			// weights 1,1,2,4,6,8,10 sum to 32 > 30, so the series is scaled by 30/32
			name:  "ClickedTodayScaledToTotal",
			links: []*models.Link{{Clicks: 30, LastClickedAt: daysAgo(0)}},
			want:  []int64{0, 0, 1, 3, 5, 7, 9},
		},
		{
			name:  "PeakFollowsLastClick",
			links: []*models.Link{{Clicks: 300, LastClickedAt: daysAgo(3)}},
			want:  []int64{22, 33, 44, 55, 44, 33, 22},
		},
		{
			name:  "StaleLinkFallsBackToLastThreeDays",
			links: []*models.Link{{Clicks: 10, LastClickedAt: daysAgo(10)}},
			want:  []int64{0, 0, 0, 0, 3, 3, 3},
		},
		{
			name:  "NeverClickedCounterFallsBack",
			links: []*models.Link{{Clicks: 5}},
			want:  []int64{0, 0, 0, 0, 2, 2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeuristicDistribution(tt.links, now)
			assert.Equal(t, tt.want, got)

			var sum, total int64
			for _, b := range got {
				sum += b
			}
			for _, l := range tt.links {
				total += l.Clicks
			}
			if total == 0 {
				assert.Zero(t, sum)
			}
		})
	}
}

func TestAnalyticsFlow_ClickAnalyticsHeuristic(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	links := newFakeLinkRepo()
	l := links.add(1, "x", "https://example.com", 30, true)
	l.LastClickedAt = utils.ToPtr(now)
	links.add(1, "off", "https://example.com", 999, false)

	af := newTestAnalytics(links, newFakeClickRepo(links), config.AnalyticsModeHeuristic, "UTC", now)
	resp, err := af.ClickAnalytics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, config.AnalyticsModeHeuristic, resp.Mode)

	got := make([]int64, 0, 7)
	for _, d := range resp.Days {
		got = append(got, d.ClickCount)
	}
	assert.Equal(t, []int64{0, 0, 1, 3, 5, 7, 9}, got)
}
