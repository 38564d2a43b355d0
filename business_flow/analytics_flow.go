package businessflow

import (
	"context"
	"math"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/config"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
)

// AnalyticsFlow derives dashboard statistics and the seven day click series
type AnalyticsFlow interface {
	DashboardStats(ctx context.Context, userID uint) (*dto.DashboardStatsDTO, error)
	// ClickAnalytics never fails: a store error yields a zero-filled series
	ClickAnalytics(ctx context.Context, userID uint) (*dto.ClickAnalyticsResponse, error)
}

type AnalyticsFlowImpl struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.LinkClickRepository
	mode      string
	location  *time.Location
	now       func() time.Time
}

// NewAnalyticsFlow creates an analytics flow. mode is config.AnalyticsModeEvents or
// config.AnalyticsModeHeuristic; days are bucketed in the named time zone.
func NewAnalyticsFlow(linkRepo repository.LinkRepository, clickRepo repository.LinkClickRepository, mode, timezone string) AnalyticsFlow {
	if mode != config.AnalyticsModeHeuristic {
		mode = config.AnalyticsModeEvents
	}
	return &AnalyticsFlowImpl{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		mode:      mode,
		location:  utils.LoadLocationOrUTC(timezone),
		now:       time.Now,
	}
}

// DashboardStats counts active links, sums their clicks and rounds the average
func (af *AnalyticsFlowImpl) DashboardStats(ctx context.Context, userID uint) (*dto.DashboardStatsDTO, error) {
	stats, err := af.linkRepo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to load dashboard statistics", err)
	}

	var average int64
	if stats.TotalLinks > 0 {
		average = int64(math.Round(float64(stats.TotalClicks) / float64(stats.TotalLinks)))
	}

	return &dto.DashboardStatsDTO{
		TotalLinks:    stats.TotalLinks,
		TotalClicks:   stats.TotalClicks,
		AverageClicks: average,
	}, nil
}

func (af *AnalyticsFlowImpl) ClickAnalytics(ctx context.Context, userID uint) (*dto.ClickAnalyticsResponse, error) {
	days := af.window()

	var err error
	if af.mode == config.AnalyticsModeHeuristic {
		err = af.fillHeuristic(ctx, userID, days)
	} else {
		err = af.fillEvents(ctx, userID, days)
	}
	if err != nil {
		analyticsFallbacksTotal.Inc()
		logging.Ctx(ctx).Error().Err(err).Uint("user_id", userID).Str("mode", af.mode).Msg("Click analytics failed, returning empty series")
		days = af.window()
	}

	return &dto.ClickAnalyticsResponse{Mode: af.mode, Days: days}, nil
}

// window returns the trailing seven local calendar days, oldest first, with zero counts
func (af *AnalyticsFlowImpl) window() []dto.DailyClicksDTO {
	today := utils.StartOfDay(af.now().In(af.location))
	days := make([]dto.DailyClicksDTO, 0, utils.AnalyticsWindowDays)
	for offset := utils.AnalyticsWindowDays - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		days = append(days, dto.DailyClicksDTO{
			Day:  day.Format("Mon"),
			Date: day.Format("2006-01-02"),
		})
	}
	return days
}

// fillEvents counts click events exactly, one bucket per calendar day
func (af *AnalyticsFlowImpl) fillEvents(ctx context.Context, userID uint, days []dto.DailyClicksDTO) error {
	since, err := time.ParseInLocation("2006-01-02", days[0].Date, af.location)
	if err != nil {
		return err
	}

	counts, err := af.clickRepo.DailyCountsByUser(ctx, userID, since, af.location.String())
	if err != nil {
		return err
	}

	for i := range days {
		days[i].ClickCount = counts[days[i].Date]
	}
	return nil
}

// fillHeuristic spreads each link's lifetime clicks around its last click for deployments
// without a click event log. The result is an estimate, not a count.
func (af *AnalyticsFlowImpl) fillHeuristic(ctx context.Context, userID uint, days []dto.DailyClicksDTO) error {
	links, err := af.linkRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}

	counts := HeuristicDistribution(links, af.now())
	for i := range days {
		days[i].ClickCount = counts[i]
	}
	return nil
}

// HeuristicDistribution estimates seven daily buckets (oldest first) from per-link counters.
// Each link with a last click at most seven days ago contributes
// round(clicks * recency * proximity / 3) to every bucket, where
// recency = max(0.1, 1 - 0.15*age) and proximity = max(0.1, 1 - 0.2*|bucketAge - age|).
// The weighted series is scaled down if it would exceed the true total. If it comes out all
// zero while clicks exist, the last three buckets each get round(total/3).
func HeuristicDistribution(links []*models.Link, now time.Time) []int64 {
	buckets := make([]int64, utils.AnalyticsWindowDays)

	var total int64
	for _, l := range links {
		total += l.Clicks
	}
	if total <= 0 {
		return buckets
	}

	for i := range buckets {
		bucketAge := float64(utils.AnalyticsWindowDays - 1 - i)
		var dayClicks int64
		for _, l := range links {
			if l.LastClickedAt == nil || l.Clicks <= 0 {
				continue
			}
			age := math.Floor(now.Sub(*l.LastClickedAt).Hours() / 24)
			if age < 0 {
				age = 0
			}
			if age > utils.AnalyticsWindowDays {
				continue
			}
			recency := math.Max(0.1, 1-0.15*age)
			proximity := math.Max(0.1, 1-0.2*math.Abs(bucketAge-age))
			dayClicks += int64(math.Round(float64(l.Clicks) * recency * proximity / 3))
		}
		buckets[i] = min(dayClicks, total)
	}

	var sum int64
	for _, b := range buckets {
		sum += b
	}
	if sum > total {
		for i := range buckets {
			buckets[i] = buckets[i] * total / sum
		}
		sum = 0
		for _, b := range buckets {
			sum += b
		}
	}

	if sum == 0 {
		share := int64(math.Round(float64(total) / 3))
		for i := len(buckets) - 3; i < len(buckets); i++ {
			buckets[i] = share
		}
	}

	return buckets
}
