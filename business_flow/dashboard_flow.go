package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/utils"
	"golang.org/x/sync/errgroup"
)

// DashboardFlow assembles the dashboard view of one user
type DashboardFlow interface {
	// Snapshot fetches links, stats and analytics concurrently; the first error wins
	Snapshot(ctx context.Context, userID uint, baseURL string) (*dto.DashboardSnapshotDTO, error)
	Stats(ctx context.Context, userID uint) (*dto.DashboardStatsDTO, error)
	Analytics(ctx context.Context, userID uint) (*dto.ClickAnalyticsResponse, error)
}

type DashboardFlowImpl struct {
	links        LinkFlow
	analytics    AnalyticsFlow
	fetchTimeout time.Duration
}

func NewDashboardFlow(links LinkFlow, analytics AnalyticsFlow, fetchTimeout time.Duration) DashboardFlow {
	return &DashboardFlowImpl{
		links:        links,
		analytics:    analytics,
		fetchTimeout: fetchTimeout,
	}
}

func (df *DashboardFlowImpl) Snapshot(ctx context.Context, userID uint, baseURL string) (*dto.DashboardSnapshotDTO, error) {
	if df.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, df.fetchTimeout)
		defer cancel()
	}

	var (
		links     *dto.ListLinksResponse
		stats     *dto.DashboardStatsDTO
		analytics *dto.ClickAnalyticsResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		links, err = df.links.ListLinks(gctx, userID, baseURL)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = df.analytics.DashboardStats(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		analytics, err = df.analytics.ClickAnalytics(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &dto.DashboardSnapshotDTO{
		Links:       links.Links,
		Stats:       *stats,
		Analytics:   *analytics,
		GeneratedAt: utils.UTCNow(),
	}, nil
}

func (df *DashboardFlowImpl) Stats(ctx context.Context, userID uint) (*dto.DashboardStatsDTO, error) {
	return df.analytics.DashboardStats(ctx, userID)
}

func (df *DashboardFlowImpl) Analytics(ctx context.Context, userID uint) (*dto.ClickAnalyticsResponse, error) {
	return df.analytics.ClickAnalytics(ctx, userID)
}
