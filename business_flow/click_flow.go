package businessflow

import (
	"context"

	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
)

// ClickFlow resolves a short code for a visitor and records the click.
// Public flow, no authentication required.
type ClickFlow interface {
	TrackClick(ctx context.Context, shortCode string, metadata *ClientMetadata) (*models.Link, error)
}

type ClickFlowImpl struct {
	tx        repository.Transactor
	linkRepo  repository.LinkRepository
	clickRepo repository.LinkClickRepository
	cache     services.LinkCache
	notifier  services.ChangeNotifier
}

func NewClickFlow(
	tx repository.Transactor,
	linkRepo repository.LinkRepository,
	clickRepo repository.LinkClickRepository,
	cache services.LinkCache,
	notifier services.ChangeNotifier,
) ClickFlow {
	return &ClickFlowImpl{
		tx:        tx,
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		cache:     cache,
		notifier:  notifier,
	}
}

// TrackClick increments the counter of the active link with this code and appends a click
// event in the same transaction. Unknown, inactive and cached-missing codes yield ErrLinkNotFound
// and change nothing.
func (f *ClickFlowImpl) TrackClick(ctx context.Context, shortCode string, metadata *ClientMetadata) (*models.Link, error) {
	if shortCode == "" {
		return nil, NewBusinessError(CodeLinkNotFound, "Link not found", ErrLinkNotFound)
	}

	if f.cache != nil {
		missing, err := f.cache.IsMissing(ctx, shortCode)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("short_code", shortCode).Msg("Link cache unavailable")
		} else if missing {
			clicksTrackedTotal.WithLabelValues("cached_miss").Inc()
			return nil, NewBusinessError(CodeLinkNotFound, "Link not found", ErrLinkNotFound)
		}
	}

	now := utils.UTCNow()
	link, err := inTransaction(ctx, f.tx, func(ctx context.Context) (*models.Link, error) {
		link, err := f.linkRepo.IncrementClicks(ctx, shortCode, now)
		if err != nil || link == nil {
			return nil, err
		}

		click := &models.LinkClick{
			LinkID:    link.ID,
			UserID:    link.UserID,
			ShortCode: link.ShortCode,
			CreatedAt: now,
		}
		if metadata != nil {
			if metadata.UserAgent != "" {
				click.UserAgent = utils.ToPtr(metadata.UserAgent)
			}
			if metadata.IPAddress != "" {
				click.IP = utils.ToPtr(metadata.IPAddress)
			}
			if metadata.Referrer != "" {
				click.Referrer = utils.ToPtr(metadata.Referrer)
			}
		}
		if err := f.clickRepo.Save(ctx, click); err != nil {
			return nil, err
		}

		return link, nil
	})
	if err != nil {
		clicksTrackedTotal.WithLabelValues("error").Inc()
		return nil, NewBusinessError("CLICK_TRACK_FAILED", "Failed to track click", err)
	}

	if link == nil {
		clicksTrackedTotal.WithLabelValues("not_found").Inc()
		f.markMissing(ctx, shortCode)
		return nil, NewBusinessError(CodeLinkNotFound, "Link not found", ErrLinkNotFound)
	}

	clicksTrackedTotal.WithLabelValues("tracked").Inc()

	if f.notifier != nil {
		event := services.ChangeEvent{
			UserID: link.UserID,
			Table:  services.ChangeTableLinkClicks,
			Op:     services.ChangeOpInsert,
			LinkID: link.ID,
			At:     now,
		}
		if err := f.notifier.Publish(ctx, event); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Uint("user_id", link.UserID).Msg("Failed to publish click change")
		}
	}

	return link, nil
}

// markMissing caches a miss, then re-reads the code so a link created after the increment
// missed it is not hidden for the cache TTL. CreateLink clears the marker after its commit.
func (f *ClickFlowImpl) markMissing(ctx context.Context, shortCode string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.MarkMissing(ctx, shortCode); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("short_code", shortCode).Msg("Failed to cache missing link")
		return
	}

	link, err := f.linkRepo.ActiveByShortCode(ctx, shortCode)
	if err == nil && link == nil {
		return
	}
	if err := f.cache.Forget(ctx, shortCode); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("short_code", shortCode).Msg("Failed to clear missing-link marker")
	}
}
