package businessflow

import (
	"context"

	"github.com/amirphl/shortlink/logging"
)

// RedirectState is the step a short-code visit is in
type RedirectState int

const (
	RedirectResolving RedirectState = iota
	RedirectRedirecting
	RedirectNotFound
)

func (s RedirectState) String() string {
	switch s {
	case RedirectResolving:
		return "resolving"
	case RedirectRedirecting:
		return "redirecting"
	case RedirectNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// RedirectResult is the terminal state of a visit. Location is set only when redirecting.
type RedirectResult struct {
	State     RedirectState
	ShortCode string
	Location  string
}

// RedirectResolver turns a visited short code into a redirect or a not-found outcome.
// Any failure ends in NotFound; nothing is retried.
type RedirectResolver interface {
	Resolve(ctx context.Context, shortCode string, metadata *ClientMetadata) RedirectResult
}

type RedirectResolverImpl struct {
	clicks ClickFlow
}

func NewRedirectResolver(clicks ClickFlow) RedirectResolver {
	return &RedirectResolverImpl{clicks: clicks}
}

func (r *RedirectResolverImpl) Resolve(ctx context.Context, shortCode string, metadata *ClientMetadata) RedirectResult {
	result := RedirectResult{State: RedirectResolving, ShortCode: shortCode}

	if IsReservedSlug(shortCode) {
		result.State = RedirectNotFound
		return result
	}

	link, err := r.clicks.TrackClick(ctx, shortCode, metadata)
	if err != nil {
		if !IsLinkNotFound(err) {
			logging.Ctx(ctx).Error().Err(err).Str("short_code", shortCode).Msg("Click tracking failed")
		}
		result.State = RedirectNotFound
		return result
	}

	result.State = RedirectRedirecting
	result.Location = link.OriginalURL
	return result
}
