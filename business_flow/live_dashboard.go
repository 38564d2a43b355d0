package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"golang.org/x/time/rate"
)

// LiveState is what a live dashboard viewer currently sees
type LiveState struct {
	Snapshot *dto.DashboardSnapshotDTO
	Loading  bool
	Err      error
	Version  uint64
}

// LiveDashboard keeps one viewer's dashboard in sync with the store. It fetches once on
// start, then re-fetches fully on every change event for the user or on Refresh.
// Its lifetime is the context passed to Run; nothing is published after that ends.
type LiveDashboard struct {
	flow     DashboardFlow
	notifier services.ChangeNotifier
	userID   uint
	baseURL  string
	limiter  *rate.Limiter

	refreshCh chan struct{}
	updates   chan LiveState

	mu    sync.RWMutex
	state LiveState
}

// NewLiveDashboard creates a viewer session. minInterval spaces consecutive refetches.
func NewLiveDashboard(flow DashboardFlow, notifier services.ChangeNotifier, userID uint, baseURL string, minInterval time.Duration) *LiveDashboard {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &LiveDashboard{
		flow:      flow,
		notifier:  notifier,
		userID:    userID,
		baseURL:   baseURL,
		limiter:   rate.NewLimiter(limit, 1),
		refreshCh: make(chan struct{}, 1),
		updates:   make(chan LiveState, 1),
		state:     LiveState{Loading: true},
	}
}

// State returns the latest state
func (d *LiveDashboard) State() LiveState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Updates delivers states as they change, latest wins. It is closed when Run returns.
func (d *LiveDashboard) Updates() <-chan LiveState {
	return d.updates
}

// Refresh asks for a full refetch; concurrent requests collapse into one
func (d *LiveDashboard) Refresh() {
	select {
	case d.refreshCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done
func (d *LiveDashboard) Run(ctx context.Context) error {
	defer close(d.updates)

	liveDashboardViewers.Inc()
	defer liveDashboardViewers.Dec()

	log := logging.Ctx(ctx).With().Uint("user_id", d.userID).Logger()

	var events <-chan services.ChangeEvent
	if d.notifier != nil {
		ch, err := d.notifier.Subscribe(ctx, d.userID)
		if err != nil {
			log.Warn().Err(err).Msg("Live updates unavailable, dashboard refreshes on demand only")
		} else {
			events = ch
		}
	}

	d.publish(ctx, d.State())
	d.fetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
		case <-d.refreshCh:
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		d.drain(events)
		d.fetch(ctx)
	}
}

// drain discards signals queued while waiting; the coming fetch covers them
func (d *LiveDashboard) drain(events <-chan services.ChangeEvent) {
	for {
		select {
		case <-d.refreshCh:
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (d *LiveDashboard) fetch(ctx context.Context) {
	d.mu.Lock()
	d.state.Loading = true
	d.mu.Unlock()

	snapshot, err := d.flow.Snapshot(ctx, d.userID, d.baseURL)
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	d.state.Loading = false
	d.state.Err = err
	if err == nil {
		d.state.Snapshot = snapshot
	} else {
		logging.Ctx(ctx).Warn().Err(err).Uint("user_id", d.userID).Msg("Dashboard refetch failed")
	}
	d.state.Version++
	state := d.state
	d.mu.Unlock()

	d.publish(ctx, state)
}

func (d *LiveDashboard) publish(ctx context.Context, state LiveState) {
	if ctx.Err() != nil {
		return
	}
	select {
	case d.updates <- state:
		return
	default:
	}
	// replace the stale pending state
	select {
	case <-d.updates:
	default:
	}
	select {
	case d.updates <- state:
	default:
	}
}
