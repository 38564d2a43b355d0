package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardFixture struct {
	links    *fakeLinkRepo
	notifier *services.MemoryChangeNotifier
	flow     DashboardFlow
}

func newDashboardFixture() *dashboardFixture {
	links := newFakeLinkRepo()
	clicks := newFakeClickRepo(links)
	notifier := services.NewMemoryChangeNotifier()
	linkFlow := NewLinkFlow(&fakeTx{}, links, &fakeAuditRepo{}, nil, notifier, LinkSettings{})
	analytics := NewAnalyticsFlow(links, clicks, config.AnalyticsModeEvents, "UTC")
	return &dashboardFixture{
		links:    links,
		notifier: notifier,
		flow:     NewDashboardFlow(linkFlow, analytics, time.Second),
	}
}

func TestDashboardFlow_Snapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("CombinesLinksStatsAndAnalytics", func(t *testing.T) {
		f := newDashboardFixture()
		f.links.add(1, "a", "https://example.com/a", 10, true)
		f.links.add(1, "b", "https://example.com/b", 20, true)
		f.links.add(1, "c", "https://example.com/c", 30, true)

		snap, err := f.flow.Snapshot(ctx, 1, testBaseURL)
		require.NoError(t, err)
		assert.Len(t, snap.Links, 3)
		assert.Equal(t, int64(3), snap.Stats.TotalLinks)
		assert.Equal(t, int64(60), snap.Stats.TotalClicks)
		assert.Equal(t, int64(20), snap.Stats.AverageClicks)
		assert.Len(t, snap.Analytics.Days, 7)
		assert.False(t, snap.GeneratedAt.IsZero())
	})

	t.Run("EmptyUser", func(t *testing.T) {
		f := newDashboardFixture()

		snap, err := f.flow.Snapshot(ctx, 9, testBaseURL)
		require.NoError(t, err)
		assert.Empty(t, snap.Links)
		assert.Zero(t, snap.Stats.TotalLinks)
		assert.Zero(t, snap.Stats.AverageClicks)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		f := newDashboardFixture()
		f.links.setFail(errStoreDown)

		_, err := f.flow.Snapshot(ctx, 1, testBaseURL)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

// nextState waits for an update that satisfies pred
func nextState(t *testing.T, updates <-chan LiveState, pred func(LiveState) bool) LiveState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-updates:
			require.True(t, ok, "updates closed while waiting")
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for dashboard state")
			return LiveState{}
		}
	}
}

func loaded(st LiveState) bool { return !st.Loading && st.Snapshot != nil }

func TestLiveDashboard(t *testing.T) {
	t.Run("InitialFetchThenRefetchOnChange", func(t *testing.T) {
		f := newDashboardFixture()
		f.links.add(1, "a", "https://example.com/a", 1, true)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		live := NewLiveDashboard(f.flow, f.notifier, 1, testBaseURL, 0)
		assert.True(t, live.State().Loading)

		done := make(chan error, 1)
		go func() { done <- live.Run(ctx) }()

		first := nextState(t, live.Updates(), loaded)
		assert.Len(t, first.Snapshot.Links, 1)
		assert.NoError(t, first.Err)

		f.links.add(1, "b", "https://example.com/b", 0, true)
		require.NoError(t, f.notifier.Publish(ctx, services.ChangeEvent{UserID: 1, Table: services.ChangeTableLinks, Op: services.ChangeOpInsert}))

		second := nextState(t, live.Updates(), func(st LiveState) bool { return loaded(st) && len(st.Snapshot.Links) == 2 })
		assert.Greater(t, second.Version, first.Version)
		assert.Equal(t, second.Version, live.State().Version)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}

		_, ok := <-live.Updates()
		for ok {
			_, ok = <-live.Updates()
		}
		assert.Eventually(t, func() bool { return f.notifier.Subscribers(1) == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("OtherUsersEventsIgnored", func(t *testing.T) {
		f := newDashboardFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		live := NewLiveDashboard(f.flow, f.notifier, 1, testBaseURL, 0)
		go func() { _ = live.Run(ctx) }()
		first := nextState(t, live.Updates(), loaded)

		require.NoError(t, f.notifier.Publish(ctx, services.ChangeEvent{UserID: 2, Table: services.ChangeTableLinks, Op: services.ChangeOpInsert}))
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, first.Version, live.State().Version)
	})

	t.Run("ManualRefresh", func(t *testing.T) {
		f := newDashboardFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		live := NewLiveDashboard(f.flow, nil, 1, testBaseURL, 0)
		go func() { _ = live.Run(ctx) }()
		first := nextState(t, live.Updates(), loaded)
		assert.Empty(t, first.Snapshot.Links)

		f.links.add(1, "new", "https://example.com", 0, true)
		live.Refresh()

		second := nextState(t, live.Updates(), func(st LiveState) bool { return loaded(st) && len(st.Snapshot.Links) == 1 })
		assert.Greater(t, second.Version, first.Version)
	})

	t.Run("FetchErrorKeepsLastSnapshot", func(t *testing.T) {
		f := newDashboardFixture()
		f.links.add(1, "a", "https://example.com/a", 0, true)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		live := NewLiveDashboard(f.flow, nil, 1, testBaseURL, 0)
		go func() { _ = live.Run(ctx) }()
		first := nextState(t, live.Updates(), loaded)

		f.links.setFail(errStoreDown)
		live.Refresh()

		failed := nextState(t, live.Updates(), func(st LiveState) bool { return !st.Loading && st.Err != nil })
		assert.ErrorIs(t, failed.Err, errStoreDown)
		require.NotNil(t, failed.Snapshot)
		assert.Equal(t, first.Snapshot.Links, failed.Snapshot.Links)
	})

	t.Run("BurstOfEventsCoalesced", func(t *testing.T) {
		f := newDashboardFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		live := NewLiveDashboard(f.flow, f.notifier, 1, testBaseURL, 100*time.Millisecond)
		go func() { _ = live.Run(ctx) }()
		first := nextState(t, live.Updates(), loaded)

		for i := 0; i < 10; i++ {
			require.NoError(t, f.notifier.Publish(ctx, services.ChangeEvent{UserID: 1, Table: services.ChangeTableLinkClicks, Op: services.ChangeOpInsert}))
		}
		time.Sleep(400 * time.Millisecond)

		assert.Less(t, live.State().Version-first.Version, uint64(10))
		assert.Greater(t, live.State().Version, first.Version)
	})
}
