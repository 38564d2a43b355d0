package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLinkCache(t *testing.T) {
	cache := NewMemoryLinkCache(time.Hour)
	ctx := context.Background()

	missing, err := cache.IsMissing(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, missing)

	require.NoError(t, cache.MarkMissing(ctx, "abc123"))
	missing, _ = cache.IsMissing(ctx, "abc123")
	assert.True(t, missing)

	require.NoError(t, cache.Forget(ctx, "abc123"))
	missing, _ = cache.IsMissing(ctx, "abc123")
	assert.False(t, missing)
}

func TestMemoryLinkCache_Expiry(t *testing.T) {
	cache := NewMemoryLinkCache(time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.MarkMissing(ctx, "gone"))
	time.Sleep(5 * time.Millisecond)

	missing, err := cache.IsMissing(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestMemoryLinkCache_Bounded(t *testing.T) {
	cache := NewBoundedMemoryLinkCache(time.Hour, 3)
	ctx := context.Background()

	for _, code := range []string{"a1", "b2", "c3", "d4", "e5"} {
		require.NoError(t, cache.MarkMissing(ctx, code))
		assert.LessOrEqual(t, cache.Len(), 3)
	}
	assert.Equal(t, 3, cache.Len())

	missing, _ := cache.IsMissing(ctx, "e5")
	assert.True(t, missing, "the newest code is always kept")

	require.NoError(t, cache.MarkMissing(ctx, "e5"))
	assert.Equal(t, 3, cache.Len(), "re-marking a known code evicts nothing")
}

func TestMemoryLinkCache_SweepsExpired(t *testing.T) {
	cache := NewBoundedMemoryLinkCache(10*time.Millisecond, 100)
	ctx := context.Background()

	for _, code := range []string{"old1", "old2", "old3"} {
		require.NoError(t, cache.MarkMissing(ctx, code))
	}
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cache.MarkMissing(ctx, "fresh"))
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryChangeNotifier(t *testing.T) {
	notifier := NewMemoryChangeNotifier()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := notifier.Subscribe(ctx, 1)
	require.NoError(t, err)
	others, err := notifier.Subscribe(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.Subscribers(1))

	require.NoError(t, notifier.Publish(context.Background(), ChangeEvent{UserID: 1, Table: ChangeTableLinks, Op: ChangeOpInsert, LinkID: 10}))

	select {
	case ev := <-events:
		assert.Equal(t, uint(10), ev.LinkID)
		assert.Equal(t, ChangeOpInsert, ev.Op)
	case <-time.After(time.Second):
		t.Fatal("expected change event")
	}

	select {
	case ev := <-others:
		t.Fatalf("unexpected event for another user: %+v", ev)
	default:
	}

	cancel()
	_, open := <-events
	for open {
		_, open = <-events
	}
	assert.Eventually(t, func() bool { return notifier.Subscribers(1) == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryChangeNotifier_SlowSubscriberDoesNotBlock(t *testing.T) {
	notifier := NewMemoryChangeNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := notifier.Subscribe(ctx, 3)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			_ = notifier.Publish(context.Background(), ChangeEvent{UserID: 3, Table: ChangeTableLinkClicks, Op: ChangeOpInsert})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestCaptchaService_UnknownChallenge(t *testing.T) {
	svc := NewCaptchaService(time.Minute, 5)
	assert.False(t, svc.Verify(context.Background(), "does-not-exist", 90))
}

func TestCaptchaService_ChallengeIsSingleUse(t *testing.T) {
	svc := NewCaptchaService(time.Minute, 5)
	ctx := context.Background()

	challenge, err := svc.Generate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.ID)
	assert.NotEmpty(t, challenge.MasterImageBase64)
	assert.NotEmpty(t, challenge.ThumbImageBase64)

	impl := svc.(*captchaServiceImpl)
	impl.mu.Lock()
	angle := impl.challenges[challenge.ID].angle
	impl.mu.Unlock()

	assert.True(t, svc.Verify(ctx, challenge.ID, float64(angle)))
	assert.False(t, svc.Verify(ctx, challenge.ID, float64(angle)))
}
