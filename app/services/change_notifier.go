package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/shortlink/logging"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Change sources
const (
	ChangeTableLinks      = "links"
	ChangeTableLinkClicks = "link_clicks"

	ChangeOpInsert = "insert"
	ChangeOpUpdate = "update"
	ChangeOpDelete = "delete"
	// ChangeOpRefresh asks viewers to re-fetch without a store change
	ChangeOpRefresh = "refresh"
)

// ChangeEvent tells a user's viewers that their links or click log changed
type ChangeEvent struct {
	UserID uint      `json:"user_id"`
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	LinkID uint      `json:"link_id,omitempty"`
	At     time.Time `json:"at"`
}

// ChangeNotifier fans change events out to every subscriber of the same user.
// Delivery is best effort; subscribers re-fetch fully on any event.
type ChangeNotifier interface {
	Publish(ctx context.Context, event ChangeEvent) error
	// Subscribe returns a channel that is closed once ctx is done
	Subscribe(ctx context.Context, userID uint) (<-chan ChangeEvent, error)
}

const subscriberBuffer = 16

// RedisChangeNotifier publishes events on {prefix}changes:{userID}
type RedisChangeNotifier struct {
	client  redis.UniversalClient
	prefix  string
	breaker *gobreaker.CircuitBreaker[int64]
}

func NewRedisChangeNotifier(client redis.UniversalClient, prefix string, settings BreakerSettings) *RedisChangeNotifier {
	return &RedisChangeNotifier{
		client:  client,
		prefix:  prefix,
		breaker: newRedisBreaker[int64]("redis-change-notifier", settings),
	}
}

func (n *RedisChangeNotifier) channel(userID uint) string {
	return n.prefix + "changes:" + strconv.FormatUint(uint64(userID), 10)
}

func (n *RedisChangeNotifier) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	_, err = n.breaker.Execute(func() (int64, error) {
		return n.client.Publish(ctx, n.channel(event.UserID), payload).Result()
	})
	return err
}

func (n *RedisChangeNotifier) Subscribe(ctx context.Context, userID uint) (<-chan ChangeEvent, error) {
	pubsub := n.client.Subscribe(ctx, n.channel(userID))
	// Wait for the subscription confirmation so no event published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan ChangeEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed change event")
					continue
				}
				select {
				case out <- event:
				default:
					// a pending event already forces a full refetch
				}
			}
		}
	}()

	return out, nil
}

// MemoryChangeNotifier delivers events within the current process
type MemoryChangeNotifier struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan ChangeEvent]struct{}
}

func NewMemoryChangeNotifier() *MemoryChangeNotifier {
	return &MemoryChangeNotifier{subscribers: make(map[uint]map[chan ChangeEvent]struct{})}
}

func (n *MemoryChangeNotifier) Publish(ctx context.Context, event ChangeEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (n *MemoryChangeNotifier) Subscribe(ctx context.Context, userID uint) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, subscriberBuffer)

	n.mu.Lock()
	if n.subscribers[userID] == nil {
		n.subscribers[userID] = make(map[chan ChangeEvent]struct{})
	}
	n.subscribers[userID][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subscribers[userID], ch)
		if len(n.subscribers[userID]) == 0 {
			delete(n.subscribers, userID)
		}
		n.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Subscribers reports how many live subscriptions a user has
func (n *MemoryChangeNotifier) Subscribers(userID uint) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers[userID])
}
