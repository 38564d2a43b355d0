package services

import (
	"errors"
	"time"

	"github.com/amirphl/shortlink/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

var redisBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "shortlink_redis_breaker_state",
		Help: "Redis circuit breaker state (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// BreakerSettings configures the breakers placed in front of redis calls
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func (b BreakerSettings) withDefaults() BreakerSettings {
	if b.MaxFailures == 0 {
		b.MaxFailures = 5
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = 30 * time.Second
	}
	return b
}

// newRedisBreaker builds a breaker that trips after consecutive redis failures.
// redis.Nil is a cache miss and does not count as a failure.
func newRedisBreaker[T any](name string, settings BreakerSettings) *gobreaker.CircuitBreaker[T] {
	settings = settings.withDefaults()
	redisBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			redisBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Redis circuit breaker changed state")
		},
	})
}

// isBreakerOpen reports whether err was produced by a rejecting breaker rather than redis itself
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
