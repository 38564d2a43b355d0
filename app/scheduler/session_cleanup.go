// Package scheduler runs periodic maintenance jobs
package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/shortlink/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsExpiredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "shortlink_sessions_expired_total",
		Help: "Sessions closed by the cleanup job after their refresh window ended",
	},
)

// SessionSweeper closes sessions whose refresh window has ended
type SessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// SessionCleanupScheduler periodically deactivates expired session rows so the active
// session count reflects reality
type SessionCleanupScheduler struct {
	sessions SessionSweeper
	interval time.Duration
	timeout  time.Duration
}

func NewSessionCleanupScheduler(sessions SessionSweeper, interval time.Duration) *SessionCleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionCleanupScheduler{
		sessions: sessions,
		interval: interval,
		timeout:  time.Minute,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function.
// The stop function blocks until the loop has exited.
func (s *SessionCleanupScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *SessionCleanupScheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	n, err := s.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		if parent.Err() == nil {
			logging.Error().Err(err).Str("job", "session_cleanup").Msg("Session cleanup failed")
		}
		return
	}
	if n > 0 {
		sessionsExpiredTotal.Add(float64(n))
		logging.Info().Int64("sessions", n).Str("job", "session_cleanup").Msg("Expired sessions closed")
	}
}
