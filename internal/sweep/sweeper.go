package sweep

import (
	"context"
	"log"
	"time"
)

// UserSource yields the candidate set for one pass: the users that
// currently hold at least one active alert.
type UserSource interface {
	UserIDsWithActiveAlerts(ctx context.Context) ([]int64, error)
}

// AlertChecker evaluates one user's active alerts.
type AlertChecker interface {
	CheckPriceAlerts(ctx context.Context, userID int64) error
}

// Sweeper runs the periodic alert evaluation. One tick runs one pass
// serially; a failed tick is logged and skipped with no backoff or
// catch-up state.
type Sweeper struct {
	users    UserSource
	checker  AlertChecker
	interval time.Duration
}

// New wires a Sweeper with the given tick interval.
func New(users UserSource, checker AlertChecker, interval time.Duration) *Sweeper {
	return &Sweeper{users: users, checker: checker, interval: interval}
}

// Run ticks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[sweep] running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	ids, err := s.users.UserIDsWithActiveAlerts(ctx)
	if err != nil {
		log.Printf("[sweep] tick skipped: %v", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.checker.CheckPriceAlerts(ctx, id); err != nil {
			log.Printf("[sweep] user %d: %v", id, err)
		}
	}
}
