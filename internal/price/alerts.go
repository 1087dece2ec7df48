package price

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/metasolana/metasolanabot/internal/store"
)

// AlertStore is the slice of the datastore the checker needs.
type AlertStore interface {
	ActivePriceAlerts(ctx context.Context, telegramID int64) ([]store.PriceAlert, error)
	DeactivatePriceAlert(ctx context.Context, alertID string, triggeredAt time.Time) error
}

// QuoteSource yields current quotes; satisfied by *Client.
type QuoteSource interface {
	TokenPrice(ctx context.Context, symbol string) (Quote, error)
}

// NotifyFunc is invoked after an alert has been deactivated. The alert
// carries its pre-trigger state; current is the price that tripped it.
type NotifyFunc func(ctx context.Context, alert store.PriceAlert, current float64)

// Checker evaluates a user's active alerts against current prices and
// retires the ones whose condition holds.
type Checker struct {
	alerts AlertStore
	quotes QuoteSource
	notify NotifyFunc
}

// NewChecker wires a Checker. notify may be nil.
func NewChecker(alerts AlertStore, quotes QuoteSource, notify NotifyFunc) *Checker {
	return &Checker{alerts: alerts, quotes: quotes, notify: notify}
}

// shouldTrigger applies the inclusive threshold rule: above fires at
// current >= target, below at current <= target.
func shouldTrigger(alert store.PriceAlert, current float64) bool {
	switch alert.Direction {
	case store.AlertAbove:
		return current >= alert.TargetPrice
	case store.AlertBelow:
		return current <= alert.TargetPrice
	default:
		return false
	}
}

// CheckPriceAlerts evaluates every active alert of one user, serially.
// A failed quote skips that alert only; a failed alert load aborts the
// whole call. Deactivation happens before notification so a send
// failure cannot re-fire the alert on the next sweep.
func (c *Checker) CheckPriceAlerts(ctx context.Context, userID int64) error {
	alerts, err := c.alerts.ActivePriceAlerts(ctx, userID)
	if err != nil {
		return fmt.Errorf("load alerts for user %d: %w", userID, err)
	}

	for _, alert := range alerts {
		quote, err := c.quotes.TokenPrice(ctx, alert.TokenMint)
		if err != nil {
			log.Printf("[alerts] quote for %s skipped: %v", alert.TokenMint, err)
			continue
		}
		if !shouldTrigger(alert, quote.Price) {
			continue
		}

		if err := c.alerts.DeactivatePriceAlert(ctx, alert.ID, time.Now().UTC()); err != nil {
			log.Printf("[alerts] deactivate %s failed: %v", alert.ID, err)
			continue
		}
		log.Printf("[alerts] triggered: user=%d %s %s $%g at $%g", alert.UserID, alert.TokenMint, alert.Direction, alert.TargetPrice, quote.Price)

		if c.notify != nil {
			c.notify(ctx, alert, quote.Price)
		}
	}
	return nil
}
