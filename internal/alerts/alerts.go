// Package alerts implements one-shot price alerts over the aggregated price
// view. A background evaluator polls the latest cross-exchange prices on a
// fixed interval, independent of request traffic, and flips alerts from
// untriggered to triggered exactly once via a compare-and-set on the store.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feed-pulse/internal/logger"
	"github.com/feed-pulse/internal/models"
)

// Store is the persistence collaborator for alerts. MarkTriggered must be a
// compare-and-set: it returns false when the alert was already triggered, so
// overlapping evaluation ticks can never double-fire one alert.
type Store interface {
	UpsertAlert(ctx context.Context, alert *models.PriceAlert) error
	ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteAlert(ctx context.Context, id string) error
}

// Notifier delivers the fired-alert side effect. Delivery is fire-and-forget:
// a notification failure is logged and never rolls back the triggered state.
type Notifier interface {
	NotifyTriggered(alert models.PriceAlert, currentPrice float64) error
}

// StatusNotifier is optionally implemented by notifiers that also want
// evaluator health notices.
type StatusNotifier interface {
	NotifyError(err error) error
	NotifyRecovery(consecutiveFailures int) error
}

// PriceSource supplies the aggregated price view the evaluator reads. A nil
// result means no exchange currently quotes the symbol.
type PriceSource interface {
	AggregatedPrice(ctx context.Context, symbol string) *models.AggregatedPrice
}

// Evaluator runs the alert evaluation loop.
type Evaluator struct {
	store    Store
	prices   PriceSource
	notifier Notifier // may be nil
	interval time.Duration
}

// NewEvaluator creates an evaluator. notifier may be nil, in which case
// triggered alerts are only persisted and logged.
func NewEvaluator(store Store, prices PriceSource, notifier Notifier, interval time.Duration) *Evaluator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Evaluator{
		store:    store,
		prices:   prices,
		notifier: notifier,
		interval: interval,
	}
}

// CreateAlert validates and persists a new alert in the active, untriggered
// state. Persistence failure here is a real inability to fulfill the user's
// request and is propagated.
func (e *Evaluator) CreateAlert(ctx context.Context, userID, symbol, exchange string, targetPrice float64, condition models.Condition) (*models.PriceAlert, error) {
	alert := &models.PriceAlert{
		ID:          uuid.New().String(),
		UserID:      userID,
		Symbol:      symbol,
		Exchange:    exchange,
		TargetPrice: targetPrice,
		Condition:   condition,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alert: %w", err)
	}
	if err := e.store.UpsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}
	return alert, nil
}

// DeleteAlert removes an alert. Persistence failure is propagated.
func (e *Evaluator) DeleteAlert(ctx context.Context, id string) error {
	if err := e.store.DeleteAlert(ctx, id); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// Run evaluates on a fixed interval until the context is cancelled. The loop
// itself never dies to a bad tick; consecutive failures are reported through
// the notifier when it supports status notices, with a recovery notice once
// a tick succeeds again.
func (e *Evaluator) Run(ctx context.Context) {
	logger.Info("Starting alert evaluator (interval: %v)", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	status, _ := e.notifier.(StatusNotifier)
	consecutiveFailures := 0

	handleTick := func() {
		triggered, err := e.EvaluateOnce(ctx)
		if err != nil {
			consecutiveFailures++
			logger.Error("Alert evaluation tick failed: %v", err)
			if consecutiveFailures == 1 && status != nil {
				if nerr := status.NotifyError(err); nerr != nil {
					logger.Warn("Failed to send evaluator error notice: %v", nerr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && status != nil {
			if nerr := status.NotifyRecovery(consecutiveFailures); nerr != nil {
				logger.Warn("Failed to send evaluator recovery notice: %v", nerr)
			}
		}
		consecutiveFailures = 0
		if triggered > 0 {
			logger.Info("Alert tick: %d alerts fired", triggered)
		}
	}

	handleTick()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Alert evaluator stopped")
			return
		case <-ticker.C:
			handleTick()
		}
	}
}

// EvaluateOnce runs a single evaluation pass and returns how many alerts
// fired. Only loading the alert set can fail the tick; a missing quote for
// one alert's symbol is expected state and just skips that alert.
func (e *Evaluator) EvaluateOnce(ctx context.Context) (int, error) {
	alerts, err := e.store.ActiveAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	// One price lookup per distinct symbol, not per alert.
	views := make(map[string]*models.AggregatedPrice)
	for _, alert := range alerts {
		if _, seen := views[alert.Symbol]; !seen {
			views[alert.Symbol] = e.prices.AggregatedPrice(ctx, alert.Symbol)
		}
	}

	triggered := 0
	for _, alert := range alerts {
		price, ok := currentPrice(views[alert.Symbol], alert.Exchange)
		if !ok {
			logger.Debug("No price for %s/%s this tick, skipping alert %s",
				alert.Symbol, alert.Exchange, alert.ID)
			continue
		}

		if !alert.Condition.Met(price, alert.TargetPrice) {
			continue
		}

		now := time.Now()
		flipped, err := e.store.MarkTriggered(ctx, alert.ID, now)
		if err != nil {
			logger.Warn("Failed to mark alert %s triggered: %v", alert.ID, err)
			continue
		}
		if !flipped {
			// Another tick (or a duplicate load) won the race; the alert
			// already fired and must not notify twice.
			continue
		}

		triggered++
		logger.Info("Alert %s fired: %s %s %.8g (current %.8g)",
			alert.ID, alert.Symbol, alert.Condition, alert.TargetPrice, price)

		if e.notifier != nil {
			if err := e.notifier.NotifyTriggered(alert, price); err != nil {
				logger.Warn("Failed to notify for alert %s: %v", alert.ID, err)
			}
		}
	}
	return triggered, nil
}

// currentPrice resolves the price an alert should compare against: the
// named exchange's quote when the alert pins one, otherwise the
// cross-exchange average.
func currentPrice(view *models.AggregatedPrice, exchange string) (float64, bool) {
	if view == nil {
		return 0, false
	}
	if exchange == "" {
		return view.Average, true
	}
	for _, q := range view.Quotes {
		if q.Exchange == exchange {
			return q.Price, true
		}
	}
	return 0, false
}
