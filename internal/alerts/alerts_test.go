package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/feed-pulse/internal/models"
)

// memStore is an in-memory Store with the same compare-and-set contract as
// the SQLite implementation.
type memStore struct {
	mu      sync.Mutex
	alerts  map[string]*models.PriceAlert
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[string]*models.PriceAlert)}
}

func (s *memStore) UpsertAlert(ctx context.Context, alert *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *memStore) ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []models.PriceAlert
	for _, a := range s.alerts {
		if a.IsActive && !a.IsTriggered {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.IsTriggered {
		return false, nil
	}
	a.IsTriggered = true
	a.TriggeredAt = &at
	return true, nil
}

func (s *memStore) DeleteAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, id)
	return nil
}

type fixedPrices struct {
	views map[string]*models.AggregatedPrice
}

func (p *fixedPrices) AggregatedPrice(ctx context.Context, symbol string) *models.AggregatedPrice {
	return p.views[symbol]
}

func priceView(symbol string, average float64, quotes ...models.ExchangeQuote) *models.AggregatedPrice {
	return &models.AggregatedPrice{
		Symbol:        symbol,
		Average:       average,
		ExchangeCount: len(quotes),
		Quotes:        quotes,
		UpdatedAt:     time.Now(),
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	fired []models.PriceAlert
	err   error
}

func (n *recordingNotifier) NotifyTriggered(alert models.PriceAlert, currentPrice float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fired = append(n.fired, alert)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.fired)
}

func mustCreate(t *testing.T, e *Evaluator, symbol, exchange string, target float64, cond models.Condition) *models.PriceAlert {
	t.Helper()
	alert, err := e.CreateAlert(context.Background(), "user-1", symbol, exchange, target, cond)
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	return alert
}

func TestCreateAlertValidation(t *testing.T) {
	e := NewEvaluator(newMemStore(), &fixedPrices{}, nil, time.Minute)

	if _, err := e.CreateAlert(context.Background(), "user-1", "", "", 100, models.ConditionAbove); err == nil {
		t.Error("CreateAlert accepted an empty symbol")
	}
	if _, err := e.CreateAlert(context.Background(), "user-1", "BTCUSDT", "", 0, models.ConditionAbove); err == nil {
		t.Error("CreateAlert accepted a zero target price")
	}
	if _, err := e.CreateAlert(context.Background(), "user-1", "BTCUSDT", "", 100, "sideways"); err == nil {
		t.Error("CreateAlert accepted an unknown condition")
	}

	alert := mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)
	if alert.ID == "" || !alert.IsActive || alert.IsTriggered {
		t.Errorf("new alert state = %+v, want active and untriggered with an ID", alert)
	}
}

func TestEvaluateOnceFiresAboveAlert(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 50500),
	}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 1 {
		t.Errorf("triggered = %d, want 1", triggered)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestEvaluateOnceDoesNotFireUnmetCondition(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 49000),
	}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 0 || notifier.count() != 0 {
		t.Errorf("triggered = %d, notifications = %d, want 0/0", triggered, notifier.count())
	}
}

// An alert fires exactly once even when the condition keeps holding on
// subsequent ticks.
func TestAlertFiresExactlyOnce(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 60000),
	}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)

	for i := 0; i < 3; i++ {
		if _, err := e.EvaluateOnce(context.Background()); err != nil {
			t.Fatalf("EvaluateOnce #%d failed: %v", i+1, err)
		}
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d across 3 ticks, want exactly 1", notifier.count())
	}
}

// When the compare-and-set loses (another tick already flipped the alert), no
// notification is sent.
func TestLostRaceSkipsNotification(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 60000),
	}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	alert := mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)

	// Simulate a concurrent tick winning the CAS between load and trigger.
	if flipped, _ := store.MarkTriggered(context.Background(), alert.ID, time.Now()); !flipped {
		t.Fatal("setup: first MarkTriggered should win")
	}

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 0 || notifier.count() != 0 {
		t.Errorf("triggered = %d, notifications = %d after lost race, want 0/0", triggered, notifier.count())
	}
}

func TestMissingQuoteSkipsAlert(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "NOPEUSDT", "", 1, models.ConditionAbove)

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("a missing quote must not fail the tick: %v", err)
	}
	if triggered != 0 {
		t.Errorf("triggered = %d with no quote, want 0", triggered)
	}

	// The alert stays pending for later ticks.
	active, _ := store.ActiveAlerts(context.Background())
	if len(active) != 1 {
		t.Errorf("active alerts = %d, want the skipped alert to remain", len(active))
	}
}

func TestExchangePinnedAlertUsesThatQuote(t *testing.T) {
	store := newMemStore()
	// The average is above target, but the pinned exchange is below it.
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 51000,
			models.ExchangeQuote{Exchange: "binance", Price: 49000},
			models.ExchangeQuote{Exchange: "okx", Price: 53000},
		),
	}}
	notifier := &recordingNotifier{}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "BTCUSDT", "binance", 50000, models.ConditionAbove)

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 0 {
		t.Error("pinned alert fired on the average instead of the exchange quote")
	}

	// Pinning an exchange that has no quote skips the alert entirely.
	mustCreate(t, e, "BTCUSDT", "bybit", 50000, models.ConditionAbove)
	triggered, err = e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 0 {
		t.Error("alert pinned to an absent exchange fired")
	}
}

// A notification failure never rolls back the trigger: the alert stays fired
// and is excluded from later ticks.
func TestNotifierFailureDoesNotRollBackTrigger(t *testing.T) {
	store := newMemStore()
	prices := &fixedPrices{views: map[string]*models.AggregatedPrice{
		"BTCUSDT": priceView("BTCUSDT", 60000),
	}}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	e := NewEvaluator(store, prices, notifier, time.Minute)

	mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)

	triggered, err := e.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("EvaluateOnce failed: %v", err)
	}
	if triggered != 1 {
		t.Errorf("triggered = %d, want 1 despite notify failure", triggered)
	}
	active, _ := store.ActiveAlerts(context.Background())
	if len(active) != 0 {
		t.Error("alert still pending after its trigger was persisted")
	}
}

func TestEvaluateOnceLoadFailure(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("database locked")
	e := NewEvaluator(store, &fixedPrices{}, nil, time.Minute)

	if _, err := e.EvaluateOnce(context.Background()); err == nil {
		t.Error("EvaluateOnce swallowed a store load failure")
	}
}

func TestDeleteAlert(t *testing.T) {
	store := newMemStore()
	e := NewEvaluator(store, &fixedPrices{}, nil, time.Minute)

	alert := mustCreate(t, e, "BTCUSDT", "", 50000, models.ConditionAbove)
	if err := e.DeleteAlert(context.Background(), alert.ID); err != nil {
		t.Fatalf("DeleteAlert failed: %v", err)
	}
	active, _ := store.ActiveAlerts(context.Background())
	if len(active) != 0 {
		t.Errorf("active alerts = %d after delete, want 0", len(active))
	}
}
