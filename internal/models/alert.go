package models

import (
	"errors"
	"time"
)

// Condition is the trigger predicate attached to a price alert.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"

	// ConditionCrossesAbove and ConditionCrossesBelow evaluate identically to
	// above/below: no previous-price history is stored, so true edge-crossing
	// detection is not possible. This is a documented simplification, kept
	// deliberately until product intent on cross semantics is clarified.
	ConditionCrossesAbove Condition = "crosses_above"
	ConditionCrossesBelow Condition = "crosses_below"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionCrossesAbove, ConditionCrossesBelow:
		return true
	}
	return false
}

// Met evaluates the condition against the current price.
func (c Condition) Met(current, target float64) bool {
	switch c {
	case ConditionAbove, ConditionCrossesAbove:
		return current >= target
	case ConditionBelow, ConditionCrossesBelow:
		return current <= target
	}
	return false
}

// PriceAlert is a one-shot alert on an aggregated price. Lifecycle: created
// active and untriggered; evaluated on every tick until it fires or the user
// deactivates it. IsTriggered is monotonic false→true; a triggered alert is
// excluded from all future evaluation and is never un-triggered.
// IsActive is an orthogonal user-controlled flag, independent of the trigger
// state machine.
type PriceAlert struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Symbol      string     `json:"symbol"`
	Exchange    string     `json:"exchange,omitempty"` // Empty means any exchange (aggregated view)
	TargetPrice float64    `json:"target_price"`
	Condition   Condition  `json:"condition"`
	IsActive    bool       `json:"is_active"`
	IsTriggered bool       `json:"is_triggered"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
}

// Validate checks that all alert fields are valid.
func (a *PriceAlert) Validate() error {
	if a.ID == "" {
		return errors.New("alert ID must not be empty")
	}
	if a.UserID == "" {
		return errors.New("alert user ID must not be empty")
	}
	if a.Symbol == "" {
		return errors.New("alert symbol must not be empty")
	}
	if a.TargetPrice <= 0 {
		return errors.New("alert target price must be positive")
	}
	if !a.Condition.Valid() {
		return errors.New("alert condition must be one of: above, below, crosses_above, crosses_below")
	}
	if a.IsTriggered && a.TriggeredAt == nil {
		return errors.New("triggered alert must carry a triggered-at timestamp")
	}
	return nil
}
