package models

import (
	"errors"
	"time"
)

// Ticker is a 24h market ticker for one symbol on one exchange.
type Ticker struct {
	Symbol             string    `json:"symbol"`
	BaseAsset          string    `json:"base_asset,omitempty"`
	QuoteAsset         string    `json:"quote_asset,omitempty"`
	Price              float64   `json:"price"`
	PriceChange        float64   `json:"price_change"`
	PriceChangePercent float64   `json:"price_change_percent"`
	Volume             float64   `json:"volume"`
	QuoteVolume        float64   `json:"quote_volume"`
	High               float64   `json:"high"`
	Low                float64   `json:"low"`
	Open               float64   `json:"open"`
	Close              float64   `json:"close"`
	Exchange           string    `json:"exchange"`
	Timestamp          time.Time `json:"timestamp"`
}

// Validate checks that all ticker fields are valid.
func (t *Ticker) Validate() error {
	if t.Symbol == "" {
		return errors.New("ticker symbol must not be empty")
	}
	if t.Exchange == "" {
		return errors.New("ticker exchange must not be empty")
	}
	if t.Price < 0 {
		return errors.New("ticker price must not be negative")
	}
	if t.Volume < 0 {
		return errors.New("ticker volume must not be negative")
	}
	return nil
}

// ExchangeQuote is one exchange's contribution to an aggregated price view.
type ExchangeQuote struct {
	Exchange  string    `json:"exchange"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// AggregatedPrice is the cross-exchange price view for one symbol, computed
// at query time from whatever per-exchange tickers are currently available.
type AggregatedPrice struct {
	Symbol        string          `json:"symbol"`
	Average       float64         `json:"average"`
	Min           float64         `json:"min"`
	Max           float64         `json:"max"`
	SpreadPercent float64         `json:"spread_percent"` // (max-min)/min × 100, 0 when min is 0
	ExchangeCount int             `json:"exchange_count"`
	Quotes        []ExchangeQuote `json:"quotes"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
