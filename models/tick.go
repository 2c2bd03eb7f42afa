package models

import "time"

// Tick is one timestamped price/volume observation for a symbol,
// consumed from the external market-data feed. Ticks are ephemeral
// and never persisted by the engine.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdate is the structured update fanned out to subscribed clients.
type PriceUpdate struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}
