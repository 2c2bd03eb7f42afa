package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice is one daily OHLCV bar in the historical price store.
// It seeds indicator buffers on cold start and supplies the
// previous-day close baseline for percentage alerts.
type StockPrice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"index:idx_symbol_date;size:16" json:"symbol"`
	Date          time.Time       `gorm:"index:idx_symbol_date" json:"date"`
	Open          decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High          decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low           decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close         decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	Volume        int64           `json:"volume"`
	Change        decimal.Decimal `gorm:"type:decimal(15,4)" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"change_percent"`
	CreatedAt     time.Time       `json:"created_at"`
}
