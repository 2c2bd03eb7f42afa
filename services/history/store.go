package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_alerts_backend/models"
)

var hundred = decimal.NewFromInt(100)

// Store reads the historical daily price table. It seeds indicator
// buffers on cold start and caches the previous-day close baseline
// used by percentage alerts and the fan-out change fields.
//
// The previous-close cache is refreshed once per trading-day rollover
// by the scheduler; between refreshes lookups are in-memory.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	mu        sync.RWMutex
	prevClose map[string]float64
	asOf      time.Time
}

// NewStore creates the store and runs the StockPrice migration.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&models.StockPrice{}); err != nil {
		return nil, fmt.Errorf("failed to migrate price history: %w", err)
	}
	return &Store{
		db:        db,
		logger:    logger,
		prevClose: make(map[string]float64),
	}, nil
}

// RecentCloses returns up to n most recent daily closes for symbol,
// oldest first, ready to replay into an indicator buffer.
func (s *Store) RecentCloses(symbol string, n int) ([]float64, error) {
	var prices []models.StockPrice
	err := s.db.Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(n).
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load closes for %s: %w", symbol, err)
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		// reverse into chronological order
		f, _ := p.Close.Float64()
		closes[len(prices)-1-i] = f
	}
	return closes, nil
}

// PreviousDayClose returns the cached prior trading day close for
// symbol. The second result is false until the cache has been
// populated for that symbol.
func (s *Store) PreviousDayClose(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	close, ok := s.prevClose[symbol]
	return close, ok
}

// RefreshPreviousCloses rebuilds the previous-close cache from the
// latest stored bar per symbol before the given trading day, and
// returns the new baselines so the caller can rewrite percentage
// alerts. This is the explicit trading-day rollover policy.
func (s *Store) RefreshPreviousCloses(ctx context.Context, tradingDay time.Time) (map[string]float64, error) {
	dayStart := time.Date(tradingDay.Year(), tradingDay.Month(), tradingDay.Day(), 0, 0, 0, 0, tradingDay.Location())

	var rows []models.StockPrice
	err := s.db.WithContext(ctx).
		Raw(`SELECT p.* FROM stock_prices p
		     JOIN (SELECT symbol, MAX(date) AS max_date
		           FROM stock_prices WHERE date < ? GROUP BY symbol) latest
		     ON p.symbol = latest.symbol AND p.date = latest.max_date`, dayStart).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to refresh previous closes: %w", err)
	}

	closes := make(map[string]float64, len(rows))
	for _, row := range rows {
		f, _ := row.Close.Float64()
		closes[row.Symbol] = f
	}

	s.mu.Lock()
	s.prevClose = closes
	s.asOf = dayStart
	s.mu.Unlock()

	s.logger.Info("previous-day closes refreshed",
		zap.Int("symbols", len(closes)),
		zap.Time("trading_day", dayStart))
	return closes, nil
}

// RecordDailyBar inserts one daily bar. The change columns are
// derived from the prior stored close when present.
func (s *Store) RecordDailyBar(ctx context.Context, bar models.StockPrice) error {
	var prev models.StockPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date < ?", bar.Symbol, bar.Date).
		Order("date DESC").
		First(&prev).Error
	if err == nil && !prev.Close.IsZero() {
		bar.Change = bar.Close.Sub(prev.Close)
		bar.ChangePercent = bar.Change.Div(prev.Close).Mul(hundred)
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to look up prior bar for %s: %w", bar.Symbol, err)
	}

	if err := s.db.WithContext(ctx).Create(&bar).Error; err != nil {
		return fmt.Errorf("failed to store daily bar for %s: %w", bar.Symbol, err)
	}
	return nil
}

// Symbols lists the distinct symbols present in the history table.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.StockPrice{}).
		Distinct("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return symbols, nil
}
