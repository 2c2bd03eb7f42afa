package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock_alerts_backend/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewStore(db, nil)
	require.NoError(t, err)
	return store
}

func bar(symbol string, date time.Time, close float64) models.StockPrice {
	return models.StockPrice{
		Symbol: symbol,
		Date:   date,
		Open:   decimal.NewFromFloat(close),
		High:   decimal.NewFromFloat(close),
		Low:    decimal.NewFromFloat(close),
		Close:  decimal.NewFromFloat(close),
		Volume: 1000,
	}
}

func TestRecentClosesChronological(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, close := range []float64{100, 101, 102, 103} {
		require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day.AddDate(0, 0, i), close)))
	}

	closes, err := store.RecentCloses("AAPL", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102, 103}, closes, "oldest first, bounded to n")
}

func TestRecentClosesUnknownSymbol(t *testing.T) {
	store := testStore(t)
	closes, err := store.RecentCloses("ZZZZ", 5)
	require.NoError(t, err)
	assert.Empty(t, closes)
}

func TestRecordDailyBarDerivesChange(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day, 200)))
	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day.AddDate(0, 0, 1), 210)))

	var stored models.StockPrice
	require.NoError(t, store.db.Where("symbol = ?", "AAPL").Order("date DESC").First(&stored).Error)
	change, _ := stored.Change.Float64()
	pct, _ := stored.ChangePercent.Float64()
	assert.InDelta(t, 10, change, 1e-6)
	assert.InDelta(t, 5, pct, 1e-6)
}

func TestRefreshPreviousClosesPicksLatestBarBeforeDay(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day.AddDate(0, 0, -3), 95)))
	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day.AddDate(0, 0, -1), 100)))
	require.NoError(t, store.RecordDailyBar(ctx, bar("MSFT", day.AddDate(0, 0, -2), 300)))
	// A bar on the trading day itself must not become the baseline.
	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day, 110)))

	closes, err := store.RefreshPreviousCloses(ctx, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 100, closes["AAPL"], 1e-6)
	assert.InDelta(t, 300, closes["MSFT"], 1e-6)

	got, ok := store.PreviousDayClose("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 100, got, 1e-6)
}

func TestPreviousDayCloseUnpopulated(t *testing.T) {
	store := testStore(t)
	_, ok := store.PreviousDayClose("AAPL")
	assert.False(t, ok)
}

func TestSymbols(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day, 1)))
	require.NoError(t, store.RecordDailyBar(ctx, bar("AAPL", day.AddDate(0, 0, 1), 2)))
	require.NoError(t, store.RecordDailyBar(ctx, bar("MSFT", day, 3)))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, symbols)
}
