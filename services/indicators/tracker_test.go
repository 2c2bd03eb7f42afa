package indicators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_alerts_backend/models"
)

type stubSeed struct {
	closes map[string][]float64
	err    error
	calls  int
}

func (s *stubSeed) RecentCloses(symbol string, n int) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	closes := s.closes[symbol]
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return closes, nil
}

func feed(t *Tracker, symbol string, closes ...float64) {
	for _, c := range closes {
		t.Observe(models.Tick{Symbol: symbol, Price: c})
	}
}

func TestRSIRequiresPeriodPlusOneCloses(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("AAPL", models.TechnicalIndicatorConfig{Type: models.IndicatorRSI, Period: 3, Threshold: 70})

	feed(tr, "AAPL", 10, 11, 12)
	_, ok := tr.Value("AAPL", models.IndicatorRSI, 3)
	assert.False(t, ok, "3 closes must not produce a 3-period RSI")

	feed(tr, "AAPL", 13)
	v, ok := tr.Value("AAPL", models.IndicatorRSI, 3)
	require.True(t, ok)
	assert.Equal(t, 100.0, v, "monotonic rise has no losses")
}

func TestRSIDirectionExtremes(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("X", models.TechnicalIndicatorConfig{Type: models.IndicatorRSI, Period: 3, Threshold: 30})

	feed(tr, "X", 40, 30, 20, 10)
	v, ok := tr.Value("X", models.IndicatorRSI, 3)
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "monotonic fall has no gains")
}

func TestRSIWilderSmoothing(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("X", models.TechnicalIndicatorConfig{Type: models.IndicatorRSI, Period: 2, Threshold: 50})

	// Changes: +2, -1 then a smoothed +4.
	feed(tr, "X", 10, 12, 11)
	v, ok := tr.Value("X", models.IndicatorRSI, 2)
	require.True(t, ok)
	// avgGain=1, avgLoss=0.5, RS=2, RSI=66.67
	assert.InDelta(t, 66.667, v, 0.01)

	feed(tr, "X", 15)
	v, ok = tr.Value("X", models.IndicatorRSI, 2)
	require.True(t, ok)
	// avgGain=(1*1+4)/2=2.5, avgLoss=(0.5*1+0)/2=0.25, RS=10
	assert.InDelta(t, 90.909, v, 0.01)
}

func TestMovingAverageWindow(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("MSFT", models.TechnicalIndicatorConfig{Type: models.IndicatorMA, Period: 3, Threshold: 25})

	feed(tr, "MSFT", 10, 20)
	_, ok := tr.Value("MSFT", models.IndicatorMA, 3)
	assert.False(t, ok)

	feed(tr, "MSFT", 30)
	v, ok := tr.Value("MSFT", models.IndicatorMA, 3)
	require.True(t, ok)
	assert.InDelta(t, 20, v, 1e-9)

	feed(tr, "MSFT", 40)
	v, _ = tr.Value("MSFT", models.IndicatorMA, 3)
	assert.InDelta(t, 30, v, 1e-9, "window must slide, not grow")
}

func TestMACDValidAfterSlowPeriod(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("GOOG", models.TechnicalIndicatorConfig{Type: models.IndicatorMACD})

	for i := 0; i < 25; i++ {
		feed(tr, "GOOG", 50)
	}
	_, ok := tr.Value("GOOG", models.IndicatorMACD, 0)
	assert.False(t, ok)

	feed(tr, "GOOG", 50, 50)
	v, ok := tr.Value("GOOG", models.IndicatorMACD, 0)
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-9, "flat series has identical fast and slow EMAs")
}

func TestGoldenCrossFiresExactlyOnce(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("NVDA", models.TechnicalIndicatorConfig{
		Type:       models.IndicatorMA,
		Period:     2,
		SlowPeriod: 3,
		Crossover:  models.CrossoverGolden,
	})

	feed(tr, "NVDA", 10, 9)
	cross, ok := tr.Crossover("NVDA", 2, 3)
	require.False(t, ok, "insufficient samples for the slow window")
	assert.Equal(t, CrossNone, cross)

	feed(tr, "NVDA", 8, 8)
	cross, ok = tr.Crossover("NVDA", 2, 3)
	require.True(t, ok)
	assert.Equal(t, CrossNone, cross, "fast still below slow")

	feed(tr, "NVDA", 12)
	cross, ok = tr.Crossover("NVDA", 2, 3)
	require.True(t, ok)
	assert.Equal(t, CrossAbove, cross, "sign transition on this tick")

	feed(tr, "NVDA", 13)
	cross, ok = tr.Crossover("NVDA", 2, 3)
	require.True(t, ok)
	assert.Equal(t, CrossNone, cross, "crossover reports only the transition tick")
}

func TestDeathCross(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("NVDA", models.TechnicalIndicatorConfig{
		Type:       models.IndicatorMA,
		Period:     2,
		SlowPeriod: 3,
		Crossover:  models.CrossoverDeath,
	})

	feed(tr, "NVDA", 8, 9, 10, 10, 6)
	cross, ok := tr.Crossover("NVDA", 2, 3)
	require.True(t, ok)
	assert.Equal(t, CrossBelow, cross)
}

func TestRegisterSeedsFromHistory(t *testing.T) {
	seed := &stubSeed{closes: map[string][]float64{
		"AAPL": {10, 11, 12, 13},
	}}
	tr := NewTracker(seed, nil)
	tr.Register("AAPL", models.TechnicalIndicatorConfig{Type: models.IndicatorRSI, Period: 3, Threshold: 70})

	v, ok := tr.Value("AAPL", models.IndicatorRSI, 3)
	require.True(t, ok, "seeded history satisfies the warm-up requirement")
	assert.Equal(t, 100.0, v)
	assert.Equal(t, 1, seed.calls)
}

func TestSeedFailureDegradesToLiveWarmup(t *testing.T) {
	seed := &stubSeed{err: errors.New("db down")}
	tr := NewTracker(seed, nil)
	tr.Register("AAPL", models.TechnicalIndicatorConfig{Type: models.IndicatorMA, Period: 2, Threshold: 10})

	_, ok := tr.Value("AAPL", models.IndicatorMA, 2)
	assert.False(t, ok)

	feed(tr, "AAPL", 10, 20)
	v, ok := tr.Value("AAPL", models.IndicatorMA, 2)
	require.True(t, ok)
	assert.InDelta(t, 15, v, 1e-9)
}

func TestSeedReplayDoesNotFireCrossover(t *testing.T) {
	// The replayed history contains a golden cross; it must not be
	// reported as the latest-tick transition.
	seed := &stubSeed{closes: map[string][]float64{
		"NVDA": {10, 9, 8, 8, 12},
	}}
	tr := NewTracker(seed, nil)
	tr.Register("NVDA", models.TechnicalIndicatorConfig{
		Type:       models.IndicatorMA,
		Period:     2,
		SlowPeriod: 3,
		Crossover:  models.CrossoverGolden,
	})

	cross, ok := tr.Crossover("NVDA", 2, 3)
	require.True(t, ok)
	assert.Equal(t, CrossNone, cross)
}

func TestObserveUnregisteredSymbolIsIgnored(t *testing.T) {
	tr := NewTracker(nil, nil)
	feed(tr, "ZZZZ", 1, 2, 3)
	_, ok := tr.Value("ZZZZ", models.IndicatorMA, 2)
	assert.False(t, ok)
}

func TestSnapshotCopiesWindow(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Register("AAPL", models.TechnicalIndicatorConfig{Type: models.IndicatorMA, Period: 3, Threshold: 1})
	feed(tr, "AAPL", 1, 2, 3)

	snap := tr.Snapshot("AAPL")
	require.Equal(t, 3, snap.Samples)
	require.Equal(t, 3, snap.Capacity)
	snap.Closes[0] = 999

	v, ok := tr.Value("AAPL", models.IndicatorMA, 3)
	require.True(t, ok)
	assert.InDelta(t, 2, v, 1e-9, "mutating a snapshot must not reach the tracker")
}
