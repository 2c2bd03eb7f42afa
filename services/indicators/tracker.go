package indicators

import (
	"sync"

	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// Cross is a moving-average crossover observed on the latest tick.
type Cross int

const (
	CrossNone Cross = iota
	CrossAbove
	CrossBelow
)

// SeedSource supplies historical closes to warm indicator buffers on
// cold start, oldest first.
type SeedSource interface {
	RecentCloses(symbol string, n int) ([]float64, error)
}

// rsiState carries Wilder-smoothed RSI accumulators for one period.
type rsiState struct {
	period  int
	count   int // closes seen
	sumGain float64
	sumLoss float64
	avgGain float64
	avgLoss float64
	prev    float64
}

func (r *rsiState) observe(close float64) {
	r.count++
	if r.count == 1 {
		r.prev = close
		return
	}
	change := close - r.prev
	r.prev = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	changes := r.count - 1
	switch {
	case changes < r.period:
		r.sumGain += gain
		r.sumLoss += loss
	case changes == r.period:
		r.sumGain += gain
		r.sumLoss += loss
		r.avgGain = r.sumGain / float64(r.period)
		r.avgLoss = r.sumLoss / float64(r.period)
	default:
		n := float64(r.period)
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	}
}

// value returns the RSI, or false while fewer than period+1 closes
// have been seen. Insufficient history is not an error.
func (r *rsiState) value() (float64, bool) {
	if r.count < r.period+1 {
		return 0, false
	}
	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}

// emaState carries an incremental exponential moving average,
// used for the MACD fast/slow lines.
type emaState struct {
	period int
	count  int
	value  float64
}

func (e *emaState) observe(close float64) {
	e.count++
	if e.count == 1 {
		e.value = close
		return
	}
	k := 2.0 / float64(e.period+1)
	e.value = (close-e.value)*k + e.value
}

func (e *emaState) valid() bool { return e.count >= e.period }

// crossState retains exactly one prior fast-slow difference so a sign
// transition can be detected on the current tick.
type crossState struct {
	fast    int
	slow    int
	prev    float64
	hasPrev bool
	last    Cross
}

// MACD conventional fast/slow windows.
const (
	macdFastPeriod = 12
	macdSlowPeriod = 26
)

// series is the per-symbol indicator state. Closes is a bounded
// rolling window holding at most capacity samples.
type series struct {
	closes   []float64
	capacity int
	rsi      map[int]*rsiState
	cross    map[[2]int]*crossState
	emaFast  *emaState
	emaSlow  *emaState
}

func (s *series) observe(close float64) {
	s.closes = append(s.closes, close)
	if len(s.closes) > s.capacity {
		s.closes = s.closes[len(s.closes)-s.capacity:]
	}
	for _, r := range s.rsi {
		r.observe(close)
	}
	if s.emaFast != nil {
		s.emaFast.observe(close)
		s.emaSlow.observe(close)
	}
	for _, c := range s.cross {
		s.updateCross(c)
	}
}

func (s *series) updateCross(c *crossState) {
	c.last = CrossNone
	fast, okFast := s.sma(c.fast)
	slow, okSlow := s.sma(c.slow)
	if !okFast || !okSlow {
		c.hasPrev = false
		return
	}
	diff := fast - slow
	if c.hasPrev {
		if c.prev <= 0 && diff > 0 {
			c.last = CrossAbove
		} else if c.prev >= 0 && diff < 0 {
			c.last = CrossBelow
		}
	}
	c.prev = diff
	c.hasPrev = true
}

func (s *series) sma(period int) (float64, bool) {
	if period <= 0 || len(s.closes) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range s.closes[len(s.closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// Tracker maintains bounded per-symbol indicator state fed by the tick
// stream. All mutation happens through Observe and Seed; readers get
// computed scalars or copied snapshots, never the buffers themselves.
type Tracker struct {
	mu     sync.RWMutex
	series map[string]*series
	seed   SeedSource
	logger *zap.Logger
}

// NewTracker creates a tracker. seed may be nil when no historical
// store is available; buffers then warm up from live ticks only.
func NewTracker(seed SeedSource, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		series: make(map[string]*series),
		seed:   seed,
		logger: logger,
	}
}

// Register ensures the tracker maintains the state an alert's
// indicator config needs for symbol. Newly created or widened buffers
// are re-warmed from the seed source when one is configured.
func (t *Tracker) Register(symbol string, cfg models.TechnicalIndicatorConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.series[symbol]
	if s == nil {
		s = &series{
			capacity: 2,
			rsi:      make(map[int]*rsiState),
			cross:    make(map[[2]int]*crossState),
		}
		t.series[symbol] = s
	}

	needed := s.capacity
	switch cfg.Type {
	case models.IndicatorRSI:
		if _, ok := s.rsi[cfg.Period]; !ok {
			s.rsi[cfg.Period] = &rsiState{period: cfg.Period}
		}
		if cfg.Period+1 > needed {
			needed = cfg.Period + 1
		}
	case models.IndicatorMA:
		if cfg.Crossover != "" {
			key := [2]int{cfg.FastWindow(), cfg.SlowWindow()}
			if _, ok := s.cross[key]; !ok {
				s.cross[key] = &crossState{fast: key[0], slow: key[1]}
			}
			if key[1]+1 > needed {
				needed = key[1] + 1
			}
		} else if cfg.Period > needed {
			needed = cfg.Period
		}
	case models.IndicatorMACD:
		if s.emaFast == nil {
			s.emaFast = &emaState{period: macdFastPeriod}
			s.emaSlow = &emaState{period: macdSlowPeriod}
		}
		if macdSlowPeriod+1 > needed {
			needed = macdSlowPeriod + 1
		}
	}

	if needed > s.capacity || len(s.closes) == 0 {
		s.capacity = needed
		t.reseedLocked(symbol, s)
	}
}

// reseedLocked rebuilds a series from historical closes. Crossover
// transitions observed during the replay are cleared so stale history
// cannot fire an alert on the next live tick.
func (t *Tracker) reseedLocked(symbol string, s *series) {
	if t.seed == nil {
		return
	}
	closes, err := t.seed.RecentCloses(symbol, s.capacity)
	if err != nil {
		t.logger.Warn("indicator seed failed",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if len(closes) == 0 {
		return
	}
	s.reset()
	for _, c := range closes {
		s.observe(c)
	}
	for _, cr := range s.cross {
		cr.last = CrossNone
	}
}

func (s *series) reset() {
	s.closes = s.closes[:0]
	for p := range s.rsi {
		s.rsi[p] = &rsiState{period: p}
	}
	for k := range s.cross {
		s.cross[k] = &crossState{fast: k[0], slow: k[1]}
	}
	if s.emaFast != nil {
		s.emaFast = &emaState{period: macdFastPeriod}
		s.emaSlow = &emaState{period: macdSlowPeriod}
	}
}

// Seed replaces the state for symbol with a replay of closes
// (oldest first).
func (t *Tracker) Seed(symbol string, closes []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.series[symbol]
	if s == nil {
		return
	}
	s.reset()
	for _, c := range closes {
		s.observe(c)
	}
	for _, cr := range s.cross {
		cr.last = CrossNone
	}
}

// Observe feeds one tick into the symbol's buffers. Symbols with no
// registered indicator state are ignored.
func (t *Tracker) Observe(tick models.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.series[tick.Symbol]; s != nil {
		s.observe(tick.Price)
	}
}

// Value returns the current indicator value at (symbol, period), or
// false while insufficient history exists.
func (t *Tracker) Value(symbol string, typ models.IndicatorType, period int) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.series[symbol]
	if s == nil {
		return 0, false
	}
	switch typ {
	case models.IndicatorRSI:
		if r := s.rsi[period]; r != nil {
			return r.value()
		}
	case models.IndicatorMA:
		return s.sma(period)
	case models.IndicatorMACD:
		if s.emaFast != nil && s.emaFast.valid() && s.emaSlow.valid() {
			return s.emaFast.value - s.emaSlow.value, true
		}
	}
	return 0, false
}

// Crossover reports the fast/slow crossover detected on the most
// recently observed tick for symbol. The second result is false while
// fewer than slow-window samples exist.
func (t *Tracker) Crossover(symbol string, fast, slow int) (Cross, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.series[symbol]
	if s == nil {
		return CrossNone, false
	}
	c := s.cross[[2]int{fast, slow}]
	if c == nil || !c.hasPrev {
		return CrossNone, false
	}
	return c.last, true
}

// Snapshot is an immutable copy of one symbol's rolling window for
// external readers such as a metrics exporter.
type Snapshot struct {
	Symbol   string
	Samples  int
	Capacity int
	Closes   []float64
}

// Snapshot copies the current window for symbol.
func (t *Tracker) Snapshot(symbol string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := Snapshot{Symbol: symbol}
	if s := t.series[symbol]; s != nil {
		snap.Samples = len(s.closes)
		snap.Capacity = s.capacity
		snap.Closes = append([]float64(nil), s.closes...)
	}
	return snap
}
