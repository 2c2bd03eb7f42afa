package alerts

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/indicators"
)

// TriggerEvent is one successfully claimed alert trigger, forwarded to
// the notification dispatcher.
type TriggerEvent struct {
	Alert models.PriceAlert
	Tick  models.Tick
	At    time.Time
}

// TriggerHandler consumes trigger events. Handlers may block on
// network calls; the engine invokes them off the evaluation path.
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, event TriggerEvent)
}

// TriggerHandlerFunc adapts a function to TriggerHandler.
type TriggerHandlerFunc func(ctx context.Context, event TriggerEvent)

func (f TriggerHandlerFunc) HandleTrigger(ctx context.Context, event TriggerEvent) {
	f(ctx, event)
}

const (
	defaultWorkers    = 8
	workerQueueSize   = 256
	claimRetryBackoff = 200 * time.Millisecond
	repositoryTimeout = 5 * time.Second
)

// Engine consumes the tick stream and evaluates all active alerts for
// each ticked symbol. Ticks are sharded to workers by symbol hash, so
// evaluation for different symbols proceeds in parallel while ticks
// for one symbol are processed in arrival order.
type Engine struct {
	repo    Repository
	tracker *indicators.Tracker
	handler TriggerHandler
	logger  *zap.Logger

	workers int
	queues  []chan models.Tick

	ctx        context.Context
	cancel     context.CancelFunc
	workerWG   sync.WaitGroup
	dispatchWG sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the evaluation worker count.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an evaluation engine over repo and tracker,
// forwarding claimed triggers to handler.
func NewEngine(repo Repository, tracker *indicators.Tracker, handler TriggerHandler, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		repo:    repo,
		tracker: tracker,
		handler: handler,
		logger:  logger,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the worker pool. The engine stops accepting ticks
// when ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.queues = make([]chan models.Tick, e.workers)
	for i := 0; i < e.workers; i++ {
		e.queues[i] = make(chan models.Tick, workerQueueSize)
		e.workerWG.Add(1)
		go e.worker(e.queues[i])
	}
	e.logger.Info("alert engine started", zap.Int("workers", e.workers))
}

// Submit routes a tick to its symbol's worker. A full worker queue
// drops the tick rather than stalling the feed; the next tick for the
// symbol re-evaluates everything the dropped one would have.
func (e *Engine) Submit(tick models.Tick) {
	// The read lock covers the send so Stop cannot close a queue
	// between the stopped check and the send.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started || e.stopped {
		return
	}
	select {
	case e.queues[shardFor(tick.Symbol, e.workers)] <- tick:
	default:
		e.logger.Warn("dropping tick, worker queue full", zap.String("symbol", tick.Symbol))
	}
}

// Stop drains queued ticks, waits for in-flight claims and dispatches,
// then releases the workers.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for _, q := range e.queues {
		close(q)
	}
	e.mu.Unlock()

	e.workerWG.Wait()
	e.dispatchWG.Wait()
	e.cancel()
	e.logger.Info("alert engine stopped")
}

func (e *Engine) worker(ticks <-chan models.Tick) {
	defer e.workerWG.Done()
	for tick := range ticks {
		e.process(tick)
	}
}

func (e *Engine) process(tick models.Tick) {
	ctx, cancel := context.WithTimeout(e.ctx, repositoryTimeout)
	active, err := e.repo.FindActiveBySymbol(ctx, tick.Symbol)
	cancel()
	if err != nil {
		e.logger.Error("failed to load active alerts",
			zap.String("symbol", tick.Symbol), zap.Error(err))
		return
	}

	// Indicator state must exist before the tick is observed so the
	// very first tick for a symbol counts toward warm-up.
	for i := range active {
		if active[i].AlertSubType == models.SubTypeTechnical && active[i].Technical != nil {
			e.tracker.Register(tick.Symbol, *active[i].Technical)
		}
	}
	e.tracker.Observe(tick)

	for i := range active {
		alert := active[i]
		if !Evaluate(&alert, tick, e.tracker) {
			continue
		}
		e.claimAndForward(alert, tick)
	}
}

// claimAndForward performs the atomic claim and, on success, hands the
// trigger to the handler. A failed claim means a concurrent pass won
// the race and is dropped silently. Claim errors are retried once with
// backoff; persistent failure leaves the alert active for the next
// tick.
func (e *Engine) claimAndForward(alert models.PriceAlert, tick models.Tick) {
	now := time.Now()
	claimed, err := e.claim(alert.ID, now)
	if err != nil {
		e.logger.Error("claim failed, alert stays active",
			zap.String("alert_id", alert.ID),
			zap.String("symbol", alert.Symbol),
			zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	triggered := now
	alert.IsActive = false
	alert.TriggeredAt = &triggered

	e.logger.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", alert.UserID),
		zap.String("symbol", alert.Symbol),
		zap.Float64("price", tick.Price))

	if e.handler == nil {
		return
	}
	event := TriggerEvent{Alert: alert, Tick: tick, At: now}
	e.dispatchWG.Add(1)
	go func() {
		defer e.dispatchWG.Done()
		e.handler.HandleTrigger(e.ctx, event)
	}()
}

func (e *Engine) claim(id string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(e.ctx, repositoryTimeout)
	claimed, err := e.repo.Claim(ctx, id, at)
	cancel()
	if err == nil {
		return claimed, nil
	}

	select {
	case <-time.After(claimRetryBackoff):
	case <-e.ctx.Done():
		return false, err
	}

	ctx, cancel = context.WithTimeout(e.ctx, repositoryTimeout)
	defer cancel()
	return e.repo.Claim(ctx, id, at)
}

func shardFor(symbol string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32()) % workers
}
