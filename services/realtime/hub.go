package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// Hub errors.
var (
	ErrNotEntitled = errors.New("plan not entitled to real-time distribution")
	ErrHubClosed   = errors.New("hub is shutting down")
)

// Conn is one connected client from the hub's point of view. The
// websocket client implements it; tests substitute a fake.
type Conn interface {
	ID() string
	UserID() string
	Plan() models.Plan
	// Enqueue hands a marshaled message to the connection's send
	// buffer, returning false when the buffer is full.
	Enqueue(msg []byte) bool
	Close()
}

// PrevCloseProvider supplies the previous-day close used to compute
// change and change-percent on outgoing updates.
type PrevCloseProvider interface {
	PreviousDayClose(symbol string) (float64, bool)
}

// Hub maintains the registry of connected clients and their symbol
// subscriptions, and fans each tick out to subscribed, plan-entitled
// connections. A reverse index symbol→connections keeps fan-out
// O(subscribers) and disconnect O(subscribed symbols).
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]Conn
	clientSubs  map[string]map[string]bool
	subscribers map[string]map[string]Conn
	closed      bool

	prevClose PrevCloseProvider
	logger    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(prevClose PrevCloseProvider, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[string]Conn),
		clientSubs:  make(map[string]map[string]bool),
		subscribers: make(map[string]map[string]Conn),
		prevClose:   prevClose,
		logger:      logger,
	}
}

// Register admits a connection to real-time distribution. Free-plan
// connections are rejected; the transport layer closes them with a
// policy-violation code.
func (h *Hub) Register(c Conn) error {
	if !c.Plan().RealtimeEntitled() {
		return ErrNotEntitled
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c.ID()] = c
	h.clientSubs[c.ID()] = make(map[string]bool)
	h.logger.Info("client connected",
		zap.String("connection_id", c.ID()),
		zap.String("user_id", c.UserID()),
		zap.Int("clients", len(h.clients)))
	return nil
}

// Subscribe adds symbols to the connection's subscription set.
func (h *Hub) Subscribe(c Conn, symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clientSubs[c.ID()]
	if !ok {
		return
	}
	for _, sym := range symbols {
		if sym == "" || subs[sym] {
			continue
		}
		subs[sym] = true
		if h.subscribers[sym] == nil {
			h.subscribers[sym] = make(map[string]Conn)
		}
		h.subscribers[sym][c.ID()] = c
	}
}

// Unsubscribe removes symbols from the connection's subscription set.
func (h *Hub) Unsubscribe(c Conn, symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clientSubs[c.ID()]
	if !ok {
		return
	}
	for _, sym := range symbols {
		if !subs[sym] {
			continue
		}
		delete(subs, sym)
		h.removeSubscriberLocked(sym, c.ID())
	}
}

// Unregister removes the connection from every subscribed symbol's
// reverse-index set and from the registry.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	if subs, ok := h.clientSubs[c.ID()]; ok {
		for sym := range subs {
			h.removeSubscriberLocked(sym, c.ID())
		}
		delete(h.clientSubs, c.ID())
		delete(h.clients, c.ID())
		h.logger.Info("client disconnected",
			zap.String("connection_id", c.ID()),
			zap.Int("clients", len(h.clients)))
	}
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) removeSubscriberLocked(symbol, connID string) {
	if set := h.subscribers[symbol]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.subscribers, symbol)
		}
	}
}

// Broadcast fans a tick out to every connection subscribed to its
// symbol. A dead or slow connection never blocks delivery to others;
// it is evicted after the pass.
func (h *Hub) Broadcast(tick models.Tick) {
	update := models.PriceUpdate{
		Symbol:       tick.Symbol,
		CurrentPrice: tick.Price,
		Timestamp:    tick.Timestamp,
	}
	if h.prevClose != nil {
		if base, ok := h.prevClose.PreviousDayClose(tick.Symbol); ok && base > 0 {
			update.Change = tick.Price - base
			update.ChangePercent = (tick.Price - base) / base * 100
		}
	}

	msg, err := json.Marshal(newUpdateMessage(update))
	if err != nil {
		h.logger.Error("failed to marshal update", zap.Error(err))
		return
	}

	var dead []Conn
	h.mu.RLock()
	for _, c := range h.subscribers[tick.Symbol] {
		if !c.Enqueue(msg) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.logger.Warn("evicting slow client", zap.String("connection_id", c.ID()))
		h.Unregister(c)
	}
}

// Shutdown stops accepting connections and closes all current ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c)
	}
	h.logger.Info("hub shut down")
}

// ClientCount returns the number of admitted connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCounts returns a copied snapshot of per-symbol subscriber
// counts for external readers; never a reference into mutable state.
func (h *Hub) SubscriberCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[string]int, len(h.subscribers))
	for sym, set := range h.subscribers {
		counts[sym] = len(set)
	}
	return counts
}
