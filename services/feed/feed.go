package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// Handler receives each tick decoded from the upstream feed.
type Handler func(models.Tick)

// StreamReader consumes instrument ticks from an external websocket
// feed and hands them to the registered handlers. The engine does not
// compute or source market data itself; this adapter is its only
// intake.
type StreamReader struct {
	url      string
	handlers []Handler
	logger   *zap.Logger
}

// NewStreamReader creates a reader for the feed at url.
func NewStreamReader(url string, logger *zap.Logger, handlers ...Handler) *StreamReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamReader{url: url, handlers: handlers, logger: logger}
}

const reconnectDelay = 5 * time.Second

// Run connects and consumes ticks until ctx is cancelled, reconnecting
// with a fixed delay on stream errors.
func (r *StreamReader) Run(ctx context.Context) {
	for {
		if err := r.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("feed disconnected, retrying",
				zap.String("url", r.url), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (r *StreamReader) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The watcher must not outlive this connection attempt or every
	// reconnect would strand another goroutine.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	r.logger.Info("feed connected", zap.String("url", r.url))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick models.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			r.logger.Debug("skipping malformed feed message", zap.Error(err))
			continue
		}
		tick.Symbol = strings.ToUpper(strings.TrimSpace(tick.Symbol))
		if tick.Symbol == "" {
			continue
		}
		if tick.Timestamp.IsZero() {
			tick.Timestamp = time.Now()
		}

		for _, h := range r.handlers {
			h(tick)
		}
	}
}
