package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/alerts"
)

func triggerEvent(userID, symbol string, price float64) alerts.TriggerEvent {
	return alerts.TriggerEvent{
		Alert: models.PriceAlert{
			ID:           "a1",
			UserID:       userID,
			Symbol:       symbol,
			AlertName:    "threshold",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypePrice,
			Threshold:    price - 1,
		},
		Tick: models.Tick{Symbol: symbol, Price: price, Timestamp: time.Now()},
		At:   time.Now(),
	}
}

type stubPushSender struct {
	mu       sync.Mutex
	failures map[string]error
	sent     []string
	delay    time.Duration
}

func (s *stubPushSender) Send(ctx context.Context, sub models.PushSubscriptionRecord, _ Payload) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[sub.Endpoint]; ok {
		return err
	}
	s.sent = append(s.sent, sub.Endpoint)
	return nil
}

type stubSMSSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubSMSSender) Send(_ context.Context, to, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

func pushRecipient(endpoint string) Recipient {
	return Recipient{
		Channel: ChannelPush,
		Push: &models.PushSubscriptionRecord{
			UserID:   "u1",
			Endpoint: endpoint,
			Keys:     models.PushSubscriptionKeys{P256dh: "p", Auth: "a"},
		},
	}
}

func validPayload() Payload {
	return Payload{Title: "AAPL alert", Body: "AAPL is at 151.00"}
}

func TestDispatchAggregatesPartialFailure(t *testing.T) {
	push := &stubPushSender{failures: map[string]error{
		"https://push/gone": fmt.Errorf("endpoint returned 410: %w", ErrSubscriptionExpired),
	}}
	d := NewDispatcher(push, nil, 0, nil)

	result, err := d.Dispatch(context.Background(), []Recipient{
		pushRecipient("https://push/a"),
		pushRecipient("https://push/gone"),
		pushRecipient("https://push/b"),
	}, validPayload())

	require.NoError(t, err, "partial failure is not a dispatch error")
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "https://push/gone", result.Errors[0].Endpoint)
	assert.True(t, result.Errors[0].Expired)
}

func TestDispatchClassifiesNonExpiredFailures(t *testing.T) {
	push := &stubPushSender{failures: map[string]error{
		"https://push/flaky": errors.New("endpoint returned 500"),
	}}
	d := NewDispatcher(push, nil, 0, nil)

	result, err := d.Dispatch(context.Background(), []Recipient{
		pushRecipient("https://push/flaky"),
	}, validPayload())

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.False(t, result.Errors[0].Expired)
}

func TestDispatchRejectsInvalidPayload(t *testing.T) {
	d := NewDispatcher(&stubPushSender{}, nil, 0, nil)

	_, err := d.Dispatch(context.Background(), []Recipient{pushRecipient("https://push/a")}, Payload{Body: "no title"})
	assert.Error(t, err)

	_, err = d.Dispatch(context.Background(), []Recipient{pushRecipient("https://push/a")}, Payload{Title: "no body"})
	assert.Error(t, err)
}

func TestDispatchMixedChannels(t *testing.T) {
	push := &stubPushSender{}
	sms := &stubSMSSender{}
	d := NewDispatcher(push, sms, 0, nil)

	result, err := d.Dispatch(context.Background(), []Recipient{
		pushRecipient("https://push/a"),
		{Channel: ChannelSMS, Phone: "+15555550100"},
	}, validPayload())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, []string{"+15555550100"}, sms.sent)
}

func TestDispatchUnconfiguredChannelFails(t *testing.T) {
	d := NewDispatcher(&stubPushSender{}, nil, 0, nil)

	result, err := d.Dispatch(context.Background(), []Recipient{
		{Channel: ChannelSMS, Phone: "+15555550100"},
	}, validPayload())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestDispatchTimesOutSlowRecipient(t *testing.T) {
	push := &stubPushSender{delay: 200 * time.Millisecond}
	d := NewDispatcher(push, nil, 20*time.Millisecond, nil)

	result, err := d.Dispatch(context.Background(), []Recipient{
		pushRecipient("https://push/slow"),
	}, validPayload())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestNotifierPrunesExpiredEndpoints(t *testing.T) {
	store := NewMemoryPushStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, models.PushSubscriptionRecord{
		UserID: "u1", Endpoint: "https://push/live",
		Keys: models.PushSubscriptionKeys{P256dh: "p", Auth: "a"},
	}))
	require.NoError(t, store.Upsert(ctx, models.PushSubscriptionRecord{
		UserID: "u1", Endpoint: "https://push/gone",
		Keys: models.PushSubscriptionKeys{P256dh: "p", Auth: "a"},
	}))

	push := &stubPushSender{failures: map[string]error{
		"https://push/gone": fmt.Errorf("endpoint returned 404: %w", ErrSubscriptionExpired),
	}}
	notifier := NewNotifier(NewDispatcher(push, nil, 0, nil), store, nil, nil, nil)

	notifier.HandleTrigger(ctx, triggerEvent("u1", "AAPL", 151))

	subs, err := store.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push/live", subs[0].Endpoint)
}
