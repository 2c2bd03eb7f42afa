package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// ErrSubscriptionExpired classifies a push delivery failure whose
// transport reported the endpoint gone, so the caller can prune it.
var ErrSubscriptionExpired = errors.New("push subscription expired")

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelPush Channel = "push"
	ChannelSMS  Channel = "sms"
)

// Payload is the notification content delivered on every channel.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	Badge string            `json:"badge,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Validate rejects structurally invalid payloads. This is the only
// condition Dispatch treats as an error; delivery failures are
// reported per recipient.
func (p Payload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("notification payload requires a title")
	}
	if p.Body == "" {
		return fmt.Errorf("notification payload requires a body")
	}
	return nil
}

// Recipient is one delivery target on one channel.
type Recipient struct {
	Channel Channel
	Push    *models.PushSubscriptionRecord
	Phone   string
}

// RecipientError is one failed delivery attempt.
type RecipientError struct {
	Channel  Channel `json:"channel"`
	Endpoint string  `json:"endpoint"`
	Message  string  `json:"message"`
	Expired  bool    `json:"expired"`
}

// Result aggregates per-recipient outcomes. It is always returned,
// even when every attempt fails.
type Result struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Errors     []RecipientError `json:"errors,omitempty"`
}

// PushSender delivers one payload to one browser push endpoint.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscriptionRecord, payload Payload) error
}

// SMSSender delivers one text message to one destination number.
// WhatsApp destinations carry the transport's "whatsapp:" prefix.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

const defaultSendTimeout = 10 * time.Second

// Dispatcher fans one payload out to recipients across channels. Each
// attempt is independent: one failing endpoint never aborts delivery
// to the others, and a send that exceeds the per-call timeout fails
// only that recipient.
type Dispatcher struct {
	push    PushSender
	sms     SMSSender
	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. A zero timeout uses the default
// 10s per-recipient bound. Either sender may be nil when the channel
// is not configured.
func NewDispatcher(push PushSender, sms SMSSender, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{push: push, sms: sms, timeout: timeout, logger: logger}
}

// Dispatch sends payload to every recipient and aggregates the
// outcome. It returns an error only for a structurally invalid
// payload, never for partial failure.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []Recipient, payload Payload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
	)

	record := func(err error, channel Channel, endpoint string) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			result.Successful++
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, RecipientError{
			Channel:  channel,
			Endpoint: endpoint,
			Message:  err.Error(),
			Expired:  errors.Is(err, ErrSubscriptionExpired),
		})
	}

	for _, recipient := range recipients {
		wg.Add(1)
		go func(r Recipient) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			switch r.Channel {
			case ChannelPush:
				if d.push == nil || r.Push == nil {
					record(fmt.Errorf("push channel not configured"), ChannelPush, "")
					return
				}
				record(d.push.Send(sendCtx, *r.Push, payload), ChannelPush, r.Push.Endpoint)
			case ChannelSMS:
				if d.sms == nil || r.Phone == "" {
					record(fmt.Errorf("sms channel not configured"), ChannelSMS, r.Phone)
					return
				}
				record(d.sms.Send(sendCtx, r.Phone, payload.Title+"\n"+payload.Body), ChannelSMS, r.Phone)
			default:
				record(fmt.Errorf("unknown channel %q", r.Channel), r.Channel, "")
			}
		}(recipient)
	}
	wg.Wait()

	d.logger.Info("notification dispatched",
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	return result, nil
}
