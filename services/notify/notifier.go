package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/alerts"
)

// ContactSource resolves a user's SMS destination. An empty number
// means the user has no SMS channel configured.
type ContactSource interface {
	PhoneNumber(ctx context.Context, userID string) (string, error)
}

// CompanyResolver maps a symbol to a display name for message
// composition. May be nil.
type CompanyResolver func(symbol string) string

// Notifier turns claimed trigger events into multi-channel
// notifications: every registered push endpoint for the owning user,
// plus SMS when a destination number is configured. Endpoints the
// transport reports expired are pruned from the registry.
type Notifier struct {
	dispatcher *Dispatcher
	pushes     PushStore
	contacts   ContactSource
	companies  CompanyResolver
	logger     *zap.Logger
}

// NewNotifier creates the trigger-event notifier. contacts and
// companies may be nil when the SMS channel is not configured.
func NewNotifier(dispatcher *Dispatcher, pushes PushStore, contacts ContactSource, companies CompanyResolver, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		dispatcher: dispatcher,
		pushes:     pushes,
		contacts:   contacts,
		companies:  companies,
		logger:     logger,
	}
}

// HandleTrigger implements alerts.TriggerHandler.
func (n *Notifier) HandleTrigger(ctx context.Context, event alerts.TriggerEvent) {
	recipients := n.collectRecipients(ctx, event.Alert.UserID)
	if len(recipients) == 0 {
		n.logger.Info("no notification channels for user",
			zap.String("user_id", event.Alert.UserID),
			zap.String("alert_id", event.Alert.ID))
		return
	}

	result, err := n.dispatcher.Dispatch(ctx, recipients, n.composePayload(event))
	if err != nil {
		n.logger.Error("dispatch rejected payload",
			zap.String("alert_id", event.Alert.ID), zap.Error(err))
		return
	}

	for _, re := range result.Errors {
		if re.Expired {
			if err := n.pushes.DeleteByEndpoint(ctx, re.Endpoint); err != nil {
				n.logger.Warn("failed to prune expired endpoint",
					zap.String("endpoint", re.Endpoint), zap.Error(err))
			} else {
				n.logger.Info("pruned expired push endpoint",
					zap.String("user_id", event.Alert.UserID),
					zap.String("endpoint", re.Endpoint))
			}
		}
	}

	n.logger.Info("trigger notification complete",
		zap.String("alert_id", event.Alert.ID),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
}

func (n *Notifier) collectRecipients(ctx context.Context, userID string) []Recipient {
	var recipients []Recipient

	subs, err := n.pushes.FindByUser(ctx, userID)
	if err != nil {
		n.logger.Warn("failed to load push subscriptions",
			zap.String("user_id", userID), zap.Error(err))
	}
	for i := range subs {
		recipients = append(recipients, Recipient{Channel: ChannelPush, Push: &subs[i]})
	}

	if n.contacts != nil {
		phone, err := n.contacts.PhoneNumber(ctx, userID)
		if err != nil {
			n.logger.Warn("failed to resolve phone number",
				zap.String("user_id", userID), zap.Error(err))
		} else if phone != "" {
			recipients = append(recipients, Recipient{Channel: ChannelSMS, Phone: phone})
		}
	}
	return recipients
}

func (n *Notifier) composePayload(event alerts.TriggerEvent) Payload {
	alert := event.Alert
	company := alert.Symbol
	if n.companies != nil {
		if name := n.companies(alert.Symbol); name != "" {
			company = name
		}
	}

	direction := "above"
	if alert.AlertType == models.AlertLower {
		direction = "below"
	}

	var target string
	switch alert.AlertSubType {
	case models.SubTypePercentage:
		target = fmt.Sprintf("%.2f%% move from %.2f", alert.PercentageThreshold, alert.PreviousDayClose)
	case models.SubTypeTechnical:
		target = fmt.Sprintf("%s signal", alert.Technical.Type)
	default:
		target = fmt.Sprintf("%.2f", alert.Threshold)
	}

	return Payload{
		Title: fmt.Sprintf("%s alert: %s", alert.Symbol, alert.AlertName),
		Body: fmt.Sprintf("%s is at %.2f, %s your target of %s",
			company, event.Tick.Price, direction, target),
		Data: map[string]string{
			"symbol":   alert.Symbol,
			"alert_id": alert.ID,
			"url":      "/alerts/" + alert.ID,
		},
	}
}
