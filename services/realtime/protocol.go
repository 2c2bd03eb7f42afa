package realtime

import (
	"time"

	"stock_alerts_backend/models"
)

// Message types on the socket protocol.
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageUpdate      = "update"
	MessageError       = "error"
)

// Error codes sent to clients.
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownType    = "unknown_type"
	CodeNotEntitled    = "plan_not_entitled"
)

// ClientMessage is a client→server subscribe/unsubscribe command.
type ClientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// UpdateMessage is the server→client tick fan-out payload.
type UpdateMessage struct {
	Type          string    `json:"type"`
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// ErrorMessage reports a protocol or entitlement error on either
// direction of the socket.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newUpdateMessage(u models.PriceUpdate) UpdateMessage {
	return UpdateMessage{
		Type:          MessageUpdate,
		Symbol:        u.Symbol,
		CurrentPrice:  u.CurrentPrice,
		Change:        u.Change,
		ChangePercent: u.ChangePercent,
		Timestamp:     u.Timestamp,
	}
}
