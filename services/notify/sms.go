package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const whatsappPrefix = "whatsapp:"

// TwilioSender delivers SMS and WhatsApp messages through the Twilio
// messaging gateway. WhatsApp destinations are distinguished by the
// "whatsapp:" address prefix.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender creates a sender using the account's API
// credentials and a default sender number.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

// Send posts one message to the gateway. The from address mirrors the
// destination's transport: WhatsApp destinations get a WhatsApp
// sender.
func (s *TwilioSender) Send(_ context.Context, to, body string) error {
	from := s.from
	if strings.HasPrefix(to, whatsappPrefix) && !strings.HasPrefix(from, whatsappPrefix) {
		from = whatsappPrefix + from
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send to %s failed: %w", to, err)
	}
	return nil
}
