package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"custom-alerts-service/internal/config"
)

// TwilioSender delivers consolidated alert SMS messages via the Twilio API.
// Configuration is checked at send time so the service can run without SMS
// credentials; dispatch to phone numbers then fails per recipient.
type TwilioSender struct {
	cfg config.Config
}

func NewTwilioSender(cfg config.Config) *TwilioSender {
	return &TwilioSender{cfg: cfg}
}

func (t *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("invalid phone number: %s", to)
	}

	accountSID := t.cfg.SMS.AccountSID
	authToken := t.cfg.SMS.AuthToken
	fromNumber := t.cfg.SMS.FromNumber
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	params := &twilioApi.CreateMessageParams{
		To:   &to,
		From: &fromNumber,
		Body: &body,
	}
	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	return nil
}
