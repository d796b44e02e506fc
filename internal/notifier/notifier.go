package notifier

import (
	"context"
	"fmt"
	"sort"
	"time"

	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/metrics"
	"custom-alerts-service/internal/models"
)

// UserDirectory resolves an owner login to an email address. ok=false means
// the login has no usable address.
type UserDirectory interface {
	Email(ctx context.Context, login string) (email string, ok bool, err error)
}

// ReportMetadata resolves human-readable labels for report refs and metrics.
type ReportMetadata interface {
	DisplayName(ctx context.Context, report string) (string, error)
	MetricLabel(ctx context.Context, report, metric string) (string, error)
}

// EmailSender and SmsSender are the outbound transports. Timeout and retry
// policy belong to the implementations, not to the notifier.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type SmsSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TriggerStore is the subset of the trigger log the notifier reads.
type TriggerStore interface {
	UnsentForPeriod(ctx context.Context, period models.Period, siteID int64) ([]models.TriggeredAlert, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// DispatchFailure records one recipient whose message could not be sent. Its
// records stay unsent and are retried on the next dispatch run.
type DispatchFailure struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// DispatchReport summarizes one dispatch run.
type DispatchReport struct {
	EmailsSent int               `json:"emails_sent"`
	SmsSent    int               `json:"sms_sent"`
	Failures   []DispatchFailure `json:"failures,omitempty"`
}

// Notifier fans triggered alerts out to recipients, one consolidated message
// per recipient per period.
type Notifier struct {
	store  TriggerStore
	users  UserDirectory
	meta   ReportMetadata
	email  EmailSender
	sms    SmsSender
	logger *logging.Logger
	now    func() time.Time
}

func New(store TriggerStore, users UserDirectory, meta ReportMetadata, email EmailSender, sms SmsSender, logger *logging.Logger) *Notifier {
	return &Notifier{
		store:  store,
		users:  users,
		meta:   meta,
		email:  email,
		sms:    sms,
		logger: logger,
		now:    time.Now,
	}
}

// DispatchPeriod sends every unsent trigger of the period. siteID zero means
// all sites. A failure for one recipient is collected into the report and
// does not block the others; failed groups stay unsent for the next run.
func (n *Notifier) DispatchPeriod(ctx context.Context, period models.Period, siteID int64) (DispatchReport, error) {
	records, err := n.store.UnsentForPeriod(ctx, period, siteID)
	if err != nil {
		return DispatchReport{}, fmt.Errorf("failed to load unsent triggers: %w", err)
	}

	emailGroups := make(map[string][]models.TriggeredAlert)
	smsGroups := make(map[string][]models.TriggeredAlert)

	for _, record := range records {
		for _, email := range n.emailRecipients(ctx, record) {
			emailGroups[email] = append(emailGroups[email], record)
		}
		for _, number := range record.PhoneNumbers {
			smsGroups[number] = append(smsGroups[number], record)
		}
	}

	var report DispatchReport

	for _, recipient := range sortedKeys(emailGroups) {
		group := emailGroups[recipient]
		htmlBody, textBody := n.renderEmail(ctx, group)
		subject := emailSubject(period)

		if err := n.email.SendEmail(ctx, recipient, subject, htmlBody, textBody); err != nil {
			metrics.DispatchFailuresTotal.WithLabelValues("email").Inc()
			n.logger.Errorf("Email dispatch to %s failed: %v", recipient, err)
			report.Failures = append(report.Failures, DispatchFailure{
				Channel: "email", Recipient: recipient, Error: err.Error(),
			})
			continue
		}
		report.EmailsSent++
		metrics.EmailsSentTotal.Inc()
		n.markGroupSent(ctx, group)
	}

	for _, recipient := range sortedKeys(smsGroups) {
		group := smsGroups[recipient]
		body := n.renderSms(ctx, group)

		if err := n.sms.SendSMS(ctx, recipient, body); err != nil {
			metrics.DispatchFailuresTotal.WithLabelValues("sms").Inc()
			n.logger.Errorf("SMS dispatch to %s failed: %v", recipient, err)
			report.Failures = append(report.Failures, DispatchFailure{
				Channel: "sms", Recipient: recipient, Error: err.Error(),
			})
			continue
		}
		report.SmsSent++
		metrics.SmsSentTotal.Inc()
		n.markGroupSent(ctx, group)
	}

	return report, nil
}

// emailRecipients derives the email fan-out for a record from its snapshot:
// the owner's address when email_me was set, plus every additional address.
func (n *Notifier) emailRecipients(ctx context.Context, record models.TriggeredAlert) []string {
	recipients := append([]string(nil), record.AdditionalEmails...)

	if record.EmailMe {
		email, ok, err := n.users.Email(ctx, record.Login)
		if err != nil {
			n.logger.Errorf("Failed to resolve email for login %s: %v", record.Login, err)
		} else if ok && email != "" {
			recipients = append(recipients, email)
		}
	}
	return recipients
}

func (n *Notifier) markGroupSent(ctx context.Context, group []models.TriggeredAlert) {
	ids := make([]int64, 0, len(group))
	for _, record := range group {
		ids = append(ids, record.ID)
	}
	if err := n.store.MarkSent(ctx, ids); err != nil {
		// Message went out but the flag didn't stick; the next run re-sends.
		n.logger.Errorf("Failed to mark %d triggers sent: %v", len(ids), err)
	}
}

func sortedKeys(groups map[string][]models.TriggeredAlert) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func emailSubject(period models.Period) string {
	return fmt.Sprintf("Triggered alerts for %s", period)
}
