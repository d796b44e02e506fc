package models

import "time"

// TriggeredAlert is one append-only entry in the trigger log. The alert
// fields are a snapshot taken at trigger time so later edits to the alert do
// not change historical notifications. Identity of a trigger is
// (AlertID, SiteID, Granularity, PeriodStart); the database enforces
// uniqueness on that tuple.
type TriggeredAlert struct {
	ID          int64       `json:"id"`
	AlertID     int64       `json:"alert_id"`
	SiteID      int64       `json:"site_id"`
	Granularity Granularity `json:"period"`
	PeriodStart time.Time   `json:"period_start"`
	TriggeredAt time.Time   `json:"ts_triggered"`
	ValueOld    *float64    `json:"value_old"`
	ValueNew    *float64    `json:"value_new"`

	Name             string          `json:"name"`
	Login            string          `json:"login"`
	Metric           string          `json:"metric"`
	MetricCondition  MetricCondition `json:"metric_condition"`
	MetricThreshold  float64         `json:"metric_threshold"`
	ComparedTo       ComparedTo      `json:"compared_to"`
	Report           string          `json:"report,omitempty"`
	ReportCondition  ReportCondition `json:"report_condition,omitempty"`
	ReportValue      string          `json:"report_value,omitempty"`
	EmailMe          bool            `json:"email_me"`
	AdditionalEmails []string        `json:"additional_emails,omitempty"`
	PhoneNumbers     []string        `json:"phone_numbers,omitempty"`

	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sent_at,omitempty"`
}

// Snapshot builds the trigger-log entry for an alert firing on a site/period.
func Snapshot(a Alert, siteID int64, p Period, valueOld, valueNew *float64, now time.Time) TriggeredAlert {
	return TriggeredAlert{
		AlertID:          a.ID,
		SiteID:           siteID,
		Granularity:      p.Granularity,
		PeriodStart:      p.Start,
		TriggeredAt:      now.UTC(),
		ValueOld:         valueOld,
		ValueNew:         valueNew,
		Name:             a.Name,
		Login:            a.Login,
		Metric:           a.Metric,
		MetricCondition:  a.MetricCondition,
		MetricThreshold:  a.MetricThreshold,
		ComparedTo:       a.ComparedTo,
		Report:           a.Report,
		ReportCondition:  a.ReportCondition,
		ReportValue:      a.ReportValue,
		EmailMe:          a.EmailMe,
		AdditionalEmails: append([]string(nil), a.AdditionalEmails...),
		PhoneNumbers:     append([]string(nil), a.PhoneNumbers...),
	}
}
