package models

import (
	"fmt"
	"strings"
)

// MetricCondition decides how a metric value is compared.
type MetricCondition string

const (
	// absolute conditions compare the current value against the threshold
	MetricGreaterThan MetricCondition = "greater_than"
	MetricLessThan    MetricCondition = "less_than"
	MetricMatches     MetricCondition = "matches"

	// relative conditions compare the current value against the baseline
	MetricIncreasedMoreThan MetricCondition = "increased_more_than"
	MetricDecreasedMoreThan MetricCondition = "decreased_more_than"
	MetricIncreased         MetricCondition = "increased"
	MetricDecreased         MetricCondition = "decreased"
	MetricChanged           MetricCondition = "changed"
)

func (c MetricCondition) Valid() bool {
	switch c {
	case MetricGreaterThan, MetricLessThan, MetricMatches,
		MetricIncreasedMoreThan, MetricDecreasedMoreThan,
		MetricIncreased, MetricDecreased, MetricChanged:
		return true
	}
	return false
}

// IsRelative reports whether the condition needs a baseline value from a
// prior period rather than the configured threshold alone.
func (c MetricCondition) IsRelative() bool {
	switch c {
	case MetricIncreasedMoreThan, MetricDecreasedMoreThan,
		MetricIncreased, MetricDecreased, MetricChanged:
		return true
	}
	return false
}

// ReportCondition gates metric evaluation on a report row's dimension label.
type ReportCondition string

const (
	ReportNone           ReportCondition = ""
	ReportMatchesExactly ReportCondition = "matches_exactly"
	ReportMatchesAny     ReportCondition = "matches_any"
	ReportContains       ReportCondition = "contains"
	ReportDoesNotContain ReportCondition = "does_not_contain"
)

func (c ReportCondition) Valid() bool {
	switch c {
	case ReportNone, ReportMatchesExactly, ReportMatchesAny,
		ReportContains, ReportDoesNotContain:
		return true
	}
	return false
}

// ComparedTo selects the baseline for relative conditions.
type ComparedTo string

const (
	ComparedToNone         ComparedTo = "none"
	ComparedToPrevious     ComparedTo = "previous"
	ComparedToPreviousYear ComparedTo = "previous_year"
)

func (c ComparedTo) Valid() bool {
	switch c {
	case ComparedToNone, ComparedToPrevious, ComparedToPreviousYear:
		return true
	}
	return false
}

// Alert is a user-defined threshold rule evaluated once per period per site.
type Alert struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name" binding:"required"`
	Login            string          `json:"login"`
	Period           Granularity     `json:"period" binding:"required"`
	SiteIDs          []int64         `json:"site_ids" binding:"required"`
	Metric           string          `json:"metric" binding:"required"`
	MetricCondition  MetricCondition `json:"metric_condition" binding:"required"`
	MetricThreshold  float64         `json:"metric_threshold"`
	ComparedTo       ComparedTo      `json:"compared_to"`
	Report           string          `json:"report,omitempty"`
	ReportCondition  ReportCondition `json:"report_condition,omitempty"`
	ReportValue      string          `json:"report_value,omitempty"`
	EmailMe          bool            `json:"email_me"`
	AdditionalEmails []string        `json:"additional_emails,omitempty"`
	PhoneNumbers     []string        `json:"phone_numbers,omitempty"`
}

const maxNameLen = 100

// Normalize trims recipient lists and drops empty entries. Called before
// Validate on create and update.
func (a *Alert) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.AdditionalEmails = filterBlank(a.AdditionalEmails)
	a.PhoneNumbers = filterBlank(a.PhoneNumbers)
	if a.ComparedTo == "" {
		a.ComparedTo = ComparedToNone
	}
	if a.ReportCondition == ReportNone {
		a.ReportValue = ""
	}
}

// Validate checks structural invariants of the alert definition.
func (a *Alert) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("alert name must not be empty")
	}
	if len(a.Name) > maxNameLen {
		return fmt.Errorf("alert name must not exceed %d characters", maxNameLen)
	}
	if !a.Period.Valid() {
		return fmt.Errorf("invalid period %q", a.Period)
	}
	if len(a.SiteIDs) == 0 {
		return fmt.Errorf("alert must be defined on at least one site")
	}
	if a.Metric == "" {
		return fmt.Errorf("metric must not be empty")
	}
	if !a.MetricCondition.Valid() {
		return fmt.Errorf("invalid metric condition %q", a.MetricCondition)
	}
	if !a.ComparedTo.Valid() {
		return fmt.Errorf("invalid compared_to %q", a.ComparedTo)
	}
	if a.ComparedTo == ComparedToPreviousYear && a.Period == GranularityYear {
		return fmt.Errorf("previous_year baseline is undefined for yearly alerts")
	}
	if !a.ReportCondition.Valid() {
		return fmt.Errorf("invalid report condition %q", a.ReportCondition)
	}
	if a.ReportCondition != ReportNone && a.Report == "" {
		return fmt.Errorf("report condition requires a report to be set")
	}
	if a.Report != "" && !strings.Contains(a.Report, ".") {
		return fmt.Errorf("report must be of the form module.action, got %q", a.Report)
	}
	for _, email := range a.AdditionalEmails {
		if !strings.Contains(email, "@") {
			return fmt.Errorf("invalid email address %q", email)
		}
	}
	return nil
}

func filterBlank(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
