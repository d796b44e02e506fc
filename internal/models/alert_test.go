package models

import (
	"reflect"
	"strings"
	"testing"
)

func validAlert() Alert {
	return Alert{
		Name:            "Low traffic",
		Login:           "admin",
		Period:          GranularityWeek,
		SiteIDs:         []int64{1},
		Metric:          "nb_visits",
		MetricCondition: MetricLessThan,
		MetricThreshold: 5,
		ComparedTo:      ComparedToNone,
	}
}

func TestNormalize(t *testing.T) {
	a := validAlert()
	a.Name = "  Low traffic  "
	a.AdditionalEmails = []string{" x@example.com ", "", "  "}
	a.PhoneNumbers = []string{"+15550100", " "}
	a.ComparedTo = ""
	a.ReportValue = "stale"

	a.Normalize()

	if a.Name != "Low traffic" {
		t.Errorf("Name = %q", a.Name)
	}
	if !reflect.DeepEqual(a.AdditionalEmails, []string{"x@example.com"}) {
		t.Errorf("AdditionalEmails = %v", a.AdditionalEmails)
	}
	if !reflect.DeepEqual(a.PhoneNumbers, []string{"+15550100"}) {
		t.Errorf("PhoneNumbers = %v", a.PhoneNumbers)
	}
	if a.ComparedTo != ComparedToNone {
		t.Errorf("ComparedTo = %q, want default none", a.ComparedTo)
	}
	if a.ReportValue != "" {
		t.Errorf("ReportValue = %q, want cleared without a report condition", a.ReportValue)
	}
}

func TestNormalizeKeepsReportValueWithCondition(t *testing.T) {
	a := validAlert()
	a.Report = "Referrers.getKeywords"
	a.ReportCondition = ReportContains
	a.ReportValue = "golang"

	a.Normalize()

	if a.ReportValue != "golang" {
		t.Errorf("ReportValue = %q, want kept", a.ReportValue)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Alert)
		wantErr string
	}{
		{"valid", func(a *Alert) {}, ""},
		{"empty name", func(a *Alert) { a.Name = "" }, "name"},
		{"name too long", func(a *Alert) { a.Name = strings.Repeat("x", 101) }, "100"},
		{"name at limit", func(a *Alert) { a.Name = strings.Repeat("x", 100) }, ""},
		{"bad period", func(a *Alert) { a.Period = "fortnight" }, "period"},
		{"no sites", func(a *Alert) { a.SiteIDs = nil }, "site"},
		{"empty metric", func(a *Alert) { a.Metric = "" }, "metric"},
		{"bad metric condition", func(a *Alert) { a.MetricCondition = "roughly" }, "metric condition"},
		{"bad compared_to", func(a *Alert) { a.ComparedTo = "last_tuesday" }, "compared_to"},
		{"previous_year on yearly alert", func(a *Alert) {
			a.Period = GranularityYear
			a.ComparedTo = ComparedToPreviousYear
			a.MetricCondition = MetricIncreased
		}, "previous_year"},
		{"previous_year on monthly alert", func(a *Alert) {
			a.Period = GranularityMonth
			a.ComparedTo = ComparedToPreviousYear
			a.MetricCondition = MetricIncreased
		}, ""},
		{"bad report condition", func(a *Alert) {
			a.Report = "Referrers.getKeywords"
			a.ReportCondition = "sounds_like"
		}, "report condition"},
		{"report condition without report", func(a *Alert) {
			a.ReportCondition = ReportContains
			a.ReportValue = "golang"
		}, "requires a report"},
		{"report without dot", func(a *Alert) { a.Report = "Keywords" }, "module.action"},
		{"report with condition", func(a *Alert) {
			a.Report = "Referrers.getKeywords"
			a.ReportCondition = ReportMatchesExactly
			a.ReportValue = "golang"
		}, ""},
		{"bad email", func(a *Alert) { a.AdditionalEmails = []string{"not-an-address"} }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAlert()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
