package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"custom-alerts-service/internal/db"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/models"
)

// fakeReports serves metric and dimension values keyed by site, period start
// and report.
type fakeReports struct {
	metrics    map[string]float64
	dimensions map[string]string
}

func newFakeReports() *fakeReports {
	return &fakeReports{
		metrics:    make(map[string]float64),
		dimensions: make(map[string]string),
	}
}

func reportKey(siteID int64, period models.Period, report string) string {
	return fmt.Sprintf("%d|%s|%s|%s", siteID, period.Granularity, period.Start.Format("2006-01-02"), report)
}

func (f *fakeReports) setMetric(siteID int64, period models.Period, report string, value float64) {
	f.metrics[reportKey(siteID, period, report)] = value
}

func (f *fakeReports) setDimension(siteID int64, period models.Period, report, label string) {
	f.dimensions[reportKey(siteID, period, report)] = label
}

func (f *fakeReports) MetricValue(ctx context.Context, siteID int64, period models.Period, report, metric string) (float64, bool, error) {
	v, ok := f.metrics[reportKey(siteID, period, report)]
	return v, ok, nil
}

func (f *fakeReports) DimensionValue(ctx context.Context, siteID int64, period models.Period, report string) (string, bool, error) {
	label, ok := f.dimensions[reportKey(siteID, period, report)]
	return label, ok, nil
}

// memTriggerLog is an in-memory trigger log enforcing the identity tuple
// uniqueness the way the database does.
type memTriggerLog struct {
	records []models.TriggeredAlert
}

func (m *memTriggerLog) HasTriggered(ctx context.Context, alertID, siteID int64, period models.Period) (bool, error) {
	for _, r := range m.records {
		if r.AlertID == alertID && r.SiteID == siteID && r.Granularity == period.Granularity && r.PeriodStart.Equal(period.Start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTriggerLog) RecordTrigger(ctx context.Context, t models.TriggeredAlert) error {
	if ok, _ := m.HasTriggered(ctx, t.AlertID, t.SiteID, models.Period{Granularity: t.Granularity, Start: t.PeriodStart}); ok {
		return db.ErrDuplicateTrigger
	}
	t.ID = int64(len(m.records) + 1)
	m.records = append(m.records, t)
	return nil
}

// memAlertStore serves alerts by site.
type memAlertStore struct {
	alerts []models.Alert
}

func (m *memAlertStore) GetAlertsForSitePeriod(ctx context.Context, siteID int64, g models.Granularity) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range m.alerts {
		if a.Period != g {
			continue
		}
		for _, s := range a.SiteIDs {
			if s == siteID {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func testAlert() models.Alert {
	return models.Alert{
		ID:              1,
		Name:            "Low traffic",
		Login:           "admin",
		Period:          models.GranularityWeek,
		SiteIDs:         []int64{1},
		Metric:          "nb_visits",
		MetricCondition: models.MetricLessThan,
		MetricThreshold: 5,
		ComparedTo:      models.ComparedToNone,
		EmailMe:         true,
	}
}

func testPeriod() models.Period {
	return models.NewPeriod(models.GranularityWeek, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC))
}

func newTestProcessor(store *memAlertStore, log *memTriggerLog, reports ReportSource) *Processor {
	p := NewProcessor(store, log, reports, logging.NewNop())
	p.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestEvaluateLessThanThreshold(t *testing.T) {
	alert := testAlert()
	period := testPeriod()

	tests := []struct {
		name  string
		value float64
		want  OutcomeKind
	}{
		{"below threshold triggers", 3, Triggered},
		{"above threshold does not", 7, NotTriggered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := newFakeReports()
			reports.setMetric(1, period, "", tt.value)
			log := &memTriggerLog{}
			p := newTestProcessor(&memAlertStore{}, log, reports)

			outcome, err := p.Evaluate(context.Background(), alert, 1, period)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if outcome.Kind != tt.want {
				t.Fatalf("outcome = %s, want %s", outcome.Kind, tt.want)
			}
			if tt.want == Triggered {
				if outcome.ValueNew == nil || *outcome.ValueNew != tt.value {
					t.Errorf("ValueNew = %v, want %g", outcome.ValueNew, tt.value)
				}
				if outcome.ValueOld != nil {
					t.Errorf("ValueOld = %v, want nil for no-baseline alert", *outcome.ValueOld)
				}
				if len(log.records) != 1 {
					t.Errorf("trigger log has %d records, want 1", len(log.records))
				}
			}
		})
	}
}

func TestEvaluateTwiceIsIdempotent(t *testing.T) {
	alert := testAlert()
	period := testPeriod()
	reports := newFakeReports()
	reports.setMetric(1, period, "", 3)
	log := &memTriggerLog{}
	p := newTestProcessor(&memAlertStore{}, log, reports)

	first, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if first.Kind != Triggered {
		t.Fatalf("first outcome = %s, want triggered", first.Kind)
	}

	second, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if second.Kind != Skipped {
		t.Fatalf("second outcome = %s, want skipped", second.Kind)
	}
	if len(log.records) != 1 {
		t.Fatalf("trigger log has %d records after double evaluation, want 1", len(log.records))
	}
}

func TestEvaluateRecordsSnapshot(t *testing.T) {
	alert := testAlert()
	alert.AdditionalEmails = []string{"x@example.com"}
	alert.PhoneNumbers = []string{"+15550100"}
	period := testPeriod()
	reports := newFakeReports()
	reports.setMetric(1, period, "", 3)
	log := &memTriggerLog{}
	p := newTestProcessor(&memAlertStore{}, log, reports)

	if _, err := p.Evaluate(context.Background(), alert, 1, period); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	rec := log.records[0]
	if rec.Name != "Low traffic" || rec.Metric != "nb_visits" || rec.MetricThreshold != 5 {
		t.Errorf("snapshot fields = %q/%q/%g, want alert values", rec.Name, rec.Metric, rec.MetricThreshold)
	}
	if rec.ValueNew == nil || *rec.ValueNew != 3 {
		t.Errorf("snapshot ValueNew = %v, want 3", rec.ValueNew)
	}
	if len(rec.AdditionalEmails) != 1 || rec.AdditionalEmails[0] != "x@example.com" {
		t.Errorf("snapshot emails = %v", rec.AdditionalEmails)
	}
	if len(rec.PhoneNumbers) != 1 || rec.PhoneNumbers[0] != "+15550100" {
		t.Errorf("snapshot phones = %v", rec.PhoneNumbers)
	}
	if !rec.PeriodStart.Equal(period.Start) || rec.Granularity != period.Granularity {
		t.Errorf("snapshot period = %s %s, want %s", rec.Granularity, rec.PeriodStart, period)
	}
}

func TestEvaluateMissingMetricIsNotTriggered(t *testing.T) {
	alert := testAlert()
	period := testPeriod()
	log := &memTriggerLog{}
	p := newTestProcessor(&memAlertStore{}, log, newFakeReports())

	outcome, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if outcome.Kind != NotTriggered {
		t.Fatalf("outcome = %s, want not_triggered for absent data", outcome.Kind)
	}
	if len(log.records) != 0 {
		t.Fatalf("trigger log has %d records, want 0", len(log.records))
	}
}

func TestEvaluateReportConditionGatesMetric(t *testing.T) {
	alert := testAlert()
	alert.Report = "Referrers.getKeywords"
	alert.ReportCondition = models.ReportMatchesExactly
	alert.ReportValue = "golang"
	period := testPeriod()

	tests := []struct {
		name  string
		label string
		set   bool
		want  OutcomeKind
	}{
		{"matching label evaluates metric", "golang", true, Triggered},
		{"mismatching label short-circuits", "python", true, NotTriggered},
		{"missing row short-circuits", "", false, NotTriggered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := newFakeReports()
			reports.setMetric(1, period, alert.Report, 3)
			if tt.set {
				reports.setDimension(1, period, alert.Report, tt.label)
			}
			log := &memTriggerLog{}
			p := newTestProcessor(&memAlertStore{}, log, reports)

			outcome, err := p.Evaluate(context.Background(), alert, 1, period)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if outcome.Kind != tt.want {
				t.Fatalf("outcome = %s, want %s", outcome.Kind, tt.want)
			}
		})
	}
}

func TestEvaluateMatchesAnyNeedsOnlyRow(t *testing.T) {
	alert := testAlert()
	alert.Report = "Referrers.getKeywords"
	alert.ReportCondition = models.ReportMatchesAny
	period := testPeriod()

	reports := newFakeReports()
	reports.setMetric(1, period, alert.Report, 3)
	reports.setDimension(1, period, alert.Report, "whatever label")
	p := newTestProcessor(&memAlertStore{}, &memTriggerLog{}, reports)

	outcome, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if outcome.Kind != Triggered {
		t.Fatalf("outcome = %s, want triggered regardless of label", outcome.Kind)
	}
}

func TestEvaluateBaselineFromPreviousPeriod(t *testing.T) {
	alert := testAlert()
	alert.MetricCondition = models.MetricIncreasedMoreThan
	alert.MetricThreshold = 20
	alert.ComparedTo = models.ComparedToPrevious
	period := testPeriod()

	reports := newFakeReports()
	reports.setMetric(1, period, "", 130)
	reports.setMetric(1, period.Previous(), "", 100)
	log := &memTriggerLog{}
	p := newTestProcessor(&memAlertStore{}, log, reports)

	outcome, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if outcome.Kind != Triggered {
		t.Fatalf("outcome = %s, want triggered for 30%% increase", outcome.Kind)
	}
	if outcome.ValueOld == nil || *outcome.ValueOld != 100 {
		t.Errorf("ValueOld = %v, want 100", outcome.ValueOld)
	}
}

func TestEvaluateMissingBaselineNeverFiresPercentage(t *testing.T) {
	alert := testAlert()
	alert.MetricCondition = models.MetricIncreasedMoreThan
	alert.MetricThreshold = 20
	alert.ComparedTo = models.ComparedToPrevious
	period := testPeriod()

	reports := newFakeReports()
	reports.setMetric(1, period, "", 1e6)
	// no value for the previous period
	p := newTestProcessor(&memAlertStore{}, &memTriggerLog{}, reports)

	outcome, err := p.Evaluate(context.Background(), alert, 1, period)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if outcome.Kind != NotTriggered {
		t.Fatalf("outcome = %s, want not_triggered with no baseline", outcome.Kind)
	}
}

func TestProcessPeriodIsolatesFailingAlerts(t *testing.T) {
	good := testAlert()
	broken := testAlert()
	broken.ID = 2
	broken.Report = "Referrers.getKeywords"
	broken.ReportCondition = models.ReportMatchesAny
	period := testPeriod()

	store := &memAlertStore{alerts: []models.Alert{broken, good}}
	reports := newFakeReports()
	reports.setMetric(1, period, "", 3)
	// broken gates on a report and every dimension lookup errors out
	failing := &dimensionFailingReports{fakeReports: reports}
	log := &memTriggerLog{}
	p := newTestProcessor(store, log, failing)

	if err := p.ProcessPeriod(context.Background(), period, 1); err != nil {
		t.Fatalf("ProcessPeriod: %v", err)
	}
	if len(log.records) != 1 || log.records[0].AlertID != good.ID {
		t.Fatalf("trigger log = %+v, want only alert %d despite alert %d failing", log.records, good.ID, broken.ID)
	}
}

// dimensionFailingReports fails every dimension lookup while serving metric
// values normally.
type dimensionFailingReports struct {
	*fakeReports
}

func (f *dimensionFailingReports) DimensionValue(ctx context.Context, siteID int64, period models.Period, report string) (string, bool, error) {
	return "", false, errors.New("dimension lookup failed")
}
