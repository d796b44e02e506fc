package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custom-alerts-service/internal/db"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/metrics"
	"custom-alerts-service/internal/models"
)

// OutcomeKind classifies the result of evaluating one (alert, site, period).
type OutcomeKind int

const (
	NotTriggered OutcomeKind = iota
	Triggered
	Skipped
)

func (k OutcomeKind) String() string {
	switch k {
	case Triggered:
		return "triggered"
	case Skipped:
		return "skipped"
	default:
		return "not_triggered"
	}
}

// Outcome is the result of one evaluation. ValueOld is nil when no baseline
// was available; Reason is only set for Skipped.
type Outcome struct {
	Kind     OutcomeKind
	ValueOld *float64
	ValueNew *float64
	Reason   string
}

// ReportSource is the analytics backend this service evaluates against.
// ok=false means the value is absent for the requested scope, which is a
// normal outcome, not an error. An empty report ref addresses the site/period
// aggregate.
type ReportSource interface {
	MetricValue(ctx context.Context, siteID int64, period models.Period, report, metric string) (value float64, ok bool, err error)
	DimensionValue(ctx context.Context, siteID int64, period models.Period, report string) (label string, ok bool, err error)
}

// AlertStore loads the alerts defined for a site at a granularity.
type AlertStore interface {
	GetAlertsForSitePeriod(ctx context.Context, siteID int64, g models.Granularity) ([]models.Alert, error)
}

// TriggerLog is the subset of the trigger store the processor writes to.
type TriggerLog interface {
	HasTriggered(ctx context.Context, alertID, siteID int64, period models.Period) (bool, error)
	RecordTrigger(ctx context.Context, t models.TriggeredAlert) error
}

// Processor evaluates alerts for one (period, site) at a time.
type Processor struct {
	alerts  AlertStore
	log     TriggerLog
	reports ReportSource
	logger  *logging.Logger
	now     func() time.Time
}

func NewProcessor(alerts AlertStore, log TriggerLog, reports ReportSource, logger *logging.Logger) *Processor {
	return &Processor{
		alerts:  alerts,
		log:     log,
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
}

// ProcessPeriod evaluates every alert defined on siteID for the given period.
// A failing evaluation is logged and counted but does not abort the rest of
// the batch.
func (p *Processor) ProcessPeriod(ctx context.Context, period models.Period, siteID int64) error {
	alerts, err := p.alerts.GetAlertsForSitePeriod(ctx, siteID, period.Granularity)
	if err != nil {
		return fmt.Errorf("failed to load alerts for site %d: %w", siteID, err)
	}

	for _, alert := range alerts {
		outcome, err := p.Evaluate(ctx, alert, siteID, period)
		if err != nil {
			metrics.EvaluationsTotal.WithLabelValues("error").Inc()
			p.logger.Errorf("Evaluation failed for alert %d site %d (%s): %v", alert.ID, siteID, period, err)
			continue
		}
		metrics.EvaluationsTotal.WithLabelValues(outcome.Kind.String()).Inc()
		switch outcome.Kind {
		case Triggered:
			p.logger.Infof("Alert %d triggered for site %d (%s): new=%s old=%s",
				alert.ID, siteID, period, fmtValue(outcome.ValueNew), fmtValue(outcome.ValueOld))
		case Skipped:
			p.logger.Debugf("Alert %d skipped for site %d (%s): %s", alert.ID, siteID, period, outcome.Reason)
		}
	}
	return nil
}

// Evaluate runs one (alert, site, period) evaluation and records the trigger
// if the condition holds. It is safe to call twice for the same triple: the
// second call is Skipped.
func (p *Processor) Evaluate(ctx context.Context, alert models.Alert, siteID int64, period models.Period) (Outcome, error) {
	done, err := p.log.HasTriggered(ctx, alert.ID, siteID, period)
	if err != nil {
		return Outcome{}, err
	}
	if done {
		return Outcome{Kind: Skipped, Reason: "already evaluated"}, nil
	}

	// The report condition gates metric evaluation entirely.
	if alert.Report != "" && alert.ReportCondition != models.ReportNone {
		label, ok, err := p.reports.DimensionValue(ctx, siteID, period, alert.Report)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to resolve report %s: %w", alert.Report, err)
		}
		if !ok {
			return Outcome{Kind: NotTriggered}, nil
		}
		if !ReportMatches(alert.ReportCondition, label, alert.ReportValue) {
			return Outcome{Kind: NotTriggered}, nil
		}
	}

	value, ok, err := p.reports.MetricValue(ctx, siteID, period, alert.Report, alert.Metric)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to fetch metric %s: %w", alert.Metric, err)
	}
	if !ok {
		// absence of data is not failure
		return Outcome{Kind: NotTriggered}, nil
	}

	var valueOld *float64
	if alert.MetricCondition.IsRelative() {
		if prev, ok := baselinePeriod(alert.ComparedTo, period); ok {
			old, found, err := p.reports.MetricValue(ctx, siteID, prev, alert.Report, alert.Metric)
			if err != nil {
				return Outcome{}, fmt.Errorf("failed to fetch baseline for %s: %w", alert.Metric, err)
			}
			if found {
				valueOld = &old
			}
		}
	}

	// Missing prior data evaluates against a zero baseline; the percentage
	// conditions then never trigger.
	baseline := 0.0
	if valueOld != nil {
		baseline = *valueOld
	}
	if !MetricTriggers(alert.MetricCondition, value, baseline, alert.MetricThreshold) {
		return Outcome{Kind: NotTriggered}, nil
	}

	record := models.Snapshot(alert, siteID, period, valueOld, &value, p.now())
	if err := p.log.RecordTrigger(ctx, record); err != nil {
		if errors.Is(err, db.ErrDuplicateTrigger) {
			return Outcome{Kind: Skipped, Reason: "concurrent trigger"}, nil
		}
		return Outcome{}, err
	}

	return Outcome{Kind: Triggered, ValueOld: valueOld, ValueNew: &value}, nil
}

func baselinePeriod(c models.ComparedTo, p models.Period) (models.Period, bool) {
	switch c {
	case models.ComparedToPrevious:
		return p.Previous(), true
	case models.ComparedToPreviousYear:
		return p.PreviousYear()
	default:
		return models.Period{}, false
	}
}

func fmtValue(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%g", *v)
}
