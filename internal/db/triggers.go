package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"custom-alerts-service/internal/models"
)

const triggerColumns = `id, alert_id, site_id, period, period_start, ts_triggered,
	value_old, value_new, name, login, metric, metric_condition, metric_threshold,
	compared_to, report, report_condition, report_value, email_me,
	additional_emails, phone_numbers, sent, ts_sent`

// RecordTrigger appends a trigger record. The insert is conditional on the
// identity tuple being free; a concurrent worker winning the race surfaces as
// ErrDuplicateTrigger, never as a second row.
func (d *DB) RecordTrigger(ctx context.Context, t models.TriggeredAlert) error {
	query := `
        INSERT INTO alert_triggered (
            alert_id, site_id, period, period_start, ts_triggered,
            value_old, value_new, name, login, metric, metric_condition,
            metric_threshold, compared_to, report, report_condition,
            report_value, email_me, additional_emails, phone_numbers
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        ON CONFLICT (alert_id, site_id, period, period_start) DO NOTHING`
	result, err := d.Pool.Exec(ctx, query,
		t.AlertID, t.SiteID, t.Granularity, t.PeriodStart, t.TriggeredAt,
		t.ValueOld, t.ValueNew, t.Name, t.Login, t.Metric, t.MetricCondition,
		t.MetricThreshold, t.ComparedTo, t.Report, t.ReportCondition,
		t.ReportValue, t.EmailMe, encodeList(t.AdditionalEmails), encodeList(t.PhoneNumbers))
	if err != nil {
		return fmt.Errorf("failed to record trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDuplicateTrigger
	}
	return nil
}

// HasTriggered reports whether a trigger already exists for the identity
// tuple.
func (d *DB) HasTriggered(ctx context.Context, alertID, siteID int64, period models.Period) (bool, error) {
	var exists bool
	err := d.Pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM alert_triggered
            WHERE alert_id = $1 AND site_id = $2 AND period = $3 AND period_start = $4
        )`, alertID, siteID, period.Granularity, period.Start).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trigger log: %w", err)
	}
	return exists, nil
}

// UnsentForPeriod returns undispatched trigger records for a period in stable
// order (ascending alert id, then site id). siteID zero means all sites.
func (d *DB) UnsentForPeriod(ctx context.Context, period models.Period, siteID int64) ([]models.TriggeredAlert, error) {
	query := `
        SELECT ` + triggerColumns + `
        FROM alert_triggered
        WHERE period = $1 AND period_start = $2 AND NOT sent`
	args := []interface{}{period.Granularity, period.Start}
	if siteID > 0 {
		query += ` AND site_id = $3`
		args = append(args, siteID)
	}
	query += ` ORDER BY alert_id, site_id`
	return d.queryTriggers(ctx, query, args...)
}

// TriggeredForPeriod returns the full trigger history of a period, optionally
// restricted to alerts owned by login.
func (d *DB) TriggeredForPeriod(ctx context.Context, period models.Period, login string) ([]models.TriggeredAlert, error) {
	query := `
        SELECT ` + triggerColumns + `
        FROM alert_triggered
        WHERE period = $1 AND period_start = $2`
	args := []interface{}{period.Granularity, period.Start}
	if login != "" {
		query += ` AND login = $3`
		args = append(args, login)
	}
	query += ` ORDER BY alert_id, site_id`
	return d.queryTriggers(ctx, query, args...)
}

// MarkSent flips the sent flag on the given records. Records already marked
// stay untouched, so re-marking is a no-op rather than an error.
func (d *DB) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.Pool.Exec(ctx, `
        UPDATE alert_triggered
        SET sent = TRUE, ts_sent = $1
        WHERE id = ANY($2) AND NOT sent`, time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("failed to mark triggers sent: %w", err)
	}
	return nil
}

func (d *DB) queryTriggers(ctx context.Context, query string, args ...interface{}) ([]models.TriggeredAlert, error) {
	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}
	defer rows.Close()

	var triggers []models.TriggeredAlert
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

func scanTrigger(row pgx.Row) (models.TriggeredAlert, error) {
	var t models.TriggeredAlert
	var emails, phones string
	err := row.Scan(
		&t.ID, &t.AlertID, &t.SiteID, &t.Granularity, &t.PeriodStart, &t.TriggeredAt,
		&t.ValueOld, &t.ValueNew, &t.Name, &t.Login, &t.Metric, &t.MetricCondition,
		&t.MetricThreshold, &t.ComparedTo, &t.Report, &t.ReportCondition,
		&t.ReportValue, &t.EmailMe, &emails, &phones, &t.Sent, &t.SentAt,
	)
	if err != nil {
		return models.TriggeredAlert{}, err
	}
	t.AdditionalEmails = decodeList(emails)
	t.PhoneNumbers = decodeList(phones)
	return t, nil
}
