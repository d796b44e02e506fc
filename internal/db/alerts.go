package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"custom-alerts-service/internal/models"
)

const alertColumns = `id, name, login, period, metric, metric_condition, metric_threshold,
	compared_to, report, report_condition, report_value, email_me, additional_emails, phone_numbers`

// CreateAlert inserts a new alert and its site links, filling in the
// generated id on the passed alert.
func (d *DB) CreateAlert(ctx context.Context, alert *models.Alert) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO alert (
            name, login, period, metric, metric_condition, metric_threshold,
            compared_to, report, report_condition, report_value, email_me,
            additional_emails, phone_numbers
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id`
	err = tx.QueryRow(ctx, query,
		alert.Name, alert.Login, alert.Period, alert.Metric, alert.MetricCondition,
		alert.MetricThreshold, alert.ComparedTo, alert.Report, alert.ReportCondition,
		alert.ReportValue, alert.EmailMe,
		encodeList(alert.AdditionalEmails), encodeList(alert.PhoneNumbers),
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	if err := setSiteIDs(ctx, tx, alert.ID, alert.SiteIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alert: %w", err)
	}
	return nil
}

// GetAlert returns a single alert with its site ids.
func (d *DB) GetAlert(ctx context.Context, id int64) (models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alert WHERE id = $1`
	alert, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Alert{}, ErrAlertNotFound
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %d: %w", id, err)
	}

	alert.SiteIDs, err = d.siteIDs(ctx, alert.ID)
	if err != nil {
		return models.Alert{}, err
	}
	return alert, nil
}

// GetAlertsForSites returns all alerts defined on any of the given sites.
func (d *DB) GetAlertsForSites(ctx context.Context, siteIDs []int64) ([]models.Alert, error) {
	query := `
        SELECT ` + alertColumns + `
        FROM alert
        WHERE id IN (SELECT alert_id FROM alert_site WHERE site_id = ANY($1))
        ORDER BY id`
	return d.queryAlerts(ctx, query, siteIDs)
}

// GetAlertsForSitePeriod returns the alerts to evaluate for one site and
// granularity. This is the processor's read path.
func (d *DB) GetAlertsForSitePeriod(ctx context.Context, siteID int64, g models.Granularity) ([]models.Alert, error) {
	query := `
        SELECT ` + alertColumns + `
        FROM alert
        WHERE period = $1
          AND id IN (SELECT alert_id FROM alert_site WHERE site_id = $2)
        ORDER BY id`
	return d.queryAlerts(ctx, query, g, siteID)
}

// GetAllAlerts returns every alert.
func (d *DB) GetAllAlerts(ctx context.Context) ([]models.Alert, error) {
	return d.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alert ORDER BY id`)
}

// UpdateAlert replaces an alert definition and its site links.
func (d *DB) UpdateAlert(ctx context.Context, alert models.Alert) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE alert SET
            name = $1, period = $2, metric = $3, metric_condition = $4,
            metric_threshold = $5, compared_to = $6, report = $7,
            report_condition = $8, report_value = $9, email_me = $10,
            additional_emails = $11, phone_numbers = $12
        WHERE id = $13`
	result, err := tx.Exec(ctx, query,
		alert.Name, alert.Period, alert.Metric, alert.MetricCondition,
		alert.MetricThreshold, alert.ComparedTo, alert.Report, alert.ReportCondition,
		alert.ReportValue, alert.EmailMe,
		encodeList(alert.AdditionalEmails), encodeList(alert.PhoneNumbers),
		alert.ID)
	if err != nil {
		return fmt.Errorf("failed to update alert %d: %w", alert.ID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlertNotFound
	}

	if err := setSiteIDs(ctx, tx, alert.ID, alert.SiteIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alert update: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert, its site links and its trigger history.
func (d *DB) DeleteAlert(ctx context.Context, id int64) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM alert WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM alert_site WHERE alert_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete alert sites for %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM alert_triggered WHERE alert_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete trigger log for %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alert delete: %w", err)
	}
	return nil
}

// RemoveSite unlinks a deleted site from every alert and drops its trigger
// history. Alert definitions themselves are kept; an alert whose last site is
// removed simply stops matching any evaluation run.
func (d *DB) RemoveSite(ctx context.Context, siteID int64) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM alert_site WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("failed to unlink site %d: %w", siteID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM alert_triggered WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("failed to delete trigger log for site %d: %w", siteID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit site removal: %w", err)
	}
	return nil
}

// RemovePhoneNumberFromAlerts strips a deactivated phone number from every
// alert that lists it.
func (d *DB) RemovePhoneNumberFromAlerts(ctx context.Context, phoneNumber string) error {
	alerts, err := d.GetAllAlerts(ctx)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		kept := alert.PhoneNumbers[:0]
		removed := false
		for _, number := range alert.PhoneNumbers {
			if number == phoneNumber {
				removed = true
				continue
			}
			kept = append(kept, number)
		}
		if !removed {
			continue
		}

		query := `UPDATE alert SET phone_numbers = $1 WHERE id = $2`
		if _, err := d.Pool.Exec(ctx, query, encodeList(kept), alert.ID); err != nil {
			return fmt.Errorf("failed to remove phone number from alert %d: %w", alert.ID, err)
		}
	}
	return nil
}

func (d *DB) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}

	for i := range alerts {
		alerts[i].SiteIDs, err = d.siteIDs(ctx, alerts[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return alerts, nil
}

func (d *DB) siteIDs(ctx context.Context, alertID int64) ([]int64, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT site_id FROM alert_site WHERE alert_id = $1 ORDER BY site_id`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert sites: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan site id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func setSiteIDs(ctx context.Context, tx pgx.Tx, alertID int64, siteIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM alert_site WHERE alert_id = $1`, alertID); err != nil {
		return fmt.Errorf("failed to clear alert sites: %w", err)
	}
	for _, siteID := range siteIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO alert_site (alert_id, site_id) VALUES ($1, $2)`, alertID, siteID)
		if err != nil {
			return fmt.Errorf("failed to link alert %d to site %d: %w", alertID, siteID, err)
		}
	}
	return nil
}

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	var emails, phones string
	err := row.Scan(
		&a.ID, &a.Name, &a.Login, &a.Period, &a.Metric, &a.MetricCondition,
		&a.MetricThreshold, &a.ComparedTo, &a.Report, &a.ReportCondition,
		&a.ReportValue, &a.EmailMe, &emails, &phones,
	)
	if err != nil {
		return models.Alert{}, err
	}
	a.AdditionalEmails = decodeList(emails)
	a.PhoneNumbers = decodeList(phones)
	return a, nil
}

// Recipient lists are stored as JSON text, mirroring the alert row shape.
func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
