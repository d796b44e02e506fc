package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAlertNotFound is returned when an alert id does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrDuplicateTrigger is returned when a trigger for the same
	// (alert, site, period) identity already exists.
	ErrDuplicateTrigger = errors.New("trigger already recorded for this period")
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*DB, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// Install creates the alert tables if they do not exist. The unique index on
// the trigger identity tuple is what makes RecordTrigger atomic under
// concurrent workers.
func (d *DB) Install(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			login VARCHAR(100) NOT NULL,
			period VARCHAR(5) NOT NULL,
			metric VARCHAR(150) NOT NULL,
			metric_condition VARCHAR(50) NOT NULL,
			metric_threshold DOUBLE PRECISION NOT NULL,
			compared_to VARCHAR(20) NOT NULL DEFAULT 'none',
			report VARCHAR(150) NOT NULL DEFAULT '',
			report_condition VARCHAR(50) NOT NULL DEFAULT '',
			report_value VARCHAR(255) NOT NULL DEFAULT '',
			email_me BOOLEAN NOT NULL DEFAULT FALSE,
			additional_emails TEXT NOT NULL DEFAULT '[]',
			phone_numbers TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS alert_site (
			alert_id BIGINT NOT NULL,
			site_id BIGINT NOT NULL,
			PRIMARY KEY (alert_id, site_id)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_triggered (
			id BIGSERIAL PRIMARY KEY,
			alert_id BIGINT NOT NULL,
			site_id BIGINT NOT NULL,
			period VARCHAR(5) NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			ts_triggered TIMESTAMPTZ NOT NULL,
			value_old DOUBLE PRECISION,
			value_new DOUBLE PRECISION,
			name VARCHAR(100) NOT NULL,
			login VARCHAR(100) NOT NULL,
			metric VARCHAR(150) NOT NULL,
			metric_condition VARCHAR(50) NOT NULL,
			metric_threshold DOUBLE PRECISION NOT NULL,
			compared_to VARCHAR(20) NOT NULL,
			report VARCHAR(150) NOT NULL DEFAULT '',
			report_condition VARCHAR(50) NOT NULL DEFAULT '',
			report_value VARCHAR(255) NOT NULL DEFAULT '',
			email_me BOOLEAN NOT NULL DEFAULT FALSE,
			additional_emails TEXT NOT NULL DEFAULT '[]',
			phone_numbers TEXT NOT NULL DEFAULT '[]',
			sent BOOLEAN NOT NULL DEFAULT FALSE,
			ts_sent TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS alert_triggered_identity
			ON alert_triggered (alert_id, site_id, period, period_start)`,
		`CREATE INDEX IF NOT EXISTS alert_triggered_unsent
			ON alert_triggered (period, period_start) WHERE NOT sent`,
	}

	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to install schema: %w", err)
		}
	}
	return nil
}
