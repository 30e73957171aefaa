package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBConfig carries what the optional Postgres archive needs.
type DBConfig struct {
	URL    string
	Schema string
	Tag    string
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("TRIAL_AUDIT_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	valid := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !valid.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// seedDatabase initializes the schema and stores the given report as
// the first run, unless runs already exist.
func seedDatabase(report Report, cfg DBConfig) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return "", err
	}

	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.trial_runs`, schema)).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		fmt.Println("Report data already present; skipping seed.")
		return "", nil
	}

	return storeReportTx(ctx, db, report, schema, cfg.Tag)
}

// storeReportInDB archives one report run.
func storeReportInDB(report Report, cfg DBConfig) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return "", err
	}

	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	return storeReportTx(ctx, db, report, schema, cfg.Tag)
}

func storeReportTx(ctx context.Context, db *sql.DB, report Report, schema string, tag string) (string, error) {
	runID := uuid.New()
	reportDate, err := parseDate(report.Date)
	if err != nil {
		return "", err
	}
	generatedAt, err := time.Parse(time.RFC3339, report.GeneratedAt)
	if err != nil {
		return "", fmt.Errorf("invalid generated_at: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	o := report.Overall
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.trial_runs (
			id, report_date, app, data_source, generated_at,
			total_trials, resolved, in_trial, converted, cancelled, billing_issue,
			conversion_rate, cancel_rate, billing_rate,
			export_file, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,$10,$11,
			$12,$13,$14,
			$15,$16
		)`, schema),
		runID,
		dateOnly(reportDate),
		report.App,
		nullString(report.DataSource),
		generatedAt,
		o.TotalTrials,
		o.Resolved,
		o.InTrial,
		o.Converted,
		o.Cancelled,
		o.BillingIssue,
		nullRate(o.ConversionRate),
		nullRate(o.CancelRate),
		nullRate(o.BillingRate),
		nullString(report.ExportFile),
		nullString(tag),
	)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	insertWeekSQL := fmt.Sprintf(`
		INSERT INTO %s.trial_week_cohorts (
			id, run_id, week_start,
			total_trials, resolved, in_trial, converted, cancelled, billing_issue,
			conversion_rate, cancel_rate, billing_rate
		) VALUES (
			$1,$2,$3,
			$4,$5,$6,$7,$8,$9,
			$10,$11,$12
		)`, schema)

	for _, cohort := range report.WeeklyCohorts {
		week, err := parseDate(cohort.WeekStart)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
		_, err = tx.ExecContext(ctx, insertWeekSQL,
			uuid.New(),
			runID,
			dateOnly(week),
			cohort.TotalTrials,
			cohort.Resolved,
			cohort.InTrial,
			cohort.Converted,
			cohort.Cancelled,
			cohort.BillingIssue,
			nullRate(cohort.ConversionRate),
			nullRate(cohort.CancelRate),
			nullRate(cohort.BillingRate),
		)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
	}

	insertProductSQL := fmt.Sprintf(`
		INSERT INTO %s.trial_product_cohorts (
			id, run_id, product_id,
			total_trials, resolved, in_trial, converted, cancelled, billing_issue,
			conversion_rate, cancel_rate, billing_rate
		) VALUES (
			$1,$2,$3,
			$4,$5,$6,$7,$8,$9,
			$10,$11,$12
		)`, schema)

	for _, cohort := range report.Products {
		_, err = tx.ExecContext(ctx, insertProductSQL,
			uuid.New(),
			runID,
			cohort.ProductID,
			cohort.TotalTrials,
			cohort.Resolved,
			cohort.InTrial,
			cohort.Converted,
			cohort.Cancelled,
			cohort.BillingIssue,
			nullRate(cohort.ConversionRate),
			nullRate(cohort.CancelRate),
			nullRate(cohort.BillingRate),
		)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.trial_runs (
			id uuid PRIMARY KEY,
			report_date date NOT NULL,
			app text NOT NULL,
			data_source text,
			generated_at timestamptz NOT NULL,
			total_trials integer NOT NULL,
			resolved integer NOT NULL,
			in_trial integer NOT NULL,
			converted integer NOT NULL,
			cancelled integer NOT NULL,
			billing_issue integer NOT NULL,
			conversion_rate numeric(6,4),
			cancel_rate numeric(6,4),
			billing_rate numeric(6,4),
			export_file text,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.trial_week_cohorts (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.trial_runs(id) ON DELETE CASCADE,
			week_start date NOT NULL,
			total_trials integer NOT NULL,
			resolved integer NOT NULL,
			in_trial integer NOT NULL,
			converted integer NOT NULL,
			cancelled integer NOT NULL,
			billing_issue integer NOT NULL,
			conversion_rate numeric(6,4),
			cancel_rate numeric(6,4),
			billing_rate numeric(6,4),
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.trial_product_cohorts (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.trial_runs(id) ON DELETE CASCADE,
			product_id text NOT NULL,
			total_trials integer NOT NULL,
			resolved integer NOT NULL,
			in_trial integer NOT NULL,
			converted integer NOT NULL,
			cancelled integer NOT NULL,
			billing_issue integer NOT NULL,
			conversion_rate numeric(6,4),
			cancel_rate numeric(6,4),
			billing_rate numeric(6,4),
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_trial_runs_app_idx ON %s.trial_runs (app, report_date)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_trial_week_cohorts_run_idx ON %s.trial_week_cohorts (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_trial_product_cohorts_run_idx ON %s.trial_product_cohorts (run_id)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullRate(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
