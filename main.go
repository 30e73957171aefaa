package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	inputPath := flag.String("input", "", "Path to a single export .csv or .csv.gz")
	appName := flag.String("app-name", "", "Override app name (single-file mode)")
	asOf := flag.String("as-of", "", "Evaluation date (YYYY-MM-DD); defaults to now (UTC)")
	jsonOut := flag.String("json", "", "Optional JSON output path (single-file mode)")
	syncMode := flag.Bool("sync", false, "Sync latest exports from the GCS bucket and refresh snapshots")
	configPath := flag.String("config", "config.json", "Path to config file (sync mode)")
	dataDir := flag.String("data-dir", "", "Override data directory (sync mode)")
	dbEnabled := flag.Bool("db", false, "Store reports in Postgres (requires TRIAL_AUDIT_DB_URL or DATABASE_URL)")
	dbSchema := flag.String("db-schema", "trial_exit_audit", "Postgres schema for report tables")
	dbTag := flag.String("db-tag", "", "Optional label for stored runs")
	initDB := flag.Bool("init-db", false, "Initialize database schema and seed with the current report if empty")
	flag.Parse()

	now := time.Now().UTC()
	if *asOf != "" {
		parsed, err := parseDate(*asOf)
		if err != nil {
			exitWithError(fmt.Errorf("invalid -as-of date: %w", err))
		}
		now = parsed.UTC()
	}

	if *syncMode {
		runSync(*configPath, *dataDir, now, syncOptions{
			db:     *dbEnabled,
			schema: *dbSchema,
			tag:    *dbTag,
		})
		return
	}

	if *inputPath == "" {
		exitWithError(errors.New("-input is required unless -sync is set"))
	}

	tbl, err := loadTable(*inputPath)
	if err != nil {
		exitWithError(err)
	}

	report, err := analyzeTable(tbl, *appName, now)
	if errors.Is(err, ErrNoTrialData) {
		exitWithError(errors.New("no trial data to analyze"))
	}
	if err != nil {
		exitWithError(err)
	}

	printReport(report, *inputPath)

	if *jsonOut != "" {
		if err := writeReport(report, *jsonOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nJSON report saved to %s\n", *jsonOut)
	}

	if *dbEnabled || *initDB {
		dbURL := dbURLFromEnv()
		if dbURL == "" {
			exitWithError(errors.New("database URL missing; set TRIAL_AUDIT_DB_URL or DATABASE_URL"))
		}
		cfg := DBConfig{
			URL:    dbURL,
			Schema: *dbSchema,
			Tag:    *dbTag,
		}
		seeded := false
		if *initDB {
			runID, err := seedDatabase(report, cfg)
			if err != nil {
				exitWithError(err)
			}
			if runID != "" {
				seeded = true
				fmt.Printf("\nSeeded Postgres with initial report run (run_id=%s)\n", runID)
			}
		}
		if *dbEnabled {
			if seeded {
				fmt.Println("Skipped duplicate insert; current report already used for seed.")
			} else {
				runID, err := storeReportInDB(report, cfg)
				if err != nil {
					exitWithError(err)
				}
				fmt.Printf("\nStored report run in Postgres (run_id=%s)\n", runID)
			}
		}
	}
}

type syncOptions struct {
	db     bool
	schema string
	tag    string
}

// runSync is the daily entrypoint: pull the newest date folder from the
// bucket, analyze every export in it, write per-app dated snapshots,
// and regenerate the index. Zero processed files is a clean exit;
// exports simply may not have landed yet.
func runSync(configPath string, dataDirOverride string, now time.Time, opts syncOptions) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	if cfg.GCSBucket == "" {
		logger.Fatal().Msg("gcs_bucket is not configured")
	}

	ctx := context.Background()
	client, closeClient, err := newBucketClient(ctx, cfg.GCSBucket)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to bucket")
	}
	defer closeClient()

	latest, err := client.latestDateFolder(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("find latest export date")
	}
	if latest == "" {
		logger.Info().Msg("no date folders in bucket; exports may not have landed yet")
		if _, err := updateIndex(cfg.DataDir, cfg.Apps, now); err != nil {
			logger.Fatal().Err(err).Msg("update index")
		}
		return
	}
	logger.Info().Str("export_date", latest).Msg("latest export date")

	exports, err := client.listExports(ctx, latest)
	if err != nil {
		logger.Fatal().Err(err).Msg("list exports")
	}
	logger.Info().Int("files", len(exports)).Msg("found export files")

	processed := 0
	unmatched := 0
	for _, object := range exports {
		matched, err := processExport(ctx, client, object, latest, cfg, now, opts, logger)
		if err != nil {
			logger.Error().Err(err).Str("object", object).Msg("process export")
			continue
		}
		if matched {
			processed++
		} else {
			unmatched++
		}
	}

	if _, err := updateIndex(cfg.DataDir, cfg.Apps, now); err != nil {
		logger.Fatal().Err(err).Msg("update index")
	}

	logger.Info().Int("processed", processed).Int("unmatched", unmatched).Msg("sync complete")
}

// processExport downloads one export, figures out which app it belongs
// to, and writes that app's dated snapshot. Unmatched and empty exports
// are skipped, not failed: one bad file must never sink the run.
func processExport(ctx context.Context, client *bucketClient, object string, exportDate string, cfg Config, now time.Time, opts syncOptions, logger zerolog.Logger) (bool, error) {
	log := logger.With().Str("object", object).Logger()

	suffix := ".csv"
	if strings.HasSuffix(object, ".gz") {
		suffix = ".csv.gz"
	}
	tmp, err := os.CreateTemp("", "export-*"+suffix)
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return false, err
	}
	defer os.Remove(tmpPath)

	if err := client.download(ctx, object, tmpPath); err != nil {
		return false, err
	}

	tbl, err := loadTable(tmpPath)
	if err != nil {
		return false, err
	}

	detected, column := detectApp(tbl)
	app := matchApp(detected, cfg.Apps)
	if app == nil {
		log.Warn().Str("detected", detected).Str("column", column).Msg("no configured app matches; skipping")
		return false, nil
	}
	log.Info().Str("app", app.Slug).Str("detected", detected).Str("column", column).Msg("matched export")

	report, err := analyzeTable(tbl, app.Name, now)
	if errors.Is(err, ErrNoTrialData) {
		log.Info().Str("app", app.Slug).Msg("no trial data in export")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	report.ExportFile = object
	report.ExportDate = exportDate

	outPath := filepath.Join(cfg.DataDir, app.Slug, now.Format("2006-01-02")+".json")
	if err := writeReport(report, outPath); err != nil {
		return false, err
	}
	log.Info().
		Str("app", app.Slug).
		Int("trials", report.Overall.TotalTrials).
		Int("resolved", report.Overall.Resolved).
		Str("path", outPath).
		Msg("snapshot saved")

	if opts.db {
		dbURL := dbURLFromEnv()
		if dbURL == "" {
			return false, errors.New("database URL missing; set TRIAL_AUDIT_DB_URL or DATABASE_URL")
		}
		runID, err := storeReportInDB(report, DBConfig{URL: dbURL, Schema: opts.schema, Tag: opts.tag})
		if err != nil {
			return false, err
		}
		log.Info().Str("run_id", runID).Msg("stored report run in Postgres")
	}

	return true, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
