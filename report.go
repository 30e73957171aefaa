package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Report is the unit of output: one (app, export) pair, immutable once
// assembled, persisted as a dated JSON snapshot.
type Report struct {
	Date          string          `json:"date"`
	App           string          `json:"app"`
	GeneratedAt   string          `json:"generated_at"`
	DataSource    string          `json:"data_source,omitempty"`
	ExportFile    string          `json:"export_file,omitempty"`
	ExportDate    string          `json:"export_date,omitempty"`
	Overall       RateSummary     `json:"overall"`
	WeeklyCohorts []WeeklyCohort  `json:"weekly_cohorts"`
	Products      []ProductCohort `json:"products"`
}

// analyzeTable runs the whole pipeline over one export: pick the
// strategy from the columns present, normalize, classify, aggregate,
// break down, assemble. now is the single evaluation time for the run.
func analyzeTable(tbl *Table, appName string, now time.Time) (Report, error) {
	source := detectDataSource(tbl)

	var (
		records    []TrialRecord
		classifier Classifier
		err        error
	)
	switch source {
	case dataSourceTransaction:
		records, err = normalizeTransactions(tbl)
		classifier = transactionClassifier(now)
	default:
		records, err = normalizeSnapshot(tbl)
		classifier = snapshotClassifier()
	}
	if err != nil {
		return Report{}, err
	}
	if len(records) == 0 {
		return Report{}, ErrNoTrialData
	}

	if appName == "" {
		appName = fallbackAppName(tbl)
	}

	users := classifyAll(classifier, records)
	return assembleReport(appName, source, now, computeRates(users), weeklyBreakdown(users), productBreakdown(users)), nil
}

// assembleReport is pure composition; all computation happened in the
// classifier and breakdown passes. Nil cohort slices become empty ones
// so the JSON always carries arrays.
func assembleReport(app string, source string, now time.Time, overall RateSummary, weeks []WeeklyCohort, products []ProductCohort) Report {
	if weeks == nil {
		weeks = []WeeklyCohort{}
	}
	if products == nil {
		products = []ProductCohort{}
	}
	now = now.UTC()
	return Report{
		Date:          now.Format("2006-01-02"),
		App:           app,
		GeneratedAt:   now.Format(time.RFC3339),
		DataSource:    source,
		Overall:       overall,
		WeeklyCohorts: weeks,
		Products:      products,
	}
}

func writeReport(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func printReport(report Report, inputPath string) {
	fmt.Println("Trial Exit Analysis")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("Input: %s\n", filepath.Base(inputPath))
	fmt.Printf("App: %s\n", report.App)
	fmt.Printf("Date: %s (source: %s)\n", report.Date, report.DataSource)

	o := report.Overall
	fmt.Printf("Trials: %d | Resolved: %d | In trial: %d\n", o.TotalTrials, o.Resolved, o.InTrial)
	if o.Resolved > 0 {
		fmt.Printf("Converted:  %.1f%% (%d)\n", *o.ConversionRate*100, o.Converted)
		fmt.Printf("Cancelled:  %.1f%% (%d)\n", *o.CancelRate*100, o.Cancelled)
		fmt.Printf("Billing:    %.1f%% (%d)\n", *o.BillingRate*100, o.BillingIssue)
	}

	if len(report.WeeklyCohorts) > 0 {
		fmt.Println("\nWeekly cohorts")
		fmt.Println(strings.Repeat("-", 38))
		for _, cohort := range report.WeeklyCohorts {
			fmt.Printf("%s | trials %d | resolved %d | converted %d | cancelled %d | billing %d\n",
				cohort.WeekStart,
				cohort.TotalTrials,
				cohort.Resolved,
				cohort.Converted,
				cohort.Cancelled,
				cohort.BillingIssue,
			)
		}
	}

	if len(report.Products) > 0 {
		fmt.Println("\nProducts")
		fmt.Println(strings.Repeat("-", 38))
		for _, cohort := range report.Products {
			fmt.Printf("%s | trials %d | resolved %d | converted %d | cancelled %d | billing %d\n",
				cohort.ProductID,
				cohort.TotalTrials,
				cohort.Resolved,
				cohort.Converted,
				cohort.Cancelled,
				cohort.BillingIssue,
			)
		}
	}
}
