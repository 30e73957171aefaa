package main

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestAnalyzeSnapshotScenario(t *testing.T) {
	csvData := "app_user_id,status,total_spent\n" +
		"u1,free_trial,0\n" +
		"u2,cancelled,0\n" +
		"u3,active,25\n" +
		"u4,billing_issue,0\n"
	tbl := tableFromCSV(t, csvData)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report, err := analyzeTable(tbl, "Demo App", now)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.DataSource != dataSourceSnapshot {
		t.Fatalf("expected snapshot source, got %s", report.DataSource)
	}
	if report.App != "Demo App" || report.Date != "2026-03-01" {
		t.Fatalf("metadata wrong: %+v", report)
	}
	if report.GeneratedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("generated_at: got %s", report.GeneratedAt)
	}

	o := report.Overall
	if o.TotalTrials != 4 || o.Resolved != 3 || o.InTrial != 1 {
		t.Fatalf("unexpected overall counts: %+v", o)
	}
	if o.Converted != 1 || o.Cancelled != 1 || o.BillingIssue != 1 {
		t.Fatalf("unexpected outcome counts: %+v", o)
	}
	for name, got := range map[string]*float64{
		"conversion_rate": o.ConversionRate,
		"cancel_rate":     o.CancelRate,
		"billing_rate":    o.BillingRate,
	} {
		if got == nil || !floatEqual(*got, 0.3333) {
			t.Fatalf("%s: expected 0.3333, got %v", name, got)
		}
	}
}

func TestAnalyzeTransactionScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	build := func(autoRenew string) *Table {
		return tableFromCSV(t, "app_user_id,product_identifier,price,is_trial_period,is_auto_renewable,start_time,end_time\n"+
			"u1,sku.monthly,0,true,"+autoRenew+",2026-02-01,2026-02-08\n")
	}

	report, err := analyzeTable(build("true"), "Demo App", now)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.DataSource != dataSourceTransaction {
		t.Fatalf("expected transaction source, got %s", report.DataSource)
	}
	if report.Overall.BillingIssue != 1 {
		t.Fatalf("expired trial with auto-renew on should be a billing issue: %+v", report.Overall)
	}

	report, err = analyzeTable(build("false"), "Demo App", now)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.Overall.Cancelled != 1 {
		t.Fatalf("expired trial with auto-renew off should be cancelled: %+v", report.Overall)
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,trial_start_at,status,total_spent\nu1,,active,5\n")
	_, err := analyzeTable(tbl, "Demo App", time.Now().UTC())
	if !errors.Is(err, ErrNoTrialData) {
		t.Fatalf("expected ErrNoTrialData, got %v", err)
	}
}

func TestAnalyzeUsesDetectedAppName(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,project_name,status,total_spent\nu1,Girl Talk,active,5\n")
	report, err := analyzeTable(tbl, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.App != "Girl Talk" {
		t.Fatalf("expected detected app name, got %q", report.App)
	}
}

func TestReportJSONNullRates(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	users := classified(OutcomeStillInTrial)
	report := assembleReport("Demo App", dataSourceSnapshot, now, computeRates(users), nil, nil)

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	overall, ok := decoded["overall"].(map[string]any)
	if !ok {
		t.Fatalf("overall missing: %s", data)
	}
	for _, key := range []string{"conversion_rate", "cancel_rate", "billing_rate"} {
		value, present := overall[key]
		if !present {
			t.Fatalf("%s key must be present", key)
		}
		if value != nil {
			t.Fatalf("%s must be null when nothing resolved, got %v", key, value)
		}
	}
	if _, ok := decoded["weekly_cohorts"].([]any); !ok {
		t.Fatalf("weekly_cohorts must serialize as an array: %s", data)
	}
	if _, ok := decoded["products"].([]any); !ok {
		t.Fatalf("products must serialize as an array: %s", data)
	}
}

func TestWeeklyCohortJSONShape(t *testing.T) {
	start := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	users := []ClassifiedUser{
		{Record: TrialRecord{UserID: "a", TrialStart: start}, Outcome: OutcomeConverted},
	}
	cohorts := weeklyBreakdown(users)

	data, err := json.Marshal(cohorts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 cohort, got %d", len(decoded))
	}
	if decoded[0]["week_start"] != "2026-02-09" {
		t.Fatalf("week_start wrong: %v", decoded[0]["week_start"])
	}
	// rate summary fields are inlined, not nested
	if _, ok := decoded[0]["total_trials"]; !ok {
		t.Fatalf("total_trials should be a top-level cohort field: %s", data)
	}
}
