package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SchemaError reports a dataset-level structural problem: a column
// class the classifier cannot work without. Nothing gets classified
// when one of these comes back; the caller decides whether to abort or
// skip the export.
type SchemaError struct {
	Missing string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("export is missing a %s column", e.Missing)
}

// ErrNoTrialData signals an export that parsed fine but contains no
// trial users. Callers treat it as "nothing to report", not a failure.
var ErrNoTrialData = errors.New("no trial users found")

const (
	dataSourceSnapshot    = "snapshot"
	dataSourceTransaction = "transaction_export"
)

// autoRenewState is tri-state on purpose: many exports simply do not
// say whether the user left auto-renew on.
type autoRenewState int

const (
	autoRenewUnknown autoRenewState = iota
	autoRenewOn
	autoRenewOff
)

// TrialRecord is the canonical per-user view both classifier variants
// consume. Normalization guarantees exactly one record per user id, no
// matter how many raw rows the user appeared in.
type TrialRecord struct {
	UserID           string
	TrialStart       time.Time
	TrialEnd         time.Time
	TotalSpent       float64
	StatusFlag       string
	BillingIssue     bool
	ProductID        string
	AutoRenew        autoRenewState
	ConversionMarker bool
}

var userIDColumns = []string{
	"rc_original_app_user_id",
	"original_app_user_id",
	"app_user_id",
	"user_id",
	"customer_id",
}

var priceColumns = []string{
	"price_in_usd",
	"price_usd",
	"price",
	"revenue_usd",
	"revenue",
}

// detectDataSource picks the classification strategy from the columns
// actually present: transaction exports carry a per-row trial flag,
// customer snapshots do not.
func detectDataSource(tbl *Table) string {
	if tbl.hasColumn("is_trial_period") {
		return dataSourceTransaction
	}
	return dataSourceSnapshot
}

// normalizeSnapshot turns a one-row-per-user customer export into trial
// records. When the export carries a trial-start column, rows without a
// trial start never entered a trial and are dropped; duplicated user
// ids keep the last row seen.
func normalizeSnapshot(tbl *Table) ([]TrialRecord, error) {
	idIdx, ok := tbl.column(userIDColumns...)
	if !ok {
		return nil, &SchemaError{Missing: "user identifier"}
	}
	startIdx, hasStart := tbl.column("trial_start_at", "trial_start")
	endIdx, _ := tbl.column("trial_end_at", "trial_end")
	spentIdx, _ := tbl.column("total_spent", "total_revenue")
	statusIdx, _ := tbl.column("status")
	billingIdx, _ := tbl.column("most_recent_billing_issues_at", "billing_issues_detected_at")
	productIdx, _ := tbl.column("latest_product", "product_identifier", "product_id")

	records := []TrialRecord{}
	byUser := map[string]int{}

	for i := 0; i < tbl.Len(); i++ {
		userID := tbl.value(i, idIdx)
		if userID == "" {
			continue
		}
		start := parseTimestamp(tbl.value(i, startIdx))
		if hasStart && start.IsZero() {
			continue
		}
		rec := TrialRecord{
			UserID:       userID,
			TrialStart:   start,
			TrialEnd:     parseTimestamp(tbl.value(i, endIdx)),
			TotalSpent:   parseAmount(tbl.value(i, spentIdx)),
			StatusFlag:   tbl.value(i, statusIdx),
			BillingIssue: !parseTimestamp(tbl.value(i, billingIdx)).IsZero(),
			ProductID:    tbl.value(i, productIdx),
			AutoRenew:    autoRenewUnknown,
		}
		if pos, seen := byUser[userID]; seen {
			records[pos] = rec
		} else {
			byUser[userID] = len(records)
			records = append(records, rec)
		}
	}
	return records, nil
}

// normalizeTransactions collapses a per-billing-event export into one
// record per user. Trial bounds come from the most recent trial-flagged
// row (start time descending, original order last-wins on ties); paid
// evidence comes from scanning every remaining row the user has.
// Sandbox transactions are discarded before any of that happens.
func normalizeTransactions(tbl *Table) ([]TrialRecord, error) {
	idIdx, ok := tbl.column(userIDColumns...)
	if !ok {
		return nil, &SchemaError{Missing: "user identifier"}
	}
	priceIdx, ok := tbl.column(priceColumns...)
	if !ok {
		return nil, &SchemaError{Missing: "price"}
	}
	trialIdx, _ := tbl.column("is_trial_period")
	renewIdx, hasRenew := tbl.column("is_auto_renewable", "auto_renew_status")
	sandboxIdx, _ := tbl.column("is_sandbox")
	convIdx, _ := tbl.column("is_trial_conversion")
	startIdx, _ := tbl.column("start_time", "purchase_date", "purchased_at")
	endIdx, _ := tbl.column("end_time", "expiration_date", "expires_date")
	productIdx, _ := tbl.column("product_identifier", "product_id")

	order := []string{}
	byUser := map[string][]int{}
	for i := 0; i < tbl.Len(); i++ {
		if parseBool(tbl.value(i, sandboxIdx)) {
			continue
		}
		userID := tbl.value(i, idIdx)
		if userID == "" {
			continue
		}
		if _, seen := byUser[userID]; !seen {
			order = append(order, userID)
		}
		byUser[userID] = append(byUser[userID], i)
	}

	records := make([]TrialRecord, 0, len(order))
	for _, userID := range order {
		rows := byUser[userID]

		trialRow := -1
		var trialStart time.Time
		for _, i := range rows {
			if !parseBool(tbl.value(i, trialIdx)) {
				continue
			}
			start := parseTimestamp(tbl.value(i, startIdx))
			if trialRow < 0 || !start.Before(trialStart) {
				trialRow = i
				trialStart = start
			}
		}
		if trialRow < 0 {
			// user never entered a trial; nothing to classify
			continue
		}

		rec := TrialRecord{
			UserID:     userID,
			TrialStart: trialStart,
			TrialEnd:   parseTimestamp(tbl.value(trialRow, endIdx)),
			ProductID:  tbl.value(trialRow, productIdx),
			AutoRenew:  autoRenewUnknown,
		}
		if hasRenew {
			if cell := tbl.value(trialRow, renewIdx); cell != "" {
				if parseBool(cell) {
					rec.AutoRenew = autoRenewOn
				} else {
					rec.AutoRenew = autoRenewOff
				}
			}
		}

		for _, i := range rows {
			if parseBool(tbl.value(i, convIdx)) {
				rec.ConversionMarker = true
			}
			if parseBool(tbl.value(i, trialIdx)) {
				continue
			}
			if price := parseAmount(tbl.value(i, priceIdx)); price > 0 {
				rec.TotalSpent += price
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

var timestampLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// parseDate parses a date/time string against the known layouts.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

// parseTimestamp accepts epoch milliseconds (the export default) and
// the usual date layouts. Anything unparsable is treated as absent,
// never as an error.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		if millis <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(millis).UTC()
	}
	// epoch columns sometimes round-trip through floats
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if f <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(int64(f)).UTC()
	}
	if parsed, err := parseDate(value); err == nil {
		return parsed.UTC()
	}
	return time.Time{}
}

// parseAmount reads a spend/price cell. Missing and unparsable cells
// default to 0; negative amounts are clamped to 0 rather than trusted.
func parseAmount(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

// parseBool treats "true", "1" and "yes" (any case) as true and
// everything else, including absence, as false.
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func dateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}
