package main

import "math"

// RateSummary is the tally for one group of classified users. Rates are
// relative to resolved trials and stay nil until at least one trial has
// resolved, which keeps a divide-by-zero from ever being a question.
type RateSummary struct {
	TotalTrials    int      `json:"total_trials"`
	Resolved       int      `json:"resolved"`
	InTrial        int      `json:"in_trial"`
	Converted      int      `json:"converted"`
	Cancelled      int      `json:"cancelled"`
	BillingIssue   int      `json:"billing_issue"`
	ConversionRate *float64 `json:"conversion_rate"`
	CancelRate     *float64 `json:"cancel_rate"`
	BillingRate    *float64 `json:"billing_rate"`
}

// computeRates tallies one group. Pure: same input, same output, input
// never touched.
func computeRates(users []ClassifiedUser) RateSummary {
	summary := RateSummary{TotalTrials: len(users)}
	for _, user := range users {
		switch user.Outcome {
		case OutcomeStillInTrial:
			summary.InTrial++
		case OutcomeConverted:
			summary.Converted++
		case OutcomeCancelled:
			summary.Cancelled++
		case OutcomeBillingIssue:
			summary.BillingIssue++
		}
	}
	summary.Resolved = summary.Converted + summary.Cancelled + summary.BillingIssue
	if summary.Resolved == 0 {
		return summary
	}
	summary.ConversionRate = rate(summary.Converted, summary.Resolved)
	summary.CancelRate = rate(summary.Cancelled, summary.Resolved)
	summary.BillingRate = rate(summary.BillingIssue, summary.Resolved)
	return summary
}

func rate(count int, resolved int) *float64 {
	value := math.Round(float64(count)/float64(resolved)*10000) / 10000
	return &value
}
