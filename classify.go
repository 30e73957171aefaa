package main

import (
	"strings"
	"time"
)

// Outcome is the final word on a trial. Every classified user gets
// exactly one.
type Outcome string

const (
	OutcomeConverted    Outcome = "Converted"
	OutcomeCancelled    Outcome = "Cancelled"
	OutcomeBillingIssue Outcome = "Billing Issue"
	OutcomeStillInTrial Outcome = "Still in Trial"
)

// rule is one step of a priority-ordered chain. Chains are evaluated
// top-down and the first matching rule decides, so the slice order is
// the whole contract.
type rule struct {
	name    string
	matches func(TrialRecord) bool
	outcome Outcome
}

// Classifier assigns outcomes by walking its rule chain.
type Classifier struct {
	rules    []rule
	fallback Outcome
}

func (c Classifier) Classify(rec TrialRecord) Outcome {
	for _, r := range c.rules {
		if r.matches(rec) {
			return r.outcome
		}
	}
	return c.fallback
}

// snapshotClassifier covers exports with one row per user and an
// explicit status token. An active trial always wins, even when the
// user has already spent money.
func snapshotClassifier() Classifier {
	return Classifier{
		rules: []rule{
			{
				name: "active_trial",
				matches: func(rec TrialRecord) bool {
					return strings.EqualFold(rec.StatusFlag, "free_trial")
				},
				outcome: OutcomeStillInTrial,
			},
			{
				name: "paid",
				matches: func(rec TrialRecord) bool {
					return rec.TotalSpent > 0
				},
				outcome: OutcomeConverted,
			},
			{
				name: "billing_trouble",
				matches: func(rec TrialRecord) bool {
					return strings.Contains(strings.ToLower(rec.StatusFlag), "billing_issue") || rec.BillingIssue
				},
				outcome: OutcomeBillingIssue,
			},
		},
		fallback: OutcomeCancelled,
	}
}

// transactionClassifier derives the outcome from payment evidence and
// trial bounds. now is injected by the caller so a run is reproducible;
// nothing in here reads the clock.
func transactionClassifier(now time.Time) Classifier {
	return Classifier{
		rules: []rule{
			{
				name: "paid_or_marked_converted",
				matches: func(rec TrialRecord) bool {
					return rec.TotalSpent > 0 || rec.ConversionMarker
				},
				outcome: OutcomeConverted,
			},
			{
				name: "trial_not_over",
				matches: func(rec TrialRecord) bool {
					return !rec.TrialEnd.IsZero() && rec.TrialEnd.After(now)
				},
				outcome: OutcomeStillInTrial,
			},
			{
				name: "opted_out",
				matches: func(rec TrialRecord) bool {
					return rec.AutoRenew == autoRenewOff
				},
				outcome: OutcomeCancelled,
			},
			{
				// renewal was armed but never produced a payment
				name: "renewal_failed",
				matches: func(rec TrialRecord) bool {
					return rec.AutoRenew == autoRenewOn
				},
				outcome: OutcomeBillingIssue,
			},
		},
		fallback: OutcomeCancelled,
	}
}

// ClassifiedUser pairs a record with its outcome. The pair is what the
// aggregator and every breakdown consume.
type ClassifiedUser struct {
	Record  TrialRecord
	Outcome Outcome
}

func classifyAll(c Classifier, records []TrialRecord) []ClassifiedUser {
	users := make([]ClassifiedUser, 0, len(records))
	for _, rec := range records {
		users = append(users, ClassifiedUser{Record: rec, Outcome: c.Classify(rec)})
	}
	return users
}
