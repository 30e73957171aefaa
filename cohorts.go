package main

import (
	"sort"
	"time"
)

// WeeklyCohort is the rate summary for everyone whose trial started in
// the same ISO week.
type WeeklyCohort struct {
	WeekStart string `json:"week_start"`
	RateSummary
}

// ProductCohort is the rate summary for one product/SKU.
type ProductCohort struct {
	ProductID string `json:"product_id"`
	RateSummary
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	t = dateOnly(t.UTC())
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// weeklyBreakdown partitions users by the Monday of their trial-start
// week, ascending. Users with an unknown trial start only show up in
// the overall summary.
func weeklyBreakdown(users []ClassifiedUser) []WeeklyCohort {
	buckets := map[string][]ClassifiedUser{}
	for _, user := range users {
		if user.Record.TrialStart.IsZero() {
			continue
		}
		key := weekStart(user.Record.TrialStart).Format("2006-01-02")
		buckets[key] = append(buckets[key], user)
	}

	weeks := make([]string, 0, len(buckets))
	for week := range buckets {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)

	cohorts := make([]WeeklyCohort, 0, len(weeks))
	for _, week := range weeks {
		cohorts = append(cohorts, WeeklyCohort{
			WeekStart:   week,
			RateSummary: computeRates(buckets[week]),
		})
	}
	return cohorts
}

// productBreakdown partitions users by product id, most resolved trials
// first. Ties keep first-encountered order; users without a product are
// left out.
func productBreakdown(users []ClassifiedUser) []ProductCohort {
	buckets := map[string][]ClassifiedUser{}
	order := []string{}
	for _, user := range users {
		product := user.Record.ProductID
		if product == "" {
			continue
		}
		if _, seen := buckets[product]; !seen {
			order = append(order, product)
		}
		buckets[product] = append(buckets[product], user)
	}

	cohorts := make([]ProductCohort, 0, len(order))
	for _, product := range order {
		cohorts = append(cohorts, ProductCohort{
			ProductID:   product,
			RateSummary: computeRates(buckets[product]),
		})
	}
	sort.SliceStable(cohorts, func(i, j int) bool {
		return cohorts[i].Resolved > cohorts[j].Resolved
	})
	return cohorts
}
