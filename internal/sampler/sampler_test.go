// internal/sampler/sampler_test.go
package sampler

import (
	"testing"
	"time"

	"github.com/quillcart/priceindex/internal/cascade"
	"github.com/quillcart/priceindex/internal/types"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s) error = %v", name, err)
	}
	return loc
}

func TestDates_DefaultOffsets(t *testing.T) {
	loc := mustLocation(t, "UTC")
	at := time.Date(2024, 3, 15, 14, 30, 0, 0, loc)

	dates := Dates(at, loc, DefaultOffsets)
	want := []string{"2024-03-14", "2024-03-15", "2024-03-16"}
	if len(dates) != len(want) {
		t.Fatalf("Dates() returned %d dates, want %d", len(dates), len(want))
	}
	for i, d := range dates {
		if d.Format(time.DateOnly) != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, d.Format(time.DateOnly), want[i])
		}
		if h, m, s := d.Clock(); h != 0 || m != 0 || s != 0 {
			t.Errorf("dates[%d] not truncated to midnight: %v", i, d)
		}
	}
}

func TestDates_TimezoneTruncation(t *testing.T) {
	// 2024-03-15 02:00 UTC is still 2024-03-14 in Los Angeles.
	la := mustLocation(t, "America/Los_Angeles")
	at := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)

	dates := Dates(at, la, []int{0})
	if got := dates[0].Format(time.DateOnly); got != "2024-03-14" {
		t.Errorf("Dates() in LA = %s, want 2024-03-14", got)
	}
}

func priced(rule int64, price float64, start, end int64, fromDate, toDate *string) cascade.Priced {
	return cascade.Priced{
		Assignment: types.RuleAssignment{
			RuleID:          rule,
			ProductID:       1,
			CustomerGroupID: 1,
			WebsiteID:       1,
			ActivationStart: start,
			ActivationEnd:   end,
			FromDate:        fromDate,
			ToDate:          toDate,
		},
		Price: price,
	}
}

func strPtr(s string) *string { return &s }

func TestSample_MinimumAcrossMatchingPositions(t *testing.T) {
	loc := mustLocation(t, "UTC")
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)
	dates := Dates(at, loc, []int{0})

	groups := map[types.GroupKey][]cascade.Priced{
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 90, 0, 0, nil, nil),
			priced(2, 80, 0, 0, nil, nil),
		},
	}
	entries := Sample(1, groups, dates)
	if len(entries) != 1 {
		t.Fatalf("Sample() = %d entries, want 1", len(entries))
	}
	if entries[0].RulePrice != 80 {
		t.Errorf("RulePrice = %v, want min(90, 80) = 80", entries[0].RulePrice)
	}
}

func TestSample_NonTerminalMinimumWins(t *testing.T) {
	// A to_fixed floor mid-chain can be lower than the chain's terminal value
	// under malformed admin data; the index reports the best price seen.
	loc := mustLocation(t, "UTC")
	dates := Dates(time.Date(2024, 3, 15, 12, 0, 0, 0, loc), loc, []int{0})

	groups := map[types.GroupKey][]cascade.Priced{
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 75, 0, 0, nil, nil),
			priced(2, 82.5, 0, 0, nil, nil),
		},
	}
	entries := Sample(1, groups, dates)
	if entries[0].RulePrice != 75 {
		t.Errorf("RulePrice = %v, want non-terminal minimum 75", entries[0].RulePrice)
	}
}

func TestSample_DateFilteringExcludesInactiveWindows(t *testing.T) {
	loc := mustLocation(t, "UTC")
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)
	dates := Dates(at, loc, []int{-1, 0, 1})

	day := func(offset int) int64 {
		return time.Date(2024, 3, 15, 0, 0, 0, 0, loc).AddDate(0, 0, offset).Unix()
	}

	groups := map[types.GroupKey][]cascade.Priced{
		// Active only from today's midnight onward: no entry for yesterday.
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 50, day(0), 0, nil, nil),
		},
	}
	entries := Sample(1, groups, dates)
	if len(entries) != 2 {
		t.Fatalf("Sample() = %d entries, want 2 (today, tomorrow)", len(entries))
	}
	wantDates := []string{"2024-03-15", "2024-03-16"}
	for i, e := range entries {
		if e.RuleDate != wantDates[i] {
			t.Errorf("entries[%d].RuleDate = %s, want %s", i, e.RuleDate, wantDates[i])
		}
	}
}

func TestSample_NoMatchingWindowEmitsNothing(t *testing.T) {
	loc := mustLocation(t, "UTC")
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)
	dates := Dates(at, loc, DefaultOffsets)

	// Window ended a month before the sampled dates.
	past := time.Date(2024, 2, 1, 0, 0, 0, 0, loc)
	groups := map[types.GroupKey][]cascade.Priced{
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 50, past.AddDate(0, -1, 0).Unix(), past.Unix(), nil, nil),
		},
	}
	if entries := Sample(1, groups, dates); len(entries) != 0 {
		t.Errorf("Sample() = %d entries, want 0", len(entries))
	}
}

func TestSample_NeverEmitsOutsideSampledDates(t *testing.T) {
	loc := mustLocation(t, "UTC")
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)
	dates := Dates(at, loc, DefaultOffsets)

	// Open-ended window active for months: still only three dates emitted.
	groups := map[types.GroupKey][]cascade.Priced{
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 50, time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Unix(), 0, nil, nil),
		},
	}
	entries := Sample(1, groups, dates)
	if len(entries) != 3 {
		t.Fatalf("Sample() = %d entries, want 3", len(entries))
	}
	allowed := map[string]bool{"2024-03-14": true, "2024-03-15": true, "2024-03-16": true}
	for _, e := range entries {
		if !allowed[e.RuleDate] {
			t.Errorf("entry emitted for %s, outside the sampled dates", e.RuleDate)
		}
	}
}

func TestSample_ValidityBoundsAggregation(t *testing.T) {
	loc := mustLocation(t, "UTC")
	dates := Dates(time.Date(2024, 3, 15, 12, 0, 0, 0, loc), loc, []int{0})

	groups := map[types.GroupKey][]cascade.Priced{
		{ProductID: 1, CustomerGroupID: 1}: {
			priced(1, 90, 0, 0, strPtr("2024-03-01"), strPtr("2024-04-30")),
			priced(2, 80, 0, 0, strPtr("2024-03-10"), nil),
			priced(3, 85, 0, 0, nil, strPtr("2024-03-20")),
		},
	}
	entries := Sample(1, groups, dates)
	e := entries[0]
	if e.LatestStartDate == nil || *e.LatestStartDate != "2024-03-10" {
		t.Errorf("LatestStartDate = %v, want 2024-03-10", e.LatestStartDate)
	}
	if e.EarliestEndDate == nil || *e.EarliestEndDate != "2024-03-20" {
		t.Errorf("EarliestEndDate = %v, want 2024-03-20", e.EarliestEndDate)
	}
}

func TestLiveRules_ExactInstantNoSlack(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	records := []types.RuleAssignment{
		// Covers at.
		{RuleID: 1, CustomerGroupID: 1, ActivationStart: at.Add(-time.Hour).Unix(), ActivationEnd: 0},
		// Starts tomorrow: within sampler slack but not live right now.
		{RuleID: 2, CustomerGroupID: 1, ActivationStart: at.Add(12 * time.Hour).Unix(), ActivationEnd: 0},
		// Ended an hour ago.
		{RuleID: 3, CustomerGroupID: 1, ActivationStart: 0, ActivationEnd: at.Add(-time.Hour).Unix()},
	}
	live := LiveRules(7, records, at)
	if len(live) != 1 {
		t.Fatalf("LiveRules() = %d rules, want 1", len(live))
	}
	if live[0].RuleID != 1 || live[0].WebsiteID != 7 {
		t.Errorf("LiveRules()[0] = %+v, want rule 1 on website 7", live[0])
	}
}

func TestLiveRules_DistinctTriples(t *testing.T) {
	at := time.Unix(1000000, 0)
	records := []types.RuleAssignment{
		{RuleID: 1, CustomerGroupID: 1, ProductID: 10, ActivationStart: 0, ActivationEnd: 0},
		{RuleID: 1, CustomerGroupID: 1, ProductID: 20, ActivationStart: 0, ActivationEnd: 0},
		{RuleID: 1, CustomerGroupID: 2, ProductID: 10, ActivationStart: 0, ActivationEnd: 0},
	}
	live := LiveRules(1, records, at)
	if len(live) != 2 {
		t.Errorf("LiveRules() = %d triples, want 2 distinct", len(live))
	}
}
