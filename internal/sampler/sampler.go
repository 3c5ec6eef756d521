// Package sampler turns cascaded prices into index entries for a narrow set
// of calendar dates around the reindex instant.
//
// Rule activation windows are absolute instants, but storefront lookups query
// by calendar date in the store's timezone. The compiler re-runs on a fixed
// schedule, so it only needs to be correct for dates close to "now" plus
// slack for timezone skew at day boundaries; the default sampled set is
// {T-1day, T, T+1day}. The offsets are the one tunable a different refresh
// cadence would change.
package sampler

import (
	"time"

	"github.com/quillcart/priceindex/internal/cascade"
	"github.com/quillcart/priceindex/internal/types"
)

// DefaultOffsets is the shipped sampled-date set: yesterday, today, tomorrow.
var DefaultOffsets = []int{-1, 0, 1}

// Dates enumerates candidate dates: at truncated to midnight in loc, shifted
// by each offset in days.
func Dates(at time.Time, loc *time.Location, offsets []int) []time.Time {
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	dates := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		dates = append(dates, midnight.AddDate(0, 0, off))
	}
	return dates
}

// Sample selects, per (product, customer group, date), the minimum cascaded
// price among chain positions whose activation window covers the date, and
// emits one IndexEntry per non-empty selection.
//
// Stop-chain truncation has already happened inside the cascade fold; date
// filtering applies per position afterward. The minimum can therefore land on
// a non-terminal position when a later rule raises the price again - the
// engine reports the best price seen, not strictly the last one.
func Sample(websiteID int64, groups map[types.GroupKey][]cascade.Priced, dates []time.Time) []types.IndexEntry {
	var entries []types.IndexEntry

	for _, key := range cascade.SortedKeys(groups) {
		chain := groups[key]
		for _, d := range dates {
			entry, ok := sampleDate(websiteID, key, chain, d)
			if ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries
}

// sampleDate computes one key/date entry, or ok=false when no chain position
// is active on that date. Absence means "no promotional rule is active";
// downstream consumers fall back to the plain price.
func sampleDate(websiteID int64, key types.GroupKey, chain []cascade.Priced, d time.Time) (types.IndexEntry, bool) {
	ts := d.Unix()

	var (
		found       bool
		minPrice    float64
		latestStart *string
		earliestEnd *string
	)
	for _, pos := range chain {
		if !pos.Assignment.Covers(ts) {
			continue
		}
		if !found || pos.Price < minPrice {
			minPrice = pos.Price
		}
		found = true

		// Validity bounds aggregate across the matching subset: latest start,
		// earliest non-open end. ISO dates compare lexicographically.
		if fd := pos.Assignment.FromDate; fd != nil {
			if latestStart == nil || *fd > *latestStart {
				latestStart = fd
			}
		}
		if td := pos.Assignment.ToDate; td != nil {
			if earliestEnd == nil || *td < *earliestEnd {
				earliestEnd = td
			}
		}
	}
	if !found {
		return types.IndexEntry{}, false
	}

	return types.IndexEntry{
		ProductID:       key.ProductID,
		CustomerGroupID: key.CustomerGroupID,
		WebsiteID:       websiteID,
		RuleDate:        d.Format(time.DateOnly),
		RulePrice:       minPrice,
		LatestStartDate: latestStart,
		EarliestEndDate: earliestEnd,
	}, true
}

// LiveRules returns the distinct (rule, customer group, website) triples
// whose activation window covers the reindex instant exactly. No date slack
// here: this relation answers "is this rule live right now" for cache and
// admin UI, not "is it live on some nearby date."
func LiveRules(websiteID int64, records []types.RuleAssignment, at time.Time) []types.LiveRule {
	ts := at.Unix()

	seen := make(map[types.LiveRule]struct{})
	var live []types.LiveRule
	for _, rec := range records {
		if !rec.Covers(ts) {
			continue
		}
		triple := types.LiveRule{
			RuleID:          rec.RuleID,
			CustomerGroupID: rec.CustomerGroupID,
			WebsiteID:       websiteID,
		}
		if _, ok := seen[triple]; ok {
			continue
		}
		seen[triple] = struct{}{}
		live = append(live, triple)
	}
	return live
}
