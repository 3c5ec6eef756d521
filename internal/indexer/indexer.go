// Package indexer orchestrates the price-rule index pipeline: load rule
// assignments, resolve base prices, run the cascade, sample dates, and
// atomically replace each website's index rows.
//
// The pipeline is a batch, single-pass compiler invoked once per reindex
// trigger. Websites are fully independent inputs and outputs: every
// website's pass is a self-contained runWebsite call, so a caller could fan
// them out one per worker; the shipped Recompute runs them in sequence.
//
// Failure taxonomy: input-source failures (assignment source or price
// provider) abort the whole run before anything is materialized; storage
// failures roll back only the affected website's replacement and are
// reported in its WebsiteResult; data-quality problems skip the offending
// record with a warning.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quillcart/priceindex/internal/baseprice"
	"github.com/quillcart/priceindex/internal/cascade"
	"github.com/quillcart/priceindex/internal/core/config"
	"github.com/quillcart/priceindex/internal/core/logging"
	"github.com/quillcart/priceindex/internal/sampler"
	"github.com/quillcart/priceindex/internal/store"
	"github.com/quillcart/priceindex/internal/types"
)

// Indexer wires the pipeline stages together.
type Indexer struct {
	store    *store.Store
	resolver *baseprice.Resolver
	notifier Notifier
	cfg      *config.Config
	log      *logging.Logger
}

// New creates an indexer with its collaborators.
func New(st *store.Store, resolver *baseprice.Resolver, notifier Notifier, cfg *config.Config, log *logging.Logger) (*Indexer, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("log cannot be nil")
	}
	return &Indexer{store: st, resolver: resolver, notifier: notifier, cfg: cfg, log: log}, nil
}

// computed is one website's pipeline output, ready to materialize.
type computed struct {
	website  types.Website
	entries  []types.IndexEntry
	live     []types.LiveRule
	warnings []types.Warning
}

// Recompute rebuilds the index for the given websites (all websites when
// websiteIDs is empty) as of the reference instant.
//
// Compute and materialize are separate phases: every website's input is
// loaded and computed before the first row is written, so a broken input
// source aborts the run with no website touched. Materialization failures
// are per-website and land in the result instead of the returned error.
func (ix *Indexer) Recompute(ctx context.Context, at time.Time, websiteIDs []int64) (*types.RunResult, error) {
	// The UUIDv7 run id embeds its creation instant; StartedAt is derived
	// from it so logs and results agree on the run's timestamp.
	runID := types.NewRunID()
	result := &types.RunResult{
		RunID:     runID,
		StartedAt: types.RunIDTime(runID).UTC(),
	}
	log := ix.log.With("run_id", result.RunID)
	log.Info("reindex started", "at", at.UTC().Format(time.RFC3339))

	websites, err := ix.store.Websites(ctx, websiteIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: loading websites: %v", types.ErrSourceUnavailable, err)
	}

	// Compute phase. Any failure here is an input-source failure and nothing
	// has been materialized yet.
	plans := make([]*computed, 0, len(websites))
	for _, website := range websites {
		plan, err := ix.computeWebsite(ctx, website, at)
		if err != nil {
			return nil, fmt.Errorf("computing website %d: %w", website.ID, err)
		}
		plans = append(plans, plan)
	}

	// Materialize phase, one website per transaction.
	for _, plan := range plans {
		result.Websites = append(result.Websites, ix.materializeWebsite(ctx, log, plan))
	}

	log.Info("reindex finished",
		"websites", len(result.Websites),
		"failed", len(result.FailedWebsites()))
	return result, nil
}

// computeWebsite runs the read-only stages for one website: assignments,
// base prices, cascade, sampling, live-rule selection.
func (ix *Indexer) computeWebsite(ctx context.Context, website types.Website, at time.Time) (*computed, error) {
	records, err := ix.store.Assignments(ctx, website.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading assignments: %v", types.ErrSourceUnavailable, err)
	}

	valid, warnings := filterRecords(website.ID, records)

	keys := groupKeys(valid)
	bases, priceWarnings, err := ix.resolver.Resolve(ctx, website, keys)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, priceWarnings...)

	groups := cascade.Groups(valid, bases)

	loc, err := time.LoadLocation(website.Timezone)
	if err != nil {
		// Malformed website config degrades to the job default rather than
		// dropping the website from the run.
		warnings = append(warnings, types.Warning{
			WebsiteID: website.ID,
			Reason:    fmt.Sprintf("%v: %q, using %s", types.ErrUnknownTimezone, website.Timezone, ix.cfg.DefaultTimezone),
		})
		loc, err = time.LoadLocation(ix.cfg.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("loading default timezone: %w", err)
		}
	}

	dates := sampler.Dates(at, loc, ix.cfg.SampleOffsets)
	entries := sampler.Sample(website.ID, groups, dates)
	for i := range entries {
		entries[i].RulePrice = roundPrice(entries[i].RulePrice)
	}

	return &computed{
		website:  website,
		entries:  entries,
		live:     sampler.LiveRules(website.ID, valid, at),
		warnings: warnings,
	}, nil
}

// materializeWebsite replaces one website's index and publishes the change
// set. Storage failures are captured in the result; the run continues.
func (ix *Indexer) materializeWebsite(ctx context.Context, log *logging.Logger, plan *computed) types.WebsiteResult {
	start := time.Now()
	res := types.WebsiteResult{
		WebsiteID: plan.website.ID,
		Entries:   len(plan.entries),
		LiveRules: len(plan.live),
		Warnings:  plan.warnings,
	}
	for _, w := range plan.warnings {
		log.Warn("assignment skipped", "website_id", w.WebsiteID, "product_id", w.ProductID, "rule_id", w.RuleID, "reason", w.Reason)
	}

	prior, err := ix.store.ReplaceIndex(ctx, plan.website.ID, plan.entries, plan.live, ix.cfg.BatchSize)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("website materialization rolled back", "website_id", plan.website.ID, "error", err)
		return res
	}

	res.ChangedProducts = diffProducts(prior, plan.entries)
	if err := ix.notifier.PublishPriceChanges(ctx, plan.website.ID, res.ChangedProducts); err != nil {
		// The index itself is committed; a lost invalidation event is a
		// warning, not a website failure.
		res.Warnings = append(res.Warnings, types.Warning{
			WebsiteID: plan.website.ID,
			Reason:    fmt.Sprintf("publish price changes: %v", err),
		})
		log.Warn("failed to publish price changes", "website_id", plan.website.ID, "error", err)
	}

	res.Duration = time.Since(start)
	log.Info("website materialized",
		"website_id", plan.website.ID,
		"entries", res.Entries,
		"live_rules", res.LiveRules,
		"changed_products", len(res.ChangedProducts),
		"duration", res.Duration)
	return res
}

// filterRecords drops malformed assignments (unknown operator, negative
// amount) with one warning each. Data-quality problems never abort a run.
func filterRecords(websiteID int64, records []types.RuleAssignment) ([]types.RuleAssignment, []types.Warning) {
	valid := make([]types.RuleAssignment, 0, len(records))
	var warnings []types.Warning
	for _, rec := range records {
		if _, err := types.ParseOperator(rec.ActionOperator); err != nil {
			warnings = append(warnings, types.Warning{
				WebsiteID: websiteID,
				ProductID: rec.ProductID,
				RuleID:    rec.RuleID,
				Reason:    fmt.Sprintf("%v: %q", err, rec.ActionOperator),
			})
			continue
		}
		if rec.ActionAmount < 0 {
			warnings = append(warnings, types.Warning{
				WebsiteID: websiteID,
				ProductID: rec.ProductID,
				RuleID:    rec.RuleID,
				Reason:    types.ErrNegativeAmount.Error(),
			})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, warnings
}

// groupKeys returns the distinct cascade group keys the records touch.
func groupKeys(records []types.RuleAssignment) []types.GroupKey {
	seen := make(map[types.GroupKey]bool, len(records))
	var keys []types.GroupKey
	for _, rec := range records {
		if seen[rec.Key()] {
			continue
		}
		seen[rec.Key()] = true
		keys = append(keys, rec.Key())
	}
	return keys
}

// diffProducts returns the sorted product ids whose computed price changed
// between the prior snapshot and the new set: a differing price on any
// shared key, or a key present on only one side.
func diffProducts(prior, next []types.IndexEntry) []int64 {
	type entryKey struct {
		ProductID       int64
		CustomerGroupID int64
		RuleDate        string
	}
	priorPrices := make(map[entryKey]float64, len(prior))
	for _, e := range prior {
		priorPrices[entryKey{e.ProductID, e.CustomerGroupID, e.RuleDate}] = e.RulePrice
	}

	changed := make(map[int64]bool)
	nextKeys := make(map[entryKey]bool, len(next))
	for _, e := range next {
		key := entryKey{e.ProductID, e.CustomerGroupID, e.RuleDate}
		nextKeys[key] = true
		old, ok := priorPrices[key]
		if !ok || old != e.RulePrice {
			changed[e.ProductID] = true
		}
	}
	for _, e := range prior {
		if !nextKeys[entryKey{e.ProductID, e.CustomerGroupID, e.RuleDate}] {
			changed[e.ProductID] = true
		}
	}

	return sortedIDs(changed)
}

func sortedIDs(set map[int64]bool) []int64 {
	var ids []int64
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// roundPrice normalizes to 4 decimal places at the storage boundary,
// matching the index column precision.
func roundPrice(p float64) float64 {
	return math.Round(p*10000) / 10000
}

// IsFatal reports whether a Recompute error was an input-source failure.
func IsFatal(err error) bool {
	return errors.Is(err, types.ErrSourceUnavailable)
}
