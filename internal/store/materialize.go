// internal/store/materialize.go
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillcart/priceindex/internal/types"
)

/*
 * Index materialization.
 *
 * ReplaceIndex swaps one website's index rows and live-rule rows inside a
 * single transaction: snapshot prior rows, delete, bulk insert, rebuild the
 * live relation, commit. A failure anywhere rolls back only this website's
 * replacement; other websites' data is untouched and this website keeps its
 * previous index.
 *
 * Inserts use duplicate-key-ignore semantics (INSERT OR IGNORE on sqlite,
 * ON CONFLICT DO NOTHING on postgres). Duplicates should not occur given the
 * sampler's dedup-by-minimum, but the write path tolerates them rather than
 * failing a whole website over one row.
 */

// indexColumns matches the catalog_rule_price_index insert order.
const indexColumns = "product_id, customer_group_id, website_id, rule_date, rule_price, latest_start_date, earliest_end_date"

// ReplaceIndex atomically replaces the website's IndexEntry set and rebuilds
// its live-rule relation. Returns the prior entries, read inside the same
// transaction so the change diff compares against exactly what was replaced.
// batchSize bounds rows per INSERT to stay under driver placeholder limits.
func (s *Store) ReplaceIndex(ctx context.Context, websiteID int64, entries []types.IndexEntry, live []types.LiveRule, batchSize int) ([]types.IndexEntry, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	tx, err := s.queries.DB().Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectPrior, err := s.queries.Raw("select-index-entries")
	if err != nil {
		return nil, err
	}
	var prior []types.IndexEntry
	if err := tx.SelectContext(ctx, &prior, selectPrior, websiteID); err != nil {
		return nil, fmt.Errorf("failed to snapshot prior index entries: %w", err)
	}

	deleteEntries, err := s.queries.Raw("delete-index-entries")
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, deleteEntries, websiteID); err != nil {
		return nil, fmt.Errorf("failed to delete index entries: %w", err)
	}

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		query, args := s.insertEntriesSQL(entries[start:end])
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to insert index entries: %w", err)
		}
	}

	deleteLive, err := s.queries.Raw("delete-live-rules")
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, deleteLive, websiteID); err != nil {
		return nil, fmt.Errorf("failed to delete live rules: %w", err)
	}

	insertLive, err := s.queries.Raw("insert-live-rule")
	if err != nil {
		return nil, err
	}
	for _, l := range live {
		if _, err := tx.ExecContext(ctx, insertLive, l.RuleID, l.CustomerGroupID, l.WebsiteID); err != nil {
			return nil, fmt.Errorf("failed to insert live rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit index replacement: %w", err)
	}
	return prior, nil
}

// insertEntriesSQL builds one multi-row insert with duplicate-key-ignore
// semantics for the active driver.
func (s *Store) insertEntriesSQL(entries []types.IndexEntry) (string, []interface{}) {
	var b strings.Builder
	if s.queries.DB().DriverName() == "sqlite3" {
		b.WriteString("INSERT OR IGNORE INTO catalog_rule_price_index (" + indexColumns + ") VALUES ")
	} else {
		b.WriteString("INSERT INTO catalog_rule_price_index (" + indexColumns + ") VALUES ")
	}

	args := make([]interface{}, 0, len(entries)*7)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.ProductID, e.CustomerGroupID, e.WebsiteID, e.RuleDate, e.RulePrice, e.LatestStartDate, e.EarliestEndDate)
	}

	if s.queries.DB().DriverName() != "sqlite3" {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	return b.String(), args
}
