// Package store is the data access layer over the relational schema in
// migrations/. Reads go through dotsql-named queries (internal/core/db);
// materialization writes are transaction-scoped and live in materialize.go.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillcart/priceindex/internal/core/db"
	"github.com/quillcart/priceindex/internal/types"
)

// Store wraps the named query catalog. It implements baseprice.Catalog and
// supplies the assignment source and index/live-rule access for the pipeline.
type Store struct {
	queries *db.Queries
}

// New creates a store over loaded queries.
func New(queries *db.Queries) (*Store, error) {
	if queries == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	return &Store{queries: queries}, nil
}

// Websites returns all websites, or only the requested ids when ids is
// non-empty. Requesting an unknown id is an error: a partial reindex of a
// website that doesn't exist is a caller mistake, not an empty run.
func (s *Store) Websites(ctx context.Context, ids []int64) ([]types.Website, error) {
	var websites []types.Website
	if len(ids) == 0 {
		if err := s.queries.Select(ctx, "select-websites", &websites); err != nil {
			return nil, fmt.Errorf("failed to query websites: %w", err)
		}
		return websites, nil
	}

	if err := s.queries.SelectIn(ctx, "select-websites-by-id", &websites, ids); err != nil {
		return nil, fmt.Errorf("failed to query websites: %w", err)
	}
	if len(websites) != len(ids) {
		return nil, fmt.Errorf("unknown website id in %v (found %d of %d)", ids, len(websites), len(ids))
	}
	return websites, nil
}

// Assignments returns the website's rule assignment records in cascade order.
// An empty set is valid: no active rules means the website's index rows are
// deleted and none rewritten.
func (s *Store) Assignments(ctx context.Context, websiteID int64) ([]types.RuleAssignment, error) {
	var records []types.RuleAssignment
	if err := s.queries.Select(ctx, "select-assignments", &records, websiteID); err != nil {
		return nil, fmt.Errorf("failed to query rule assignments: %w", err)
	}
	return records, nil
}

// priceRow scans one (product, price) pair.
type priceRow struct {
	ProductID int64   `db:"product_id"`
	Price     float64 `db:"price"`
}

// PlainPrices implements baseprice.Catalog over the raw price attribute table.
func (s *Store) PlainPrices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error) {
	return s.prices(ctx, "select-plain-prices", storeID, productIDs)
}

// FlatPrices implements baseprice.Catalog over the denormalized projection.
func (s *Store) FlatPrices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error) {
	return s.prices(ctx, "select-flat-prices", storeID, productIDs)
}

func (s *Store) prices(ctx context.Context, query string, storeID int64, productIDs []int64) (map[int64]float64, error) {
	if len(productIDs) == 0 {
		return map[int64]float64{}, nil
	}
	var rows []priceRow
	if err := s.queries.SelectIn(ctx, query, &rows, storeID, productIDs); err != nil {
		return nil, fmt.Errorf("failed to query product prices: %w", err)
	}
	prices := make(map[int64]float64, len(rows))
	for _, r := range rows {
		prices[r.ProductID] = r.Price
	}
	return prices, nil
}

// FlatBuilt reports whether the flat projection is built for the store.
// A missing state row means the projection was never built.
func (s *Store) FlatBuilt(ctx context.Context, storeID int64) (bool, error) {
	var built bool
	err := s.queries.Get(ctx, "select-flat-built", &built, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query flat index state: %w", err)
	}
	return built, nil
}

// GroupOverrides implements baseprice.Catalog: website-scoped plus global
// (website_id = 0) customer-group price overrides for the products.
func (s *Store) GroupOverrides(ctx context.Context, websiteID int64, productIDs []int64) ([]types.GroupPriceOverride, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var overrides []types.GroupPriceOverride
	if err := s.queries.SelectIn(ctx, "select-group-overrides", &overrides, websiteID, productIDs); err != nil {
		return nil, fmt.Errorf("failed to query group price overrides: %w", err)
	}
	return overrides, nil
}

// IndexEntries returns the website's current index rows in key order.
func (s *Store) IndexEntries(ctx context.Context, websiteID int64) ([]types.IndexEntry, error) {
	var entries []types.IndexEntry
	if err := s.queries.Select(ctx, "select-index-entries", &entries, websiteID); err != nil {
		return nil, fmt.Errorf("failed to query index entries: %w", err)
	}
	return entries, nil
}
