// Package baseprice resolves the pre-rule starting price for every
// (product, customer group) pair a website's assignments touch.
//
// Resolution order per pair: a website-scoped customer-group override wins
// over a global (website_id = 0) override, which wins over the plain catalog
// price at the website's default store. Percent overrides discount the plain
// price; fixed overrides replace it. A product with no resolvable plain
// price is excluded from the run with a warning, not an error.
package baseprice

import (
	"context"
	"fmt"

	"github.com/quillcart/priceindex/internal/types"
)

// Resolver computes ResolvedBasePrice values fresh each run; nothing here is
// persisted independently.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over the price provider collaborator.
func NewResolver(catalog Catalog) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	return &Resolver{catalog: catalog}, nil
}

// Resolve returns the base price per (product, customer group) key for the
// given website. Keys whose product has no plain price are absent from the
// result and reported in warnings. Provider failures are fatal for the run
// and wrap types.ErrSourceUnavailable.
func (r *Resolver) Resolve(ctx context.Context, website types.Website, keys []types.GroupKey) (map[types.GroupKey]float64, []types.Warning, error) {
	productIDs := distinctProducts(keys)
	if len(productIDs) == 0 {
		return map[types.GroupKey]float64{}, nil, nil
	}

	source, err := SelectSource(ctx, r.catalog, website.DefaultStoreID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: selecting price source for store %d: %v", types.ErrSourceUnavailable, website.DefaultStoreID, err)
	}

	plain, err := source.Prices(ctx, website.DefaultStoreID, productIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading prices for store %d: %v", types.ErrSourceUnavailable, website.DefaultStoreID, err)
	}

	overrides, err := r.catalog.GroupOverrides(ctx, website.ID, productIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading group overrides for website %d: %v", types.ErrSourceUnavailable, website.ID, err)
	}
	scoped, global := splitOverrides(overrides, website.ID)

	bases := make(map[types.GroupKey]float64, len(keys))
	var warnings []types.Warning
	warned := make(map[int64]bool)

	for _, key := range keys {
		price, ok := plain[key.ProductID]
		if !ok {
			// No resolvable price: the product accrues no rule index entries
			// this cycle. Warn once per product.
			if !warned[key.ProductID] {
				warned[key.ProductID] = true
				warnings = append(warnings, types.Warning{
					WebsiteID: website.ID,
					ProductID: key.ProductID,
					Reason:    types.ErrNoBasePrice.Error(),
				})
			}
			continue
		}

		if o, ok := scoped[key]; ok {
			bases[key] = applyOverride(o, price)
		} else if o, ok := global[key]; ok {
			bases[key] = applyOverride(o, price)
		} else {
			bases[key] = price
		}
	}

	return bases, warnings, nil
}

// applyOverride computes the overridden base: percent overrides discount the
// plain price, fixed overrides replace it.
func applyOverride(o types.GroupPriceOverride, plain float64) float64 {
	if o.IsPercent {
		return plain * (100 - o.Value) / 100
	}
	return o.Value
}

// splitOverrides partitions override rows into website-scoped and global
// lookups keyed by (product, customer group).
func splitOverrides(overrides []types.GroupPriceOverride, websiteID int64) (scoped, global map[types.GroupKey]types.GroupPriceOverride) {
	scoped = make(map[types.GroupKey]types.GroupPriceOverride)
	global = make(map[types.GroupKey]types.GroupPriceOverride)
	for _, o := range overrides {
		key := types.GroupKey{ProductID: o.ProductID, CustomerGroupID: o.CustomerGroupID}
		switch o.WebsiteID {
		case websiteID:
			scoped[key] = o
		case 0:
			global[key] = o
		}
	}
	return scoped, global
}

func distinctProducts(keys []types.GroupKey) []int64 {
	seen := make(map[int64]bool, len(keys))
	var ids []int64
	for _, key := range keys {
		if seen[key.ProductID] {
			continue
		}
		seen[key.ProductID] = true
		ids = append(ids, key.ProductID)
	}
	return ids
}
