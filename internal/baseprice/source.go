// internal/baseprice/source.go
package baseprice

import (
	"context"

	"github.com/quillcart/priceindex/internal/types"
)

// Catalog is the price provider collaborator: the product price attribute
// store plus an optional denormalized flat projection, and the customer-group
// override tables. Both price lookups resolve by (store, product) and may
// omit products that have no value.
type Catalog interface {
	// PlainPrices returns the raw price attribute value per product at a store.
	PlainPrices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error)

	// FlatPrices returns prices from the denormalized projection at a store.
	FlatPrices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error)

	// FlatBuilt reports whether the flat projection is built and populated
	// for a store.
	FlatBuilt(ctx context.Context, storeID int64) (bool, error)

	// GroupOverrides returns customer-group price overrides for the website,
	// including global (website_id = 0) rows.
	GroupOverrides(ctx context.Context, websiteID int64, productIDs []int64) ([]types.GroupPriceOverride, error)
}

// PriceSource supplies the plain product price per store. Two implementations
// exist: direct attribute lookup and the precomputed flat projection. The
// legacy resolver branched inline on projection availability; here selection
// happens once per website in SelectSource.
type PriceSource interface {
	Prices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error)
}

// attributeSource reads the raw price attribute values.
type attributeSource struct {
	catalog Catalog
}

func (s attributeSource) Prices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error) {
	return s.catalog.PlainPrices(ctx, storeID, productIDs)
}

// flatSource reads the denormalized projection. Same result, different
// source; preferred when the projection is populated for the store.
type flatSource struct {
	catalog Catalog
}

func (s flatSource) Prices(ctx context.Context, storeID int64, productIDs []int64) (map[int64]float64, error) {
	return s.catalog.FlatPrices(ctx, storeID, productIDs)
}

// SelectSource picks the flat projection when it is built for the store,
// otherwise the attribute source.
func SelectSource(ctx context.Context, catalog Catalog, storeID int64) (PriceSource, error) {
	built, err := catalog.FlatBuilt(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if built {
		return flatSource{catalog: catalog}, nil
	}
	return attributeSource{catalog: catalog}, nil
}
