// Package cascade implements the rule cascade resolver: the ordered,
// early-stoppable fold that applies each rule's pricing action to a running
// price per (product, customer group) group.
//
// The fold is an explicit sequential pass with a small {price, stopped}
// state reset at every group boundary. Every position in the chain retains
// its own resulting price: the temporal sampler later takes a minimum across
// positions, not just the chain terminus.
package cascade

import (
	"sort"

	"github.com/quillcart/priceindex/internal/types"
)

// Priced is one assignment annotated with the price the cascade produced at
// its position in the chain.
type Priced struct {
	Assignment types.RuleAssignment
	Price      float64
}

// Order sorts assignments into total cascade order: (sort_order, tie_break_id).
// The tie-break id guarantees determinism even when sort_order collides;
// without it the cascade is non-reproducible across runs.
func Order(records []types.RuleAssignment) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].SortOrder != records[j].SortOrder {
			return records[i].SortOrder < records[j].SortOrder
		}
		return records[i].TieBreakID < records[j].TieBreakID
	})
}

// Run folds one ordered group against its resolved base price.
//
// The first record seeds the accumulator from base; subsequent records chain
// off the running price. Stop is sticky: once a record with action_stop has
// been processed, later records keep their position in the output but no
// longer change the accumulator, and their recorded price is the frozen
// running price.
func Run(group []types.RuleAssignment, base float64) []Priced {
	out := make([]Priced, 0, len(group))

	price := base
	stopped := false
	for i, rec := range group {
		if i == 0 {
			price = Apply(types.Operator(rec.ActionOperator), rec.ActionAmount, base)
			stopped = rec.ActionStop
		} else if !stopped {
			price = Apply(types.Operator(rec.ActionOperator), rec.ActionAmount, price)
			stopped = stopped || rec.ActionStop
		}
		out = append(out, Priced{Assignment: rec, Price: price})
	}

	return out
}

// Groups partitions a website's assignments into cascade groups, orders each
// group, and folds it against the group's base price. Groups whose key is
// absent from bases (no resolvable base price) are skipped entirely.
func Groups(records []types.RuleAssignment, bases map[types.GroupKey]float64) map[types.GroupKey][]Priced {
	byKey := make(map[types.GroupKey][]types.RuleAssignment)
	for _, rec := range records {
		byKey[rec.Key()] = append(byKey[rec.Key()], rec)
	}

	out := make(map[types.GroupKey][]Priced, len(byKey))
	for key, group := range byKey {
		base, ok := bases[key]
		if !ok {
			continue
		}
		Order(group)
		out[key] = Run(group, base)
	}
	return out
}

// SortedKeys returns group keys in deterministic (product, group) order.
// Map iteration order is random; materialization and tests want stable output.
func SortedKeys[V any](m map[types.GroupKey]V) []types.GroupKey {
	keys := make([]types.GroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID < keys[j].ProductID
		}
		return keys[i].CustomerGroupID < keys[j].CustomerGroupID
	})
	return keys
}
