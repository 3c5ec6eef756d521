// internal/cascade/cascade_test.go
package cascade

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/quillcart/priceindex/internal/types"
)

func TestApply_Operators(t *testing.T) {
	tests := []struct {
		name     string
		op       types.Operator
		amount   float64
		price    float64
		expected float64
	}{
		{name: "to_percent scales to amount percent", op: types.OpToPercent, amount: 50, price: 100, expected: 50},
		{name: "by_percent discounts by amount percent", op: types.OpByPercent, amount: 10, price: 100, expected: 90},
		{name: "to_fixed lowers to amount", op: types.OpToFixed, amount: 80, price: 100, expected: 80},
		{name: "to_fixed never raises the price", op: types.OpToFixed, amount: 120, price: 100, expected: 100},
		{name: "by_fixed subtracts amount", op: types.OpByFixed, amount: 20, price: 100, expected: 80},
		{name: "by_fixed floors at zero", op: types.OpByFixed, amount: 150, price: 100, expected: 0},
		{name: "to_percent of zero price", op: types.OpToPercent, amount: 50, price: 0, expected: 0},
		{name: "by_percent full discount", op: types.OpByPercent, amount: 100, price: 42, expected: 0},
		{name: "by_percent over 100 floors at zero", op: types.OpByPercent, amount: 150, price: 100, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.op, tt.amount, tt.price)
			if got != tt.expected {
				t.Errorf("Apply(%s, %v, %v) = %v, want %v", tt.op, tt.amount, tt.price, got, tt.expected)
			}
		})
	}
}

func assignment(rule int64, op types.Operator, amount float64, stop bool, sortOrder int, tieBreak int64) types.RuleAssignment {
	return types.RuleAssignment{
		RuleID:          rule,
		ProductID:       1,
		CustomerGroupID: 1,
		WebsiteID:       1,
		ActionOperator:  string(op),
		ActionAmount:    amount,
		ActionStop:      stop,
		SortOrder:       sortOrder,
		TieBreakID:      tieBreak,
	}
}

func TestRun_FirstRecordSeedsFromBase(t *testing.T) {
	group := []types.RuleAssignment{
		assignment(1, types.OpByPercent, 10, false, 1, 1),
	}
	out := Run(group, 100)
	if len(out) != 1 {
		t.Fatalf("Run() returned %d records, want 1", len(out))
	}
	if out[0].Price != 90 {
		t.Errorf("Price = %v, want 90", out[0].Price)
	}
}

func TestRun_SubsequentRecordsChainOffRunningPrice(t *testing.T) {
	// by_percent 10 on base 100 -> 90, then to_fixed 80 -> 80.
	group := []types.RuleAssignment{
		assignment(1, types.OpByPercent, 10, false, 1, 1),
		assignment(2, types.OpToFixed, 80, true, 2, 2),
	}
	out := Run(group, 100)
	if out[0].Price != 90 {
		t.Errorf("first record Price = %v, want 90", out[0].Price)
	}
	if out[1].Price != 80 {
		t.Errorf("second record Price = %v, want 80", out[1].Price)
	}
}

func TestRun_StopIsSticky(t *testing.T) {
	// Rule A by_fixed 20 with stop on base 50 -> 30 and stops the chain;
	// rule B by_percent 50 must be skipped (stays 30, not 15).
	group := []types.RuleAssignment{
		assignment(1, types.OpByFixed, 20, true, 1, 1),
		assignment(2, types.OpByPercent, 50, false, 2, 2),
	}
	out := Run(group, 50)
	if out[0].Price != 30 {
		t.Errorf("stopping record Price = %v, want 30", out[0].Price)
	}
	if out[1].Price != 30 {
		t.Errorf("post-stop record Price = %v, want 30 (skipped)", out[1].Price)
	}
}

func TestRun_DeepPercentDiscountNeverGoesNegative(t *testing.T) {
	// by_percent 150 floors at 0; to_fixed 80 takes min(80, 0) and must not
	// resurrect a negative price anywhere in the chain.
	group := []types.RuleAssignment{
		assignment(1, types.OpByPercent, 150, false, 1, 1),
		assignment(2, types.OpToFixed, 80, false, 2, 2),
	}
	out := Run(group, 100)
	for i, p := range out {
		if p.Price != 0 {
			t.Errorf("record %d Price = %v, want 0", i, p.Price)
		}
	}
}

func TestRun_LaterStopFlagsIrrelevantAfterFirstStop(t *testing.T) {
	group := []types.RuleAssignment{
		assignment(1, types.OpToFixed, 40, true, 1, 1),
		assignment(2, types.OpByFixed, 10, true, 2, 2),
		assignment(3, types.OpByPercent, 50, false, 3, 3),
	}
	out := Run(group, 100)
	for i, p := range out {
		if p.Price != 40 {
			t.Errorf("record %d Price = %v, want 40 (first stop wins)", i, p.Price)
		}
	}
}

func TestRun_FirstRecordStopAppliesItself(t *testing.T) {
	// The stopping record's own operator applies; only later records freeze.
	group := []types.RuleAssignment{
		assignment(1, types.OpByPercent, 10, true, 1, 1),
	}
	out := Run(group, 100)
	if out[0].Price != 90 {
		t.Errorf("Price = %v, want 90", out[0].Price)
	}
}

func TestOrder_SortOrderThenTieBreak(t *testing.T) {
	records := []types.RuleAssignment{
		assignment(3, types.OpByFixed, 1, false, 2, 7),
		assignment(1, types.OpByFixed, 1, false, 1, 9),
		assignment(2, types.OpByFixed, 1, false, 1, 4),
	}
	Order(records)
	got := []int64{records[0].RuleID, records[1].RuleID, records[2].RuleID}
	want := []int64{2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Order() rule sequence = %v, want %v", got, want)
		}
	}
}

func TestGroups_SkipsKeysWithoutBasePrice(t *testing.T) {
	records := []types.RuleAssignment{
		assignment(1, types.OpByPercent, 10, false, 1, 1),
	}
	records[0].ProductID = 99

	groups := Groups(records, map[types.GroupKey]float64{})
	if len(groups) != 0 {
		t.Errorf("Groups() = %d groups, want 0 (no base price)", len(groups))
	}
}

func TestGroups_ResetsStateAtGroupBoundary(t *testing.T) {
	a := assignment(1, types.OpByFixed, 20, true, 1, 1)
	b := assignment(2, types.OpByPercent, 50, false, 1, 2)
	b.ProductID = 2

	bases := map[types.GroupKey]float64{
		{ProductID: 1, CustomerGroupID: 1}: 50,
		{ProductID: 2, CustomerGroupID: 1}: 100,
	}
	groups := Groups([]types.RuleAssignment{a, b}, bases)

	// The stop in product 1's group must not leak into product 2's group.
	g2 := groups[types.GroupKey{ProductID: 2, CustomerGroupID: 1}]
	if len(g2) != 1 || g2[0].Price != 50 {
		t.Errorf("product 2 group = %+v, want one record priced 50", g2)
	}
}

// operatorGen generates one of the four pricing operators.
func operatorGen() gopter.Gen {
	return gen.OneConstOf(types.OpToPercent, types.OpByPercent, types.OpToFixed, types.OpByFixed)
}

func TestRun_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("prices never go negative", prop.ForAll(
		func(ops []types.Operator, amounts []float64, base float64) bool {
			group := buildGroup(ops, amounts, nil)
			for _, p := range Run(group, base) {
				if p.Price < 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(operatorGen()),
		gen.SliceOf(gen.Float64Range(0, 500)),
		gen.Float64Range(0, 1000),
	))

	properties.Property("to_fixed never exceeds the running price", prop.ForAll(
		func(amount, base float64) bool {
			out := Apply(types.OpToFixed, amount, base)
			return out <= base
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 1000),
	))

	properties.Property("stop is sticky: positions after the first stop keep its price", prop.ForAll(
		func(ops []types.Operator, amounts []float64, stopAt int, base float64) bool {
			stops := make([]bool, len(ops))
			if len(stops) > 0 {
				stops[stopAt%len(stops)] = true
			}
			group := buildGroup(ops, amounts, stops)
			out := Run(group, base)

			frozen := -1
			for i, rec := range group {
				if rec.ActionStop {
					frozen = i
					break
				}
			}
			if frozen == -1 {
				return true
			}
			for i := frozen + 1; i < len(out); i++ {
				if out[i].Price != out[frozen].Price {
					return false
				}
			}
			return true
		},
		gen.SliceOf(operatorGen()),
		gen.SliceOf(gen.Float64Range(0, 500)),
		gen.IntRange(0, 100),
		gen.Float64Range(0, 1000),
	))

	properties.Property("equal sort_order resolves identically across shuffled inputs", prop.ForAll(
		func(ops []types.Operator, amounts []float64, seed int64, base float64) bool {
			group := buildGroup(ops, amounts, nil)
			// All records share sort_order 1; tie_break_id alone must make
			// the cascade reproducible.
			for i := range group {
				group[i].SortOrder = 1
			}

			shuffled := make([]types.RuleAssignment, len(group))
			copy(shuffled, group)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			Order(group)
			Order(shuffled)
			a := Run(group, base)
			b := Run(shuffled, base)
			for i := range a {
				if a[i].Price != b[i].Price || a[i].Assignment.TieBreakID != b[i].Assignment.TieBreakID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(operatorGen()),
		gen.SliceOf(gen.Float64Range(0, 500)),
		gen.Int64(),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t)
}

// buildGroup zips generator outputs into an ordered cascade group. Slices of
// differing lengths truncate to the shorter; nil stops means no stop flags.
func buildGroup(ops []types.Operator, amounts []float64, stops []bool) []types.RuleAssignment {
	n := len(ops)
	if len(amounts) < n {
		n = len(amounts)
	}
	group := make([]types.RuleAssignment, 0, n)
	for i := 0; i < n; i++ {
		stop := false
		if i < len(stops) {
			stop = stops[i]
		}
		group = append(group, assignment(int64(i+1), ops[i], amounts[i], stop, i+1, int64(i+1)))
	}
	return group
}
