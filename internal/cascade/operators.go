// internal/cascade/operators.go
package cascade

import "github.com/quillcart/priceindex/internal/types"

/*
 * Pricing operator application.
 *
 * Implements the four promotional pricing transforms applied during the
 * cascade fold. Amounts are non-negative decimals validated upstream.
 *
 * Operators:
 *   - to_percent: price * amount / 100
 *   - by_percent: max(0, price * (1 - amount/100)) - never negative
 *   - to_fixed:   min(amount, price) - a fixed-price rule only lowers
 *   - by_fixed:   max(0, price - amount) - never negative
 */

// Apply computes one operator application against the running price.
func Apply(op types.Operator, amount, price float64) float64 {
	switch op {
	case types.OpToPercent:
		return price * amount / 100
	case types.OpByPercent:
		// Amounts above 100 would otherwise drive the price negative.
		if out := price * (1 - amount/100); out > 0 {
			return out
		}
		return 0
	case types.OpToFixed:
		if amount < price {
			return amount
		}
		return price
	case types.OpByFixed:
		if out := price - amount; out > 0 {
			return out
		}
		return 0
	default:
		// Unknown operators are filtered out before the fold; leaving the
		// price unchanged keeps Apply total.
		return price
	}
}
