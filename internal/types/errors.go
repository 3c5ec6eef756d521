package types

import "errors"

// Sentinel errors for priceindex operations.
var (
	// ErrUnknownOperator indicates an assignment carries an operator outside
	// the four supported pricing transforms.
	ErrUnknownOperator = errors.New("unknown pricing action operator")

	// ErrNegativeAmount indicates an assignment carries a negative action
	// amount; amounts are non-negative by contract.
	ErrNegativeAmount = errors.New("negative pricing action amount")

	// ErrNoBasePrice indicates a product has no resolvable price at the
	// website's default store; the product accrues no index entries this run.
	ErrNoBasePrice = errors.New("no resolvable base price")

	// ErrUnknownTimezone indicates a website's configured timezone could not
	// be loaded.
	ErrUnknownTimezone = errors.New("unknown website timezone")

	// ErrSourceUnavailable indicates the assignment source or a price
	// provider failed; fatal for the entire run, nothing is materialized.
	ErrSourceUnavailable = errors.New("input source unavailable")
)
