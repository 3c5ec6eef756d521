// Package types provides domain models shared across priceindex components.
//
// Records here mirror the relational schema in migrations/: rule assignments
// produced by the upstream condition engine, the price rows the compiler
// materializes, and the structured per-run results handed back to whatever
// triggered the reindex. Calendar dates are ISO-8601 strings ("2006-01-02")
// throughout; ISO dates order lexicographically, which the sampler and the
// index primary key rely on.
package types

import "time"

// Operator is a rule's pricing transform applied during the cascade.
type Operator string

const (
	// OpToPercent sets the running price to amount percent of itself.
	OpToPercent Operator = "to_percent"
	// OpByPercent discounts the running price by amount percent.
	OpByPercent Operator = "by_percent"
	// OpToFixed caps the running price at a fixed amount (never raises it).
	OpToFixed Operator = "to_fixed"
	// OpByFixed subtracts a fixed amount, floored at zero.
	OpByFixed Operator = "by_fixed"
)

// ParseOperator validates a stored operator string.
// Unknown operators are a data-quality problem: the assignment carrying one
// is skipped with a warning, never aborting the run.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpToPercent, OpByPercent, OpToFixed, OpByFixed:
		return Operator(s), nil
	default:
		return "", ErrUnknownOperator
	}
}

// RuleAssignment is one (rule, product, customer group) pairing matched by the
// upstream condition engine, carrying the rule's pricing action. Read-only
// input to the compiler.
//
// TieBreakID is the assignment row's monotonically increasing id; it breaks
// SortOrder ties so cascade ordering is a total order across runs.
// ActivationEnd == 0 means the activation window is open-ended.
type RuleAssignment struct {
	RuleID          int64   `db:"rule_id"`
	ProductID       int64   `db:"product_id"`
	CustomerGroupID int64   `db:"customer_group_id"`
	WebsiteID       int64   `db:"website_id"`
	ActionOperator  string  `db:"action_operator"`
	ActionAmount    float64 `db:"action_amount"`
	ActionStop      bool    `db:"action_stop"`
	SortOrder       int     `db:"sort_order"`
	TieBreakID      int64   `db:"tie_break_id"`
	ActivationStart int64   `db:"activation_start"`
	ActivationEnd   int64   `db:"activation_end"`
	FromDate        *string `db:"from_date"`
	ToDate          *string `db:"to_date"`
}

// GroupKey identifies one cascade group within a website.
type GroupKey struct {
	ProductID       int64
	CustomerGroupID int64
}

// Key returns the assignment's cascade group key.
func (a RuleAssignment) Key() GroupKey {
	return GroupKey{ProductID: a.ProductID, CustomerGroupID: a.CustomerGroupID}
}

// Covers reports whether the assignment's activation window contains the
// given instant (unix seconds).
func (a RuleAssignment) Covers(ts int64) bool {
	return a.ActivationStart <= ts && (a.ActivationEnd == 0 || ts <= a.ActivationEnd)
}

// Website is the per-website scope of one pipeline pass. DefaultStoreID is
// the store whose prices seed base resolution; Timezone drives calendar date
// truncation in the sampler.
type Website struct {
	ID             int64  `db:"website_id"`
	Code           string `db:"code"`
	DefaultStoreID int64  `db:"default_store_id"`
	Timezone       string `db:"timezone"`
}

// GroupPriceOverride is a customer-group price override that exists
// independently of promotional rules. WebsiteID == 0 marks a global override;
// website-scoped overrides take precedence. Percent overrides discount the
// plain price by Value percent.
type GroupPriceOverride struct {
	ProductID       int64   `db:"product_id"`
	CustomerGroupID int64   `db:"customer_group_id"`
	WebsiteID       int64   `db:"website_id"`
	Value           float64 `db:"value"`
	IsPercent       bool    `db:"is_percent"`
}

// IndexEntry is one materialized (product, customer group, website, date)
// price row. Absence of a row for a key/date means no promotional rule is
// active there and consumers fall back to the plain price.
type IndexEntry struct {
	ProductID       int64   `db:"product_id"`
	CustomerGroupID int64   `db:"customer_group_id"`
	WebsiteID       int64   `db:"website_id"`
	RuleDate        string  `db:"rule_date"`
	RulePrice       float64 `db:"rule_price"`
	LatestStartDate *string `db:"latest_start_date"`
	EarliestEndDate *string `db:"earliest_end_date"`
}

// LiveRule is one (rule, customer group, website) triple whose activation
// window covers the reindex instant exactly. Fully replaced every run.
type LiveRule struct {
	RuleID          int64 `db:"rule_id"`
	CustomerGroupID int64 `db:"customer_group_id"`
	WebsiteID       int64 `db:"website_id"`
}

// Warning records a skipped assignment or product without aborting the run.
// RuleID is zero when the warning concerns base price resolution rather than
// a specific rule.
type Warning struct {
	WebsiteID int64
	ProductID int64
	RuleID    int64
	Reason    string
}

// WebsiteResult is the structured outcome of one website's pipeline pass.
// Err is non-nil only for storage failures; that website's previous index
// remains intact and the run continues.
type WebsiteResult struct {
	WebsiteID       int64
	Entries         int
	LiveRules       int
	ChangedProducts []int64
	Warnings        []Warning
	Duration        time.Duration
	Err             error
}

// Failed reports whether the website's materialization was rolled back.
func (r WebsiteResult) Failed() bool {
	return r.Err != nil
}

// RunResult aggregates per-website outcomes for the triggering collaborator,
// which owns translating them into success/partial/failure messaging.
type RunResult struct {
	RunID     RunID
	StartedAt time.Time
	Websites  []WebsiteResult
}

// FailedWebsites returns the ids of websites whose replacement rolled back.
func (r *RunResult) FailedWebsites() []int64 {
	var ids []int64
	for _, w := range r.Websites {
		if w.Failed() {
			ids = append(ids, w.WebsiteID)
		}
	}
	return ids
}
