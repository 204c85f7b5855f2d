// Package validation holds the entry rule sets. Common checks run once per
// request; each category then applies its own Strategy over evidence the
// engine has already gathered, so rule evaluation itself never does I/O.
package validation

import (
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// Policy carries the tunable thresholds.
type Policy struct {
	// VisitorStayWarning is the soft cap on a visitor's declared stay.
	VisitorStayWarning time.Duration
}

// DefaultPolicy matches the stock configuration.
func DefaultPolicy() Policy {
	return Policy{VisitorStayWarning: 4 * time.Hour}
}

// Context is the evidence a strategy evaluates against.
type Context struct {
	Now    time.Time
	Policy Policy

	// Company is the referenced company, nil when none was referenced or
	// the reference did not resolve.
	Company *types.Company
	// VehicleBlocks are the blacklist rows covering the referenced vehicle.
	VehicleBlocks []types.BlacklistEntry
}

// Result is Accepted (possibly with warnings) or Rejected with an ordered
// list of reasons.
type Result struct {
	Accepted bool
	Reasons  []types.Reason
	Warnings []types.Finding
	// StayLimit is recorded on the entry for overstay monitoring.
	StayLimit time.Duration
}

func accepted(limit time.Duration, warnings ...types.Finding) Result {
	return Result{Accepted: true, Warnings: warnings, StayLimit: limit}
}

func rejected(reasons ...types.Reason) Result {
	return Result{Accepted: false, Reasons: reasons}
}

// Strategy is a category-specific rule set.
type Strategy interface {
	Validate(req types.EntryRequest, c Context) Result
}

// strategies is the dispatch table; every category in types.Categories
// must have an entry.
var strategies = map[types.Category]Strategy{
	types.CategoryVisitor:    visitorStrategy{},
	types.CategoryContractor: contractorStrategy{},
	types.CategorySupplier:   supplierStrategy{},
}

// For returns the strategy for a category tag.
func For(c types.Category) (Strategy, bool) {
	s, ok := strategies[c]
	return s, ok
}
