package metric

import (
	"fmt"
	"math"
	"strings"
)

// Domain is the finite set of valid integer values for one item, sorted
// ascending.
type Domain []int

// Min returns the smallest valid value.
func (d Domain) Min() int { return d[0] }

// Max returns the largest valid value.
func (d Domain) Max() int { return d[len(d)-1] }

// Contains reports whether v is a member of the domain. Non-integer values are
// never members.
func (d Domain) Contains(v float64) bool {
	if v != math.Trunc(v) {
		return false
	}
	n := int(v)
	for _, allowed := range d {
		if allowed == n {
			return true
		}
	}
	return false
}

// String renders the domain as a set literal, e.g. "{0,1,2,3}".
func (d Domain) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Equal reports whether two domains hold the same values.
func (d Domain) Equal(other Domain) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// Range builds the contiguous integer domain [lo, hi].
func Range(lo, hi int) Domain {
	d := make(Domain, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		d = append(d, v)
	}
	return d
}

// Item is one required survey/observation item with its valid domain. Domains
// may differ per item within one metric (the IPG mixes 0-1 and 1-4 items).
type Item struct {
	Name   string
	Domain Domain
}

// RuleKind tags the closed set of scoring-rule variants.
type RuleKind string

const (
	// RuleSimpleSum sums raw item values; any missing item yields a missing
	// composite.
	RuleSimpleSum RuleKind = "simple_sum"
	// RuleRescaledSum first maps each item onto the shared target domain with
	// an endpoint-preserving affine map, then sums.
	RuleRescaledSum RuleKind = "rescaled_sum"
	// RuleConditionalSum extends RuleRescaledSum: conditional items enter the
	// sum only for rows whose discriminant fields match. A row with a missing
	// discriminant uses the default (unconditional) item subset.
	RuleConditionalSum RuleKind = "conditional_sum"
)

// FieldMatch is a single discriminant predicate: the named auxiliary field
// must hold one of the listed values.
type FieldMatch struct {
	Field string
	AnyOf []string
}

// Matches reports whether the value satisfies the predicate. Missing values
// ("") never match.
func (m FieldMatch) Matches(value string) bool {
	if value == "" {
		return false
	}
	for _, v := range m.AnyOf {
		if v == value {
			return true
		}
	}
	return false
}

// ConditionalItem names an item included in the composite only when every
// discriminant predicate matches for the row.
type ConditionalItem struct {
	Item string
	When []FieldMatch
}

// ScoringRule is the data-driven description of how items combine into one
// composite score. The variant set is closed; adding a metric never requires
// a new branch in the scorer.
type ScoringRule struct {
	Kind RuleKind

	// Target is the shared domain items are rescaled onto before summation.
	// Used by RuleRescaledSum and RuleConditionalSum; nil means no rescaling.
	Target Domain

	// Conditional lists items gated by discriminant fields.
	// Used by RuleConditionalSum only.
	Conditional []ConditionalItem
}

// Definition is one immutable catalog entry: the contract a dataset must meet
// for the metric to be scored.
type Definition struct {
	Name            string
	Items           []Item
	RequiresCluster bool
	AuxFields       []string
	Rule            ScoringRule
}

// ItemNames returns the ordered required item column names.
func (d *Definition) ItemNames() []string {
	names := make([]string, len(d.Items))
	for i, item := range d.Items {
		names[i] = item.Name
	}
	return names
}

// Item looks up an item by column name.
func (d *Definition) Item(name string) (Item, bool) {
	for _, item := range d.Items {
		if item.Name == name {
			return item, true
		}
	}
	return Item{}, false
}

// IsConditional reports whether the named item is gated by a discriminant.
func (d *Definition) IsConditional(name string) bool {
	for _, c := range d.Rule.Conditional {
		if c.Item == name {
			return true
		}
	}
	return false
}

// CompositeColumn returns the conventional name of the derived composite
// column, cm_<metric>.
func (d *Definition) CompositeColumn() string {
	return CompositePrefix + d.Name
}

// CompositePrefix prefixes every derived composite column name.
const CompositePrefix = "cm_"

// Rescale maps v from an item's own domain onto the target domain with the
// affine map that preserves endpoints (e.g. {0,1} onto {1,4}: 0 maps to 1 and
// 1 maps to 4). Identity when the domains already coincide or no target is
// declared.
func Rescale(v float64, from, target Domain) float64 {
	if target == nil || from.Equal(target) {
		return v
	}
	fmin, fmax := float64(from.Min()), float64(from.Max())
	tmin, tmax := float64(target.Min()), float64(target.Max())
	if fmax == fmin {
		return tmin
	}
	return tmin + (v-fmin)*(tmax-tmin)/(fmax-fmin)
}
