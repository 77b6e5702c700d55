package metric

import (
	"sort"

	"commonmetrics/domain/core"
)

// DefaultClusterColumn is the column holding the repeated-measurement unit
// (classroom) identifier for cluster-expecting metrics.
const DefaultClusterColumn = "class_id"

// Catalog is the static registry of metric definitions. Built once; never
// mutated afterwards, so it is safe to share across concurrent calls.
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog builds the catalog of the seven built-in common metrics. Adding
// a metric means adding one entry here; no other component changes.
func NewCatalog() *Catalog {
	scale03 := Range(0, 3)

	defs := []*Definition{
		{
			Name: "engagement",
			Items: []Item{
				{Name: "eng_interest", Domain: scale03},
				{Name: "eng_like", Domain: scale03},
				{Name: "eng_losttrack", Domain: scale03},
				{Name: "eng_moreabout", Domain: scale03},
			},
			RequiresCluster: true,
			Rule:            ScoringRule{Kind: RuleSimpleSum},
		},
		{
			Name: "relevance",
			Items: []Item{
				{Name: "rel_asmuch", Domain: scale03},
				{Name: "rel_future", Domain: scale03},
				{Name: "rel_outside", Domain: scale03},
				{Name: "rel_rightnow", Domain: scale03},
			},
			RequiresCluster: true,
			Rule:            ScoringRule{Kind: RuleSimpleSum},
		},
		{
			Name: "belonging",
			Items: []Item{
				{Name: "bel_ideas", Domain: scale03},
				{Name: "bel_fitin", Domain: scale03},
				{Name: "bel_important", Domain: scale03},
				{Name: "bel_myself", Domain: scale03},
			},
			RequiresCluster: true,
			Rule:            ScoringRule{Kind: RuleSimpleSum},
		},
		{
			Name: "expectations",
			Items: []Item{
				{Name: "exp_fairtomaster", Domain: Range(0, 5)},
				{Name: "exp_oneyearenough", Domain: Range(0, 5)},
				{Name: "exp_allstudents", Domain: Range(0, 5)},
				{Name: "exp_appropriate", Domain: Range(0, 5)},
				{Name: "exp_thinkdeeply", Domain: Range(0, 5)},
				{Name: "exp_mastergrade", Domain: Range(0, 5)},
			},
			Rule: ScoringRule{Kind: RuleSimpleSum},
		},
		{
			Name: "tntp_core",
			Items: []Item{
				{Name: "tc_engage", Domain: Range(1, 5)},
				{Name: "tc_grapple", Domain: Range(1, 5)},
				{Name: "tc_meaningful", Domain: Range(1, 5)},
				{Name: "tc_ownwork", Domain: Range(1, 5)},
			},
			Rule: ScoringRule{Kind: RuleSimpleSum},
		},
		{
			// Instructional Practice Guide. Core Action 1 indicators are 0-1,
			// the rest 1-4; everything is rescaled onto 1-4 before summation.
			// RFS Overall enters the composite only for K-5 Literacy rows.
			Name: "ipg",
			Items: []Item{
				{Name: "ca1_a", Domain: Range(0, 1)},
				{Name: "ca1_b", Domain: Range(0, 1)},
				{Name: "ca1_c", Domain: Range(0, 1)},
				{Name: "ca2_overall", Domain: Range(1, 4)},
				{Name: "ca3_overall", Domain: Range(1, 4)},
				{Name: "col", Domain: Range(1, 4)},
				{Name: "rfs_overall", Domain: Range(1, 4)},
			},
			AuxFields: []string{"grade_level", "form"},
			Rule: ScoringRule{
				Kind:   RuleConditionalSum,
				Target: Range(1, 4),
				Conditional: []ConditionalItem{
					{
						Item: "rfs_overall",
						When: []FieldMatch{
							{Field: "form", AnyOf: []string{"Literacy"}},
							{Field: "grade_level", AnyOf: []string{"K", "1", "2", "3", "4", "5"}},
						},
					},
				},
			},
		},
		{
			Name: "assignments",
			Items: []Item{
				{Name: "as_content", Domain: Range(0, 2)},
				{Name: "as_practice", Domain: Range(0, 2)},
				{Name: "as_relevance", Domain: Range(0, 2)},
			},
			RequiresCluster: true,
			Rule:            ScoringRule{Kind: RuleSimpleSum},
		},
	}

	byName := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	return &Catalog{defs: byName}
}

// Lookup returns the definition for a metric name.
func (c *Catalog) Lookup(name string) (*Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return nil, core.NewMetricNotFoundError(name)
	}
	return def, nil
}

// Names returns the sorted catalog metric names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
