package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonmetrics/domain/core"
)

func TestCatalog_SevenBuiltinMetrics(t *testing.T) {
	c := NewCatalog()

	assert.Equal(t, []string{
		"assignments", "belonging", "engagement", "expectations",
		"ipg", "relevance", "tntp_core",
	}, c.Names())
}

func TestCatalog_LookupUnknown(t *testing.T) {
	c := NewCatalog()

	_, err := c.Lookup("grit")
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
}

func TestCatalog_EngagementContract(t *testing.T) {
	c := NewCatalog()
	def, err := c.Lookup("engagement")
	require.NoError(t, err)

	assert.Equal(t, []string{"eng_interest", "eng_like", "eng_losttrack", "eng_moreabout"}, def.ItemNames())
	assert.True(t, def.RequiresCluster)
	assert.Equal(t, RuleSimpleSum, def.Rule.Kind)
	assert.Equal(t, "cm_engagement", def.CompositeColumn())

	item, ok := def.Item("eng_interest")
	require.True(t, ok)
	assert.Equal(t, "{0,1,2,3}", item.Domain.String())
}

func TestCatalog_ExpectationsHasNoClusterExpectation(t *testing.T) {
	c := NewCatalog()
	def, err := c.Lookup("expectations")
	require.NoError(t, err)

	assert.False(t, def.RequiresCluster)
	assert.Len(t, def.Items, 6)
	assert.Equal(t, "{0,1,2,3,4,5}", def.Items[0].Domain.String())
}

func TestCatalog_IPGMixedDomainsAndConditionalRFS(t *testing.T) {
	c := NewCatalog()
	def, err := c.Lookup("ipg")
	require.NoError(t, err)

	assert.False(t, def.RequiresCluster)
	assert.Equal(t, []string{"grade_level", "form"}, def.AuxFields)
	assert.Equal(t, RuleConditionalSum, def.Rule.Kind)
	assert.True(t, def.IsConditional("rfs_overall"))
	assert.False(t, def.IsConditional("ca2_overall"))

	ca1, _ := def.Item("ca1_a")
	ca2, _ := def.Item("ca2_overall")
	assert.Equal(t, "{0,1}", ca1.Domain.String())
	assert.Equal(t, "{1,2,3,4}", ca2.Domain.String())
}

func TestDomain_Contains(t *testing.T) {
	d := Range(0, 3)

	assert.True(t, d.Contains(0))
	assert.True(t, d.Contains(3))
	assert.False(t, d.Contains(4))
	assert.False(t, d.Contains(-1))
	assert.False(t, d.Contains(1.5))
}

func TestRescale_PreservesEndpoints(t *testing.T) {
	from := Range(0, 1)
	target := Range(1, 4)

	// Minimum raw value maps to the minimum shared value, maximum to maximum.
	assert.Equal(t, 1.0, Rescale(0, from, target))
	assert.Equal(t, 4.0, Rescale(1, from, target))

	// Identity when the item already sits on the target scale.
	assert.Equal(t, 2.0, Rescale(2, target, target))
	assert.Equal(t, 2.0, Rescale(2, Range(1, 4), nil))
}
