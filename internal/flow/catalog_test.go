package flow_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/flow"
)

func TestTriagePipelineCatalog(t *testing.T) {
	descs := flow.TriagePipeline()
	require.Len(t, descs, 9)
	assert.Equal(t, "upload", descs[0].ID)
	assert.Equal(t, "final", descs[len(descs)-1].ID)

	seen := map[string]bool{}
	for _, desc := range descs {
		assert.False(t, seen[desc.ID], "duplicate id %s", desc.ID)
		seen[desc.ID] = true
		assert.NotEmpty(t, desc.Label)
		assert.NotEqual(t, flow.NeutralColor, flow.CategoryRGB(desc.Category), "category %s has no color", desc.Category)
	}

	sim, err := flow.New(descs)
	require.NoError(t, err)
	assert.Equal(t, 9, sim.Len())
	assert.Len(t, sim.Snapshot().Edges, 8)
}

func TestCategoryColor(t *testing.T) {
	assert.True(t, strings.EqualFold("#3b82f6", flow.CategoryColor(flow.CategoryIngest)))
	assert.True(t, strings.EqualFold("#f43f5e", flow.CategoryColor(flow.CategoryReport)))
	assert.True(t, strings.EqualFold("#94a3b8", flow.CategoryColor("unknown")))
}
