package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProcessor(t *testing.T) {
	p, ok := LookupProcessor("ColumnRenamer")
	require.True(t, ok)
	assert.Contains(t, p.Params, "renamings")

	_, ok = LookupProcessor("NoSuchProcessor")
	assert.False(t, ok)
}

func TestLookupRecipeKind(t *testing.T) {
	r, ok := LookupRecipeKind("join")
	require.True(t, ok)
	assert.Equal(t, []string{"joinType", "joins"}, r.Settings)

	_, ok = LookupRecipeKind("nope")
	assert.False(t, ok)
}

func TestCatalogCopiesAreIsolated(t *testing.T) {
	first := Processors()
	first[0].Type = "mutated"
	second := Processors()
	assert.Equal(t, "ColumnRenamer", second[0].Type)

	kinds := RecipeKinds()
	assert.Len(t, kinds, 11)
}
