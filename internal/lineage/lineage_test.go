package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/leapstack-labs/leapflow/internal/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_EmptyFlow(t *testing.T) {
	_, err := lineage.Trace(flow.New("empty"), "x", "")
	assert.ErrorIs(t, err, lineage.ErrEmptyFlow)
}

func TestTrace_UnknownDataset(t *testing.T) {
	f := flow.New("one")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleInput})

	_, err := lineage.Trace(f, "x", "missing")
	var uerr *lineage.UnknownDatasetError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "missing", uerr.Name)
}

func TestTrace_PassthroughWithoutRecipes(t *testing.T) {
	f := flow.New("plain")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleInput})

	lin, err := lineage.Trace(f, "price", "")
	require.NoError(t, err)
	assert.Equal(t, lin.FinalDataset, lin.OriginDataset)
	assert.Equal(t, "price", lin.OriginColumn)
	assert.Empty(t, lin.Transformations)
}

func TestTrace_StartsAtLastOutput(t *testing.T) {
	f := flow.New("multi")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleInput})
	f.AddDataset(&flow.Dataset{Name: "out1", Role: flow.RoleOutput})
	f.AddDataset(&flow.Dataset{Name: "out2", Role: flow.RoleOutput})

	lin, err := lineage.Trace(f, "x", "")
	require.NoError(t, err)
	assert.Equal(t, "out2", lin.FinalDataset)
}

func TestTrace_RenameRewritesTrackedColumn(t *testing.T) {
	f := flow.New("renamed")
	f.AddDataset(&flow.Dataset{Name: "raw", Role: flow.RoleInput})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_clean_1", Kind: flow.RecipePrepare,
		Inputs: []string{"raw"}, Outputs: []string{"clean"},
		Steps: []flow.Step{
			{Type: "ColumnRenamer", Params: map[string]any{
				"renamings": []map[string]any{{"from": "amt", "to": "amount"}},
			}},
			{Type: "FillEmptyWithValue", Params: map[string]any{
				"columns": []string{"amount"}, "value": "0",
			}},
		},
	})
	f.Dataset("clean").Role = flow.RoleOutput

	lin, err := lineage.Trace(f, "amount", "")
	require.NoError(t, err)
	assert.Equal(t, "raw", lin.OriginDataset)
	assert.Equal(t, "amt", lin.OriginColumn)

	// Steps are reported in application order: rename, then fill.
	require.Len(t, lin.Transformations, 2)
	assert.Contains(t, lin.Transformations[0].Description, "renamed from amt")
	assert.Contains(t, lin.Transformations[1].Description, "FillEmptyWithValue")
}

func TestTrace_GroupKeyAndAggregation(t *testing.T) {
	f := flow.New("grouped")
	f.AddDataset(&flow.Dataset{Name: "sales", Role: flow.RoleInput})
	r := &flow.Recipe{
		Name: "compute_summary_1", Kind: flow.RecipeGroup,
		Inputs: []string{"sales"}, Outputs: []string{"summary"},
	}
	r.SetGroup(&flow.GroupSettings{
		Keys:         []flow.GroupKey{{Column: "region"}},
		Aggregations: []flow.Aggregation{{Column: "amt", Type: "SUM", OutputColumn: "total"}},
	})
	f.AddRecipe(r)

	key, err := lineage.Trace(f, "region", "summary")
	require.NoError(t, err)
	assert.Equal(t, "region", key.OriginColumn)
	require.Len(t, key.Transformations, 1)
	assert.Contains(t, key.Transformations[0].Description, "group key")

	agg, err := lineage.Trace(f, "total", "summary")
	require.NoError(t, err)
	assert.Equal(t, "amt", agg.OriginColumn)
	assert.Contains(t, agg.Transformations[0].Description, "SUM aggregation of amt")
}

func TestTrace_JoinSideStaysUnresolved(t *testing.T) {
	f := flow.New("joined")
	f.AddDataset(&flow.Dataset{Name: "left", Role: flow.RoleInput})
	f.AddDataset(&flow.Dataset{Name: "right", Role: flow.RoleInput})
	r := &flow.Recipe{
		Name: "compute_merged_1", Kind: flow.RecipeJoin,
		Inputs: []string{"left", "right"}, Outputs: []string{"merged"},
	}
	r.SetJoin(&flow.JoinSettings{
		JoinType: "LEFT",
		Joins: []flow.JoinPair{{
			Left:  flow.JoinColumn{Column: "id"},
			Right: flow.JoinColumn{Column: "id"},
		}},
	})
	f.AddRecipe(r)

	lin, err := lineage.Trace(f, "amount", "merged")
	require.NoError(t, err)
	// The walk continues into the first input; the join itself is only
	// recorded, never resolved to a side.
	assert.Equal(t, "left", lin.OriginDataset)
	assert.Equal(t, "amount", lin.OriginColumn)
	require.Len(t, lin.Transformations, 1)
	assert.Contains(t, lin.Transformations[0].Description, "LEFT join")
	assert.Contains(t, lin.Transformations[0].Description, "unresolved")
}

func TestTrace_CycleGuardTerminates(t *testing.T) {
	f := flow.New("cyclic")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleIntermediate})
	f.AddDataset(&flow.Dataset{Name: "b", Role: flow.RoleIntermediate})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_b_1", Kind: flow.RecipeFilter,
		Inputs: []string{"a"}, Outputs: []string{"b"},
	})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_a_1", Kind: flow.RecipeFilter,
		Inputs: []string{"b"}, Outputs: []string{"a"},
	})

	lin, err := lineage.Trace(f, "x", "b")
	require.NoError(t, err)
	assert.Equal(t, "x", lin.OriginColumn)
	assert.LessOrEqual(t, len(lin.Transformations), 2)
}
