package synth_test

import (
	"testing"

	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/leapstack-labs/leapflow/internal/synth"
	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func read(target, path string, line int) *transform.Transformation {
	return &transform.Transformation{
		Kind:   transform.KindRead,
		Target: target,
		Params: map[string]any{
			transform.ParamPath:   path,
			transform.ParamFormat: "csv",
		},
		SourceLine: line,
	}
}

func TestGenerate_CollapsesColumnOpsIntoOnePrepare(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindRenameColumns, Source: "df", Target: "df#1",
			Columns: []string{"a"},
			Params: map[string]any{
				transform.ParamMapping: []transform.Pair{{Key: "a", Value: "b"}},
			},
			SourceLine: 2,
		},
		{
			Kind: transform.KindFillMissing, Source: "df#1", Target: "df",
			Params:     map[string]any{transform.ParamValue: "0"},
			SourceLine: 2,
		},
		{
			Kind: transform.KindWrite, Source: "df",
			Params: map[string]any{
				transform.ParamPath:   "b.csv",
				transform.ParamFormat: "csv",
			},
			SourceLine: 3,
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Datasets, 2)
	assert.Equal(t, flow.RoleInput, f.Datasets[0].Role)
	assert.Equal(t, "df", f.Datasets[0].Name)
	assert.Equal(t, flow.RoleOutput, f.Datasets[1].Role)
	assert.Equal(t, "df_prepared", f.Datasets[1].Name)

	require.Len(t, f.Recipes, 1)
	r := f.Recipes[0]
	assert.Equal(t, flow.RecipePrepare, r.Kind)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, synth.ProcColumnRenamer, r.Steps[0].Type)
	assert.Equal(t, synth.ProcFillEmpty, r.Steps[1].Type)
}

func TestGenerate_JoinFeedsGroupViaIntermediate(t *testing.T) {
	ts := []*transform.Transformation{
		read("left", "orders.csv", 1),
		read("right", "customers.csv", 2),
		{
			Kind: transform.KindMerge, Source: "left", Target: "merged",
			Params: map[string]any{
				transform.ParamOther: "right",
				transform.ParamHow:   "left",
				transform.ParamOn:    []string{"id"},
			},
			SourceLine: 3,
		},
		{
			Kind: transform.KindGroupAggregate, Source: "merged", Target: "result",
			Params: map[string]any{
				transform.ParamKeys:       []string{"id"},
				transform.ParamAggregates: []transform.Pair{{Key: "amt", Value: "sum"}},
			},
			SourceLine: 4,
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Recipes, 2)

	join := f.Recipes[0]
	assert.Equal(t, flow.RecipeJoin, join.Kind)
	assert.Equal(t, []string{"left", "right"}, join.Inputs)
	assert.Equal(t, []string{"merged"}, join.Outputs)
	require.NotNil(t, join.Join)
	assert.Equal(t, "LEFT", join.Join.JoinType)
	require.Len(t, join.Join.Joins, 1)
	assert.Equal(t, "id", join.Join.Joins[0].Left.Column)
	assert.Equal(t, "id", join.Join.Joins[0].Right.Column)

	group := f.Recipes[1]
	assert.Equal(t, flow.RecipeGroup, group.Kind)
	assert.Equal(t, []string{"merged"}, group.Inputs)
	require.NotNil(t, group.Group)
	assert.Equal(t, []flow.GroupKey{{Column: "id"}}, group.Group.Keys)
	assert.Equal(t, []flow.Aggregation{{Column: "amt", Type: "SUM"}}, group.Group.Aggregations)

	mid := f.Dataset("merged")
	require.NotNil(t, mid)
	assert.Equal(t, flow.RoleIntermediate, mid.Role)
}

func TestGenerate_FlushBoundary(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindRenameColumns, Source: "df", Target: "df#1",
			Params: map[string]any{
				transform.ParamMapping: []transform.Pair{{Key: "a", Value: "b"}},
			},
		},
		{
			Kind: transform.KindFillMissing, Source: "df#1", Target: "df#2",
			Params: map[string]any{transform.ParamValue: "0"},
		},
		{
			Kind: transform.KindFilter, Source: "df#2", Target: "df#3",
			Params: map[string]any{transform.ParamCondition: "age >= 18"},
		},
		{
			Kind: transform.KindCreateColumn, Source: "df#3", Target: "df",
			Columns: []string{"x"},
			Params:  map[string]any{transform.ParamExpression: "a + 1"},
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Recipes, 3)
	assert.Equal(t, flow.RecipePrepare, f.Recipes[0].Kind)
	assert.Len(t, f.Recipes[0].Steps, 2)
	assert.Equal(t, flow.RecipeFilter, f.Recipes[1].Kind)
	assert.Equal(t, "age >= 18", f.Recipes[1].Params["condition"])
	assert.Equal(t, flow.RecipePrepare, f.Recipes[2].Kind)
	assert.Len(t, f.Recipes[2].Steps, 1)
}

func TestGenerate_DerivedFrameKeepsSourceBound(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindTopN, Source: "df", Target: "top",
			Params:     map[string]any{transform.ParamN: "3"},
			SourceLine: 2,
		},
		{
			Kind: transform.KindWrite, Source: "df",
			Params: map[string]any{
				transform.ParamPath:   "b.csv",
				transform.ParamFormat: "csv",
			},
			SourceLine: 3,
		},
	}

	f := synth.Generate(ts, "test", false)

	// Writing df after deriving top from it must not invent a second
	// input dataset.
	require.Len(t, f.Datasets, 2)
	assert.Nil(t, f.Dataset("df_2"))

	d := f.Dataset("df")
	require.NotNil(t, d)
	assert.Equal(t, flow.RoleOutput, d.Role)

	require.Len(t, f.Recipes, 1)
	assert.Equal(t, []string{"df"}, f.Recipes[0].Inputs)
	assert.Equal(t, []string{"top"}, f.Recipes[0].Outputs)
}

func TestGenerate_TwoDerivationsShareOneInput(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindFilter, Source: "df", Target: "adults",
			Params: map[string]any{transform.ParamCondition: "age >= 18"},
		},
		{
			Kind: transform.KindFilter, Source: "df", Target: "minors",
			Params: map[string]any{transform.ParamCondition: "age < 18"},
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Recipes, 2)
	assert.Equal(t, []string{"df"}, f.Recipes[0].Inputs)
	assert.Equal(t, []string{"df"}, f.Recipes[1].Inputs)
	assert.Equal(t, []string{"adults"}, f.Recipes[0].Outputs)
	assert.Equal(t, []string{"minors"}, f.Recipes[1].Outputs)
	require.Len(t, f.Datasets, 3)
}

func TestGenerate_DerivedStepsForkFromFlushedDataset(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindRenameColumns, Source: "df", Target: "named",
			Params: map[string]any{
				transform.ParamMapping: []transform.Pair{{Key: "a", Value: "b"}},
			},
			SourceLine: 2,
		},
		{
			Kind: transform.KindWrite, Source: "df",
			Params: map[string]any{
				transform.ParamPath:   "b.csv",
				transform.ParamFormat: "csv",
			},
			SourceLine: 3,
		},
	}

	f := synth.Generate(ts, "test", false)

	// The rename travels with the derived variable only; df itself is
	// written untouched.
	d := f.Dataset("df")
	require.NotNil(t, d)
	assert.Equal(t, flow.RoleOutput, d.Role)
	assert.Nil(t, f.Dataset("df_2"))

	require.Len(t, f.Recipes, 1)
	assert.Equal(t, flow.RecipePrepare, f.Recipes[0].Kind)
	assert.Equal(t, []string{"df"}, f.Recipes[0].Inputs)
}

func TestGenerate_AliasSharesDataset(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindAlias, Source: "df", Target: "backup",
			SourceLine: 2,
		},
		{
			Kind: transform.KindWrite, Source: "backup",
			Params: map[string]any{
				transform.ParamPath:   "b.csv",
				transform.ParamFormat: "csv",
			},
			SourceLine: 3,
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Datasets, 1)
	d := f.Dataset("df")
	require.NotNil(t, d)
	assert.Equal(t, flow.RoleOutput, d.Role)
	assert.Empty(t, f.Recipes)
}

func TestGenerate_ConcatWithoutPlainFirstInput(t *testing.T) {
	ts := []*transform.Transformation{
		read("a", "a.csv", 1),
		read("b", "b.csv", 2),
		{
			Kind: transform.KindConcat, Target: "both",
			Params:     map[string]any{transform.ParamOther: []string{"a", "b"}},
			SourceLine: 3,
		},
	}

	f := synth.Generate(ts, "test", false)

	assert.Nil(t, f.Dataset(""))
	require.Len(t, f.Recipes, 1)
	r := f.Recipes[0]
	assert.Equal(t, flow.RecipeStack, r.Kind)
	assert.Equal(t, []string{"a", "b"}, r.Inputs)
	assert.Equal(t, []string{"both"}, r.Outputs)
}

func TestGenerate_FallbackBecomesCodeRecipe(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindUnknown, Source: "df", Target: "df2",
			Params: map[string]any{
				transform.ParamDescription: "df.explode('tags')",
			},
			SourceLine: 2,
			Notes:      transform.NoteFallback,
		},
	}

	f := synth.Generate(ts, "test", false)

	require.Len(t, f.Recipes, 1)
	r := f.Recipes[0]
	assert.Equal(t, flow.RecipeCode, r.Kind)
	assert.Contains(t, r.Code, "df.explode('tags')")
	require.Len(t, f.Recommendations, 1)
	assert.Contains(t, f.Recommendations[0], r.Name)
}

func TestGenerate_PlaceholderInputForUnseenVariable(t *testing.T) {
	ts := []*transform.Transformation{
		{
			Kind: transform.KindFilter, Source: "df", Target: "out",
			Params: map[string]any{transform.ParamCondition: "x > 0"},
		},
	}

	f := synth.Generate(ts, "test", false)

	d := f.Dataset("df")
	require.NotNil(t, d)
	assert.Equal(t, flow.RoleInput, d.Role)
	require.Len(t, f.Recipes, 1)
	assert.Equal(t, []string{"df"}, f.Recipes[0].Inputs)
}

func TestGenerate_Deterministic(t *testing.T) {
	ts := []*transform.Transformation{
		read("df", "a.csv", 1),
		{
			Kind: transform.KindSort, Source: "df", Target: "df#1",
			Columns: []string{"id"},
		},
		{
			Kind: transform.KindDistinct, Source: "df#1", Target: "df",
			Columns: []string{"id"},
		},
	}

	first := synth.Generate(ts, "test", true)
	second := synth.Generate(ts, "test", true)
	assert.Equal(t, first, second)
}

func TestOptimize_MergesChainedPrepares(t *testing.T) {
	f := flow.New("test")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleInput})
	r1 := &flow.Recipe{
		Name: "compute_mid_1", Kind: flow.RecipePrepare,
		Inputs: []string{"a"}, Outputs: []string{"mid"},
		Steps: []flow.Step{{Type: synth.ProcColumnRenamer, Params: map[string]any{}}},
	}
	r2 := &flow.Recipe{
		Name: "compute_b_2", Kind: flow.RecipePrepare,
		Inputs: []string{"mid"}, Outputs: []string{"b"},
		Steps: []flow.Step{{Type: synth.ProcFillEmpty, Params: map[string]any{}}},
	}
	f.AddRecipe(r1)
	f.AddRecipe(r2)

	synth.Optimize(f)

	require.Len(t, f.Recipes, 1)
	merged := f.Recipes[0]
	assert.Equal(t, "compute_mid_1", merged.Name)
	assert.Equal(t, []string{"b"}, merged.Outputs)
	require.Len(t, merged.Steps, 2)
	assert.Nil(t, f.Dataset("mid"))
	require.NotEmpty(t, f.OptimizationNotes)
	assert.Contains(t, f.OptimizationNotes[0], "merged prepare recipe")
}
