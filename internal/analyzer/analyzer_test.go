package analyzer_test

import (
	"testing"

	"github.com/leapstack-labs/leapflow/internal/analyzer"
	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/leapstack-labs/leapflow/pkg/pyscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(ts []*transform.Transformation) []transform.Kind {
	out := make([]transform.Kind, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Kind)
	}
	return out
}

func TestAnalyze_ReadWrite(t *testing.T) {
	src := `import pandas as pd
df = pd.read_csv('sales.csv')
df.to_parquet('sales.parquet')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)

	read := ts[0]
	assert.Equal(t, transform.KindRead, read.Kind)
	assert.Equal(t, "df", read.Target)
	assert.Equal(t, "sales.csv", read.StringParam(transform.ParamPath))
	assert.Equal(t, "csv", read.StringParam(transform.ParamFormat))
	assert.Equal(t, 2, read.SourceLine)

	write := ts[1]
	assert.Equal(t, transform.KindWrite, write.Kind)
	assert.Equal(t, "df", write.Source)
	assert.Equal(t, "parquet", write.StringParam(transform.ParamFormat))
}

func TestAnalyze_ChainOrderPreserved(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
out = df.rename(columns={'a': 'b'}).fillna(0).head(10)
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)

	assert.Equal(t, []transform.Kind{
		transform.KindRead,
		transform.KindRenameColumns,
		transform.KindFillMissing,
		transform.KindTopN,
	}, kinds(ts))

	// The chain starts from the real receiver and ends at the real
	// target; intermediates are synthetic.
	assert.Equal(t, "df", ts[1].Source)
	assert.Equal(t, "out", ts[3].Target)

	mapping := ts[1].PairsParam(transform.ParamMapping)
	require.Len(t, mapping, 1)
	assert.Equal(t, transform.Pair{Key: "a", Value: "b"}, mapping[0])

	assert.Equal(t, "10", ts[3].StringParam(transform.ParamN))
}

func TestAnalyze_InPlaceChain(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df = df.dropna(subset=['id']).sort_values('id')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 3)

	assert.Equal(t, transform.KindDropMissing, ts[1].Kind)
	assert.Equal(t, []string{"id"}, ts[1].Columns)
	assert.Equal(t, transform.KindSort, ts[2].Kind)
	assert.Equal(t, "df", ts[2].Target)
}

func TestAnalyze_ModuleMergeAndGroup(t *testing.T) {
	src := `left = pd.read_csv('orders.csv')
right = pd.read_csv('customers.csv')
merged = pd.merge(left, right, on=['id'], how='left')
result = merged.groupby(['id']).agg({'amt': 'sum'})
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 4)

	merge := ts[2]
	assert.Equal(t, transform.KindMerge, merge.Kind)
	assert.Equal(t, "left", merge.Source)
	assert.Equal(t, "right", merge.StringParam(transform.ParamOther))
	assert.Equal(t, "merged", merge.Target)
	assert.Equal(t, "left", merge.StringParam(transform.ParamHow))
	assert.Equal(t, []string{"id"}, merge.StringsParam(transform.ParamOn))

	group := ts[3]
	assert.Equal(t, transform.KindGroupAggregate, group.Kind)
	assert.Equal(t, "merged", group.Source)
	assert.Equal(t, "result", group.Target)
	assert.Equal(t, []string{"id"}, group.StringsParam(transform.ParamKeys))
	aggs := group.PairsParam(transform.ParamAggregates)
	require.Len(t, aggs, 1)
	assert.Equal(t, transform.Pair{Key: "amt", Value: "sum"}, aggs[0])
}

func TestAnalyze_GroupbySelectionReduce(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
res = df.groupby('region')['amount'].sum()
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)

	group := ts[1]
	assert.Equal(t, transform.KindGroupAggregate, group.Kind)
	assert.Equal(t, []string{"region"}, group.StringsParam(transform.ParamKeys))
	aggs := group.PairsParam(transform.ParamAggregates)
	require.Len(t, aggs, 1)
	assert.Equal(t, transform.Pair{Key: "amount", Value: "sum"}, aggs[0])
	assert.Equal(t, "res", group.Target)
}

func TestAnalyze_ColumnAssignments(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df['name_u'] = df['name'].str.upper()
df['when'] = pd.to_datetime(df['when'], format='%Y-%m-%d')
df['total'] = df['price'] * df['qty']
df['age'] = df['age'].fillna(0)
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 5)

	str := ts[1]
	assert.Equal(t, transform.KindStringTransform, str.Kind)
	assert.Equal(t, []string{"name_u"}, str.Columns)
	assert.Equal(t, "upper", str.StringParam(transform.ParamTransform))
	assert.Equal(t, "name", str.StringParam(transform.ParamSourceCol))

	date := ts[2]
	assert.Equal(t, transform.KindDateParse, date.Kind)
	assert.Equal(t, "%Y-%m-%d", date.StringParam(transform.ParamFormat))

	create := ts[3]
	assert.Equal(t, transform.KindCreateColumn, create.Kind)
	assert.Equal(t, "price * qty", create.StringParam(transform.ParamExpression))

	fill := ts[4]
	assert.Equal(t, transform.KindFillMissing, fill.Kind)
	assert.Equal(t, []string{"age"}, fill.Columns)
	assert.Equal(t, "0", fill.StringParam(transform.ParamValue))
}

func TestAnalyze_BooleanMaskFilter(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
adults = df[df['age'] >= 18]
seniors = df[(df['age'] >= 65) & (df['active'] == True)]
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 3)

	assert.Equal(t, transform.KindFilter, ts[1].Kind)
	assert.Equal(t, "age >= 18", ts[1].StringParam(transform.ParamCondition))
	assert.Equal(t, "adults", ts[1].Target)

	assert.Equal(t, "(age >= 65) and (active == True)",
		ts[2].StringParam(transform.ParamCondition))
}

func TestAnalyze_ColumnSelection(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
slim = df[['id', 'name']]
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)

	sel := ts[1]
	assert.Equal(t, transform.KindDropColumns, sel.Kind)
	assert.Equal(t, []string{"id", "name"}, sel.Columns)
	keep, _ := sel.Params[transform.ParamKeep].(bool)
	assert.True(t, keep)
}

func TestAnalyze_SingleColumnSelection(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
names = df['name']
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)

	sel := ts[1]
	assert.Equal(t, transform.KindDropColumns, sel.Kind)
	assert.Equal(t, "df", sel.Source)
	assert.Equal(t, "names", sel.Target)
	assert.Equal(t, []string{"name"}, sel.Columns)
	keep, _ := sel.Params[transform.ParamKeep].(bool)
	assert.True(t, keep)
}

func TestAnalyze_PlainRebinding(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
backup = df
backup.to_csv('b.csv')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 3)

	alias := ts[1]
	assert.Equal(t, transform.KindAlias, alias.Kind)
	assert.Equal(t, "df", alias.Source)
	assert.Equal(t, "backup", alias.Target)

	assert.Equal(t, transform.KindWrite, ts[2].Kind)
	assert.Equal(t, "backup", ts[2].Source)
}

func TestAnalyze_ConcatAndDistinct(t *testing.T) {
	src := `a = pd.read_csv('a.csv')
b = pd.read_csv('b.csv')
both = pd.concat([a, b])
uniq = both.drop_duplicates(subset=['id'])
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 4)

	concat := ts[2]
	assert.Equal(t, transform.KindConcat, concat.Kind)
	assert.Equal(t, "a", concat.Source)
	assert.Equal(t, []string{"b"}, concat.StringsParam(transform.ParamOther))

	distinct := ts[3]
	assert.Equal(t, transform.KindDistinct, distinct.Kind)
	assert.Equal(t, []string{"id"}, distinct.Columns)
}

func TestAnalyze_UnknownDegradesGracefully(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df2 = df.explode('tags')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)

	unk := ts[1]
	assert.Equal(t, transform.KindUnknown, unk.Kind)
	assert.True(t, unk.RequiresFallback())
	assert.Contains(t, unk.StringParam(transform.ParamDescription), "explode")
}

func TestAnalyze_BlockRequiresFallback(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
def clean(x):
    return x.strip()
df.to_csv('b.csv')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 3)

	assert.Equal(t, transform.KindUnknown, ts[1].Kind)
	assert.Equal(t, transform.NoteFallback, ts[1].Notes)
	assert.Equal(t, transform.KindWrite, ts[2].Kind)
}

func TestAnalyze_PassthroughSkipped(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df2 = df.reset_index().copy()
df2.to_csv('b.csv')
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, transform.KindRead, ts[0].Kind)
	assert.Equal(t, transform.KindWrite, ts[1].Kind)
}

func TestAnalyze_RollingWindow(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df['avg7'] = df['sales'].rolling(7).mean()
smoothed = df.rolling(7).mean()
`
	ts, err := analyzer.Analyze(src)
	require.NoError(t, err)

	// The frame-level form becomes a window transformation.
	last := ts[len(ts)-1]
	assert.Equal(t, transform.KindWindow, last.Kind)
	assert.Equal(t, "rolling_mean", last.StringParam(transform.ParamMethod))
	assert.Equal(t, "7", last.StringParam(transform.ParamWindowSize))
}

func TestAnalyze_ParseErrorPropagates(t *testing.T) {
	_, err := analyzer.Analyze("df = pd.read_csv('a.csv'\n")
	require.Error(t, err)
	var perr *pyscript.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestAnalyze_Determinism(t *testing.T) {
	src := `df = pd.read_csv('a.csv')
df = df.rename(columns={'a': 'b', 'c': 'd'}).fillna(0)
df.to_csv('out.csv')
`
	first, err := analyzer.Analyze(src)
	require.NoError(t, err)
	second, err := analyzer.Analyze(src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
