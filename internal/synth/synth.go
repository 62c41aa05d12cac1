// Package synth lowers an ordered transformation sequence into a Flow of
// datasets and recipes.
//
// Consecutive column-level transformations on one frame collapse into a
// single multi-step prepare recipe; relational transformations flush that
// buffer and become dedicated recipes. Generation is deterministic: the
// same input always yields the same flow, byte for byte.
package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/leapstack-labs/leapflow/internal/transform"
)

// Generate builds a flow from the analyzer's output. It never fails:
// unsupported transformations degrade to code recipes with an attached
// recommendation.
func Generate(ts []*transform.Transformation, flowName string, optimize bool) *flow.Flow {
	g := &generator{
		flow:    flow.New(flowName),
		streams: map[string]*stream{},
		seq:     map[flow.RecipeKind]int{},
	}
	for _, t := range ts {
		g.consume(t)
	}
	g.flushAll()
	if optimize {
		Optimize(g.flow)
	}
	return g.flow
}

// stream tracks one frame variable's position in the flow: the dataset it
// currently denotes plus any column-level steps buffered since the last
// flush.
type stream struct {
	cur       string // current dataset name
	steps     []flow.Step
	stepLines []int
}

type generator struct {
	flow    *flow.Flow
	streams map[string]*stream
	seq     map[flow.RecipeKind]int
}

// consume dispatches one transformation. The switch is exhaustive over
// the kind enumeration; new kinds must be handled here explicitly.
func (g *generator) consume(t *transform.Transformation) {
	if t.RequiresFallback() {
		g.codeRecipe(t)
		return
	}
	switch t.Kind {
	case transform.KindRead:
		g.read(t)
	case transform.KindRenameColumns, transform.KindDropColumns,
		transform.KindCreateColumn, transform.KindFillMissing,
		transform.KindDropMissing, transform.KindTypeCast,
		transform.KindStringTransform, transform.KindDateParse:
		g.bufferStep(t)
	case transform.KindWrite:
		g.write(t)
	case transform.KindFilter:
		g.single(t, flow.RecipeFilter, "_filtered", filterSettings(t))
	case transform.KindSort:
		g.single(t, flow.RecipeSort, "_sorted", sortSettings(t))
	case transform.KindMerge:
		g.merge(t)
	case transform.KindGroupAggregate:
		g.group(t)
	case transform.KindConcat:
		g.concat(t)
	case transform.KindWindow:
		g.single(t, flow.RecipeWindow, "_windowed", windowSettings(t))
	case transform.KindDistinct:
		g.single(t, flow.RecipeDistinct, "_distinct", distinctSettings(t))
	case transform.KindTopN:
		g.single(t, flow.RecipeTopN, "_top", topNSettings(t))
	case transform.KindSample:
		g.single(t, flow.RecipeSampling, "_sampled", sampleSettings(t))
	case transform.KindAlias:
		g.alias(t)
	case transform.KindPivot, transform.KindUnknown:
		g.codeRecipe(t)
	}
}

// streamFor returns the stream a variable denotes, creating a placeholder
// input dataset for variables never seen before.
func (g *generator) streamFor(varName string) *stream {
	if s, ok := g.streams[varName]; ok {
		return s
	}
	name := g.uniqueDataset(varName)
	g.flow.AddDataset(&flow.Dataset{
		Name:           name,
		Role:           flow.RoleInput,
		SourceVariable: varName,
	})
	s := &stream{cur: name}
	g.streams[varName] = s
	return s
}

// rekey moves a stream's binding after an operation. With no target, or
// the target equal to the source, the result stays with the source
// variable. Rebinding to a different target drops a synthetic chain
// variable (containing '#', dead once threaded) but forks a real source
// variable back to its pre-operation state: deriving a new frame never
// unbinds the frame it came from.
func (g *generator) rekey(from, to string, s *stream, prev stream) {
	if to == "" || to == from {
		if from != "" {
			g.streams[from] = s
		}
		return
	}
	if from != "" {
		if strings.Contains(from, "#") {
			delete(g.streams, from)
		} else {
			g.streams[from] = &stream{
				cur:       prev.cur,
				steps:     append([]flow.Step(nil), prev.steps...),
				stepLines: append([]int(nil), prev.stepLines...),
			}
		}
	}
	g.streams[to] = s
}

func (g *generator) read(t *transform.Transformation) {
	name := g.uniqueDataset(t.Target)
	d := g.flow.AddDataset(&flow.Dataset{
		Name:           name,
		Role:           flow.RoleInput,
		SourceVariable: t.Target,
		SourceLine:     t.SourceLine,
	})
	g.streams[t.Target] = &stream{cur: d.Name}
}

func (g *generator) bufferStep(t *transform.Transformation) {
	s := g.streamFor(t.Source)
	// A step assigned to a different real variable travels with the
	// target's stream only; pending source steps materialize first so
	// the fork point is a concrete dataset.
	if t.Target != "" && t.Target != t.Source && !strings.Contains(t.Source, "#") {
		g.flush(s)
	}
	prev := *s
	s.steps = append(s.steps, stepFor(t))
	s.stepLines = append(s.stepLines, t.SourceLine)
	g.rekey(t.Source, t.Target, s, prev)
}

// alias binds a second variable to the dataset another one denotes.
// Buffered steps materialize first so both names mean the same dataset.
func (g *generator) alias(t *transform.Transformation) {
	s := g.streamFor(t.Source)
	g.flush(s)
	g.streams[t.Target] = &stream{cur: s.cur}
}

func (g *generator) write(t *transform.Transformation) {
	s := g.streamFor(t.Source)
	g.flush(s)
	d := g.flow.Dataset(s.cur)
	d.Role = flow.RoleOutput
	if d.SourceLine == 0 {
		d.SourceLine = t.SourceLine
	}
}

// single lowers a one-input relational transformation to its dedicated
// recipe kind.
func (g *generator) single(t *transform.Transformation, kind flow.RecipeKind, suffix string, params map[string]any) {
	s := g.streamFor(t.Source)
	g.flush(s)
	prev := *s
	out := g.outputName(t.Target, s.cur, suffix)
	r := &flow.Recipe{
		Name:    g.recipeName(kind, out),
		Kind:    kind,
		Inputs:  []string{s.cur},
		Outputs: []string{out},
		Params:  params,
	}
	if t.SourceLine > 0 {
		r.SourceLines = []int{t.SourceLine}
	}
	if t.Notes != "" {
		r.Notes = []string{t.Notes}
	}
	g.flow.AddRecipe(r)
	s.cur = out
	g.rekey(t.Source, t.Target, s, prev)
}

func (g *generator) merge(t *transform.Transformation) {
	left := g.streamFor(t.Source)
	g.flush(left)
	prev := *left
	p := decode[mergeParams](t.Params)
	right := g.streamFor(p.Other)
	g.flush(right)

	out := g.outputName(t.Target, left.cur, "_joined")
	r := &flow.Recipe{
		Name:    g.recipeName(flow.RecipeJoin, out),
		Kind:    flow.RecipeJoin,
		Inputs:  []string{left.cur, right.cur},
		Outputs: []string{out},
	}
	r.SetJoin(joinSettings(p))
	if t.SourceLine > 0 {
		r.SourceLines = []int{t.SourceLine}
	}
	g.flow.AddRecipe(r)

	s := &stream{cur: out}
	g.rekey(t.Source, t.Target, s, prev)
}

func (g *generator) group(t *transform.Transformation) {
	s := g.streamFor(t.Source)
	g.flush(s)
	prev := *s
	out := g.outputName(t.Target, s.cur, "_grouped")
	r := &flow.Recipe{
		Name:    g.recipeName(flow.RecipeGroup, out),
		Kind:    flow.RecipeGroup,
		Inputs:  []string{s.cur},
		Outputs: []string{out},
	}
	r.SetGroup(groupSettings(t))
	if t.SourceLine > 0 {
		r.SourceLines = []int{t.SourceLine}
	}
	if t.Notes != "" {
		r.Notes = []string{t.Notes}
	}
	g.flow.AddRecipe(r)
	s.cur = out
	g.rekey(t.Source, t.Target, s, prev)
}

func (g *generator) concat(t *transform.Transformation) {
	var (
		inputs []string
		first  *stream
		prev   stream
	)
	if t.Source != "" {
		first = g.streamFor(t.Source)
		g.flush(first)
		prev = *first
		inputs = append(inputs, first.cur)
	}
	for _, other := range t.StringsParam(transform.ParamOther) {
		os := g.streamFor(other)
		g.flush(os)
		inputs = append(inputs, os.cur)
	}
	base := "manual"
	switch {
	case first != nil:
		base = first.cur
	case len(inputs) > 0:
		base = inputs[0]
	}
	out := g.outputName(t.Target, base, "_stacked")
	r := &flow.Recipe{
		Name:    g.recipeName(flow.RecipeStack, out),
		Kind:    flow.RecipeStack,
		Inputs:  inputs,
		Outputs: []string{out},
	}
	if t.SourceLine > 0 {
		r.SourceLines = []int{t.SourceLine}
	}
	g.flow.AddRecipe(r)
	s := &stream{cur: out}
	g.rekey(t.Source, t.Target, s, prev)
}

// codeRecipe lowers an unsupported transformation to a code recipe with a
// generated stub, plus a flow-level recommendation. The conversion never
// fails on unsupported operations.
func (g *generator) codeRecipe(t *transform.Transformation) {
	var (
		inputs []string
		s      *stream
		prev   stream
	)
	if t.Source != "" {
		s = g.streamFor(t.Source)
		g.flush(s)
		prev = *s
		inputs = []string{s.cur}
	}

	base := "manual"
	if s != nil {
		base = s.cur
	}
	out := g.outputName(t.Target, base, "_coded")
	r := &flow.Recipe{
		Name:    g.recipeName(flow.RecipeCode, out),
		Kind:    flow.RecipeCode,
		Inputs:  inputs,
		Outputs: []string{out},
	}
	desc := t.StringParam(transform.ParamDescription)
	if desc == "" {
		desc = string(t.Kind)
	}
	r.SetCode(codeStub(desc, t.SourceLine))
	if t.SourceLine > 0 {
		r.SourceLines = []int{t.SourceLine}
	}
	r.Notes = []string{"requires manual implementation"}
	g.flow.AddRecipe(r)
	g.flow.AddRecommendation(fmt.Sprintf(
		"recipe %s needs manual implementation: %s", r.Name, desc))

	if s == nil {
		s = &stream{}
	}
	s.cur = out
	s.steps, s.stepLines = nil, nil
	g.rekey(t.Source, t.Target, s, prev)
}

func codeStub(desc string, line int) string {
	var b strings.Builder
	b.WriteString("# TODO: implement manually\n")
	b.WriteString("# original operation: " + desc + "\n")
	if line > 0 {
		fmt.Fprintf(&b, "# source line: %d\n", line)
	}
	return b.String()
}

// flush emits the stream's buffered steps as one prepare recipe and
// advances the stream to the recipe's output dataset. A stream with no
// buffered steps is left untouched.
func (g *generator) flush(s *stream) {
	if len(s.steps) == 0 {
		return
	}
	out := g.uniqueDataset(s.cur + "_prepared")
	r := &flow.Recipe{
		Name:    g.recipeName(flow.RecipePrepare, out),
		Kind:    flow.RecipePrepare,
		Inputs:  []string{s.cur},
		Outputs: []string{out},
	}
	r.Steps = s.steps
	r.SourceLines = s.stepLines
	g.flow.AddRecipe(r)
	s.cur = out
	s.steps, s.stepLines = nil, nil
}

// flushAll flushes remaining buffers at end of input, in the order the
// streams' datasets appear in the flow so output is deterministic.
func (g *generator) flushAll() {
	datasets := g.flow.Datasets
	for _, d := range datasets {
		var vars []string
		for v, s := range g.streams {
			if s.cur == d.Name && len(s.steps) > 0 {
				vars = append(vars, v)
			}
		}
		sort.Strings(vars)
		for _, v := range vars {
			g.flush(g.streams[v])
		}
	}
}

// outputName picks the dataset name a recipe writes: the real target
// variable when the analyzer provided one, otherwise the input name plus
// an operation suffix. Synthetic chain variables (containing '#') never
// become dataset names.
func (g *generator) outputName(target, base, suffix string) string {
	if target != "" && !strings.Contains(target, "#") && g.flow.Dataset(target) == nil {
		return target
	}
	return g.uniqueDataset(base + suffix)
}

// uniqueDataset returns name, or name with a numeric suffix when a
// dataset with that name already exists.
func (g *generator) uniqueDataset(name string) string {
	if g.flow.Dataset(name) == nil {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if g.flow.Dataset(candidate) == nil {
			return candidate
		}
	}
}

// recipeName builds compute_<output>_<n> with a per-kind counter, so
// recipe names stay unique within a run while dataset names stay stable.
func (g *generator) recipeName(kind flow.RecipeKind, out string) string {
	g.seq[kind]++
	return fmt.Sprintf("compute_%s_%d", out, g.seq[kind])
}
