package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/graph/nodes"
	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

func noop(context.Context, *model.TurnState) (model.Patch, error) {
	return model.Patch{}, nil
}

func always(step nodes.Step) func(*model.TurnState) nodes.Step {
	return func(*model.TurnState) nodes.Step { return step }
}

func TestCompileRejectsInvalidTables(t *testing.T) {
	logx.Discard()
	ctx := context.Background()
	table := map[nodes.Step]nodes.Func{nodes.InputShield: noop, nodes.Classify: noop}

	cases := map[string]struct {
		entry nodes.Step
		table map[nodes.Step]nodes.Func
		edges []nodes.Edge
	}{
		"entry is end": {
			entry: nodes.End,
			table: table,
		},
		"unknown target": {
			entry: nodes.InputShield,
			table: table,
			edges: []nodes.Edge{
				{From: nodes.InputShield, To: []nodes.Step{nodes.Tools}, Decide: always(nodes.Tools)},
				{From: nodes.Classify, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
			},
		},
		"missing outgoing edge": {
			entry: nodes.InputShield,
			table: table,
			edges: []nodes.Edge{
				{From: nodes.InputShield, To: []nodes.Step{nodes.Classify}, Decide: always(nodes.Classify)},
			},
		},
		"duplicate edge": {
			entry: nodes.InputShield,
			table: table,
			edges: []nodes.Edge{
				{From: nodes.InputShield, To: []nodes.Step{nodes.Classify}, Decide: always(nodes.Classify)},
				{From: nodes.InputShield, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
				{From: nodes.Classify, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
			},
		},
		"edge from unknown node": {
			entry: nodes.InputShield,
			table: table,
			edges: []nodes.Edge{
				{From: nodes.InputShield, To: []nodes.Step{nodes.Classify}, Decide: always(nodes.Classify)},
				{From: nodes.Classify, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
				{From: nodes.Tools, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
			},
		},
		"no targets": {
			entry: nodes.InputShield,
			table: table,
			edges: []nodes.Edge{
				{From: nodes.InputShield, Decide: always(nodes.Classify)},
				{From: nodes.Classify, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(ctx, tc.entry, tc.table, tc.edges, 0, nil)
			assert.Error(t, err)
		})
	}
}

func TestEngineLoopsAndRecordsPath(t *testing.T) {
	logx.Discard()
	table := map[nodes.Step]nodes.Func{
		nodes.AgentCapable: func(context.Context, *model.TurnState) (model.Patch, error) {
			return model.Patch{}, nil
		},
		nodes.Tools: func(context.Context, *model.TurnState) (model.Patch, error) {
			return model.Patch{ToolRounds: 1}, nil
		},
	}
	edges := []nodes.Edge{
		{
			From: nodes.AgentCapable,
			To:   []nodes.Step{nodes.Tools, nodes.End},
			Decide: func(st *model.TurnState) nodes.Step {
				if st.ToolRounds < 2 {
					return nodes.Tools
				}
				return nodes.End
			},
		},
		{From: nodes.Tools, To: []nodes.Step{nodes.AgentCapable}, Decide: always(nodes.AgentCapable)},
	}
	exec, err := Compile(context.Background(), nodes.AgentCapable, table, edges, 0, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []nodes.Step{nodes.Tools, nodes.End}, exec.Targets(nodes.AgentCapable))

	var seen []string
	st := model.NewTurnState(model.TurnInput{ThreadID: "t", Query: "q"}, nil)
	st.WithEmitter(model.EmitterFunc(func(ev model.Event) {
		if ev.Type == model.EventNode {
			seen = append(seen, ev.Text)
		}
	}))

	out, err := exec.Invoke(context.Background(), st)
	require.NoError(t, err)
	want := []string{"agent_capable", "tools", "agent_capable", "tools", "agent_capable"}
	assert.Equal(t, want, out.Path)
	assert.Equal(t, want, seen)
	assert.Equal(t, 2, out.ToolRounds)
}

func TestEngineRejectsUndeclaredDecision(t *testing.T) {
	logx.Discard()
	table := map[nodes.Step]nodes.Func{nodes.InputShield: noop, nodes.Classify: noop}
	edges := []nodes.Edge{
		{From: nodes.InputShield, To: []nodes.Step{nodes.Classify, nodes.End}, Decide: always(nodes.Tools)},
		{From: nodes.Classify, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)},
	}
	exec, err := Compile(context.Background(), nodes.InputShield, table, edges, 0, nil)
	require.NoError(t, err)

	_, err = exec.Invoke(context.Background(), model.NewTurnState(model.TurnInput{ThreadID: "t"}, nil))
	assert.ErrorContains(t, err, "undeclared")
}

func TestEngineStopsOnCancelledContext(t *testing.T) {
	logx.Discard()
	called := false
	table := map[nodes.Step]nodes.Func{
		nodes.InputShield: func(context.Context, *model.TurnState) (model.Patch, error) {
			called = true
			return model.Patch{}, nil
		},
	}
	edges := []nodes.Edge{{From: nodes.InputShield, To: []nodes.Step{nodes.End}, Decide: always(nodes.End)}}
	exec, err := Compile(context.Background(), nodes.InputShield, table, edges, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Invoke(ctx, model.NewTurnState(model.TurnInput{ThreadID: "t"}, nil))
	assert.Error(t, err)
	assert.False(t, called)
}

func TestProductionGraphDeclaresAllSteps(t *testing.T) {
	h := newHarness()
	logx.Discard()
	exec, err := BuildGraph(context.Background(), h.config())
	require.NoError(t, err)

	for _, step := range nodes.Steps() {
		assert.NotEmpty(t, exec.Targets(step), step.String())
	}
	assert.ElementsMatch(t, []nodes.Step{nodes.ToolAuth, nodes.Tools, nodes.OutputShield}, exec.Targets(nodes.AgentCapable))
	assert.Equal(t, []nodes.Step{nodes.End}, exec.Targets(nodes.OutputShield))
}
