package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/cloudwego/eino/compose"

	"github.com/chative/lending-agent/internal/agent/graph/nodes"
	"github.com/chative/lending-agent/internal/agent/metrics"
	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// Executable is a compiled turn graph.
type Executable struct {
	runnable compose.Runnable[*model.TurnState, *model.TurnState]
	path     map[nodes.Step][]nodes.Step
}

// Targets returns the declared successors of step.
func (e *Executable) Targets(step nodes.Step) []nodes.Step {
	return slices.Clone(e.path[step])
}

// Invoke runs one turn to END. st is mutated in place and returned.
func (e *Executable) Invoke(ctx context.Context, st *model.TurnState, opts ...compose.Option) (*model.TurnState, error) {
	return e.runnable.Invoke(ctx, st, opts...)
}

// Compile validates the node and edge tables and builds the eino graph.
// Every node needs exactly one outgoing edge and every declared target must
// be END or a node in the table.
func Compile(ctx context.Context, entry nodes.Step, table map[nodes.Step]nodes.Func, edges []nodes.Edge, maxSteps int, rec *metrics.Recorder) (*Executable, error) {
	if _, ok := table[entry]; !ok || entry == nodes.End {
		return nil, fmt.Errorf("entry %s is not a node", entry)
	}

	outgoing := make(map[nodes.Step]nodes.Edge, len(edges))
	for _, e := range edges {
		if _, ok := table[e.From]; !ok {
			return nil, fmt.Errorf("edge from unknown node %s", e.From)
		}
		if _, dup := outgoing[e.From]; dup {
			return nil, fmt.Errorf("node %s has more than one outgoing edge", e.From)
		}
		if len(e.To) == 0 || e.Decide == nil {
			return nil, fmt.Errorf("edge from %s declares no targets", e.From)
		}
		for _, to := range e.To {
			if to == nodes.End {
				continue
			}
			if _, ok := table[to]; !ok {
				return nil, fmt.Errorf("edge from %s targets unknown node %s", e.From, to)
			}
		}
		outgoing[e.From] = e
	}
	for step, fn := range table {
		if fn == nil {
			return nil, fmt.Errorf("node %s has no function", step)
		}
		if _, ok := outgoing[step]; !ok {
			return nil, fmt.Errorf("node %s has no outgoing edge", step)
		}
	}

	g := compose.NewGraph[*model.TurnState, *model.TurnState]()
	for step, fn := range table {
		if err := g.AddLambdaNode(step.String(), wrap(step, fn, rec), compose.WithNodeName(step.String())); err != nil {
			return nil, fmt.Errorf("add node %s: %w", step, err)
		}
	}
	if err := g.AddEdge(compose.START, entry.String()); err != nil {
		return nil, fmt.Errorf("add entry edge: %w", err)
	}

	path := make(map[nodes.Step][]nodes.Step, len(outgoing))
	for from, e := range outgoing {
		path[from] = slices.Clone(e.To)
		if len(e.To) == 1 {
			if err := g.AddEdge(from.String(), e.To[0].String()); err != nil {
				return nil, fmt.Errorf("add edge %s -> %s: %w", from, e.To[0], err)
			}
			continue
		}
		ends := make(map[string]bool, len(e.To))
		for _, to := range e.To {
			ends[to.String()] = true
		}
		if err := g.AddBranch(from.String(), compose.NewGraphBranch(route(e), ends)); err != nil {
			return nil, fmt.Errorf("add branch from %s: %w", from, err)
		}
	}

	// Limit total run steps to avoid infinite loops in branching or tool retries
	if maxSteps < 20 {
		maxSteps = 20
	}
	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(maxSteps), compose.WithGraphName("turn"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Int("nodes", len(table)).Int("max_steps", maxSteps).Msg("Graph compiled successfully")
	return &Executable{runnable: runnable, path: path}, nil
}

// wrap adapts a node to an eino lambda. The engine emits the node event,
// applies the patch and records the visit.
func wrap(step nodes.Step, fn nodes.Func, rec *metrics.Recorder) *compose.Lambda {
	name := step.String()
	return compose.InvokableLambda(func(ctx context.Context, st *model.TurnState) (*model.TurnState, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.Emit(model.Event{Type: model.EventNode, Text: name})
		rec.NodeVisited(name)

		patch, err := fn(ctx, st)
		if err != nil {
			return nil, err
		}
		st.Apply(patch)
		st.Path = append(st.Path, name)
		return st, nil
	})
}

// route checks the edge's decision against its declared targets.
func route(e nodes.Edge) func(context.Context, *model.TurnState) (string, error) {
	return func(_ context.Context, st *model.TurnState) (string, error) {
		next := e.Decide(st)
		if !slices.Contains(e.To, next) {
			return "", fmt.Errorf("edge from %s chose undeclared target %s", e.From, next)
		}
		return next.String(), nil
	}
}
