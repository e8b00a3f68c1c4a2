package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/chative/lending-agent/internal/agent/graph/conversations"
	"github.com/chative/lending-agent/internal/agent/graph/nodes"
	"github.com/chative/lending-agent/internal/agent/graph/observers"
	"github.com/chative/lending-agent/internal/agent/graph/router"
	"github.com/chative/lending-agent/internal/agent/graph/safety"
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/metrics"
	"github.com/chative/lending-agent/internal/agent/model"
	errx "github.com/chative/lending-agent/internal/core/error"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// Runner executes one turn per call. Turns on different threads may run
// concurrently; a thread must not have two turns in flight.
type Runner interface {
	// Invoke runs the turn and returns its final state.
	Invoke(ctx context.Context, in model.TurnInput) (*model.TurnState, error)
	// Stream runs the turn and delivers its events. The channel is closed
	// after done or error. Cancelling ctx stops the turn silently; callers
	// must either drain the channel or cancel ctx.
	Stream(ctx context.Context, in model.TurnInput) <-chan model.Event
}

// Config holds everything needed to compose the turn graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels and MessagesManager.
type Config struct {
	APIKey         string
	BaseURL        string
	Models         model.ModelsConfig
	Router         model.RouterConfig
	Timeouts       model.TimeoutConfig
	Tools          model.ToolConfig
	ResponsePrompt model.ResponsePromptConfig
	Conversation   model.ConversationConfig
	Checkpoints    model.CheckpointStore
	Audit          model.AuditSink
	Metrics        *metrics.Recorder
	ToolTable      []tools.Tool
}

// GraphConfig holds all service handles needed to build the graph.
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	ToolTable       []tools.Tool
	RoleOverrides   map[string][]string
	Router          model.RouterConfig
	Timeouts        model.TimeoutConfig
	RatePerMinute   float64
	RateBurst       int
	ResponsePrompt  model.ResponsePromptConfig
	MaxToolRounds   int
	Audit           model.AuditSink
	Metrics         *metrics.Recorder
}

type graphRunner struct {
	exec *Executable
	mm   *conversations.MessagesManager
}

// BuildTurnGraph composes ChatModels, MessagesManager, builds the graph, and returns a Runner.
func BuildTurnGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Checkpoints == nil {
		return nil, errx.WrapConfig(errors.New("checkpoint store is nil"))
	}

	registry, err := tools.NewRegistry(cfg.ToolTable)
	if err != nil {
		return nil, errx.WrapConfig(err)
	}
	overrides, err := tools.ParseRoleOverrides(cfg.Tools.RoleOverrides, registry)
	if err != nil {
		return nil, errx.WrapConfig(err)
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Models:  cfg.Models,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.Checkpoints, cfg.Conversation)

	runner, err := BuildRunner(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		ToolTable:       cfg.ToolTable,
		RoleOverrides:   overrides,
		Router:          cfg.Router,
		Timeouts:        cfg.Timeouts,
		RatePerMinute:   cfg.Tools.RatePerMinute,
		RateBurst:       cfg.Tools.Burst,
		ResponsePrompt:  cfg.ResponsePrompt,
		MaxToolRounds:   cfg.Conversation.Tools.MaxRounds,
		Audit:           cfg.Audit,
		Metrics:         cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return runner, nil
}

// BuildRunner compiles the graph from already constructed service handles.
func BuildRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	if config == nil {
		return nil, errx.WrapConfig(errors.New("graph config is nil"))
	}
	if config.MessagesManager == nil {
		return nil, errx.WrapConfig(errors.New("messages manager is nil"))
	}
	exec, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{exec: exec, mm: config.MessagesManager}, nil
}

// BuildGraph validates the configuration and compiles the turn graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (*Executable, error) {
	if config == nil {
		return nil, errx.WrapConfig(errors.New("graph config is nil"))
	}
	if err := config.ChatModels.Validate(); err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry(config.ToolTable)
	if err != nil {
		return nil, errx.WrapConfig(err)
	}
	if err := config.ChatModels.BindTools(registry.Infos()); err != nil {
		return nil, err
	}

	var checker safety.Checker
	if config.ChatModels.Safety != nil {
		checker = safety.NewGuardChecker(config.ChatModels.Safety)
	}

	deps := &nodes.Deps{
		Shield:   safety.NewShield(checker, config.Timeouts.Safety),
		Router:   router.New(config.ChatModels.Classifier, registry.Describe(), router.DefaultRules(config.Router.MaxSimpleWords, config.Router.ToolsMandatory), config.Timeouts.Classifier),
		Fast:     config.ChatModels.Fast,
		Capable:  config.ChatModels.Capable,
		Gateway:  tools.NewGateway(registry, config.RoleOverrides),
		Executor: tools.NewExecutor(registry, tools.NewRateLimiter(config.RatePerMinute, config.RateBurst), config.Timeouts.Tool),
		Audit:    config.Audit,
		Metrics:  config.Metrics,

		FastModelName:    config.ChatModels.FastModelName,
		CapableModelName: config.ChatModels.CapableModelName,
		Prompt:           config.ResponsePrompt,
		GenerateTimeout:  config.Timeouts.Generation,
		AuditTimeout:     config.Timeouts.Audit,
		MaxToolRounds:    config.MaxToolRounds,
	}

	return Compile(ctx, nodes.InputShield, deps.Table(), nodes.Edges(deps.Gateway), maxRunSteps(config.MaxToolRounds), config.Metrics)
}

// maxRunSteps allows the linear path plus three steps per tool round.
func maxRunSteps(rounds int) int {
	if rounds <= 0 {
		rounds = nodes.DefaultMaxToolRounds
	}
	return 10 + rounds*3
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.TurnState, error) {
	return r.run(ctx, in, nil)
}

func (r *graphRunner) Stream(ctx context.Context, in model.TurnInput) <-chan model.Event {
	ch := make(chan model.Event, 64)
	go func() {
		defer close(ch)
		emit := func(ev model.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}
		_, err := r.run(ctx, in, model.EmitterFunc(emit))
		if err != nil {
			if ctx.Err() != nil {
				logx.Debug().Str("thread_id", in.ThreadID).Msg("Turn cancelled")
				return
			}
			emit(model.Event{Type: model.EventError, Text: err.Error()})
			return
		}
		emit(model.Event{Type: model.EventDone})
	}()
	return ch
}

func (r *graphRunner) run(ctx context.Context, in model.TurnInput, em model.Emitter) (*model.TurnState, error) {
	st, err := r.mm.Begin(ctx, in)
	if err != nil {
		return nil, err
	}
	st.WithEmitter(em)

	out, err := r.exec.Invoke(ctx, st, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, fmt.Errorf("turn %s: %w", in.ThreadID, err)
	}

	if err := r.mm.Commit(ctx, out); err != nil {
		logx.Error().Err(err).Str("thread_id", in.ThreadID).Msg("Failed to persist turn")
	}

	logx.Debug().
		Str("thread_id", in.ThreadID).
		Strs("path", out.Path).
		Float64("total_cost_usd", out.TotalCostUSD).
		Msg("Turn finished")
	return out, nil
}
