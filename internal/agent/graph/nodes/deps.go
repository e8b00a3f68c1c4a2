package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/chative/lending-agent/internal/agent/graph/prompts"
	"github.com/chative/lending-agent/internal/agent/graph/router"
	"github.com/chative/lending-agent/internal/agent/graph/safety"
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/metrics"
	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// Func is a graph node. It reads the state and returns a patch; the engine
// applies the patch. An error aborts the turn and is reserved for
// cancellation of ctx.
type Func func(ctx context.Context, st *model.TurnState) (model.Patch, error)

// Deps are the service handles shared by every node. They are built once at
// process start and are safe for concurrent turns.
type Deps struct {
	Shield   *safety.Shield
	Router   *router.Router
	Fast     einomodel.BaseChatModel
	Capable  einomodel.BaseChatModel
	Gateway  *tools.Gateway
	Executor *tools.Executor
	Audit    model.AuditSink
	Metrics  *metrics.Recorder

	FastModelName    string
	CapableModelName string
	Prompt           model.ResponsePromptConfig
	GenerateTimeout  time.Duration
	AuditTimeout     time.Duration
	MaxToolRounds    int
}

const defaultAuditTimeout = 3 * time.Second

// Table returns the node functions keyed by step.
func (d *Deps) Table() map[Step]Func {
	return map[Step]Func{
		InputShield:  d.InputShield,
		Classify:     d.Classify,
		AgentFast:    d.AgentFast,
		AgentCapable: d.AgentCapable,
		ToolAuth:     d.ToolAuth,
		Tools:        d.Tools,
		OutputShield: d.OutputShield,
	}
}

// modelInput prepends the response system prompt to the conversation.
func (d *Deps) modelInput(ctx context.Context, st *model.TurnState, extra ...*schema.Message) ([]*schema.Message, error) {
	sys, err := prompts.RenderResponseSystem(ctx, d.Prompt, st.Caller)
	if err != nil {
		return nil, err
	}
	msgs := make([]*schema.Message, 0, len(st.Messages)+1+len(extra))
	msgs = append(msgs, schema.SystemMessage(sys))
	msgs = append(msgs, st.Messages...)
	msgs = append(msgs, extra...)
	return msgs, nil
}

// generate streams one model answer. Content fragments are passed to live as
// they arrive when live is non-nil, and always returned in order.
func (d *Deps) generate(ctx context.Context, m einomodel.BaseChatModel, input []*schema.Message, live func(string)) (*schema.Message, []string, error) {
	if d.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.GenerateTimeout)
		defer cancel()
	}

	sr, err := m.Stream(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	defer sr.Close()

	var chunks []*schema.Message
	var fragments []string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fragments, err
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			fragments = append(fragments, chunk.Content)
			if live != nil {
				live(chunk.Content)
			}
		}
	}
	if len(chunks) == 0 {
		return nil, fragments, errors.New("model returned an empty stream")
	}
	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fragments, fmt.Errorf("concat stream: %w", err)
	}
	out.Role = schema.Assistant
	return out, fragments, nil
}

// usageCost logs token usage and returns the USD cost of out.
func (d *Deps) usageCost(st *model.TurnState, node Step, tier model.Tier, modelName string, out *schema.Message) float64 {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return 0
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	logx.Debug().
		Str("thread_id", st.ThreadID).
		Str("node", node.String()).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
	d.Metrics.Cost(string(tier), modelName, totalC)
	return totalC
}

// audit records ev best-effort. Failures are logged and never fail the turn.
func (d *Deps) audit(ctx context.Context, st *model.TurnState, ev model.AuditEvent) {
	if d.Audit == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.ThreadID = st.ThreadID
	ev.UserID = st.Caller.UserID
	ev.Role = st.Caller.Role
	ev.CreatedAt = time.Now().UTC()
	timeout := d.AuditTimeout
	if timeout <= 0 {
		timeout = defaultAuditTimeout
	}
	// outlives a cancelled turn, but never the timeout
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := d.Audit.Record(actx, ev); err != nil {
		logx.Warn().Err(err).Str("kind", ev.Kind).Str("thread_id", st.ThreadID).Msg("Failed to record audit event")
	}
}
