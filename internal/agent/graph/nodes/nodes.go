package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/graph/safety"
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// CapableFailureMessage is the assistant reply when the capable tier fails.
const CapableFailureMessage = "I'm sorry, I ran into a problem while working on your request. Please try again in a moment."

// InputShield screens the user message. An unsafe message ends the turn with
// a fixed refusal.
func (d *Deps) InputShield(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	res := d.Shield.CheckInput(ctx, st.UserText())
	if err := ctx.Err(); err != nil {
		return model.Patch{}, err
	}
	if res.IsSafe {
		return model.Patch{}, nil
	}

	logx.Info().
		Str("thread_id", st.ThreadID).
		Strs("categories", res.ViolationCategories).
		Str("explanation", res.Explanation).
		Msg("Input blocked by safety shield")
	d.Metrics.SafetyBlocked("input")
	d.audit(ctx, st, model.AuditEvent{
		Kind:    model.AuditInputBlocked,
		Outcome: "blocked",
		Detail:  map[string]string{"categories": strings.Join(res.ViolationCategories, ",")},
	})
	st.Emit(model.Event{Type: model.EventSafetyOverride, Text: safety.InputRefusal})

	return model.Patch{
		SafetyBlocked: true,
		Messages:      []*schema.Message{schema.AssistantMessage(safety.InputRefusal, nil)},
	}, nil
}

// Classify picks the model tier.
func (d *Deps) Classify(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	decision := d.Router.Classify(ctx, st.UserText())
	if err := ctx.Err(); err != nil {
		return model.Patch{}, err
	}
	d.Metrics.Classified(string(decision.Tier), string(decision.Source))
	logx.Debug().
		Str("thread_id", st.ThreadID).
		Str("tier", string(decision.Tier)).
		Str("source", string(decision.Source)).
		Msg("Message classified")
	return model.Patch{ModelTier: decision.Tier}, nil
}

// AgentFast answers with the fast tier. Its output is buffered: a text answer
// is released as tokens, while a tool request or a failure discards the
// answer and escalates to the capable tier.
func (d *Deps) AgentFast(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	input, err := d.modelInput(ctx, st)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build fast tier input")
		d.Metrics.Escalated("error")
		return model.Patch{Escalated: true}, nil
	}

	out, fragments, err := d.generate(ctx, d.Fast, input, nil)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Patch{}, ctxErr
	}
	if err != nil {
		logx.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("Fast tier failed - escalating")
		d.Metrics.Escalated("error")
		return model.Patch{Escalated: true}, nil
	}

	cost := d.usageCost(st, AgentFast, model.TierFast, d.FastModelName, out)
	if len(out.ToolCalls) > 0 {
		logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Fast tier requested tools - escalating")
		d.Metrics.Escalated("tool_call")
		return model.Patch{Escalated: true, CostUSD: cost}, nil
	}
	if strings.TrimSpace(out.Content) == "" {
		d.Metrics.Escalated("empty")
		return model.Patch{Escalated: true, CostUSD: cost}, nil
	}

	for _, f := range fragments {
		st.Emit(model.Event{Type: model.EventToken, Text: f})
	}
	return model.Patch{
		Messages: []*schema.Message{schema.AssistantMessage(out.Content, nil)},
		CostUSD:  cost,
	}, nil
}

// AgentCapable answers with the capable tier, streaming tokens live. Tool
// calls without an id get a turn-unique call_N id.
func (d *Deps) AgentCapable(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	limit := toolLimitReached(st.ToolRounds, d.MaxToolRounds)
	var extra []*schema.Message
	if limit {
		extra = append(extra, wrapUpNotice(d.MaxToolRounds))
	}

	input, err := d.modelInput(ctx, st, extra...)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build capable tier input")
		return model.Patch{Messages: []*schema.Message{reply(st, CapableFailureMessage)}}, nil
	}

	logx.Debug().Msg("AI thinking...")
	out, _, err := d.generate(ctx, d.Capable, input, func(text string) {
		st.Emit(model.Event{Type: model.EventToken, Text: text})
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Patch{}, ctxErr
	}
	if err != nil {
		logx.Error().Err(err).Str("thread_id", st.ThreadID).Msg("Capable tier failed")
		return model.Patch{Messages: []*schema.Message{reply(st, CapableFailureMessage)}}, nil
	}

	cost := d.usageCost(st, AgentCapable, model.TierCapable, d.CapableModelName, out)

	if limit && len(out.ToolCalls) > 0 {
		logx.Warn().Int("rounds", st.ToolRounds).Msg("Tool round limit reached - dropping tool calls")
		out.ToolCalls = nil
		if strings.TrimSpace(out.Content) == "" {
			out.Content = reply(st, CapableFailureMessage).Content
		}
	}

	seq := st.ToolCallSeq
	for i := range out.ToolCalls {
		if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
			seq++
			out.ToolCalls[i].ID = fmt.Sprintf("call_%d", seq)
		}
	}

	if len(out.ToolCalls) > 0 {
		logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
	} else {
		logx.Debug().Msg("AI response ready")
	}

	return model.Patch{
		Messages:    []*schema.Message{out},
		ToolCallSeq: seq,
		CostUSD:     cost,
	}, nil
}

// ToolAuth checks the pending batch against role restrictions. Any denial
// refuses the whole batch.
func (d *Deps) ToolAuth(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	results := d.Gateway.Authorize(tools.Calls(st.PendingToolCalls()), st.Caller)
	denied := tools.Denied(results)
	if len(denied) == 0 {
		return model.Patch{}, nil
	}

	for _, r := range results {
		if r.Allowed {
			continue
		}
		d.Metrics.ToolDenied(r.Tool)
		d.audit(ctx, st, model.AuditEvent{
			Kind:    model.AuditToolDenied,
			Tool:    r.Tool,
			Outcome: "denied",
			Detail:  map[string]string{"reason": r.Reason},
		})
	}
	logx.Info().
		Str("thread_id", st.ThreadID).
		Str("role", st.Caller.Role).
		Strs("denied", denied).
		Msg("Tool batch denied")

	return model.Patch{
		Messages: []*schema.Message{reply(st, tools.DenialMessage(denied, st.Caller.Role))},
	}, nil
}

// Tools executes the pending calls in order and appends one tool message per
// call. Failures are reported to the model as JSON error payloads.
func (d *Deps) Tools(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	calls := st.PendingToolCalls()
	tc := tools.ToolContext{ThreadID: st.ThreadID, Caller: st.Caller}

	msgs := make([]*schema.Message, 0, len(calls))
	for _, call := range calls {
		st.Emit(model.Event{Type: model.EventToolInvoked, Text: call.Function.Name})

		res := d.Executor.Execute(ctx, call, tc)
		if err := ctx.Err(); err != nil {
			return model.Patch{}, err
		}

		d.Metrics.ToolExecuted(call.Function.Name, res.Outcome, res.Duration)
		detail := map[string]string{"call_id": call.ID, "duration": res.Duration.String()}
		if res.Err != nil {
			detail["error"] = res.Err.Error()
			logx.Warn().Err(res.Err).Str("tool", call.Function.Name).Str("outcome", res.Outcome).Msg("Tool call failed")
		}
		d.audit(ctx, st, model.AuditEvent{
			Kind:    model.AuditToolExecuted,
			Tool:    call.Function.Name,
			Outcome: res.Outcome,
			Detail:  detail,
		})

		msgs = append(msgs, schema.ToolMessage(res.Content, call.ID))
	}

	return model.Patch{Messages: msgs, ToolRounds: 1}, nil
}

// OutputShield screens the final response and replaces it with a refusal
// when it is unsafe.
func (d *Deps) OutputShield(ctx context.Context, st *model.TurnState) (model.Patch, error) {
	text := st.FinalText()
	if text == "" {
		return model.Patch{}, nil
	}
	res := d.Shield.CheckOutput(ctx, st.UserText(), text)
	if err := ctx.Err(); err != nil {
		return model.Patch{}, err
	}
	if res.IsSafe {
		return model.Patch{}, nil
	}

	logx.Info().
		Str("thread_id", st.ThreadID).
		Strs("categories", res.ViolationCategories).
		Msg("Response replaced by safety shield")
	d.Metrics.SafetyBlocked("output")
	d.audit(ctx, st, model.AuditEvent{
		Kind:    model.AuditOutputOverride,
		Outcome: "replaced",
		Detail:  map[string]string{"categories": strings.Join(res.ViolationCategories, ",")},
	})
	st.Emit(model.Event{Type: model.EventSafetyOverride, Text: safety.OutputRefusal})

	refusal := safety.OutputRefusal
	return model.Patch{ReplaceResponse: &refusal}, nil
}
