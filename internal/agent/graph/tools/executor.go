package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Outcomes reported by Executor.Execute.
const (
	OutcomeOK          = "ok"
	OutcomeUnknown     = "unknown_tool"
	OutcomeBadArgs     = "invalid_arguments"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "tool_failed"
	OutcomeTimeout     = "timeout"
)

// Result is what one tool call produced. Content is always a valid tool
// message body, also when the call failed.
type Result struct {
	Content  string
	Outcome  string
	Err      error
	Duration time.Duration
}

// Executor runs registry handlers with per-call timeout and rate limiting.
type Executor struct {
	registry *Registry
	limiter  *RateLimiter
	timeout  time.Duration
}

func NewExecutor(r *Registry, limiter *RateLimiter, timeout time.Duration) *Executor {
	return &Executor{registry: r, limiter: limiter, timeout: timeout}
}

// Execute never returns an error: failures become a JSON error payload the
// model can read. Callback handlers on ctx observe the call as a tool
// component named after the tool.
func (e *Executor) Execute(ctx context.Context, call schema.ToolCall, tc ToolContext) Result {
	name := call.Function.Name
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "LendingTool",
		Component: components.ComponentOfTool,
	})
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: call.Function.Arguments})

	start := time.Now()
	res := e.run(ctx, name, call.Function.Arguments, tc)
	res.Duration = time.Since(start)

	if res.Err != nil {
		callbacks.OnError(ctx, res.Err)
	} else {
		callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: res.Content})
	}
	return res
}

func (e *Executor) run(ctx context.Context, name, rawArgs string, tc ToolContext) Result {
	t, ok := e.registry.Get(name)
	if !ok {
		return failure(OutcomeUnknown, fmt.Errorf("unknown tool %q", name), "")
	}
	if !e.limiter.Allow(tc.Caller.UserID) {
		return failure(OutcomeRateLimited, fmt.Errorf("rate limit exceeded for %q", tc.Caller.UserID), "")
	}

	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return failure(OutcomeBadArgs, err, "arguments are not a JSON object")
		}
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	out, err := t.Handler(callCtx, args, tc)
	switch {
	case err == nil:
		return Result{Content: out, Outcome: OutcomeOK}
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return failure(OutcomeTimeout, err, "tool did not respond in time")
	default:
		return failure(OutcomeFailed, err, err.Error())
	}
}

func failure(outcome string, err error, message string) Result {
	payload := map[string]string{"error": outcome}
	if message != "" {
		payload["message"] = message
	}
	b, _ := json.Marshal(payload)
	return Result{Content: string(b), Outcome: outcome, Err: err}
}
