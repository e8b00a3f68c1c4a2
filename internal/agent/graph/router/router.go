// Package router selects the model tier for a user message.
//
// The primary path asks a cheap classifier model for a one-word verdict. Any
// failure of that call falls back to Rules, a pure function over the text.
package router

import (
	"context"
	"errors"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/chative/lending-agent/internal/agent/graph/parsers"
	"github.com/chative/lending-agent/internal/agent/graph/prompts"
	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// Source tells which path produced a decision.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Decision is the result of Classify.
type Decision struct {
	Tier   model.Tier
	Source Source
	// Err is the classification failure that triggered the fallback.
	Err error
}

// Router classifies messages. It is safe for concurrent use.
type Router struct {
	model   einomodel.BaseChatModel
	tools   string
	rules   Rules
	timeout time.Duration
}

// New creates a Router. A nil classifier model always uses the rules.
func New(m einomodel.BaseChatModel, toolDescriptions string, rules Rules, timeout time.Duration) *Router {
	return &Router{model: m, tools: toolDescriptions, rules: rules, timeout: timeout}
}

// Classify never fails: every error path resolves to the rule-based tier.
func (r *Router) Classify(ctx context.Context, text string) Decision {
	tier, err := r.classifyWithModel(ctx, text)
	if err == nil {
		return Decision{Tier: tier, Source: SourceModel}
	}
	fallback := r.rules.Classify(text)
	logx.Debug().Err(err).Str("tier", string(fallback)).Msg("Classifier unavailable - using rule fallback")
	return Decision{Tier: fallback, Source: SourceFallback, Err: err}
}

var errNoModel = errors.New("no classifier model configured")

func (r *Router) classifyWithModel(ctx context.Context, text string) (model.Tier, error) {
	if r.model == nil {
		return "", errNoModel
	}
	msgs, err := prompts.RenderClassifier(ctx, r.tools, text)
	if err != nil {
		return "", err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out, err := r.model.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", errors.New("classifier returned no message")
	}
	verdict, err := parsers.ParseRouteVerdict(out.Content)
	if err != nil {
		return "", err
	}
	return verdict.Tier(), nil
}
