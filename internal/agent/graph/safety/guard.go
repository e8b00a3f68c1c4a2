package safety

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/chative/lending-agent/internal/agent/graph/parsers"
	"github.com/chative/lending-agent/internal/agent/graph/prompts"
	"github.com/chative/lending-agent/internal/agent/model"
)

// GuardChecker asks a guard chat model for a safe/unsafe verdict.
type GuardChecker struct {
	model einomodel.BaseChatModel
}

func NewGuardChecker(m einomodel.BaseChatModel) *GuardChecker {
	return &GuardChecker{model: m}
}

func (g *GuardChecker) Check(ctx context.Context, userText, responseText string) (model.SafetyCheckResult, error) {
	msgs, err := prompts.RenderGuard(ctx, userText, responseText)
	if err != nil {
		return model.SafetyCheckResult{}, err
	}
	out, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return model.SafetyCheckResult{}, fmt.Errorf("guard model: %w", err)
	}
	if out == nil {
		return model.SafetyCheckResult{}, fmt.Errorf("guard model: empty response")
	}
	return parsers.ParseGuardVerdict(out.Content)
}

var _ Checker = (*GuardChecker)(nil)
