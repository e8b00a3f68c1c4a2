package safety

import (
	"context"
	"time"

	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// Checker classifies text against the hazard taxonomy. An empty responseText
// asks for an input check.
type Checker interface {
	Check(ctx context.Context, userText, responseText string) (model.SafetyCheckResult, error)
}

// Refusal messages returned to the user when a shield blocks.
const (
	InputRefusal  = "I'm sorry, but I can't help with that request. If you have a question about your loan or application, I'm happy to assist."
	OutputRefusal = "I'm sorry, but I can't provide that response. Please rephrase your question or contact your loan officer for help."
)

// Shield applies a Checker with a timeout. Input checks fail closed and output
// checks fail open. A Shield without a checker passes everything.
type Shield struct {
	checker Checker
	timeout time.Duration
}

func NewShield(checker Checker, timeout time.Duration) *Shield {
	return &Shield{checker: checker, timeout: timeout}
}

// Enabled reports whether a checker is configured.
func (s *Shield) Enabled() bool {
	return s != nil && s.checker != nil
}

// CheckInput screens a user message. Any error yields is_safe=false.
func (s *Shield) CheckInput(ctx context.Context, text string) model.SafetyCheckResult {
	if !s.Enabled() {
		return model.SafetyCheckResult{IsSafe: true}
	}
	res, err := s.check(ctx, text, "")
	if err != nil {
		logx.Warn().Err(err).Str("direction", "input").Msg("Safety check failed - blocking")
		return model.SafetyCheckResult{
			IsSafe:      false,
			Explanation: "safety check unavailable: " + err.Error(),
		}
	}
	return res
}

// CheckOutput screens a model response in the context of the user message.
// Any error yields is_safe=true.
func (s *Shield) CheckOutput(ctx context.Context, userText, responseText string) model.SafetyCheckResult {
	if !s.Enabled() {
		return model.SafetyCheckResult{IsSafe: true}
	}
	res, err := s.check(ctx, userText, responseText)
	if err != nil {
		logx.Warn().Err(err).Str("direction", "output").Msg("Safety check failed - allowing")
		return model.SafetyCheckResult{
			IsSafe:      true,
			Explanation: "safety check unavailable: " + err.Error(),
		}
	}
	return res
}

func (s *Shield) check(ctx context.Context, userText, responseText string) (model.SafetyCheckResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.checker.Check(ctx, userText, responseText)
}
