package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/graph/parsers"
)

//go:embed template/guard_prompt.txt
var guardPrompt string

// RenderGuard builds the guard model input. An empty response screens the
// user message; otherwise the assistant response is screened in context.
func RenderGuard(ctx context.Context, userText, responseText string) ([]*schema.Message, error) {
	var cats strings.Builder
	for _, h := range parsers.HazardCategories {
		fmt.Fprintf(&cats, "%s: %s.\n", h.Code, h.Name)
	}

	subject := "User"
	conv := "User: " + userText
	if responseText != "" {
		subject = "Agent"
		conv += "\n\nAgent: " + responseText
	}

	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(guardPrompt))
	msgs, err := tpl.Format(ctx, map[string]any{
		"Subject":      subject,
		"Categories":   strings.TrimRight(cats.String(), "\n"),
		"Conversation": conv,
	})
	if err != nil {
		return nil, fmt.Errorf("guard prompt render: %w", err)
	}
	return msgs, nil
}
