package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/classifier_prompt.txt
var classifierSystemPrompt string

// RenderClassifier builds the classifier model input via the Eino prompt
// component, which triggers prompt callbacks.
func RenderClassifier(ctx context.Context, toolDescriptions, message string) ([]*schema.Message, error) {
	if toolDescriptions == "" {
		toolDescriptions = "(none)"
	}
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(classifierSystemPrompt),
		schema.MessagesPlaceholder("user_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Tools":         toolDescriptions,
		"user_messages": []*schema.Message{schema.UserMessage(message)},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier prompt render: %w", err)
	}
	if len(msgs) != 2 {
		return nil, fmt.Errorf("classifier prompt render: unexpected %d messages", len(msgs))
	}
	return msgs, nil
}
