package nodes

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
)

const DefaultMaxToolRounds = 5

// normalizeMaxToolRounds returns a sane default when the provided value is invalid.
func normalizeMaxToolRounds(n int) int {
	if n <= 0 {
		return DefaultMaxToolRounds
	}
	return n
}

// toolLimitReached reports whether the turn may not start another tool round.
func toolLimitReached(rounds, max int) bool {
	return rounds >= normalizeMaxToolRounds(max)
}

func wrapUpNotice(max int) *schema.Message {
	return schema.SystemMessage(fmt.Sprintf(
		"SYSTEM NOTICE: You have reached the maximum number of tool rounds (%d). "+
			"Do not call any more tools. Answer using the information you've already gathered "+
			"and acknowledge anything you could not look up.",
		normalizeMaxToolRounds(max),
	))
}

// reply builds an assistant message the graph writes itself and streams it as
// a single token, since no model call delivers it to the client.
func reply(st *model.TurnState, text string) *schema.Message {
	st.Emit(model.Event{Type: model.EventToken, Text: text})
	return schema.AssistantMessage(text, nil)
}
