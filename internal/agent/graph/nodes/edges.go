package nodes

import (
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/model"
)

// Edge routes the state after From has run. Decide must return one of To.
type Edge struct {
	From   Step
	To     []Step
	Decide func(st *model.TurnState) Step
}

// Edges returns the routing table of the turn graph.
func Edges(gw *tools.Gateway) []Edge {
	return []Edge{
		{
			From: InputShield,
			To:   []Step{Classify, End},
			Decide: func(st *model.TurnState) Step {
				if st.SafetyBlocked {
					return End
				}
				return Classify
			},
		},
		{
			From: Classify,
			To:   []Step{AgentFast, AgentCapable},
			Decide: func(st *model.TurnState) Step {
				if st.ModelTier == model.TierFast {
					return AgentFast
				}
				return AgentCapable
			},
		},
		{
			From: AgentFast,
			To:   []Step{AgentCapable, OutputShield},
			Decide: func(st *model.TurnState) Step {
				if st.Escalated {
					return AgentCapable
				}
				return OutputShield
			},
		},
		{
			From: AgentCapable,
			To:   []Step{ToolAuth, Tools, OutputShield},
			Decide: func(st *model.TurnState) Step {
				if len(st.PendingToolCalls()) == 0 {
					return OutputShield
				}
				if gw != nil && gw.Restricted(st.Caller) {
					return ToolAuth
				}
				return Tools
			},
		},
		{
			From: ToolAuth,
			To:   []Step{Tools, OutputShield},
			Decide: func(st *model.TurnState) Step {
				if len(st.PendingToolCalls()) > 0 {
					return Tools
				}
				return OutputShield
			},
		},
		{
			From:   Tools,
			To:     []Step{AgentCapable},
			Decide: func(*model.TurnState) Step { return AgentCapable },
		},
		{
			From:   OutputShield,
			To:     []Step{End},
			Decide: func(*model.TurnState) Step { return End },
		},
	}
}
