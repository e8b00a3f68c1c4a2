package nodes

import "github.com/cloudwego/eino/compose"

// Step is the closed set of graph nodes. End is the terminal marker.
type Step int

const (
	End Step = iota
	InputShield
	Classify
	AgentFast
	AgentCapable
	ToolAuth
	Tools
	OutputShield
)

var stepNames = [...]string{
	End:          compose.END,
	InputShield:  "input_shield",
	Classify:     "classify",
	AgentFast:    "agent_fast",
	AgentCapable: "agent_capable",
	ToolAuth:     "tool_auth",
	Tools:        "tools",
	OutputShield: "output_shield",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// Steps returns every non-terminal step.
func Steps() []Step {
	return []Step{InputShield, Classify, AgentFast, AgentCapable, ToolAuth, Tools, OutputShield}
}
