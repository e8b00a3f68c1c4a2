package tools

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
)

// Gateway authorizes batches of tool calls against role restrictions.
// The allowed-roles map is resolved per call from the registry defaults, the
// deployment overrides and the caller's session overrides, later ones winning.
type Gateway struct {
	defaults map[string][]string
}

// NewGateway merges deployment overrides onto the registry defaults.
func NewGateway(r *Registry, overrides map[string][]string) *Gateway {
	defaults := r.DefaultRoles()
	maps.Copy(defaults, overrides)
	return &Gateway{defaults: defaults}
}

// EffectiveRoles returns the allowed-roles map for caller.
func (g *Gateway) EffectiveRoles(caller model.Caller) map[string][]string {
	merged := maps.Clone(g.defaults)
	if merged == nil {
		merged = make(map[string][]string)
	}
	maps.Copy(merged, caller.ToolRoles)
	return merged
}

// Restricted reports whether any tool carries a role restriction for caller.
func (g *Gateway) Restricted(caller model.Caller) bool {
	for _, roles := range g.EffectiveRoles(caller) {
		if len(roles) > 0 {
			return true
		}
	}
	return false
}

// Authorize evaluates every call. A tool with no configured restriction is
// allowed for any role.
func (g *Gateway) Authorize(calls []model.ToolCall, caller model.Caller) []model.ToolAuthorizationResult {
	roles := g.EffectiveRoles(caller)
	results := make([]model.ToolAuthorizationResult, 0, len(calls))
	for _, c := range calls {
		allowedRoles := roles[c.Name]
		res := model.ToolAuthorizationResult{Tool: c.Name, Allowed: true}
		if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, caller.Role) {
			res.Allowed = false
			res.Reason = fmt.Sprintf("role %q not in %v", caller.Role, allowedRoles)
		}
		results = append(results, res)
	}
	return results
}

// Denied returns the distinct names of denied tools in call order.
func Denied(results []model.ToolAuthorizationResult) []string {
	var out []string
	for _, r := range results {
		if !r.Allowed && !slices.Contains(out, r.Tool) {
			out = append(out, r.Tool)
		}
	}
	return out
}

// DenialMessage is the assistant message appended when a batch is refused.
func DenialMessage(denied []string, role string) string {
	return fmt.Sprintf(
		"I'm sorry, but your role '%s' is not permitted to use: %s. "+
			"Please contact a team member with the appropriate access if this action is needed.",
		role, strings.Join(denied, ", "))
}

// Calls converts eino tool calls to gateway input.
func Calls(tcs []schema.ToolCall) []model.ToolCall {
	out := make([]model.ToolCall, len(tcs))
	for i, tc := range tcs {
		out[i] = model.ToolCall{Name: tc.Function.Name, Args: tc.Function.Arguments}
	}
	return out
}
