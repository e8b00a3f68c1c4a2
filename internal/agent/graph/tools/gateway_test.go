package tools

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/model"
)

func lendingGateway(t *testing.T, overrides map[string][]string) *Gateway {
	t.Helper()
	r, err := NewRegistry(LendingTools(NewMemoryLoanStore(MockApplications...)))
	require.NoError(t, err)
	return NewGateway(r, overrides)
}

func TestAuthorizeRestrictedTool(t *testing.T) {
	g := lendingGateway(t, nil)
	borrower := model.Caller{UserID: "user-001", Role: RoleBorrower}
	underwriter := model.Caller{UserID: "uw-1", Role: RoleUnderwriter}

	res := g.Authorize([]model.ToolCall{{Name: ToolRenderDecision}}, borrower)
	require.Len(t, res, 1)
	assert.False(t, res[0].Allowed)
	assert.Contains(t, res[0].Reason, "borrower")

	res = g.Authorize([]model.ToolCall{{Name: ToolRenderDecision}}, underwriter)
	assert.True(t, res[0].Allowed)
}

func TestAuthorizeUnrestrictedToolAllowsAnyRole(t *testing.T) {
	g := lendingGateway(t, nil)
	res := g.Authorize([]model.ToolCall{{Name: ToolGetBalance}}, model.Caller{Role: "anyone"})
	assert.True(t, res[0].Allowed)
}

func TestSessionOverrideWins(t *testing.T) {
	g := lendingGateway(t, map[string][]string{ToolGetBalance: {RoleLoanOfficer}})
	caller := model.Caller{Role: RoleBorrower}

	assert.False(t, g.Authorize([]model.ToolCall{{Name: ToolGetBalance}}, caller)[0].Allowed)

	caller.ToolRoles = map[string][]string{
		ToolGetBalance:     {RoleBorrower},
		ToolRenderDecision: nil,
	}
	res := g.Authorize([]model.ToolCall{{Name: ToolGetBalance}, {Name: ToolRenderDecision}}, caller)
	assert.True(t, res[0].Allowed)
	assert.True(t, res[1].Allowed, "an empty override lifts the restriction")
}

func TestRestricted(t *testing.T) {
	open, err := NewRegistry([]Tool{{Name: "t", Handler: noop}})
	require.NoError(t, err)
	g := NewGateway(open, nil)
	assert.False(t, g.Restricted(model.Caller{Role: "x"}))
	assert.True(t, g.Restricted(model.Caller{Role: "x", ToolRoles: map[string][]string{"t": {"admin"}}}))

	assert.True(t, lendingGateway(t, nil).Restricted(model.Caller{}))
}

func TestDeniedAndDenialMessage(t *testing.T) {
	res := []model.ToolAuthorizationResult{
		{Tool: "a", Allowed: false},
		{Tool: "b", Allowed: true},
		{Tool: "a", Allowed: false},
		{Tool: "c", Allowed: false},
	}
	denied := Denied(res)
	assert.Equal(t, []string{"a", "c"}, denied)

	msg := DenialMessage([]string{ToolRenderDecision}, RoleBorrower)
	assert.Contains(t, msg, "your role 'borrower' is not permitted to use: render_decision")
}

func TestCalls(t *testing.T) {
	got := Calls([]schema.ToolCall{{ID: "1", Function: schema.FunctionCall{Name: "x", Arguments: `{"a":1}`}}})
	assert.Equal(t, []model.ToolCall{{Name: "x", Args: `{"a":1}`}}, got)
}
