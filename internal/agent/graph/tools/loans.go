package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
)

const (
	ToolGetApplicationStatus = "get_application_status"
	ToolGetBalance           = "get_balance"
	ToolListConditions       = "list_conditions"
	ToolRenderDecision       = "render_decision"
)

// Roles used by the demo table.
const (
	RoleBorrower    = "borrower"
	RoleLoanOfficer = "loan_officer"
	RoleUnderwriter = "underwriter"
	RoleAdmin       = "admin"
)

// LoanStore is the data-access collaborator behind the lending tools. Row-level
// visibility is the store's responsibility.
type LoanStore interface {
	Application(ctx context.Context, caller model.Caller, id string) (*model.LoanApplication, error)
	ApplicationsFor(ctx context.Context, caller model.Caller) ([]model.LoanApplication, error)
	SetDecision(ctx context.Context, id, decision, notes string) (*model.LoanApplication, error)
}

// LendingTools returns the registry table for the lending assistant.
func LendingTools(store LoanStore) []Tool {
	return []Tool{
		{
			Name:        ToolGetApplicationStatus,
			Description: "Look up the current status of a loan application. Omit application_id to list the caller's applications.",
			Params: map[string]*schema.ParameterInfo{
				"application_id": {Type: schema.String, Desc: "Application identifier, e.g. APP-1001"},
			},
			Handler: func(ctx context.Context, args map[string]any, tc ToolContext) (string, error) {
				id := stringArg(args, "application_id")
				if id == "" {
					apps, err := store.ApplicationsFor(ctx, tc.Caller)
					if err != nil {
						return "", err
					}
					type row struct {
						ID     string `json:"id"`
						Status string `json:"status"`
					}
					rows := make([]row, 0, len(apps))
					for _, a := range apps {
						rows = append(rows, row{ID: a.ID, Status: a.Status})
					}
					return toJSON(map[string]any{"applications": rows})
				}
				app, err := store.Application(ctx, tc.Caller, id)
				if err != nil {
					return "", err
				}
				return toJSON(map[string]any{"id": app.ID, "status": app.Status, "amount": app.Amount})
			},
		},
		{
			Name:        ToolGetBalance,
			Description: "Get the outstanding balance of the caller's loan.",
			Params: map[string]*schema.ParameterInfo{
				"application_id": {Type: schema.String, Desc: "Optional application identifier"},
			},
			Handler: func(ctx context.Context, args map[string]any, tc ToolContext) (string, error) {
				app, err := resolveApplication(ctx, store, tc.Caller, stringArg(args, "application_id"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("The outstanding balance on %s is $%.2f.", app.ID, app.Balance), nil
			},
		},
		{
			Name:        ToolListConditions,
			Description: "List the open underwriting conditions on an application.",
			Params: map[string]*schema.ParameterInfo{
				"application_id": {Type: schema.String, Desc: "Application identifier", Required: true},
			},
			AllowedRoles: []string{RoleLoanOfficer, RoleUnderwriter, RoleAdmin},
			Handler: func(ctx context.Context, args map[string]any, tc ToolContext) (string, error) {
				app, err := store.Application(ctx, tc.Caller, stringArg(args, "application_id"))
				if err != nil {
					return "", err
				}
				return toJSON(map[string]any{"id": app.ID, "conditions": app.Conditions})
			},
		},
		{
			Name:        ToolRenderDecision,
			Description: "Record an underwriting decision (approve, deny, suspend) on an application.",
			Params: map[string]*schema.ParameterInfo{
				"application_id": {Type: schema.String, Desc: "Application identifier", Required: true},
				"decision": {
					Type:     schema.String,
					Desc:     "One of approve, deny, suspend",
					Enum:     []string{"approve", "deny", "suspend"},
					Required: true,
				},
				"notes": {Type: schema.String, Desc: "Rationale for the decision"},
			},
			AllowedRoles: []string{RoleUnderwriter, RoleAdmin},
			Handler: func(ctx context.Context, args map[string]any, tc ToolContext) (string, error) {
				decision := strings.ToLower(stringArg(args, "decision"))
				switch decision {
				case "approve", "deny", "suspend":
				default:
					return "", fmt.Errorf("invalid decision %q", decision)
				}
				app, err := store.SetDecision(ctx, stringArg(args, "application_id"), decision, stringArg(args, "notes"))
				if err != nil {
					return "", err
				}
				return toJSON(map[string]any{"id": app.ID, "decision": app.Decision, "status": app.Status})
			},
		},
	}
}

func resolveApplication(ctx context.Context, store LoanStore, caller model.Caller, id string) (*model.LoanApplication, error) {
	if id != "" {
		return store.Application(ctx, caller, id)
	}
	apps, err := store.ApplicationsFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("no applications found for user %s", caller.UserID)
	}
	return &apps[0], nil
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MemoryLoanStore is an in-process LoanStore over seeded applications.
type MemoryLoanStore struct {
	mu   sync.RWMutex
	apps map[string]*model.LoanApplication
}

func NewMemoryLoanStore(apps ...model.LoanApplication) *MemoryLoanStore {
	s := &MemoryLoanStore{apps: make(map[string]*model.LoanApplication, len(apps))}
	for i := range apps {
		a := apps[i]
		s.apps[a.ID] = &a
	}
	return s
}

func (s *MemoryLoanStore) Application(_ context.Context, caller model.Caller, id string) (*model.LoanApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[strings.ToUpper(id)]
	if !ok {
		return nil, fmt.Errorf("application %q not found", id)
	}
	if caller.Role == RoleBorrower && a.BorrowerID != caller.UserID {
		return nil, fmt.Errorf("application %q not found", id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryLoanStore) ApplicationsFor(_ context.Context, caller model.Caller) ([]model.LoanApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.LoanApplication
	for _, a := range s.apps {
		if caller.Role != RoleBorrower || a.BorrowerID == caller.UserID {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b model.LoanApplication) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryLoanStore) SetDecision(_ context.Context, id, decision, notes string) (*model.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[strings.ToUpper(id)]
	if !ok {
		return nil, fmt.Errorf("application %q not found", id)
	}
	a.Decision = decision
	a.DecisionNotes = notes
	switch decision {
	case "approve":
		a.Status = "approved"
	case "deny":
		a.Status = "denied"
	case "suspend":
		a.Status = "suspended"
	}
	cp := *a
	return &cp, nil
}

var MockApplications = []model.LoanApplication{
	{
		ID:         "APP-1001",
		BorrowerID: "user-001",
		Status:     "in_underwriting",
		Amount:     350000,
		Balance:    348120.55,
		Conditions: []string{"Provide two most recent pay stubs", "Explain credit inquiry dated 2026-05-02"},
	},
	{
		ID:         "APP-1002",
		BorrowerID: "user-002",
		Status:     "conditionally_approved",
		Amount:     220000,
		Balance:    219500.00,
		Conditions: []string{"Homeowners insurance declaration page"},
	},
	{
		ID:         "APP-1003",
		BorrowerID: "user-001",
		Status:     "closed",
		Amount:     45000,
		Balance:    0,
	},
}
