package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
)

// ToolContext is passed explicitly to every handler call.
type ToolContext struct {
	ThreadID string
	Caller   model.Caller
}

// Handler executes a tool with decoded JSON arguments.
type Handler func(ctx context.Context, args map[string]any, tc ToolContext) (string, error)

// Tool is one entry of the registry table.
type Tool struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	// AllowedRoles restricts the tool; nil or empty means unrestricted.
	AllowedRoles []string
	Handler      Handler
}

// Info returns the eino tool definition used to bind the tool to a model.
func (t Tool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(t.Params),
	}
}

// Registry is an ordered, immutable tool table. It is safe for concurrent reads.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry validates and freezes the given table.
func NewRegistry(table []Tool) (*Registry, error) {
	r := &Registry{
		tools: make([]Tool, 0, len(table)),
		index: make(map[string]int, len(table)),
	}
	for _, t := range table {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		t.Name = name
		t.AllowedRoles = slices.Clone(t.AllowedRoles)
		r.index[name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Infos returns the eino definitions of all tools in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, len(r.tools))
	for i, t := range r.tools {
		infos[i] = t.Info()
	}
	return infos
}

// Describe renders "- name: description" lines for prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, t := range r.tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DefaultRoles returns the static allowed-roles map for restricted tools.
func (r *Registry) DefaultRoles() map[string][]string {
	out := make(map[string][]string)
	for _, t := range r.tools {
		if len(t.AllowedRoles) > 0 {
			out[t.Name] = slices.Clone(t.AllowedRoles)
		}
	}
	return out
}

// ParseRoleOverrides parses "tool=role|role;tool2=role" into a map. Unknown
// tool names are rejected so a typo fails at startup.
func ParseRoleOverrides(raw string, r *Registry) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, roles, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid role override %q", entry)
		}
		if r != nil {
			if _, known := r.Get(name); !known {
				return nil, fmt.Errorf("role override for unknown tool %q", name)
			}
		}
		var list []string
		for _, role := range strings.Split(roles, "|") {
			if role = strings.TrimSpace(role); role != "" {
				list = append(list, role)
			}
		}
		out[name] = list
	}
	return out, nil
}
