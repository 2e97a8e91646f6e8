// Package core provides minimal framework types for tool execution.
// This is a standalone shim extracted from the Agent-GO core framework.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tool execution status constants.
const (
	ToolComplete = "complete"
	ToolFailed   = "failed"
	ToolCanceled = "canceled"
)

// ErrUnknownTool is returned by Invoke when no tool is registered under the
// requested name. It is always raised before any network activity.
var ErrUnknownTool = errors.New("unknown tool")

// InvalidInputError reports a tool input that failed validation against the
// tool's declared schema, before the tool was executed.
type InvalidInputError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: field %q: %s", e.Tool, e.Field, e.Reason)
}

// ToolContext carries context for tool execution.
type ToolContext struct {
	Ctx     context.Context
	Request *Message
}

// ToolExecResult is the result of a tool execution.
type ToolExecResult struct {
	Status   string         `json:"status"`
	Output   interface{}    `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message represents a message in the agent framework.
type Message struct {
	Role    string              `json:"role,omitempty"`
	Content string              `json:"content,omitempty"`
	ToolReq *ToolRequestPayload `json:"tool_req,omitempty"`
}

// ToolRequestPayload holds tool invocation data.
type ToolRequestPayload struct {
	Name     string          `json:"name,omitempty"`
	Input    any             `json:"input,omitempty"`
	InputRaw json.RawMessage `json:"input_raw,omitempty"`
}

// Tool is a named, schema-typed capability exposed to the host framework.
// InputSchema and OutputSchema return raw JSON Schema documents; the host
// shows Description and Cost to the LLM when deciding whether to call it.
type Tool interface {
	Name() string
	Description() string
	Cost() decimal.Decimal
	InputSchema() []byte
	OutputSchema() []byte
	Execute(tc *ToolContext) *ToolExecResult
}

// ToolPolicy defines rate limiting and retry policies for tools.
type ToolPolicy struct {
	MaxRetries      int           `json:"max_retries"`
	BaseBackoff     time.Duration `json:"base_backoff"`
	MaxBackoff      time.Duration `json:"max_backoff"`
	Retriable       bool          `json:"retriable"`
	DefaultTimeout  time.Duration `json:"default_timeout"`
	RateLimitPerSec float64       `json:"rate_limit_per_sec"`
	Burst           int           `json:"burst"`
	LimitKey        string        `json:"limit_key"`
	BudgetPerDay    float64       `json:"budget_per_day"`
	CostPerCall     float64       `json:"cost_per_call"`
}

// ToolInfo describes a registered tool for catalog consumers.
type ToolInfo struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Cost         decimal.Decimal `json:"cost"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	RiskClass    string          `json:"risk_class,omitempty"`
	Policy       ToolPolicy      `json:"policy"`
}

// ToolRegistry is a registry for tools with policies. Registration happens
// once at startup; after that the registry is read-only and safe for
// concurrent Invoke calls.
type ToolRegistry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]registeredTool
}

type registeredTool struct {
	tool      Tool
	policy    ToolPolicy
	riskClass string
	required  []string
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]registeredTool)}
}

// Register registers a tool with a policy and optional risk class.
// Registering a second tool under an existing name replaces it without
// changing its position in the listing order.
func (r *ToolRegistry) Register(tool Tool, policy ToolPolicy, riskClass string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = registeredTool{
		tool:      tool,
		policy:    policy,
		riskClass: riskClass,
		required:  requiredFields(tool.InputSchema()),
	}
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// List returns descriptors for every registered tool in registration order.
// The order is stable across calls so hosts can publish a deterministic
// catalog.
func (r *ToolRegistry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		rt := r.tools[name]
		infos = append(infos, ToolInfo{
			Name:         name,
			Description:  rt.tool.Description(),
			Cost:         rt.tool.Cost(),
			InputSchema:  json.RawMessage(rt.tool.InputSchema()),
			OutputSchema: json.RawMessage(rt.tool.OutputSchema()),
			RiskClass:    rt.riskClass,
			Policy:       rt.policy,
		})
	}
	return infos
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke resolves name, validates input against the tool's declared schema,
// and executes the tool. Name resolution and validation failures return an
// error (ErrUnknownTool or *InvalidInputError) without executing the tool;
// execution failures are reported inside the returned result.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, input json.RawMessage) (*ToolExecResult, error) {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := checkRequired(name, rt.required, input); err != nil {
		return nil, err
	}

	return rt.tool.Execute(&ToolContext{
		Ctx: ctx,
		Request: &Message{
			ToolReq: &ToolRequestPayload{Name: name, InputRaw: input},
		},
	}), nil
}

// requiredFields extracts the "required" list from a JSON Schema document.
func requiredFields(schema []byte) []string {
	var doc struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil
	}
	return doc.Required
}

// checkRequired verifies that every schema-required field is present and
// non-null in the raw input object.
func checkRequired(tool string, required []string, input json.RawMessage) error {
	if len(required) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if len(input) > 0 {
		if err := json.Unmarshal(input, &fields); err != nil {
			return &InvalidInputError{Tool: tool, Reason: "input is not a JSON object"}
		}
	}

	for _, name := range required {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return &InvalidInputError{Tool: tool, Field: name, Reason: "required field missing"}
		}
	}
	return nil
}
