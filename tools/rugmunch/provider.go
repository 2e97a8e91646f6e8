// Package rugmunch provides Agent-GO tools backed by the Rug Munch
// Intelligence API: rug-pull risk scoring, deployer history, holder
// forensics, token intelligence, and AI analysis. The tools declare their
// schemas and costs to the host framework and delegate every call to the
// API client; no scoring happens locally.
package rugmunch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rugmunch/agent-tools/core"
	"github.com/rugmunch/agent-tools/pkg/rugmunch"
)

// Risk classifications for Rug Munch tools.
const (
	RiskClassReadOnly     = "read-only" // cheap lookups
	RiskClassPaidAnalysis = "paid"      // higher-cost analysis calls
)

func parseInput(msg *core.Message, v interface{}) error {
	if msg == nil || msg.ToolReq == nil {
		return fmt.Errorf("no tool request")
	}

	if len(msg.ToolReq.InputRaw) > 0 {
		return json.Unmarshal(msg.ToolReq.InputRaw, v)
	}

	if msg.ToolReq.Input != nil {
		data, err := json.Marshal(msg.ToolReq.Input)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	}

	return nil
}

// errorResult wraps an error as a failed result, tagging the dispatch error
// kind so the host can decide whether to retry, inform the LLM, or abort.
func errorResult(err error) *core.ToolExecResult {
	return &core.ToolExecResult{
		Status:   core.ToolFailed,
		Error:    err.Error(),
		Metadata: map[string]any{"error_kind": errorKind(err)},
	}
}

func errorKind(err error) string {
	var (
		authErr    *rugmunch.AuthError
		payErr     *rugmunch.PaymentError
		remoteErr  *rugmunch.RemoteError
		networkErr *rugmunch.NetworkError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth_failure"
	case errors.As(err, &payErr):
		return "payment_failure"
	case errors.As(err, &remoteErr):
		return "remote_error"
	case errors.As(err, &networkErr):
		return "network_error"
	}
	return "invalid_params"
}

// RegisterRiskTools registers the risk-scoring tools.
func RegisterRiskTools(registry *core.ToolRegistry, client *rugmunch.Client) {
	policy := core.ToolPolicy{
		MaxRetries:      0, // the client handles the single payment retry
		Retriable:       false,
		DefaultTimeout:  30 * time.Second,
		RateLimitPerSec: 5.0,
		Burst:           10,
		LimitKey:        "rugmunch",
		CostPerCall:     0.04,
	}

	registry.Register(NewCheckTokenRiskTool(client), policy, RiskClassReadOnly)

	batchPolicy := policy
	batchPolicy.CostPerCall = 0.30
	registry.Register(NewCheckBatchRiskTool(client), batchPolicy, RiskClassReadOnly)

	deployerPolicy := policy
	deployerPolicy.CostPerCall = 0.06
	registry.Register(NewCheckDeployerHistoryTool(client), deployerPolicy, RiskClassReadOnly)
}

// RegisterIntelTools registers the deeper (and costlier) analysis tools.
func RegisterIntelTools(registry *core.ToolRegistry, client *rugmunch.Client) {
	policy := core.ToolPolicy{
		MaxRetries:      0,
		Retriable:       false,
		DefaultTimeout:  30 * time.Second,
		RateLimitPerSec: 2.0,
		Burst:           4,
		LimitKey:        "rugmunch-intel",
		BudgetPerDay:    50.0,
	}

	dive := policy
	dive.CostPerCall = 0.10
	registry.Register(NewGetHolderDeepdiveTool(client), dive, RiskClassPaidAnalysis)

	intel := policy
	intel.CostPerCall = 0.06
	registry.Register(NewGetTokenIntelligenceTool(client), intel, RiskClassPaidAnalysis)

	marcus := policy
	marcus.CostPerCall = 0.15
	marcus.DefaultTimeout = 60 * time.Second // AI analysis can take 5-30s
	registry.Register(NewMarcusQuickAnalysisTool(client), marcus, RiskClassPaidAnalysis)
}

// RegisterWatchTools registers the monitoring tools.
func RegisterWatchTools(registry *core.ToolRegistry, client *rugmunch.Client) {
	policy := core.ToolPolicy{
		MaxRetries:      0,
		Retriable:       false,
		DefaultTimeout:  30 * time.Second,
		RateLimitPerSec: 1.0,
		Burst:           2,
		LimitKey:        "rugmunch-watch",
		BudgetPerDay:    20.0,
		CostPerCall:     0.20,
	}

	registry.Register(NewWatchTokenRiskTool(client), policy, RiskClassPaidAnalysis)
}

// RegisterAllTools registers every Rug Munch tool.
func RegisterAllTools(registry *core.ToolRegistry, client *rugmunch.Client) {
	RegisterRiskTools(registry, client)
	RegisterIntelTools(registry, client)
	RegisterWatchTools(registry, client)
}
