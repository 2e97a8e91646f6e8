package rugmunch

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rugmunch/agent-tools/core"
	"github.com/rugmunch/agent-tools/pkg/rugmunch"
)

var (
	costCheckRisk       = decimal.RequireFromString("0.04")
	costCheckBatch      = decimal.RequireFromString("0.30")
	costDeployerHistory = decimal.RequireFromString("0.06")
)

// === Risk Scoring Tools ===

// CheckTokenRiskTool scores one token for rug-pull risk before a trade.
type CheckTokenRiskTool struct {
	client *rugmunch.Client
}

type CheckTokenRiskInput struct {
	TokenAddress string `json:"token_address"` // Token mint (Solana) or contract address (EVM)
	Chain        string `json:"chain"`         // Blockchain, defaults to solana
}

func NewCheckTokenRiskTool(client *rugmunch.Client) *CheckTokenRiskTool {
	return &CheckTokenRiskTool{client: client}
}

func (t *CheckTokenRiskTool) Name() string {
	return "check_token_risk"
}

func (t *CheckTokenRiskTool) Description() string {
	return "CRITICAL: Check a token's rug pull risk BEFORE buying or trading. " +
		"Returns a 0-100 risk score, honeypot detection, freeze authority check, " +
		"holder concentration, deployer history, and a SAFE/CAUTION/AVOID recommendation. " +
		"ALWAYS call this before executing any token swap or purchase."
}

func (t *CheckTokenRiskTool) Cost() decimal.Decimal {
	return costCheckRisk
}

func (t *CheckTokenRiskTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["token_address"],
		"properties": {
			"token_address": {"type": "string", "description": "Token mint (Solana) or contract address (EVM)"},
			"chain": {"type": "string", "description": "Blockchain: solana, ethereum, base, arbitrum, polygon (default solana)"}
		}
	}`)
}

func (t *CheckTokenRiskTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
			"risk_level": {"type": "string"},
			"recommendation": {"type": "string", "enum": ["SAFE", "CAUTION", "AVOID"]},
			"honeypot_risk": {"type": "boolean"},
			"risk_factors": {"type": "array", "items": {"type": "string"}}
		}
	}`)
}

func (t *CheckTokenRiskTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input CheckTokenRiskInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.TokenAddress == "" {
		return errorResult(fmt.Errorf("token_address is required"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	report, err := t.client.CheckRisk(ctx, &rugmunch.CheckRiskRequest{
		TokenAddress: input.TokenAddress,
		Chain:        input.Chain,
	})
	if err != nil {
		return errorResult(fmt.Errorf("check risk failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: report,
	}
}

// CheckBatchRiskTool scores up to 20 tokens at once, for portfolio
// screening.
type CheckBatchRiskTool struct {
	client *rugmunch.Client
}

type CheckBatchRiskInput struct {
	Tokens []string `json:"tokens"`
	Chain  string   `json:"chain"`
}

func NewCheckBatchRiskTool(client *rugmunch.Client) *CheckBatchRiskTool {
	return &CheckBatchRiskTool{client: client}
}

func (t *CheckBatchRiskTool) Name() string {
	return "check_batch_risk"
}

func (t *CheckBatchRiskTool) Description() string {
	return "Batch risk check for up to 20 tokens at once. " +
		"Use for portfolio screening or evaluating multiple tokens."
}

func (t *CheckBatchRiskTool) Cost() decimal.Decimal {
	return costCheckBatch
}

func (t *CheckBatchRiskTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["tokens"],
		"properties": {
			"tokens": {"type": "array", "items": {"type": "string"}, "maxItems": 20, "description": "Token addresses (max 20)"},
			"chain": {"type": "string", "description": "Blockchain (default solana)"}
		}
	}`)
}

func (t *CheckBatchRiskTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"results": {"type": "array", "items": {"type": "object"}}
		}
	}`)
}

func (t *CheckBatchRiskTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input CheckBatchRiskInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if len(input.Tokens) == 0 {
		return errorResult(fmt.Errorf("tokens must contain at least one address"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	report, err := t.client.CheckBatch(ctx, &rugmunch.CheckBatchRequest{
		Tokens: input.Tokens,
		Chain:  input.Chain,
	})
	if err != nil {
		return errorResult(fmt.Errorf("batch risk check failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: report,
	}
}

// CheckDeployerHistoryTool inspects a deployer wallet's track record.
type CheckDeployerHistoryTool struct {
	client *rugmunch.Client
}

type CheckDeployerHistoryInput struct {
	DeployerAddress string `json:"deployer_address"`
}

func NewCheckDeployerHistoryTool(client *rugmunch.Client) *CheckDeployerHistoryTool {
	return &CheckDeployerHistoryTool{client: client}
}

func (t *CheckDeployerHistoryTool) Name() string {
	return "check_deployer_history"
}

func (t *CheckDeployerHistoryTool) Description() string {
	return "Check a token deployer's full history. Returns tokens deployed, rug count, " +
		"and classification: legitimate_builder, suspicious, or serial_rugger. " +
		"Essential for evaluating new token trustworthiness."
}

func (t *CheckDeployerHistoryTool) Cost() decimal.Decimal {
	return costDeployerHistory
}

func (t *CheckDeployerHistoryTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["deployer_address"],
		"properties": {
			"deployer_address": {"type": "string", "description": "The deployer's wallet address"}
		}
	}`)
}

func (t *CheckDeployerHistoryTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"deployer": {"type": "string"},
			"tokens_deployed": {"type": "integer"},
			"rug_count": {"type": "integer"},
			"classification": {"type": "string", "enum": ["legitimate_builder", "suspicious", "serial_rugger"]}
		}
	}`)
}

func (t *CheckDeployerHistoryTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input CheckDeployerHistoryInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.DeployerAddress == "" {
		return errorResult(fmt.Errorf("deployer_address is required"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	history, err := t.client.GetDeployerHistory(ctx, input.DeployerAddress)
	if err != nil {
		return errorResult(fmt.Errorf("deployer history failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: history,
	}
}
