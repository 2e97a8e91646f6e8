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
	costHolderDeepdive = decimal.RequireFromString("0.10")
	costTokenIntel     = decimal.RequireFromString("0.06")
	costMarcusQuick    = decimal.RequireFromString("0.15")
)

// === Intelligence Tools ===

// GetHolderDeepdiveTool runs holder-level forensics on a token.
type GetHolderDeepdiveTool struct {
	client *rugmunch.Client
}

type TokenAddressInput struct {
	TokenAddress string `json:"token_address"`
}

func NewGetHolderDeepdiveTool(client *rugmunch.Client) *GetHolderDeepdiveTool {
	return &GetHolderDeepdiveTool{client: client}
}

func (t *GetHolderDeepdiveTool) Name() string {
	return "get_holder_deepdive"
}

func (t *GetHolderDeepdiveTool) Description() string {
	return "Deep holder analysis for a token. Detects snipers, bundled wallets, " +
		"fresh wallet clusters, whale concentration, connected wallet patterns, " +
		"and coordinated manipulation."
}

func (t *GetHolderDeepdiveTool) Cost() decimal.Decimal {
	return costHolderDeepdive
}

func (t *GetHolderDeepdiveTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["token_address"],
		"properties": {
			"token_address": {"type": "string", "description": "Token to analyze"}
		}
	}`)
}

func (t *GetHolderDeepdiveTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"snipers": {"type": "integer"},
			"bundled_wallets": {"type": "integer"},
			"fresh_wallet_clusters": {"type": "integer"},
			"flags": {"type": "array", "items": {"type": "string"}}
		}
	}`)
}

func (t *GetHolderDeepdiveTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input TokenAddressInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.TokenAddress == "" {
		return errorResult(fmt.Errorf("token_address is required"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	dive, err := t.client.GetHolderDeepDive(ctx, input.TokenAddress)
	if err != nil {
		return errorResult(fmt.Errorf("holder deepdive failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: dive,
	}
}

// GetTokenIntelligenceTool fetches comprehensive token data.
type GetTokenIntelligenceTool struct {
	client *rugmunch.Client
}

func NewGetTokenIntelligenceTool(client *rugmunch.Client) *GetTokenIntelligenceTool {
	return &GetTokenIntelligenceTool{client: client}
}

func (t *GetTokenIntelligenceTool) Name() string {
	return "get_token_intelligence"
}

func (t *GetTokenIntelligenceTool) Description() string {
	return "Comprehensive token data: price, volume, market cap, holder stats, " +
		"LP lock status, authority flags, buy/sell ratios, and top holders."
}

func (t *GetTokenIntelligenceTool) Cost() decimal.Decimal {
	return costTokenIntel
}

func (t *GetTokenIntelligenceTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["token_address"],
		"properties": {
			"token_address": {"type": "string", "description": "Token to look up"}
		}
	}`)
}

func (t *GetTokenIntelligenceTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"price_usd": {"type": "string"},
			"volume_24h": {"type": "string"},
			"market_cap": {"type": "string"},
			"holders": {"type": "integer"},
			"lp_locked": {"type": "boolean"},
			"mint_authority": {"type": "boolean"},
			"freeze_authority": {"type": "boolean"}
		}
	}`)
}

func (t *GetTokenIntelligenceTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input TokenAddressInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.TokenAddress == "" {
		return errorResult(fmt.Errorf("token_address is required"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	intel, err := t.client.GetTokenIntel(ctx, input.TokenAddress)
	if err != nil {
		return errorResult(fmt.Errorf("token intelligence failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: intel,
	}
}

// MarcusQuickAnalysisTool asks the remote AI analyst for a forensic verdict.
type MarcusQuickAnalysisTool struct {
	client *rugmunch.Client
}

type MarcusQuickAnalysisInput struct {
	TokenAddress string `json:"token_address"`
	Chain        string `json:"chain"`
	Question     string `json:"question"`
}

func NewMarcusQuickAnalysisTool(client *rugmunch.Client) *MarcusQuickAnalysisTool {
	return &MarcusQuickAnalysisTool{client: client}
}

func (t *MarcusQuickAnalysisTool) Name() string {
	return "marcus_quick_analysis"
}

func (t *MarcusQuickAnalysisTool) Description() string {
	return "AI forensic verdict by Marcus Aurelius. One-paragraph analysis with risk score, " +
		"key flags, and recommendation. Use for a quick expert opinion on borderline tokens. " +
		"Takes roughly 5-30s."
}

func (t *MarcusQuickAnalysisTool) Cost() decimal.Decimal {
	return costMarcusQuick
}

func (t *MarcusQuickAnalysisTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["token_address"],
		"properties": {
			"token_address": {"type": "string", "description": "Token to analyze"},
			"chain": {"type": "string", "description": "Blockchain (default solana)"},
			"question": {"type": "string", "description": "Optional specific question about the token"}
		}
	}`)
}

func (t *MarcusQuickAnalysisTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"risk_score": {"type": "integer"},
			"recommendation": {"type": "string"},
			"key_flags": {"type": "array", "items": {"type": "string"}},
			"analysis": {"type": "string"}
		}
	}`)
}

func (t *MarcusQuickAnalysisTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input MarcusQuickAnalysisInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.TokenAddress == "" {
		return errorResult(fmt.Errorf("token_address is required"))
	}

	// AI analysis is the slowest call in the catalog.
	ctx, cancel := context.WithTimeout(tc.Ctx, 60*time.Second)
	defer cancel()

	verdict, err := t.client.MarcusQuick(ctx, &rugmunch.MarcusRequest{
		TokenAddress: input.TokenAddress,
		Chain:        input.Chain,
		Question:     input.Question,
	})
	if err != nil {
		return errorResult(fmt.Errorf("marcus analysis failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: verdict,
	}
}
