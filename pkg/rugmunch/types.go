package rugmunch

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CheckRiskRequest asks for a rug-pull risk score on one token.
type CheckRiskRequest struct {
	TokenAddress string `json:"token_address"`
	Chain        string `json:"chain"`
}

// RiskReport is the scored verdict for one token. All values are produced
// remotely; nothing here is computed or reinterpreted locally.
type RiskReport struct {
	TokenAddress    string           `json:"token_address,omitempty"`
	Chain           string           `json:"chain,omitempty"`
	RiskScore       int              `json:"risk_score"`
	RiskLevel       string           `json:"risk_level,omitempty"`
	Recommendation  string           `json:"recommendation"`
	HoneypotRisk    bool             `json:"honeypot_risk,omitempty"`
	RiskFactors     []string         `json:"risk_factors,omitempty"`
	DeployerHistory *DeployerSummary `json:"deployer_history,omitempty"`
}

// DeployerSummary is the deployer digest embedded in a risk report.
type DeployerSummary struct {
	Address        string `json:"address,omitempty"`
	TokensDeployed int    `json:"tokens_deployed,omitempty"`
	RugCount       int    `json:"rug_count,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// CheckBatchRequest asks for risk scores on up to MaxBatchTokens tokens.
type CheckBatchRequest struct {
	Tokens []string `json:"tokens"`
	Chain  string   `json:"chain"`
}

// BatchRiskReport holds one entry per requested token.
type BatchRiskReport struct {
	Results []BatchRiskEntry `json:"results"`
}

// BatchRiskEntry is one token's score inside a batch report.
type BatchRiskEntry struct {
	TokenAddress   string `json:"token_address"`
	RiskScore      int    `json:"risk_score"`
	RiskLevel      string `json:"risk_level,omitempty"`
	Recommendation string `json:"recommendation"`
}

// DeployerHistory is the full history of a deployer wallet. Classification
// is one of legitimate_builder, suspicious, serial_rugger.
type DeployerHistory struct {
	Deployer       string          `json:"deployer"`
	TokensDeployed int             `json:"tokens_deployed"`
	RugCount       int             `json:"rug_count"`
	Classification string          `json:"classification"`
	Tokens         []DeployedToken `json:"tokens,omitempty"`
}

// DeployedToken is one token in a deployer's history.
type DeployedToken struct {
	TokenAddress string `json:"token_address"`
	Name         string `json:"name,omitempty"`
	Rugged       bool   `json:"rugged,omitempty"`
	DeployedAt   string `json:"deployed_at,omitempty"`
}

// HolderDeepDive is the holder-level forensic analysis for a token.
type HolderDeepDive struct {
	TokenAddress        string   `json:"token_address"`
	Snipers             int      `json:"snipers"`
	BundledWallets      int      `json:"bundled_wallets"`
	FreshWalletClusters int      `json:"fresh_wallet_clusters"`
	Top10HoldPercent    string   `json:"top10_hold_percent,omitempty"`
	WhaleCount          int      `json:"whale_count,omitempty"`
	Flags               []string `json:"flags,omitempty"`
}

// TokenIntel is the comprehensive market and authority data for a token.
type TokenIntel struct {
	TokenAddress    string          `json:"token_address"`
	Name            string          `json:"name,omitempty"`
	Symbol          string          `json:"symbol,omitempty"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	Volume24h       decimal.Decimal `json:"volume_24h"`
	MarketCap       decimal.Decimal `json:"market_cap"`
	Holders         int             `json:"holders"`
	LPLocked        bool            `json:"lp_locked"`
	MintAuthority   bool            `json:"mint_authority"`
	FreezeAuthority bool            `json:"freeze_authority"`
	BuySellRatio    decimal.Decimal `json:"buy_sell_ratio,omitempty"`
	TopHolders      []TokenHolder   `json:"top_holders,omitempty"`
}

// TokenHolder is one entry in a token's top-holder list.
type TokenHolder struct {
	Address string          `json:"address"`
	Percent decimal.Decimal `json:"percent"`
}

// MarcusRequest asks the AI analyst for a quick forensic verdict.
type MarcusRequest struct {
	TokenAddress string `json:"token_address"`
	Chain        string `json:"chain"`
	Question     string `json:"question,omitempty"`
}

// MarcusVerdict is the analyst's one-paragraph verdict.
type MarcusVerdict struct {
	TokenAddress   string   `json:"token_address,omitempty"`
	RiskScore      int      `json:"risk_score"`
	Recommendation string   `json:"recommendation"`
	KeyFlags       []string `json:"key_flags,omitempty"`
	Analysis       string   `json:"analysis"`
}

// WatchRequest sets up webhook monitoring for a token.
type WatchRequest struct {
	TokenAddress string `json:"token_address"`
	WebhookURL   string `json:"webhook_url"`
	WatchType    string `json:"watch_type"`
}

// WatchConfirmation acknowledges a registered watch.
type WatchConfirmation struct {
	WatchID      string `json:"watch_id"`
	TokenAddress string `json:"token_address"`
	WatchType    string `json:"watch_type"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// remoteErrorBody is the structured error envelope the service returns on
// non-2xx responses. Some endpoints nest the error, others flatten it.
type remoteErrorBody struct {
	Error   json.RawMessage `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

type remoteErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
