package rugmunch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rugmunch/agent-tools/core"
	"github.com/rugmunch/agent-tools/pkg/rugmunch"
)

var costWatchToken = decimal.RequireFromString("0.20")

var watchTypes = map[string]bool{
	"risk_change":  true,
	"rug_detected": true,
	"price_drop":   true,
	"all":          true,
}

// WatchTokenRiskTool sets up real-time monitoring with webhook alerts.
type WatchTokenRiskTool struct {
	client *rugmunch.Client
}

type WatchTokenRiskInput struct {
	TokenAddress string `json:"token_address"`
	WebhookURL   string `json:"webhook_url"`
	WatchType    string `json:"watch_type"`
}

func NewWatchTokenRiskTool(client *rugmunch.Client) *WatchTokenRiskTool {
	return &WatchTokenRiskTool{client: client}
}

func (t *WatchTokenRiskTool) Name() string {
	return "watch_token_risk"
}

func (t *WatchTokenRiskTool) Description() string {
	return "Set up real-time token monitoring with webhook alerts. When risk changes, " +
		"a rug is detected, or the price drops, the service POSTs to your webhook. " +
		"Covers 7 days of monitoring."
}

func (t *WatchTokenRiskTool) Cost() decimal.Decimal {
	return costWatchToken
}

func (t *WatchTokenRiskTool) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"required": ["token_address", "webhook_url"],
		"properties": {
			"token_address": {"type": "string", "description": "Token to monitor"},
			"webhook_url": {"type": "string", "description": "HTTPS URL to receive alerts"},
			"watch_type": {"type": "string", "enum": ["risk_change", "rug_detected", "price_drop", "all"], "description": "Alert trigger (default rug_detected)"}
		}
	}`)
}

func (t *WatchTokenRiskTool) OutputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"watch_id": {"type": "string"},
			"token_address": {"type": "string"},
			"watch_type": {"type": "string"},
			"expires_at": {"type": "string"}
		}
	}`)
}

func (t *WatchTokenRiskTool) Execute(tc *core.ToolContext) *core.ToolExecResult {
	var input WatchTokenRiskInput
	if err := parseInput(tc.Request, &input); err != nil {
		return errorResult(err)
	}

	if input.TokenAddress == "" {
		return errorResult(fmt.Errorf("token_address is required"))
	}
	if input.WebhookURL == "" {
		return errorResult(fmt.Errorf("webhook_url is required"))
	}
	if !strings.HasPrefix(input.WebhookURL, "https://") {
		return errorResult(fmt.Errorf("webhook_url must be an HTTPS URL"))
	}
	if input.WatchType != "" && !watchTypes[input.WatchType] {
		return errorResult(fmt.Errorf("watch_type must be one of risk_change, rug_detected, price_drop, all"))
	}

	ctx, cancel := context.WithTimeout(tc.Ctx, 30*time.Second)
	defer cancel()

	conf, err := t.client.Watch(ctx, &rugmunch.WatchRequest{
		TokenAddress: input.TokenAddress,
		WebhookURL:   input.WebhookURL,
		WatchType:    input.WatchType,
	})
	if err != nil {
		return errorResult(fmt.Errorf("watch setup failed: %w", err))
	}

	return &core.ToolExecResult{
		Status: core.ToolComplete,
		Output: conf,
	}
}
