// Package rugmunch is a client for the Rug Munch Intelligence API. All risk
// scoring happens on the remote service; this package only dispatches
// requests, authenticates them (static API key or x402 payment handshake),
// and maps responses into typed records.
package rugmunch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rugmunch/agent-tools/pkg/x402"
)

const (
	// DefaultBaseURL is the production Rug Munch agent API endpoint.
	DefaultBaseURL = "https://cryptorugmunch.app/api/agent/v1"

	// EnvAPIKey and EnvAPIBase configure the client from the environment.
	EnvAPIKey  = "RUG_MUNCH_API_KEY"
	EnvAPIBase = "RUG_MUNCH_API_BASE"

	// DefaultChain is assumed when a request does not name one.
	DefaultChain = "solana"

	// MaxBatchTokens is the server-side batch limit; extra tokens are
	// truncated before dispatch.
	MaxBatchTokens = 20

	defaultRateLimit = 5.0
	defaultBurst     = 10
)

// Client dispatches requests to the Rug Munch API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	payer      x402.Payer
	metrics    *Metrics
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithAPIKey sets the static API key. When set, requests are authenticated
// with the X-API-Key header and the payment handshake is never attempted.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPayer sets the payer used to settle 402 challenges when no API key is
// configured.
func WithPayer(payer x402.Payer) ClientOption {
	return func(c *Client) {
		c.payer = payer
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Rug Munch API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromEnv creates a client configured from RUG_MUNCH_API_KEY and
// RUG_MUNCH_API_BASE. Explicit options take precedence.
func NewClientFromEnv(opts ...ClientOption) *Client {
	env := make([]ClientOption, 0, 2)
	if key := os.Getenv(EnvAPIKey); key != "" {
		env = append(env, WithAPIKey(key))
	}
	if base := os.Getenv(EnvAPIBase); base != "" {
		env = append(env, WithBaseURL(base))
	}
	return NewClient(append(env, opts...)...)
}

// HasAPIKey reports whether a static API key is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// CheckRisk scores one token for rug-pull risk.
func (c *Client) CheckRisk(ctx context.Context, req *CheckRiskRequest) (*RiskReport, error) {
	if req.TokenAddress == "" {
		return nil, fmt.Errorf("token_address is required")
	}

	payload := *req
	if payload.Chain == "" {
		payload.Chain = DefaultChain
	}

	var report RiskReport
	if err := c.post(ctx, "/check-risk", &payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// CheckBatch scores up to MaxBatchTokens tokens in one call. Extra tokens
// are truncated, matching the server limit.
func (c *Client) CheckBatch(ctx context.Context, req *CheckBatchRequest) (*BatchRiskReport, error) {
	if len(req.Tokens) == 0 {
		return nil, fmt.Errorf("tokens is required")
	}

	payload := *req
	if len(payload.Tokens) > MaxBatchTokens {
		payload.Tokens = payload.Tokens[:MaxBatchTokens]
	}
	if payload.Chain == "" {
		payload.Chain = DefaultChain
	}

	var report BatchRiskReport
	if err := c.post(ctx, "/check-batch", &payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetDeployerHistory fetches a deployer wallet's full history.
func (c *Client) GetDeployerHistory(ctx context.Context, deployerAddress string) (*DeployerHistory, error) {
	if deployerAddress == "" {
		return nil, fmt.Errorf("deployer_address is required")
	}

	var history DeployerHistory
	if err := c.get(ctx, "/deployer/"+url.PathEscape(deployerAddress), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// GetHolderDeepDive fetches the holder-level forensic analysis for a token.
func (c *Client) GetHolderDeepDive(ctx context.Context, tokenAddress string) (*HolderDeepDive, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("token_address is required")
	}

	var dive HolderDeepDive
	if err := c.get(ctx, "/holder-deepdive/"+url.PathEscape(tokenAddress), &dive); err != nil {
		return nil, err
	}
	return &dive, nil
}

// GetTokenIntel fetches comprehensive market and authority data for a token.
func (c *Client) GetTokenIntel(ctx context.Context, tokenAddress string) (*TokenIntel, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("token_address is required")
	}

	var intel TokenIntel
	if err := c.get(ctx, "/token-intel/"+url.PathEscape(tokenAddress), &intel); err != nil {
		return nil, err
	}
	return &intel, nil
}

// MarcusQuick asks the remote AI analyst for a quick forensic verdict.
func (c *Client) MarcusQuick(ctx context.Context, req *MarcusRequest) (*MarcusVerdict, error) {
	if req.TokenAddress == "" {
		return nil, fmt.Errorf("token_address is required")
	}

	payload := *req
	if payload.Chain == "" {
		payload.Chain = DefaultChain
	}

	var verdict MarcusVerdict
	if err := c.post(ctx, "/marcus-quick", &payload, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// Watch registers webhook monitoring for a token.
func (c *Client) Watch(ctx context.Context, req *WatchRequest) (*WatchConfirmation, error) {
	if req.TokenAddress == "" {
		return nil, fmt.Errorf("token_address is required")
	}
	if req.WebhookURL == "" {
		return nil, fmt.Errorf("webhook_url is required")
	}

	payload := *req
	if payload.WatchType == "" {
		payload.WatchType = "rug_detected"
	}

	var conf WatchConfirmation
	if err := c.post(ctx, "/watch", &payload, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// --- Dispatch ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.dispatch(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.dispatch(ctx, http.MethodPost, path, body, result)
}

// dispatch sends one request and normalizes the response. With an API key
// configured the request is sent exactly once. Without one, a 402 response
// triggers the payment handshake and exactly one resend with proof attached;
// a second 402 is terminal.
func (c *Client) dispatch(ctx context.Context, method, path string, body []byte, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	reqID := uuid.NewString()

	status, respBody, err := c.send(ctx, method, path, body, reqID, nil)
	if err != nil {
		c.metrics.observeDispatch(path, "network_error", time.Since(start))
		return &NetworkError{Op: method + " " + path, Err: err}
	}

	if status == http.StatusPaymentRequired && c.apiKey == "" {
		proof, perr := c.settleChallenge(ctx, respBody)
		if perr != nil {
			c.metrics.observeDispatch(path, "payment_failure", time.Since(start))
			return perr
		}

		status, respBody, err = c.send(ctx, method, path, body, reqID, proof.Headers())
		if err != nil {
			c.metrics.observeDispatch(path, "network_error", time.Since(start))
			return &NetworkError{Op: method + " " + path, Err: err}
		}
		if status == http.StatusPaymentRequired {
			c.metrics.observeDispatch(path, "payment_failure", time.Since(start))
			return &PaymentError{Reason: "challenged again after settled payment"}
		}
	}

	if status >= 200 && status < 300 {
		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				c.metrics.observeDispatch(path, "decode_error", time.Since(start))
				return fmt.Errorf("decode response: %w", err)
			}
		}
		c.metrics.observeDispatch(path, "success", time.Since(start))
		return nil
	}

	rerr := parseRemoteError(status, respBody)
	c.metrics.observeRemoteError(rerr.Code)

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.metrics.observeDispatch(path, "auth_failure", time.Since(start))
		return &AuthError{StatusCode: status, Message: rerr.Message}
	}

	c.metrics.observeDispatch(path, "remote_error", time.Since(start))
	return rerr
}

// settleChallenge parses the 402 body and settles the first payment option
// the payer supports. A payment that fails to construct or broadcast is
// terminal; no other option is tried.
func (c *Client) settleChallenge(ctx context.Context, body []byte) (*x402.Proof, error) {
	if c.payer == nil {
		return nil, &PaymentError{Reason: "payment required and no payer configured (set " + EnvAPIKey + " or attach a payer)"}
	}

	ch, err := x402.ParseChallenge(body)
	if err != nil {
		return nil, &PaymentError{Reason: "malformed challenge", Err: err}
	}

	for i := range ch.Accepts {
		opt := &ch.Accepts[i]
		if !c.payer.Supports(opt) {
			continue
		}

		proof, err := c.payer.Pay(ctx, opt)
		if err != nil {
			c.metrics.observePayment(opt.Network, opt.Scheme, "failed", decimal.Zero)
			return nil, &PaymentError{Reason: "settle payment", Err: err}
		}

		c.metrics.observePayment(opt.Network, opt.Scheme, "settled", opt.AmountDecimal(assetDecimals(opt)))
		return proof, nil
	}

	return nil, &PaymentError{Reason: "no supported payment option in challenge"}
}

// send performs one HTTP round trip and returns the status and full body.
func (c *Client) send(ctx context.Context, method, path string, body []byte, reqID string, extra map[string]string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// parseRemoteError extracts the structured error envelope, keeping the
// remote code and message verbatim. Unstructured bodies are passed through
// as the message.
func parseRemoteError(status int, body []byte) *RemoteError {
	rerr := &RemoteError{StatusCode: status, Message: strings.TrimSpace(string(body))}

	var env remoteErrorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return rerr
	}

	if env.Code != "" || env.Message != "" {
		rerr.Code = env.Code
		rerr.Message = env.Message
	}

	if len(env.Error) > 0 {
		var detail remoteErrorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil && (detail.Code != "" || detail.Message != "") {
			rerr.Code = detail.Code
			rerr.Message = detail.Message
			return rerr
		}
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err == nil && msg != "" {
			rerr.Message = msg
		}
	}

	return rerr
}

// assetDecimals reads the token decimals hint from the challenge, defaulting
// to 6 (USDC).
func assetDecimals(opt *x402.PaymentOption) int32 {
	if s, ok := opt.Extra["decimals"]; ok {
		if d, err := strconv.Atoi(s); err == nil && d >= 0 && d <= 36 {
			return int32(d)
		}
	}
	return 6
}
