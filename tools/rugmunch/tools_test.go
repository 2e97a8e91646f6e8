package rugmunch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rugmunch/agent-tools/core"
	"github.com/rugmunch/agent-tools/pkg/rugmunch"
)

func newTestRegistry(t *testing.T, handler http.HandlerFunc) (*core.ToolRegistry, *int32) {
	t.Helper()

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := rugmunch.NewClient(rugmunch.WithBaseURL(server.URL), rugmunch.WithAPIKey("test-key"))
	registry := core.NewToolRegistry()
	RegisterAllTools(registry, client)
	return registry, &requests
}

func TestCatalogOrderAndCosts(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	want := []struct {
		name string
		cost string
	}{
		{"check_token_risk", "0.04"},
		{"check_batch_risk", "0.3"},
		{"check_deployer_history", "0.06"},
		{"get_holder_deepdive", "0.1"},
		{"get_token_intelligence", "0.06"},
		{"marcus_quick_analysis", "0.15"},
		{"watch_token_risk", "0.2"},
	}

	infos := registry.List()
	if len(infos) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(infos))
	}
	for i, w := range want {
		if infos[i].Name != w.name {
			t.Errorf("position %d: expected %s, got %s", i, w.name, infos[i].Name)
		}
		if infos[i].Cost.String() != w.cost {
			t.Errorf("%s: expected cost %s, got %s", w.name, w.cost, infos[i].Cost)
		}
		if infos[i].Description == "" {
			t.Errorf("%s: empty description", w.name)
		}
		if !json.Valid(infos[i].InputSchema) || !json.Valid(infos[i].OutputSchema) {
			t.Errorf("%s: schema is not valid JSON", w.name)
		}
	}
}

func TestInvokeCheckTokenRisk(t *testing.T) {
	registry, requests := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/check-risk" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"risk_score": 92, "risk_level": "CRITICAL", "recommendation": "AVOID", "honeypot_risk": true}`)
	})

	res, err := registry.Invoke(context.Background(), "check_token_risk",
		json.RawMessage(`{"token_address": "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolComplete {
		t.Fatalf("expected complete, got %s (%s)", res.Status, res.Error)
	}

	report, ok := res.Output.(*rugmunch.RiskReport)
	if !ok {
		t.Fatalf("unexpected output type %T", res.Output)
	}
	if report.RiskScore != 92 || report.Recommendation != "AVOID" || !report.HoneypotRisk {
		t.Errorf("wrong report: %+v", report)
	}
	if n := atomic.LoadInt32(requests); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestInvokeUnknownToolMakesNoRequests(t *testing.T) {
	registry, requests := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := registry.Invoke(context.Background(), "check_token_rsk", json.RawMessage(`{}`))
	if !errors.Is(err, core.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if n := atomic.LoadInt32(requests); n != 0 {
		t.Errorf("network touched for unknown tool: %d requests", n)
	}
}

func TestInvokeMissingParamsMakesNoRequests(t *testing.T) {
	registry, requests := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := registry.Invoke(context.Background(), "check_token_risk", json.RawMessage(`{"chain": "solana"}`))

	var invalid *core.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if invalid.Field != "token_address" {
		t.Errorf("expected token_address, got %q", invalid.Field)
	}
	if n := atomic.LoadInt32(requests); n != 0 {
		t.Errorf("network touched for invalid params: %d requests", n)
	}
}

func TestBatchRejectsEmptyTokenList(t *testing.T) {
	registry, requests := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	res, err := registry.Invoke(context.Background(), "check_batch_risk", json.RawMessage(`{"tokens": []}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolFailed {
		t.Fatalf("expected failed result, got %s", res.Status)
	}
	if n := atomic.LoadInt32(requests); n != 0 {
		t.Errorf("network touched for empty token list: %d requests", n)
	}
}

func TestWatchRejectsNonHTTPSWebhook(t *testing.T) {
	registry, requests := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	res, err := registry.Invoke(context.Background(), "watch_token_risk",
		json.RawMessage(`{"token_address": "0xabc", "webhook_url": "http://example.com/hook"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolFailed {
		t.Fatalf("expected failed result, got %s", res.Status)
	}
	if n := atomic.LoadInt32(requests); n != 0 {
		t.Errorf("network touched for bad webhook URL: %d requests", n)
	}
}

func TestWatchRejectsUnknownWatchType(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})

	res, err := registry.Invoke(context.Background(), "watch_token_risk",
		json.RawMessage(`{"token_address": "0xabc", "webhook_url": "https://example.com/hook", "watch_type": "moon"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolFailed {
		t.Fatalf("expected failed result, got %s", res.Status)
	}
}

func TestRemoteErrorSurfacesInResult(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"code": "token_not_found", "message": "token not indexed yet"}}`)
	})

	res, err := registry.Invoke(context.Background(), "get_token_intelligence",
		json.RawMessage(`{"token_address": "0xabc"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolFailed {
		t.Fatalf("expected failed result, got %s", res.Status)
	}
	if res.Metadata["error_kind"] != "remote_error" {
		t.Errorf("expected remote_error kind, got %v", res.Metadata["error_kind"])
	}
	if res.Error == "" {
		t.Errorf("empty error message")
	}
}

func TestAuthErrorKind(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "invalid api key"}`)
	})

	res, err := registry.Invoke(context.Background(), "marcus_quick_analysis",
		json.RawMessage(`{"token_address": "0xabc"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Metadata["error_kind"] != "auth_failure" {
		t.Errorf("expected auth_failure kind, got %v", res.Metadata["error_kind"])
	}
}

func TestDeployerHistoryPassthrough(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deployer/0xDepl0yer" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"deployer": "0xDepl0yer", "tokens_deployed": 4, "rug_count": 0, "classification": "clean"}`)
	})

	res, err := registry.Invoke(context.Background(), "check_deployer_history",
		json.RawMessage(`{"deployer_address": "0xDepl0yer"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Status != core.ToolComplete {
		t.Fatalf("expected complete, got %s (%s)", res.Status, res.Error)
	}

	history, ok := res.Output.(*rugmunch.DeployerHistory)
	if !ok {
		t.Fatalf("unexpected output type %T", res.Output)
	}
	if history.Classification != "clean" {
		t.Errorf("wrong classification: %s", history.Classification)
	}
}
