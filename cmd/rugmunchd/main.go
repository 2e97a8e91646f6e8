// rugmunchd exposes the Rug Munch tool catalog over HTTP for agent hosts
// that cannot embed the Go packages directly. It publishes the catalog,
// invokes tools, serves Prometheus metrics, and optionally relays the live
// alert stream to the log.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rugmunch/agent-tools/core"
	"github.com/rugmunch/agent-tools/pkg/alerts"
	"github.com/rugmunch/agent-tools/pkg/rugmunch"
	"github.com/rugmunch/agent-tools/pkg/x402"
	rmtools "github.com/rugmunch/agent-tools/tools/rugmunch"
)

var (
	// Flags
	httpAddr   = flag.String("http", ":8080", "HTTP server address")
	apiBase    = flag.String("api-base", "", "Rug Munch API base URL (or RUG_MUNCH_API_BASE env)")
	privateKey = flag.String("key", "", "EVM private key for x402 payments (or X402_PRIVATE_KEY env)")
	payNetwork = flag.String("pay-network", "base", "Network used to settle x402 payments")
	rpcURL     = flag.String("rpc-url", "", "Override RPC endpoint for the payment network")
	alertsURL  = flag.String("alerts-url", "", "WebSocket alert stream URL (optional)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("Starting Rug Munch tool daemon")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	metrics := rugmunch.NewMetrics()

	opts := []rugmunch.ClientOption{rugmunch.WithMetrics(metrics)}
	if *apiBase != "" {
		opts = append(opts, rugmunch.WithBaseURL(*apiBase))
	}

	key := *privateKey
	if key == "" {
		key = os.Getenv("X402_PRIVATE_KEY")
	}
	if key != "" {
		payerOpts := []x402.PayerOption{}
		if *rpcURL != "" {
			net, ok := x402.DefaultNetworks[*payNetwork]
			if !ok {
				log.Fatalf("Unknown payment network: %s", *payNetwork)
			}
			net.RPCURL = *rpcURL
			payerOpts = append(payerOpts, x402.WithNetwork(*payNetwork, net))
		}

		payer, err := x402.NewEVMPayer(key, payerOpts...)
		if err != nil {
			log.Fatalf("Failed to create payer: %v", err)
		}
		opts = append(opts, rugmunch.WithPayer(payer))
		log.Printf("x402 payer initialized (address: %s, network: %s)", payer.Address(), *payNetwork)
	}

	client := rugmunch.NewClientFromEnv(opts...)
	if client.HasAPIKey() {
		log.Println("Authenticating with API key")
	} else if key == "" {
		log.Println("No API key and no payer - paid calls will fail with a payment error")
	}

	registry := core.NewToolRegistry()
	rmtools.RegisterAllTools(registry, client)
	log.Printf("Registered %d tools", registry.Len())

	var stream *alerts.Client
	if *alertsURL != "" {
		config := alerts.DefaultConfig(*alertsURL)
		config.APIKey = os.Getenv(rugmunch.EnvAPIKey)
		stream = alerts.NewClient(config, alerts.Handlers{
			OnAlert: func(a *alerts.Alert) {
				log.Printf("[ALERT] %s %s risk=%d %s", a.Type, a.TokenAddress, a.RiskScore, a.Recommendation)
			},
			OnDisconnect: func(err error) {
				log.Printf("[ALERTS] Disconnected: %v", err)
			},
		})
		if err := stream.Connect(context.Background()); err != nil {
			log.Printf("Alert stream unavailable: %v", err)
		}
	}

	server := &http.Server{
		Addr:         *httpAddr,
		Handler:      newMux(registry, metrics),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // marcus_quick_analysis can take up to 60s
	}

	go func() {
		log.Printf("HTTP server listening on %s", *httpAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	if stream != nil {
		stream.Close()
	}
	log.Println("Goodbye!")
}

func newMux(registry *core.ToolRegistry, metrics *rugmunch.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registry.List())
	})

	mux.HandleFunc("/invoke/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/invoke/")
		input, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}

		result, err := registry.Invoke(r.Context(), name, input)
		if err != nil {
			var invalid *core.InvalidInputError
			switch {
			case errors.Is(err, core.ErrUnknownTool):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.As(err, &invalid):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	return mux
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
