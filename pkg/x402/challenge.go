// Package x402 implements the client side of the x402 payment handshake:
// parsing 402 Payment Required challenges and settling them with an on-chain
// micropayment so the original request can be retried with proof attached.
package x402

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Payment schemes understood by this package.
const (
	// SchemeExact attaches a signed EIP-3009 transfer authorization; the
	// server-side facilitator settles it on chain.
	SchemeExact = "exact"

	// SchemeTransfer broadcasts a plain token transfer from the payer wallet
	// and proves it with the transaction hash.
	SchemeTransfer = "transfer"
)

// Challenge is the machine-readable body of a 402 Payment Required response.
type Challenge struct {
	Version int             `json:"x402Version"`
	Error   string          `json:"error,omitempty"`
	Accepts []PaymentOption `json:"accepts"`
}

// PaymentOption is one way the server accepts payment for the request.
type PaymentOption struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource,omitempty"`
	Description       string            `json:"description,omitempty"`
	PayTo             string            `json:"payTo"`
	Asset             string            `json:"asset,omitempty"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// ParseChallenge decodes and validates a 402 response body.
func ParseChallenge(body []byte) (*Challenge, error) {
	var ch Challenge
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	if len(ch.Accepts) == 0 {
		return nil, fmt.Errorf("challenge carries no payment options")
	}
	for i := range ch.Accepts {
		opt := &ch.Accepts[i]
		if opt.PayTo == "" {
			return nil, fmt.Errorf("payment option %d: missing payTo address", i)
		}
		if _, err := opt.Amount(); err != nil {
			return nil, fmt.Errorf("payment option %d: %w", i, err)
		}
	}
	return &ch, nil
}

// Amount returns the required amount in atomic token units.
func (o *PaymentOption) Amount() (*big.Int, error) {
	amt, ok := new(big.Int).SetString(o.MaxAmountRequired, 10)
	if !ok || amt.Sign() < 0 {
		return nil, fmt.Errorf("bad amount %q", o.MaxAmountRequired)
	}
	return amt, nil
}

// AmountDecimal returns the required amount scaled by the token's decimals
// (e.g. 40000 with 6 decimals -> 0.04). Used for metrics and logging only.
func (o *PaymentOption) AmountDecimal(decimals int32) decimal.Decimal {
	amt, err := o.Amount()
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amt, -decimals)
}

// Proof is the evidence of a settled payment, attached to the retried
// request as headers.
type Proof struct {
	Scheme  string
	Network string

	// Payload is the base64-encoded X-Payment header value (exact scheme).
	Payload string

	// TxHash identifies the broadcast transaction (transfer scheme).
	TxHash string

	// Payer is the paying wallet address.
	Payer string
}

// Headers returns the HTTP headers proving the payment.
func (p *Proof) Headers() map[string]string {
	if p.Payload != "" {
		return map[string]string{"X-Payment": p.Payload}
	}
	return map[string]string{
		"X-Payment-TxHash":  p.TxHash,
		"X-Payment-Network": p.Network,
		"X-Payment-Payer":   p.Payer,
	}
}
