package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Throwaway key for signing tests.
const testKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

const testUSDC = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

func testOption(scheme string) *PaymentOption {
	return &PaymentOption{
		Scheme:            scheme,
		Network:           "base",
		MaxAmountRequired: "40000",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Asset:             testUSDC,
		MaxTimeoutSeconds: 60,
		Extra:             map[string]string{"name": "USD Coin", "version": "2", "decimals": "6"},
	}
}

func TestParseChallenge(t *testing.T) {
	body := []byte(`{
		"x402Version": 1,
		"error": "Payment required",
		"accepts": [{
			"scheme": "exact",
			"network": "base",
			"maxAmountRequired": "40000",
			"payTo": "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
			"asset": "` + testUSDC + `"
		}]
	}`)

	ch, err := ParseChallenge(body)
	if err != nil {
		t.Fatalf("ParseChallenge failed: %v", err)
	}
	if ch.Version != 1 {
		t.Errorf("expected version 1, got %d", ch.Version)
	}
	if len(ch.Accepts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(ch.Accepts))
	}

	amt, err := ch.Accepts[0].Amount()
	if err != nil {
		t.Fatalf("Amount failed: %v", err)
	}
	if amt.Cmp(big.NewInt(40000)) != 0 {
		t.Errorf("expected 40000, got %s", amt)
	}
}

func TestParseChallengeRejectsEmpty(t *testing.T) {
	if _, err := ParseChallenge([]byte(`{"x402Version": 1, "accepts": []}`)); err == nil {
		t.Error("expected error for empty accepts")
	}
	if _, err := ParseChallenge([]byte(`not json`)); err == nil {
		t.Error("expected error for bad JSON")
	}
	if _, err := ParseChallenge([]byte(`{"accepts": [{"scheme": "exact", "network": "base", "maxAmountRequired": "x", "payTo": "0xabc"}]}`)); err == nil {
		t.Error("expected error for bad amount")
	}
}

func TestAmountDecimal(t *testing.T) {
	opt := testOption(SchemeExact)
	if got := opt.AmountDecimal(6).String(); got != "0.04" {
		t.Errorf("expected 0.04, got %s", got)
	}
}

func TestProofHeaders(t *testing.T) {
	exact := &Proof{Scheme: SchemeExact, Network: "base", Payload: "payload", Payer: "0xabc"}
	h := exact.Headers()
	if h["X-Payment"] != "payload" {
		t.Errorf("expected X-Payment header, got %v", h)
	}

	transfer := &Proof{Scheme: SchemeTransfer, Network: "base", TxHash: "0xdeadbeef", Payer: "0xabc"}
	h = transfer.Headers()
	if h["X-Payment-TxHash"] != "0xdeadbeef" || h["X-Payment-Network"] != "base" || h["X-Payment-Payer"] != "0xabc" {
		t.Errorf("wrong transfer proof headers: %v", h)
	}
}

func TestEVMPayerSupports(t *testing.T) {
	payer, err := NewEVMPayer(testKey)
	if err != nil {
		t.Fatalf("NewEVMPayer failed: %v", err)
	}

	if !payer.Supports(testOption(SchemeExact)) {
		t.Error("expected exact option to be supported")
	}
	if !payer.Supports(testOption(SchemeTransfer)) {
		t.Error("expected transfer option to be supported")
	}

	sol := testOption(SchemeExact)
	sol.Network = "solana"
	if payer.Supports(sol) {
		t.Error("solana must not be supported by the EVM payer")
	}

	noAsset := testOption(SchemeExact)
	noAsset.Asset = ""
	if payer.Supports(noAsset) {
		t.Error("exact scheme without an asset must not be supported")
	}

	weird := testOption("lightning")
	if payer.Supports(weird) {
		t.Error("unknown scheme must not be supported")
	}
}

func TestPayExactProducesSignedPayload(t *testing.T) {
	payer, err := NewEVMPayer(testKey)
	if err != nil {
		t.Fatalf("NewEVMPayer failed: %v", err)
	}

	proof, err := payer.Pay(context.Background(), testOption(SchemeExact))
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if proof.Scheme != SchemeExact || proof.Payload == "" || proof.TxHash != "" {
		t.Fatalf("unexpected proof: %+v", proof)
	}

	raw, err := base64.StdEncoding.DecodeString(proof.Payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}

	var p paymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Version != 1 || p.Scheme != SchemeExact || p.Network != "base" {
		t.Errorf("wrong payload envelope: %+v", p)
	}
	if p.Payload.Authorization.From != payer.Address() {
		t.Errorf("authorization from %s, wallet %s", p.Payload.Authorization.From, payer.Address())
	}
	if p.Payload.Authorization.Value != "40000" {
		t.Errorf("wrong value: %s", p.Payload.Authorization.Value)
	}
	// 65-byte signature, 0x-prefixed hex
	if len(p.Payload.Signature) != 132 || !strings.HasPrefix(p.Payload.Signature, "0x") {
		t.Errorf("malformed signature: %s", p.Payload.Signature)
	}
}

type stubBackend struct {
	nonce         uint64
	receiptStatus uint64
	sent          *types.Transaction
	sendErr       error
}

func (b *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = tx
	return nil
}

func (b *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: b.receiptStatus, TxHash: txHash}, nil
}

func newTestTransferPayer(t *testing.T, backend *stubBackend) *EVMPayer {
	t.Helper()
	payer, err := NewEVMPayer(testKey,
		WithDialer(func(ctx context.Context, rpcURL string) (ChainBackend, error) {
			return backend, nil
		}),
		WithPollInterval(time.Millisecond),
		WithConfirmationTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("NewEVMPayer failed: %v", err)
	}
	return payer
}

func TestPayTransferBroadcastsERC20(t *testing.T) {
	backend := &stubBackend{nonce: 7, receiptStatus: types.ReceiptStatusSuccessful}
	payer := newTestTransferPayer(t, backend)

	proof, err := payer.Pay(context.Background(), testOption(SchemeTransfer))
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}

	if backend.sent == nil {
		t.Fatal("no transaction broadcast")
	}
	if backend.sent.Nonce() != 7 {
		t.Errorf("expected nonce 7, got %d", backend.sent.Nonce())
	}
	if backend.sent.To().Hex() != common.HexToAddress(testUSDC).Hex() {
		t.Errorf("transfer must target the asset contract, got %s", backend.sent.To().Hex())
	}
	if len(backend.sent.Data()) != 68 {
		t.Errorf("expected 68-byte transfer calldata, got %d bytes", len(backend.sent.Data()))
	}
	if proof.TxHash != backend.sent.Hash().Hex() {
		t.Errorf("proof hash %s, broadcast %s", proof.TxHash, backend.sent.Hash().Hex())
	}
	if proof.Network != "base" {
		t.Errorf("wrong network: %s", proof.Network)
	}
}

func TestPayTransferNativeWhenNoAsset(t *testing.T) {
	backend := &stubBackend{receiptStatus: types.ReceiptStatusSuccessful}
	payer := newTestTransferPayer(t, backend)

	opt := testOption(SchemeTransfer)
	opt.Asset = ""

	if _, err := payer.Pay(context.Background(), opt); err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if backend.sent.To().Hex() != common.HexToAddress(opt.PayTo).Hex() {
		t.Errorf("native transfer must target payTo, got %s", backend.sent.To().Hex())
	}
	if backend.sent.Value().Cmp(big.NewInt(40000)) != 0 {
		t.Errorf("wrong value: %s", backend.sent.Value())
	}
	if len(backend.sent.Data()) != 0 {
		t.Errorf("native transfer must carry no calldata")
	}
}

func TestPayTransferReverted(t *testing.T) {
	backend := &stubBackend{receiptStatus: types.ReceiptStatusFailed}
	payer := newTestTransferPayer(t, backend)

	_, err := payer.Pay(context.Background(), testOption(SchemeTransfer))
	if err == nil || !strings.Contains(err.Error(), "reverted") {
		t.Fatalf("expected reverted error, got %v", err)
	}
}
