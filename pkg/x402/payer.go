package x402

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Payer settles a payment option and returns proof for the retried request.
type Payer interface {
	// Supports reports whether this payer can settle the option.
	Supports(opt *PaymentOption) bool

	// Pay settles the option. For broadcast schemes the returned proof is
	// only produced after the transaction is confirmed.
	Pay(ctx context.Context, opt *PaymentOption) (*Proof, error)
}

// Network identifies an EVM network the payer can settle on.
type Network struct {
	ChainID int64
	RPCURL  string
}

// DefaultNetworks are the EVM networks configured out of the box.
var DefaultNetworks = map[string]Network{
	"base":         {ChainID: 8453, RPCURL: "https://mainnet.base.org"},
	"base-sepolia": {ChainID: 84532, RPCURL: "https://sepolia.base.org"},
	"ethereum":     {ChainID: 1, RPCURL: "https://eth.llamarpc.com"},
	"polygon":      {ChainID: 137, RPCURL: "https://polygon-rpc.com"},
}

// ChainBackend is the subset of ethclient.Client the payer needs.
type ChainBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// DialFunc opens a backend connection to an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (ChainBackend, error)

const (
	// defaultConfirmTimeout bounds the wait for one confirmation after a
	// broadcast. The handshake has no server-mandated bound, so 90s is the
	// documented choice here.
	defaultConfirmTimeout = 90 * time.Second

	defaultPollInterval = 2 * time.Second

	gasLimitNative = 21000
	gasLimitERC20  = 80000
)

// EVMPayer settles payment options on EVM networks from a local wallet.
// It supports the "exact" scheme (signed EIP-3009 authorization, settled by
// the server's facilitator) and the "transfer" scheme (direct broadcast of a
// token or native transfer, proven by transaction hash).
type EVMPayer struct {
	wallet         *Wallet
	networks       map[string]Network
	confirmTimeout time.Duration
	pollInterval   time.Duration
	dial           DialFunc
}

// PayerOption configures an EVMPayer.
type PayerOption func(*EVMPayer)

// WithNetwork adds or overrides a network the payer can settle on.
func WithNetwork(name string, net Network) PayerOption {
	return func(p *EVMPayer) {
		p.networks[name] = net
	}
}

// WithConfirmationTimeout bounds the wait for a broadcast transaction to be
// mined before the payment is declared failed.
func WithConfirmationTimeout(d time.Duration) PayerOption {
	return func(p *EVMPayer) {
		p.confirmTimeout = d
	}
}

// WithPollInterval sets how often the payer polls for a receipt.
func WithPollInterval(d time.Duration) PayerOption {
	return func(p *EVMPayer) {
		p.pollInterval = d
	}
}

// WithDialer replaces the backend dialer.
func WithDialer(dial DialFunc) PayerOption {
	return func(p *EVMPayer) {
		p.dial = dial
	}
}

// NewEVMPayer creates a payer from a hex-encoded private key.
func NewEVMPayer(privateKey string, opts ...PayerOption) (*EVMPayer, error) {
	wallet, err := NewWallet(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	p := &EVMPayer{
		wallet:         wallet,
		networks:       make(map[string]Network, len(DefaultNetworks)),
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		dial: func(ctx context.Context, rpcURL string) (ChainBackend, error) {
			return ethclient.DialContext(ctx, rpcURL)
		},
	}
	for name, net := range DefaultNetworks {
		p.networks[name] = net
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Address returns the paying wallet address.
func (p *EVMPayer) Address() string {
	return p.wallet.AddressHex()
}

// Supports reports whether the option names a configured EVM network and a
// scheme this payer implements. Non-EVM networks (e.g. solana) are not
// supported.
func (p *EVMPayer) Supports(opt *PaymentOption) bool {
	if _, ok := p.networks[opt.Network]; !ok {
		return false
	}
	switch opt.Scheme {
	case SchemeExact:
		return opt.Asset != ""
	case SchemeTransfer:
		return true
	}
	return false
}

// Pay settles the option and returns proof of payment.
func (p *EVMPayer) Pay(ctx context.Context, opt *PaymentOption) (*Proof, error) {
	net, ok := p.networks[opt.Network]
	if !ok {
		return nil, fmt.Errorf("unsupported network %q", opt.Network)
	}

	amount, err := opt.Amount()
	if err != nil {
		return nil, err
	}

	switch opt.Scheme {
	case SchemeExact:
		return p.payExact(net, opt, amount)
	case SchemeTransfer:
		return p.payTransfer(ctx, net, opt, amount)
	}
	return nil, fmt.Errorf("unsupported scheme %q", opt.Scheme)
}

// payExact signs an EIP-3009 authorization against the token contract. No
// transaction is broadcast; the server's facilitator settles it.
func (p *EVMPayer) payExact(net Network, opt *PaymentOption, amount *big.Int) (*Proof, error) {
	if opt.Asset == "" {
		return nil, fmt.Errorf("exact scheme requires an asset contract")
	}

	auth, err := newAuthorization(p.wallet.Address(), common.HexToAddress(opt.PayTo), amount, opt.MaxTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	// USDC domain values unless the challenge overrides them.
	tokenName := opt.Extra["name"]
	if tokenName == "" {
		tokenName = "USD Coin"
	}
	tokenVersion := opt.Extra["version"]
	if tokenVersion == "" {
		tokenVersion = "2"
	}

	sig, err := SignTransferAuthorization(p.wallet, net.ChainID, common.HexToAddress(opt.Asset), tokenName, tokenVersion, auth)
	if err != nil {
		return nil, err
	}

	payload, err := encodeExactPayload(opt.Network, sig, auth)
	if err != nil {
		return nil, err
	}

	return &Proof{
		Scheme:  SchemeExact,
		Network: opt.Network,
		Payload: payload,
		Payer:   p.wallet.AddressHex(),
	}, nil
}

// payTransfer broadcasts a transfer from the wallet and waits for one
// confirmation.
func (p *EVMPayer) payTransfer(ctx context.Context, net Network, opt *PaymentOption, amount *big.Int) (*Proof, error) {
	backend, err := p.dial(ctx, net.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opt.Network, err)
	}

	from := p.wallet.Address()
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	payTo := common.HexToAddress(opt.PayTo)

	var tx *types.Transaction
	if opt.Asset == "" {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &payTo,
			Value:    amount,
			Gas:      gasLimitNative,
			GasPrice: gasPrice,
		})
	} else {
		asset := common.HexToAddress(opt.Asset)
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &asset,
			Value:    big.NewInt(0),
			Gas:      gasLimitERC20,
			GasPrice: gasPrice,
			Data:     transferCalldata(payTo, amount),
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(net.ChainID)), p.wallet.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	receipt, err := p.waitMined(backend, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("payment transaction %s reverted", signed.Hash().Hex())
	}

	return &Proof{
		Scheme:  SchemeTransfer,
		Network: opt.Network,
		TxHash:  signed.Hash().Hex(),
		Payer:   p.wallet.AddressHex(),
	}, nil
}

// waitMined polls for the transaction receipt. The wait runs on its own
// timeout, not the caller's context: once broadcast, the payment completes
// or fails on chain regardless of caller cancellation.
func (p *EVMPayer) waitMined(backend ChainBackend, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation of %s timed out after %s", txHash.Hex(), p.confirmTimeout)
		case <-ticker.C:
		}
	}
}

// transferCalldata encodes an ERC-20 transfer(address,uint256) call.
func transferCalldata(to common.Address, amount *big.Int) []byte {
	selector := crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

	data := make([]byte, 0, 4+64)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, math.U256Bytes(amount)...)
	return data
}
