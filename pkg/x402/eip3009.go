package x402

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Authorization is the EIP-3009 TransferWithAuthorization message. The token
// contract verifies the signature and moves the funds; the payer never
// spends gas.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// authorizationJSON is the wire form inside an X-Payment payload.
type authorizationJSON struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// paymentPayload is the decoded X-Payment header (exact scheme).
type paymentPayload struct {
	Version int    `json:"x402Version"`
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
	Payload struct {
		Signature     string            `json:"signature"`
		Authorization authorizationJSON `json:"authorization"`
	} `json:"payload"`
}

// SignTransferAuthorization signs an EIP-3009 authorization as EIP-712 typed
// data against the token contract's domain.
func SignTransferAuthorization(w *Wallet, chainID int64, token common.Address, tokenName, tokenVersion string, auth *Authorization) (string, error) {
	domainSep := hashDomain(tokenName, tokenVersion, chainID, token)

	typeHash := crypto.Keccak256Hash([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value," +
			"uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	msgHash := crypto.Keccak256Hash(
		typeHash.Bytes(),
		common.LeftPadBytes(auth.From.Bytes(), 32),
		common.LeftPadBytes(auth.To.Bytes(), 32),
		math.U256Bytes(auth.Value),
		math.U256Bytes(auth.ValidAfter),
		math.U256Bytes(auth.ValidBefore),
		auth.Nonce[:],
	)

	finalHash := crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domainSep.Bytes(),
		msgHash.Bytes(),
	)

	sig, err := w.SignHash(finalHash.Bytes())
	if err != nil {
		return "", fmt.Errorf("sign authorization: %w", err)
	}

	return fmt.Sprintf("0x%x", sig), nil
}

// encodeExactPayload builds the base64 X-Payment header value for a signed
// authorization.
func encodeExactPayload(network, signature string, auth *Authorization) (string, error) {
	var p paymentPayload
	p.Version = 1
	p.Scheme = SchemeExact
	p.Network = network
	p.Payload.Signature = signature
	p.Payload.Authorization = authorizationJSON{
		From:        auth.From.Hex(),
		To:          auth.To.Hex(),
		Value:       auth.Value.String(),
		ValidAfter:  auth.ValidAfter.String(),
		ValidBefore: auth.ValidBefore.String(),
		Nonce:       fmt.Sprintf("0x%x", auth.Nonce),
	}

	data, err := json.Marshal(&p)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// newAuthorization builds an authorization valid from now until the option's
// timeout (or one minute if the challenge does not name one).
func newAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*Authorization, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now().Unix()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(now + int64(timeoutSeconds)),
		Nonce:       nonce,
	}, nil
}

// hashDomain computes the EIP-712 domain separator with a verifying contract.
func hashDomain(name, version string, chainID int64, contract common.Address) common.Hash {
	typeHash := crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	return crypto.Keccak256Hash(
		typeHash.Bytes(),
		crypto.Keccak256Hash([]byte(name)).Bytes(),
		crypto.Keccak256Hash([]byte(version)).Bytes(),
		common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
		common.LeftPadBytes(contract.Bytes(), 32),
	)
}
