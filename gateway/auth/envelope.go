package auth

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"countingchain/core/types"
	"countingchain/crypto"
)

const maxNonceLength = 128

var (
	// ErrMalformedEnvelope reports an envelope missing required fields.
	ErrMalformedEnvelope = errors.New("auth: malformed envelope")
	// ErrStaleEnvelope reports a timestamp outside the accepted window.
	ErrStaleEnvelope = errors.New("auth: envelope timestamp outside allowed window")
)

// Envelope is a signed execute request. The signature covers the target
// contract, every field except Signature and the chain ID.
type Envelope struct {
	Sender    string          `json:"sender"`
	Msg       json.RawMessage `json:"msg"`
	Funds     types.Coins     `json:"funds,omitempty"`
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
}

type signDoc struct {
	Contract  string          `json:"contract"`
	Sender    string          `json:"sender"`
	Msg       json.RawMessage `json:"msg"`
	Funds     string          `json:"funds"`
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
}

// SignBytes returns the canonical payload the sender signs. Msg is compacted
// and funds are rendered in sorted coin notation so whitespace and ordering
// never change the digest.
func (e Envelope) SignBytes(contract string) ([]byte, error) {
	var msg bytes.Buffer
	if err := json.Compact(&msg, e.Msg); err != nil {
		return nil, fmt.Errorf("%w: msg: %v", ErrMalformedEnvelope, err)
	}
	return json.Marshal(signDoc{
		Contract:  contract,
		Sender:    e.Sender,
		Msg:       msg.Bytes(),
		Funds:     types.NewCoins(e.Funds...).String(),
		Nonce:     e.Nonce,
		Timestamp: e.Timestamp,
	})
}

// Sign fills Signature with key's attestation over the envelope.
func (e *Envelope) Sign(key *crypto.PrivateKey, chainID, contract string) error {
	payload, err := e.SignBytes(contract)
	if err != nil {
		return err
	}
	sig, err := crypto.SignCall(key, chainID, payload)
	if err != nil {
		return err
	}
	e.Signature = hex.EncodeToString(sig)
	return nil
}

// Authenticator verifies envelopes and consumes their nonces.
type Authenticator struct {
	chainID string
	prefix  crypto.AddressPrefix
	nonces  *NonceStore
	skew    time.Duration
	nowFn   func() time.Time
}

func NewAuthenticator(chainID string, prefix crypto.AddressPrefix, nonces *NonceStore, skew time.Duration, nowFn func() time.Time) *Authenticator {
	if nowFn == nil {
		nowFn = time.Now
	}
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	return &Authenticator{chainID: chainID, prefix: prefix, nonces: nonces, skew: skew, nowFn: nowFn}
}

// Skew is the accepted distance between an envelope timestamp and now.
func (a *Authenticator) Skew() time.Duration { return a.skew }

// Authenticate returns the verified sender. The nonce is consumed only after
// the signature checks out, and stays consumed even if the call later fails.
func (a *Authenticator) Authenticate(contract crypto.Address, env Envelope) (crypto.Address, error) {
	sender, err := crypto.ValidateAddress(a.prefix, env.Sender)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: sender: %v", ErrMalformedEnvelope, err)
	}
	nonce := strings.TrimSpace(env.Nonce)
	if nonce == "" || len(nonce) > maxNonceLength {
		return crypto.Address{}, fmt.Errorf("%w: nonce must be 1-%d bytes", ErrMalformedEnvelope, maxNonceLength)
	}
	if len(env.Msg) == 0 {
		return crypto.Address{}, fmt.Errorf("%w: msg required", ErrMalformedEnvelope)
	}
	if err := env.Funds.Validate(); err != nil {
		return crypto.Address{}, fmt.Errorf("%w: funds: %v", ErrMalformedEnvelope, err)
	}
	now := a.nowFn()
	issued := time.Unix(env.Timestamp, 0)
	if issued.Before(now.Add(-a.skew)) || issued.After(now.Add(a.skew)) {
		return crypto.Address{}, ErrStaleEnvelope
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(env.Signature, "0x"))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: signature: %v", ErrMalformedEnvelope, err)
	}
	payload, err := env.SignBytes(contract.String())
	if err != nil {
		return crypto.Address{}, err
	}
	if err := crypto.VerifyCall(sender, a.chainID, payload, sig); err != nil {
		return crypto.Address{}, err
	}
	if err := a.nonces.Consume(sender.String(), nonce, now); err != nil {
		return crypto.Address{}, err
	}
	return sender, nil
}
