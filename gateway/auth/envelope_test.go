package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/storage"
)

const testChain = "counting-local"

type envelopeFixture struct {
	key      *crypto.PrivateKey
	sender   crypto.Address
	contract crypto.Address
	now      time.Time
	auth     *Authenticator
}

func newEnvelopeFixture(t *testing.T) *envelopeFixture {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	now := time.Unix(1_717_787_717, 0)
	return &envelopeFixture{
		key:      key,
		sender:   key.PubKey().Address(crypto.DefaultPrefix),
		contract: crypto.ContractAddress(crypto.DefaultPrefix, 3, 1),
		now:      now,
		auth: NewAuthenticator(testChain, crypto.DefaultPrefix, NewNonceStore(storage.NewMemDB()),
			time.Minute, func() time.Time { return now }),
	}
}

func (f *envelopeFixture) signed(t *testing.T, nonce string) Envelope {
	t.Helper()
	env := Envelope{
		Sender:    f.sender.String(),
		Msg:       json.RawMessage(`{ "donate": {} }`),
		Funds:     types.NewCoins(types.NewCoin("atom", 10)),
		Nonce:     nonce,
		Timestamp: f.now.Unix(),
	}
	require.NoError(t, env.Sign(f.key, testChain, f.contract.String()))
	return env
}

func TestAuthenticateAcceptsSignedEnvelopeOnce(t *testing.T) {
	f := newEnvelopeFixture(t)
	env := f.signed(t, "n-1")

	sender, err := f.auth.Authenticate(f.contract, env)
	require.NoError(t, err)
	require.True(t, sender.Equal(f.sender))

	_, err = f.auth.Authenticate(f.contract, env)
	require.ErrorIs(t, err, ErrNonceReplayed)
}

func TestSignBytesIgnoresWhitespace(t *testing.T) {
	f := newEnvelopeFixture(t)
	env := f.signed(t, "n-1")
	env.Msg = json.RawMessage(`{"donate":{}}`)
	_, err := f.auth.Authenticate(f.contract, env)
	require.NoError(t, err)
}

func TestAuthenticateRejectsTampering(t *testing.T) {
	f := newEnvelopeFixture(t)

	tampered := f.signed(t, "n-1")
	tampered.Msg = json.RawMessage(`{"withdraw":{}}`)
	_, err := f.auth.Authenticate(f.contract, tampered)
	require.ErrorIs(t, err, crypto.ErrBadAttestation)

	other := f.signed(t, "n-2")
	_, err = f.auth.Authenticate(crypto.ContractAddress(crypto.DefaultPrefix, 3, 2), other)
	require.ErrorIs(t, err, crypto.ErrBadAttestation)

	// rejected envelopes never burn their nonce
	_, err = f.auth.Authenticate(f.contract, f.signed(t, "n-2"))
	require.NoError(t, err)
}

func TestAuthenticateRejectsMalformedAndStale(t *testing.T) {
	f := newEnvelopeFixture(t)

	stale := f.signed(t, "n-1")
	stale.Timestamp = f.now.Add(-2 * time.Minute).Unix()
	require.NoError(t, stale.Sign(f.key, testChain, f.contract.String()))
	_, err := f.auth.Authenticate(f.contract, stale)
	require.ErrorIs(t, err, ErrStaleEnvelope)

	noNonce := f.signed(t, "")
	_, err = f.auth.Authenticate(f.contract, noNonce)
	require.ErrorIs(t, err, ErrMalformedEnvelope)

	badSender := f.signed(t, "n-3")
	badSender.Sender = "cosmos1invalid"
	_, err = f.auth.Authenticate(f.contract, badSender)
	require.ErrorIs(t, err, ErrMalformedEnvelope)

	badSig := f.signed(t, "n-4")
	badSig.Signature = "zz"
	_, err = f.auth.Authenticate(f.contract, badSig)
	require.ErrorIs(t, err, ErrMalformedEnvelope)
}
