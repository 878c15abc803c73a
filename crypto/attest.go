package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrBadAttestation reports a signature that does not recover to the claimed
// sender.
var ErrBadAttestation = errors.New("crypto: caller attestation failed")

// CallDigest is the keccak256 hash a caller signs to attest a call payload.
func CallDigest(chainID string, payload []byte) []byte {
	return crypto.Keccak256([]byte("counting-call"), []byte(chainID), payload)
}

// SignCall produces a 65-byte recoverable signature over the call digest.
func SignCall(key *PrivateKey, chainID string, payload []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(CallDigest(chainID, payload), key.PrivateKey)
}

// RecoverCaller returns the identity whose key produced sig over payload.
func RecoverCaller(prefix AddressPrefix, chainID string, payload, sig []byte) (Address, error) {
	pub, err := crypto.SigToPub(CallDigest(chainID, payload), sig)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAttestation, err)
	}
	return NewAddress(prefix, crypto.PubkeyToAddress(*pub).Bytes()), nil
}

// VerifyCall checks that sig over payload was produced by claimed.
func VerifyCall(claimed Address, chainID string, payload, sig []byte) error {
	recovered, err := RecoverCaller(claimed.Prefix(), chainID, payload, sig)
	if err != nil {
		return err
	}
	if !recovered.Equal(claimed) {
		return fmt.Errorf("%w: signature belongs to %s, not %s", ErrBadAttestation, recovered, claimed)
	}
	return nil
}
