package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"countingchain/core/types"
	"countingchain/storage"
)

// Manager provides typed access to a key-value store. Values are RLP encoded
// and keys are hashed with keccak256 so that record layout is independent of
// key length.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// DB exposes the underlying database.
func (m *Manager) DB() storage.Database {
	if m == nil {
		return nil
	}
	return m.db
}

var balancePrefix = []byte("balance:")

func balanceKey(addr string) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr)
	return buf
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: manager unavailable")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// SetBalances stores the full balance list of an identity. Zero entries are
// dropped so that an emptied account reads back as an empty list.
func (m *Manager) SetBalances(addr string, coins types.Coins) error {
	if addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if err := coins.Validate(); err != nil {
		return err
	}
	return m.KVPut(balanceKey(addr), []types.Coin(types.NewCoins(coins.NonZero()...)))
}

// Balances retrieves every non-zero balance held by addr, sorted by
// denomination.
func (m *Manager) Balances(addr string) (types.Coins, error) {
	var coins []types.Coin
	ok, err := m.KVGet(balanceKey(addr), &coins)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.Coins{}, nil
	}
	return types.NewCoins(coins...), nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVRaw returns the encoded bytes stored under key, or nil when absent.
func (m *Manager) KVRaw(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("kv: key must not be empty")
	}
	return m.get(key)
}

// KVHas reports whether a value is stored under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.KVGet(key, nil)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.db.Delete(kvKey(key))
}
