package core

import (
	"fmt"

	"countingchain/core/contract"
	"countingchain/core/state"
	"countingchain/crypto"
)

var (
	instanceSeqKey    = []byte("wasm/instance_seq")
	heightKey         = []byte("app/height")
	contractInfoSpace = "wasm/contract/"
	contractStoreRoot = "wasm/store/"
)

// ContractInfo is the host's record of an instance.
type ContractInfo struct {
	Address string
	CodeID  uint64
	Creator string
	// Admin may migrate the instance. Empty disables migration.
	Admin string
	Label string
}

// CodeInfo describes registered contract code.
type CodeInfo struct {
	CodeID  uint64
	Name    string
	Version string
}

func contractInfoKey(addr string) []byte {
	return []byte(contractInfoSpace + addr)
}

func contractStorePrefix(addr string) []byte {
	return []byte(contractStoreRoot + addr + "/")
}

// StoreCode registers contract code and returns its id. Ids are assigned
// sequentially from 1 in registration order; every process replaying a data
// directory must register the same codes in the same order.
func (a *App) StoreCode(code contract.Contract) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.codes = append(a.codes, code)
	return uint64(len(a.codes))
}

// Codes lists the registered code.
func (a *App) Codes() []CodeInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CodeInfo, len(a.codes))
	for i, code := range a.codes {
		out[i] = CodeInfo{CodeID: uint64(i + 1), Name: code.Name(), Version: code.Version()}
	}
	return out
}

func (a *App) code(codeID uint64) (contract.Contract, error) {
	if codeID == 0 || codeID > uint64(len(a.codes)) {
		return nil, fmt.Errorf("%w: %d", ErrCodeNotFound, codeID)
	}
	return a.codes[codeID-1], nil
}

func loadContractInfo(m *state.Manager, addr string) (*ContractInfo, error) {
	info := new(ContractInfo)
	ok, err := m.KVGet(contractInfoKey(addr), info)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, addr)
	}
	return info, nil
}

func storeContractInfo(m *state.Manager, info *ContractInfo) error {
	return m.KVPut(contractInfoKey(info.Address), info)
}

// nextContractAddress derives the address for the next instance of codeID and
// advances the global instance sequence.
func nextContractAddress(m *state.Manager, prefix crypto.AddressPrefix, codeID uint64) (crypto.Address, error) {
	var seq uint64
	if _, err := m.KVGet(instanceSeqKey, &seq); err != nil {
		return crypto.Address{}, err
	}
	seq++
	if err := m.KVPut(instanceSeqKey, seq); err != nil {
		return crypto.Address{}, err
	}
	return crypto.ContractAddress(prefix, codeID, seq), nil
}

// ContractInfo returns the host record for addr.
func (a *App) ContractInfo(addr crypto.Address) (*ContractInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return loadContractInfo(state.NewManager(a.db), addr.String())
}
