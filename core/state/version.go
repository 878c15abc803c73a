package state

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// StateVersion identifies the expected on-disk schema layout of the host
// database. Increment this constant whenever breaking changes are made to the
// stored structure.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	contractInfoKey = []byte("contract_info")

	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
	// ErrContractVersionMissing indicates a contract store without an identity
	// record. It is an integrity fault: every instantiated contract writes one.
	ErrContractVersionMissing = errors.New("state: contract version not found")
)

// ContractVersion identifies the code that last wrote a contract's store.
type ContractVersion struct {
	Contract string
	Version  string
}

func (v ContractVersion) String() string {
	return v.Contract + "@" + v.Version
}

// SetContractVersion records the contract name and version. Instantiate and
// migrate handlers call it as their final write.
func (m *Manager) SetContractVersion(contract, version string) error {
	contract = strings.TrimSpace(contract)
	version = strings.TrimSpace(version)
	if contract == "" || version == "" {
		return fmt.Errorf("state: contract name and version required")
	}
	return m.KVPut(contractInfoKey, &ContractVersion{Contract: contract, Version: version})
}

// GetContractVersion loads the contract identity record.
func (m *Manager) GetContractVersion() (*ContractVersion, error) {
	info := new(ContractVersion)
	ok, err := m.KVGet(contractInfoKey, info)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContractVersionMissing
	}
	return info, nil
}

// SetStateVersion records the provided schema version in state. Callers should
// invoke this after performing any required migrations.
func (m *Manager) SetStateVersion(version uint32) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and a boolean indicating
// whether the value was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion verifies that the on-disk state version matches the
// version supported by this binary. A fresh database is stamped with the
// current version.
func EnsureStateVersion(m *Manager) error {
	if m == nil {
		return fmt.Errorf("state: manager must not be nil")
	}
	version, ok, err := m.StateVersion()
	if err != nil {
		return err
	}
	if !ok {
		return m.SetStateVersion(StateVersion)
	}
	if version == StateVersion {
		return nil
	}
	return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
}
