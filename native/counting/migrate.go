package counting

import (
	"errors"
	"fmt"

	"countingchain/core/contract"
	"countingchain/core/state"
	"countingchain/native/counting/legacy"
)

// migration derives the current account from a historical layout. Each
// function rebuilds the full record from the old one, so rerunning it after
// a partial write yields the same account.
type migration func(m *state.Manager) (*Account, error)

var migrations = map[string]migration{
	legacy.VersionV010: fromLegacy(legacy.LoadV010),
	legacy.VersionV020: fromLegacy(legacy.LoadV020),
}

func fromLegacy(load func(*state.Manager) (*legacy.StateV020, error)) migration {
	return func(m *state.Manager) (*Account, error) {
		old, err := load(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStateNotFound, err)
		}
		return &Account{
			Counter:   old.Counter,
			Threshold: old.MinimalDonation.Clone(),
			Owner:     old.Owner,
		}, nil
	}
}

// migrate returns the stored version it started from alongside the result.
func migrate(m *state.Manager) (string, *contract.Response, error) {
	stored, err := m.GetContractVersion()
	if err != nil {
		if errors.Is(err, state.ErrContractVersionMissing) {
			return "", nil, fmt.Errorf("%w: %v", ErrStateNotFound, err)
		}
		return "", nil, err
	}
	if stored.Contract != ContractName {
		return stored.Version, nil, &InvalidContractError{Contract: stored.Contract}
	}
	if stored.Version == ContractVersion {
		return stored.Version, contract.NewResponse(), nil
	}

	step, ok := migrations[stored.Version]
	if !ok {
		return stored.Version, nil, &InvalidContractVersionError{Version: stored.Version}
	}
	acc, err := step(m)
	if err != nil {
		return stored.Version, nil, err
	}
	if err := saveAccount(m, acc); err != nil {
		return stored.Version, nil, err
	}
	if err := m.SetContractVersion(ContractName, ContractVersion); err != nil {
		return stored.Version, nil, err
	}
	resp := contract.NewResponse().
		AddAttribute(AttrAction, ActionMigrate).
		AddAttribute(AttrFromVersion, stored.Version).
		AddAttribute(AttrToVersion, ContractVersion)
	return stored.Version, resp, nil
}
