package counting

import (
	"fmt"
	"math/big"

	"countingchain/core/state"
	"countingchain/core/types"
)

const (
	// ContractName identifies this contract in the store's version record.
	ContractName = "counting-contract"
	// ContractVersion is the layout written by this code.
	ContractVersion = "0.3.0"
)

var (
	stateKey          = []byte("state")
	parentDonationKey = []byte("parent_donation")
)

// Account is the contract's single persisted record.
type Account struct {
	Counter   uint64
	Threshold types.Coin
	Owner     string
	// CascadeRemaining counts eligible donations until the next forward to
	// the parent. It is nil when no parent is configured and never stored
	// as zero.
	CascadeRemaining *uint64 `rlp:"nil"`
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{Counter: a.Counter, Threshold: a.Threshold.Clone(), Owner: a.Owner}
	if a.CascadeRemaining != nil {
		remaining := *a.CascadeRemaining
		out.CascadeRemaining = &remaining
	}
	return out
}

// ParentLink describes the upstream contract receiving forwarded donations.
type ParentLink struct {
	Address string
	Period  uint64
	Share   types.Decimal
}

type parentLinkRecord struct {
	Address      string
	Period       uint64
	ShareAtomics *big.Int
}

func loadAccount(m *state.Manager) (*Account, error) {
	acc := new(Account)
	ok, err := m.KVGet(stateKey, acc)
	if err != nil {
		return nil, fmt.Errorf("counting: load state: %w", err)
	}
	if !ok {
		return nil, ErrStateNotFound
	}
	return acc, nil
}

func saveAccount(m *state.Manager, acc *Account) error {
	if acc.CascadeRemaining != nil && *acc.CascadeRemaining == 0 {
		return fmt.Errorf("counting: cascade counter must not be stored as zero")
	}
	return m.KVPut(stateKey, acc)
}

func loadParent(m *state.Manager) (*ParentLink, error) {
	rec := new(parentLinkRecord)
	ok, err := m.KVGet(parentDonationKey, rec)
	if err != nil {
		return nil, fmt.Errorf("counting: load parent: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: parent link missing", ErrStateNotFound)
	}
	share, err := types.NewDecimalFromAtomics(rec.ShareAtomics)
	if err != nil {
		return nil, fmt.Errorf("counting: decode parent share: %w", err)
	}
	return &ParentLink{Address: rec.Address, Period: rec.Period, Share: share}, nil
}

func saveParent(m *state.Manager, link *ParentLink) error {
	return m.KVPut(parentDonationKey, &parentLinkRecord{
		Address:      link.Address,
		Period:       link.Period,
		ShareAtomics: link.Share.Atomics(),
	})
}

// LoadAccount reads the current record. Tools and tests use it to inspect
// state without going through a query.
func LoadAccount(m *state.Manager) (*Account, error) { return loadAccount(m) }

// LoadParent reads the parent link. It fails with ErrStateNotFound when none
// was configured.
func LoadParent(m *state.Manager) (*ParentLink, error) { return loadParent(m) }
