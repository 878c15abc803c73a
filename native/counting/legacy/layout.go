// Package legacy holds the storage layouts and code of the counting contract
// releases that predate the current one. The current code reads these layouts
// when migrating; the contracts themselves are kept so historical stores can
// be produced and upgraded end to end.
package legacy

import (
	"github.com/ethereum/go-ethereum/rlp"

	"countingchain/core/types"
)

const (
	ContractName = "counting-contract"
	// VersionV010 stored each field under its own key.
	VersionV010 = "0.1.0"
	// VersionV020 stored a single record without cascade fields.
	VersionV020 = "0.2.0"
)

// Keys used by the 0.1.0 layout.
var (
	CounterKey         = []byte("counter")
	MinimalDonationKey = []byte("minimal_donation")
	OwnerKey           = []byte("owner")
)

// StateKey is the unified record key used from 0.2.0 on.
var StateKey = []byte("state")

// StateV020 is the 0.2.0 unified record. Trailing fields added by later
// layouts under the same key are ignored so that decoding stays valid if a
// migration is retried after the record was already rewritten.
type StateV020 struct {
	Counter         uint64
	MinimalDonation types.Coin
	Owner           string
	Rest            []rlp.RawValue `rlp:"tail"`
}
