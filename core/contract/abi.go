// Package contract defines the boundary between the host and contract code:
// the environment a call runs in, the capabilities a handler may use, and the
// response a handler returns. Contracts never call into each other directly;
// they return messages that the host dispatches after the handler completes.
package contract

import (
	"countingchain/core/state"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/observability"
)

// Env describes the chain and the contract instance being called.
type Env struct {
	ChainID     string
	BlockHeight uint64
	Contract    crypto.Address
}

// MessageInfo carries the attested caller and the funds attached to the call.
// Funds have already been moved into the contract's balance when the handler
// runs.
type MessageInfo struct {
	Sender crypto.Address
	Funds  types.Coins
}

// Querier exposes read-only host state to contract code.
type Querier interface {
	AllBalances(addr crypto.Address) (types.Coins, error)
}

// Deps bundles a contract's private store with the host querier. For queries
// the store is read-only. Outcomes buffers business metrics until the host
// knows whether the call committed; it may be nil.
type Deps struct {
	State    *state.Manager
	Querier  Querier
	Outcomes *observability.ContractOutcomes
}

// Contract is the code behind a contract instance. Every method must be a
// deterministic function of its inputs and the store contents.
type Contract interface {
	Name() string
	Version() string
	Instantiate(deps Deps, env Env, info MessageInfo, msg []byte) (*Response, error)
	Execute(deps Deps, env Env, info MessageInfo, msg []byte) (*Response, error)
	Query(deps Deps, env Env, msg []byte) ([]byte, error)
	// Migrate upgrades the store written by an older code version. The host
	// restricts who may trigger it; implementations do not check the caller.
	Migrate(deps Deps, env Env, msg []byte) (*Response, error)
}
