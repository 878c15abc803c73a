package core

import "errors"

var (
	// ErrContractNotFound reports a call to an address with no instance.
	ErrContractNotFound = errors.New("core: contract not found")
	// ErrCodeNotFound reports an unknown code id.
	ErrCodeNotFound = errors.New("core: code not found")
	// ErrUnauthorizedMigration reports a migrate call from someone other
	// than the instance admin.
	ErrUnauthorizedMigration = errors.New("core: caller is not the contract admin")
	// ErrCallDepthExceeded stops message chains deeper than MaxCallDepth.
	ErrCallDepthExceeded = errors.New("core: call depth exceeded")
	// ErrInsufficientFunds reports a send larger than the sender's balance.
	ErrInsufficientFunds = errors.New("core: insufficient funds")
	// ErrInvalidMessage reports an outbound message the host cannot route.
	ErrInvalidMessage = errors.New("core: invalid outbound message")
)
