package counting

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is matched by *UnauthorizedError.
	ErrUnauthorized = errors.New("counting: unauthorized")
	// ErrInvalidContract is matched by *InvalidContractError.
	ErrInvalidContract = errors.New("counting: invalid contract")
	// ErrInvalidContractVersion is matched by *InvalidContractVersionError.
	ErrInvalidContractVersion = errors.New("counting: invalid contract version")
	// ErrStateNotFound signals an instantiated contract whose record is
	// missing. It is an integrity fault and is never recovered.
	ErrStateNotFound = errors.New("counting: state not found")
	// ErrOverflow rejects arithmetic that would wrap a uint64.
	ErrOverflow = errors.New("counting: uint64 overflow")
	// ErrUnknownMessage rejects payloads that select no variant or several.
	ErrUnknownMessage = errors.New("counting: unknown message")
	// ErrInvalidParent rejects a malformed parent configuration.
	ErrInvalidParent = errors.New("counting: invalid parent")
	// ErrInvalidRecipient rejects a withdraw_to recipient that is not a valid
	// identity.
	ErrInvalidRecipient = errors.New("counting: invalid recipient")
)

// UnauthorizedError is returned when someone other than the owner attempts a
// withdrawal.
type UnauthorizedError struct {
	Owner string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: only %s can call it", e.Owner)
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// InvalidContractError is returned when migrating a store written by a
// different contract.
type InvalidContractError struct {
	Contract string
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("invalid contract to migrate from: %s", e.Contract)
}

func (e *InvalidContractError) Is(target error) bool { return target == ErrInvalidContract }

// InvalidContractVersionError is returned when the stored version has no
// migration path.
type InvalidContractVersionError struct {
	Version string
}

func (e *InvalidContractVersionError) Error() string {
	return fmt.Sprintf("invalid contract version for migration: %s", e.Version)
}

func (e *InvalidContractVersionError) Is(target error) bool {
	return target == ErrInvalidContractVersion
}
