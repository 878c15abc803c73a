package core

import (
	"errors"
	"fmt"

	"countingchain/core/events"
	"countingchain/core/state"
	"countingchain/core/types"
	"countingchain/observability"
)

// bank moves balances inside one call's staged state.
type bank struct {
	state *state.Manager
}

// send moves amount from one identity to another. Zero-amount entries are
// skipped, so a list of only zero entries is a no-op that still succeeds.
func (b bank) send(from, to string, amount types.Coins) (*types.Event, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	moving := amount.NonZero()
	if len(moving) == 0 {
		return nil, nil
	}
	if from == to {
		return nil, fmt.Errorf("%w: sender and recipient are identical", ErrInvalidMessage)
	}
	fromBalance, err := b.state.Balances(from)
	if err != nil {
		return nil, err
	}
	remaining, err := fromBalance.SafeSub(moving)
	if err != nil {
		if errors.Is(err, types.ErrInsufficientFunds) {
			return nil, fmt.Errorf("%w: %s sending %s: %v", ErrInsufficientFunds, from, moving, err)
		}
		return nil, err
	}
	toBalance, err := b.state.Balances(to)
	if err != nil {
		return nil, err
	}
	if err := b.state.SetBalances(from, remaining); err != nil {
		return nil, err
	}
	if err := b.state.SetBalances(to, toBalance.Add(moving)); err != nil {
		return nil, err
	}
	for _, coin := range moving {
		observability.Events().RecordTransfer(coin.Denom)
	}
	return events.Transfer{From: from, To: to, Amount: moving}.Event(), nil
}

// mint credits amount to addr without a sender. Only genesis uses it.
func (b bank) mint(addr string, amount types.Coins) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	balance, err := b.state.Balances(addr)
	if err != nil {
		return err
	}
	return b.state.SetBalances(addr, balance.Add(amount))
}
