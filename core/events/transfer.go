package events

import (
	"countingchain/core/types"
)

const (
	// TypeTransfer is emitted for every bank balance movement.
	TypeTransfer = "transfer"
)

// Transfer describes a bank send between two identities.
type Transfer struct {
	From   string
	To     string
	Amount types.Coins
}

func (Transfer) EventType() string { return TypeTransfer }

// Event renders the transfer in the attribute form shared with contract
// events.
func (e Transfer) Event() *types.Event {
	return types.NewEvent(TypeTransfer,
		"recipient", e.To,
		"sender", e.From,
		"amount", e.Amount.String(),
	)
}
