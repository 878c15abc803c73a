package counting

import (
	"fmt"
	"math/big"
	"strings"

	"countingchain/core/contract"
	"countingchain/core/types"
	"countingchain/crypto"
)

func authorize(acc *Account, sender crypto.Address) error {
	if sender.String() != acc.Owner {
		return &UnauthorizedError{Owner: acc.Owner}
	}
	return nil
}

// capFunds clamps every balance entry to its cap. With a non-empty cap list a
// denom missing from caps is clamped to zero; an empty list leaves the balance
// untouched.
func capFunds(balance, caps types.Coins) types.Coins {
	out := balance.Clone()
	if len(caps) == 0 {
		return out
	}
	for i := range out {
		limit := big.NewInt(0)
		if c, ok := caps.Find(out[i].Denom); ok && c.Amount != nil {
			limit = c.Amount
		}
		if out[i].Amount.Cmp(limit) > 0 {
			out[i].Amount = new(big.Int).Set(limit)
		}
	}
	return out
}

func (c *Contract) withdraw(deps contract.Deps, env contract.Env, info contract.MessageInfo) (*contract.Response, error) {
	acc, err := loadAccount(deps.State)
	if err != nil {
		return nil, err
	}
	if err := authorize(acc, info.Sender); err != nil {
		return nil, err
	}
	balance, err := deps.Querier.AllBalances(env.Contract)
	if err != nil {
		return nil, fmt.Errorf("counting: query balance: %w", err)
	}
	return contract.NewResponse().
		AddMessage(contract.BankSend{ToAddress: info.Sender.String(), Amount: balance}).
		AddAttribute(AttrAction, ActionWithdraw).
		AddAttribute(AttrSender, info.Sender.String()), nil
}

func (c *Contract) withdrawTo(deps contract.Deps, env contract.Env, info contract.MessageInfo, recipient string, caps types.Coins) (*contract.Response, error) {
	acc, err := loadAccount(deps.State)
	if err != nil {
		return nil, err
	}
	if err := authorize(acc, info.Sender); err != nil {
		return nil, err
	}
	to, err := crypto.ValidateAddress(env.Contract.Prefix(), strings.TrimSpace(recipient))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if err := caps.Validate(); err != nil {
		return nil, fmt.Errorf("counting: withdraw caps: %w", err)
	}
	balance, err := deps.Querier.AllBalances(env.Contract)
	if err != nil {
		return nil, fmt.Errorf("counting: query balance: %w", err)
	}
	return contract.NewResponse().
		AddMessage(contract.BankSend{ToAddress: to.String(), Amount: capFunds(balance, caps)}).
		AddAttribute(AttrAction, ActionWithdraw).
		AddAttribute(AttrSender, info.Sender.String()), nil
}
