package counting

import (
	"fmt"
	"math"

	"countingchain/core/contract"
	"countingchain/core/types"
)

// eligible reports whether funds satisfy the threshold. A zero threshold
// accepts every donation; otherwise only an entry in the threshold denom with
// at least the threshold amount counts.
func eligible(threshold types.Coin, funds types.Coins) bool {
	if threshold.IsZero() {
		return true
	}
	for _, coin := range funds {
		if coin.Denom == threshold.Denom && coin.Amount != nil && coin.Amount.Cmp(threshold.Amount) >= 0 {
			return true
		}
	}
	return false
}

// forwardShare applies share to every balance entry, truncating. Entries that
// round to zero are kept.
func forwardShare(balance types.Coins, share types.Decimal) types.Coins {
	out := make(types.Coins, 0, len(balance))
	for _, coin := range balance {
		out = append(out, types.NewCoinFromBig(coin.Denom, share.MulFloor(coin.Amount)))
	}
	return out
}

func (c *Contract) donate(deps contract.Deps, env contract.Env, info contract.MessageInfo) (*contract.Response, error) {
	acc, err := loadAccount(deps.State)
	if err != nil {
		return nil, err
	}
	resp := contract.NewResponse()

	ok := eligible(acc.Threshold, info.Funds)
	deps.Outcomes.RecordDonation(ok)
	if ok {
		if acc.Counter == math.MaxUint64 {
			return nil, fmt.Errorf("%w: counter", ErrOverflow)
		}
		acc.Counter++

		if acc.CascadeRemaining != nil {
			remaining := *acc.CascadeRemaining - 1
			if remaining == 0 {
				link, err := loadParent(deps.State)
				if err != nil {
					return nil, err
				}
				remaining = link.Period
				msg, err := c.forward(deps, env, link)
				if err != nil {
					return nil, err
				}
				resp.AddMessage(msg).AddAttribute(AttrDonatedToParent, link.Address)
			}
			acc.CascadeRemaining = &remaining
		}

		if err := saveAccount(deps.State, acc); err != nil {
			return nil, err
		}
	}

	resp.AddAttribute(AttrAction, ActionPoke).
		AddAttribute(AttrSender, info.Sender.String()).
		AddAttribute(AttrCounter, fmt.Sprintf("%d", acc.Counter))
	return resp, nil
}

// forward builds the donate call carrying share of the whole balance to the
// parent. The balance already includes the funds attached to this call.
func (c *Contract) forward(deps contract.Deps, env contract.Env, link *ParentLink) (contract.Msg, error) {
	balance, err := deps.Querier.AllBalances(env.Contract)
	if err != nil {
		return nil, fmt.Errorf("counting: query balance: %w", err)
	}
	deps.Outcomes.RecordForward()
	return contract.WasmExecute{
		ContractAddr: link.Address,
		Msg:          DonateMsg(),
		Funds:        forwardShare(balance, link.Share),
	}, nil
}
