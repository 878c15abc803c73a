// Package counting implements the counting contract: a donation counter with
// a minimal-donation threshold, owner-only withdrawals, periodic forwarding of
// a share of the balance to a parent contract, and a versioned migration path
// from the 0.1.0 and 0.2.0 layouts.
package counting

import (
	"encoding/json"
	"fmt"
	"strings"

	"countingchain/core/contract"
	"countingchain/core/types"
	"countingchain/crypto"
)

// Contract is the current counting contract code.
type Contract struct{}

var _ contract.Contract = (*Contract)(nil)

// New returns the contract. Business outcomes go to the buffer the host
// passes in Deps.
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Name() string    { return ContractName }
func (c *Contract) Version() string { return ContractVersion }

// Instantiate stores the initial account, the optional parent link and the
// contract version record. The caller becomes the owner.
func (c *Contract) Instantiate(deps contract.Deps, env contract.Env, info contract.MessageInfo, raw []byte) (*contract.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}
	if err := msg.MinimalDonation.Validate(); err != nil {
		return nil, fmt.Errorf("counting: minimal donation: %w", err)
	}

	acc := &Account{
		Threshold: msg.MinimalDonation.Clone(),
		Owner:     info.Sender.String(),
	}
	if msg.Counter != nil {
		acc.Counter = *msg.Counter
	}

	var link *ParentLink
	if msg.Parent != nil {
		parent, err := validateParent(env.Contract.Prefix(), msg.Parent)
		if err != nil {
			return nil, err
		}
		link = parent
		remaining := parent.Period
		acc.CascadeRemaining = &remaining
	}

	if err := deps.State.SetContractVersion(ContractName, ContractVersion); err != nil {
		return nil, err
	}
	if err := saveAccount(deps.State, acc); err != nil {
		return nil, err
	}
	if link != nil {
		if err := saveParent(deps.State, link); err != nil {
			return nil, err
		}
	}
	return contract.NewResponse().
		AddAttribute(AttrAction, ActionInstantiate).
		AddAttribute(AttrSender, info.Sender.String()).
		AddAttribute(AttrCounter, fmt.Sprintf("%d", acc.Counter)), nil
}

func validateParent(prefix crypto.AddressPrefix, p *ParentMsg) (*ParentLink, error) {
	addr, err := crypto.ValidateAddress(prefix, strings.TrimSpace(p.Addr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParent, err)
	}
	if p.DonatingPeriod == 0 {
		return nil, fmt.Errorf("%w: donating period must be at least 1", ErrInvalidParent)
	}
	if p.Part.Cmp(types.DecimalOne()) > 0 {
		return nil, fmt.Errorf("%w: part %s exceeds 1", ErrInvalidParent, p.Part)
	}
	return &ParentLink{Address: addr.String(), Period: p.DonatingPeriod, Share: p.Part}, nil
}

// Execute routes donate, withdraw and withdraw_to.
func (c *Contract) Execute(deps contract.Deps, env contract.Env, info contract.MessageInfo, raw []byte) (*contract.Response, error) {
	msg, err := decodeExec(raw)
	if err != nil {
		return nil, err
	}
	switch {
	case msg.Donate != nil:
		return c.donate(deps, env, info)
	case msg.Withdraw != nil:
		resp, err := c.withdraw(deps, env, info)
		deps.Outcomes.RecordWithdrawal("withdraw", err)
		return resp, err
	default:
		resp, err := c.withdrawTo(deps, env, info, msg.WithdrawTo.Recipient, msg.WithdrawTo.Funds)
		deps.Outcomes.RecordWithdrawal("withdraw_to", err)
		return resp, err
	}
}

// Query answers value and increment.
func (c *Contract) Query(deps contract.Deps, env contract.Env, raw []byte) ([]byte, error) {
	msg, err := decodeQuery(raw)
	if err != nil {
		return nil, err
	}
	var resp ValueResp
	if msg.Value != nil {
		resp, err = queryValue(deps)
	} else {
		resp, err = queryIncrement(msg.Increment.Number)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// Migrate upgrades a store written by an older version of this contract.
func (c *Contract) Migrate(deps contract.Deps, env contract.Env, _ []byte) (*contract.Response, error) {
	from, resp, err := migrate(deps.State)
	deps.Outcomes.RecordMigration(from, err)
	return resp, err
}
