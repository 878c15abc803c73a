package counting

import (
	"encoding/json"
	"fmt"

	"countingchain/core/types"
)

// Empty is the payload of variants that carry no fields.
type Empty struct{}

// ParentMsg configures the upstream contract that receives a share of the
// balance every DonatingPeriod eligible donations.
type ParentMsg struct {
	Addr           string        `json:"addr"`
	DonatingPeriod uint64        `json:"donating_period"`
	Part           types.Decimal `json:"part"`
}

// InstantiateMsg creates the contract record. The caller becomes the owner.
type InstantiateMsg struct {
	Counter         *uint64    `json:"counter,omitempty"`
	MinimalDonation types.Coin `json:"minimal_donation"`
	Parent          *ParentMsg `json:"parent,omitempty"`
}

// WithdrawToMsg sends the balance, optionally capped per denom, to Recipient.
type WithdrawToMsg struct {
	Recipient string      `json:"recipient"`
	Funds     types.Coins `json:"funds,omitempty"`
}

// ExecMsg is a tagged union; exactly one field is set.
type ExecMsg struct {
	Donate     *Empty         `json:"donate,omitempty"`
	Withdraw   *Empty         `json:"withdraw,omitempty"`
	WithdrawTo *WithdrawToMsg `json:"withdraw_to,omitempty"`
}

// IncrementMsg asks for Number+1.
type IncrementMsg struct {
	Number uint64 `json:"number"`
}

// QueryMsg is a tagged union; exactly one field is set.
type QueryMsg struct {
	Value     *Empty        `json:"value,omitempty"`
	Increment *IncrementMsg `json:"increment,omitempty"`
}

// ValueResp answers both query variants.
type ValueResp struct {
	Value uint64 `json:"value"`
}

// DonateMsg returns the encoded donate execute message.
func DonateMsg() []byte { return mustEncode(ExecMsg{Donate: &Empty{}}) }

// WithdrawMsg returns the encoded withdraw execute message.
func WithdrawMsg() []byte { return mustEncode(ExecMsg{Withdraw: &Empty{}}) }

// WithdrawToMessage returns the encoded withdraw_to execute message.
func WithdrawToMessage(recipient string, caps types.Coins) []byte {
	return mustEncode(ExecMsg{WithdrawTo: &WithdrawToMsg{Recipient: recipient, Funds: caps}})
}

// ValueQuery returns the encoded value query.
func ValueQuery() []byte { return mustEncode(QueryMsg{Value: &Empty{}}) }

// IncrementQuery returns the encoded increment query.
func IncrementQuery(number uint64) []byte {
	return mustEncode(QueryMsg{Increment: &IncrementMsg{Number: number}})
}

func mustEncode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func decodeExec(data []byte) (*ExecMsg, error) {
	msg := new(ExecMsg)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}
	set := 0
	for _, present := range []bool{msg.Donate != nil, msg.Withdraw != nil, msg.WithdrawTo != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: expected exactly one execute variant", ErrUnknownMessage)
	}
	return msg, nil
}

func decodeQuery(data []byte) (*QueryMsg, error) {
	msg := new(QueryMsg)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}
	if (msg.Value == nil) == (msg.Increment == nil) {
		return nil, fmt.Errorf("%w: expected exactly one query variant", ErrUnknownMessage)
	}
	return msg, nil
}
