package contract

import (
	"countingchain/core/types"
)

// Msg is an outbound request a handler asks the host to perform after it
// returns.
type Msg interface {
	msgType() string
}

// BankSend moves funds out of the emitting contract's balance.
type BankSend struct {
	ToAddress string
	Amount    types.Coins
}

func (BankSend) msgType() string { return "bank/send" }

// WasmExecute invokes another contract's execute entry point with the
// emitting contract as the sender.
type WasmExecute struct {
	ContractAddr string
	Msg          []byte
	Funds        types.Coins
}

func (WasmExecute) msgType() string { return "wasm/execute" }

// MsgType names the message kind for logs and metrics.
func MsgType(m Msg) string {
	if m == nil {
		return ""
	}
	return m.msgType()
}

// Response is the result of an instantiate, execute or migrate handler.
type Response struct {
	Messages   []Msg
	Attributes []types.Attribute
	Data       []byte
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{}
}

// AddMessage appends an outbound message.
func (r *Response) AddMessage(msg Msg) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// AddAttribute appends a key/value attribute.
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, types.Attribute{Key: key, Value: value})
	return r
}

// Attr returns the first attribute recorded under key.
func (r *Response) Attr(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
