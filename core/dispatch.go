package core

import (
	"fmt"
	"strconv"

	"countingchain/core/contract"
	"countingchain/core/state"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/observability"
	"countingchain/storage"
)

// Event types recorded by the host alongside contract attributes.
const (
	EventTypeWasm        = "wasm"
	EventTypeInstantiate = "instantiate"
	EventTypeMigrate     = "migrate"
	AttrContractAddress  = "_contract_address"
	AttrCodeID           = "code_id"
)

// ContractError wraps a failure returned by contract code.
type ContractError struct {
	Contract string
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %s: %v", e.Contract, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// balanceQuerier answers contract balance queries from staged state.
type balanceQuerier struct {
	state *state.Manager
}

func (q balanceQuerier) AllBalances(addr crypto.Address) (types.Coins, error) {
	return q.state.Balances(addr.String())
}

// txContext carries one top-level call's staged state.
type txContext struct {
	app      *App
	db       storage.Database
	root     *state.Manager
	height   uint64
	events   []*types.Event
	data     []byte
	created  string
	outcomes *observability.ContractOutcomes
}

func (tx *txContext) bank() bank { return bank{state: tx.root} }

func (tx *txContext) deps(addr crypto.Address) contract.Deps {
	store := storage.NewPrefixDB(tx.db, contractStorePrefix(addr.String()))
	return contract.Deps{State: state.NewManager(store), Querier: balanceQuerier{state: tx.root}, Outcomes: tx.outcomes}
}

func (tx *txContext) env(addr crypto.Address) contract.Env {
	return contract.Env{ChainID: tx.app.cfg.ChainID, BlockHeight: tx.height, Contract: addr}
}

func (tx *txContext) transfer(from, to string, amount types.Coins) error {
	evt, err := tx.bank().send(from, to, amount)
	if err != nil {
		return err
	}
	if evt != nil {
		tx.events = append(tx.events, evt)
	}
	return nil
}

func (tx *txContext) instantiate(codeID uint64, sender crypto.Address, msg []byte, funds types.Coins, label string, admin crypto.Address) (crypto.Address, error) {
	code, err := tx.app.code(codeID)
	if err != nil {
		return crypto.Address{}, err
	}
	addr, err := nextContractAddress(tx.root, tx.app.cfg.Prefix, codeID)
	if err != nil {
		return crypto.Address{}, err
	}
	tx.created = addr.String()
	info := &ContractInfo{Address: addr.String(), CodeID: codeID, Creator: sender.String(), Label: label}
	if !admin.IsZero() {
		info.Admin = admin.String()
	}
	if err := storeContractInfo(tx.root, info); err != nil {
		return crypto.Address{}, err
	}
	tx.events = append(tx.events, types.NewEvent(EventTypeInstantiate,
		AttrContractAddress, addr.String(),
		AttrCodeID, strconv.FormatUint(codeID, 10),
	))
	if err := tx.transfer(sender.String(), addr.String(), funds); err != nil {
		return crypto.Address{}, err
	}
	resp, err := code.Instantiate(tx.deps(addr), tx.env(addr), contract.MessageInfo{Sender: sender, Funds: funds.Clone()}, msg)
	if err != nil {
		return crypto.Address{}, &ContractError{Contract: addr.String(), Err: err}
	}
	return addr, tx.handleResponse(0, addr, resp)
}

func (tx *txContext) execute(depth int, sender, addr crypto.Address, msg []byte, funds types.Coins) error {
	if depth > tx.app.cfg.MaxCallDepth {
		return fmt.Errorf("%w: depth %d at %s", ErrCallDepthExceeded, depth, addr)
	}
	info, err := loadContractInfo(tx.root, addr.String())
	if err != nil {
		return err
	}
	code, err := tx.app.code(info.CodeID)
	if err != nil {
		return err
	}
	if err := tx.transfer(sender.String(), addr.String(), funds); err != nil {
		return err
	}
	resp, err := code.Execute(tx.deps(addr), tx.env(addr), contract.MessageInfo{Sender: sender, Funds: funds.Clone()}, msg)
	if err != nil {
		return &ContractError{Contract: addr.String(), Err: err}
	}
	return tx.handleResponse(depth, addr, resp)
}

func (tx *txContext) migrate(sender, addr crypto.Address, newCodeID uint64, msg []byte) error {
	info, err := loadContractInfo(tx.root, addr.String())
	if err != nil {
		return err
	}
	if info.Admin == "" || info.Admin != sender.String() {
		return fmt.Errorf("%w: %s", ErrUnauthorizedMigration, addr)
	}
	code, err := tx.app.code(newCodeID)
	if err != nil {
		return err
	}
	info.CodeID = newCodeID
	if err := storeContractInfo(tx.root, info); err != nil {
		return err
	}
	tx.events = append(tx.events, types.NewEvent(EventTypeMigrate,
		AttrContractAddress, addr.String(),
		AttrCodeID, strconv.FormatUint(newCodeID, 10),
	))
	resp, err := code.Migrate(tx.deps(addr), tx.env(addr), msg)
	if err != nil {
		return &ContractError{Contract: addr.String(), Err: err}
	}
	return tx.handleResponse(0, addr, resp)
}

// handleResponse records the handler's attributes and then dispatches its
// messages in order, depth first. The first failure aborts the whole call.
func (tx *txContext) handleResponse(depth int, addr crypto.Address, resp *contract.Response) error {
	if resp == nil {
		return nil
	}
	if len(resp.Attributes) > 0 {
		evt := &types.Event{Type: EventTypeWasm}
		evt.Attributes = append(evt.Attributes, types.Attribute{Key: AttrContractAddress, Value: addr.String()})
		evt.Attributes = append(evt.Attributes, resp.Attributes...)
		tx.events = append(tx.events, evt)
	}
	if depth == 0 && resp.Data != nil {
		tx.data = append([]byte(nil), resp.Data...)
	}
	for _, msg := range resp.Messages {
		tx.app.metrics.RecordMessage(contract.MsgType(msg))
		if err := tx.dispatch(depth, addr, msg); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txContext) dispatch(depth int, from crypto.Address, msg contract.Msg) error {
	switch m := msg.(type) {
	case contract.BankSend:
		to, err := crypto.ValidateAddress(tx.app.cfg.Prefix, m.ToAddress)
		if err != nil {
			return fmt.Errorf("%w: bank send recipient: %v", ErrInvalidMessage, err)
		}
		return tx.transfer(from.String(), to.String(), m.Amount)
	case contract.WasmExecute:
		target, err := crypto.ValidateAddress(tx.app.cfg.Prefix, m.ContractAddr)
		if err != nil {
			return fmt.Errorf("%w: execute target: %v", ErrInvalidMessage, err)
		}
		return tx.execute(depth+1, from, target, m.Msg, m.Funds)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidMessage, msg)
	}
}
