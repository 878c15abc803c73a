package legacy

import (
	"encoding/json"
	"errors"
	"fmt"

	"countingchain/core/contract"
	"countingchain/core/state"
	"countingchain/core/types"
)

var errMissing = errors.New("legacy: state not found")

type instantiateMsg struct {
	Counter         *uint64    `json:"counter,omitempty"`
	MinimalDonation types.Coin `json:"minimal_donation"`
}

type execMsg struct {
	Donate *struct{} `json:"donate,omitempty"`
}

type queryMsg struct {
	Value *struct{} `json:"value,omitempty"`
}

type valueResp struct {
	Value uint64 `json:"value"`
}

// record abstracts over the two historical layouts.
type record interface {
	load(m *state.Manager) (*StateV020, error)
	save(m *state.Manager, s *StateV020) error
}

type splitKeys struct{}

func (splitKeys) load(m *state.Manager) (*StateV020, error) {
	return LoadV010(m)
}

func (splitKeys) save(m *state.Manager, s *StateV020) error {
	if err := m.KVPut(CounterKey, s.Counter); err != nil {
		return err
	}
	if err := m.KVPut(MinimalDonationKey, &s.MinimalDonation); err != nil {
		return err
	}
	return m.KVPut(OwnerKey, s.Owner)
}

type unified struct{}

func (unified) load(m *state.Manager) (*StateV020, error) {
	return LoadV020(m)
}

func (unified) save(m *state.Manager, s *StateV020) error {
	return m.KVPut(StateKey, &StateV020{Counter: s.Counter, MinimalDonation: s.MinimalDonation, Owner: s.Owner})
}

// LoadV010 assembles the three 0.1.0 keys into one record.
func LoadV010(m *state.Manager) (*StateV020, error) {
	out := new(StateV020)
	for _, field := range []struct {
		key []byte
		dst interface{}
	}{
		{CounterKey, &out.Counter},
		{MinimalDonationKey, &out.MinimalDonation},
		{OwnerKey, &out.Owner},
	} {
		ok, err := m.KVGet(field.key, field.dst)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: key %q", errMissing, field.key)
		}
	}
	return out, nil
}

// LoadV020 reads the 0.2.0 unified record.
func LoadV020(m *state.Manager) (*StateV020, error) {
	out := new(StateV020)
	ok, err := m.KVGet(StateKey, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: key %q", errMissing, StateKey)
	}
	return out, nil
}

// Contract runs a historical release. It supports instantiate, donate and the
// value query, which is enough to produce stores for migration.
type Contract struct {
	version string
	layout  record
}

var _ contract.Contract = (*Contract)(nil)

// V010 returns the 0.1.0 release.
func V010() *Contract { return &Contract{version: VersionV010, layout: splitKeys{}} }

// V020 returns the 0.2.0 release.
func V020() *Contract { return &Contract{version: VersionV020, layout: unified{}} }

func (c *Contract) Name() string    { return ContractName }
func (c *Contract) Version() string { return c.version }

func (c *Contract) Instantiate(deps contract.Deps, _ contract.Env, info contract.MessageInfo, raw []byte) (*contract.Response, error) {
	var msg instantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("legacy: decode instantiate: %w", err)
	}
	if err := msg.MinimalDonation.Validate(); err != nil {
		return nil, err
	}
	s := &StateV020{MinimalDonation: msg.MinimalDonation, Owner: info.Sender.String()}
	if msg.Counter != nil {
		s.Counter = *msg.Counter
	}
	if err := deps.State.SetContractVersion(ContractName, c.version); err != nil {
		return nil, err
	}
	if err := c.layout.save(deps.State, s); err != nil {
		return nil, err
	}
	return contract.NewResponse(), nil
}

func (c *Contract) Execute(deps contract.Deps, _ contract.Env, info contract.MessageInfo, raw []byte) (*contract.Response, error) {
	var msg execMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Donate == nil {
		return nil, fmt.Errorf("legacy: unsupported execute message")
	}
	s, err := c.layout.load(deps.State)
	if err != nil {
		return nil, err
	}
	threshold := s.MinimalDonation
	if threshold.IsZero() || info.Funds.AmountOf(threshold.Denom).Cmp(threshold.Amount) >= 0 {
		s.Counter++
		if err := c.layout.save(deps.State, s); err != nil {
			return nil, err
		}
	}
	return contract.NewResponse().
		AddAttribute("action", "poke").
		AddAttribute("sender", info.Sender.String()).
		AddAttribute("counter", fmt.Sprintf("%d", s.Counter)), nil
}

func (c *Contract) Query(deps contract.Deps, _ contract.Env, raw []byte) ([]byte, error) {
	var msg queryMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Value == nil {
		return nil, fmt.Errorf("legacy: unsupported query message")
	}
	s, err := c.layout.load(deps.State)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueResp{Value: s.Counter})
}

func (c *Contract) Migrate(contract.Deps, contract.Env, []byte) (*contract.Response, error) {
	return nil, fmt.Errorf("legacy: %s does not migrate", c.version)
}
