package counting

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"countingchain/core/contract"
	"countingchain/core/state"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/storage"
)

type fakeQuerier struct {
	balances map[string]types.Coins
}

func (q *fakeQuerier) AllBalances(addr crypto.Address) (types.Coins, error) {
	return q.balances[addr.String()].Clone(), nil
}

type harness struct {
	t       *testing.T
	db      *storage.MemDB
	deps    contract.Deps
	querier *fakeQuerier
	env     contract.Env
	owner   crypto.Address
	parent  crypto.Address
	c       *Contract
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	q := &fakeQuerier{balances: map[string]types.Coins{}}
	return &harness{
		t:       t,
		db:      db,
		deps:    contract.Deps{State: state.NewManager(db), Querier: q},
		querier: q,
		env:     contract.Env{ChainID: "counting-test", Contract: crypto.ContractAddress(crypto.DefaultPrefix, 1, 1)},
		owner:   crypto.DeriveAddress(crypto.DefaultPrefix, []byte("owner")),
		parent:  crypto.ContractAddress(crypto.DefaultPrefix, 1, 2),
		c:       New(),
	}
}

func (h *harness) instantiate(msg InstantiateMsg) {
	h.t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(h.t, err)
	_, err = h.c.Instantiate(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, raw)
	require.NoError(h.t, err)
}

// donate credits funds to the contract balance first, as the host does, then
// runs the handler.
func (h *harness) donate(sender crypto.Address, funds types.Coins) *contract.Response {
	h.t.Helper()
	addr := h.env.Contract.String()
	h.querier.balances[addr] = h.querier.balances[addr].Add(funds)
	resp, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: sender, Funds: funds}, DonateMsg())
	require.NoError(h.t, err)
	return resp
}

func (h *harness) value() uint64 {
	h.t.Helper()
	raw, err := h.c.Query(h.deps, h.env, ValueQuery())
	require.NoError(h.t, err)
	var resp ValueResp
	require.NoError(h.t, json.Unmarshal(raw, &resp))
	return resp.Value
}

func (h *harness) digest() [32]byte {
	h.t.Helper()
	sum, err := storage.Digest(h.db, nil)
	require.NoError(h.t, err)
	return sum
}

func coins(t *testing.T, s string) types.Coins {
	t.Helper()
	out, err := types.ParseCoins(s)
	require.NoError(t, err)
	return out
}

func uint64Ptr(v uint64) *uint64 { return &v }

func TestInstantiateStoresAccount(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{Counter: uint64Ptr(7), MinimalDonation: types.NewCoin("atom", 10)})

	acc, err := LoadAccount(h.deps.State)
	require.NoError(t, err)
	require.Equal(t, uint64(7), acc.Counter)
	require.Equal(t, h.owner.String(), acc.Owner)
	require.Equal(t, "10atom", acc.Threshold.String())
	require.Nil(t, acc.CascadeRemaining)

	_, err = LoadParent(h.deps.State)
	require.ErrorIs(t, err, ErrStateNotFound)

	version, err := h.deps.State.GetContractVersion()
	require.NoError(t, err)
	require.Equal(t, "counting-contract@0.3.0", version.String())
	require.Equal(t, uint64(7), h.value())
}

func TestInstantiateWithParent(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{
		MinimalDonation: types.NewCoin("atom", 0),
		Parent:          &ParentMsg{Addr: h.parent.String(), DonatingPeriod: 4, Part: types.MustParseDecimal("0.25")},
	})

	acc, err := LoadAccount(h.deps.State)
	require.NoError(t, err)
	require.NotNil(t, acc.CascadeRemaining)
	require.Equal(t, uint64(4), *acc.CascadeRemaining)

	link, err := LoadParent(h.deps.State)
	require.NoError(t, err)
	require.Equal(t, h.parent.String(), link.Address)
	require.Equal(t, uint64(4), link.Period)
	require.Equal(t, "0.25", link.Share.String())
}

func TestInstantiateRejectsInvalidParent(t *testing.T) {
	h := newHarness(t)
	cases := map[string]ParentMsg{
		"zero period":  {Addr: h.parent.String(), DonatingPeriod: 0, Part: types.MustParseDecimal("0.5")},
		"share over 1": {Addr: h.parent.String(), DonatingPeriod: 1, Part: types.MustParseDecimal("1.5")},
		"bad address":  {Addr: "parent", DonatingPeriod: 1, Part: types.MustParseDecimal("0.5")},
	}
	for name, parent := range cases {
		parent := parent
		raw, err := json.Marshal(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 1), Parent: &parent})
		require.NoError(t, err)
		_, err = h.c.Instantiate(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, raw)
		require.ErrorIs(t, err, ErrInvalidParent, name)
	}
}

func TestDonateEligibility(t *testing.T) {
	cases := []struct {
		name      string
		threshold types.Coin
		funds     string
		counts    bool
	}{
		{"exact threshold", types.NewCoin("atom", 10), "10atom", true},
		{"above threshold", types.NewCoin("atom", 10), "11atom", true},
		{"below threshold", types.NewCoin("atom", 10), "5atom", false},
		{"other denom only", types.NewCoin("atom", 10), "100eth", false},
		{"mixed below", types.NewCoin("atom", 10), "9atom,100eth", false},
		{"no funds", types.NewCoin("atom", 10), "", false},
		{"zero threshold no funds", types.NewCoin("atom", 0), "", true},
		{"zero threshold other denom", types.NewCoin("atom", 0), "1eth", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.instantiate(InstantiateMsg{MinimalDonation: tc.threshold})
			donor := crypto.DeriveAddress(crypto.DefaultPrefix, []byte("donor"))

			resp := h.donate(donor, coins(t, tc.funds))
			want := uint64(0)
			if tc.counts {
				want = 1
			}
			require.Equal(t, want, h.value())

			action, _ := resp.Attr(AttrAction)
			require.Equal(t, ActionPoke, action)
			sender, _ := resp.Attr(AttrSender)
			require.Equal(t, donor.String(), sender)
			counter, _ := resp.Attr(AttrCounter)
			require.Equal(t, map[bool]string{true: "1", false: "0"}[tc.counts], counter)
			require.Empty(t, resp.Messages)
		})
	}
}

func TestIneligibleDonationLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	before := h.digest()
	h.donate(h.owner, coins(t, "5atom"))
	require.Equal(t, before, h.digest())
}

func TestDonateCounterOverflow(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{Counter: uint64Ptr(math.MaxUint64), MinimalDonation: types.NewCoin("atom", 0)})
	_, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, DonateMsg())
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCascadeRingCounter(t *testing.T) {
	const period = 3
	h := newHarness(t)
	h.instantiate(InstantiateMsg{
		MinimalDonation: types.NewCoin("atom", 0),
		Parent:          &ParentMsg{Addr: h.parent.String(), DonatingPeriod: period, Part: types.MustParseDecimal("0.1")},
	})

	for n := uint64(1); n <= 10; n++ {
		resp := h.donate(h.owner, coins(t, "10atom"))

		if n%period == 0 {
			require.Len(t, resp.Messages, 1, "donation %d", n)
			forwarded, ok := resp.Attr(AttrDonatedToParent)
			require.True(t, ok)
			require.Equal(t, h.parent.String(), forwarded)
		} else {
			require.Empty(t, resp.Messages, "donation %d", n)
		}

		acc, err := LoadAccount(h.deps.State)
		require.NoError(t, err)
		want := uint64(period) - n%period
		if n%period == 0 {
			want = period
		}
		require.Equal(t, want, *acc.CascadeRemaining, "donation %d", n)
		require.Equal(t, n, acc.Counter)
	}
}

func TestCascadeForwardsShareOfBalance(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{
		MinimalDonation: types.NewCoin("atom", 0),
		Parent:          &ParentMsg{Addr: h.parent.String(), DonatingPeriod: 1, Part: types.MustParseDecimal("0.5")},
	})
	h.querier.balances[h.env.Contract.String()] = coins(t, "1uosmo")

	resp := h.donate(h.owner, coins(t, "10atom"))
	require.Len(t, resp.Messages, 1)
	msg, ok := resp.Messages[0].(contract.WasmExecute)
	require.True(t, ok)
	require.Equal(t, h.parent.String(), msg.ContractAddr)
	require.JSONEq(t, `{"donate":{}}`, string(msg.Msg))
	// 0.5 of 1uosmo truncates to zero and is still listed
	require.Equal(t, "5atom,0uosmo", msg.Funds.String())

	acc, err := LoadAccount(h.deps.State)
	require.NoError(t, err)
	require.Equal(t, uint64(1), *acc.CascadeRemaining)
}

func TestIneligibleDonationDoesNotAdvanceCascade(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{
		MinimalDonation: types.NewCoin("atom", 10),
		Parent:          &ParentMsg{Addr: h.parent.String(), DonatingPeriod: 1, Part: types.MustParseDecimal("1")},
	})
	resp := h.donate(h.owner, coins(t, "3atom"))
	require.Empty(t, resp.Messages)
	acc, err := LoadAccount(h.deps.State)
	require.NoError(t, err)
	require.Equal(t, uint64(1), *acc.CascadeRemaining)
}

func TestDonateWithoutStateIsIntegrityFault(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, DonateMsg())
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestExecuteRejectsAmbiguousMessages(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 0)})
	for _, raw := range []string{`{}`, `{"donate":{},"withdraw":{}}`, `not json`} {
		_, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, []byte(raw))
		require.ErrorIs(t, err, ErrUnknownMessage, raw)
	}
	_, err := h.c.Query(h.deps, h.env, []byte(`{"value":{},"increment":{"number":1}}`))
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestQueryIncrementIsStateless(t *testing.T) {
	h := newHarness(t)
	raw, err := h.c.Query(h.deps, h.env, IncrementQuery(5))
	require.NoError(t, err)
	require.JSONEq(t, `{"value":6}`, string(raw))
	require.Zero(t, h.db.Len())

	_, err = h.c.Query(h.deps, h.env, IncrementQuery(math.MaxUint64))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = h.c.Query(h.deps, h.env, ValueQuery())
	require.True(t, errors.Is(err, ErrStateNotFound))
}
