package counting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"countingchain/core/contract"
	"countingchain/core/types"
	"countingchain/crypto"
)

func TestWithdrawByNonOwnerIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	h.querier.balances[h.env.Contract.String()] = coins(t, "10atom")
	stranger := crypto.DeriveAddress(crypto.DefaultPrefix, []byte("stranger"))
	before := h.digest()

	for _, raw := range [][]byte{WithdrawMsg(), WithdrawToMessage(stranger.String(), nil)} {
		_, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: stranger}, raw)
		require.ErrorIs(t, err, ErrUnauthorized)
		var unauthorized *UnauthorizedError
		require.True(t, errors.As(err, &unauthorized))
		require.Equal(t, h.owner.String(), unauthorized.Owner)
	}
	require.Equal(t, before, h.digest())
}

func TestWithdrawSendsWholeBalanceToOwner(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	h.querier.balances[h.env.Contract.String()] = coins(t, "10atom,3eth")
	before := h.digest()

	resp, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, WithdrawMsg())
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	send, ok := resp.Messages[0].(contract.BankSend)
	require.True(t, ok)
	require.Equal(t, h.owner.String(), send.ToAddress)
	require.Equal(t, "10atom,3eth", types.NewCoins(send.Amount...).String())

	action, _ := resp.Attr(AttrAction)
	require.Equal(t, ActionWithdraw, action)
	sender, _ := resp.Attr(AttrSender)
	require.Equal(t, h.owner.String(), sender)
	require.Equal(t, before, h.digest())
}

func TestWithdrawToClampsToCaps(t *testing.T) {
	recipient := crypto.DeriveAddress(crypto.DefaultPrefix, []byte("recipient"))
	cases := []struct {
		name    string
		balance string
		caps    string
		want    string
	}{
		{"cap below balance", "10atom", "5atom", "5atom"},
		{"cap above balance", "10atom", "50atom", "10atom"},
		{"denom absent from caps", "10atom,4eth", "5atom", "5atom,0eth"},
		{"cap for denom not held", "10atom", "5atom,7uosmo", "5atom"},
		{"no caps", "10atom,4eth", "", "10atom,4eth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
			h.querier.balances[h.env.Contract.String()] = coins(t, tc.balance)

			resp, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner},
				WithdrawToMessage(recipient.String(), coins(t, tc.caps)))
			require.NoError(t, err)
			require.Len(t, resp.Messages, 1)
			send := resp.Messages[0].(contract.BankSend)
			require.Equal(t, recipient.String(), send.ToAddress)
			require.Equal(t, coins(t, tc.want).String(), types.NewCoins(send.Amount...).String())
		})
	}
}

func TestWithdrawToExplicitEmptyCapsWithdrawsEverything(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	h.querier.balances[h.env.Contract.String()] = coins(t, "10atom")
	recipient := crypto.DeriveAddress(crypto.DefaultPrefix, []byte("recipient"))

	raw := []byte(`{"withdraw_to":{"recipient":"` + recipient.String() + `","funds":[]}}`)
	resp, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, raw)
	require.NoError(t, err)
	require.Equal(t, "10atom", resp.Messages[0].(contract.BankSend).Amount.String())
}

func TestWithdrawToRejectsInvalidRecipient(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	_, err := h.c.Execute(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, WithdrawToMessage("recipient", nil))
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestCapFundsKeepsBalanceUntouched(t *testing.T) {
	balance := coins(t, "10atom")
	capped := capFunds(balance, coins(t, "1atom"))
	require.Equal(t, "1atom", capped.String())
	require.Equal(t, "10atom", balance.String())
}
