package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCoins(t *testing.T) {
	coins, err := ParseCoins("5uosmo, 10atom")
	require.NoError(t, err)
	require.Equal(t, "10atom,5uosmo", coins.String())

	empty, err := ParseCoins("")
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = ParseCoins("10atom,3atom")
	require.ErrorIs(t, err, ErrDuplicateDenom)

	_, err = ParseCoins("atom")
	require.ErrorIs(t, err, ErrInvalidCoin)
}

func TestCoinsAddAndSafeSub(t *testing.T) {
	a := NewCoins(NewCoin("atom", 10), NewCoin("btcx", 1))
	b := NewCoins(NewCoin("atom", 5), NewCoin("eth", 0))

	sum := a.Add(b)
	require.Equal(t, "15atom,1btcx", sum.String())

	rest, err := sum.SafeSub(NewCoins(NewCoin("atom", 15)))
	require.NoError(t, err)
	require.Equal(t, "1btcx", rest.String())

	_, err = rest.SafeSub(NewCoins(NewCoin("atom", 1)))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// zero-amount entries never require a balance
	same, err := rest.SafeSub(NewCoins(NewCoin("atom", 0)))
	require.NoError(t, err)
	require.Equal(t, "1btcx", same.String())
}

func TestCoinsLookups(t *testing.T) {
	coins := NewCoins(NewCoin("atom", 7))
	require.Equal(t, int64(7), coins.AmountOf("atom").Int64())
	require.Equal(t, int64(0), coins.AmountOf("eth").Int64())
	_, ok := coins.Find("eth")
	require.False(t, ok)
	require.False(t, coins.IsZero())
	require.True(t, NewCoins(NewCoin("atom", 0)).IsZero())
	require.Empty(t, NewCoins(NewCoin("atom", 0)).NonZero())
}

func TestCoinJSONUsesStringAmounts(t *testing.T) {
	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	data, err := json.Marshal(NewCoinFromBig("atom", huge))
	require.NoError(t, err)
	require.JSONEq(t, `{"denom":"atom","amount":"340282366920938463463374607431768211456"}`, string(data))

	var decoded Coin
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, 0, decoded.Amount.Cmp(huge))

	require.Error(t, json.Unmarshal([]byte(`{"denom":"atom","amount":"-1"}`), &decoded))
}

func TestEventAttr(t *testing.T) {
	evt := NewEvent("wasm", "action", "poke", "counter", "1")
	value, ok := evt.Attr("counter")
	require.True(t, ok)
	require.Equal(t, "1", value)
	_, ok = evt.Attr("missing")
	require.False(t, ok)
}
