package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"0.5":                  "500000000000000000",
		"1":                    "1000000000000000000",
		"0":                    "0",
		"0.000000000000000001": "1",
		"12.25":                "12250000000000000000",
	}
	for in, atomics := range cases {
		d, err := ParseDecimal(in)
		require.NoError(t, err, in)
		require.Equal(t, atomics, d.Atomics().String(), in)
	}

	for _, bad := range []string{"", ".5", "1.", "-0.5", "0.5x", "0.0000000000000000001"} {
		_, err := ParseDecimal(bad)
		require.ErrorIs(t, err, ErrInvalidDecimal, bad)
	}
}

func TestDecimalString(t *testing.T) {
	require.Equal(t, "0.5", MustParseDecimal("0.50").String())
	require.Equal(t, "1", DecimalOne().String())
	require.Equal(t, "0", DecimalZero().String())
	require.Equal(t, "0.000000000000000001", MustParseDecimal("0.000000000000000001").String())
}

func TestDecimalMulFloorTruncates(t *testing.T) {
	half := MustParseDecimal("0.5")
	require.Equal(t, "5", half.MulFloor(big.NewInt(10)).String())
	require.Equal(t, "4", half.MulFloor(big.NewInt(9)).String())
	require.Equal(t, "0", half.MulFloor(big.NewInt(1)).String())

	third := MustParseDecimal("0.333333333333333333")
	require.Equal(t, "2", third.MulFloor(big.NewInt(7)).String())
	require.Equal(t, "0", DecimalZero().MulFloor(big.NewInt(1000)).String())
	require.Equal(t, "1000", DecimalOne().MulFloor(big.NewInt(1000)).String())
}

func TestDecimalCmpAndJSON(t *testing.T) {
	require.Equal(t, 1, MustParseDecimal("1.000000000000000001").Cmp(DecimalOne()))
	require.Equal(t, 0, MustParseDecimal("1.0").Cmp(DecimalOne()))

	data, err := json.Marshal(MustParseDecimal("0.25"))
	require.NoError(t, err)
	require.Equal(t, `"0.25"`, string(data))

	var d Decimal
	require.NoError(t, json.Unmarshal([]byte(`"0.75"`), &d))
	require.Equal(t, "0.75", d.String())
	require.Error(t, json.Unmarshal([]byte(`0.75`), &d))
}
