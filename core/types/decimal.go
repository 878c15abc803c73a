package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// DecimalPlaces is the fixed number of fractional digits carried by Decimal.
const DecimalPlaces = 18

var (
	// ErrInvalidDecimal reports a string that is not a non-negative decimal.
	ErrInvalidDecimal = errors.New("types: invalid decimal")

	decimalFractional = uint256.NewInt(1_000_000_000_000_000_000)
)

// Decimal is a non-negative fixed-point number with 18 fractional digits,
// stored as an integer count of 10^-18 units. Arithmetic is exact; products
// are truncated toward zero.
type Decimal struct {
	atomics uint256.Int
}

// DecimalZero returns 0.
func DecimalZero() Decimal { return Decimal{} }

// DecimalOne returns 1.
func DecimalOne() Decimal {
	var d Decimal
	d.atomics.Set(decimalFractional)
	return d
}

// NewDecimalFromAtomics builds a decimal from its raw 10^-18 unit count.
func NewDecimalFromAtomics(atomics *big.Int) (Decimal, error) {
	var d Decimal
	if atomics == nil || atomics.Sign() < 0 {
		return d, fmt.Errorf("%w: negative atomics", ErrInvalidDecimal)
	}
	v, overflow := uint256.FromBig(atomics)
	if overflow {
		return d, fmt.Errorf("%w: atomics overflow", ErrInvalidDecimal)
	}
	d.atomics.Set(v)
	return d, nil
}

// ParseDecimal parses strings such as "0.5", "1", "0.000000000000000001".
func ParseDecimal(s string) (Decimal, error) {
	var d Decimal
	s = strings.TrimSpace(s)
	if s == "" {
		return d, fmt.Errorf("%w: empty", ErrInvalidDecimal)
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return d, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	if len(frac) > DecimalPlaces {
		return d, fmt.Errorf("%w: more than %d fractional digits in %q", ErrInvalidDecimal, DecimalPlaces, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return d, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}

	padded := frac + strings.Repeat("0", DecimalPlaces-len(frac))
	atomics, ok := new(big.Int).SetString(whole+padded, 10)
	if !ok {
		return d, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return NewDecimalFromAtomics(atomics)
}

// MustParseDecimal panics on malformed input. Intended for constants and tests.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Atomics returns the raw 10^-18 unit count.
func (d Decimal) Atomics() *big.Int {
	return d.atomics.ToBig()
}

// IsZero reports whether d == 0.
func (d Decimal) IsZero() bool { return d.atomics.IsZero() }

// Cmp compares d and other.
func (d Decimal) Cmp(other Decimal) int { return d.atomics.Cmp(&other.atomics) }

// MulFloor returns floor(amount * d). amount must be non-negative.
func (d Decimal) MulFloor(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, d.atomics.ToBig())
	return product.Quo(product, decimalFractional.ToBig())
}

func (d Decimal) String() string {
	whole := new(uint256.Int).Div(&d.atomics, decimalFractional)
	frac := new(uint256.Int).Mod(&d.atomics, decimalFractional)
	if frac.IsZero() {
		return whole.Dec()
	}
	digits := frac.Dec()
	digits = strings.Repeat("0", DecimalPlaces-len(digits)) + digits
	return whole.Dec() + "." + strings.TrimRight(digits, "0")
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDecimal(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
