package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrInvalidCoin reports a malformed denomination or amount.
	ErrInvalidCoin = errors.New("types: invalid coin")
	// ErrDuplicateDenom reports a funds list naming the same currency twice.
	ErrDuplicateDenom = errors.New("types: duplicate denomination")
	// ErrInsufficientFunds reports a subtraction that would go negative.
	ErrInsufficientFunds = errors.New("types: insufficient funds")

	denomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)
	coinPattern  = regexp.MustCompile(`^([0-9]+)\s*([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)
)

// Coin is a denomination-tagged non-negative amount.
type Coin struct {
	Denom  string
	Amount *big.Int
}

// NewCoin builds a coin from a small integer amount.
func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: big.NewInt(amount)}
}

// NewCoinFromBig copies amount into a new coin.
func NewCoinFromBig(denom string, amount *big.Int) Coin {
	return Coin{Denom: denom, Amount: cloneAmount(amount)}
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsZero reports whether the amount is zero or unset.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Clone returns a deep copy.
func (c Coin) Clone() Coin {
	return Coin{Denom: c.Denom, Amount: cloneAmount(c.Amount)}
}

// Validate checks the denomination format and that the amount is non-negative.
func (c Coin) Validate() error {
	if !denomPattern.MatchString(c.Denom) {
		return fmt.Errorf("%w: denom %q", ErrInvalidCoin, c.Denom)
	}
	if c.Amount == nil || c.Amount.Sign() < 0 {
		return fmt.Errorf("%w: negative or missing amount for %s", ErrInvalidCoin, c.Denom)
	}
	return nil
}

func (c Coin) String() string {
	return cloneAmount(c.Amount).String() + c.Denom
}

type coinJSON struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// MarshalJSON encodes the amount as a decimal string so arbitrarily large
// values survive JSON clients.
func (c Coin) MarshalJSON() ([]byte, error) {
	return json.Marshal(coinJSON{Denom: c.Denom, Amount: cloneAmount(c.Amount).String()})
}

func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw coinJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw.Amount), 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("%w: amount %q", ErrInvalidCoin, raw.Amount)
	}
	c.Denom = raw.Denom
	c.Amount = amount
	return nil
}

// ParseCoin parses "10atom".
func ParseCoin(s string) (Coin, error) {
	match := coinPattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return Coin{}, fmt.Errorf("%w: %q", ErrInvalidCoin, s)
	}
	amount, _ := new(big.Int).SetString(match[1], 10)
	return Coin{Denom: match[2], Amount: amount}, nil
}

// Coins is a list of coins. Lists produced by this package are sorted by
// denomination.
type Coins []Coin

// NewCoins copies and sorts the given coins.
func NewCoins(coins ...Coin) Coins {
	out := make(Coins, 0, len(coins))
	for _, c := range coins {
		out = append(out, c.Clone())
	}
	out.sort()
	return out
}

// ParseCoins parses a comma separated list such as "10atom,5uosmo". The
// empty string yields an empty list.
func ParseCoins(s string) (Coins, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coins{}, nil
	}
	parts := strings.Split(s, ",")
	out := make(Coins, 0, len(parts))
	for _, part := range parts {
		coin, err := ParseCoin(part)
		if err != nil {
			return nil, err
		}
		out = append(out, coin)
	}
	out.sort()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (cs Coins) sort() {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Denom < cs[j].Denom })
}

// Validate checks every coin and rejects repeated denominations.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, ok := seen[c.Denom]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDenom, c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy preserving order.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	out := make(Coins, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

// Find returns the coin with the given denomination.
func (cs Coins) Find(denom string) (Coin, bool) {
	for _, c := range cs {
		if c.Denom == denom {
			return c.Clone(), true
		}
	}
	return Coin{}, false
}

// AmountOf returns the amount held in denom, zero when absent.
func (cs Coins) AmountOf(denom string) *big.Int {
	if c, ok := cs.Find(denom); ok {
		return c.Amount
	}
	return big.NewInt(0)
}

// IsZero reports whether every entry is zero. An empty list is zero.
func (cs Coins) IsZero() bool {
	for _, c := range cs {
		if !c.IsZero() {
			return false
		}
	}
	return true
}

// NonZero drops zero-amount entries.
func (cs Coins) NonZero() Coins {
	out := make(Coins, 0, len(cs))
	for _, c := range cs {
		if !c.IsZero() {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Add merges other into a new sorted list without zero entries.
func (cs Coins) Add(other Coins) Coins {
	sums := make(map[string]*big.Int)
	for _, list := range []Coins{cs, other} {
		for _, c := range list {
			acc, ok := sums[c.Denom]
			if !ok {
				acc = big.NewInt(0)
				sums[c.Denom] = acc
			}
			acc.Add(acc, cloneAmount(c.Amount))
		}
	}
	out := make(Coins, 0, len(sums))
	for denom, amount := range sums {
		if amount.Sign() != 0 {
			out = append(out, Coin{Denom: denom, Amount: amount})
		}
	}
	out.sort()
	return out
}

// SafeSub subtracts other and fails with ErrInsufficientFunds if any
// denomination would go negative.
func (cs Coins) SafeSub(other Coins) (Coins, error) {
	remaining := make(map[string]*big.Int, len(cs))
	for _, c := range cs {
		remaining[c.Denom] = cloneAmount(c.Amount)
	}
	for _, c := range other {
		if c.IsZero() {
			continue
		}
		have, ok := remaining[c.Denom]
		if !ok {
			have = big.NewInt(0)
		}
		if have.Cmp(c.Amount) < 0 {
			return nil, fmt.Errorf("%w: have %s%s, need %s", ErrInsufficientFunds, have, c.Denom, c)
		}
		remaining[c.Denom] = have.Sub(have, c.Amount)
	}
	out := make(Coins, 0, len(remaining))
	for denom, amount := range remaining {
		if amount.Sign() != 0 {
			out = append(out, Coin{Denom: denom, Amount: amount})
		}
	}
	out.sort()
	return out, nil
}

func (cs Coins) String() string {
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
