package counting

import (
	"fmt"
	"math"

	"countingchain/core/contract"
)

func queryValue(deps contract.Deps) (ValueResp, error) {
	acc, err := loadAccount(deps.State)
	if err != nil {
		return ValueResp{}, err
	}
	return ValueResp{Value: acc.Counter}, nil
}

// queryIncrement is a stateless helper: it returns number+1 and never reads
// the store.
func queryIncrement(number uint64) (ValueResp, error) {
	if number == math.MaxUint64 {
		return ValueResp{}, fmt.Errorf("%w: increment", ErrOverflow)
	}
	return ValueResp{Value: number + 1}, nil
}
