package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxUint256 is the largest value a uint256 constructor argument can carry.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ErrSupplyOverflow is returned when supply × 10^decimals exceeds uint256.
var ErrSupplyOverflow = errors.New("scaled supply exceeds uint256")

// DeployRequest describes a token to deploy. Build it through validation;
// TotalSupply is a whole-token decimal string.
type DeployRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// ScaledSupply returns TotalSupply × 10^Decimals as an exact integer.
func (r DeployRequest) ScaledSupply() (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(r.TotalSupply))
	if err != nil {
		return nil, fmt.Errorf("parsing supply %q: %w", r.TotalSupply, err)
	}
	scaled := d.Shift(int32(r.Decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("supply %s has more than %d decimal places", r.TotalSupply, r.Decimals)
	}
	v := scaled.BigInt()
	if v.Sign() < 0 || v.Cmp(MaxUint256) > 0 {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrSupplyOverflow, r.TotalSupply, r.Decimals)
	}
	return v, nil
}
