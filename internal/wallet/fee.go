package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/contract"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// FeeEstimate is the expected cost of a deployment at current gas prices.
type FeeEstimate struct {
	Gas      uint64
	GasPrice *big.Int // eth_gasPrice (wei)
	BaseFee  *big.Int // latest block base fee (wei), nil on legacy chains
}

// Cost returns Gas × GasPrice in wei.
func (f FeeEstimate) Cost() *big.Int {
	if f.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(f.Gas), f.GasPrice)
}

// CostString renders Cost in whole native units, e.g. "0.0042".
func (f FeeEstimate) CostString() string {
	return decimal.NewFromBigInt(f.Cost(), -18).String()
}

// GasPriceGwei renders the gas price in gwei with at most two decimals.
func (f FeeEstimate) GasPriceGwei() string {
	if f.GasPrice == nil {
		return "0"
	}
	return decimal.NewFromBigInt(f.GasPrice, -9).Round(2).String()
}

// EstimateFee estimates the deployment gas and prices it. The base fee is
// best effort; chains without EIP-1559 leave it nil.
func (g *Gateway) EstimateFee(ctx context.Context, req contract.DeployRequest, owner string) (*FeeEstimate, error) {
	gas, err := g.EstimateGas(ctx, req, owner)
	if err != nil {
		return nil, err
	}
	var price hexutil.Big
	if err := g.call(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, wrapProviderErr(ErrGasEstimationFailed, err)
	}
	fee := &FeeEstimate{Gas: gas, GasPrice: price.ToInt()}

	var head struct {
		BaseFee *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := g.call(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		g.log.Debug().Err(err).Msg("no base fee available")
	} else if head.BaseFee != nil {
		fee.BaseFee = head.BaseFee.ToInt()
	}
	return fee, nil
}

// String summarises the estimate for logs.
func (f FeeEstimate) String() string {
	return fmt.Sprintf("%d gas @ %s gwei", f.Gas, f.GasPriceGwei())
}
