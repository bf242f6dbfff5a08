package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateFee(t *testing.T) {
	// 100000 gas at 30 gwei, base fee 20 gwei
	p := newFakeProvider().
		on("eth_estimateGas", "0x186a0").
		on("eth_gasPrice", "0x6fc23ac00").
		on("eth_getBlockByNumber", map[string]any{"baseFeePerGas": "0x4a817c800"})
	g := newTestGateway(t, p)

	fee, err := g.EstimateFee(context.Background(), testRequest, owner)
	require.NoError(t, err)

	assert.Equal(t, uint64(100000), fee.Gas)
	assert.Equal(t, big.NewInt(30_000_000_000), fee.GasPrice)
	assert.Equal(t, big.NewInt(20_000_000_000), fee.BaseFee)
	assert.Equal(t, "0.003", fee.CostString())
	assert.Equal(t, "30", fee.GasPriceGwei())
	assert.Equal(t, "100000 gas @ 30 gwei", fee.String())
}

func TestEstimateFeeLegacyChain(t *testing.T) {
	p := newFakeProvider().
		on("eth_estimateGas", "0x5208").
		on("eth_gasPrice", "0x3b9aca00").
		on("eth_getBlockByNumber", map[string]any{"number": "0x1"})
	g := newTestGateway(t, p)

	fee, err := g.EstimateFee(context.Background(), testRequest, owner)
	require.NoError(t, err)
	assert.Nil(t, fee.BaseFee)
	assert.Equal(t, "0.000021", fee.CostString())
}

func TestEstimateFeeGasPriceFailure(t *testing.T) {
	p := newFakeProvider().
		on("eth_estimateGas", "0x5208").
		fail("eth_gasPrice", -32000, "node unavailable")
	g := newTestGateway(t, p)

	_, err := g.EstimateFee(context.Background(), testRequest, owner)
	assert.ErrorIs(t, err, ErrGasEstimationFailed)
	assert.ErrorContains(t, err, "node unavailable")
}

func TestFeeEstimateZeroValue(t *testing.T) {
	var f FeeEstimate
	assert.Equal(t, "0", f.CostString())
	assert.Equal(t, "0", f.GasPriceGwei())
}
