package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TokenABI is the ABI of the generated token: a plain ERC-20 whose
// constructor takes (decimals, symbol, name, totalSupply) and mints the
// supply to the deployer.
const TokenABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"decimals_","type":"uint8"},
    {"name":"symbol_","type":"string"},
    {"name":"name_","type":"string"},
    {"name":"totalSupply_","type":"uint256"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

var erc20 = mustParseABI(TokenABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("contract: bundled ABI does not parse: %v", err))
	}
	return parsed
}

// EncodeTransfer builds calldata for transfer(to, amount).
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid transfer amount %v", amount)
	}
	data, err := erc20.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("encoding transfer: %w", err)
	}
	return data, nil
}

// EncodeBalanceOf builds calldata for balanceOf(owner).
func EncodeBalanceOf(owner common.Address) ([]byte, error) {
	data, err := erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("encoding balanceOf: %w", err)
	}
	return data, nil
}

// DecodeBalanceOf unpacks the uint256 returned by balanceOf.
func DecodeBalanceOf(ret []byte) (*big.Int, error) {
	out, err := erc20.Unpack("balanceOf", ret)
	if err != nil {
		return nil, fmt.Errorf("decoding balanceOf: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decoding balanceOf: got %d values", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decoding balanceOf: unexpected type %T", out[0])
	}
	return v, nil
}
