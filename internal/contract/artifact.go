package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNoBytecode is returned when an artifact cannot be deployed.
var ErrNoBytecode = errors.New("artifact has no deployment bytecode")

// Artifact is a compiled token contract: its ABI and deployment bytecode.
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

// NewArtifact builds an artifact from an ABI JSON document and raw bytecode.
// An empty ABI document falls back to the bundled ERC-20 ABI.
func NewArtifact(abiJSON string, bytecode []byte) (*Artifact, error) {
	if strings.TrimSpace(abiJSON) == "" {
		abiJSON = TokenABI
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing artifact ABI: %w", err)
	}
	return &Artifact{ABI: parsed, Bytecode: bytecode}, nil
}

// LoadArtifact loads ABI and bytecode from a Hardhat/Truffle artifact
// ({"abi":[...],"bytecode":"0x..."}) or a Foundry artifact where bytecode is
// {"object":"0x..."}.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read artifact file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("artifact file is empty: %s", path)
	}

	var raw struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}

	code, err := bytecodeHex(raw.Bytecode)
	if err != nil {
		return nil, err
	}
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, path)
	}
	bin, err := hexutil.Decode(ensure0x(code))
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex in artifact: %w", err)
	}

	art, err := NewArtifact(string(raw.ABI), bin)
	if err != nil {
		return nil, err
	}
	if len(art.ABI.Constructor.Inputs) != 4 {
		return nil, fmt.Errorf("artifact constructor takes %d arguments, want (decimals, symbol, name, totalSupply)",
			len(art.ABI.Constructor.Inputs))
	}
	return art, nil
}

// bytecodeHex accepts either a JSON string or a Foundry {"object": "..."}.
func bytecodeHex(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("unrecognised bytecode field in artifact: %w", err)
	}
	return obj.Object, nil
}

func ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

// DeployData returns bytecode followed by the ABI-encoded constructor
// arguments (decimals, symbol, name, scaled supply).
func (a *Artifact) DeployData(req DeployRequest) ([]byte, error) {
	if len(a.Bytecode) == 0 {
		return nil, ErrNoBytecode
	}
	supply, err := req.ScaledSupply()
	if err != nil {
		return nil, err
	}
	args, err := a.ABI.Pack("", req.Decimals, req.Symbol, req.Name, supply)
	if err != nil {
		return nil, fmt.Errorf("encoding constructor arguments: %w", err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(args))
	data = append(data, a.Bytecode...)
	return append(data, args...), nil
}

