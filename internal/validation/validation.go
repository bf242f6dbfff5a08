// Package validation checks token form input before anything reaches the
// wallet. Each field check returns "" when the value is acceptable and a
// human-readable message otherwise.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/contract"
	"github.com/shopspring/decimal"
)

const (
	MinNameLen   = 3
	MaxNameLen   = 50
	MinSymbolLen = 2
	MaxSymbolLen = 5
	MaxDecimals  = 18
)

var (
	nameChars   = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)
	symbolChars = regexp.MustCompile(`^[A-Z0-9$]+$`)
	maxSupply   = decimal.NewFromBigInt(contract.MaxUint256, 0)
)

// Name validates a token name.
func Name(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Token name is required"
	}
	n := utf8.RuneCountInString(name)
	if n < MinNameLen {
		return fmt.Sprintf("Token name must be at least %d characters", MinNameLen)
	}
	if n > MaxNameLen {
		return fmt.Sprintf("Token name must be at most %d characters", MaxNameLen)
	}
	if !nameChars.MatchString(name) {
		return "Token name can only contain letters, numbers, and spaces"
	}
	return ""
}

// Symbol validates a token ticker.
func Symbol(symbol string) string {
	if strings.TrimSpace(symbol) == "" {
		return "Token symbol is required"
	}
	n := utf8.RuneCountInString(symbol)
	if n < MinSymbolLen || n > MaxSymbolLen {
		return fmt.Sprintf("Token symbol must be %d-%d characters", MinSymbolLen, MaxSymbolLen)
	}
	if !symbolChars.MatchString(symbol) {
		return "Token symbol must be uppercase letters, numbers, or $"
	}
	return ""
}

// Supply validates the whole-token initial supply. Parsing is arbitrary
// precision; the only ceiling is what a uint256 can hold.
func Supply(supply string) string {
	s := strings.TrimSpace(supply)
	if s == "" {
		return "Initial supply is required"
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return "Supply must be a whole number"
	}
	if !d.IsPositive() {
		return "Supply must be greater than 0"
	}
	if d.GreaterThan(maxSupply) {
		return "Supply is too large"
	}
	return ""
}

// Decimals validates the decimal places field.
func Decimals(decimals string) string {
	s := strings.TrimSpace(decimals)
	if s == "" {
		return "Decimals is required"
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return "Decimals must be a whole number"
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(MaxDecimals)) {
		return fmt.Sprintf("Decimals must be between 0 and %d", MaxDecimals)
	}
	return ""
}

// Field names used as FieldErrors keys.
const (
	FieldName     = "name"
	FieldSymbol   = "symbol"
	FieldSupply   = "supply"
	FieldDecimals = "decimals"
)

var fieldOrder = map[string]int{FieldName: 0, FieldSymbol: 1, FieldSupply: 2, FieldDecimals: 3}

// FieldErrors maps a form field to its message. A non-empty FieldErrors is
// the error returned when a form is rejected.
type FieldErrors map[string]string

// Fields returns the failing field names in form order.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for f := range fe {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return fieldOrder[out[i]] < fieldOrder[out[j]] })
	return out
}

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe.Fields() {
		parts = append(parts, f+": "+fe[f])
	}
	return "invalid token: " + strings.Join(parts, "; ")
}

// Form is the raw user input for a token deployment.
type Form struct {
	Name     string
	Symbol   string
	Supply   string
	Decimals string
}

// Validate runs every field check and reports all failures together.
func (f Form) Validate() FieldErrors {
	errs := FieldErrors{}
	set := func(field, msg string) {
		if msg != "" {
			errs[field] = msg
		}
	}
	set(FieldName, Name(f.Name))
	set(FieldSymbol, Symbol(f.Symbol))
	set(FieldSupply, Supply(f.Supply))
	set(FieldDecimals, Decimals(f.Decimals))

	// Only meaningful once both numbers are individually valid.
	if _, bad := errs[FieldSupply]; !bad {
		if _, bad := errs[FieldDecimals]; !bad {
			if _, err := f.request().ScaledSupply(); err != nil {
				errs[FieldSupply] = fmt.Sprintf("Supply is too large for %s decimals", strings.TrimSpace(f.Decimals))
			}
		}
	}
	return errs
}

// Request validates the form and converts it to a deploy request.
func (f Form) Request() (contract.DeployRequest, error) {
	if errs := f.Validate(); len(errs) > 0 {
		return contract.DeployRequest{}, errs
	}
	return f.request(), nil
}

// request assumes Decimals already validated.
func (f Form) request() contract.DeployRequest {
	d, _ := decimal.NewFromString(strings.TrimSpace(f.Decimals))
	supply, _ := decimal.NewFromString(strings.TrimSpace(f.Supply))
	return contract.DeployRequest{
		Name:        f.Name,
		Symbol:      f.Symbol,
		Decimals:    uint8(d.IntPart()),
		TotalSupply: supply.String(),
	}
}
