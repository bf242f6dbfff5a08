package balance

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	holder = "0x1111111111111111111111111111111111111111"
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func rec(contract, symbol, decimals, value string) explorer.TokenTransfer {
	return explorer.TokenTransfer{
		ContractAddress: contract,
		TokenName:       symbol + " Token",
		TokenSymbol:     symbol,
		TokenDecimal:    decimals,
		Value:           value,
	}
}

// ---------------------------------------------------------------------------
// Aggregate
// ---------------------------------------------------------------------------

func TestAggregateKeepsMostRecentPerContract(t *testing.T) {
	history := []explorer.TokenTransfer{
		rec(tokenA, "AAA", "6", "3000000"),
		rec(tokenB, "BBB", "18", "5"),
		rec(tokenA, "OLD", "6", "2000000"),
		rec(tokenA, "OLDER", "6", "1000000"),
	}

	got, err := Aggregate(history)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, tokenA, got[0].ContractAddress)
	assert.Equal(t, "AAA", got[0].TokenSymbol)
	assert.Equal(t, "3.0", got[0].Balance)
	assert.Equal(t, int64(3000000), got[0].Raw.Int64())
	assert.Equal(t, 6, got[0].Decimals)

	assert.Equal(t, tokenB, got[1].ContractAddress)
	assert.Equal(t, "0.000000000000000005", got[1].Balance)

	again, err := Aggregate(history)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestAggregateOrderIsFirstEncounter(t *testing.T) {
	got, err := Aggregate([]explorer.TokenTransfer{
		rec(tokenB, "ZZZ", "0", "1"),
		rec(tokenA, "AAA", "0", "999"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ZZZ", got[0].TokenSymbol)
	assert.Equal(t, "AAA", got[1].TokenSymbol)
}

func TestAggregateContractCaseInsensitive(t *testing.T) {
	got, err := Aggregate([]explorer.TokenTransfer{
		rec("0xAAAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "AAA", "2", "150"),
		rec(tokenA, "AAA", "2", "100"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.5", got[0].Balance)
}

func TestAggregateEmpty(t *testing.T) {
	got, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregateRejectsMalformed(t *testing.T) {
	_, err := Aggregate([]explorer.TokenTransfer{rec(tokenA, "AAA", "x", "1")})
	assert.ErrorIs(t, err, explorer.ErrRequestFailed)

	_, err = Aggregate([]explorer.TokenTransfer{rec(tokenA, "AAA", "2", "0x10")})
	assert.ErrorIs(t, err, explorer.ErrRequestFailed)
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"1000000000000000000", 18, "1.0"},
		{"1500000", 6, "1.5"},
		{"1", 6, "0.000001"},
		{"0", 18, "0.0"},
		{"42", 0, "42.0"},
		{"123456789012345678901234567890", 18, "123456789012.34567890123456789"},
	}
	for _, tt := range tests {
		raw, ok := new(big.Int).SetString(tt.raw, 10)
		require.True(t, ok)
		assert.Equal(t, tt.want, FormatUnits(raw, tt.decimals), tt.raw)
	}
}

func TestFind(t *testing.T) {
	list := []TokenBalance{{ContractAddress: tokenA, TokenSymbol: "AAA"}}
	b, ok := Find(list, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.True(t, ok)
	assert.Equal(t, "AAA", b.TokenSymbol)
	_, ok = Find(list, tokenB)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Aggregator
// ---------------------------------------------------------------------------

type stubSource struct {
	transfers []explorer.TokenTransfer
	err       error
	calls     int
}

func (s *stubSource) TokenTransfers(context.Context, string, string) ([]explorer.TokenTransfer, error) {
	s.calls++
	return s.transfers, s.err
}

func TestAggregatorFailsFast(t *testing.T) {
	src := &stubSource{}
	a := NewAggregator(src, chain.NewRegistry())

	_, err := a.Balances(context.Background(), "", "polygon")
	assert.ErrorIs(t, err, explorer.ErrInvalidAddress)

	_, err = a.Balances(context.Background(), holder, "fantom")
	assert.ErrorIs(t, err, chain.ErrUnsupportedNetwork)

	assert.Zero(t, src.calls)
}

func TestAggregatorPropagatesSourceError(t *testing.T) {
	src := &stubSource{err: explorer.ErrAPI}
	_, err := NewAggregator(src, chain.NewRegistry()).Balances(context.Background(), holder, "bsc")
	assert.ErrorIs(t, err, explorer.ErrAPI)
}

func TestAggregatorBalances(t *testing.T) {
	src := &stubSource{transfers: []explorer.TokenTransfer{rec(tokenA, "AAA", "1", "25")}}
	got, err := NewAggregator(src, chain.NewRegistry()).Balances(context.Background(), holder, "ethereum")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2.5", got[0].Balance)
}

// ---------------------------------------------------------------------------
// HTTPSource
// ---------------------------------------------------------------------------

func endpoint(t *testing.T, status int, body string) (*httptest.Server, *balanceRequest) {
	t.Helper()
	got := &balanceRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(got) //nolint:errcheck
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestHTTPSourceSuccess(t *testing.T) {
	srv, got := endpoint(t, http.StatusOK, `{"status":"1","message":"OK","result":[
		{"contractAddress":"`+tokenA+`","tokenName":"A","tokenSymbol":"AAA","tokenDecimal":"6","value":"10"}]}`)

	transfers, err := NewHTTPSource(srv.URL, nil).TokenTransfers(context.Background(), "polygon", holder)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "AAA", transfers[0].TokenSymbol)
	assert.Equal(t, &balanceRequest{Address: holder, Network: "polygon"}, got)
}

func TestHTTPSourceBadRequest(t *testing.T) {
	srv, _ := endpoint(t, http.StatusBadRequest,
		`{"status":"0","message":"Invalid network. Supported networks are: ethereum, polygon, bsc, arbitrum"}`)

	_, err := NewHTTPSource(srv.URL, nil).TokenTransfers(context.Background(), "fantom", holder)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorContains(t, err, "Supported networks are")
}

func TestHTTPSourceServerError(t *testing.T) {
	srv, _ := endpoint(t, http.StatusInternalServerError, `{"status":"0","message":"API configuration missing for polygon"}`)

	_, err := NewHTTPSource(srv.URL, nil).TokenTransfers(context.Background(), "polygon", holder)
	var ee *EndpointError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, http.StatusInternalServerError, ee.StatusCode)
	assert.ErrorIs(t, err, explorer.ErrRequestFailed)
}

func TestHTTPSourceStatusZeroOn200(t *testing.T) {
	srv, _ := endpoint(t, http.StatusOK, `{"status":"0","message":"NOTOK","result":[]}`)
	_, err := NewHTTPSource(srv.URL, nil).TokenTransfers(context.Background(), "polygon", holder)
	assert.ErrorIs(t, err, explorer.ErrRequestFailed)
	assert.ErrorContains(t, err, "NOTOK")
}

func TestHTTPSourceNonJSON(t *testing.T) {
	srv, _ := endpoint(t, http.StatusBadGateway, "<html>")
	_, err := NewHTTPSource(srv.URL, nil).TokenTransfers(context.Background(), "polygon", holder)
	assert.ErrorContains(t, err, "status: 502")
}
