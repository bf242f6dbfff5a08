package wallet

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// fakeProvider answers requests from per-method handlers and records every
// call in order.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []fakeCall
	handlers map[string]func(params []any) (any, error)
}

type fakeCall struct {
	Method string
	Params []any
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{handlers: map[string]func([]any) (any, error){}}
}

// on registers a fixed result for method.
func (f *fakeProvider) on(method string, result any) *fakeProvider {
	return f.handle(method, func([]any) (any, error) { return result, nil })
}

// fail registers a provider error for method.
func (f *fakeProvider) fail(method string, code int, msg string) *fakeProvider {
	return f.handle(method, func([]any) (any, error) {
		return nil, &ProviderError{Code: code, Message: msg}
	})
}

func (f *fakeProvider) handle(method string, h func(params []any) (any, error)) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
	return f
}

func (f *fakeProvider) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Method: method, Params: params})
	h, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return nil, &ProviderError{Code: -32601, Message: "method not found"}
	}
	v, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (f *fakeProvider) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

func (f *fakeProvider) lastCall(method string) (fakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i], true
		}
	}
	return fakeCall{}, false
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
