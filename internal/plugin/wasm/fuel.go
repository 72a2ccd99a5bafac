package wasm

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"moltis/internal/domain"
)

// fuelMeter approximates wasmtime-style fuel metering. wazero attaches an
// experimental.FunctionListenerFactory once, at module instantiation, and
// invokes the listener it returns for every function call crossing the
// host/guest boundary for the lifetime of that module instance — it is not
// re-resolved per call. To still get a per-invocation budget, fuelMeter
// keeps a single listener alive for the module and lets each invocation
// reset its remaining counter and cancellation target via begin.
type fuelMeter struct {
	remaining atomic.Int64
	cancel    atomic.Pointer[context.CancelCauseFunc]
}

// newFuelMeter creates a fuelMeter with no invocation in progress; attach it
// to a module at instantiation with listenerContext.
func newFuelMeter() *fuelMeter {
	return &fuelMeter{}
}

// listenerContext wraps ctx so wazero installs this meter's listener on
// every function of the module instantiated with the returned context.
func (m *fuelMeter) listenerContext(ctx context.Context) context.Context {
	return experimental.WithFunctionListenerFactory(ctx, &fuelListenerFactory{meter: m})
}

// begin starts a new budgeted invocation, returning a context that is
// cancelled with domain.ErrWASMFuelExhausted once budget function-call
// boundaries have been crossed.
func (m *fuelMeter) begin(ctx context.Context, budget uint64) context.Context {
	cctx, cancel := context.WithCancelCause(ctx)
	m.remaining.Store(int64(budget))
	m.cancel.Store(&cancel)
	return cctx
}

func (m *fuelMeter) consumeOne() {
	if m.remaining.Add(-1) < 0 {
		if c := m.cancel.Load(); c != nil {
			(*c)(domain.ErrWASMFuelExhausted)
		}
	}
}

type fuelListenerFactory struct {
	meter *fuelMeter
}

// NewListener implements experimental.FunctionListenerFactory.
func (f *fuelListenerFactory) NewListener(_ api.FunctionDefinition) experimental.FunctionListener {
	return &fuelListener{meter: f.meter}
}

type fuelListener struct {
	meter *fuelMeter
}

// Before implements experimental.FunctionListener.
func (l *fuelListener) Before(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) context.Context {
	l.meter.consumeOne()
	return ctx
}

// After implements experimental.FunctionListener.
func (l *fuelListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}

// isFuelExhausted reports whether ctx was cancelled because its fuel budget
// ran out, as opposed to a deadline or caller cancellation.
func isFuelExhausted(ctx context.Context) bool {
	return context.Cause(ctx) == domain.ErrWASMFuelExhausted
}
