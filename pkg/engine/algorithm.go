package engine

import (
	"sync"
	"sync/atomic"

	"github.com/daehwan-kim/tradeflow/pkg/brokerage"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// BasicAlgorithm is a plain Algorithm implementation used by the runner and
// by tests: flags are plain switches and the order-event callback is a
// swappable func.
type BasicAlgorithm struct {
	warmingUp atomic.Bool
	live      atomic.Bool

	portfolio *portfolio.Portfolio
	model     brokerage.Model
	registry  *securities.Registry

	mu           sync.Mutex
	onOrderEvent func(*orders.OrderEvent) error
	runtimeErrs  []error
}

func NewBasicAlgorithm(p *portfolio.Portfolio, model brokerage.Model, registry *securities.Registry) *BasicAlgorithm {
	return &BasicAlgorithm{portfolio: p, model: model, registry: registry}
}

func (a *BasicAlgorithm) SetWarmingUp(v bool) { a.warmingUp.Store(v) }
func (a *BasicAlgorithm) SetLiveMode(v bool)  { a.live.Store(v) }

func (a *BasicAlgorithm) IsWarmingUp() bool { return a.warmingUp.Load() }
func (a *BasicAlgorithm) LiveMode() bool    { return a.live.Load() }

func (a *BasicAlgorithm) Portfolio() *portfolio.Portfolio { return a.portfolio }
func (a *BasicAlgorithm) BrokerageModel() brokerage.Model { return a.model }

func (a *BasicAlgorithm) Security(symbol string) (*securities.Security, bool) {
	return a.registry.Get(symbol)
}

// SetOrderEventCallback installs the user callback invoked on every event.
func (a *BasicAlgorithm) SetOrderEventCallback(fn func(*orders.OrderEvent) error) {
	a.mu.Lock()
	a.onOrderEvent = fn
	a.mu.Unlock()
}

func (a *BasicAlgorithm) OnOrderEvent(event *orders.OrderEvent) error {
	a.mu.Lock()
	fn := a.onOrderEvent
	a.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(event)
}

func (a *BasicAlgorithm) RunTimeError(err error) {
	a.mu.Lock()
	a.runtimeErrs = append(a.runtimeErrs, err)
	a.mu.Unlock()
}

// RunTimeErrors returns the fatal errors recorded so far.
func (a *BasicAlgorithm) RunTimeErrors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.runtimeErrs...)
}
