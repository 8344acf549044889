package engine

import (
	"github.com/daehwan-kim/tradeflow/pkg/brokerage"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// Algorithm is the strategy-side collaborator: lifecycle flags, portfolio
// access, pre-trade policy and the user order-event callback.
type Algorithm interface {
	IsWarmingUp() bool
	LiveMode() bool
	Portfolio() *portfolio.Portfolio
	BrokerageModel() brokerage.Model
	Security(symbol string) (*securities.Security, bool)

	// OnOrderEvent is user code. An error (or panic) here is escalated to
	// RunTimeError and the engine is expected to stop.
	OnOrderEvent(event *orders.OrderEvent) error
	RunTimeError(err error)
}

// ResultSink receives every order event, fire-and-forget. Implemented by the
// websocket hub and any reporting collaborator.
type ResultSink interface {
	OrderEvent(event *orders.OrderEvent)
}

// Journal persists terminal orders and remembers the last assigned order id
// across restarts.
type Journal interface {
	SaveOrder(order *orders.Order) error
	LastOrderID() (int64, error)
}
