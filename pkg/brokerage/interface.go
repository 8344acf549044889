package brokerage

import (
	"github.com/shopspring/decimal"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
)

// AccountEvent is a brokerage push about one currency balance. Low frequency
// and untrusted; authoritative balances come from CashBalance during sync.
type AccountEvent struct {
	CurrencySymbol string
	CashBalance    decimal.Decimal
}

// Brokerage is the execution venue collaborator. Place/Update/Cancel return
// nil when the venue accepted the instruction; any error means it did not.
// Order and account events are delivered asynchronously on the brokerage's
// own goroutines via the registered handlers.
type Brokerage interface {
	PlaceOrder(order *orders.Order) error
	UpdateOrder(order *orders.Order) error
	CancelOrder(order *orders.Order) error
	CashBalance() ([]portfolio.Cash, error)
	SetEventHandlers(onOrder func(*orders.OrderEvent), onAccount func(AccountEvent))
}
