package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is a brokerage notification about one order: a status change,
// a partial or complete fill, or a rejection with a message.
type OrderEvent struct {
	OrderID      int64
	Symbol       string
	Time         time.Time
	Status       OrderStatus
	FillPrice    decimal.Decimal
	FillQuantity int64
	Direction    Direction
	Message      string
}

func NewOrderEvent(order *Order, t time.Time, message string) *OrderEvent {
	return &OrderEvent{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Time:      t,
		Status:    order.Status,
		Direction: order.Direction(),
		Message:   message,
	}
}

// IsFill reports whether the event carries executed quantity.
func (e *OrderEvent) IsFill() bool {
	return e.FillQuantity != 0 && e.Status.IsFill()
}

func (e *OrderEvent) String() string {
	if e.FillQuantity == 0 {
		return fmt.Sprintf("order %d %s: %s %s", e.OrderID, e.Symbol, e.Status, e.Message)
	}
	return fmt.Sprintf("order %d %s: %s fill %d @ %s", e.OrderID, e.Symbol, e.Status, e.FillQuantity, e.FillPrice)
}
