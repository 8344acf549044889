package brokerage

import (
	"fmt"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

// Model is the advisory pre-trade policy consulted outside live mode before
// submit and update requests reach the venue. A nil return permits the
// request; an error refuses it with a reason.
type Model interface {
	CanSubmitOrder(order *orders.Order) error
	CanUpdateOrder(order *orders.Order, request *orders.UpdateOrderRequest) error
}

// DefaultModel permits everything a venue could plausibly accept.
type DefaultModel struct{}

func (DefaultModel) CanSubmitOrder(order *orders.Order) error {
	if order.Quantity == 0 {
		return fmt.Errorf("order %d has zero quantity", order.ID)
	}
	return nil
}

func (DefaultModel) CanUpdateOrder(order *orders.Order, request *orders.UpdateOrderRequest) error {
	return nil
}
