package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// Order is one trading instruction. Identity (ID) is assigned exactly once at
// creation and never changes; everything else mutates only through the
// transaction handler. Kind selects which of the price fields are meaningful,
// and all kind-specific behavior dispatches on it exhaustively.
type Order struct {
	ID           int64
	ContingentID int64
	BrokerIDs    []string // populated by the brokerage, append-only
	Symbol       string
	Price        decimal.Decimal // average fill price once fills arrive
	Time         time.Time
	Quantity     int64 // signed; sign is the direction
	Kind         OrderKind
	Status       OrderStatus
	Tag          string

	// time in force; DurationValue is the expiry instant for good-til-date
	Duration      OrderDuration
	DurationValue time.Time

	// kind-specific fields; valid only when Kind.HasLimitPrice / HasStopPrice
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// NewOrder builds the concrete order variant selected by the submit request's
// kind. Unrecognized kinds are rejected.
func NewOrder(request *SubmitOrderRequest) (*Order, error) {
	if request.Duration == OrderDurationGoodTilDate && request.DurationValue.IsZero() {
		return nil, errors.New("good-til-date orders require an expiry time")
	}
	o := &Order{
		ID:            request.OrderID(),
		ContingentID:  request.ContingentID,
		Symbol:        request.Symbol,
		Time:          request.Time(),
		Quantity:      request.Quantity,
		Kind:          request.Kind,
		Status:        OrderStatusNew,
		Tag:           request.Tag,
		Duration:      request.Duration,
		DurationValue: request.DurationValue,
	}
	switch request.Kind {
	case OrderKindMarket, OrderKindMarketOnOpen, OrderKindMarketOnClose:
	case OrderKindLimit:
		o.LimitPrice = request.LimitPrice
	case OrderKindStopMarket:
		o.StopPrice = request.StopPrice
	case OrderKindStopLimit:
		o.LimitPrice = request.LimitPrice
		o.StopPrice = request.StopPrice
	default:
		return nil, fmt.Errorf("invalid order kind: %d", request.Kind)
	}
	return o, nil
}

func (o *Order) Direction() Direction { return DirectionOf(o.Quantity) }

func (o *Order) IsClosed() bool { return o.Status.IsClosed() }

// Value returns the order's notional in the account currency: quantity times
// the kind-specific unit price, converted through the security's quote
// conversion rate and contract multiplier.
func (o *Order) Value(security *securities.Security) decimal.Decimal {
	unit := o.unitValue(security.Price())
	qty := decimal.NewFromInt(o.Quantity)
	return qty.Mul(unit).Mul(security.ConversionRate()).Mul(security.ContractMultiplier())
}

// unitValue picks the per-unit price for valuation. Sellers value resting
// stop/limit prices pessimistically (the larger of trigger and market) and
// buyers optimistically (the smaller), so buying power checks never undercount.
func (o *Order) unitValue(marketPrice decimal.Decimal) decimal.Decimal {
	switch o.Kind {
	case OrderKindMarket, OrderKindMarketOnOpen, OrderKindMarketOnClose:
		return marketPrice
	case OrderKindLimit, OrderKindStopLimit:
		if o.Quantity < 0 {
			return decimal.Max(o.LimitPrice, marketPrice)
		}
		return decimal.Min(o.LimitPrice, marketPrice)
	case OrderKindStopMarket:
		if o.Quantity < 0 {
			return decimal.Max(o.StopPrice, marketPrice)
		}
		return decimal.Min(o.StopPrice, marketPrice)
	}
	return marketPrice
}

// ApplyUpdateRequest mutates only the fields present in the request. Price
// fields that do not apply to this order's kind are rejected.
func (o *Order) ApplyUpdateRequest(request *UpdateOrderRequest) error {
	if request.OrderID() != o.ID {
		return fmt.Errorf("update request order id %d does not match order %d", request.OrderID(), o.ID)
	}
	if request.LimitPrice != nil && !o.Kind.HasLimitPrice() {
		return fmt.Errorf("%s order has no limit price", o.Kind)
	}
	if request.StopPrice != nil && !o.Kind.HasStopPrice() {
		return fmt.Errorf("%s order has no stop price", o.Kind)
	}
	if request.Quantity != nil {
		o.Quantity = *request.Quantity
	}
	if request.LimitPrice != nil {
		o.LimitPrice = *request.LimitPrice
	}
	if request.StopPrice != nil {
		o.StopPrice = *request.StopPrice
	}
	if request.Tag != nil {
		o.Tag = *request.Tag
	}
	return nil
}

// Clone returns a deep value copy. Orders cross goroutine boundaries only as
// clones so callers never share mutable state with the handler.
func (o *Order) Clone() *Order {
	cp := *o
	cp.BrokerIDs = append([]string(nil), o.BrokerIDs...)
	return &cp
}
