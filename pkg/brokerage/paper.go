package brokerage

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// PaperBrokerage simulates an execution venue against the security registry's
// marks. Accepted orders rest until Tick matches them; fills and cancels are
// delivered on a dedicated dispatch goroutine so the engine sees the same
// threading a real venue would produce.
type PaperBrokerage struct {
	mu       sync.Mutex
	registry *securities.Registry
	cash     *portfolio.CashBook
	open     map[int64]*paperOrder
	nextFill int64

	// MaxFillQuantity caps the quantity filled per order per tick; larger
	// orders fill across several ticks as partials. Zero means no cap.
	MaxFillQuantity int64

	events  chan *orders.OrderEvent
	done    chan struct{}
	once    sync.Once
	handler struct {
		sync.RWMutex
		onOrder   func(*orders.OrderEvent)
		onAccount func(AccountEvent)
	}

	logger *zap.Logger
}

type paperOrder struct {
	order     *orders.Order
	remaining int64
}

func NewPaperBrokerage(registry *securities.Registry, cash *portfolio.CashBook, logger *zap.Logger) *PaperBrokerage {
	b := &PaperBrokerage{
		registry: registry,
		cash:     cash,
		open:     make(map[int64]*paperOrder),
		events:   make(chan *orders.OrderEvent, 256),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go b.dispatch()
	return b
}

func (b *PaperBrokerage) SetEventHandlers(onOrder func(*orders.OrderEvent), onAccount func(AccountEvent)) {
	b.handler.Lock()
	b.handler.onOrder = onOrder
	b.handler.onAccount = onAccount
	b.handler.Unlock()
}

func (b *PaperBrokerage) dispatch() {
	for {
		select {
		case e := <-b.events:
			b.handler.RLock()
			fn := b.handler.onOrder
			b.handler.RUnlock()
			if fn != nil {
				fn(e)
			}
		case <-b.done:
			return
		}
	}
}

func (b *PaperBrokerage) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *PaperBrokerage) PlaceOrder(order *orders.Order) error {
	if _, ok := b.registry.Get(order.Symbol); !ok {
		return fmt.Errorf("unknown symbol: %s", order.Symbol)
	}

	b.mu.Lock()
	b.nextFill++
	order.BrokerIDs = append(order.BrokerIDs, fmt.Sprintf("paper-%d", b.nextFill))
	b.open[order.ID] = &paperOrder{order: order.Clone(), remaining: order.Quantity}
	b.mu.Unlock()

	b.logger.Info("paper order accepted",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.Int64("quantity", order.Quantity),
		zap.String("kind", order.Kind.String()))
	return nil
}

func (b *PaperBrokerage) UpdateOrder(order *orders.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	po, ok := b.open[order.ID]
	if !ok {
		return fmt.Errorf("order %d is not open at the venue", order.ID)
	}
	filled := po.order.Quantity - po.remaining
	po.order = order.Clone()
	po.remaining = order.Quantity - filled
	return nil
}

func (b *PaperBrokerage) CancelOrder(order *orders.Order) error {
	b.mu.Lock()
	_, ok := b.open[order.ID]
	if ok {
		delete(b.open, order.ID)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("order %d is not open at the venue", order.ID)
	}
	// the transaction handler reports the cancel event; the venue only acks
	return nil
}

func (b *PaperBrokerage) CashBalance() ([]portfolio.Cash, error) {
	return b.cash.All(), nil
}

// Tick matches resting orders against current marks. Call it from the data
// feed loop; event delivery stays on the dispatch goroutine either way.
func (b *PaperBrokerage) Tick() {
	now := time.Now()

	b.mu.Lock()
	var fills []*orders.OrderEvent
	for id, po := range b.open {
		sec, ok := b.registry.Get(po.order.Symbol)
		if !ok {
			continue
		}
		price, ok := b.fillPrice(po.order, sec.Price())
		if !ok {
			continue
		}

		qty := po.remaining
		if b.MaxFillQuantity > 0 && abs64(qty) > b.MaxFillQuantity {
			if qty > 0 {
				qty = b.MaxFillQuantity
			} else {
				qty = -b.MaxFillQuantity
			}
		}
		po.remaining -= qty

		e := orders.NewOrderEvent(po.order, now, "")
		e.FillPrice = price
		e.FillQuantity = qty
		if po.remaining == 0 {
			e.Status = orders.OrderStatusFilled
			delete(b.open, id)
		} else {
			e.Status = orders.OrderStatusPartiallyFilled
		}
		fills = append(fills, e)
	}
	b.mu.Unlock()

	for _, e := range fills {
		b.emit(e)
	}
}

// fillPrice decides whether the order is marketable at the current mark and
// at what price it executes.
func (b *PaperBrokerage) fillPrice(o *orders.Order, mark decimal.Decimal) (decimal.Decimal, bool) {
	if mark.IsZero() {
		return decimal.Decimal{}, false
	}
	switch o.Kind {
	case orders.OrderKindMarket, orders.OrderKindMarketOnOpen, orders.OrderKindMarketOnClose:
		return mark, true
	case orders.OrderKindLimit:
		if o.Quantity > 0 && mark.LessThanOrEqual(o.LimitPrice) {
			return mark, true
		}
		if o.Quantity < 0 && mark.GreaterThanOrEqual(o.LimitPrice) {
			return mark, true
		}
	case orders.OrderKindStopMarket:
		if o.Quantity > 0 && mark.GreaterThanOrEqual(o.StopPrice) {
			return mark, true
		}
		if o.Quantity < 0 && mark.LessThanOrEqual(o.StopPrice) {
			return mark, true
		}
	case orders.OrderKindStopLimit:
		triggered := (o.Quantity > 0 && mark.GreaterThanOrEqual(o.StopPrice)) ||
			(o.Quantity < 0 && mark.LessThanOrEqual(o.StopPrice))
		if !triggered {
			break
		}
		if o.Quantity > 0 && mark.LessThanOrEqual(o.LimitPrice) {
			return mark, true
		}
		if o.Quantity < 0 && mark.GreaterThanOrEqual(o.LimitPrice) {
			return mark, true
		}
	}
	return decimal.Decimal{}, false
}

func (b *PaperBrokerage) emit(e *orders.OrderEvent) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

// EmitAccountEvent pushes a balance notification, as a live venue would after
// deposits or funding payments.
func (b *PaperBrokerage) EmitAccountEvent(currency string, balance decimal.Decimal) {
	b.handler.RLock()
	fn := b.handler.onAccount
	b.handler.RUnlock()
	if fn != nil {
		fn(AccountEvent{CurrencySymbol: currency, CashBalance: balance})
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
