package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

// Trade is one closed round trip: an entry later flattened (fully or in part)
// by an opposing fill. PnL is expressed in the account currency.
type Trade struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Quantity   int64 // signed entry direction
	PnL        decimal.Decimal
}

type openLot struct {
	quantity   int64
	entryPrice decimal.Decimal
	entryTime  time.Time
}

// TradeBuilder pairs fills into closed trades. Same-direction fills extend the
// open lot at a reweighted average entry; opposing fills close quantity
// against it and record the realized PnL.
type TradeBuilder struct {
	mu     sync.Mutex
	open   map[string]*openLot
	closed []Trade
}

func NewTradeBuilder() *TradeBuilder {
	return &TradeBuilder{open: make(map[string]*openLot)}
}

// ProcessFill consumes one fill event. conversionRate converts the symbol's
// quote currency PnL into the account currency.
func (b *TradeBuilder) ProcessFill(event *orders.OrderEvent, conversionRate decimal.Decimal) {
	if event.FillQuantity == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	lot, ok := b.open[event.Symbol]
	if !ok || lot.quantity == 0 {
		b.open[event.Symbol] = &openLot{
			quantity:   event.FillQuantity,
			entryPrice: event.FillPrice,
			entryTime:  event.Time,
		}
		return
	}

	if (lot.quantity > 0) == (event.FillQuantity > 0) {
		// extend: reweight average entry
		oldAbs := decimal.NewFromInt(lot.quantity).Abs()
		addAbs := decimal.NewFromInt(event.FillQuantity).Abs()
		total := oldAbs.Mul(lot.entryPrice).Add(addAbs.Mul(event.FillPrice))
		lot.entryPrice = total.Div(oldAbs.Add(addAbs))
		lot.quantity += event.FillQuantity
		return
	}

	// opposing fill: close against the open lot
	closing := event.FillQuantity
	if abs64(closing) > abs64(lot.quantity) {
		closing = -lot.quantity
	}
	closedQty := -closing // signed in the entry direction

	diff := event.FillPrice.Sub(lot.entryPrice)
	pnl := diff.Mul(decimal.NewFromInt(closedQty)).Mul(conversionRate)
	b.closed = append(b.closed, Trade{
		Symbol:     event.Symbol,
		EntryTime:  lot.entryTime,
		ExitTime:   event.Time,
		EntryPrice: lot.entryPrice,
		ExitPrice:  event.FillPrice,
		Quantity:   closedQty,
		PnL:        pnl,
	})

	lot.quantity += closing
	remainder := event.FillQuantity - closing
	if lot.quantity == 0 {
		if remainder != 0 {
			// flip: the excess opens a fresh lot the other way
			lot.quantity = remainder
			lot.entryPrice = event.FillPrice
			lot.entryTime = event.Time
		} else {
			delete(b.open, event.Symbol)
		}
	}
}

// ClosedTrades returns a copy of all round trips recorded so far.
func (b *TradeBuilder) ClosedTrades() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Trade(nil), b.closed...)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
