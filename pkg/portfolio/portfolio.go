package portfolio

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// Position is the net holding in one symbol.
type Position struct {
	Symbol       string
	Quantity     int64
	AveragePrice decimal.Decimal
}

// Portfolio is the cash book plus net positions per symbol. Fills arrive from
// the brokerage goroutine while cash sync runs on the engine goroutine; each
// sub-structure guards itself, so individual mutations are atomic.
type Portfolio struct {
	CashBook *CashBook

	mu        sync.RWMutex
	positions map[string]*Position
}

func NewPortfolio() *Portfolio {
	return &Portfolio{
		CashBook:  NewCashBook(),
		positions: make(map[string]*Position),
	}
}

func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// ProcessFill applies an executed fill: the position moves by the fill
// quantity and the security's quote currency cash moves by the opposite
// notional.
func (p *Portfolio) ProcessFill(event *orders.OrderEvent, security *securities.Security) error {
	if event.FillQuantity == 0 {
		return fmt.Errorf("fill event for order %d carries no quantity", event.OrderID)
	}

	p.mu.Lock()
	pos, ok := p.positions[event.Symbol]
	if !ok {
		pos = &Position{Symbol: event.Symbol}
		p.positions[event.Symbol] = pos
	}

	fillQty := decimal.NewFromInt(event.FillQuantity)
	oldQty := decimal.NewFromInt(pos.Quantity)
	newQty := pos.Quantity + event.FillQuantity

	// extending a position reweights the average entry; flips restart it
	switch {
	case pos.Quantity == 0 || (pos.Quantity > 0) == (event.FillQuantity > 0):
		total := oldQty.Abs().Mul(pos.AveragePrice).Add(fillQty.Abs().Mul(event.FillPrice))
		denom := oldQty.Abs().Add(fillQty.Abs())
		if !denom.IsZero() {
			pos.AveragePrice = total.Div(denom)
		}
	case (pos.Quantity > 0) != (newQty > 0) && newQty != 0:
		pos.AveragePrice = event.FillPrice
	case newQty == 0:
		pos.AveragePrice = decimal.Decimal{}
	}
	pos.Quantity = newQty
	p.mu.Unlock()

	notional := fillQty.Mul(event.FillPrice).Mul(security.ContractMultiplier())
	p.CashBook.Adjust(security.QuoteCurrency, notional.Neg())
	return nil
}

// SufficientCapitalFor is the pre-submission buying power check: the order's
// converted notional must fit inside the cash book's total value.
func (p *Portfolio) SufficientCapitalFor(order *orders.Order, security *securities.Security) bool {
	if order.Direction() == orders.Sell {
		// closing or opening short against held cash; the original system
		// only gates the buy-side notional here
		return true
	}
	required := order.Value(security).Abs()
	return p.CashBook.TotalValueInAccountCurrency().GreaterThanOrEqual(required)
}
