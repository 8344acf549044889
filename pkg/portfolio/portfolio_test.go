package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

func fillEvent(symbol string, qty int64, price int64) *orders.OrderEvent {
	return &orders.OrderEvent{
		OrderID:      1,
		Symbol:       symbol,
		Time:         time.Now(),
		Status:       orders.OrderStatusFilled,
		FillPrice:    decimal.NewFromInt(price),
		FillQuantity: qty,
		Direction:    orders.DirectionOf(qty),
	}
}

func usdSecurity(symbol string, mark int64) *securities.Security {
	s := securities.NewSecurity(symbol, "USD")
	s.SetMarketPrice(decimal.NewFromInt(mark))
	return s
}

func TestCashBook_AdjustCreatesAtUnitRate(t *testing.T) {
	book := NewCashBook()
	book.Adjust("USD", decimal.NewFromInt(500))

	c, ok := book.Get("USD")
	if !ok {
		t.Fatal("USD entry missing after Adjust")
	}
	if !c.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("amount = %s, want 500", c.Amount)
	}
	if !c.ConversionRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("rate = %s, want 1", c.ConversionRate)
	}
}

func TestCashBook_TotalConvertsEveryCurrency(t *testing.T) {
	book := NewCashBook()
	book.Set(Cash{Symbol: "USD", Amount: decimal.NewFromInt(1000), ConversionRate: decimal.NewFromInt(1)})
	book.Set(Cash{Symbol: "EUR", Amount: decimal.NewFromInt(100), ConversionRate: decimal.NewFromFloat(1.2)})

	// 1000 + 100*1.2
	if got := book.TotalValueInAccountCurrency(); !got.Equal(decimal.NewFromInt(1120)) {
		t.Errorf("total = %s, want 1120", got)
	}
}

func TestPortfolio_ProcessFillMovesPositionAndCash(t *testing.T) {
	p := NewPortfolio()
	p.CashBook.Set(Cash{Symbol: "USD", Amount: decimal.NewFromInt(100000), ConversionRate: decimal.NewFromInt(1)})
	sec := usdSecurity("ES", 100)

	if err := p.ProcessFill(fillEvent("ES", 10, 100), sec); err != nil {
		t.Fatalf("ProcessFill: %v", err)
	}

	pos, ok := p.Position("ES")
	if !ok {
		t.Fatal("position missing after fill")
	}
	if pos.Quantity != 10 {
		t.Errorf("quantity = %d, want 10", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("average price = %s, want 100", pos.AveragePrice)
	}
	cash, _ := p.CashBook.Get("USD")
	if !cash.Amount.Equal(decimal.NewFromInt(99000)) {
		t.Errorf("cash = %s, want 99000", cash.Amount)
	}
}

func TestPortfolio_ProcessFillReweightsOnExtend(t *testing.T) {
	p := NewPortfolio()
	sec := usdSecurity("ES", 100)

	_ = p.ProcessFill(fillEvent("ES", 10, 100), sec)
	_ = p.ProcessFill(fillEvent("ES", 10, 110), sec)

	pos, _ := p.Position("ES")
	if pos.Quantity != 20 {
		t.Errorf("quantity = %d, want 20", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.NewFromInt(105)) {
		t.Errorf("average price = %s, want 105", pos.AveragePrice)
	}
}

func TestPortfolio_ProcessFillFlipRestartsAverage(t *testing.T) {
	p := NewPortfolio()
	sec := usdSecurity("ES", 100)

	_ = p.ProcessFill(fillEvent("ES", 10, 100), sec)
	_ = p.ProcessFill(fillEvent("ES", -30, 120), sec)

	pos, _ := p.Position("ES")
	if pos.Quantity != -20 {
		t.Errorf("quantity = %d, want -20", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.NewFromInt(120)) {
		t.Errorf("average price = %s, want the flip price 120", pos.AveragePrice)
	}
}

func TestPortfolio_ProcessFillFlatClearsAverage(t *testing.T) {
	p := NewPortfolio()
	sec := usdSecurity("ES", 100)

	_ = p.ProcessFill(fillEvent("ES", 10, 100), sec)
	_ = p.ProcessFill(fillEvent("ES", -10, 110), sec)

	pos, _ := p.Position("ES")
	if pos.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", pos.Quantity)
	}
	if !pos.AveragePrice.IsZero() {
		t.Errorf("average price = %s, want 0 when flat", pos.AveragePrice)
	}
}

func TestPortfolio_ProcessFillRejectsZeroQuantity(t *testing.T) {
	p := NewPortfolio()
	sec := usdSecurity("ES", 100)
	if err := p.ProcessFill(fillEvent("ES", 0, 100), sec); err == nil {
		t.Fatal("expected error for zero-quantity fill")
	}
}

func TestPortfolio_SufficientCapitalFor(t *testing.T) {
	p := NewPortfolio()
	p.CashBook.Set(Cash{Symbol: "USD", Amount: decimal.NewFromInt(1000), ConversionRate: decimal.NewFromInt(1)})
	sec := usdSecurity("ES", 100)

	buyAffordable := &orders.Order{ID: 1, Symbol: "ES", Quantity: 10, Kind: orders.OrderKindMarket}
	if !p.SufficientCapitalFor(buyAffordable, sec) {
		t.Error("10 @ 100 must fit inside 1000")
	}

	buyTooLarge := &orders.Order{ID: 2, Symbol: "ES", Quantity: 11, Kind: orders.OrderKindMarket}
	if p.SufficientCapitalFor(buyTooLarge, sec) {
		t.Error("11 @ 100 must not fit inside 1000")
	}

	// sells are not gated against cash
	sell := &orders.Order{ID: 3, Symbol: "ES", Quantity: -1000, Kind: orders.OrderKindMarket}
	if !p.SufficientCapitalFor(sell, sec) {
		t.Error("sells must pass the buying power check")
	}
}
