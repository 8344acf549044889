package brokerage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

func newPaperFixture(t *testing.T, mark int64) (*PaperBrokerage, *securities.Security, chan *orders.OrderEvent) {
	t.Helper()

	registry := securities.NewRegistry()
	sec := securities.NewSecurity("ES", "USD")
	sec.SetMarketPrice(decimal.NewFromInt(mark))
	registry.Add(sec)

	cash := portfolio.NewCashBook()
	cash.Set(portfolio.Cash{Symbol: "USD", Amount: decimal.NewFromInt(100000), ConversionRate: decimal.NewFromInt(1)})

	b := NewPaperBrokerage(registry, cash, zap.NewNop())
	t.Cleanup(b.Close)

	events := make(chan *orders.OrderEvent, 16)
	b.SetEventHandlers(func(e *orders.OrderEvent) { events <- e }, nil)
	return b, sec, events
}

func nextEvent(t *testing.T, events chan *orders.OrderEvent) *orders.OrderEvent {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func marketOrder(id, qty int64) *orders.Order {
	return &orders.Order{ID: id, Symbol: "ES", Quantity: qty, Kind: orders.OrderKindMarket}
}

func TestPaper_MarketOrderFillsAtMark(t *testing.T) {
	b, _, events := newPaperFixture(t, 100)

	o := marketOrder(1, 5)
	if err := b.PlaceOrder(o); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(o.BrokerIDs) != 1 {
		t.Errorf("broker ids = %v, want one venue id", o.BrokerIDs)
	}

	b.Tick()
	e := nextEvent(t, events)
	if e.Status != orders.OrderStatusFilled {
		t.Errorf("status = %v, want filled", e.Status)
	}
	if e.FillQuantity != 5 || !e.FillPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("fill = %d @ %s, want 5 @ 100", e.FillQuantity, e.FillPrice)
	}

	// the order left the book; further ticks stay silent
	b.Tick()
	select {
	case e := <-events:
		t.Errorf("unexpected event after full fill: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPaper_UnknownSymbolIsRejected(t *testing.T) {
	b, _, _ := newPaperFixture(t, 100)
	o := &orders.Order{ID: 1, Symbol: "NOPE", Quantity: 5, Kind: orders.OrderKindMarket}
	if err := b.PlaceOrder(o); err == nil {
		t.Fatal("expected unknown symbol error")
	}
}

func TestPaper_LimitOrderWaitsForMarketablePrice(t *testing.T) {
	b, sec, events := newPaperFixture(t, 100)

	o := &orders.Order{ID: 1, Symbol: "ES", Quantity: 5, Kind: orders.OrderKindLimit, LimitPrice: decimal.NewFromInt(95)}
	if err := b.PlaceOrder(o); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	b.Tick() // mark 100 > limit 95, a buy does not cross
	select {
	case e := <-events:
		t.Fatalf("limit buy filled above its price: %v", e)
	case <-time.After(50 * time.Millisecond):
	}

	sec.SetMarketPrice(decimal.NewFromInt(94))
	b.Tick()
	e := nextEvent(t, events)
	if e.Status != orders.OrderStatusFilled || !e.FillPrice.Equal(decimal.NewFromInt(94)) {
		t.Errorf("fill = %v @ %s, want filled @ 94", e.Status, e.FillPrice)
	}
}

func TestPaper_StopOrderTriggersOnMark(t *testing.T) {
	b, sec, events := newPaperFixture(t, 100)

	// sell stop below the market
	o := &orders.Order{ID: 1, Symbol: "ES", Quantity: -5, Kind: orders.OrderKindStopMarket, StopPrice: decimal.NewFromInt(95)}
	if err := b.PlaceOrder(o); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	b.Tick()
	select {
	case e := <-events:
		t.Fatalf("stop triggered above its price: %v", e)
	case <-time.After(50 * time.Millisecond):
	}

	sec.SetMarketPrice(decimal.NewFromInt(93))
	b.Tick()
	e := nextEvent(t, events)
	if e.Status != orders.OrderStatusFilled || e.FillQuantity != -5 {
		t.Errorf("fill = %v qty %d, want filled qty -5", e.Status, e.FillQuantity)
	}
}

func TestPaper_MaxFillQuantityProducesPartials(t *testing.T) {
	b, _, events := newPaperFixture(t, 100)
	b.MaxFillQuantity = 4

	if err := b.PlaceOrder(marketOrder(1, 10)); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	wantQty := []int64{4, 4, 2}
	wantStatus := []orders.OrderStatus{
		orders.OrderStatusPartiallyFilled,
		orders.OrderStatusPartiallyFilled,
		orders.OrderStatusFilled,
	}
	for i := range wantQty {
		b.Tick()
		e := nextEvent(t, events)
		if e.FillQuantity != wantQty[i] || e.Status != wantStatus[i] {
			t.Errorf("tick %d: %d %v, want %d %v", i, e.FillQuantity, e.Status, wantQty[i], wantStatus[i])
		}
	}
}

func TestPaper_UpdatePreservesFilledQuantity(t *testing.T) {
	b, _, events := newPaperFixture(t, 100)
	b.MaxFillQuantity = 4

	o := marketOrder(1, 10)
	if err := b.PlaceOrder(o); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	b.Tick() // 4 filled, 6 remaining
	nextEvent(t, events)

	upd := o.Clone()
	upd.Quantity = 8
	if err := b.UpdateOrder(upd); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	// 8 total - 4 already filled = 4 remaining, one tick finishes it
	b.Tick()
	e := nextEvent(t, events)
	if e.FillQuantity != 4 || e.Status != orders.OrderStatusFilled {
		t.Errorf("fill = %d %v, want 4 filled", e.FillQuantity, e.Status)
	}
}

func TestPaper_CancelOnlyAcks(t *testing.T) {
	b, _, events := newPaperFixture(t, 100)

	o := marketOrder(1, 5)
	if err := b.PlaceOrder(o); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if err := b.CancelOrder(o); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	// the engine reports the cancel; the venue emits nothing
	select {
	case e := <-events:
		t.Errorf("venue emitted an event on cancel: %v", e)
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.CancelOrder(o); err == nil {
		t.Error("expected error canceling an order that is no longer open")
	}

	b.Tick()
	select {
	case e := <-events:
		t.Errorf("canceled order still filled: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPaper_AccountEventReachesHandler(t *testing.T) {
	b, _, _ := newPaperFixture(t, 100)

	got := make(chan AccountEvent, 1)
	b.SetEventHandlers(nil, func(e AccountEvent) { got <- e })

	b.EmitAccountEvent("USD", decimal.NewFromInt(123))
	select {
	case e := <-got:
		if e.CurrencySymbol != "USD" || !e.CashBalance.Equal(decimal.NewFromInt(123)) {
			t.Errorf("account event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("account event not delivered")
	}
}
