package tests

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/brokerage"
	"github.com/daehwan-kim/tradeflow/pkg/engine"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
)

// rig wires the full stack against the paper venue: registry, portfolio,
// brokerage, algorithm, trade builder and the transaction handler with its
// worker running.
type rig struct {
	t       *testing.T
	handler *engine.TransactionHandler
	algo    *engine.BasicAlgorithm
	broker  *brokerage.PaperBrokerage
	port    *portfolio.Portfolio
	builder *portfolio.TradeBuilder
	sec     *securities.Security
}

func newRig(t *testing.T) *rig {
	t.Helper()

	registry := securities.NewRegistry()
	sec := securities.NewSecurity("ES", "USD")
	sec.SetMarketPrice(decimal.NewFromInt(100))
	registry.Add(sec)

	port := portfolio.NewPortfolio()
	port.CashBook.Set(portfolio.Cash{
		Symbol:         "USD",
		Amount:         decimal.NewFromInt(100000),
		ConversionRate: decimal.NewFromInt(1),
	})

	broker := brokerage.NewPaperBrokerage(registry, port.CashBook, zap.NewNop())
	t.Cleanup(broker.Close)

	algo := engine.NewBasicAlgorithm(port, brokerage.DefaultModel{}, registry)
	builder := portfolio.NewTradeBuilder()

	handler := engine.NewTransactionHandler(zap.NewNop(), algo, broker, engine.Config{})
	handler.SetTradeRecorder(builder)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = handler.Run(ctx) }()
	t.Cleanup(cancel)

	return &rig{t: t, handler: handler, algo: algo, broker: broker, port: port, builder: builder, sec: sec}
}

func (r *rig) submit(quantity int64, kind orders.OrderKind) (*orders.SubmitOrderRequest, *orders.OrderTicket) {
	r.t.Helper()
	req := orders.NewSubmitOrderRequest(r.handler.NextOrderID(), "ES", quantity, kind, time.Now())
	ticket := r.handler.AddOrder(req)
	r.handler.ProcessSynchronousEvents() // backtest-style drain
	return req, ticket
}

func (r *rig) mustFill(ticket *orders.OrderTicket) {
	r.t.Helper()
	r.broker.Tick()
	if !ticket.Wait(2 * time.Second) {
		r.t.Fatalf("order %d never closed", ticket.OrderID())
	}
}

func TestLifecycle_MarketOrderRoundTrip(t *testing.T) {
	r := newRig(t)

	// entry
	_, buy := r.submit(10, orders.OrderKindMarket)
	if buy.Status() != orders.OrderStatusSubmitted {
		t.Fatalf("status after drain = %v, want submitted", buy.Status())
	}
	r.mustFill(buy)

	if buy.QuantityFilled() != 10 {
		t.Errorf("filled = %d, want 10", buy.QuantityFilled())
	}
	if !buy.AverageFillPrice().Equal(decimal.NewFromInt(100)) {
		t.Errorf("avg fill = %s, want 100", buy.AverageFillPrice())
	}
	pos, ok := r.port.Position("ES")
	if !ok || pos.Quantity != 10 {
		t.Fatalf("position = %+v, ok = %v", pos, ok)
	}
	cash, _ := r.port.CashBook.Get("USD")
	if !cash.Amount.Equal(decimal.NewFromInt(99000)) {
		t.Errorf("cash = %s, want 99000", cash.Amount)
	}

	// exit at a higher mark
	r.sec.SetMarketPrice(decimal.NewFromInt(110))
	_, sell := r.submit(-10, orders.OrderKindMarket)
	r.mustFill(sell)

	pos, _ = r.port.Position("ES")
	if pos.Quantity != 0 {
		t.Errorf("position after exit = %d, want flat", pos.Quantity)
	}
	cash, _ = r.port.CashBook.Get("USD")
	if !cash.Amount.Equal(decimal.NewFromInt(100100)) {
		t.Errorf("cash = %s, want 100100 after the round trip", cash.Amount)
	}

	trades := r.builder.ClosedTrades()
	if len(trades) != 1 {
		t.Fatalf("closed trades = %d, want 1", len(trades))
	}
	if !trades[0].PnL.Equal(decimal.NewFromInt(100)) {
		t.Errorf("pnl = %s, want 100", trades[0].PnL)
	}
}

func TestLifecycle_PartialFillsAcrossTicks(t *testing.T) {
	r := newRig(t)
	r.broker.MaxFillQuantity = 4

	_, ticket := r.submit(10, orders.OrderKindMarket)

	r.broker.Tick()
	r.broker.Tick()
	if ticket.Wait(100 * time.Millisecond) {
		t.Fatal("ticket closed before the final partial")
	}
	r.broker.Tick()
	if !ticket.Wait(2 * time.Second) {
		t.Fatal("ticket never closed")
	}

	if ticket.QuantityFilled() != 10 {
		t.Errorf("filled = %d, want 10 across three partials", ticket.QuantityFilled())
	}
	if got := len(ticket.Events()); got < 4 {
		// submitted + 2 partials + final fill
		t.Errorf("events = %d, want at least 4", got)
	}
	pos, _ := r.port.Position("ES")
	if pos.Quantity != 10 {
		t.Errorf("position = %d, want 10", pos.Quantity)
	}
}

func TestLifecycle_UpdateMakesRestingLimitMarketable(t *testing.T) {
	r := newRig(t)

	req := orders.NewSubmitOrderRequest(r.handler.NextOrderID(), "ES", 5, orders.OrderKindLimit, time.Now())
	req.LimitPrice = decimal.NewFromInt(95)
	ticket := r.handler.AddOrder(req)
	r.handler.ProcessSynchronousEvents()

	r.broker.Tick() // resting: mark 100 above the buy limit
	if ticket.Wait(100 * time.Millisecond) {
		t.Fatal("limit order filled while unmarketable")
	}

	newLimit := decimal.NewFromInt(105)
	resp := ticket.Update(orders.UpdateFields{LimitPrice: &newLimit})
	if !resp.IsSuccess {
		t.Fatalf("update response: %+v", resp)
	}
	r.handler.ProcessSynchronousEvents()

	if got, err := ticket.Get(orders.FieldLimitPrice); err != nil || !got.Equal(newLimit) {
		t.Fatalf("limit price = %s, %v, want 105", got, err)
	}

	r.mustFill(ticket)
	if !ticket.AverageFillPrice().Equal(decimal.NewFromInt(100)) {
		t.Errorf("avg fill = %s, want the 100 mark", ticket.AverageFillPrice())
	}
}

func TestLifecycle_CancelRestingOrder(t *testing.T) {
	r := newRig(t)

	req := orders.NewSubmitOrderRequest(r.handler.NextOrderID(), "ES", 5, orders.OrderKindLimit, time.Now())
	req.LimitPrice = decimal.NewFromInt(90)
	ticket := r.handler.AddOrder(req)
	r.handler.ProcessSynchronousEvents()

	resp := ticket.Cancel("strategy flattened")
	if !resp.IsSuccess {
		t.Fatalf("cancel response: %+v", resp)
	}
	r.handler.ProcessSynchronousEvents()

	if !ticket.Wait(2 * time.Second) {
		t.Fatal("canceled ticket never closed")
	}
	if ticket.Status() != orders.OrderStatusCanceled {
		t.Errorf("status = %v, want canceled", ticket.Status())
	}

	// lowering the mark through the old limit must not fill it
	r.sec.SetMarketPrice(decimal.NewFromInt(85))
	r.broker.Tick()
	time.Sleep(50 * time.Millisecond)
	if ticket.QuantityFilled() != 0 {
		t.Errorf("canceled order filled %d", ticket.QuantityFilled())
	}
}

func TestLifecycle_WarmUpThenTrade(t *testing.T) {
	r := newRig(t)
	r.algo.SetWarmingUp(true)

	_, warm := r.submit(10, orders.OrderKindMarket)
	if warm.Status() != orders.OrderStatusInvalid {
		t.Fatalf("warm-up status = %v, want invalid", warm.Status())
	}

	r.algo.SetWarmingUp(false)
	_, live := r.submit(10, orders.OrderKindMarket)
	r.mustFill(live)
	if live.QuantityFilled() != 10 {
		t.Errorf("filled = %d, want 10 once warm-up ended", live.QuantityFilled())
	}
}
