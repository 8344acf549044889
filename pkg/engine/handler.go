package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/brokerage"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
	"github.com/daehwan-kim/tradeflow/pkg/util"
)

// Config carries the handler's operational knobs. Zero values fall back to
// the defaults the original system ran with.
type Config struct {
	RetentionCap     int           // live-mode order/ticket table cap
	SyncDrainTimeout time.Duration // backtest per-step drain wait
	ExitTimeout      time.Duration // shutdown drain wait
	FillQuiescence   time.Duration // no-fill window required before trusting a cash sync
	CashSyncCutoff   time.Duration // time-of-day after which the daily sync may run
}

func DefaultConfig() Config {
	return Config{
		RetentionCap:     10000,
		SyncDrainTimeout: time.Second,
		ExitTimeout:      60 * time.Second,
		FillQuiescence:   10 * time.Second,
		CashSyncCutoff:   7*time.Hour + 45*time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RetentionCap == 0 {
		c.RetentionCap = d.RetentionCap
	}
	if c.SyncDrainTimeout == 0 {
		c.SyncDrainTimeout = d.SyncDrainTimeout
	}
	if c.ExitTimeout == 0 {
		c.ExitTimeout = d.ExitTimeout
	}
	if c.FillQuiescence == 0 {
		c.FillQuiescence = d.FillQuiescence
	}
	if c.CashSyncCutoff == 0 {
		c.CashSyncCutoff = d.CashSyncCutoff
	}
	return c
}

// TransactionHandler owns the order and ticket tables, serializes every
// brokerage-facing mutation through a single worker, and folds asynchronous
// brokerage events back into the same state.
//
// Threads: the algorithm goroutine calls Process/ProcessSynchronousEvents,
// one worker goroutine drains the queue in Run, and the brokerage delivers
// HandleOrderEvent/HandleAccountChanged on its own goroutines. Once an order
// is registered, every read or write of its fields goes through mu; the
// brokerage only ever sees clones of the canonical order.
type TransactionHandler struct {
	logger *zap.Logger
	clock  util.Clock

	algorithm Algorithm
	broker    brokerage.Brokerage
	builder   TradeRecorder
	journal   Journal
	sinks     []ResultSink
	cfg       Config

	queue *requestQueue

	mu      sync.RWMutex
	orders  map[int64]*orders.Order
	tickets map[int64]*orders.OrderTicket

	nextID       atomic.Int64
	lastFillNano atomic.Int64

	runCancel context.CancelFunc
	runMu     sync.Mutex

	syncMu       sync.Mutex // cash sync reentrance guard
	syncState    sync.Mutex // guards the fields below
	syncedToday  bool
	lastSyncDay  int // yyyymmdd of the last daily reset
	lastSyncTime time.Time

	// AfterProcessed, when set, runs on the worker after each request is
	// resolved. Extension point for draining handler-specific side effects.
	AfterProcessed func(request orders.OrderRequest)
}

// TradeRecorder consumes fills to build closed trade records.
type TradeRecorder interface {
	ProcessFill(event *orders.OrderEvent, conversionRate decimal.Decimal)
}

// Option customizes handler construction.
type Option func(*TransactionHandler)

func WithJournal(j Journal) Option {
	return func(h *TransactionHandler) { h.journal = j }
}

func WithResultSink(s ResultSink) Option {
	return func(h *TransactionHandler) { h.sinks = append(h.sinks, s) }
}

func WithClock(c util.Clock) Option {
	return func(h *TransactionHandler) { h.clock = c }
}

func NewTransactionHandler(logger *zap.Logger, algorithm Algorithm, broker brokerage.Brokerage, cfg Config, opts ...Option) *TransactionHandler {
	h := &TransactionHandler{
		logger:    logger,
		clock:     util.RealClock{},
		algorithm: algorithm,
		broker:    broker,
		cfg:       cfg.withDefaults(),
		queue:     newRequestQueue(),
		orders:    make(map[int64]*orders.Order),
		tickets:   make(map[int64]*orders.OrderTicket),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.journal != nil {
		if last, err := h.journal.LastOrderID(); err != nil {
			logger.Warn("order journal unreadable, starting ids at 1", zap.Error(err))
		} else {
			h.nextID.Store(last)
		}
	}

	broker.SetEventHandlers(h.HandleOrderEvent, h.HandleAccountChanged)
	return h
}

// NextOrderID mints a fresh order id. Ids are strictly increasing and survive
// restarts through the journal.
func (h *TransactionHandler) NextOrderID() int64 {
	return h.nextID.Add(1)
}

// Process is the single entry point for all order requests.
func (h *TransactionHandler) Process(request orders.OrderRequest) *orders.OrderTicket {
	switch r := request.(type) {
	case *orders.SubmitOrderRequest:
		return h.AddOrder(r)
	case *orders.UpdateOrderRequest:
		return h.UpdateOrder(r)
	case *orders.CancelOrderRequest:
		return h.CancelOrder(r)
	}
	panic(fmt.Sprintf("unknown order request type %T", request))
}

// AddOrder registers a ticket for the submit request and enqueues it. The
// ticket is returned synchronously so callers never wait on brokerage I/O.
// During warm-up the order is synthesized Invalid without venue contact.
func (h *TransactionHandler) AddOrder(request *orders.SubmitOrderRequest) *orders.OrderTicket {
	if request.OrderID() == 0 {
		// callers normally mint via NextOrderID; tolerate the shortcut
		if err := request.SetOrderID(h.NextOrderID()); err != nil {
			h.logger.Error("failed to assign order id", zap.Error(err))
		}
	}

	if h.algorithm.IsWarmingUp() {
		ticket := orders.NewTicketForWarmUp(request)
		order, err := orders.NewOrder(request)
		if err == nil {
			order.Status = orders.OrderStatusInvalid
			h.register(order, ticket)
			h.publish(ticket, h.orderEvent(order, "order submitted during warm-up"))
		}
		return ticket
	}

	// a duplicate id must not displace the live ticket; the original keeps
	// receiving the order's events
	ticket := orders.NewOrderTicket(h, request)
	ticket.SetClock(h.clock.Now)
	h.mu.Lock()
	if _, exists := h.tickets[ticket.OrderID()]; exists {
		h.mu.Unlock()
		return orders.NewTicketForRejectedSubmit(request, orders.ErrorOrderAlreadyExists,
			fmt.Sprintf("order with id %d already exists", request.OrderID()))
	}
	h.tickets[ticket.OrderID()] = ticket
	h.mu.Unlock()

	if err := request.SetResponse(orders.SuccessResponse(request.OrderID()), orders.RequestProcessing); err != nil {
		h.logger.Error("submit request response already set", zap.Int64("order_id", request.OrderID()), zap.Error(err))
	}
	h.queue.Push(request)
	return ticket
}

// UpdateOrder routes an update through the synchronous validation gauntlet
// and, when it passes, into the queue. The owning ticket (or a degenerate
// invalid ticket for unknown ids) is returned.
func (h *TransactionHandler) UpdateOrder(request *orders.UpdateOrderRequest) *orders.OrderTicket {
	ticket, ok := h.Ticket(request.OrderID())
	if !ok {
		return orders.NewTicketForUnknownOrder(request)
	}
	h.HandleUpdate(request)
	return ticket
}

// CancelOrder is the cancel analogue of UpdateOrder.
func (h *TransactionHandler) CancelOrder(request *orders.CancelOrderRequest) *orders.OrderTicket {
	ticket, ok := h.Ticket(request.OrderID())
	if !ok {
		return orders.NewTicketForUnknownOrder(request)
	}
	h.HandleCancel(request)
	return ticket
}

// HandleUpdate validates synchronously and enqueues on success. Failures
// resolve the request immediately; nothing reaches the queue.
func (h *TransactionHandler) HandleUpdate(request *orders.UpdateOrderRequest) orders.OrderResponse {
	// a nil order with a live ticket means the submit is still queued ahead
	// of us; FIFO ordering guarantees it processes first
	ticket, order := h.lookup(request.OrderID())
	var status orders.OrderStatus
	if order != nil {
		status = h.orderStatus(order)
	}
	switch {
	case ticket == nil:
		return h.reject(request, orders.ErrorUnableToFindOrder,
			fmt.Sprintf("unable to find order with id %d", request.OrderID()))
	case order != nil && status.IsClosed():
		return h.reject(request, orders.ErrorInvalidStatus,
			fmt.Sprintf("order %d has already closed with status %s", order.ID, status))
	case request.Quantity != nil && *request.Quantity == 0:
		return h.reject(request, orders.ErrorZeroQuantity,
			"updating an order quantity to zero is not allowed, cancel instead")
	case h.algorithm.IsWarmingUp():
		return h.reject(request, orders.ErrorWarmingUp,
			"orders cannot be updated while the algorithm is warming up")
	}

	ticket.AddUpdateRequest(request)
	request.MarkProcessing()
	h.queue.Push(request)
	return orders.SuccessResponse(request.OrderID())
}

// HandleCancel validates synchronously and enqueues on success. The ticket's
// cancel slot is a compare-and-set, so a second cancel fails fast here.
func (h *TransactionHandler) HandleCancel(request *orders.CancelOrderRequest) orders.OrderResponse {
	ticket, order := h.lookup(request.OrderID())
	var status orders.OrderStatus
	if order != nil {
		status = h.orderStatus(order)
	}
	switch {
	case ticket == nil:
		return h.reject(request, orders.ErrorUnableToFindOrder,
			fmt.Sprintf("unable to find order with id %d", request.OrderID()))
	case order != nil && status.IsClosed():
		return h.reject(request, orders.ErrorInvalidStatus,
			fmt.Sprintf("order %d has already closed with status %s", order.ID, status))
	case h.algorithm.IsWarmingUp():
		return h.reject(request, orders.ErrorWarmingUp,
			"orders cannot be canceled while the algorithm is warming up")
	}

	if !ticket.TrySetCancelRequest(request) {
		return h.reject(request, orders.ErrorInvalidStatus,
			fmt.Sprintf("order %d already has a cancel request in progress", request.OrderID()))
	}
	request.MarkProcessing()
	h.queue.Push(request)
	return orders.SuccessResponse(request.OrderID())
}

// Run is the dedicated worker loop. It consumes requests in strict submission
// order, which serializes every brokerage-facing order mutation.
func (h *TransactionHandler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.runMu.Lock()
	h.runCancel = cancel
	h.runMu.Unlock()

	h.logger.Info("transaction handler started")
	for {
		request, ok := h.queue.Pop(runCtx)
		if !ok {
			h.logger.Info("transaction handler stopped")
			return runCtx.Err()
		}
		h.handleRequest(request)
		h.queue.Done()
		if h.AfterProcessed != nil {
			h.AfterProcessed(request)
		}
	}
}

func (h *TransactionHandler) handleRequest(request orders.OrderRequest) {
	var resp orders.OrderResponse
	switch r := request.(type) {
	case *orders.SubmitOrderRequest:
		resp = h.handleSubmit(r)
	case *orders.UpdateOrderRequest:
		resp = h.handleQueuedUpdate(r)
	case *orders.CancelOrderRequest:
		resp = h.handleQueuedCancel(r)
	default:
		resp = orders.ErrorResponse(request.OrderID(), orders.ErrorProcessing,
			fmt.Sprintf("unknown request type %T", request))
	}

	if err := request.SetResponse(resp, orders.RequestProcessed); err != nil {
		h.logger.Error("terminal response already set",
			zap.Int64("order_id", request.OrderID()), zap.Error(err))
	}
	if resp.IsError() {
		h.logger.Warn("order request failed",
			zap.Int64("order_id", resp.OrderID),
			zap.String("error_code", resp.ErrorCode.String()),
			zap.String("message", resp.ErrorMessage))
	}
}

func (h *TransactionHandler) handleSubmit(request *orders.SubmitOrderRequest) orders.OrderResponse {
	order, err := orders.NewOrder(request)
	if err != nil {
		return orders.ErrorResponse(request.OrderID(), orders.ErrorProcessing, err.Error())
	}

	h.mu.Lock()
	if _, exists := h.orders[order.ID]; exists {
		h.mu.Unlock()
		return orders.ErrorResponse(order.ID, orders.ErrorOrderAlreadyExists,
			fmt.Sprintf("order with id %d already exists", order.ID))
	}
	h.orders[order.ID] = order
	ticket := h.tickets[order.ID]
	h.mu.Unlock()

	if ticket != nil {
		if err := ticket.SetOrder(order); err != nil {
			return orders.ErrorResponse(order.ID, orders.ErrorProcessing, err.Error())
		}
	}

	security, ok := h.algorithm.Security(order.Symbol)
	if !ok {
		return h.invalidate(order, ticket, orders.ErrorProcessing,
			fmt.Sprintf("no security registered for symbol %s", order.Symbol))
	}

	// re-validate buying power on the worker; the portfolio may have moved
	// since the request was submitted. Custom margin models are user code,
	// so panics are contained here and surfaced as processing errors.
	sufficient, err := h.checkBuyingPower(order, security)
	if err != nil {
		return h.invalidate(order, ticket, orders.ErrorProcessing,
			fmt.Sprintf("buying power check failed: %v", err))
	}
	if !sufficient {
		return h.invalidate(order, ticket, orders.ErrorInsufficientBuyingPower,
			fmt.Sprintf("insufficient buying power to complete order %d (value %s)", order.ID, order.Value(security)))
	}

	if !h.algorithm.LiveMode() {
		if err := h.algorithm.BrokerageModel().CanSubmitOrder(order); err != nil {
			return h.invalidate(order, ticket, orders.ErrorBrokerageModelRefusedToSubmitOrder,
				fmt.Sprintf("brokerage model refused order %d: %v", order.ID, err))
		}
	}

	if err := h.placeOrder(order); err != nil {
		return h.invalidate(order, ticket, orders.ErrorBrokerageFailedToSubmitOrder,
			fmt.Sprintf("brokerage failed to place order %d: %v", order.ID, err))
	}

	h.setStatus(order, orders.OrderStatusSubmitted)
	if ticket != nil {
		h.publish(ticket, h.orderEvent(order, ""))
	}
	return orders.SuccessResponse(order.ID)
}

func (h *TransactionHandler) handleQueuedUpdate(request *orders.UpdateOrderRequest) orders.OrderResponse {
	_, order := h.lookup(request.OrderID())
	if order == nil {
		return orders.ErrorResponse(request.OrderID(), orders.ErrorUnableToFindOrder,
			fmt.Sprintf("unable to find order with id %d", request.OrderID()))
	}
	if status := h.orderStatus(order); status.IsClosed() {
		return orders.ErrorResponse(order.ID, orders.ErrorInvalidStatus,
			fmt.Sprintf("order %d closed with status %s before the update was processed", order.ID, status))
	}

	if !h.algorithm.LiveMode() {
		if err := h.algorithm.BrokerageModel().CanUpdateOrder(h.cloneOrder(order), request); err != nil {
			return orders.ErrorResponse(order.ID, orders.ErrorBrokerageModelRefusedToUpdateOrder,
				fmt.Sprintf("brokerage model refused update of order %d: %v", order.ID, err))
		}
	}

	// fields apply before the venue call and are deliberately not reverted
	// when the venue refuses; the local order may then be ahead of the venue
	h.mu.Lock()
	err := order.ApplyUpdateRequest(request)
	h.mu.Unlock()
	if err != nil {
		return orders.ErrorResponse(order.ID, orders.ErrorProcessing, err.Error())
	}
	if err := h.updateOrderAtVenue(order); err != nil {
		return orders.ErrorResponse(order.ID, orders.ErrorBrokerageFailedToUpdateOrder,
			fmt.Sprintf("brokerage failed to update order %d: %v", order.ID, err))
	}
	return orders.SuccessResponse(order.ID)
}

func (h *TransactionHandler) handleQueuedCancel(request *orders.CancelOrderRequest) orders.OrderResponse {
	ticket, order := h.lookup(request.OrderID())
	if order == nil {
		return orders.ErrorResponse(request.OrderID(), orders.ErrorUnableToFindOrder,
			fmt.Sprintf("unable to find order with id %d", request.OrderID()))
	}
	if status := h.orderStatus(order); status.IsClosed() {
		return orders.ErrorResponse(order.ID, orders.ErrorInvalidStatus,
			fmt.Sprintf("order %d closed with status %s before the cancel was processed", order.ID, status))
	}

	if err := h.cancelOrderAtVenue(order); err != nil {
		return orders.ErrorResponse(order.ID, orders.ErrorBrokerageFailedToCancelOrder,
			fmt.Sprintf("brokerage failed to cancel order %d: %v", order.ID, err))
	}

	h.mu.Lock()
	order.Status = orders.OrderStatusCanceled
	if request.Tag != "" {
		order.Tag = request.Tag
	}
	h.mu.Unlock()
	if ticket != nil {
		h.publish(ticket, h.orderEvent(order, request.Tag))
	}
	h.journalOrder(order)
	return orders.SuccessResponse(order.ID)
}

// HandleOrderEvent is the brokerage's order status callback. It runs on the
// brokerage goroutine, concurrently with the worker loop.
func (h *TransactionHandler) HandleOrderEvent(event *orders.OrderEvent) {
	ticket, order := h.lookup(event.OrderID)
	if order == nil {
		h.logger.Error("order event for unknown order", zap.Int64("order_id", event.OrderID))
		return
	}

	h.setStatus(order, event.Status)

	if event.IsFill() {
		h.lastFillNano.Store(h.clock.Now().UnixNano())

		security, ok := h.algorithm.Security(event.Symbol)
		if !ok {
			h.logger.Error("fill for unregistered security", zap.String("symbol", event.Symbol))
		} else {
			if err := h.algorithm.Portfolio().ProcessFill(event, security); err != nil {
				h.logger.Error("portfolio fill processing failed",
					zap.Int64("order_id", event.OrderID), zap.Error(err))
			}
			if h.builder != nil {
				h.builder.ProcessFill(event, security.ConversionRate())
			}
		}
	}

	if ticket != nil {
		ticket.AddOrderEvent(event)
		avg := ticket.AverageFillPrice()
		h.mu.Lock()
		order.Price = avg
		h.mu.Unlock()
	}
	if event.Status.IsClosed() {
		h.journalOrder(order)
	}

	for _, sink := range h.sinks {
		sink.OrderEvent(event)
	}
	h.notifyAlgorithm(event)
}

// HandleAccountChanged logs the drift between our cash book and the pushed
// balance. The push alone is not trusted; the authoritative overwrite happens
// in PerformCashSync.
func (h *TransactionHandler) HandleAccountChanged(event brokerage.AccountEvent) {
	book := h.algorithm.Portfolio().CashBook
	recorded, ok := book.Get(event.CurrencySymbol)
	if !ok {
		h.logger.Info("account changed for untracked currency",
			zap.String("currency", event.CurrencySymbol),
			zap.String("brokerage_balance", event.CashBalance.String()))
		return
	}
	delta := event.CashBalance.Sub(recorded.Amount)
	if !delta.IsZero() {
		h.logger.Info("account cash differs from brokerage push",
			zap.String("currency", event.CurrencySymbol),
			zap.String("recorded", recorded.Amount.String()),
			zap.String("brokerage", event.CashBalance.String()),
			zap.String("delta", delta.String()))
	}
}

// PerformCashSync reconciles the cash book against the venue's balances. At
// most one sync runs at a time; concurrent calls are no-ops. A deferred
// re-check ~10s later invalidates the sync if a fill landed in the window.
func (h *TransactionHandler) PerformCashSync() bool {
	if !h.syncMu.TryLock() {
		return false
	}

	start := h.clock.Now()
	balances, err := h.broker.CashBalance()
	if err != nil || len(balances) == 0 {
		h.syncMu.Unlock()
		h.logger.Warn("cash sync aborted", zap.Error(err), zap.Int("balances", len(balances)))
		return false
	}

	book := h.algorithm.Portfolio().CashBook
	for _, cash := range balances {
		book.Set(cash)
		h.logger.Info("cash synced",
			zap.String("currency", cash.Symbol),
			zap.String("amount", cash.Amount.String()),
			zap.String("rate", cash.ConversionRate.String()))
	}

	h.syncState.Lock()
	h.syncedToday = true
	h.syncState.Unlock()
	h.syncMu.Unlock()

	go func() {
		<-h.clock.After(h.cfg.FillQuiescence)
		lastFill := time.Unix(0, h.lastFillNano.Load())
		h.syncState.Lock()
		defer h.syncState.Unlock()
		if lastFill.After(start) {
			// a fill raced the sync; retry on the next synchronous pass
			h.syncedToday = false
			h.logger.Info("cash sync invalidated by concurrent fill")
			return
		}
		h.lastSyncTime = start
	}()
	return true
}

// ProcessSynchronousEvents runs once per engine time step. Backtests block
// here until every order submitted during the step is fully resolved, which
// is what makes their outcomes deterministic. Live mode never blocks.
func (h *TransactionHandler) ProcessSynchronousEvents() {
	if !h.algorithm.LiveMode() {
		if !h.queue.WaitUntilIdle(h.cfg.SyncDrainTimeout) {
			h.logger.Warn("request queue still busy after drain timeout",
				zap.Duration("timeout", h.cfg.SyncDrainTimeout))
		}
		return
	}

	now := h.clock.Now()
	day := now.Year()*10000 + int(now.Month())*100 + now.Day()

	h.syncState.Lock()
	if day != h.lastSyncDay {
		h.lastSyncDay = day
		h.syncedToday = false
	}
	synced := h.syncedToday
	h.syncState.Unlock()

	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(h.cfg.CashSyncCutoff)
	lastFill := time.Unix(0, h.lastFillNano.Load())
	if !synced && now.After(cutoff) && now.Sub(lastFill) > h.cfg.FillQuiescence {
		go h.PerformCashSync()
	}

	h.pruneOrderTables()
}

// pruneOrderTables evicts the oldest entries (lowest ids) once the tables
// exceed the retention cap. Order and ticket leave together.
func (h *TransactionHandler) pruneOrderTables() {
	h.mu.Lock()
	defer h.mu.Unlock()
	excess := len(h.orders) - h.cfg.RetentionCap
	if excess <= 0 {
		return
	}

	ids := make([]int64, 0, len(h.orders))
	for id := range h.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids[:excess] {
		delete(h.orders, id)
		delete(h.tickets, id)
	}
	h.logger.Info("evicted oldest orders", zap.Int("count", excess))
}

// Exit drains the queue (bounded) and then stops the worker loop.
func (h *TransactionHandler) Exit() {
	if !h.queue.WaitUntilIdle(h.cfg.ExitTimeout) {
		h.logger.Warn("exiting with unprocessed requests",
			zap.Int("pending", h.queue.Len()),
			zap.Duration("timeout", h.cfg.ExitTimeout))
	}
	h.runMu.Lock()
	cancel := h.runCancel
	h.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Ticket returns the caller-facing handle for an order id.
func (h *TransactionHandler) Ticket(orderID int64) (*orders.OrderTicket, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tickets[orderID]
	return t, ok
}

// Order returns a clone of the canonical order; callers never see the
// handler's mutable copy.
func (h *TransactionHandler) Order(orderID int64) (*orders.Order, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	o, ok := h.orders[orderID]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// OpenOrders returns clones of every order that has not closed.
func (h *TransactionHandler) OpenOrders() []*orders.Order {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*orders.Order
	for _, o := range h.orders {
		if !o.IsClosed() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// OrderCount reports the size of the canonical order table.
func (h *TransactionHandler) OrderCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orders)
}

// SetTradeRecorder wires the trade-building collaborator.
func (h *TransactionHandler) SetTradeRecorder(r TradeRecorder) { h.builder = r }

// --- internals ---

func (h *TransactionHandler) lookup(orderID int64) (*orders.OrderTicket, *orders.Order) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tickets[orderID], h.orders[orderID]
}

func (h *TransactionHandler) register(order *orders.Order, ticket *orders.OrderTicket) {
	h.mu.Lock()
	h.orders[order.ID] = order
	h.tickets[order.ID] = ticket
	h.mu.Unlock()
}

func (h *TransactionHandler) reject(request orders.OrderRequest, code orders.ErrorCode, message string) orders.OrderResponse {
	resp := orders.ErrorResponse(request.OrderID(), code, message)
	if err := request.SetResponse(resp, orders.RequestProcessed); err != nil {
		h.logger.Error("rejecting an already processed request",
			zap.Int64("order_id", request.OrderID()), zap.Error(err))
	}
	return resp
}

// invalidate closes an order as Invalid and reports it through a zero-fill
// event carrying the rejection message.
func (h *TransactionHandler) invalidate(order *orders.Order, ticket *orders.OrderTicket, code orders.ErrorCode, message string) orders.OrderResponse {
	h.setStatus(order, orders.OrderStatusInvalid)
	if ticket != nil {
		h.publish(ticket, h.orderEvent(order, message))
	}
	h.journalOrder(order)
	return orders.ErrorResponse(order.ID, code, message)
}

// publish appends the event to the ticket, forwards it to result sinks and
// then to the algorithm's user callback.
func (h *TransactionHandler) publish(ticket *orders.OrderTicket, event *orders.OrderEvent) {
	ticket.AddOrderEvent(event)
	for _, sink := range h.sinks {
		sink.OrderEvent(event)
	}
	h.notifyAlgorithm(event)
}

// notifyAlgorithm invokes user code. A panic or error here means the
// algorithm may be in an inconsistent state, so it is escalated as fatal.
func (h *TransactionHandler) notifyAlgorithm(event *orders.OrderEvent) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("order event callback panicked: %v", r)
			}
		}()
		return h.algorithm.OnOrderEvent(event)
	}()
	if err != nil {
		h.logger.Error("fatal error in order event callback",
			zap.Int64("order_id", event.OrderID), zap.Error(err))
		h.algorithm.RunTimeError(err)
	}
}

func (h *TransactionHandler) checkBuyingPower(order *orders.Order, security *securities.Security) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("margin model panicked: %v", r)
		}
	}()
	return h.algorithm.Portfolio().SufficientCapitalFor(order, security), nil
}

// placeOrder calls the venue with panic containment: a panicking brokerage
// adapter counts as a refusal, not an engine crash. The venue receives a
// clone; broker-assigned ids are copied back onto the canonical order.
func (h *TransactionHandler) placeOrder(order *orders.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("brokerage panicked: %v", r)
		}
	}()
	venueOrder := h.cloneOrder(order)
	if err := h.broker.PlaceOrder(venueOrder); err != nil {
		return err
	}
	h.mu.Lock()
	order.BrokerIDs = venueOrder.BrokerIDs
	h.mu.Unlock()
	return nil
}

func (h *TransactionHandler) updateOrderAtVenue(order *orders.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("brokerage panicked: %v", r)
		}
	}()
	return h.broker.UpdateOrder(h.cloneOrder(order))
}

func (h *TransactionHandler) cancelOrderAtVenue(order *orders.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("brokerage panicked: %v", r)
		}
	}()
	return h.broker.CancelOrder(h.cloneOrder(order))
}

func (h *TransactionHandler) journalOrder(order *orders.Order) {
	if h.journal == nil {
		return
	}
	if err := h.journal.SaveOrder(h.cloneOrder(order)); err != nil {
		h.logger.Warn("order journal write failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// orderStatus reads the canonical order's status under the table lock.
func (h *TransactionHandler) orderStatus(order *orders.Order) orders.OrderStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return order.Status
}

func (h *TransactionHandler) setStatus(order *orders.Order, status orders.OrderStatus) {
	h.mu.Lock()
	order.Status = status
	h.mu.Unlock()
}

// orderEvent builds a zero-fill event from a consistent snapshot of the order.
func (h *TransactionHandler) orderEvent(order *orders.Order, message string) *orders.OrderEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return orders.NewOrderEvent(order, h.clock.Now(), message)
}

func (h *TransactionHandler) cloneOrder(order *orders.Order) *orders.Order {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return order.Clone()
}
