package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RequestProcessor is the slice of the transaction handler a ticket needs to
// route its own update/cancel requests. Implemented by engine.TransactionHandler.
type RequestProcessor interface {
	HandleUpdate(request *UpdateOrderRequest) OrderResponse
	HandleCancel(request *CancelOrderRequest) OrderResponse
}

// UpdateFields names the order fields an algorithm may change after submission.
// Nil fields are left untouched.
type UpdateFields struct {
	Quantity   *int64
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
	Tag        *string
}

// Field identifies a kind-specific numeric order field for OrderTicket.Get.
type Field uint8

const (
	FieldLimitPrice Field = iota
	FieldStopPrice
)

func (f Field) String() string {
	switch f {
	case FieldLimitPrice:
		return "limitPrice"
	case FieldStopPrice:
		return "stopPrice"
	}
	return "unknown"
}

// OrderTicket is the single reference algorithm code holds for an order. It
// aggregates every request and fill event over the order's life and stays
// valid from submission through the terminal state.
type OrderTicket struct {
	mu sync.Mutex

	orderID       int64
	processor     RequestProcessor
	submitRequest *SubmitOrderRequest
	updates       []*UpdateOrderRequest
	cancel        *CancelOrderRequest
	events        []*OrderEvent

	order         *Order
	forcedInvalid bool

	quantityFilled   int64
	avgFillPrice     decimal.Decimal
	sumAbsFillQty    decimal.Decimal
	sumAbsFillAmount decimal.Decimal

	closed    chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

func NewOrderTicket(processor RequestProcessor, request *SubmitOrderRequest) *OrderTicket {
	return &OrderTicket{
		orderID:       request.OrderID(),
		processor:     processor,
		submitRequest: request,
		closed:        make(chan struct{}),
		now:           time.Now,
	}
}

// NewTicketForUnknownOrder builds the degenerate ticket handed back when an
// update or cancel names an order id the handler has never seen. The embedded
// request already carries its terminal error response.
func NewTicketForUnknownOrder(request OrderRequest) *OrderTicket {
	resp := ErrorResponse(request.OrderID(), ErrorUnableToFindOrder,
		fmt.Sprintf("unable to find order with id %d", request.OrderID()))
	_ = request.SetResponse(resp, RequestProcessed)
	t := &OrderTicket{
		orderID:       request.OrderID(),
		forcedInvalid: true,
		closed:        make(chan struct{}),
		now:           time.Now,
	}
	t.closeOnce.Do(func() { close(t.closed) })
	return t
}

// NewTicketForRejectedSubmit builds the degenerate ticket handed back when a
// submit fails synchronous validation and never reaches the queue. The
// embedded request carries its terminal error response.
func NewTicketForRejectedSubmit(request *SubmitOrderRequest, code ErrorCode, message string) *OrderTicket {
	resp := ErrorResponse(request.OrderID(), code, message)
	_ = request.SetResponse(resp, RequestProcessed)
	t := &OrderTicket{
		orderID:       request.OrderID(),
		submitRequest: request,
		forcedInvalid: true,
		closed:        make(chan struct{}),
		now:           time.Now,
	}
	t.closeOnce.Do(func() { close(t.closed) })
	return t
}

// NewTicketForWarmUp builds the rejected ticket returned for submissions made
// while the algorithm is still warming up.
func NewTicketForWarmUp(request *SubmitOrderRequest) *OrderTicket {
	return NewTicketForRejectedSubmit(request, ErrorWarmingUp,
		"orders cannot be submitted while the algorithm is warming up")
}

func (t *OrderTicket) OrderID() int64 { return t.orderID }

// SetClock swaps the time source used when the ticket mints its own requests.
func (t *OrderTicket) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// SetOrder attaches the canonical order. The ticket and order ids must agree.
func (t *OrderTicket) SetOrder(order *Order) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if order.ID != t.orderID {
		return fmt.Errorf("order id %d does not match ticket %d", order.ID, t.orderID)
	}
	t.order = order
	return nil
}

func (t *OrderTicket) SubmitRequest() *SubmitOrderRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitRequest
}

func (t *OrderTicket) UpdateRequests() []*UpdateOrderRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*UpdateOrderRequest(nil), t.updates...)
}

func (t *OrderTicket) CancelRequest() *CancelOrderRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel
}

func (t *OrderTicket) Events() []*OrderEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*OrderEvent(nil), t.events...)
}

func (t *OrderTicket) QuantityFilled() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quantityFilled
}

func (t *OrderTicket) AverageFillPrice() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.avgFillPrice
}

// Status reports the ticket's view of the order state. Degenerate tickets are
// pinned to Invalid; before the order is attached the ticket is New.
func (t *OrderTicket) Status() OrderStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.forcedInvalid {
		return OrderStatusInvalid
	}
	if t.order == nil {
		return OrderStatusNew
	}
	return t.order.Status
}

// Closed returns a channel that is closed once the order reaches a terminal
// status. Blocking callers wait on it.
func (t *OrderTicket) Closed() <-chan struct{} { return t.closed }

// Wait blocks until the order closes or the timeout elapses.
func (t *OrderTicket) Wait(timeout time.Duration) bool {
	select {
	case <-t.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// AddUpdateRequest appends in submission order. Handler-internal.
func (t *OrderTicket) AddUpdateRequest(request *UpdateOrderRequest) {
	t.mu.Lock()
	t.updates = append(t.updates, request)
	t.mu.Unlock()
}

// TrySetCancelRequest stores the cancel request if none exists yet. The second
// and later callers get false and the original request stays in place, which
// is what makes user-facing cancellation idempotent.
func (t *OrderTicket) TrySetCancelRequest(request *CancelOrderRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return false
	}
	t.cancel = request
	return true
}

// MostRecentRequest prefers the cancel request over the latest update over the
// original submit.
func (t *OrderTicket) MostRecentRequest() OrderRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return t.cancel
	}
	if n := len(t.updates); n > 0 {
		return t.updates[n-1]
	}
	return t.submitRequest
}

// AddOrderEvent appends the event and folds fills into the running aggregates.
// AverageFillPrice is the quantity-weighted mean over fill events only:
// sum(|q_i| * p_i) / sum(|q_i|). Terminal events release waiters.
func (t *OrderTicket) AddOrderEvent(event *OrderEvent) {
	t.mu.Lock()
	t.events = append(t.events, event)
	if event.FillQuantity != 0 {
		t.quantityFilled += event.FillQuantity
		absQty := decimal.NewFromInt(event.FillQuantity).Abs()
		t.sumAbsFillQty = t.sumAbsFillQty.Add(absQty)
		t.sumAbsFillAmount = t.sumAbsFillAmount.Add(absQty.Mul(event.FillPrice))
		if !t.sumAbsFillQty.IsZero() {
			t.avgFillPrice = t.sumAbsFillAmount.Div(t.sumAbsFillQty)
		}
	}
	terminal := event.Status.IsClosed() || event.Status == OrderStatusExpired
	t.mu.Unlock()

	if terminal {
		t.closeOnce.Do(func() { close(t.closed) })
	}
}

// Get resolves a kind-specific numeric field from the live order when
// attached, falling back to the submit request before attachment.
func (t *OrderTicket) Get(field Field) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kind := t.kindLocked()
	switch field {
	case FieldLimitPrice:
		if !kind.HasLimitPrice() {
			return decimal.Decimal{}, fmt.Errorf("%s order has no limit price", kind)
		}
		if t.order != nil {
			return t.order.LimitPrice, nil
		}
		return t.submitRequest.LimitPrice, nil
	case FieldStopPrice:
		if !kind.HasStopPrice() {
			return decimal.Decimal{}, fmt.Errorf("%s order has no stop price", kind)
		}
		if t.order != nil {
			return t.order.StopPrice, nil
		}
		return t.submitRequest.StopPrice, nil
	}
	return decimal.Decimal{}, fmt.Errorf("unknown order field: %d", field)
}

func (t *OrderTicket) kindLocked() OrderKind {
	if t.order != nil {
		return t.order.Kind
	}
	if t.submitRequest != nil {
		return t.submitRequest.Kind
	}
	return OrderKindMarket
}

// Update builds an update request from the given fields and routes it through
// the transaction handler, returning the handler's synchronous response.
func (t *OrderTicket) Update(fields UpdateFields) OrderResponse {
	t.mu.Lock()
	processor := t.processor
	now := t.now()
	t.mu.Unlock()

	request := NewUpdateOrderRequest(t.orderID, now)
	request.Quantity = fields.Quantity
	request.LimitPrice = fields.LimitPrice
	request.StopPrice = fields.StopPrice
	request.Tag = fields.Tag

	if processor == nil {
		resp := ErrorResponse(t.orderID, ErrorInvalidStatus, "ticket is not attached to a transaction handler")
		_ = request.SetResponse(resp, RequestProcessed)
		return resp
	}
	return processor.HandleUpdate(request)
}

// Cancel routes a cancel request through the transaction handler.
func (t *OrderTicket) Cancel(tag string) OrderResponse {
	t.mu.Lock()
	processor := t.processor
	now := t.now()
	t.mu.Unlock()

	request := NewCancelOrderRequest(t.orderID, tag, now)
	if processor == nil {
		resp := ErrorResponse(t.orderID, ErrorInvalidStatus, "ticket is not attached to a transaction handler")
		_ = request.SetResponse(resp, RequestProcessed)
		return resp
	}
	return processor.HandleCancel(request)
}

func (t *OrderTicket) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := OrderStatusNew
	if t.forcedInvalid {
		status = OrderStatusInvalid
	} else if t.order != nil {
		status = t.order.Status
	}
	return fmt.Sprintf("ticket %d: %s, filled %d @ %s", t.orderID, status, t.quantityFilled, t.avgFillPrice)
}
