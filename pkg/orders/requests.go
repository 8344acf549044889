package orders

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequestStatus tracks a request through the orchestrator's queue.
type OrderRequestStatus uint8

const (
	RequestUnprocessed OrderRequestStatus = iota
	RequestProcessing
	RequestProcessed
)

func (s OrderRequestStatus) String() string {
	switch s {
	case RequestUnprocessed:
		return "unprocessed"
	case RequestProcessing:
		return "processing"
	case RequestProcessed:
		return "processed"
	}
	return "unknown"
}

var ErrResponseAlreadySet = errors.New("order request already carries a processed response")

// OrderRequest is the common surface of submit, update and cancel requests.
type OrderRequest interface {
	OrderID() int64
	Time() time.Time
	Status() OrderRequestStatus
	Response() (OrderResponse, bool)
	SetResponse(resp OrderResponse, status OrderRequestStatus) error
	MarkProcessing()
}

// baseRequest carries the set-once response machinery shared by all request
// kinds. The status only moves forward; writing a response after the request
// reached Processed is a programming error surfaced as ErrResponseAlreadySet.
type baseRequest struct {
	mu          sync.Mutex
	orderID     int64
	time        time.Time
	status      OrderRequestStatus
	response    OrderResponse
	hasResponse bool
}

func (r *baseRequest) OrderID() int64  { return r.orderID }
func (r *baseRequest) Time() time.Time { return r.time }

// SetOrderID assigns the order id exactly once. Submit requests are built
// before the orchestrator mints their id; all other callers must construct
// requests with the id in place.
func (r *baseRequest) SetOrderID(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orderID != 0 {
		return fmt.Errorf("order id already assigned: %d", r.orderID)
	}
	r.orderID = id
	return nil
}

func (r *baseRequest) Status() OrderRequestStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *baseRequest) Response() (OrderResponse, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response, r.hasResponse
}

func (r *baseRequest) SetResponse(resp OrderResponse, status OrderRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RequestProcessed {
		return ErrResponseAlreadySet
	}
	r.response = resp
	r.hasResponse = true
	if status > r.status {
		r.status = status
	}
	return nil
}

func (r *baseRequest) MarkProcessing() {
	r.mu.Lock()
	if r.status < RequestProcessing {
		r.status = RequestProcessing
	}
	r.mu.Unlock()
}

// SubmitOrderRequest asks the orchestrator to create and place a new order.
// OrderID is minted by the orchestrator before the request enters the queue.
type SubmitOrderRequest struct {
	baseRequest

	Symbol       string
	Quantity     int64
	Kind         OrderKind
	LimitPrice   decimal.Decimal
	StopPrice    decimal.Decimal
	Tag          string
	ContingentID int64

	// time in force; DurationValue is required for good-til-date
	Duration      OrderDuration
	DurationValue time.Time
}

func NewSubmitOrderRequest(orderID int64, symbol string, quantity int64, kind OrderKind, t time.Time) *SubmitOrderRequest {
	return &SubmitOrderRequest{
		baseRequest: baseRequest{orderID: orderID, time: t},
		Symbol:      symbol,
		Quantity:    quantity,
		Kind:        kind,
	}
}

// UpdateOrderRequest mutates an existing order. Nil fields are left untouched.
type UpdateOrderRequest struct {
	baseRequest

	Quantity   *int64
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
	Tag        *string
}

func NewUpdateOrderRequest(orderID int64, t time.Time) *UpdateOrderRequest {
	return &UpdateOrderRequest{baseRequest: baseRequest{orderID: orderID, time: t}}
}

// CancelOrderRequest asks the brokerage to cancel an open order. Tag is an
// optional human-readable reason.
type CancelOrderRequest struct {
	baseRequest

	Tag string
}

func NewCancelOrderRequest(orderID int64, tag string, t time.Time) *CancelOrderRequest {
	return &CancelOrderRequest{baseRequest: baseRequest{orderID: orderID, time: t}, Tag: tag}
}
