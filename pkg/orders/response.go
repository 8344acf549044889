package orders

import "fmt"

// OrderResponse is the resolved outcome of one order request. Responses are
// values: once attached to a request they are never mutated.
type OrderResponse struct {
	OrderID      int64
	IsSuccess    bool
	ErrorCode    ErrorCode
	ErrorMessage string
}

func SuccessResponse(orderID int64) OrderResponse {
	return OrderResponse{OrderID: orderID, IsSuccess: true}
}

func ErrorResponse(orderID int64, code ErrorCode, message string) OrderResponse {
	return OrderResponse{OrderID: orderID, ErrorCode: code, ErrorMessage: message}
}

func (r OrderResponse) IsError() bool { return !r.IsSuccess }

func (r OrderResponse) String() string {
	if r.IsSuccess {
		return fmt.Sprintf("order %d: success", r.OrderID)
	}
	return fmt.Sprintf("order %d: %s - %s", r.OrderID, r.ErrorCode, r.ErrorMessage)
}
