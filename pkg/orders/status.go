package orders

import (
	"bytes"
	"errors"
	"strconv"
)

type OrderStatus uint8

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusInvalid
	OrderStatusExpired

	orderStatusNewStr             = "new"
	orderStatusSubmittedStr       = "submitted"
	orderStatusPartiallyFilledStr = "partiallyFilled"
	orderStatusFilledStr          = "filled"
	orderStatusCanceledStr        = "canceled"
	orderStatusInvalidStr         = "invalid"
	orderStatusExpiredStr         = "expired"
)

var (
	orderStatusNewBytes             = []byte(`"new"`)
	orderStatusSubmittedBytes       = []byte(`"submitted"`)
	orderStatusPartiallyFilledBytes = []byte(`"partiallyFilled"`)
	orderStatusFilledBytes          = []byte(`"filled"`)
	orderStatusCanceledBytes        = []byte(`"canceled"`)
	orderStatusInvalidBytes         = []byte(`"invalid"`)
	orderStatusExpiredBytes         = []byte(`"expired"`)
)

// IsClosed reports whether the status is terminal. Closed orders accept no
// further update or cancel requests.
func (os OrderStatus) IsClosed() bool {
	return os == OrderStatusFilled || os == OrderStatusCanceled || os == OrderStatusInvalid
}

// IsFill reports whether the status carries executed quantity.
func (os OrderStatus) IsFill() bool {
	return os == OrderStatusFilled || os == OrderStatusPartiallyFilled
}

func (os OrderStatus) String() string {
	switch os {
	case OrderStatusNew:
		return orderStatusNewStr
	case OrderStatusSubmitted:
		return orderStatusSubmittedStr
	case OrderStatusPartiallyFilled:
		return orderStatusPartiallyFilledStr
	case OrderStatusFilled:
		return orderStatusFilledStr
	case OrderStatusCanceled:
		return orderStatusCanceledStr
	case OrderStatusInvalid:
		return orderStatusInvalidStr
	case OrderStatusExpired:
		return orderStatusExpiredStr
	}
	panic("invalid order status string conversion " + strconv.Itoa(int(os)))
}

func (os OrderStatus) MarshalJSON() ([]byte, error) {
	switch os {
	case OrderStatusNew:
		return orderStatusNewBytes, nil
	case OrderStatusSubmitted:
		return orderStatusSubmittedBytes, nil
	case OrderStatusPartiallyFilled:
		return orderStatusPartiallyFilledBytes, nil
	case OrderStatusFilled:
		return orderStatusFilledBytes, nil
	case OrderStatusCanceled:
		return orderStatusCanceledBytes, nil
	case OrderStatusInvalid:
		return orderStatusInvalidBytes, nil
	case OrderStatusExpired:
		return orderStatusExpiredBytes, nil
	}
	return nil, errors.New("invalid order status json conversion: " + strconv.Itoa(int(os)))
}

func (os *OrderStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderStatusNewBytes) {
		*os = OrderStatusNew
		return nil
	}
	if bytes.Equal(data, orderStatusSubmittedBytes) {
		*os = OrderStatusSubmitted
		return nil
	}
	if bytes.Equal(data, orderStatusPartiallyFilledBytes) {
		*os = OrderStatusPartiallyFilled
		return nil
	}
	if bytes.Equal(data, orderStatusFilledBytes) {
		*os = OrderStatusFilled
		return nil
	}
	if bytes.Equal(data, orderStatusCanceledBytes) {
		*os = OrderStatusCanceled
		return nil
	}
	if bytes.Equal(data, orderStatusInvalidBytes) {
		*os = OrderStatusInvalid
		return nil
	}
	if bytes.Equal(data, orderStatusExpiredBytes) {
		*os = OrderStatusExpired
		return nil
	}
	return errors.New("unsupported order status: " + string(data))
}

func OrderStatusFromString(value string) (OrderStatus, error) {
	switch value {
	case orderStatusNewStr:
		return OrderStatusNew, nil
	case orderStatusSubmittedStr:
		return OrderStatusSubmitted, nil
	case orderStatusPartiallyFilledStr:
		return OrderStatusPartiallyFilled, nil
	case orderStatusFilledStr:
		return OrderStatusFilled, nil
	case orderStatusCanceledStr:
		return OrderStatusCanceled, nil
	case orderStatusInvalidStr:
		return OrderStatusInvalid, nil
	case orderStatusExpiredStr:
		return OrderStatusExpired, nil
	}
	return 0, errors.New("unsupported order status: " + value)
}
