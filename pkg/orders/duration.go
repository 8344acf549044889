package orders

import (
	"bytes"
	"errors"
	"strconv"
)

// OrderDuration is the time-in-force of an order. The zero value is
// good-til-canceled, so submit requests that never set it keep the venue
// default.
type OrderDuration uint8

const (
	OrderDurationGoodTilCanceled OrderDuration = iota
	OrderDurationDay
	OrderDurationGoodTilDate

	orderDurationGoodTilCanceledStr = "goodTilCanceled"
	orderDurationDayStr             = "day"
	orderDurationGoodTilDateStr     = "goodTilDate"
)

var (
	orderDurationGoodTilCanceledBytes = []byte(`"goodTilCanceled"`)
	orderDurationDayBytes             = []byte(`"day"`)
	orderDurationGoodTilDateBytes     = []byte(`"goodTilDate"`)
)

func (od OrderDuration) String() string {
	switch od {
	case OrderDurationGoodTilCanceled:
		return orderDurationGoodTilCanceledStr
	case OrderDurationDay:
		return orderDurationDayStr
	case OrderDurationGoodTilDate:
		return orderDurationGoodTilDateStr
	}
	panic("invalid order duration string conversion " + strconv.Itoa(int(od)))
}

func (od OrderDuration) MarshalJSON() ([]byte, error) {
	switch od {
	case OrderDurationGoodTilCanceled:
		return orderDurationGoodTilCanceledBytes, nil
	case OrderDurationDay:
		return orderDurationDayBytes, nil
	case OrderDurationGoodTilDate:
		return orderDurationGoodTilDateBytes, nil
	}
	return nil, errors.New("invalid order duration json conversion: " + strconv.Itoa(int(od)))
}

func (od *OrderDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderDurationGoodTilCanceledBytes) {
		*od = OrderDurationGoodTilCanceled
		return nil
	}
	if bytes.Equal(data, orderDurationDayBytes) {
		*od = OrderDurationDay
		return nil
	}
	if bytes.Equal(data, orderDurationGoodTilDateBytes) {
		*od = OrderDurationGoodTilDate
		return nil
	}
	return errors.New("unsupported order duration: " + string(data))
}

func OrderDurationFromString(value string) (OrderDuration, error) {
	switch value {
	case orderDurationGoodTilCanceledStr:
		return OrderDurationGoodTilCanceled, nil
	case orderDurationDayStr:
		return OrderDurationDay, nil
	case orderDurationGoodTilDateStr:
		return OrderDurationGoodTilDate, nil
	}
	return 0, errors.New("unsupported order duration: " + value)
}
