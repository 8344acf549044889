package orders

import (
	"bytes"
	"errors"
	"strconv"
)

type OrderKind uint8

const (
	OrderKindMarket OrderKind = iota
	OrderKindLimit
	OrderKindStopMarket
	OrderKindStopLimit
	OrderKindMarketOnOpen
	OrderKindMarketOnClose

	orderKindMarketStr        = "market"
	orderKindLimitStr         = "limit"
	orderKindStopMarketStr    = "stopMarket"
	orderKindStopLimitStr     = "stopLimit"
	orderKindMarketOnOpenStr  = "marketOnOpen"
	orderKindMarketOnCloseStr = "marketOnClose"
)

var (
	orderKindMarketBytes        = []byte(`"market"`)
	orderKindLimitBytes         = []byte(`"limit"`)
	orderKindStopMarketBytes    = []byte(`"stopMarket"`)
	orderKindStopLimitBytes     = []byte(`"stopLimit"`)
	orderKindMarketOnOpenBytes  = []byte(`"marketOnOpen"`)
	orderKindMarketOnCloseBytes = []byte(`"marketOnClose"`)
)

// HasLimitPrice reports whether the kind carries a limit price field.
func (k OrderKind) HasLimitPrice() bool {
	return k == OrderKindLimit || k == OrderKindStopLimit
}

// HasStopPrice reports whether the kind carries a stop trigger price field.
func (k OrderKind) HasStopPrice() bool {
	return k == OrderKindStopMarket || k == OrderKindStopLimit
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindMarket:
		return orderKindMarketStr
	case OrderKindLimit:
		return orderKindLimitStr
	case OrderKindStopMarket:
		return orderKindStopMarketStr
	case OrderKindStopLimit:
		return orderKindStopLimitStr
	case OrderKindMarketOnOpen:
		return orderKindMarketOnOpenStr
	case OrderKindMarketOnClose:
		return orderKindMarketOnCloseStr
	}
	panic("invalid order kind string conversion " + strconv.Itoa(int(k)))
}

func (k OrderKind) MarshalJSON() ([]byte, error) {
	switch k {
	case OrderKindMarket:
		return orderKindMarketBytes, nil
	case OrderKindLimit:
		return orderKindLimitBytes, nil
	case OrderKindStopMarket:
		return orderKindStopMarketBytes, nil
	case OrderKindStopLimit:
		return orderKindStopLimitBytes, nil
	case OrderKindMarketOnOpen:
		return orderKindMarketOnOpenBytes, nil
	case OrderKindMarketOnClose:
		return orderKindMarketOnCloseBytes, nil
	}
	return nil, errors.New("invalid order kind json conversion: " + strconv.Itoa(int(k)))
}

func (k *OrderKind) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderKindMarketBytes) {
		*k = OrderKindMarket
		return nil
	}
	if bytes.Equal(data, orderKindLimitBytes) {
		*k = OrderKindLimit
		return nil
	}
	if bytes.Equal(data, orderKindStopMarketBytes) {
		*k = OrderKindStopMarket
		return nil
	}
	if bytes.Equal(data, orderKindStopLimitBytes) {
		*k = OrderKindStopLimit
		return nil
	}
	if bytes.Equal(data, orderKindMarketOnOpenBytes) {
		*k = OrderKindMarketOnOpen
		return nil
	}
	if bytes.Equal(data, orderKindMarketOnCloseBytes) {
		*k = OrderKindMarketOnClose
		return nil
	}
	return errors.New("unsupported order kind: " + string(data))
}

func OrderKindFromString(value string) (OrderKind, error) {
	switch value {
	case orderKindMarketStr:
		return OrderKindMarket, nil
	case orderKindLimitStr:
		return OrderKindLimit, nil
	case orderKindStopMarketStr:
		return OrderKindStopMarket, nil
	case orderKindStopLimitStr:
		return OrderKindStopLimit, nil
	case orderKindMarketOnOpenStr:
		return OrderKindMarketOnOpen, nil
	case orderKindMarketOnCloseStr:
		return OrderKindMarketOnClose, nil
	}
	return 0, errors.New("unsupported order kind: " + value)
}
