package api

import (
	"time"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

func nowUTC() time.Time { return time.Now().UTC() }

type orderInfo struct {
	ID         int64              `json:"id"`
	Symbol     string             `json:"symbol"`
	Quantity   int64              `json:"quantity"`
	Direction  string             `json:"direction"`
	Kind       orders.OrderKind   `json:"kind"`
	Status     orders.OrderStatus `json:"status"`
	Price      string             `json:"price"`
	LimitPrice string             `json:"limitPrice,omitempty"`
	StopPrice  string             `json:"stopPrice,omitempty"`
	Duration   string             `json:"duration"`
	Expiry     *time.Time         `json:"expiry,omitempty"`
	Tag        string             `json:"tag,omitempty"`
	Time       time.Time          `json:"time"`
}

func toOrderInfo(o *orders.Order) orderInfo {
	info := orderInfo{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Quantity:  o.Quantity,
		Direction: o.Direction().String(),
		Kind:      o.Kind,
		Status:    o.Status,
		Price:     o.Price.String(),
		Duration:  o.Duration.String(),
		Tag:       o.Tag,
		Time:      o.Time,
	}
	if o.Duration == orders.OrderDurationGoodTilDate {
		expiry := o.DurationValue
		info.Expiry = &expiry
	}
	if o.Kind.HasLimitPrice() {
		info.LimitPrice = o.LimitPrice.String()
	}
	if o.Kind.HasStopPrice() {
		info.StopPrice = o.StopPrice.String()
	}
	return info
}

type cashInfo struct {
	Symbol         string `json:"symbol"`
	Amount         string `json:"amount"`
	ConversionRate string `json:"conversionRate"`
}

type submitOrderBody struct {
	Symbol     string     `json:"symbol"`
	Quantity   int64      `json:"quantity"`
	Kind       string     `json:"kind"`
	LimitPrice string     `json:"limitPrice"`
	StopPrice  string     `json:"stopPrice"`
	Duration   string     `json:"duration"`
	Expiry     *time.Time `json:"expiry"`
	Tag        string     `json:"tag"`
}

type cancelOrderBody struct {
	Tag string `json:"tag"`
}

type responseInfo struct {
	OrderID   int64  `json:"orderId"`
	IsSuccess bool   `json:"isSuccess"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

func toResponseInfo(r orders.OrderResponse) responseInfo {
	info := responseInfo{OrderID: r.OrderID, IsSuccess: r.IsSuccess}
	if r.IsError() {
		info.ErrorCode = r.ErrorCode.String()
		info.Message = r.ErrorMessage
	}
	return info
}
