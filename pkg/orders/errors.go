package orders

// ErrorCode is the closed taxonomy of order request rejections. Every failed
// OrderResponse carries exactly one of these.
type ErrorCode uint8

const (
	ErrorNone ErrorCode = iota
	ErrorUnableToFindOrder
	ErrorInvalidStatus
	ErrorZeroQuantity
	ErrorWarmingUp
	ErrorOrderAlreadyExists
	ErrorInsufficientBuyingPower
	ErrorBrokerageModelRefusedToSubmitOrder
	ErrorBrokerageModelRefusedToUpdateOrder
	ErrorBrokerageFailedToSubmitOrder
	ErrorBrokerageFailedToUpdateOrder
	ErrorBrokerageFailedToCancelOrder
	ErrorProcessing
)

var errorCodeNames = map[ErrorCode]string{
	ErrorNone:                               "success",
	ErrorUnableToFindOrder:                  "unableToFindOrder",
	ErrorInvalidStatus:                      "invalidStatus",
	ErrorZeroQuantity:                       "zeroQuantity",
	ErrorWarmingUp:                          "warmingUp",
	ErrorOrderAlreadyExists:                 "orderAlreadyExists",
	ErrorInsufficientBuyingPower:            "insufficientBuyingPower",
	ErrorBrokerageModelRefusedToSubmitOrder: "brokerageModelRefusedToSubmitOrder",
	ErrorBrokerageModelRefusedToUpdateOrder: "brokerageModelRefusedToUpdateOrder",
	ErrorBrokerageFailedToSubmitOrder:       "brokerageFailedToSubmitOrder",
	ErrorBrokerageFailedToUpdateOrder:       "brokerageFailedToUpdateOrder",
	ErrorBrokerageFailedToCancelOrder:       "brokerageFailedToCancelOrder",
	ErrorProcessing:                         "processingError",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeNames[e]; ok {
		return s
	}
	return "unknown"
}
