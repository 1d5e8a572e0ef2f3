package oms

import "main/internal/schema"

// canTransition reports whether a status delta is a legal transition from the
// given order status. Terminal statuses never transition further.
func canTransition(from schema.OrderStatus, delta schema.StatusDelta) bool {
	switch delta {
	case schema.DeltaAck, schema.DeltaReject:
		return from == schema.OrderStatusNew
	case schema.DeltaFill:
		return from == schema.OrderStatusAccepted || from == schema.OrderStatusPartiallyFilled
	case schema.DeltaCancel:
		return from == schema.OrderStatusAccepted || from == schema.OrderStatusPartiallyFilled
	case schema.DeltaExpire:
		return from == schema.OrderStatusAccepted
	default:
		return false
	}
}

// nextStatus returns the status an order moves to when the delta applies.
// Fill transitions depend on remaining quantity and are handled by the table.
func nextStatus(delta schema.StatusDelta) schema.OrderStatus {
	switch delta {
	case schema.DeltaAck:
		return schema.OrderStatusAccepted
	case schema.DeltaReject:
		return schema.OrderStatusRejected
	case schema.DeltaCancel:
		return schema.OrderStatusCancelled
	case schema.DeltaExpire:
		return schema.OrderStatusExpired
	default:
		return schema.OrderStatusUnknown
	}
}
