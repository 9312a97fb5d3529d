package enums

import (
	"fmt"
	"strings"
)

// OrderStatus maps to the orders.status column.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusFailed,
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known order status.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order has left the pending state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// Label returns the Portuguese label used in exports.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPaid:
		return "Pago"
	case OrderStatusFailed:
		return "Falhou"
	case OrderStatusPending:
		return "Pendente"
	default:
		return string(s)
	}
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
