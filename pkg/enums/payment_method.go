package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod maps to the orders.payment_method column.
type PaymentMethod string

const (
	PaymentMethodPix         PaymentMethod = "pix"
	PaymentMethodCredit      PaymentMethod = "credit"
	PaymentMethodDebit       PaymentMethod = "debit"
	PaymentMethodCheckoutPro PaymentMethod = "checkout_pro"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPix,
	PaymentMethodCredit,
	PaymentMethodDebit,
	PaymentMethodCheckoutPro,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// Label returns the Portuguese label used in exports.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodPix:
		return "PIX"
	case PaymentMethodCredit:
		return "Crédito"
	case PaymentMethodDebit:
		return "Débito"
	case PaymentMethodCheckoutPro:
		return "Mercado Pago"
	default:
		return string(m)
	}
}

// ParsePaymentMethod converts raw input into PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
