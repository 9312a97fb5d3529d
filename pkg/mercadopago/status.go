package mercadopago

import (
	"strings"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
)

// OrderStatusFor maps a provider payment status onto the order lifecycle.
// Unknown and in-flight statuses keep the order pending.
func OrderStatusFor(providerStatus string) enums.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case StatusApproved:
		return enums.OrderStatusPaid
	case StatusRejected, StatusCancelled, StatusRefunded, StatusChargedBack, StatusDeclined:
		return enums.OrderStatusFailed
	default:
		return enums.OrderStatusPending
	}
}
