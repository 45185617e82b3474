package orders

import "github.com/soamart/storefront/internal/models"

// validNext is the full transition table. A status missing a target cannot
// reach it, including same-to-same. Empty sets are terminal.
var validNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusPending: {
		models.OrderStatusProcessing: true,
		models.OrderStatusShipped:    true,
		models.OrderStatusDelivered:  true,
		models.OrderStatusCancelled:  true,
	},
	models.OrderStatusProcessing: {
		models.OrderStatusShipped:   true,
		models.OrderStatusDelivered: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusShipped: {
		models.OrderStatusDelivered: true,
	},
	models.OrderStatusDelivered: {},
	models.OrderStatusCancelled: {},
}

var AllStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusProcessing,
	models.OrderStatusShipped,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

func CanTransition(from, to models.OrderStatus) bool {
	return validNext[from][to]
}

func IsTerminal(s models.OrderStatus) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

func ParseStatus(s string) (models.OrderStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
