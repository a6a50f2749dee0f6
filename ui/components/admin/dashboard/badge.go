// Package dashboard holds the small presentational helpers shared by the
// admin pages.
package dashboard

import (
	twmerge "github.com/Oudwins/tailwind-merge-go"

	"github.com/kumamontessori/kuma/internal/models"
)

const badgeBase = "inline-flex items-center rounded-full px-2.5 py-0.5 text-xs font-semibold bg-gray-100 text-gray-800"

type Badge struct {
	Label string
	Class string
}

var orderStatusClasses = map[models.OrderStatus]string{
	models.StatusPaid:       "bg-green-100 text-green-800",
	models.StatusPending:    "bg-yellow-100 text-yellow-800",
	models.StatusProcessing: "bg-blue-100 text-blue-800",
	models.StatusShipped:    "bg-indigo-100 text-indigo-800",
	models.StatusDelivered:  "bg-green-100 text-green-800",
	models.StatusCancelled:  "bg-gray-100 text-gray-800",
	models.StatusRefunded:   "bg-purple-100 text-purple-800",
	models.StatusFailed:     "bg-red-100 text-red-800",
}

var shippingStatusClasses = map[models.ShippingStatus]string{
	models.ShippingPending:   "bg-yellow-100 text-yellow-800",
	models.ShippingInTransit: "bg-blue-100 text-blue-800",
	models.ShippingDelivered: "bg-green-100 text-green-800",
	models.ShippingReturned:  "bg-orange-100 text-orange-800",
	models.ShippingCancelled: "bg-gray-100 text-gray-800",
}

// OrderStatusBadge returns the label and merged classes for an order status.
// extra classes win over the defaults.
func OrderStatusBadge(status models.OrderStatus, extra ...string) Badge {
	return Badge{
		Label: status.Label(),
		Class: mergeClasses(orderStatusClasses[status], extra),
	}
}

func ShippingStatusBadge(status models.ShippingStatus, extra ...string) Badge {
	return Badge{
		Label: status.Label(),
		Class: mergeClasses(shippingStatusClasses[status], extra),
	}
}

func mergeClasses(statusClass string, extra []string) string {
	classes := make([]string, 0, len(extra)+2)
	classes = append(classes, badgeBase, statusClass)
	classes = append(classes, extra...)
	return twmerge.Merge(classes...)
}
