package enums

import "strings"

// Local shipment statuses layered over the carrier's raw vocabulary.
const (
	ShipmentStatusBuyPending = "BUY_PENDING"
	ShipmentStatusShipped    = "SHIPPED"
)

// Carrier statuses the shipment lifecycle reacts to.
const (
	CarrierStatusConfirmed = "confirmed"
	CarrierStatusDelivered = "delivered"
)

var terminalCarrierStatuses = []string{
	"delivered",
	"returned_to_sender",
	"canceled",
	"cancelled",
	"expired",
}

// postConfirmationCarrierStatuses are the in-flight statuses a confirmed
// shipment can move through before reaching a terminal one.
var postConfirmationCarrierStatuses = []string{
	"adopted_at_sorting_center",
	"sent_from_sorting_center",
	"adopted_at_target_branch",
	"delivery_attempt",
	"avizo",
}

var dispatchedCarrierStatuses = []string{
	"dispatched_by_sender",
	"collected_from_sender",
	"taken_by_courier",
	"adopted_at_source_branch",
	"sent_from_source_branch",
	"out_for_delivery",
	"ready_to_pickup",
}

// TerminalCarrierStatuses lists statuses after which polling stops.
func TerminalCarrierStatuses() []string {
	out := make([]string, len(terminalCarrierStatuses))
	copy(out, terminalCarrierStatuses)
	return out
}

// IsTerminalCarrierStatus reports whether polling should stop for the status.
func IsTerminalCarrierStatus(status string) bool {
	return containsFold(terminalCarrierStatuses, status)
}

// IsDispatchedCarrierStatus reports whether the parcel has left the sender.
func IsDispatchedCarrierStatus(status string) bool {
	return containsFold(dispatchedCarrierStatuses, status)
}

// HasReachedConfirmed reports whether the carrier has confirmed the shipment,
// including every later non-terminal status. Polls may skip "confirmed" itself.
func HasReachedConfirmed(status string) bool {
	if strings.EqualFold(strings.TrimSpace(status), CarrierStatusConfirmed) {
		return true
	}
	return containsFold(dispatchedCarrierStatuses, status) || containsFold(postConfirmationCarrierStatuses, status)
}

func containsFold(values []string, status string) bool {
	status = strings.TrimSpace(status)
	for _, candidate := range values {
		if strings.EqualFold(candidate, status) {
			return true
		}
	}
	return false
}
