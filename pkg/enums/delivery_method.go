package enums

import (
	"fmt"
	"strings"
)

// DeliveryMethod selects the carrier service for an order.
type DeliveryMethod string

const (
	DeliveryMethodParcelLocker DeliveryMethod = "PARCEL_LOCKER"
	DeliveryMethodCourier      DeliveryMethod = "COURIER"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodParcelLocker,
	DeliveryMethodCourier,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod. Empty input yields the courier default.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return DeliveryMethodCourier, nil
	}
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
