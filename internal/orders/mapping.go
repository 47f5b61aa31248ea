package orders

import "strings"

// MapProduct maps a caller-facing product type to the broker's product
// codes. The mapping is total: unrecognized values collapse to NORMAL as an
// intentional fallback, not an error.
func MapProduct(product string) string {
	switch strings.ToUpper(strings.TrimSpace(product)) {
	case "MIS", "INTRADAY":
		return "NORMAL"
	case "CNC", "DELIVERY":
		return "DELIVERY"
	case "NRML", "NORMAL", "CARRYFORWARD":
		return "NORMAL"
	case "VALUEPLUS":
		return "VALUEPLUS"
	}
	return "NORMAL"
}
