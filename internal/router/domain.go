// ABOUTME: Domain tags selected by the router and their display labels
// ABOUTME: The tag set is closed; handlers are registered per tag

package router

// Domain is a business area with its own handler.
type Domain string

const (
	Bookings   Domain = "bookings"
	Purchases  Domain = "purchases"
	Claims     Domain = "claims"
	Autonomous Domain = "autonomous"
	Unknown    Domain = "unknown"
)

// Domains lists every tag in a stable order.
var Domains = []Domain{Bookings, Purchases, Claims, Autonomous, Unknown}

// DefaultMenu is the menu shown for MENU_INIT, in display order.
var DefaultMenu = []Domain{Bookings, Purchases, Claims}

// Valid reports whether d is a known tag.
func (d Domain) Valid() bool {
	switch d {
	case Bookings, Purchases, Claims, Autonomous, Unknown:
		return true
	}
	return false
}

// Label is the customer-facing menu label.
func (d Domain) Label() string {
	switch d {
	case Bookings:
		return "Reservas"
	case Purchases:
		return "Compras"
	case Claims:
		return "Reclamos"
	case Autonomous:
		return "Asistente"
	default:
		return "Otro"
	}
}

// Parse returns the tag for s, or Unknown when s is not a known tag.
func Parse(s string) Domain {
	d := Domain(s)
	if d.Valid() {
		return d
	}
	return Unknown
}
