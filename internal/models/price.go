package models

import "fmt"

// Route selects which upstream prices a ticker.
type Route int

const (
	RouteEquity Route = iota
	RouteCrypto
	RouteCommodity
)

func (r Route) String() string {
	switch r {
	case RouteEquity:
		return "equity"
	case RouteCrypto:
		return "crypto"
	case RouteCommodity:
		return "commodity"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Route) UnmarshalText(b []byte) error {
	switch string(b) {
	case "equity":
		*r = RouteEquity
	case "crypto":
		*r = RouteCrypto
	case "commodity":
		*r = RouteCommodity
	default:
		return fmt.Errorf("unknown route %q", string(b))
	}
	return nil
}
