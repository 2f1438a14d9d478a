package model

import "fmt"

// Layout defines the market topology used to build and solve a network.
type Layout int

const (
	LayoutNational Layout = iota
	LayoutZonal
	LayoutNodal
)

// Layouts lists every topology of the study in canonical order.
func Layouts() []Layout { return []Layout{LayoutNational, LayoutZonal, LayoutNodal} }

// String returns the wildcard value for the layout.
func (l Layout) String() string {
	switch l {
	case LayoutNational:
		return "national"
	case LayoutZonal:
		return "zonal"
	case LayoutNodal:
		return "nodal"
	default:
		return "unknown"
	}
}

// ParseLayout converts a {layout} wildcard value into a Layout.
func ParseLayout(s string) (Layout, error) {
	for _, l := range Layouts() {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

// InterconnectorMode defines how interconnector flows enter the optimisation:
// flex lets flows respond to prices, static pins them to published schedules.
type InterconnectorMode int

const (
	ICFlex InterconnectorMode = iota
	ICStatic
)

// InterconnectorModes lists both settlement rounds in canonical order.
func InterconnectorModes() []InterconnectorMode { return []InterconnectorMode{ICFlex, ICStatic} }

// String returns the wildcard value for the mode.
func (m InterconnectorMode) String() string {
	switch m {
	case ICFlex:
		return "flex"
	case ICStatic:
		return "static"
	default:
		return "unknown"
	}
}

// ParseInterconnectorMode converts an {ic} wildcard value into a mode.
func ParseInterconnectorMode(s string) (InterconnectorMode, error) {
	for _, m := range InterconnectorModes() {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown interconnector mode %q", s)
}
