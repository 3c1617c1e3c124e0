// Package service defines the protocol front-ends a tilecached instance can
// expose and the enabled-set semantics of the <services> configuration block.
package service

// Type identifies one supported protocol front-end.
type Type int

const (
	// WMS is the OGC Web Map Service front-end.
	WMS Type = iota

	// TMS is the Tile Map Service front-end.
	TMS

	typeCount
)

// Count is the number of supported protocol front-ends.
const Count = int(typeCount)

// String returns the configuration tag name for the service type.
func (t Type) String() string {
	switch t {
	case WMS:
		return "wms"
	case TMS:
		return "tms"
	default:
		return "unknown"
	}
}

// Set is a fixed-size set of enabled protocol front-ends. The zero value has
// every service disabled.
type Set [typeCount]bool

// Enable marks the given service as enabled.
func (s *Set) Enable(t Type) {
	s[t] = true
}

// Enabled reports whether the given service is enabled.
func (s *Set) Enabled(t Type) bool {
	return s[t]
}

// Any reports whether at least one service is enabled.
func (s *Set) Any() bool {
	for _, enabled := range s {
		if enabled {
			return true
		}
	}
	return false
}
