package transit

import (
	"github.com/shopspring/decimal"
)

// CoordinatePlaces is the stored precision of latitude and longitude columns,
// DECIMAL(9,6). Six fractional digits is roughly 0.11m at the equator.
const CoordinatePlaces = 6

// Coord converts a floating point degree value to the fixed-point form the
// schema stores, so repeated write/read cycles cannot drift the value.
func Coord(degrees float64) decimal.Decimal {
	return decimal.NewFromFloat(degrees).Round(CoordinatePlaces)
}

// NullCoord wraps Coord for columns where a position fix may be absent.
func NullCoord(degrees float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: Coord(degrees), Valid: true}
}

// NoCoord is the explicit "no fix yet" coordinate value.
func NoCoord() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
