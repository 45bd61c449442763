// Package units holds the physical units that appear in project records and the
// few equivalences the engine is allowed to apply between them.
//
// All conversions go through this package so that every check rounds the same way.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a unit of measure as it appears in canonical records.
type Unit string

const (
	CubicMetre   Unit = "m3"
	SquareMetre  Unit = "m2"
	Metre        Unit = "m"
	Kilogram     Unit = "kg"
	Tonne        Unit = "tonne"
	Each         Unit = "each"
	Litre        Unit = "l"
	KilowattHour Unit = "kwh"
	Megajoule    Unit = "mj"
)

// Dimension groups units that can be converted into one another.
type Dimension int

const (
	DimensionUnknown Dimension = iota
	DimensionMass
	DimensionVolume
	DimensionArea
	DimensionLength
	DimensionEnergy
	DimensionCount
)

func (d Dimension) String() string {
	switch d {
	case DimensionMass:
		return "mass"
	case DimensionVolume:
		return "volume"
	case DimensionArea:
		return "area"
	case DimensionLength:
		return "length"
	case DimensionEnergy:
		return "energy"
	case DimensionCount:
		return "count"
	default:
		return "unknown"
	}
}

// ErrIncompatible is returned when two units do not share a dimension.
var ErrIncompatible = errors.New("units: incompatible units")

type factor struct {
	dim Dimension
	// toBase multiplies a quantity into the dimension's base unit
	// (kg, m3, m2, m, MJ, each).
	toBase decimal.Decimal
}

var factors = map[Unit]factor{
	Kilogram:     {DimensionMass, decimal.NewFromInt(1)},
	Tonne:        {DimensionMass, decimal.NewFromInt(1000)},
	CubicMetre:   {DimensionVolume, decimal.NewFromInt(1)},
	Litre:        {DimensionVolume, decimal.New(1, -3)},
	SquareMetre:  {DimensionArea, decimal.NewFromInt(1)},
	Metre:        {DimensionLength, decimal.NewFromInt(1)},
	Megajoule:    {DimensionEnergy, decimal.NewFromInt(1)},
	KilowattHour: {DimensionEnergy, decimal.New(36, -1)},
	Each:         {DimensionCount, decimal.NewFromInt(1)},
}

var aliases = map[string]Unit{
	"m³":     CubicMetre,
	"cubic":  CubicMetre,
	"m²":     SquareMetre,
	"sqm":    SquareMetre,
	"t":      Tonne,
	"tonnes": Tonne,
	"ton":    Tonne,
	"kgs":    Kilogram,
	"litre":  Litre,
	"liter":  Litre,
	"ea":     Each,
	"no":     Each,
	"pcs":    Each,
}

// Parse maps a raw unit label onto a known Unit. Labels are matched
// case-insensitively; a small alias table covers common spellings.
func Parse(s string) (Unit, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if _, ok := factors[Unit(key)]; ok {
		return Unit(key), true
	}
	if u, ok := aliases[key]; ok {
		return u, true
	}
	return Unit(key), false
}

// Canonical returns the known spelling of u, or u lower-cased if unknown.
func (u Unit) Canonical() Unit {
	c, _ := Parse(string(u))
	return c
}

// Dimension reports which family u belongs to.
func (u Unit) Dimension() Dimension {
	if f, ok := factors[u.Canonical()]; ok {
		return f.dim
	}
	return DimensionUnknown
}

// Known reports whether u is a recognised unit.
func (u Unit) Known() bool {
	_, ok := factors[u.Canonical()]
	return ok
}

// IsMass reports whether u measures mass.
func (u Unit) IsMass() bool { return u.Dimension() == DimensionMass }

// Comparable reports whether quantities in a and b can be converted into each other.
func Comparable(a, b Unit) bool {
	da := a.Dimension()
	return da != DimensionUnknown && da == b.Dimension()
}

// Convert expresses q (in from) in the unit to.
func Convert(q decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	from, to = from.Canonical(), to.Canonical()
	if from == to {
		return q, nil
	}
	ff, okf := factors[from]
	ft, okt := factors[to]
	if !okf || !okt || ff.dim != ft.dim {
		return decimal.Zero, fmt.Errorf("%w: %s -> %s", ErrIncompatible, from, to)
	}
	return q.Mul(ff.toBase).Div(ft.toBase), nil
}

// ToKilograms converts a mass quantity into kilograms. ok is false when u is not a mass unit.
func ToKilograms(q decimal.Decimal, u Unit) (kg decimal.Decimal, ok bool) {
	v, err := Convert(q, u, Kilogram)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// KilogramsToTonnes converts kilograms to tonnes.
func KilogramsToTonnes(kg decimal.Decimal) decimal.Decimal {
	return kg.Div(factors[Tonne].toBase)
}
