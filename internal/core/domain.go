package core

import (
	"math"
	"strconv"
	"strings"
)

// DefaultCategory is the category a fresh draft starts with.
const DefaultCategory = "light"

// Draft field names as posted by the entry form.
const (
	FieldCategory     = "category"
	FieldPower        = "power"
	FieldHours        = "hours"
	FieldPricePerUnit = "pricePerUnit"
)

type (
	// Entry is one submitted appliance record.
	Entry struct {
		Category     string  `json:"category" yaml:"category"`
		PowerWatts   float64 `json:"power" yaml:"power"`
		HoursPerDay  float64 `json:"hours" yaml:"hours"`
		PricePerUnit float64 `json:"pricePerUnit" yaml:"pricePerUnit"`
	}

	// Draft holds the in-progress form values of a session.
	Draft struct {
		Category     string  `json:"category"`
		PowerWatts   float64 `json:"power"`
		HoursPerDay  float64 `json:"hours"`
		PricePerUnit float64 `json:"pricePerUnit"`
	}
)

// EnergyKWh returns the daily energy of the entry in kWh.
func (e Entry) EnergyKWh() float64 {
	return e.PowerWatts * e.HoursPerDay / 1000
}

// Cost returns the daily cost of the entry.
func (e Entry) Cost() float64 {
	return e.EnergyKWh() * e.PricePerUnit
}

// DefaultDraft returns the draft a form is reset to.
func DefaultDraft() Draft {
	return Draft{Category: DefaultCategory}
}

// Set applies a raw form value to the named field. Numeric fields are
// coerced with ParseNumber; unknown fields are ignored.
func (d *Draft) Set(field, raw string) {
	switch field {
	case FieldCategory:
		d.Category = strings.TrimSpace(raw)
	case FieldPower:
		d.PowerWatts = ParseNumber(raw)
	case FieldHours:
		d.HoursPerDay = ParseNumber(raw)
	case FieldPricePerUnit:
		d.PricePerUnit = ParseNumber(raw)
	}
}

// Entry returns the draft as an entry.
func (d Draft) Entry() Entry {
	return Entry{
		Category:     d.Category,
		PowerWatts:   d.PowerWatts,
		HoursPerDay:  d.HoursPerDay,
		PricePerUnit: d.PricePerUnit,
	}
}

// IsDefault reports whether the draft equals DefaultDraft.
func (d Draft) IsDefault() bool {
	return d == DefaultDraft()
}

// ParseNumber coerces numeric form text to a float64.
//
// Both dot (12.5) and comma (12,5) decimal separators are accepted. Empty,
// malformed, NaN and infinite input all coerce to zero. The sign is kept:
// negative values are not rejected.
//
// Examples:
//
//	ParseNumber("100")   -> 100
//	ParseNumber(" 0,1 ") -> 0.1
//	ParseNumber("-5")    -> -5
//	ParseNumber("abc")   -> 0
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
