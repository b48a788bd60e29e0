package codecprofile

import (
	"fmt"
	"math"
)

type PropertyType int

const (
	PropertyTypeUndefined = PropertyType(iota)
	PropertyTypeInt
	PropertyTypeFloat
)

func (t PropertyType) String() string {
	switch t {
	case PropertyTypeUndefined:
		return "<undefined>"
	case PropertyTypeInt:
		return "int"
	case PropertyTypeFloat:
		return "float"
	}
	return fmt.Sprintf("unexpected_property_type_%d", int(t))
}

const (
	PropertyIDBitRate = "bit_rate"
	PropertyIDQP      = "qp"
	PropertyIDQuality = "quality"
)

// Property describes a user-facing setting of a codec profile.
type Property struct {
	ID          string
	Type        PropertyType
	Caption     string
	Description string
	Group       int
	Min         float64
	Max         float64
	Default     float64
	Expert      bool
}

// Clamp brings the value into [Min, Max].
func (p Property) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.Default
	}
	return math.Min(math.Max(v, p.Min), p.Max)
}

func findProperty(props []Property, id string) (Property, bool) {
	for _, p := range props {
		if p.ID == id {
			return p, true
		}
	}
	return Property{}, false
}
