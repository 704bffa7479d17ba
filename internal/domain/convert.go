package domain

// Weight units accepted by chart and display endpoints. Entries are always
// stored in kilograms.
const (
	UnitKg = "kg"
	UnitLb = "lb"
)

const lbPerKg = 2.2046226218

// ValidUnit reports whether u is a supported display unit.
func ValidUnit(u string) bool {
	return u == UnitKg || u == UnitLb
}

// ConvertWeight converts v between kilograms and pounds. Unknown or equal
// units leave v unchanged.
func ConvertWeight(v float64, from, to string) float64 {
	switch {
	case from == to:
		return v
	case from == UnitKg && to == UnitLb:
		return v * lbPerKg
	case from == UnitLb && to == UnitKg:
		return v / lbPerKg
	}
	return v
}
