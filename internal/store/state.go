package store

// Air quality states shown alongside stored values.
const (
	StateGood    = "Buena"
	StateModerate = "Moderada"
	StateRegular = "Regular"
	StateBad     = "Mala"
	StateNoData  = "Sin datos"
	StateUnknown = "Desconocido"
)

// StateFor derives the air quality state for a parameter value using the
// station's reporting thresholds (µg/m³).
func StateFor(parameter string, value *float64) string {
	if value == nil {
		return StateNoData
	}
	switch parameter {
	case "pm25":
		switch {
		case *value <= 15:
			return StateGood
		case *value <= 25:
			return StateModerate
		case *value <= 50:
			return StateRegular
		default:
			return StateBad
		}
	case "pm10":
		switch {
		case *value <= 40:
			return StateGood
		case *value <= 50:
			return StateModerate
		case *value <= 100:
			return StateRegular
		default:
			return StateBad
		}
	default:
		return StateUnknown
	}
}
