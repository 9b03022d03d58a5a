package store

// Source identifies which upstream origin produced a daily average value.
// It is a closed set: call sites must use these constants, never free-form
// strings.
type Source string

const (
	SourceCSVHistorical    Source = "csv_historical"
	SourceCSVHistorico     Source = "csv_historico"
	SourceMedicionesAPI    Source = "mediciones_api"
	SourceMedicionesInterp Source = "mediciones_api_interpolado"
	SourceWAQIDirect       Source = "WAQI_direct"
	SourceWAQIDB           Source = "WAQI_DB"
	SourceCalculatedHourly Source = "calculated_hourly"
	SourceCalculated       Source = "calculated"
	SourceModelV2          Source = "model_v2"
	SourceNone             Source = "none"
)

// sourcePrecedence orders provenance tiers from most to least authoritative
// for read-side tie-breaking when several sources coexist for one date.
var sourcePrecedence = []Source{
	SourceCSVHistorical,
	SourceCSVHistorico,
	SourceMedicionesAPI,
	SourceMedicionesInterp,
	SourceWAQIDirect,
	SourceWAQIDB,
	SourceCalculatedHourly,
	SourceCalculated,
}

// Precedence returns the tie-break rank of a source; lower wins. Unknown
// sources rank last.
func (s Source) Precedence() int {
	for i, known := range sourcePrecedence {
		if s == known {
			return i + 1
		}
	}
	return len(sourcePrecedence) + 1
}

// External reports whether the source came from the external feed rather
// than this station's own readings.
func (s Source) External() bool {
	return s == SourceWAQIDirect || s == SourceWAQIDB
}
