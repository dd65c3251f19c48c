package harvest

import (
	"fmt"

	"github.com/JakeFAU/weather-harvester/internal/measurement"
)

// CalendarTarget is a (month, day) query. The source answers it with one
// row per historical year.
type CalendarTarget struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String renders the target as MM-DD.
func (t CalendarTarget) String() string {
	return fmt.Sprintf("%02d-%02d", t.Month, t.Day)
}

// Date composes the YYYY-MM-DD date for year.
func (t CalendarTarget) Date(year int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, t.Month, t.Day)
}

// RawTable is the unparsed results table read from a settled page: header
// labels plus the body cells in row-major order.
type RawTable struct {
	Columns []string
	Cells   []string
}

// DayRecord is one historical year's observation for a (month, day). Fields
// whose column the source did not return are nil.
type DayRecord struct {
	Date     string               `json:"date"`
	MaxTemp  *measurement.Scalar  `json:"maxTemp,omitempty"`
	MinTemp  *measurement.Scalar  `json:"minTemp,omitempty"`
	Weather  *measurement.Weather `json:"weather,omitempty"`
	Wind     *measurement.Wind    `json:"wind,omitempty"`
	Rain     *measurement.Scalar  `json:"rain,omitempty"`
	Humidity *measurement.Scalar  `json:"humidity,omitempty"`
	Cloud    *measurement.Scalar  `json:"cloud,omitempty"`
	Pressure *measurement.Scalar  `json:"pressure,omitempty"`
}
