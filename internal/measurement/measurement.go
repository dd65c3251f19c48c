package measurement

// Units attached to each kind. They are fixed by the parser and never read
// from cell text.
const (
	UnitsCelsius    = "c"
	UnitsPercent    = "%"
	UnitsMillimetre = "mm"
	UnitsMillibar   = "mb"
	UnitsKmh        = "km/h"
)

// Measurement is one parsed cell. The concrete type is one of Scalar,
// Weather or Wind.
type Measurement interface {
	measurement()
}

// Scalar is a single value with fixed units (temperature, percentage,
// rainfall, pressure).
type Scalar struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Weather is the weather description taken from the cell's title attribute.
type Weather struct {
	Title string `json:"title"`
}

// Wind is the wind speed plus compass direction.
type Wind struct {
	Value     int    `json:"value"`
	Units     string `json:"units"`
	Direction string `json:"direction"`
}

func (Scalar) measurement()  {}
func (Weather) measurement() {}
func (Wind) measurement()    {}
