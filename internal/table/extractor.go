// Package table rebuilds per-year day records from the flat cell list of a
// rendered history table.
package table

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
	"github.com/JakeFAU/weather-harvester/internal/measurement"
)

var (
	errNoColumns     = errors.New("table has no header columns")
	errNoYearColumn  = errors.New("table has no year column")
	errRaggedCells   = errors.New("cell count is not a multiple of the column count")
	errDuplicateKind = errors.New("column listed twice")
	errDuplicateYear = errors.New("year listed twice")
)

// Extract partitions raw.Cells into rows of len(raw.Columns) cells, parses
// every cell by its column kind, and returns one record per row in source
// order. Any cell failure fails the whole table.
func Extract(raw harvest.RawTable, target harvest.CalendarTarget) ([]harvest.DayRecord, error) {
	kinds, err := headerKinds(raw.Columns)
	if err != nil {
		return nil, err
	}
	width := len(kinds)
	if len(raw.Cells)%width != 0 {
		return nil, fmt.Errorf("%w: %d cells, %d columns", errRaggedCells, len(raw.Cells), width)
	}

	records := make([]harvest.DayRecord, 0, len(raw.Cells)/width)
	years := make(map[string]bool, len(raw.Cells)/width)
	for start := 0; start < len(raw.Cells); start += width {
		row := start / width
		record, err := buildRecord(kinds, raw.Cells[start:start+width], target)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if years[record.Date] {
			return nil, fmt.Errorf("row %d: %w: %s", row, errDuplicateYear, record.Date)
		}
		years[record.Date] = true
		records = append(records, record)
	}
	return records, nil
}

func headerKinds(columns []string) ([]measurement.Kind, error) {
	if len(columns) == 0 {
		return nil, errNoColumns
	}
	kinds, err := measurement.ParseKinds(columns)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	seen := make(map[measurement.Kind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			return nil, fmt.Errorf("header: %w: %s", errDuplicateKind, kind)
		}
		seen[kind] = true
	}
	if !seen[measurement.KindYear] {
		return nil, errNoYearColumn
	}
	return kinds, nil
}

func buildRecord(kinds []measurement.Kind, cells []string, target harvest.CalendarTarget) (harvest.DayRecord, error) {
	var record harvest.DayRecord
	for i, kind := range kinds {
		if err := assign(&record, kind, cells[i], target); err != nil {
			return harvest.DayRecord{}, fmt.Errorf("column %s: %w", kind, err)
		}
	}
	return record, nil
}

func assign(record *harvest.DayRecord, kind measurement.Kind, text string, target harvest.CalendarTarget) error {
	if kind == measurement.KindYear {
		year, err := measurement.ParseYear(text)
		if err != nil {
			return err
		}
		record.Date = target.Date(year)
		return nil
	}

	value, err := measurement.Parse(kind, text)
	if err != nil {
		return err
	}
	switch v := value.(type) {
	case measurement.Weather:
		record.Weather = &v
	case measurement.Wind:
		record.Wind = &v
	case measurement.Scalar:
		field := scalarField(record, kind)
		if field == nil {
			return fmt.Errorf("%w: %s", measurement.ErrUnknownKind, kind)
		}
		*field = &v
	default:
		return fmt.Errorf("%w: %s", measurement.ErrUnknownKind, kind)
	}
	return nil
}

// scalarField is the record slot for a scalar-valued kind.
func scalarField(record *harvest.DayRecord, kind measurement.Kind) **measurement.Scalar {
	switch kind {
	case measurement.KindMaxTemp:
		return &record.MaxTemp
	case measurement.KindMinTemp:
		return &record.MinTemp
	case measurement.KindRain:
		return &record.Rain
	case measurement.KindHumidity:
		return &record.Humidity
	case measurement.KindCloud:
		return &record.Cloud
	case measurement.KindPressure:
		return &record.Pressure
	default:
		return nil
	}
}
