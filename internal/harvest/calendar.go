package harvest

import (
	"fmt"
	"time"
)

// ReferenceYear is the year written into the source's date control. Only
// month and day matter to the per-year table, so day counts follow this
// year's calendar.
const ReferenceYear = 2021

// DaysIn returns the number of days month has in year.
func DaysIn(year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month %d out of range 1-12", month)
	}
	// Day zero of the next month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day(), nil
}

// TargetsFor enumerates every (month, day) for months in the order given,
// using year's calendar.
func TargetsFor(year int, months []int) ([]CalendarTarget, error) {
	seen := make(map[int]bool, len(months))
	var targets []CalendarTarget
	for _, month := range months {
		if seen[month] {
			return nil, fmt.Errorf("month %d listed twice", month)
		}
		seen[month] = true
		days, err := DaysIn(year, month)
		if err != nil {
			return nil, err
		}
		for day := 1; day <= days; day++ {
			targets = append(targets, CalendarTarget{Month: month, Day: day})
		}
	}
	return targets, nil
}
