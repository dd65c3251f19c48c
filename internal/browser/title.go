package browser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

// titlePattern finds "15th June" style day/month pairs in the results title.
var titlePattern = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)\s+([A-Za-z]+)`)

// parseResultTitle extracts the day of month and month from a results title.
func parseResultTitle(title string) (int, time.Month, bool) {
	match := titlePattern.FindStringSubmatch(title)
	if match == nil {
		return 0, 0, false
	}
	day, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, 0, false
	}
	for month := time.January; month <= time.December; month++ {
		if strings.EqualFold(month.String(), match[2]) {
			return day, month, true
		}
	}
	return 0, 0, false
}

// titleShows reports whether the results title already reflects target.
func titleShows(title string, target harvest.CalendarTarget) bool {
	day, month, ok := parseResultTitle(title)
	return ok && day == target.Day && int(month) == target.Month
}
