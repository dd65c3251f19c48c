// Package measurement turns raw history-table cell text into typed, unit-tagged values.
package measurement

import (
	"fmt"
	"strings"
)

// Kind identifies which column a cell belongs to. The set is closed.
type Kind int

// Supported column kinds.
const (
	KindYear Kind = iota + 1
	KindWeather
	KindMaxTemp
	KindMinTemp
	KindWind
	KindRain
	KindHumidity
	KindCloud
	KindPressure
)

var kindLabels = map[Kind]string{
	KindYear:     "year",
	KindWeather:  "weather",
	KindMaxTemp:  "max",
	KindMinTemp:  "min",
	KindWind:     "wind",
	KindRain:     "rain",
	KindHumidity: "humidity",
	KindCloud:    "cloud",
	KindPressure: "pressure",
}

// String returns the header label the source uses for the kind.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a header label onto its Kind. Labels are compared after
// trimming and lower-casing.
func ParseKind(label string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for kind, known := range kindLabels {
		if known == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, label)
}

// ParseKinds maps a header row onto kinds, failing on the first unknown label.
func ParseKinds(labels []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(labels))
	for _, label := range labels {
		kind, err := ParseKind(label)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
