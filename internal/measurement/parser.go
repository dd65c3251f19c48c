package measurement

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	percentPattern  = regexp.MustCompile(`^(\d+)%$`)
	tempPattern     = regexp.MustCompile(`(?i)^(-?\d+)\s?(?:Â)?°c$`)
	windPattern     = regexp.MustCompile(`^(\d+)\s(km/h)(?:<br\s*/?>|\r?\n)([A-Za-z]+)$`)
	rainPattern     = regexp.MustCompile(`^(\d+(?:\.\d+)?)\smm$`)
	pressurePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\smb$`)
	yearPattern     = regexp.MustCompile(`^\d{1,4}$`)
)

var (
	errNoMatch    = errors.New("unexpected format")
	errNoTitle    = errors.New("no title attribute")
	errEmptyTitle = errors.New("empty title attribute")
)

// Parse dispatches text to the parser for kind. Year cells are not
// measurements; use ParseYear for them.
func Parse(kind Kind, text string) (Measurement, error) {
	var (
		value Measurement
		err   error
	)
	switch kind {
	case KindWeather:
		value, err = ParseWeather(text)
	case KindMaxTemp, KindMinTemp:
		value, err = ParseTemperature(kind, text)
	case KindWind:
		value, err = ParseWind(text)
	case KindRain:
		value, err = ParseRain(text)
	case KindHumidity, KindCloud:
		value, err = ParsePercentage(kind, text)
	case KindPressure:
		value, err = ParsePressure(text)
	case KindYear:
		err = formatErr(kind, text, errors.New("year is not a measurement"))
	default:
		err = formatErr(kind, text, ErrUnknownKind)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ParseYear reads the plain integer year column.
func ParseYear(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if !yearPattern.MatchString(trimmed) {
		return 0, formatErr(KindYear, text, errNoMatch)
	}
	year, err := strconv.Atoi(trimmed)
	if err != nil || year <= 0 {
		return 0, formatErr(KindYear, text, errNoMatch)
	}
	return year, nil
}

// ParsePercentage reads "<int>%" cells such as humidity and cloud cover.
func ParsePercentage(kind Kind, text string) (Scalar, error) {
	match := percentPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return Scalar{}, formatErr(kind, text, errNoMatch)
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return Scalar{}, formatErr(kind, text, err)
	}
	return Scalar{Value: float64(value), Units: UnitsPercent}, nil
}

// ParseTemperature reads "<int> °c" cells. The sign is kept.
func ParseTemperature(kind Kind, text string) (Scalar, error) {
	match := tempPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return Scalar{}, formatErr(kind, text, errNoMatch)
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return Scalar{}, formatErr(kind, text, err)
	}
	return Scalar{Value: float64(value), Units: UnitsCelsius}, nil
}

// ParseWeather pulls the description out of the title attribute embedded in
// the cell markup.
func ParseWeather(text string) (Weather, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return Weather{}, formatErr(KindWeather, text, fmt.Errorf("read markup: %w", err))
	}
	titled := doc.Find("[title]").First()
	if titled.Length() == 0 {
		return Weather{}, formatErr(KindWeather, text, errNoTitle)
	}
	title, _ := titled.Attr("title")
	title = strings.TrimSpace(title)
	if title == "" {
		return Weather{}, formatErr(KindWeather, text, errEmptyTitle)
	}
	return Weather{Title: title}, nil
}

// ParseWind reads "<int> km/h<br><direction>" cells.
func ParseWind(text string) (Wind, error) {
	match := windPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return Wind{}, formatErr(KindWind, text, errNoMatch)
	}
	speed, err := strconv.Atoi(match[1])
	if err != nil {
		return Wind{}, formatErr(KindWind, text, err)
	}
	return Wind{Value: speed, Units: UnitsKmh, Direction: match[3]}, nil
}

// ParseRain reads "<decimal> mm" cells.
func ParseRain(text string) (Scalar, error) {
	value, err := parseDecimal(rainPattern, KindRain, text)
	if err != nil {
		return Scalar{}, err
	}
	return Scalar{Value: value, Units: UnitsMillimetre}, nil
}

// ParsePressure reads "<decimal> mb" cells, truncating to a whole millibar.
func ParsePressure(text string) (Scalar, error) {
	value, err := parseDecimal(pressurePattern, KindPressure, text)
	if err != nil {
		return Scalar{}, err
	}
	return Scalar{Value: math.Trunc(value), Units: UnitsMillibar}, nil
}

func parseDecimal(pattern *regexp.Regexp, kind Kind, text string) (float64, error) {
	match := pattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0, formatErr(kind, text, errNoMatch)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, formatErr(kind, text, err)
	}
	return value, nil
}
