package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// placeholder glyphs banks print in empty amount cells
var amountPlaceholders = map[string]bool{
	"-":      true,
	"\u2014": true,
	"--":     true,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CleanAmount strips the currency marker, thousands separators and surrounding whitespace
func CleanAmount(text string) string {
	cleaned := strings.ReplaceAll(text, "INR", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strings.TrimSpace(cleaned)
}

// IsValidAmount reports whether a cell carries an amount rather than a blank or a dash
func IsValidAmount(text string) bool {
	cleaned := CleanAmount(text)
	return cleaned != "" && !amountPlaceholders[cleaned]
}

// ParseAmount parses a statement amount cell into a decimal.Decimal
func ParseAmount(text string) (decimal.Decimal, error) {
	if !IsValidAmount(text) {
		return decimal.Zero, fmt.Errorf("not an amount: %q", text)
	}
	amount, err := decimal.NewFromString(CleanAmount(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", text, err)
	}
	return amount, nil
}

// ParseTimestamp parses a stored timestamp. Date-only values are read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("blank timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// DateOf returns the calendar date of t as seen in loc, pinned to midnight UTC
// so that day arithmetic never crosses a DST boundary.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
// Both values must come from DateOf.
func DaysBetween(a, b time.Time) int64 {
	return int64(b.Sub(a).Hours() / 24)
}

// Round2 rounds money to two places, half away from zero
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney renders an amount with exactly two decimals
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
