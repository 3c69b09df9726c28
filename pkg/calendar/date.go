package calendar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseISO accepts exactly YYYY-MM-DD naming a real calendar day.
func ParseISO(v string) (civil.Date, error) {
	if !isoDatePattern.MatchString(v) {
		return civil.Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}

var clampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Clamp normalizes a date-like value (plain dates or timestamps) to the UTC
// calendar day it falls on.
func Clamp(v string) (civil.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return civil.Date{}, fmt.Errorf("missing date value")
	}
	for _, layout := range clampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return civil.DateOf(t.UTC()), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date: %s", v)
}

// ClampISO is Clamp rendered back as YYYY-MM-DD.
func ClampISO(v string) (string, error) {
	d, err := Clamp(v)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

func Today() civil.Date {
	return civil.DateOf(time.Now().UTC())
}

func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

func MinDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysBetween is the signed number of calendar days from a to b.
func DaysBetween(a, b civil.Date) int {
	return b.DaysSince(a)
}
