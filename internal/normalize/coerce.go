package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// defaultDateLayouts are tried when a source declares no layouts of
// its own.
var defaultDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// hoursPerYear converts hourly rates to annual (40h × 52 weeks).
const hoursPerYear = 2080

// ParseDate parses a raw date value against the source's declared
// layouts (falling back to common layouts) and truncates it to a UTC
// calendar date.
func ParseDate(raw string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = defaultDateLayouts
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, eris.Errorf("no layout matched %q", raw)
}

// ParseSalary coerces a raw salary string to an annual amount. It
// strips currency symbols and thousand separators, expands a trailing
// k/K multiplier, takes the first number of a range, and converts
// hourly/monthly units to annual.
func ParseSalary(raw string, unit string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, eris.New("empty salary")
	}

	// First number of a range like "40k - 60k".
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = s[:i]
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			return r
		case r == 'k' || r == 'K':
			return 'k'
		default:
			return -1
		}
	}, s)

	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	s = strings.ReplaceAll(s, "k", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse salary %q", raw)
	}
	v *= mult

	switch strings.ToLower(unit) {
	case "", "annual", "yearly", "year":
		return v, nil
	case "monthly", "month":
		return v * 12, nil
	case "hourly", "hour":
		return v * hoursPerYear, nil
	default:
		return 0, eris.Errorf("unknown salary unit %q", unit)
	}
}
