package date

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is the length, in days, of a chart window ending today.
type Period int

const (
	Week    Period = 7
	Month   Period = 30
	Quarter Period = 90
	Year    Period = 365
)

// Periods lists the periods offered to users.
var Periods = []Period{Week, Month, Quarter, Year}

func (p Period) String() string {
	switch p {
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("%dd", int(p))
	}
}

// Start returns the first day of the window of p ending on 'on'.
func (p Period) Start(on Date) Date { return on.Add(-(int(p) - 1)) }

// Range returns the window of p ending on 'on'.
func (p Period) Range(on Date) Range { return Range{From: p.Start(on), To: on} }

// ParsePeriod parses one of the offered periods, by name ("month") or by
// day count ("30" or "30d").
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "week", "weekly", "w":
		return Week, nil
	case "month", "monthly", "m":
		return Month, nil
	case "quarter", "quarterly", "q":
		return Quarter, nil
	case "year", "yearly", "y":
		return Year, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
	if err != nil {
		return 0, fmt.Errorf("unknown period %q", s)
	}
	for _, p := range Periods {
		if int(p) == n {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unsupported period %q, want one of %v", s, Periods)
}
