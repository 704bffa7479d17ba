package domain

import "time"

// Periods holds the six calendar windows used for comparative averages.
type Periods struct {
	LastMonth       DateRange
	PreviousMonth   DateRange
	LastQuarter     DateRange
	PreviousQuarter DateRange
	LastYear        DateRange
	PreviousYear    DateRange
}

// ComparisonPeriods computes the comparison windows relative to now. Months
// and quarters are full calendar units strictly before the current one;
// quarters start in January, April, July and October.
func ComparisonPeriods(now time.Time) Periods {
	y, m, _ := now.Date()
	loc := now.Location()

	day := func(year int, month time.Month, d int) string {
		return time.Date(year, month, d, 0, 0, 0, 0, loc).Format(DateLayout)
	}

	// time.Date normalises month underflow, and day 0 is the last day of
	// the previous month.
	monthBack := func(n int) DateRange {
		start := m - time.Month(n)
		return DateRange{From: day(y, start, 1), To: day(y, start+1, 0)}
	}

	quarterBack := func(n int) DateRange {
		idx := y*4 + (int(m)-1)/3 - n
		qy, q := idx/4, idx%4
		first := time.Month(q*3 + 1)
		return DateRange{From: day(qy, first, 1), To: day(qy, first+3, 0)}
	}

	yearBack := func(n int) DateRange {
		return DateRange{From: day(y-n, time.January, 1), To: day(y-n, time.December, 31)}
	}

	return Periods{
		LastMonth:       monthBack(1),
		PreviousMonth:   monthBack(2),
		LastQuarter:     quarterBack(1),
		PreviousQuarter: quarterBack(2),
		LastYear:        yearBack(1),
		PreviousYear:    yearBack(2),
	}
}
