// Package window computes the calendar ranges every posture probe queries
// over: month-to-date, trailing 30 days and the forecast horizon.
package window

import "time"

const dateLayout = "2006-01-02"

// Window holds the date boundaries as YYYY-MM-DD strings, the format the
// Cost Explorer API expects. TodayExclusiveEnd is tomorrow, so that ranges
// ending "today" include today's partial data.
type Window struct {
	MonthStart        string
	TodayExclusiveEnd string
	Trailing30Start   string
	NextMonthStart    string
}

// Compute derives the window from the given instant. Pure calendar
// arithmetic; NextMonthStart rolls over year boundaries.
func Compute(now time.Time) Window {
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	return Window{
		MonthStart:        time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).Format(dateLayout),
		TodayExclusiveEnd: today.AddDate(0, 0, 1).Format(dateLayout),
		Trailing30Start:   today.AddDate(0, 0, -30).Format(dateLayout),
		NextMonthStart:    time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location()).Format(dateLayout),
	}
}
