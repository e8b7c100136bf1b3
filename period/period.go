// Package period owns the canonical period keys used for cache lookup and
// previous-period comparison: "2026-W06" for weekly, "2026-01" for monthly.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Weekly  = "weekly"
	Monthly = "monthly"
)

// KeyFor returns the canonical period key for the given date.
// Weekly keys use the ISO week number of t; monthly keys use year-month.
func KeyFor(t time.Time, periodType string) string {
	if periodType == Monthly {
		return t.Format("2006-01")
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Decrement resolves the key of the chronologically previous period.
// Weekly keys roll into the prior year's W52 at the year boundary, monthly
// keys into December. Returns "" for keys it does not recognize.
func Decrement(key string) string {
	if strings.Contains(key, "-W") {
		parts := strings.SplitN(key, "-W", 2)
		year, errY := strconv.Atoi(parts[0])
		week, errW := strconv.Atoi(parts[1])
		if errY != nil || errW != nil {
			return ""
		}
		week--
		if week < 1 {
			return fmt.Sprintf("%d-W52", year-1)
		}
		return fmt.Sprintf("%d-W%02d", year, week)
	}

	if len(key) == 7 {
		parts := strings.SplitN(key, "-", 2)
		if len(parts) != 2 {
			return ""
		}
		year, errY := strconv.Atoi(parts[0])
		month, errM := strconv.Atoi(parts[1])
		if errY != nil || errM != nil || month < 1 || month > 12 {
			return ""
		}
		month--
		if month < 1 {
			return fmt.Sprintf("%d-12", year-1)
		}
		return fmt.Sprintf("%d-%02d", year, month)
	}

	return ""
}

// WeeklyRange returns the [since, until) dates for a weekly report run at
// now: the last 7 days.
func WeeklyRange(now time.Time) (string, string) {
	return now.AddDate(0, 0, -7).Format("2006-01-02"), now.Format("2006-01-02")
}

// MonthlyRange returns the [since, until) dates for a monthly report run at
// now: the last 30 days.
func MonthlyRange(now time.Time) (string, string) {
	return now.AddDate(0, 0, -30).Format("2006-01-02"), now.Format("2006-01-02")
}
