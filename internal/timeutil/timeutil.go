// Package timeutil provides unix-second time helpers shared by the
// scheduler, rollup and analytics code. All values are UTC unix seconds.
package timeutil

import "fmt"

const (
	Minute = int64(60)
	Hour   = int64(3600)
	Day    = int64(86400)
)

// FloorMinute truncates a unix timestamp to the start of its minute.
// The scheduler uses this to anchor check bucket boundaries.
func FloorMinute(ts int64) int64 {
	return ts - ts%Minute
}

// DayStart truncates a unix timestamp to UTC midnight of its day.
func DayStart(ts int64) int64 {
	return ts - ts%Day
}

// PrevDayStart returns UTC midnight of the day before the one containing ts.
func PrevDayStart(ts int64) int64 {
	return DayStart(ts) - Day
}

// RangeSeconds maps a range token to its width in seconds.
func RangeSeconds(token string) (int64, error) {
	switch token {
	case "24h":
		return 24 * Hour, nil
	case "7d":
		return 7 * Day, nil
	case "30d":
		return 30 * Day, nil
	case "90d":
		return 90 * Day, nil
	}
	return 0, fmt.Errorf("invalid range %q", token)
}
