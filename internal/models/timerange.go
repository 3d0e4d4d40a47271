package models

import (
	"fmt"
	"time"
)

// TimeRange is a coarse duration selector translated to a lower timestamp
// bound when filtering samples.
type TimeRange string

const (
	RangeHour    TimeRange = "1h"
	RangeDay     TimeRange = "1d"
	RangeWeek    TimeRange = "7d"
	RangeMonth   TimeRange = "30d"
	RangeQuarter TimeRange = "90d"
	RangeYear    TimeRange = "365d"
)

var rangeDurations = map[TimeRange]time.Duration{
	RangeHour:    time.Hour,
	RangeDay:     24 * time.Hour,
	RangeWeek:    7 * 24 * time.Hour,
	RangeMonth:   30 * 24 * time.Hour,
	RangeQuarter: 90 * 24 * time.Hour,
	RangeYear:    365 * 24 * time.Hour,
}

// Word aliases accepted anywhere a range token is: clients written against
// the old API send "WEEK" where newer ones send "7d".
var rangeAliases = map[string]TimeRange{
	"HOUR":    RangeHour,
	"DAY":     RangeDay,
	"WEEK":    RangeWeek,
	"MONTH":   RangeMonth,
	"QUARTER": RangeQuarter,
	"YEAR":    RangeYear,
}

// ParseTimeRange normalizes a range token or alias. An empty string maps to
// the 7d default used across the API.
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return RangeWeek, nil
	}
	tr := TimeRange(s)
	if _, ok := rangeDurations[tr]; ok {
		return tr, nil
	}
	if tr, ok := rangeAliases[s]; ok {
		return tr, nil
	}
	return "", fmt.Errorf("unknown time range %q", s)
}

// Since returns the lower timestamp bound: now minus the range's duration.
func (tr TimeRange) Since(now time.Time) time.Time {
	d, ok := rangeDurations[tr]
	if !ok {
		d = rangeDurations[RangeWeek]
	}
	return now.Add(-d)
}
