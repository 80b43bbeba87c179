// Package uptime computes monthly uptime from the outage log.
package uptime

import (
	"math"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

const periodLayout = "2006-01"

// Window is a half-open span of epoch seconds.
type Window struct {
	Start int64
	End   int64
}

// MonthWindow spans local midnight of day 1 of now's month in loc up to now.
func MonthWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Window{Start: start.Unix(), End: now.Unix()}
}

// Period is the snapshot key of the month containing now in loc, e.g. "2026-03".
// The month is always zero padded, so keys sort lexically. Snapshots imported from
// stores that wrote "2026-3" style keys need renaming to line up with these.
func Period(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(periodLayout)
}

// OutageSeconds sums every interval clipped to the window. Open intervals run to the window end.
// Intervals that fall entirely outside the window contribute nothing.
func OutageSeconds(intervals []*domainDevice.OutageInterval, w Window) int64 {
	var total int64
	for _, interval := range intervals {
		start := interval.Start
		if start < w.Start {
			start = w.Start
		}
		end := w.End
		if interval.End != nil && *interval.End < end {
			end = *interval.End
		}
		if end >= start {
			total += end - start
		}
	}
	return total
}

// Compute derives the summary for the window. Rounding happens once, on the final values.
func Compute(intervals []*domainDevice.OutageInterval, w Window) domainDevice.UptimeSummary {
	totalHours := float64(w.End-w.Start) / 3600
	offlineHours := float64(OutageSeconds(intervals, w)) / 3600
	uptimeHours := totalHours - offlineHours

	var percentage float64
	if totalHours > 0 {
		percentage = 100 * uptimeHours / totalHours
	}

	return domainDevice.UptimeSummary{
		TotalHours:        Round2(totalHours),
		TotalOfflineHours: Round2(offlineHours),
		UptimeHours:       Round2(uptimeHours),
		UptimePercentage:  Round2(percentage),
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
