// Package window slices a backfill time range into feed-sized chunks.
//
// The historical feed serves at most a fixed number of bars per call and
// counts them inclusively: a request for [start, end] returns the bar at
// start, the bar at end, and every bar between. Split mirrors that
// arithmetic so each produced window maps to exactly one admissible call.
package window

import (
	"fmt"
	"time"
)

// Window is one closed [Start, End] slice of a backfill range. Both bounds
// land on whole bars; the bar at End belongs to the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Bars returns how many bars the window covers at the given resolution,
// counting inclusively the way the feed does.
//
// Examples:
//   - Start == End -> 1 bar
//   - one hour at 1m resolution -> 61 bars
func (w Window) Bars(resolution time.Duration) int64 {
	return int64(w.End.Sub(w.Start)/resolution) + 1
}

// Split cuts the closed range [start, end] into consecutive windows of at
// most maxBars bars each. The range is first rounded inward to whole
// resolution steps, matching what the feed does to every request; a range
// holding no whole step yields no windows. Consecutive windows abut without
// overlap: each starts one resolution step after its predecessor ends, so a
// walk over the result fetches every bar exactly once.
func Split(start, end time.Time, resolution time.Duration, maxBars int) ([]Window, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %s", resolution)
	}
	if maxBars < 1 {
		return nil, fmt.Errorf("max bars must be at least 1, got %d", maxBars)
	}

	alignedStart := start.Truncate(resolution)
	if alignedStart.Before(start) {
		alignedStart = alignedStart.Add(resolution)
	}
	alignedEnd := end.Truncate(resolution)
	if alignedEnd.Before(alignedStart) {
		return nil, nil
	}

	// The widest window: maxBars bars counted inclusively.
	span := resolution * time.Duration(maxBars-1)

	var windows []Window
	for cursor := alignedStart; !cursor.After(alignedEnd); {
		windowEnd := cursor.Add(span)
		if windowEnd.After(alignedEnd) {
			windowEnd = alignedEnd
		}
		windows = append(windows, Window{Start: cursor, End: windowEnd})
		cursor = windowEnd.Add(resolution)
	}
	return windows, nil
}
