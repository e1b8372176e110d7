package aggregate

import "time"

// TimeWindow is the fill lookback interval, half-open in intent but sent
// to the API as inclusive millisecond bounds.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// WindowEnding computes a window of the given length anchored at now.
// The caller supplies now so a cycle is deterministic under test.
func WindowEnding(now time.Time, hours int) TimeWindow {
	return TimeWindow{
		Start: now.Add(-time.Duration(hours) * time.Hour),
		End:   now,
	}
}

// StartMs returns the window start in milliseconds since epoch.
func (w TimeWindow) StartMs() int64 {
	return w.Start.UnixMilli()
}

// EndMs returns the window end in milliseconds since epoch.
func (w TimeWindow) EndMs() int64 {
	return w.End.UnixMilli()
}
