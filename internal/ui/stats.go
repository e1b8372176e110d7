package ui

import (
	"fmt"
	"time"

	"github.com/hlmonitor/engine/internal/aggregate"
	"github.com/hlmonitor/engine/internal/metrics"
	"github.com/rivo/tview"
)

// StatsView displays poll-cycle health and the current window.
type StatsView struct {
	textView *tview.TextView

	trackedCount int
	window       aggregate.TimeWindow
}

// NewStatsView creates a new stats view.
func NewStatsView() *StatsView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Monitor ").SetBorder(true)

	return &StatsView{textView: textView}
}

// Widget returns the tview primitive.
func (v *StatsView) Widget() tview.Primitive {
	return v.textView
}

// SetTracked records the watch-list size for display.
func (v *StatsView) SetTracked(count int) {
	v.trackedCount = count
}

// SetWindow records the last completed cycle's window for display.
func (v *StatsView) SetWindow(w aggregate.TimeWindow) {
	v.window = w
}

// Update refreshes the stats display.
func (v *StatsView) Update(snapshot metrics.Snapshot) {
	v.textView.Clear()

	lastCycle := "never"
	if !snapshot.LastCycleAt.IsZero() {
		lastCycle = fmt.Sprintf("%s (%s)", formatTimeAgo(snapshot.LastCycleAt), snapshot.LastCycleDuration.Round(time.Millisecond))
	}

	windowRange := "-"
	if !v.window.End.IsZero() {
		windowRange = fmt.Sprintf("%s → %s UTC",
			v.window.Start.Format("01/02 15:04"),
			v.window.End.Format("01/02 15:04"))
	}

	streamColor := "red"
	switch snapshot.StreamStatus {
	case "connected":
		streamColor = "green"
	case "disabled":
		streamColor = "gray"
	}

	text := fmt.Sprintf(`[yellow]Watch-list[-]
Tracking: %d traders
Window: %s

[yellow]Polling[-]
Cycles: %d
Last: %s
Upstream Calls: %d
Cache Hits: %d
Rows: %d fills / %d positions
Failures: %d fills / %d positions

[yellow]Stream[-]
Status: [%s]%s[-]
Live Fills: %d

Uptime: %s
`,
		v.trackedCount,
		windowRange,
		snapshot.Cycles,
		lastCycle,
		snapshot.UpstreamCalls,
		snapshot.CacheHits,
		snapshot.FillRows,
		snapshot.PositionRows,
		snapshot.FillErrors,
		snapshot.PositionErrors,
		streamColor, snapshot.StreamStatus,
		snapshot.StreamFills,
		formatDuration(snapshot.Uptime),
	)

	fmt.Fprint(v.textView, text)
}
