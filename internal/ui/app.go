// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/hlmonitor/engine/internal/aggregate"
	"github.com/hlmonitor/engine/internal/metrics"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/rivo/tview"
)

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	fills      *FillsView
	positions  *PositionsView
	stats      *StatsView
	fetchFails *FetchErrorsView

	// Data channels
	resultChan <-chan aggregate.Result
	fillChan   <-chan store.FillRecord
	tracker    *metrics.Tracker

	// onRefresh is invoked when the user forces a refresh
	onRefresh func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application. onRefresh is called on the 'r'
// key; the caller is expected to clear the cache and trigger a cycle.
func NewApp(resultChan <-chan aggregate.Result, fillChan <-chan store.FillRecord, tracker *metrics.Tracker, onRefresh func()) *App {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		app:        tview.NewApplication(),
		resultChan: resultChan,
		fillChan:   fillChan,
		tracker:    tracker,
		onRefresh:  onRefresh,
		ctx:        ctx,
		cancel:     cancel,
	}

	// Initialize views
	app.fills = NewFillsView()
	app.positions = NewPositionsView()
	app.stats = NewStatsView()
	app.fetchFails = NewFetchErrorsView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the 4-panel layout.
func (a *App) setupLayout() {
	// Top row: Stats (left) | Fetch Errors (right)
	topRow := tview.NewFlex().
		AddItem(a.stats.Widget(), 0, 1, false).
		AddItem(a.fetchFails.Widget(), 0, 2, false)

	// Middle row: Recent Fills (full width)
	middleRow := a.fills.Widget()

	// Bottom row: Active Positions (full width)
	bottomRow := a.positions.Widget()

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 3, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				if a.onRefresh != nil {
					go a.onRefresh()
				}
				return nil
			}
		}
		return event
	})
}

// SetTrackedCount records the watch-list size shown in the stats panel.
func (a *App) SetTrackedCount(count int) {
	a.stats.SetTracked(count)
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.processResults()
	go a.processLiveFills()
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// processResults applies each completed poll cycle to the views. A newer
// result fully supersedes the previous one.
func (a *App) processResults() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case result, ok := <-a.resultChan:
			if !ok {
				return
			}

			a.app.QueueUpdateDraw(func() {
				a.fills.SetTable(result.Fills)
				a.positions.SetTable(result.Positions)
				a.fetchFails.SetErrors(result.Fills.Errors, result.Positions.Errors)
				a.stats.SetWindow(result.Window)
			})
		}
	}
}

// processLiveFills prepends streamed fills between poll cycles.
func (a *App) processLiveFills() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case fill, ok := <-a.fillChan:
			if !ok {
				return
			}

			a.app.QueueUpdateDraw(func() {
				a.fills.AddLive(fill)
			})
		}
	}
}

// updateLoop periodically refreshes the stats panel.
func (a *App) updateLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			snapshot := a.tracker.Snapshot()

			a.app.QueueUpdateDraw(func() {
				a.stats.Update(snapshot)
			})
		}
	}
}
