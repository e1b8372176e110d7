// Package aggregate drives the per-address fetch fan-out and folds raw API
// payloads into the two normalized, sorted result tables.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hlmonitor/engine/internal/hyperliquid"
	"github.com/hlmonitor/engine/internal/numeric"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/hlmonitor/engine/internal/watchlist"
)

const (
	// DefaultMaxFills caps fills retained per trader
	DefaultMaxFills = 200
	// DefaultWindowHours is the fill lookback length
	DefaultWindowHours = 24
	// DefaultWorkers bounds concurrent per-address fetches; upstream rate
	// limits make wide fan-out pointless anyway
	DefaultWorkers = 5

	// fillTimeLayout is fixed-width so lexical order equals chronological
	// order, millisecond precision included.
	fillTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Fetcher is the cache-backed data access surface the pipeline drives.
type Fetcher interface {
	Fills(ctx context.Context, address string, startMs, endMs int64, aggregateByTime bool) ([]hyperliquid.Fill, error)
	Positions(ctx context.Context, address string) (hyperliquid.ClearinghouseState, error)
}

// Options configures one pipeline instance.
type Options struct {
	WindowHours     int
	MaxFills        int
	AggregateByTime bool
	Workers         int
}

// Result is the output of one poll cycle.
type Result struct {
	Window    TimeWindow
	Fills     store.FillsTable
	Positions store.PositionsTable
}

// Pipeline fans fetches out across the watch-list and assembles the fills
// and positions tables. Failures are isolated per address and per table;
// one bad address never aborts the rest.
type Pipeline struct {
	fetcher Fetcher
	opts    Options
}

// NewPipeline creates a Pipeline, filling in defaults for zero options.
func NewPipeline(fetcher Fetcher, opts Options) *Pipeline {
	if opts.WindowHours <= 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.MaxFills <= 0 {
		opts.MaxFills = DefaultMaxFills
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Pipeline{fetcher: fetcher, opts: opts}
}

// addressData holds one watch-list entry's raw fetch outcome.
type addressData struct {
	fills    []hyperliquid.Fill
	fillsErr error
	state    hyperliquid.ClearinghouseState
	stateErr error
}

// Run executes one poll cycle anchored at now. Entries are fetched
// independently over a bounded worker pool; duplicate addresses are
// fetched per occurrence and keep their own labels (the cache collapses
// the duplicate upstream calls).
func (p *Pipeline) Run(ctx context.Context, now time.Time, entries []watchlist.Entry) Result {
	started := time.Now()
	window := WindowEnding(now.UTC(), p.opts.WindowHours)

	data := make([]addressData, len(entries))

	sem := make(chan struct{}, p.opts.Workers)
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, address string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				data[i].fillsErr = ctx.Err()
				data[i].stateErr = ctx.Err()
				return
			}

			d := &data[i]
			d.fills, d.fillsErr = p.fetcher.Fills(ctx, address, window.StartMs(), window.EndMs(), p.opts.AggregateByTime)
			d.state, d.stateErr = p.fetcher.Positions(ctx, address)
		}(i, entry.Address)
	}
	wg.Wait()

	result := Result{Window: window}
	result.Fills = p.assembleFills(entries, data)
	result.Positions = p.assemblePositions(entries, data)

	slog.Debug("poll_cycle_complete",
		"addresses", len(entries),
		"fill_rows", len(result.Fills.Rows),
		"position_rows", len(result.Positions.Rows),
		"fill_errors", len(result.Fills.Errors),
		"position_errors", len(result.Positions.Errors),
		"duration", time.Since(started),
	)

	return result
}

// assembleFills folds raw fills into the sorted fills table. The MaxFills
// cap slices the list in upstream order, before normalization and sorting.
func (p *Pipeline) assembleFills(entries []watchlist.Entry, data []addressData) store.FillsTable {
	table := store.FillsTable{}

	for i, entry := range entries {
		d := data[i]
		if d.fillsErr != nil {
			table.Errors = append(table.Errors, store.RowError{
				Address: entry.Address,
				Message: d.fillsErr.Error(),
			})
			continue
		}

		fills := d.fills
		if len(fills) > p.opts.MaxFills {
			fills = fills[:p.opts.MaxFills]
		}

		for _, fill := range fills {
			table.Rows = append(table.Rows, NewFillRecord(fill, entry))
		}
	}

	// Descending by timestamp string; rows with no timestamp sort last.
	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Time > table.Rows[j].Time
	})

	return table
}

// assemblePositions folds clearinghouse snapshots into the sorted
// positions table, dropping zero-size entries.
func (p *Pipeline) assemblePositions(entries []watchlist.Entry, data []addressData) store.PositionsTable {
	table := store.PositionsTable{}

	for i, entry := range entries {
		d := data[i]
		if d.stateErr != nil {
			table.Errors = append(table.Errors, store.RowError{
				Address: entry.Address,
				Message: d.stateErr.Error(),
			})
			continue
		}

		for _, ap := range d.state.AssetPositions {
			record, ok := buildPositionRecord(ap.Position, entry)
			if !ok {
				continue
			}
			table.Rows = append(table.Rows, record)
		}
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.Trader != b.Trader {
			return a.Trader < b.Trader
		}
		return a.Coin < b.Coin
	})

	return table
}

// NewFillRecord normalizes one raw fill into a row tagged with the
// entry's display label. The live stream path uses it too.
func NewFillRecord(fill hyperliquid.Fill, entry watchlist.Entry) store.FillRecord {
	price := numeric.NormalizeRaw(fill.Px)
	size := numeric.NormalizeRaw(fill.Sz)

	notional := math.NaN()
	if !math.IsNaN(price) && !math.IsNaN(size) {
		notional = price * size
	}

	return store.FillRecord{
		Time:        fillTime(fill),
		Label:       entry.Label,
		Trader:      entry.Address,
		Coin:        fill.Coin,
		Side:        fill.Side,
		Direction:   fill.Dir,
		Price:       price,
		Size:        size,
		Notional:    notional,
		ClosedPnl:   numeric.NormalizeRaw(fill.ClosedPnl),
		Fee:         numeric.NormalizeRaw(fill.Fee),
		Liquidation: liquidationFlag(fill.Liquidation),
	}
}

// buildPositionRecord normalizes one asset position. Zero-size entries are
// closed positions the API still reports; they are excluded entirely.
func buildPositionRecord(pos hyperliquid.Position, entry watchlist.Entry) (store.PositionRecord, bool) {
	size := numeric.NormalizeRaw(pos.Szi)
	if size == 0 {
		return store.PositionRecord{}, false
	}

	return store.PositionRecord{
		Label:            entry.Label,
		Trader:           entry.Address,
		Coin:             pos.Coin,
		Size:             size,
		EntryPrice:       numeric.NormalizeRaw(pos.EntryPx),
		PositionValue:    numeric.NormalizeRaw(pos.PositionValue),
		UnrealizedPnl:    numeric.NormalizeRaw(pos.UnrealizedPnl),
		ReturnOnEquity:   numeric.NormalizeRaw(pos.ReturnOnEquity),
		LiquidationPrice: numeric.NormalizeRaw(pos.LiquidationPx),
		MarginUsed:       numeric.NormalizeRaw(pos.MarginUsed),
		LeverageKind:     pos.Leverage.Type,
		LeverageValue:    numeric.NormalizeRaw(pos.Leverage.Value),
	}, true
}

// fillTime renders the fill timestamp as a fixed-width ISO-8601 UTC
// string, preferring "time" over "timestamp". Absent or malformed values
// render empty.
func fillTime(fill hyperliquid.Fill) string {
	raw := fill.Time
	if isAbsent(raw) {
		raw = fill.Timestamp
	}

	ms := numeric.NormalizeRaw(raw)
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return ""
	}

	return time.UnixMilli(int64(ms)).UTC().Format(fillTimeLayout)
}

// liquidationFlag interprets the raw liquidation field: the API reports
// either a boolean or, for liquidation fills, a detail object.
func liquidationFlag(raw json.RawMessage) bool {
	if isAbsent(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return true
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
