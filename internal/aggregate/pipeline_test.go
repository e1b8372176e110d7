package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hlmonitor/engine/internal/hyperliquid"
	"github.com/hlmonitor/engine/internal/watchlist"
)

// fakeFetcher serves canned per-address responses.
type fakeFetcher struct {
	mu        sync.Mutex
	fills     map[string][]hyperliquid.Fill
	fillsErr  map[string]error
	states    map[string]hyperliquid.ClearinghouseState
	statesErr map[string]error
	fillCalls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fills:     make(map[string][]hyperliquid.Fill),
		fillsErr:  make(map[string]error),
		states:    make(map[string]hyperliquid.ClearinghouseState),
		statesErr: make(map[string]error),
		fillCalls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fills(ctx context.Context, address string, startMs, endMs int64, aggregateByTime bool) ([]hyperliquid.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillCalls[address]++
	if err := f.fillsErr[address]; err != nil {
		return nil, err
	}
	return f.fills[address], nil
}

func (f *fakeFetcher) Positions(ctx context.Context, address string) (hyperliquid.ClearinghouseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statesErr[address]; err != nil {
		return hyperliquid.ClearinghouseState{}, err
	}
	return f.states[address], nil
}

func rawFill(timeMs int64, coin, side, px, sz string) hyperliquid.Fill {
	return hyperliquid.Fill{
		Time: json.RawMessage(fmt.Sprintf("%d", timeMs)),
		Coin: coin,
		Side: side,
		Px:   json.RawMessage(fmt.Sprintf("%q", px)),
		Sz:   json.RawMessage(fmt.Sprintf("%q", sz)),
	}
}

func rawPosition(coin, szi string) hyperliquid.AssetPosition {
	return hyperliquid.AssetPosition{
		Type: "oneWay",
		Position: hyperliquid.Position{
			Coin: coin,
			Szi:  json.RawMessage(fmt.Sprintf("%q", szi)),
		},
	}
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFillNotional(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0x1"] = []hyperliquid.Fill{
		{
			Time:      json.RawMessage(`1000`),
			Coin:      "BTC",
			Side:      "B",
			Px:        json.RawMessage(`"100.5"`),
			Sz:        json.RawMessage(`"2"`),
			ClosedPnl: json.RawMessage(`"0"`),
			Fee:       json.RawMessage(`"0.1"`),
		},
	}

	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	if len(result.Fills.Rows) != 1 {
		t.Fatalf("expected 1 fill row, got %d", len(result.Fills.Rows))
	}
	row := result.Fills.Rows[0]
	if row.Notional != 201.0 {
		t.Errorf("notional = %v, want 201.0", row.Notional)
	}
	if row.Label != "A" || row.Trader != "0x1" || row.Coin != "BTC" {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.Fee != 0.1 {
		t.Errorf("fee = %v, want 0.1", row.Fee)
	}
	if len(result.Fills.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Fills.Errors)
	}
}

func TestNotionalNaNPropagation(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0x1"] = []hyperliquid.Fill{
		{Time: json.RawMessage(`1000`), Coin: "BTC", Px: json.RawMessage(`"garbage"`), Sz: json.RawMessage(`"2"`)},
		{Time: json.RawMessage(`2000`), Coin: "ETH", Px: json.RawMessage(`"10"`), Sz: nil},
	}

	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	if len(result.Fills.Rows) != 2 {
		t.Fatalf("NaN rows must not be dropped, got %d rows", len(result.Fills.Rows))
	}
	for _, row := range result.Fills.Rows {
		if !math.IsNaN(row.Notional) {
			t.Errorf("%s: notional = %v, want NaN", row.Coin, row.Notional)
		}
	}
}

func TestZeroSizePositionsExcluded(t *testing.T) {
	f := newFakeFetcher()
	f.states["0x1"] = hyperliquid.ClearinghouseState{
		AssetPositions: []hyperliquid.AssetPosition{rawPosition("ETH", "0")},
	}

	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	if len(result.Positions.Rows) != 0 {
		t.Errorf("expected empty positions table, got %d rows", len(result.Positions.Rows))
	}
	if len(result.Positions.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Positions.Errors)
	}
}

func TestNaNSizePositionsKept(t *testing.T) {
	f := newFakeFetcher()
	f.states["0x1"] = hyperliquid.ClearinghouseState{
		AssetPositions: []hyperliquid.AssetPosition{rawPosition("ETH", "broken")},
	}

	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	if len(result.Positions.Rows) != 1 {
		t.Fatalf("NaN-size row must be kept, got %d rows", len(result.Positions.Rows))
	}
	if !math.IsNaN(result.Positions.Rows[0].Size) {
		t.Errorf("size = %v, want NaN", result.Positions.Rows[0].Size)
	}
}

func TestPerAddressFailureIsolation(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0xgood"] = []hyperliquid.Fill{rawFill(1000, "BTC", "B", "50", "1")}
	f.fillsErr["0xbad"] = errors.New("timeout")
	f.statesErr["0xbad"] = errors.New("timeout")

	p := NewPipeline(f, Options{})
	entries := []watchlist.Entry{
		{Label: "Good", Address: "0xgood"},
		{Label: "Bad", Address: "0xbad"},
	}
	result := p.Run(context.Background(), testNow, entries)

	if len(result.Fills.Rows) != 1 {
		t.Errorf("expected 1 fill row from surviving address, got %d", len(result.Fills.Rows))
	}
	if len(result.Fills.Errors) != 1 || result.Fills.Errors[0].Address != "0xbad" {
		t.Errorf("unexpected fill errors: %v", result.Fills.Errors)
	}
	if len(result.Positions.Errors) != 1 || result.Positions.Errors[0].Address != "0xbad" {
		t.Errorf("unexpected position errors: %v", result.Positions.Errors)
	}
}

func TestAllAddressesFailing(t *testing.T) {
	f := newFakeFetcher()
	entries := make([]watchlist.Entry, 3)
	for i := range entries {
		addr := fmt.Sprintf("0x%d", i)
		entries[i] = watchlist.Entry{Label: addr, Address: addr}
		f.fillsErr[addr] = errors.New("down")
		f.statesErr[addr] = errors.New("down")
	}

	p := NewPipeline(f, Options{Workers: 2})
	result := p.Run(context.Background(), testNow, entries)

	// No rows but all failures present: distinguishable from a clean
	// empty result.
	if len(result.Fills.Rows) != 0 || len(result.Fills.Errors) != 3 {
		t.Errorf("fills: %d rows, %d errors", len(result.Fills.Rows), len(result.Fills.Errors))
	}
	if len(result.Positions.Rows) != 0 || len(result.Positions.Errors) != 3 {
		t.Errorf("positions: %d rows, %d errors", len(result.Positions.Rows), len(result.Positions.Errors))
	}
}

func TestMaxFillsSlicesBeforeSorting(t *testing.T) {
	f := newFakeFetcher()
	// Upstream order is oldest-first here; the cap keeps the first two in
	// that order, not the newest two.
	f.fills["0x1"] = []hyperliquid.Fill{
		rawFill(1000, "BTC", "B", "1", "1"),
		rawFill(2000, "ETH", "B", "1", "1"),
		rawFill(3000, "SOL", "B", "1", "1"),
	}

	p := NewPipeline(f, Options{MaxFills: 2})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	if len(result.Fills.Rows) != 2 {
		t.Fatalf("expected 2 rows after cap, got %d", len(result.Fills.Rows))
	}
	coins := []string{result.Fills.Rows[0].Coin, result.Fills.Rows[1].Coin}
	if coins[0] != "ETH" || coins[1] != "BTC" {
		t.Errorf("expected ETH,BTC (first two entries sorted desc), got %v", coins)
	}
}

func TestFillsSortedDescendingWithAbsentTimesLast(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0x1"] = []hyperliquid.Fill{
		rawFill(1000, "OLD", "B", "1", "1"),
		{Coin: "NOTIME", Px: json.RawMessage(`"1"`), Sz: json.RawMessage(`"1"`)},
		rawFill(5000, "NEW", "B", "1", "1"),
	}

	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, []watchlist.Entry{{Label: "A", Address: "0x1"}})

	coins := make([]string, 0, 3)
	for _, row := range result.Fills.Rows {
		coins = append(coins, row.Coin)
	}
	want := []string{"NEW", "OLD", "NOTIME"}
	for i := range want {
		if coins[i] != want[i] {
			t.Fatalf("order = %v, want %v", coins, want)
		}
	}
	if result.Fills.Rows[2].Time != "" {
		t.Errorf("absent timestamp should render empty, got %q", result.Fills.Rows[2].Time)
	}
}

func TestPositionsSortedByTraderThenCoin(t *testing.T) {
	f := newFakeFetcher()
	f.states["0xb"] = hyperliquid.ClearinghouseState{
		AssetPositions: []hyperliquid.AssetPosition{rawPosition("ETH", "1"), rawPosition("BTC", "2")},
	}
	f.states["0xa"] = hyperliquid.ClearinghouseState{
		AssetPositions: []hyperliquid.AssetPosition{rawPosition("SOL", "-3")},
	}

	p := NewPipeline(f, Options{})
	entries := []watchlist.Entry{
		{Label: "B", Address: "0xb"},
		{Label: "A", Address: "0xa"},
	}
	result := p.Run(context.Background(), testNow, entries)

	if len(result.Positions.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Positions.Rows))
	}
	got := make([]string, 0, 3)
	for _, row := range result.Positions.Rows {
		got = append(got, row.Trader+"/"+row.Coin)
	}
	want := []string{"0xa/SOL", "0xb/BTC", "0xb/ETH"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDuplicateAddressesKeepOwnLabels(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0x1"] = []hyperliquid.Fill{rawFill(1000, "BTC", "B", "1", "1")}

	p := NewPipeline(f, Options{})
	entries := []watchlist.Entry{
		{Label: "First", Address: "0x1"},
		{Label: "Second", Address: "0x1"},
	}
	result := p.Run(context.Background(), testNow, entries)

	if len(result.Fills.Rows) != 2 {
		t.Fatalf("expected one row per occurrence, got %d", len(result.Fills.Rows))
	}
	labels := map[string]bool{}
	for _, row := range result.Fills.Rows {
		labels[row.Label] = true
	}
	if !labels["First"] || !labels["Second"] {
		t.Errorf("expected both labels present, got %v", labels)
	}
}

func TestEmptyWatchlist(t *testing.T) {
	f := newFakeFetcher()
	p := NewPipeline(f, Options{})
	result := p.Run(context.Background(), testNow, nil)

	if len(result.Fills.Rows) != 0 || len(result.Fills.Errors) != 0 {
		t.Errorf("expected clean empty fills table")
	}
	if len(f.fillCalls) != 0 {
		t.Errorf("expected zero fetches for empty watch-list, got %v", f.fillCalls)
	}
}

func TestLiquidationFlag(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"null", false},
		{"false", false},
		{"true", true},
		{`{"liquidatedUser": "0x1"}`, true},
	}
	for _, tc := range cases {
		got := liquidationFlag(json.RawMessage(tc.raw))
		if got != tc.want {
			t.Errorf("liquidationFlag(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestRunIsDeterministicForFixedNow(t *testing.T) {
	f := newFakeFetcher()
	f.fills["0x1"] = []hyperliquid.Fill{
		rawFill(1000, "BTC", "B", "100", "2"),
		rawFill(2000, "ETH", "A", "50", "1"),
	}
	f.states["0x1"] = hyperliquid.ClearinghouseState{
		AssetPositions: []hyperliquid.AssetPosition{rawPosition("BTC", "2")},
	}

	p := NewPipeline(f, Options{Workers: 3})
	entries := []watchlist.Entry{{Label: "A", Address: "0x1"}}

	first := p.Run(context.Background(), testNow, entries)
	second := p.Run(context.Background(), testNow, entries)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
}

func TestWindowAnchoredAtNow(t *testing.T) {
	w := WindowEnding(testNow, 24)
	if w.EndMs() != testNow.UnixMilli() {
		t.Errorf("end = %d, want %d", w.EndMs(), testNow.UnixMilli())
	}
	if w.EndMs()-w.StartMs() != 24*time.Hour.Milliseconds() {
		t.Errorf("window length = %dms", w.EndMs()-w.StartMs())
	}
}
