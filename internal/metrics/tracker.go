// Package metrics provides real-time metrics tracking for the system.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of metrics.
type Snapshot struct {
	Cycles            int64
	UpstreamCalls     int64
	CacheHits         int64
	LastCycleAt       time.Time
	LastCycleDuration time.Duration
	FillRows          int
	PositionRows      int
	FillErrors        int
	PositionErrors    int
	StreamStatus      string
	StreamFills       int64
	Uptime            time.Duration
}

// Tracker provides thread-safe metrics tracking across poll cycles.
type Tracker struct {
	mu                sync.RWMutex
	cycles            int64
	upstreamCalls     int64
	cacheHits         int64
	lastCycleAt       time.Time
	lastCycleDuration time.Duration
	fillRows          int
	positionRows      int
	fillErrors        int
	positionErrors    int
	streamStatus      string
	streamFills       int64
	startTime         time.Time
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		streamStatus: "disabled",
		startTime:    time.Now(),
	}
}

// RecordUpstreamCall counts one call that went to the exchange API.
func (t *Tracker) RecordUpstreamCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upstreamCalls++
}

// RecordCacheHit counts one fetch served from the TTL cache.
func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheHits++
}

// RecordCycle stores the outcome of one completed poll cycle.
func (t *Tracker) RecordCycle(duration time.Duration, fillRows, positionRows, fillErrors, positionErrors int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles++
	t.lastCycleAt = time.Now()
	t.lastCycleDuration = duration
	t.fillRows = fillRows
	t.positionRows = positionRows
	t.fillErrors = fillErrors
	t.positionErrors = positionErrors
}

// SetStreamStatus updates the live stream connection state.
func (t *Tracker) SetStreamStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamStatus = status
}

// IncrementStreamFills counts one fill delivered over the live stream.
func (t *Tracker) IncrementStreamFills() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamFills++
}

// Snapshot returns a consistent copy of the current metrics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Snapshot{
		Cycles:            t.cycles,
		UpstreamCalls:     t.upstreamCalls,
		CacheHits:         t.cacheHits,
		LastCycleAt:       t.lastCycleAt,
		LastCycleDuration: t.lastCycleDuration,
		FillRows:          t.fillRows,
		PositionRows:      t.positionRows,
		FillErrors:        t.fillErrors,
		PositionErrors:    t.positionErrors,
		StreamStatus:      t.streamStatus,
		StreamFills:       t.streamFills,
		Uptime:            time.Since(t.startTime),
	}
}
