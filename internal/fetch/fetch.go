// Package fetch provides cache-backed access to per-address API data.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/hlmonitor/engine/internal/cache"
	"github.com/hlmonitor/engine/internal/hyperliquid"
)

// Client is the transport surface the fetchers need.
type Client interface {
	UserFillsByTime(ctx context.Context, user string, startMs, endMs int64, aggregateByTime bool) ([]hyperliquid.Fill, error)
	ClearinghouseState(ctx context.Context, user string) (hyperliquid.ClearinghouseState, error)
}

// Stats receives cache hit/miss accounting. May be nil.
type Stats interface {
	RecordUpstreamCall()
	RecordCacheHit()
}

// Fetcher memoizes transport calls through a shared TTL cache so repeated
// refresh cycles inside the TTL do not re-issue identical upstream calls.
type Fetcher struct {
	client Client
	cache  *cache.Cache
	ttl    time.Duration
	stats  Stats
}

// New creates a Fetcher. A non-positive ttl selects the default.
func New(client Client, c *cache.Cache, ttl time.Duration, stats Stats) *Fetcher {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Fetcher{
		client: client,
		cache:  c,
		ttl:    ttl,
		stats:  stats,
	}
}

// Fills returns the fills for one address and window, in upstream order.
// The cache key carries every logical parameter of the call.
func (f *Fetcher) Fills(ctx context.Context, address string, startMs, endMs int64, aggregateByTime bool) ([]hyperliquid.Fill, error) {
	key := fmt.Sprintf("fills|%s|%d|%d|%t", address, startMs, endMs, aggregateByTime)

	computed := false
	v, err := f.cache.GetOrCompute(key, f.ttl, func() (any, error) {
		computed = true
		return f.client.UserFillsByTime(ctx, address, startMs, endMs, aggregateByTime)
	})
	f.record(computed)
	if err != nil {
		return nil, err
	}
	return v.([]hyperliquid.Fill), nil
}

// Positions returns the clearinghouse snapshot for one address.
func (f *Fetcher) Positions(ctx context.Context, address string) (hyperliquid.ClearinghouseState, error) {
	key := "positions|" + address

	computed := false
	v, err := f.cache.GetOrCompute(key, f.ttl, func() (any, error) {
		computed = true
		return f.client.ClearinghouseState(ctx, address)
	})
	f.record(computed)
	if err != nil {
		return hyperliquid.ClearinghouseState{}, err
	}
	return v.(hyperliquid.ClearinghouseState), nil
}

func (f *Fetcher) record(computed bool) {
	if f.stats == nil {
		return
	}
	if computed {
		f.stats.RecordUpstreamCall()
	} else {
		f.stats.RecordCacheHit()
	}
}
