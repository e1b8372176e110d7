// Package main is the entry point for the Hyperliquid big trader monitor.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hlmonitor/engine/internal/aggregate"
	"github.com/hlmonitor/engine/internal/cache"
	"github.com/hlmonitor/engine/internal/config"
	"github.com/hlmonitor/engine/internal/fetch"
	"github.com/hlmonitor/engine/internal/hyperliquid"
	"github.com/hlmonitor/engine/internal/metrics"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/hlmonitor/engine/internal/stream"
	"github.com/hlmonitor/engine/internal/ui"
	"github.com/hlmonitor/engine/internal/watchlist"
)

const (
	// FillChannelBuffer is the size of the buffered live fill channel
	FillChannelBuffer = 256
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("monitor starting",
		"version", "1.0.0",
	)

	slog.Info("config_loaded",
		"api_url", cfg.APIURL,
		"ws_url", cfg.WSURL,
		"watchlist_path", cfg.WatchlistPath,
		"max_fills", cfg.MaxFills,
		"window_hours", cfg.WindowHours,
		"aggregate_by_time", cfg.AggregateByTime,
		"cache_ttl", cfg.CacheTTL,
		"refresh_interval", cfg.RefreshInterval,
		"auto_refresh", cfg.AutoRefresh,
		"worker_count", cfg.WorkerCount,
		"enable_stream", cfg.EnableStream,
		"enable_tui", cfg.EnableTUI,
	)

	// Load the watch-list
	entries, err := watchlist.Load(cfg.WatchlistPath)
	if err != nil {
		slog.Error("failed to load watchlist", "path", cfg.WatchlistPath, "error", err)
		os.Exit(1)
	}
	entries = watchlist.Clean(entries)
	if len(entries) == 0 {
		slog.Error("watchlist is empty, add at least one trader address", "path", cfg.WatchlistPath)
		os.Exit(1)
	}
	slog.Info("watchlist_loaded", "entries", len(entries))

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wire the polling core
	tracker := metrics.NewTracker()
	ttlCache := cache.New()
	client := hyperliquid.NewClient(cfg.APIURL)
	fetcher := fetch.New(client, ttlCache, cfg.CacheTTL, tracker)
	pipeline := aggregate.NewPipeline(fetcher, aggregate.Options{
		WindowHours:     cfg.WindowHours,
		MaxFills:        cfg.MaxFills,
		AggregateByTime: cfg.AggregateByTime,
		Workers:         cfg.WorkerCount,
	})

	resultChan := make(chan aggregate.Result, 1)
	fillChan := make(chan store.FillRecord, FillChannelBuffer)
	refreshChan := make(chan struct{}, 1)

	runCycle := func() {
		started := time.Now()
		result := pipeline.Run(ctx, time.Now(), entries)
		tracker.RecordCycle(time.Since(started),
			len(result.Fills.Rows), len(result.Positions.Rows),
			len(result.Fills.Errors), len(result.Positions.Errors))

		// A newer result supersedes an unconsumed older one.
		select {
		case resultChan <- result:
		default:
			select {
			case <-resultChan:
			default:
			}
			resultChan <- result
		}

		slog.Info("cycle_complete",
			"fills", len(result.Fills.Rows),
			"positions", len(result.Positions.Rows),
			"fill_errors", len(result.Fills.Errors),
			"position_errors", len(result.Positions.Errors),
			"duration", time.Since(started),
		)
	}

	// Scheduler: first cycle immediately, then ticker and manual refreshes
	go func() {
		runCycle()

		var tick <-chan time.Time
		if cfg.AutoRefresh {
			ticker := time.NewTicker(cfg.RefreshInterval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				runCycle()
			case <-refreshChan:
				runCycle()
			}
		}
	}()

	// Start the optional live fill stream
	var listener *stream.Listener
	if cfg.EnableStream {
		listener = stream.NewListener(cfg.WSURL, entries, fillChan, tracker)
		listener.Start(ctx)
		slog.Info("stream_started", "url", cfg.WSURL, "addresses", len(entries))
	}

	forceRefresh := func() {
		ttlCache.Clear()
		select {
		case refreshChan <- struct{}{}:
		default:
		}
	}

	slog.Info("monitor_started",
		"tracking", len(entries),
		"window_hours", cfg.WindowHours,
		"tui_enabled", cfg.EnableTUI,
	)

	if cfg.EnableTUI {
		// TUI mode (blocking)
		app := ui.NewApp(resultChan, fillChan, tracker, forceRefresh)
		app.SetTrackedCount(len(entries))

		// Start TUI in goroutine so we can still handle signals. Run
		// returning for any reason, error or user quit, ends the process.
		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
			cancel()
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			app.Stop()
		case <-ctx.Done():
			app.Stop()
		}
	} else {
		// Headless mode - log tables as they complete
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case result := <-resultChan:
					logTables(result)
				case fill := <-fillChan:
					slog.Info("live_fill",
						"label", fill.Label,
						"coin", fill.Coin,
						"side", fill.Side,
						"price", fill.Price,
						"size", fill.Size,
					)
				}
			}
		}()

		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
	}

	cancel()

	if listener != nil {
		slog.Info("shutting_down", "status", "stopping stream listener")
		listener.Stop()
	}

	slog.Info("shutdown_complete")
}

// logTables reports one cycle's output in headless mode.
func logTables(result aggregate.Result) {
	for _, row := range result.Fills.Rows {
		slog.Info("fill",
			"time", row.Time,
			"label", row.Label,
			"coin", row.Coin,
			"side", row.Side,
			"price", row.Price,
			"size", row.Size,
			"notional", row.Notional,
		)
	}
	for _, row := range result.Positions.Rows {
		slog.Info("position",
			"label", row.Label,
			"coin", row.Coin,
			"size", row.Size,
			"entry", row.EntryPrice,
			"upnl", row.UnrealizedPnl,
		)
	}
	for _, e := range result.Fills.Errors {
		slog.Warn("fills_fetch_failed", "address", e.Address, "error", e.Message)
	}
	for _, e := range result.Positions.Errors {
		slog.Warn("positions_fetch_failed", "address", e.Address, "error", e.Message)
	}
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
