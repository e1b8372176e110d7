package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hlmonitor/engine/internal/aggregate"
	"github.com/hlmonitor/engine/internal/metrics"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/hlmonitor/engine/internal/watchlist"
)

// Reconnection and heartbeat constants
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0
	JitterPercent  = 0.2

	// The exchange drops connections idle for 60s; ping well before that.
	PingInterval = 30 * time.Second

	WriteTimeout = 10 * time.Second
	ReadTimeout  = 90 * time.Second
)

// Listener manages the WebSocket connection to Hyperliquid and delivers
// live fills for the watched addresses between poll cycles.
type Listener struct {
	url      string
	entries  []watchlist.Entry
	fillChan chan<- store.FillRecord
	tracker  *metrics.Tracker

	conn     *websocket.Conn
	connMu   sync.Mutex
	backoff  time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewListener creates a new WebSocket listener for the given watch-list.
func NewListener(url string, entries []watchlist.Entry, fillChan chan<- store.FillRecord, tracker *metrics.Tracker) *Listener {
	return &Listener{
		url:      url,
		entries:  entries,
		fillChan: fillChan,
		tracker:  tracker,
		backoff:  InitialBackoff,
		stopChan: make(chan struct{}),
	}
}

// Start begins the listener with automatic reconnection.
func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.runLoop(ctx)

	l.wg.Add(1)
	go l.pingLoop(ctx)
}

// Stop gracefully shuts down the listener.
func (l *Listener) Stop() {
	close(l.stopChan)
	l.closeConnection()
	l.wg.Wait()
}

// runLoop handles connection, reading, and reconnection.
func (l *Listener) runLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ws_loop_stopping", "reason", "context cancelled")
			return
		case <-l.stopChan:
			slog.Info("ws_loop_stopping", "reason", "stop signal")
			return
		default:
		}

		if err := l.connect(ctx); err != nil {
			slog.Error("ws_connect_failed", "error", err, "backoff", l.backoff)
			l.tracker.SetStreamStatus("reconnecting")
			l.waitBackoff(ctx)
			continue
		}
		l.tracker.SetStreamStatus("connected")

		if err := l.readLoop(ctx); err != nil {
			slog.Warn("ws_read_error", "error", err)
		}

		l.closeConnection()
		l.tracker.SetStreamStatus("disconnected")

		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		default:
			l.waitBackoff(ctx)
		}
	}
}

// connect establishes the connection and subscribes to each address's
// userFills channel.
func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	// Reset backoff on successful connection
	l.backoff = InitialBackoff

	slog.Info("ws_connected", "endpoint", l.url)

	if err := l.subscribe(); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	return nil
}

// subscribe sends one userFills subscription per watched address.
func (l *Listener) subscribe() error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	for _, entry := range l.entries {
		msg := map[string]any{
			"method": "subscribe",
			"subscription": map[string]any{
				"type": "userFills",
				"user": entry.Address,
			},
		}

		l.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := l.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("failed to send subscribe message: %w", err)
		}
	}

	slog.Info("ws_subscribed", "channel", "userFills", "address_count", len(l.entries))
	return nil
}

// readLoop reads messages until the connection fails.
func (l *Listener) readLoop(ctx context.Context) error {
	labels := labelIndex(l.entries)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopChan:
			return nil
		default:
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		l.handleMessage(message, labels)
	}
}

// handleMessage parses a message and dispatches live fills. The snapshot
// batch sent after subscribing is skipped; the poller owns history.
func (l *Listener) handleMessage(data []byte, labels map[string]watchlist.Entry) {
	payload, channel, err := parseMessage(data)
	if err != nil {
		slog.Debug("ws_parse_error", "error", err)
		return
	}
	if payload == nil {
		if channel != "" && channel != "pong" {
			slog.Debug("ws_message", "channel", channel)
		}
		return
	}
	if payload.IsSnapshot {
		slog.Debug("ws_snapshot_skipped", "user", payload.User, "fills", len(payload.Fills))
		return
	}

	entry, ok := labels[payload.User]
	if !ok {
		entry = watchlist.Entry{Label: payload.User, Address: payload.User}
	}

	for _, fill := range payload.Fills {
		record := aggregate.NewFillRecord(fill, entry)
		select {
		case l.fillChan <- record:
			l.tracker.IncrementStreamFills()
		default:
			slog.Warn("fill_channel_full", "user", payload.User)
		}
	}
}

// pingLoop keeps the connection alive.
func (l *Listener) pingLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.sendPing()
		}
	}
}

// sendPing writes the application-level ping the exchange expects.
func (l *Listener) sendPing() {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn == nil {
		return
	}

	l.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := l.conn.WriteJSON(map[string]any{"method": "ping"}); err != nil {
		slog.Warn("ws_ping_failed", "error", err)
		l.conn.Close()
		l.conn = nil
	}
}

// closeConnection safely closes the WebSocket connection.
func (l *Listener) closeConnection() {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
		slog.Info("ws_disconnected")
	}
}

// waitBackoff waits for the backoff duration with jitter.
func (l *Listener) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(l.backoff) * JitterPercent * (rand.Float64()*2 - 1))
	wait := l.backoff + jitter

	slog.Debug("ws_waiting_backoff", "duration", wait)

	select {
	case <-ctx.Done():
	case <-l.stopChan:
	case <-time.After(wait):
	}

	l.backoff = time.Duration(float64(l.backoff) * BackoffFactor)
	if l.backoff > MaxBackoff {
		l.backoff = MaxBackoff
	}
}

// labelIndex maps addresses to their watch-list entries. For duplicate
// addresses the first entry wins; live fills have no per-occurrence
// identity to distinguish them.
func labelIndex(entries []watchlist.Entry) map[string]watchlist.Entry {
	index := make(map[string]watchlist.Entry, len(entries))
	for _, e := range entries {
		if _, ok := index[e.Address]; !ok {
			index[e.Address] = e
		}
	}
	return index
}
