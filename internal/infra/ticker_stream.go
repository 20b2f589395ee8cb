package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/store"

	"github.com/gorilla/websocket"
)

const (
	streamMaxRetries   = 10
	streamPingInterval = 30 * time.Second
	streamReadTimeout  = 60 * time.Second
	streamMaxSymbols   = 100
)

// StreamObserver receives connection and tick events.
type StreamObserver interface {
	ObserveStream(connected bool)
	ObserveTick()
}

// tickMessage is one ticker frame. Numbers may arrive as strings.
type tickMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Price  any    `json:"price"`
	Change any    `json:"change"`
}

// subscribeMessage asks the feed for updates on ids.
type subscribeMessage struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// TickerStream keeps the visible table prices live over a websocket.
// It follows the ids of the current page and applies ticks to matching entries.
type TickerStream struct {
	url      string
	st       *store.Store
	observer StreamObserver
	backoff  Backoff

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	ids       []string
	ticks     uint64

	sub    *store.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTickerStream creates a stream for url. observer may be nil.
func NewTickerStream(url string, st *store.Store, observer StreamObserver) *TickerStream {
	return &TickerStream{
		url:      url,
		st:       st,
		observer: observer,
		backoff:  DefaultBackoff,
	}
}

// Start connects in the background and follows the table's ids.
func (w *TickerStream) Start(ctx context.Context) error {
	if w.url == "" {
		return errors.New("ticker stream: no url configured")
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.setIDs(entryIDs(w.st.State().Entries))
	w.sub = w.st.Subscribe(func(next domain.DashboardState, delta *store.Delta, _ domain.DashboardState) {
		if !delta.Has("entries") {
			return
		}
		ids := entryIDs(next.Entries)
		if w.setIDs(ids) && w.IsConnected() {
			if err := w.subscribe(ids); err != nil {
				slog.Warn("Ticker resubscribe failed", slog.Any("error", err))
			}
		}
	})

	w.patchStatus(false)

	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// setIDs stores ids and reports whether the set changed.
func (w *TickerStream) setIDs(ids []string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Equal(w.ids, ids) {
		return false
	}
	w.ids = ids
	return true
}

func entryIDs(entries []domain.MarketEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) > streamMaxSymbols {
		ids = ids[:streamMaxSymbols]
	}
	return ids
}

// connectionLoop handles connection and reconnection with exponential backoff
func (w *TickerStream) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Ticker stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Ticker stream loop stopped")
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Ticker stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := w.backoff.Delay(retryCount)
			retryCount++
			if retryCount > streamMaxRetries {
				slog.Error("Ticker stream max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *TickerStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	header := make(http.Header)
	header.Add("User-Agent", DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	ids := w.ids
	w.mu.Unlock()

	if err := w.subscribe(ids); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	if w.observer != nil {
		w.observer.ObserveStream(true)
	}
	w.patchStatus(true)
	slog.Info("Ticker stream connected", slog.Int("ids", len(ids)))
	return nil
}

func (w *TickerStream) subscribe(ids []string) error {
	msg, err := json.Marshal(subscribeMessage{Type: "subscribe", IDs: ids})
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, msg)
}

func (w *TickerStream) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return conn.WriteMessage(messageType, data)
}

func (w *TickerStream) readLoop(ctx context.Context) {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go w.pingLoop(pingDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Ticker stream read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

func (w *TickerStream) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage accepts a single tick object or an array of them.
func (w *TickerStream) handleMessage(message []byte) {
	var batch []tickMessage
	if err := json.Unmarshal(message, &batch); err != nil {
		var one tickMessage
		if err := json.Unmarshal(message, &one); err != nil {
			slog.Debug("Ticker message parse error", slog.Any("error", err))
			return
		}
		batch = []tickMessage{one}
	}

	ticks := make([]domain.Tick, 0, len(batch))
	for _, m := range batch {
		if m.Type != "" && m.Type != "ticker" {
			continue
		}
		ticks = append(ticks, domain.Tick{
			ID:     m.ID,
			Symbol: m.Symbol,
			Price:  domain.ParseNum(m.Price),
			Change: domain.ParseNum(m.Change),
		})
	}
	if len(ticks) == 0 {
		return
	}

	w.st.Apply(func(prev domain.DashboardState) *store.Delta {
		entries, changed := domain.ApplyTicks(prev.Entries, ticks)
		if changed == 0 {
			return nil
		}
		w.ticks += uint64(changed)
		status := prev.Stream
		status.Ticks = w.ticks
		return store.NewDelta().SetEntries(entries).SetStream(status)
	})

	if w.observer != nil {
		for range ticks {
			w.observer.ObserveTick()
		}
	}
}

func (w *TickerStream) patchStatus(connected bool) {
	w.st.Apply(func(prev domain.DashboardState) *store.Delta {
		status := prev.Stream
		status.Enabled = true
		status.Connected = connected
		if status == prev.Stream {
			return nil
		}
		return store.NewDelta().SetStream(status)
	})
}

func (w *TickerStream) closeConnection() {
	w.mu.Lock()
	wasConnected := w.connected
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	w.mu.Unlock()

	if wasConnected {
		if w.observer != nil {
			w.observer.ObserveStream(false)
		}
		w.patchStatus(false)
	}
}

// Stop closes the connection and waits for the loop to exit.
func (w *TickerStream) Stop() {
	if w.sub != nil {
		w.sub.Unsubscribe()
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Ticker stream stopped")
}

// IsConnected returns connection status
func (w *TickerStream) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
