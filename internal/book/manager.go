package book

import (
	"log/slog"
	"sync"
	"time"
)

const (
	restBootstrapLevels = 100
	snapshotDepthLevels = 20
)

// Manager owns the order book replica for one symbol. It bootstraps from a
// REST snapshot, applies stream deltas through the version gate, and fans a
// precomputed snapshot out to the installed observer after every processed
// frame.
//
// Frames arrive from the transport goroutine; the observer may live on any
// other goroutine (the viewer's render loop, typically). The manager owns
// the book exclusively — consumers only ever see snapshots or the shared
// read-only handle.
type Manager struct {
	symbol    string
	orderbook *OrderBook
	gate      VersionGate
	latency   *LatencyTracker

	sinkMu   sync.Mutex
	sink     UpdateSink
	inFlight sync.WaitGroup

	subscribed bool
}

// NewManager creates a manager for the symbol.
func NewManager(symbol string) *Manager {
	return &Manager{
		symbol:    symbol,
		orderbook: NewOrderBook(symbol),
		latency:   NewLatencyTracker(0),
	}
}

// Subscribe is idempotent. With a REST handle it first seeds the book from a
// depth fetch, then installs the frame handler and issues the stream
// subscription. It returns false if the subscription send fails.
func (m *Manager) Subscribe(stream DepthStream, rest DepthFetcher) bool {
	if m.subscribed {
		return true
	}

	if rest != nil {
		m.bootstrapFromRest(rest)
	}

	stream.SetDepthHandler(m.OnFrame)

	if err := stream.SubscribeDepth(m.symbol); err != nil {
		slog.Error("[OrderBook] Depth subscription failed", "symbol", m.symbol, "err", err)
		return false
	}

	m.subscribed = true
	return true
}

func (m *Manager) bootstrapFromRest(rest DepthFetcher) {
	slog.Info("[OrderBook] Fetching initial snapshot from REST API...", "symbol", m.symbol)

	depth, err := rest.Depth(m.symbol, restBootstrapLevels)
	if err != nil {
		slog.Error("[OrderBook] Failed to fetch initial snapshot; continuing with stream only",
			"symbol", m.symbol, "err", err)
		return
	}

	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		slog.Warn("[OrderBook] Snapshot has empty bids or asks",
			"bids", len(depth.Bids), "asks", len(depth.Asks))
		return
	}

	m.orderbook.ApplySnapshot(depth.Bids, depth.Asks, depth.LastUpdateID)
	m.gate.NoteSnapshot(depth.LastUpdateID)

	valid := m.orderbook.IsValid()
	slog.Info("[OrderBook] Initial snapshot loaded",
		"bids", len(depth.Bids), "asks", len(depth.Asks),
		"version", depth.LastUpdateID, "valid", valid,
		"best_bid", m.orderbook.BestBid(), "best_ask", m.orderbook.BestAsk())

	if !valid {
		slog.Warn("[OrderBook] Snapshot resulted in invalid orderbook",
			"best_bid", m.orderbook.BestBid(), "best_ask", m.orderbook.BestAsk())
	}
}

// Unsubscribe sends the stream unsubscribe if currently subscribed.
func (m *Manager) Unsubscribe(stream DepthStream) {
	if !m.subscribed {
		return
	}
	if err := stream.UnsubscribeDepth(m.symbol); err != nil {
		slog.Warn("[OrderBook] Unsubscribe failed", "symbol", m.symbol, "err", err)
	}
	m.subscribed = false
}

// OnFrame is the hot path: version-gate the frame, mutate the book, record
// latency, then notify the observer with a snapshot computed before the sink
// mutex is touched. The observer runs even when the book came out invalid so
// a viewer can surface the anomaly. Returns false only when the frame was
// rejected without touching the book.
func (m *Manager) OnFrame(frame DepthFrame) bool {
	start := time.Now()

	if len(frame.Bids) == 0 && len(frame.Asks) == 0 {
		return false
	}

	updateID := DeriveUpdateID(frame)

	hasBids := len(frame.Bids) > 0
	hasAsks := len(frame.Asks) > 0

	// A frame only counts as a snapshot when the book is still unseeded and
	// the frame carries both sides; everything else is a delta of absolute
	// per-level quantities.
	isSnapshot := m.orderbook.LastUpdateID() == 0 && hasBids && hasAsks

	if !isSnapshot && !m.orderbook.IsValid() && !(hasBids && hasAsks) {
		// Single-sided delta before the book is valid: wait for a
		// both-sided frame or a REST snapshot. Checked before the
		// continuity pass so a rejected frame cannot realign the gate.
		return false
	}

	if !m.gate.CheckContinuity(frame) {
		return false
	}

	if isSnapshot {
		m.orderbook.ApplySnapshot(frame.Bids, frame.Asks, updateID)
		m.gate.NoteSnapshot(updateID)
	} else {
		m.orderbook.ApplyUpdate(frame.Bids, frame.Asks, updateID)
	}

	m.gate.Commit(frame.ToVersion, updateID)

	snapshot := m.orderbook.GetSnapshot(snapshotDepthLevels, true)
	m.latency.Record(start, time.Now())

	if !snapshot.Valid() {
		slog.Debug("[OrderBook] Book invalid after update",
			"reason", snapshot.InvalidReason(),
			"best_bid", snapshot.BestBid, "best_ask", snapshot.BestAsk)
	}

	m.notify(snapshot)
	return true
}

// notify copies the sink under the mutex, releases it, then invokes the
// copy. A panicking observer is isolated from the transport.
func (m *Manager) notify(snapshot Snapshot) {
	m.sinkMu.Lock()
	sink := m.sink
	if sink != nil {
		m.inFlight.Add(1)
	}
	m.sinkMu.Unlock()

	if sink == nil {
		return
	}
	defer m.inFlight.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[OrderBook] Update sink panicked", "panic", r)
		}
	}()
	sink(snapshot)
}

// SetUpdateSink installs or replaces the observer.
func (m *Manager) SetUpdateSink(sink UpdateSink) {
	m.sinkMu.Lock()
	m.sink = sink
	m.sinkMu.Unlock()
}

// ClearUpdateSink removes the observer and waits for any in-flight
// invocation to drain. After it returns, no sink call can touch resources
// the caller is about to destroy.
func (m *Manager) ClearUpdateSink() {
	m.sinkMu.Lock()
	m.sink = nil
	m.sinkMu.Unlock()
	m.inFlight.Wait()
}

// GetOrderBook returns the shared read handle; concurrency is the book's
// own responsibility.
func (m *Manager) GetOrderBook() *OrderBook {
	return m.orderbook
}

// LatencyTracker returns the frame-processing latency history.
func (m *Manager) LatencyTracker() *LatencyTracker {
	return m.latency
}
