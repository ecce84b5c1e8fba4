package book

import "time"

// PriceLevel is one rung of a depth ladder. Quantity zero denotes deletion
// when it appears in a delta.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthFrame is a decoded depth message from the aggregated stream. Either
// side may be absent; FromVersion/ToVersion are the venue's continuity
// markers (opaque strings that parse as integers on this venue). UpdateID is
// the legacy fallback field carried by some wrappers.
type DepthFrame struct {
	Bids        []PriceLevel
	Asks        []PriceLevel
	FromVersion string
	ToVersion   string
	UpdateID    int64
}

// RestDepth is the REST bootstrap snapshot.
type RestDepth struct {
	Bids         []PriceLevel
	Asks         []PriceLevel
	LastUpdateID int64
}

// Snapshot is an immutable view of the book handed to observers. Volumes are
// notional sums over the truncation depth. Ladders are populated only when a
// full snapshot is requested.
type Snapshot struct {
	BestBid      float64
	BestAsk      float64
	Spread       float64
	BidVolume    float64
	AskVolume    float64
	Microprice   float64
	LastUpdateID int64
	Timestamp    time.Time

	Bids []PriceLevel
	Asks []PriceLevel
}

// Valid reports whether the snapshot shows a two-sided, uncrossed book.
func (s Snapshot) Valid() bool {
	return s.BestBid > 0 && s.BestAsk > 0 && s.BestBid < s.BestAsk
}

// InvalidReason names the first diagnostic for an invalid snapshot.
func (s Snapshot) InvalidReason() string {
	switch {
	case s.BestBid <= 0 && s.BestAsk <= 0:
		return "empty book"
	case s.BestBid <= 0:
		return "empty bids"
	case s.BestAsk <= 0:
		return "empty asks"
	case s.BestBid >= s.BestAsk:
		return "crossed"
	default:
		return ""
	}
}

// UpdateSink receives a precomputed snapshot after every processed frame.
// The sink is invoked with no book lock held and must not require writer
// access to the manager it is registered on.
type UpdateSink func(Snapshot)

// DepthFetcher provides the REST bootstrap snapshot.
type DepthFetcher interface {
	Depth(symbol string, limit int) (RestDepth, error)
}

// DepthStream is the subscription surface of the WS transport. The stream
// delivers decoded frames to the installed handler from its own reader
// goroutine; framing, reconnect and keepalive are its responsibility.
type DepthStream interface {
	SubscribeDepth(symbol string) error
	UnsubscribeDepth(symbol string) error
	SetDepthHandler(handler func(DepthFrame) bool)
}
