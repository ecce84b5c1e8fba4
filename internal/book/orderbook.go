package book

import (
	"math"
	"sync"
	"time"

	"github.com/google/btree"
)

const (
	epsilon         = 1e-9
	priceCompareEps = 1e-6
	btreeDegree     = 16
)

// OrderBook is the local replica of one symbol's limit order book: a
// descending bid ladder and an ascending ask ladder keyed by price.
//
// Writers take the exclusive lock; readers share. Every aggregate a reader
// needs is computed under a single acquisition — the locked helpers below
// never re-acquire.
type OrderBook struct {
	mu sync.RWMutex

	symbol         string
	bids           *btree.BTreeG[PriceLevel] // descending by price
	asks           *btree.BTreeG[PriceLevel] // ascending by price
	lastUpdateID   int64
	lastUpdateTime time.Time
}

// NewOrderBook creates an empty book for the symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids: btree.NewG(btreeDegree, func(a, b PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewG(btreeDegree, func(a, b PriceLevel) bool {
			return a.Price < b.Price
		}),
		lastUpdateTime: time.Now(),
	}
}

// Symbol returns the configured symbol.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// ApplySnapshot replaces both ladders. Levels with non-positive price or
// quantity are dropped.
func (ob *OrderBook) ApplySnapshot(bids, asks []PriceLevel, updateID int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids.Clear(false)
	ob.asks.Clear(false)

	for _, level := range bids {
		if level.Price > epsilon && level.Quantity > epsilon {
			ob.bids.ReplaceOrInsert(level)
		}
	}
	for _, level := range asks {
		if level.Price > epsilon && level.Quantity > epsilon {
			ob.asks.ReplaceOrInsert(level)
		}
	}

	ob.lastUpdateID = updateID
	ob.lastUpdateTime = time.Now()
}

// ApplyUpdate applies absolute per-level changes: quantity at or below
// epsilon removes the price, anything else inserts or replaces it.
func (ob *OrderBook) ApplyUpdate(bidUpdates, askUpdates []PriceLevel, updateID int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	applyLadder(ob.bids, bidUpdates)
	applyLadder(ob.asks, askUpdates)

	ob.lastUpdateID = updateID
	ob.lastUpdateTime = time.Now()
}

func applyLadder(ladder *btree.BTreeG[PriceLevel], updates []PriceLevel) {
	for _, level := range updates {
		if level.Quantity <= epsilon {
			ladder.Delete(PriceLevel{Price: level.Price})
		} else if level.Price > epsilon {
			ladder.ReplaceOrInsert(level)
		}
	}
}

// BestBid returns the highest bid price, 0 if the ladder is empty.
func (ob *OrderBook) BestBid() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestBidLocked()
}

// BestAsk returns the lowest ask price, 0 if the ladder is empty.
func (ob *OrderBook) BestAsk() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestAskLocked()
}

func (ob *OrderBook) bestBidLocked() float64 {
	if level, ok := ob.bids.Min(); ok {
		return level.Price
	}
	return 0
}

func (ob *OrderBook) bestAskLocked() float64 {
	if level, ok := ob.asks.Min(); ok {
		return level.Price
	}
	return 0
}

// Spread returns ask − bid when both sides exist and the book is not
// crossed, else 0.
func (ob *OrderBook) Spread() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid := ob.bestBidLocked()
	ask := ob.bestAskLocked()
	if bid <= epsilon || ask <= epsilon || ask <= bid {
		return 0
	}
	return ask - bid
}

// Microprice returns the notional-weighted touch price over the top
// depthLevels. With one ladder empty it returns the non-empty best; with
// both empty it returns 0.
func (ob *OrderBook) Microprice(depthLevels int) float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.micropriceLocked(depthLevels)
}

func (ob *OrderBook) micropriceLocked(depthLevels int) float64 {
	bestBid := ob.bestBidLocked()
	bestAsk := ob.bestAskLocked()

	if bestBid <= epsilon && bestAsk <= epsilon {
		return 0
	}
	if bestBid <= epsilon {
		return bestAsk
	}
	if bestAsk <= epsilon {
		return bestBid
	}

	bidVolume := ob.notionalLocked(ob.bids, depthLevels)
	askVolume := ob.notionalLocked(ob.asks, depthLevels)

	if bidVolume <= epsilon || askVolume <= epsilon {
		return (bestBid + bestAsk) * 0.5
	}

	total := bidVolume + askVolume
	return bestBid*(askVolume/total) + bestAsk*(bidVolume/total)
}

func (ob *OrderBook) notionalLocked(ladder *btree.BTreeG[PriceLevel], levels int) float64 {
	volume := 0.0
	count := 0
	ladder.Ascend(func(level PriceLevel) bool {
		if count >= levels {
			return false
		}
		volume += level.Price * level.Quantity
		count++
		return true
	})
	return volume
}

func collectLocked(ladder *btree.BTreeG[PriceLevel], levels int) []PriceLevel {
	n := ladder.Len()
	if levels < n {
		n = levels
	}
	result := make([]PriceLevel, 0, n)
	ladder.Ascend(func(level PriceLevel) bool {
		if len(result) >= levels {
			return false
		}
		result = append(result, level)
		return true
	})
	return result
}

// GetBids returns up to levels bid entries in descending price order.
func (ob *OrderBook) GetBids(levels int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return collectLocked(ob.bids, levels)
}

// GetAsks returns up to levels ask entries in ascending price order.
func (ob *OrderBook) GetAsks(levels int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return collectLocked(ob.asks, levels)
}

// GetSnapshot derives every aggregate under one reader acquisition.
// includeFullDepth additionally copies the truncated ladders.
func (ob *OrderBook) GetSnapshot(depthLevels int, includeFullDepth bool) Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snapshot := Snapshot{
		BestBid:      ob.bestBidLocked(),
		BestAsk:      ob.bestAskLocked(),
		BidVolume:    ob.notionalLocked(ob.bids, depthLevels),
		AskVolume:    ob.notionalLocked(ob.asks, depthLevels),
		Microprice:   ob.micropriceLocked(depthLevels),
		LastUpdateID: ob.lastUpdateID,
		Timestamp:    ob.lastUpdateTime,
	}

	if snapshot.BestBid > 0 && snapshot.BestAsk > snapshot.BestBid {
		snapshot.Spread = snapshot.BestAsk - snapshot.BestBid
	}

	if includeFullDepth {
		snapshot.Bids = collectLocked(ob.bids, depthLevels)
		snapshot.Asks = collectLocked(ob.asks, depthLevels)
	}

	return snapshot
}

// GetSnapshotExcluding computes a market-excluding-self view: any level whose
// price is within 1e-6 of an excluded price is skipped during best-price
// search and volume accumulation. Used by the quoter so it does not react to
// its own resting quotes.
func (ob *OrderBook) GetSnapshotExcluding(excludeBidPrices, excludeAskPrices []float64, depthLevels int) Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snapshot := Snapshot{
		LastUpdateID: ob.lastUpdateID,
		Timestamp:    ob.lastUpdateTime,
	}

	if ob.bids.Len() == 0 || ob.asks.Len() == 0 {
		return snapshot
	}

	excluded := func(price float64, excludes []float64) bool {
		for _, ex := range excludes {
			if math.Abs(price-ex) <= priceCompareEps {
				return true
			}
		}
		return false
	}

	ob.bids.Ascend(func(level PriceLevel) bool {
		if excluded(level.Price, excludeBidPrices) {
			return true
		}
		snapshot.BestBid = level.Price
		return false
	})
	ob.asks.Ascend(func(level PriceLevel) bool {
		if excluded(level.Price, excludeAskPrices) {
			return true
		}
		snapshot.BestAsk = level.Price
		return false
	})

	if snapshot.BestBid <= epsilon || snapshot.BestAsk <= epsilon {
		return snapshot
	}
	snapshot.Spread = snapshot.BestAsk - snapshot.BestBid

	accumulate := func(ladder *btree.BTreeG[PriceLevel], excludes []float64) float64 {
		volume := 0.0
		count := 0
		ladder.Ascend(func(level PriceLevel) bool {
			if count >= depthLevels {
				return false
			}
			if excluded(level.Price, excludes) {
				return true
			}
			volume += level.Price * level.Quantity
			count++
			return true
		})
		return volume
	}

	snapshot.BidVolume = accumulate(ob.bids, excludeBidPrices)
	snapshot.AskVolume = accumulate(ob.asks, excludeAskPrices)

	total := snapshot.BidVolume + snapshot.AskVolume
	if total > epsilon {
		snapshot.Microprice = snapshot.BestBid*(snapshot.AskVolume/total) +
			snapshot.BestAsk*(snapshot.BidVolume/total)
	} else {
		snapshot.Microprice = (snapshot.BestBid + snapshot.BestAsk) * 0.5
	}

	return snapshot
}

// IsValid reports a two-sided, uncrossed book.
func (ob *OrderBook) IsValid() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.isValidLocked()
}

func (ob *OrderBook) isValidLocked() bool {
	return ob.bids.Len() > 0 && ob.asks.Len() > 0 &&
		ob.bestBidLocked() < ob.bestAskLocked()
}

// LastUpdateID returns the id of the last applied mutation.
func (ob *OrderBook) LastUpdateID() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdateID
}

// LastUpdateTime returns the wall-clock time of the last applied mutation.
func (ob *OrderBook) LastUpdateTime() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdateTime
}

// Clear resets the book to its initial state.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids.Clear(false)
	ob.asks.Clear(false)
	ob.lastUpdateID = 0
	ob.lastUpdateTime = time.Now()
}
