package maker

import (
	"fmt"
	"log/slog"
	"math"

	"mexc_go/internal/book"
)

const priceCompareEps = 1e-6

// parseOrderBook builds the market-excluding-self view of the REST depth
// fetch: best prices and per-side notional volumes skip the quoter's own
// resting prices so the loop cannot chase its own quotes. The microprice
// weights the ex-self best prices by their level quantities; because own
// price levels are skipped before the best is picked, the touch level is
// normally not the quoter's own and its quantity is used as is. An update id
// that went backward rejects the iteration.
func (q *Quoter) parseOrderBook(depth book.RestDepth) (book.Snapshot, error) {
	var bk book.Snapshot

	bestOfSide := func(levels []book.PriceLevel, own *WorkingOrder) (float64, float64) {
		bestPrice := 0.0
		volume := 0.0
		counted := 0
		for _, level := range levels {
			if own != nil && math.Abs(level.Price-own.Price) <= priceCompareEps {
				continue
			}
			if bestPrice <= 0 {
				bestPrice = level.Price
			}
			if counted < depthLevels {
				volume += level.Price * level.Quantity
				counted++
			}
		}
		return bestPrice, volume
	}

	bk.BestBid, bk.BidVolume = bestOfSide(depth.Bids, q.buyOrder)
	bk.BestAsk, bk.AskVolume = bestOfSide(depth.Asks, q.sellOrder)

	if bk.BestBid > 0 && bk.BestAsk > 0 {
		bk.Spread = bk.BestAsk - bk.BestBid
	}

	// Touch quantities drive the microprice; our own resting share is
	// subtracted only if the touch level lies within eps of our own price,
	// which the skip in bestOfSide normally rules out.
	touchQty := func(levels []book.PriceLevel, best float64, own *WorkingOrder) float64 {
		if best <= 0 {
			return 0
		}
		for _, level := range levels {
			if math.Abs(level.Price-best) <= priceCompareEps {
				qty := level.Quantity
				if own != nil && math.Abs(level.Price-own.Price) <= priceCompareEps {
					qty = maxFloat(0, qty-own.Quantity)
				}
				return qty
			}
		}
		return 0
	}

	bidQty := touchQty(depth.Bids, bk.BestBid, q.buyOrder)
	askQty := touchQty(depth.Asks, bk.BestAsk, q.sellOrder)

	if bk.BestBid > 0 && bk.BestAsk > 0 {
		denom := bidQty + askQty
		if denom > epsilon {
			bk.Microprice = (bk.BestBid*askQty + bk.BestAsk*bidQty) / denom
		} else {
			bk.Microprice = (bk.BestBid + bk.BestAsk) / 2
		}
	} else {
		bk.Microprice = maxFloat(bk.BestBid, bk.BestAsk)
	}

	if depth.LastUpdateID != 0 {
		if depth.LastUpdateID < q.lastDepthUpdateID {
			return bk, fmt.Errorf("received out-of-order depth snapshot (%d < %d)",
				depth.LastUpdateID, q.lastDepthUpdateID)
		}
		q.lastDepthUpdateID = depth.LastUpdateID
		bk.LastUpdateID = depth.LastUpdateID
	}

	slog.Info("[Strategy] Market(ex-self)",
		"best_bid", bk.BestBid, "best_ask", bk.BestAsk, "spread", bk.Spread)

	return bk, nil
}
