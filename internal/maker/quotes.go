package maker

import (
	"log/slog"
	"math"

	"mexc_go/internal/book"
)

// ensureStartingInventory places a one-off bootstrap order when one side of
// the inventory cannot support quoting: a boot-sell converts base into quote
// at the best bid, a boot-buy the reverse at the best ask. Returns false
// when the iteration should yield (an order was placed or inventory is
// still unusable).
func (q *Quoter) ensureStartingInventory(bk book.Snapshot) bool {
	if !q.tradingEnabled || bk.Microprice <= epsilon {
		return false
	}

	ready := true

	if q.quoteBalance+epsilon < q.config.MinQuoteOrder && q.baseBalance > q.config.MinBaseQuantity {
		price := bk.Microprice
		if bk.BestBid > epsilon {
			price = bk.BestBid
		}
		desiredQuote := maxFloat(q.config.MinQuoteOrder*1.5, q.config.QuoteBudget)
		neededQuote := maxFloat(q.config.MinQuoteOrder, desiredQuote-q.quoteBalance)

		maxSell := maxFloat(0, q.baseBalance-q.config.MinBaseQuantity)
		sellQty := floorToIncrement(neededQuote/maxFloat(price, epsilon), q.config.QuantityIncrement)
		sellQty = minFloat(sellQty, maxSell)

		if sellQty >= q.config.MinBaseQuantity {
			orderID := q.makeOrderID(q.config.Symbol, "BOOT_SELL")
			if q.placeLimitOrder("SELL", price, sellQty, orderID) {
				q.sellOrder = &WorkingOrder{ClientID: orderID, Side: "SELL", Price: price, Quantity: sellQty}
				ready = false
			}
		} else {
			ready = false
		}
	}

	if ready && q.baseBalance+epsilon < q.config.MinBaseQuantity && q.quoteBalance >= q.config.MinQuoteOrder {
		price := bk.Microprice
		if bk.BestAsk > epsilon {
			price = bk.BestAsk
		}
		buyNotional := minFloat(q.quoteBalance, maxFloat(q.config.MinQuoteOrder, q.config.QuoteBudget))
		buyNotional = floorToIncrement(buyNotional, q.config.QuoteIncrement)

		if buyNotional >= q.config.MinQuoteOrder {
			buyQty := floorToIncrement(buyNotional/maxFloat(price, epsilon), q.config.QuantityIncrement)
			if buyQty >= q.config.MinBaseQuantity {
				orderID := q.makeOrderID(q.config.Symbol, "BOOT_BUY")
				if q.placeLimitOrder("BUY", price, buyQty, orderID) {
					q.buyOrder = &WorkingOrder{ClientID: orderID, Side: "BUY", Price: price, Quantity: buyQty}
					ready = false
				}
			}
		} else {
			ready = false
		}
	}

	return ready
}

// quotePrices is the §quoting-math result: where to rest each side, or why
// not to.
type quotePrices struct {
	Buy  float64
	Sell float64
	OK   bool
}

// computeQuotePrices derives the two quote prices from the microprice,
// book-imbalance skew and inventory skew, floored to the price precision.
// OK is false when the spread is too tight to clear fees or rounding
// collapsed the quotes.
func (q *Quoter) computeQuotePrices(bk book.Snapshot, baseShare float64) quotePrices {
	if bk.Microprice <= epsilon {
		return quotePrices{}
	}

	spreadFraction := 0.0
	if bk.Spread > 0 && bk.Microprice > 0 {
		spreadFraction = bk.Spread / bk.Microprice
	}
	minEdgeFraction := maxFloat(q.config.MinEdgeBPS*basisPoint, 2*q.config.MakerFee+0.0002)
	if spreadFraction < minEdgeFraction {
		slog.Info("[Strategy] Spread too tight; skipping quoting",
			"spread_bps", spreadFraction*1e4)
		return quotePrices{}
	}

	targetSpreadFraction := clampFloat(
		maxFloat(q.config.SpreadBPS*basisPoint, spreadFraction*0.5),
		0.0005, 0.02)

	bookImbalance := 0.0
	if bk.BidVolume+bk.AskVolume > 0 {
		bookImbalance = (bk.BidVolume - bk.AskVolume) / (bk.BidVolume + bk.AskVolume)
	}

	inventoryDeviation := (baseShare - q.config.InventoryTarget) / q.config.InventoryTol
	skew := clampFloat(0.5*bookImbalance-inventoryDeviation, -1, 1)

	buy := bk.Microprice * (1 - targetSpreadFraction/2 - 0.25*skew*targetSpreadFraction)
	sell := bk.Microprice * (1 + targetSpreadFraction/2 + 0.25*skew*targetSpreadFraction)

	buy = roundDown(buy, q.config.PricePrecision)
	sell = roundDown(sell, q.config.PricePrecision)

	if buy <= 0 || sell <= 0 || buy >= sell {
		slog.Error("[Strategy] Price rounding collapsed spread; skipping")
		return quotePrices{}
	}

	return quotePrices{Buy: buy, Sell: sell, OK: true}
}

// maintainQuotes places any missing side subject to the inventory guards
// and sizing rules.
func (q *Quoter) maintainQuotes(bk book.Snapshot) {
	if !q.tradingEnabled {
		slog.Info("[Strategy] Trading disabled by risk manager; skipping quotes")
		return
	}

	totalBase := q.baseBalance + q.baseLocked
	totalQuote := q.quoteBalance + q.quoteLocked
	totalValue := totalQuote + totalBase*bk.Microprice
	if totalValue <= 0 {
		slog.Error("[Strategy] No inventory to deploy")
		return
	}

	inventoryRatio := (totalBase * bk.Microprice) / totalValue
	prices := q.computeQuotePrices(bk, inventoryRatio)
	if !prices.OK {
		return
	}

	targetBaseValue := totalValue * q.config.InventoryTarget
	targetQty := targetBaseValue / maxFloat(bk.Microprice, epsilon)
	upperQty := targetQty * (1 + q.config.InventoryTol)
	lowerQty := targetQty * (1 - q.config.InventoryTol)

	upperGuard := q.config.MaxInventoryRatio
	lowerGuard := 1 - q.config.MaxInventoryRatio
	hysteresis := q.config.InventoryTol * 0.5

	allowSell := inventoryRatio > lowerGuard+hysteresis
	allowBuy := inventoryRatio < upperGuard-hysteresis

	freeBase := q.baseBalance
	if q.sellOrder == nil && allowSell && totalBase > lowerQty && freeBase > q.config.MinBaseQuantity {
		excessBase := maxFloat(0, totalBase-lowerQty)
		sellCapacity := maxFloat(0, freeBase-q.config.MinBaseQuantity)
		sellQuantity := minFloat(excessBase,
			minFloat(sellCapacity, q.config.QuoteBudget/maxFloat(prices.Sell, epsilon)))
		sellQuantity = floorToIncrement(sellQuantity, q.config.QuantityIncrement)

		if sellQuantity >= q.config.MinBaseQuantity {
			orderID := q.makeOrderID(q.config.Symbol, "SELL")
			if q.placeLimitOrder("SELL", prices.Sell, sellQuantity, orderID) {
				q.sellOrder = &WorkingOrder{ClientID: orderID, Side: "SELL", Price: prices.Sell, Quantity: sellQuantity}
			}
		}
	} else if q.sellOrder == nil && !allowSell {
		slog.Info("[Inventory] Sell side paused; base share below guard")
	}

	if q.buyOrder == nil && allowBuy && totalBase < upperQty && q.quoteBalance >= q.config.MinQuoteOrder {
		buyNotional := minFloat(q.config.QuoteBudget, q.quoteBalance)
		buyNotional = maxFloat(buyNotional, q.config.MinQuoteOrder)
		buyNotional = floorToIncrement(buyNotional, q.config.QuoteIncrement)
		buyNotional = minFloat(buyNotional, q.quoteBalance)

		if buyNotional >= q.config.MinQuoteOrder {
			buyQuantity := floorToIncrement(buyNotional/maxFloat(prices.Buy, epsilon), q.config.QuantityIncrement)
			if buyQuantity >= q.config.MinBaseQuantity {
				orderID := q.makeOrderID(q.config.Symbol, "BUY")
				if q.placeLimitOrder("BUY", prices.Buy, buyQuantity, orderID) {
					q.buyOrder = &WorkingOrder{ClientID: orderID, Side: "BUY", Price: prices.Buy, Quantity: buyQuantity}
				}
			}
		}
	} else if q.buyOrder == nil && !allowBuy {
		slog.Info("[Inventory] Buy side paused; base share above guard")
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
