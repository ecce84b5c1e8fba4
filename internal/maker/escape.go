package maker

import (
	"log/slog"
	"time"

	"mexc_go/internal/book"
	"mexc_go/internal/mexc"
)

// enforceEscapeConditions cancels a resting quote the market has run away
// from and, when the remaining notional still clears the minima, crosses
// the spread with a throttled taker order. Hysteresis widens the trigger
// after each escape so a quote cannot churn at the boundary.
func (q *Quoter) enforceEscapeConditions(bk book.Snapshot, openIDs map[string]struct{}) {
	escapeFraction := q.config.EscapeBPS * basisPoint
	hysteresisFraction := q.config.EscapeHystBPS * basisPoint
	now := q.now()
	minInterval := time.Duration(q.config.MinEscapeIntervalMS) * time.Millisecond

	if q.sellOrder != nil {
		if _, open := openIDs[q.sellOrder.ClientID]; open {
			if q.lastSellEscapeEvent.IsZero() || now.Sub(q.lastSellEscapeEvent) >= minInterval {
				threshold := q.sellOrder.Price * (1 - escapeFraction)
				adjusted := threshold - q.sellOrder.Price*hysteresisFraction
				if q.lastSellEscapePrice > 0 {
					adjusted = minFloat(adjusted,
						q.lastSellEscapePrice-q.sellOrder.Price*hysteresisFraction)
				}
				if bk.BestBid > epsilon && bk.BestBid < adjusted {
					slog.Info("[Strategy] Sell escape triggered",
						"best_bid", bk.BestBid, "threshold", threshold)
					q.escapeOrder(q.sellOrder, "SELL", bk)
					q.sellOrder = nil
					q.lastSellEscapeEvent = now
					q.lastSellEscapePrice = bk.BestBid
				}
			}
		}
	}

	if q.buyOrder != nil {
		if _, open := openIDs[q.buyOrder.ClientID]; open {
			if q.lastBuyEscapeEvent.IsZero() || now.Sub(q.lastBuyEscapeEvent) >= minInterval {
				threshold := q.buyOrder.Price * (1 + escapeFraction)
				adjusted := threshold + q.buyOrder.Price*hysteresisFraction
				if q.lastBuyEscapePrice > 0 {
					adjusted = maxFloat(adjusted,
						q.lastBuyEscapePrice+q.buyOrder.Price*hysteresisFraction)
				}
				if bk.BestAsk > adjusted {
					slog.Info("[Strategy] Buy escape triggered",
						"best_ask", bk.BestAsk, "threshold", threshold)
					q.escapeOrder(q.buyOrder, "BUY", bk)
					q.buyOrder = nil
					q.lastBuyEscapeEvent = now
					q.lastBuyEscapePrice = bk.BestAsk
				}
			}
		}
	}
}

// escapeOrder cancels the resting order, waits for confirmation, and emits
// the taker leg when the notional and throttle allow it.
func (q *Quoter) escapeOrder(order *WorkingOrder, side string, bk book.Snapshot) {
	if _, err := q.api.CancelOrder(q.config.Symbol, order.ClientID); err != nil {
		slog.Error("[Strategy] Failed to cancel order for escape",
			"side", side, "client_id", order.ClientID, "err", err)
		if mexc.IsRateLimited(err) {
			q.noteRateLimitHit()
		}
	}

	q.waitForOrderClose(order.ClientID, side)

	minNotional := q.config.MinQuoteOrder
	if q.symbolFilters != nil && q.symbolFilters.MinNotional > 0 {
		minNotional = q.symbolFilters.MinNotional
	}
	floor := maxFloat(q.config.MinQuoteOrder, minNotional)

	switch side {
	case "SELL":
		notional := order.Quantity * maxFloat(bk.BestBid, epsilon)
		if notional >= floor && q.throttleTakerEscape() {
			q.placeMarketOrder("SELL", order.Quantity, notional, "escape_sell")
		}
	case "BUY":
		notional := order.Quantity * maxFloat(bk.BestAsk, epsilon)
		spend := minFloat(q.quoteBalance, maxFloat(q.config.MinQuoteOrder, notional))
		if spend >= floor && q.throttleTakerEscape() {
			q.placeMarketOrder("BUY", order.Quantity, spend, "escape_buy")
		}
	}
}

// throttleTakerEscape enforces the taker budget: a cooldown between events
// and a cap per rolling 60-second window.
func (q *Quoter) throttleTakerEscape() bool {
	now := q.now()

	if !q.lastEscapeTime.IsZero() {
		deltaMS := now.Sub(q.lastEscapeTime).Milliseconds()
		if deltaMS < int64(q.config.TakerEscapeCooldownMS) {
			slog.Info("[Risk] Escape throttled", "last_executed_ms_ago", deltaMS)
			return false
		}
	}

	if q.escapeWindowStart.IsZero() || now.Sub(q.escapeWindowStart) >= 60*time.Second {
		q.escapeWindowStart = now
		q.escapeCountWindow = 0
	}

	if q.config.MaxTakerEscapesPerMin > 0 &&
		q.escapeCountWindow >= q.config.MaxTakerEscapesPerMin {
		slog.Info("[Risk] Escape limit reached", "per_minute", q.escapeCountWindow)
		return false
	}

	q.lastEscapeTime = now
	q.escapeCountWindow++
	return true
}
