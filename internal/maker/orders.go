package maker

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"mexc_go/internal/mexc"
	"mexc_go/pkg/quant"
)

// makeOrderID builds a client order id from the symbol initial, side
// initial, millisecond timestamp and a rolling 4-digit counter, truncated to
// the venue's 32-char limit. Unique per live quote.
func (q *Quoter) makeOrderID(symbol, side string) string {
	ms := q.now().UnixMilli()

	var b strings.Builder
	if symbol != "" {
		b.WriteByte(symbol[0])
	}
	tag := byte('X')
	if side != "" {
		tag = side[0]
		if tag >= 'a' && tag <= 'z' {
			tag -= 'a' - 'A'
		}
	}
	b.WriteByte(tag)
	seq := quant.NextSeq(&q.orderCounter) % 10000
	fmt.Fprintf(&b, "%d%04d", ms, seq)

	id := b.String()
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}

// refreshOpenOrders rebuilds the cached buy/sell working orders from the
// venue's open set, keeping the most aggressive order per side.
func (q *Quoter) refreshOpenOrders(openOrders []mexc.Order) {
	q.buyOrder = nil
	q.sellOrder = nil

	for _, entry := range openOrders {
		price := float64(entry.Price)
		remaining := maxFloat(0, float64(entry.OrigQty)-float64(entry.ExecutedQty))

		if entry.ClientOrderID == "" || entry.Side == "" || price <= 0 ||
			remaining < q.config.MinBaseQuantity {
			continue
		}

		order := WorkingOrder{
			ClientID: entry.ClientOrderID,
			Side:     entry.Side,
			Price:    price,
			Quantity: remaining,
		}
		switch entry.Side {
		case "BUY":
			if q.buyOrder == nil || price > q.buyOrder.Price {
				q.buyOrder = &order
			}
		case "SELL":
			if q.sellOrder == nil || price < q.sellOrder.Price {
				q.sellOrder = &order
			}
		}
	}
}

// reconcileOrders drops any cached order whose client id is absent from the
// venue's open set — it filled or was cancelled out-of-band.
func (q *Quoter) reconcileOrders(openIDs map[string]struct{}) {
	if q.sellOrder != nil {
		if _, open := openIDs[q.sellOrder.ClientID]; !open {
			slog.Info("[Strategy] Sell order closed", "client_id", q.sellOrder.ClientID)
			q.sellOrder = nil
		}
	}
	if q.buyOrder != nil {
		if _, open := openIDs[q.buyOrder.ClientID]; !open {
			slog.Info("[Strategy] Buy order closed", "client_id", q.buyOrder.ClientID)
			q.buyOrder = nil
		}
	}
}

// waitForOrderClose polls the order status until it reaches a terminal
// state or the deadline passes.
func (q *Quoter) waitForOrderClose(clientID, side string) bool {
	deadline := q.now().Add(time.Duration(q.config.OrderStatusTimeoutMS) * time.Millisecond)
	for q.now().Before(deadline) {
		q.sleep(time.Duration(q.config.OrderStatusPollMS) * time.Millisecond)

		order, err := q.api.QueryOrder(q.config.Symbol, clientID)
		if err != nil {
			slog.Error("[Strategy] Failed to query order status", "client_id", clientID, "err", err)
			if mexc.IsRateLimited(err) {
				q.noteRateLimitHit()
			}
			continue
		}
		if order.Closed() {
			slog.Info("[Strategy] Confirmed order closed",
				"side", side, "client_id", clientID, "status", order.Status)
			return true
		}
	}

	slog.Error("[Strategy] Timed out waiting for order to close",
		"side", side, "client_id", clientID)
	return false
}

// placeLimitOrder validates and submits a GTC limit order. Returns true only
// when the venue acknowledged it as live.
func (q *Quoter) placeLimitOrder(side string, price, quantity float64, clientOrderID string) bool {
	if price <= 0 || quantity <= 0 {
		return false
	}

	quantity = floorToIncrement(quantity, q.config.QuantityIncrement)
	notional := quantity * price
	if quantity < q.config.MinBaseQuantity || notional < q.config.MinQuoteOrder {
		return false
	}

	if !q.validateFilters(price, quantity, notional) {
		return false
	}

	params := url.Values{}
	params.Set("timeInForce", "GTC")
	params.Set("quantity", formatDecimal(quantity, q.config.QuantityPrecision))
	params.Set("price", formatDecimal(price, q.config.PricePrecision))
	params.Set("newClientOrderId", clientOrderID)

	ack, err := q.api.NewOrder(q.config.Symbol, side, "LIMIT", params)
	if err != nil {
		slog.Error("[Strategy] Failed to place limit order", "err", err)
		if mexc.IsRateLimited(err) {
			q.noteRateLimitHit()
		}
		return false
	}

	if ack.Status != "" && ack.Status != "NEW" && ack.Status != "PARTIALLY_FILLED" {
		slog.Error("[Strategy] Limit order rejected", "status", ack.Status)
		return false
	}

	orderID := ack.OrderIDString()
	if orderID == "" {
		orderID = clientOrderID
	}
	slog.Info("[Strategy] Placed order",
		"side", side, "id", orderID, "price", price, "qty", quantity)
	return true
}

// placeMarketOrder submits a taker order: sells by base quantity, buys by
// quote amount.
func (q *Quoter) placeMarketOrder(side string, quantity, quoteAmount float64, reasonTag string) bool {
	params := url.Values{}

	switch side {
	case "SELL":
		qty := floorToIncrement(quantity, q.config.QuantityIncrement)
		if qty < q.config.MinBaseQuantity {
			return false
		}
		if !q.validateFilters(0, qty, quoteAmount) {
			return false
		}
		params.Set("quantity", formatDecimal(qty, q.config.QuantityPrecision))
	case "BUY":
		quote := floorToIncrement(maxFloat(quoteAmount, q.config.MinQuoteOrder), q.config.QuoteIncrement)
		quote = minFloat(quote, q.quoteBalance)
		if quote < q.config.MinQuoteOrder {
			return false
		}
		if !q.validateFilters(0, 0, quote) {
			return false
		}
		params.Set("quoteOrderQty", formatDecimal(quote, q.config.QuotePrecision))
	default:
		return false
	}

	ack, err := q.api.NewOrder(q.config.Symbol, side, "MARKET", params)
	if err != nil {
		slog.Error("[Strategy] Failed to place market order", "err", err)
		if mexc.IsRateLimited(err) {
			q.noteRateLimitHit()
		}
		return false
	}

	slog.Info("[Strategy] Executed MARKET order",
		"side", side, "reason", reasonTag, "status", ack.Status, "id", ack.OrderIDString())
	return true
}
