package maker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"mexc_go/internal/ledger"
	"mexc_go/internal/mexc"
	"mexc_go/pkg/quant"
)

const tradePageLimit = 100

// loadTradeLedger replays the journal into the cached float view of
// position and PnL.
func (q *Quoter) loadTradeLedger() {
	state, err := q.ledger.Load()
	if err != nil {
		slog.Error("[Ledger] Failed to load ledger", "err", err)
		return
	}

	q.positionBase = quant.FromUnits(state.PositionBase, q.baseScale)
	q.positionCost = quant.FromUnits(state.PositionCost, q.quoteScale)
	q.realizedPnL = quant.FromUnits(state.RealizedPnL, q.quoteScale)
	q.lastTradeID = state.LastTradeID
	q.tradeCursorInitialized = state.LastTradeID > 0
	q.positionInitialized = state.PositionBase > 0 || state.PositionCost > 0

	if q.tradeCursorInitialized {
		slog.Info("[Ledger] Restored last trade id",
			"last_trade_id", q.lastTradeID,
			"position", q.positionBase,
			"cost", q.positionCost,
			"realized", q.realizedPnL)
	} else {
		slog.Info("[Ledger] No prior fills found; starting fresh")
	}
}

// pullRecentTrades pages the venue's fill feed from the ledger cursor and
// folds each new fill into the ledger (and the archive when configured).
// A non-nil return is a failed ledger append: an arithmetic overflow or a
// journal write error.
func (q *Quoter) pullRecentTrades(ctx context.Context) error {
	now := q.now()
	if !q.lastTradesPollTime.IsZero() {
		elapsedMS := now.Sub(q.lastTradesPollTime).Milliseconds()
		if elapsedMS < int64(q.config.FillPollIntervalMS) {
			return nil
		}
	}
	q.lastTradesPollTime = now

	cursor := q.lastTradeID
	if state := q.ledger.State(); state.LastTradeID > cursor {
		cursor = state.LastTradeID
	}

	fromID := int64(0)
	if cursor > 0 {
		fromID = cursor + 1
	}

	trades, err := q.api.AccountTradeList(q.config.Symbol, fromID, tradePageLimit)
	if err != nil {
		slog.Error("[FILL] Failed to pull trades", "err", err)
		if mexc.IsRateLimited(err) {
			q.noteRateLimitHit()
		}
		return nil
	}

	newTrades := make([]mexc.Trade, 0, len(trades))
	maxID := cursor
	for _, trade := range trades {
		id := int64(trade.ID)
		if id <= cursor {
			continue
		}
		newTrades = append(newTrades, trade)
		if id > maxID {
			maxID = id
		}
	}

	if len(newTrades) == 0 {
		q.lastTradeID = maxID
		q.tradeCursorInitialized = maxID > 0
		return nil
	}

	sort.SliceStable(newTrades, func(i, j int) bool {
		return int64(newTrades[i].ID) < int64(newTrades[j].ID)
	})

	for _, trade := range newTrades {
		if err := q.recordFill(ctx, trade); err != nil {
			return err
		}
	}

	state := q.ledger.State()
	q.positionBase = quant.FromUnits(state.PositionBase, q.baseScale)
	q.positionCost = quant.FromUnits(state.PositionCost, q.quoteScale)
	q.realizedPnL = quant.FromUnits(state.RealizedPnL, q.quoteScale)
	q.lastTradeID = state.LastTradeID
	q.tradeCursorInitialized = q.lastTradeID > 0
	q.positionInitialized = true
	return nil
}

// recordFill converts one venue trade into fixed-point units — subtracting
// the commission from whichever leg it was charged on — and appends it to
// the journal.
func (q *Quoter) recordFill(ctx context.Context, trade mexc.Trade) error {
	price := float64(trade.Price)
	qty := float64(trade.Qty)
	quoteQty := float64(trade.QuoteQty)
	if quoteQty == 0 {
		quoteQty = price * qty
	}
	commission := float64(trade.Commission)

	effectiveQty := qty
	effectiveQuote := quoteQty
	feeUnits := int64(0)

	switch trade.CommissionAsset {
	case "":
		// No fee leg.
	case q.baseAsset:
		effectiveQty = maxFloat(0, effectiveQty-commission)
		feeUnits = int64(math.Round(commission * float64(q.baseScale)))
	case "USDT":
		effectiveQuote = maxFloat(0, effectiveQuote-commission)
		feeUnits = int64(math.Round(commission * float64(q.quoteScale)))
	}

	side := ledger.Sell
	if trade.IsBuyer {
		side = ledger.Buy
	}

	fill := ledger.Fill{
		ID:       int64(trade.ID),
		Time:     int64(trade.Time),
		Side:     side,
		BaseQty:  int64(math.Round(effectiveQty * float64(q.baseScale))),
		QuoteQty: int64(math.Round(effectiveQuote * float64(q.quoteScale))),
		FeeQty:   feeUnits,
		FeeAsset: trade.CommissionAsset,
		IsMaker:  trade.IsMaker,
	}

	before := q.ledger.State()
	if err := q.ledger.Append(fill); err != nil {
		return fmt.Errorf("record fill %d: %w", fill.ID, err)
	}
	after := q.ledger.State()

	if q.fillStore != nil {
		storeCtx, cancel := context.WithTimeout(ctx, time.Second)
		if err := q.fillStore.SaveFill(storeCtx, fill); err != nil {
			slog.Warn("[FILL] Failed to archive fill", "id", fill.ID, "err", err)
		}
		cancel()
	}

	realizedDelta := quant.FromUnits(after.RealizedPnL-before.RealizedPnL, q.quoteScale)

	role := "taker"
	if trade.IsMaker {
		role = "maker"
	}
	attrs := []any{
		"side", string(side),
		"role", role,
		"qty", quant.FromUnits(fill.BaseQty, q.baseScale),
		"price", price,
		"notional", quant.FromUnits(fill.QuoteQty, q.quoteScale),
	}
	if math.Abs(realizedDelta) > 1e-6 {
		attrs = append(attrs, "realized", realizedDelta)
	}
	slog.Info("[FILL]", attrs...)
	return nil
}
