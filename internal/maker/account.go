package maker

import (
	"fmt"
	"log/slog"
	"time"

	"mexc_go/internal/book"
	"mexc_go/internal/mexc"
)

// refreshBalances caches the base/quote balances from the account snapshot
// and rejects the iteration when the snapshot is stale.
func (q *Quoter) refreshBalances(account mexc.AccountInfo) error {
	if len(account.Balances) == 0 {
		return fmt.Errorf("account info response missing balances")
	}

	quote := account.FindBalance("USDT")
	base := account.FindBalance(q.baseAsset)

	q.quoteBalance = maxFloat(0, float64(quote.Free))
	q.quoteLocked = maxFloat(0, float64(quote.Locked))
	q.baseBalance = maxFloat(0, float64(base.Free))
	q.baseLocked = maxFloat(0, float64(base.Locked))

	if updateMS := int64(account.UpdateTime); updateMS > 0 {
		q.lastAccountUpdate = time.UnixMilli(updateMS)
	} else {
		q.lastAccountUpdate = q.now()
	}

	if !q.withinAccountStaleness(q.lastAccountUpdate) {
		return fmt.Errorf("account snapshot stale; aborting iteration")
	}

	slog.Info("[Strategy] Balances",
		"base_asset", q.baseAsset,
		"base_free", q.baseBalance, "base_locked", q.baseLocked,
		"quote_free", q.quoteBalance, "quote_locked", q.quoteLocked)
	return nil
}

func (q *Quoter) withinAccountStaleness(snapshotTime time.Time) bool {
	if q.config.AccountStalenessMS <= 0 {
		return true
	}
	if snapshotTime.IsZero() {
		return false
	}
	ageMS := q.now().Sub(snapshotTime).Milliseconds()
	if ageMS > int64(q.config.AccountStalenessMS) {
		slog.Error("[Strategy] Account snapshot stale", "age_ms", ageMS)
		return false
	}
	return true
}

// computeNAV marks the full inventory at the current microprice.
func (q *Quoter) computeNAV(bk book.Snapshot) float64 {
	mark := bk.Microprice
	if mark <= epsilon {
		mark = maxFloat(bk.BestBid, bk.BestAsk)
	}
	totalBase := q.baseBalance + q.baseLocked
	totalQuote := q.quoteBalance + q.quoteLocked
	return totalQuote + totalBase*mark
}

// computeBaseShare returns base_value / NAV.
func (q *Quoter) computeBaseShare(nav float64, bk book.Snapshot) float64 {
	if nav <= epsilon {
		return 0
	}
	mark := bk.Microprice
	if mark <= epsilon {
		mark = maxFloat(bk.BestBid, bk.BestAsk)
	}
	totalBase := q.baseBalance + q.baseLocked
	return (totalBase * mark) / nav
}

// reportPnL logs the session PnL line. The first complete iteration latches
// the initial NAV baseline.
func (q *Quoter) reportPnL(nav, baseShare float64, firstIteration bool) {
	if firstIteration || q.initialNAV == nil {
		initial := nav
		peak := nav
		q.initialNAV = &initial
		q.sessionPeakNAV = &peak
		q.realizedPnL = 0
		slog.Info("[PNL] Initialized", "nav", nav)
		return
	}

	pnl := nav - *q.initialNAV
	unrealized := pnl - q.realizedPnL
	slog.Info("[PNL]",
		"nav", nav,
		"delta", pnl,
		"base_share_pct", baseShare*100,
		"realized", q.realizedPnL,
		"unrealized", unrealized)
}
