package maker

import (
	"log/slog"
	"time"
)

// enforceRiskLimits tracks session peak NAV and disables quoting on a
// drawdown breach. Trading re-enables only after the cooldown has elapsed
// AND NAV has recovered to half the drawdown band below the peak.
func (q *Quoter) enforceRiskLimits(nav, baseShare float64) bool {
	if q.initialNAV == nil {
		peak := nav
		q.sessionPeakNAV = &peak
		q.tradingEnabled = true
		q.riskDisabledSince = time.Time{}
		return true
	}

	if q.sessionPeakNAV == nil || nav > *q.sessionPeakNAV {
		peak := nav
		q.sessionPeakNAV = &peak
	}

	drawdownAbs := 0.0
	drawdownPct := 0.0
	if q.sessionPeakNAV != nil {
		drawdownAbs = *q.sessionPeakNAV - nav
		if *q.sessionPeakNAV > epsilon {
			drawdownPct = drawdownAbs / *q.sessionPeakNAV
		}
	}

	now := q.now()

	if q.tradingEnabled {
		breach := false
		if q.config.MaxDrawdownUSD > 0 && drawdownAbs > q.config.MaxDrawdownUSD {
			breach = true
		}
		if q.config.MaxDrawdownPct > 0 && drawdownPct > q.config.MaxDrawdownPct {
			breach = true
		}
		if breach {
			q.tradingEnabled = false
			q.riskDisabledSince = now
			slog.Warn("[Risk] Drawdown exceeded thresholds; disabling quoting",
				"drawdown_usd", drawdownAbs, "drawdown_pct", drawdownPct*100)
			q.CancelAllQuotes()
		}
	} else {
		if q.riskDisabledSince.IsZero() {
			q.riskDisabledSince = now
		} else if q.config.RiskCooldownMS > 0 {
			disabledMS := now.Sub(q.riskDisabledSince).Milliseconds()
			recoveryThreshold := nav
			if q.sessionPeakNAV != nil {
				recoveryThreshold = *q.sessionPeakNAV * (1 - 0.5*q.config.MaxDrawdownPct)
			}
			if disabledMS >= int64(q.config.RiskCooldownMS) && nav >= recoveryThreshold {
				q.tradingEnabled = true
				q.riskDisabledSince = time.Time{}
				slog.Info("[Risk] Cooldown elapsed; re-enabling quoting")
			}
		}
	}

	if baseShare > q.config.MaxInventoryRatio || baseShare < (1-q.config.MaxInventoryRatio) {
		slog.Warn("[Risk] Inventory imbalance", "base_share_pct", baseShare*100)
	}

	return q.tradingEnabled
}

// noteRateLimitHit arms (or escalates) the exponential backoff gate after a
// venue 429.
func (q *Quoter) noteRateLimitHit() {
	q.rateLimitedLoop = true
	now := q.now()

	if q.currentBackoffMS <= 0 {
		q.currentBackoffMS = float64(q.config.RateLimitBackoffMSInitial)
	} else {
		q.currentBackoffMS = minFloat(q.currentBackoffMS*1.5, float64(q.config.RateLimitBackoffMSMax))
	}

	until := now.Add(time.Duration(q.currentBackoffMS) * time.Millisecond)
	if until.After(q.rateLimitedUntil) {
		q.rateLimitedUntil = until
	}
	slog.Warn("[RateLimit] Backing off", "ms", int(q.currentBackoffMS))
}

// noteRequestSuccess decays the backoff after a clean iteration; below half
// the initial value the gate clears entirely.
func (q *Quoter) noteRequestSuccess() {
	if q.rateLimitedLoop {
		return
	}
	if q.currentBackoffMS > 0 {
		q.currentBackoffMS = maxFloat(0,
			q.currentBackoffMS*0.5-float64(q.config.RateLimitBackoffMSInitial)*0.25)
		if q.currentBackoffMS < float64(q.config.RateLimitBackoffMSInitial)*0.5 {
			q.currentBackoffMS = 0
			q.rateLimitedUntil = time.Time{}
		}
	}
}
