package maker

import (
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"mexc_go/pkg/quant"
)

// floorToIncrement floors value to a multiple of the increment.
func floorToIncrement(value, increment float64) float64 {
	if increment <= epsilon || value <= 0 {
		return maxFloat(0, value)
	}
	return math.Floor(value/increment) * increment
}

// roundDown floors value at the given decimal precision. Routed through
// decimal so 0.1-style float artifacts cannot push a price over the tick.
func roundDown(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	f, _ := decimal.NewFromFloat(value).RoundFloor(int32(precision)).Float64()
	return f
}

// formatDecimal renders a price or quantity with fixed precision for the
// wire.
func formatDecimal(value float64, precision int) string {
	return decimal.NewFromFloat(value).StringFixed(int32(precision))
}

// withinIncrement reports whether value sits on the increment grid.
func withinIncrement(value, increment float64) bool {
	if increment <= epsilon {
		return true
	}
	steps := value / increment
	return math.Abs(steps-math.Round(steps)) < 1e-6
}

// validateFilters checks an order against the venue's declared filters.
// Zero-valued fields (market orders carry no price) skip their checks.
func (q *Quoter) validateFilters(price, quantity, notional float64) bool {
	if q.symbolFilters == nil {
		return true
	}
	filters := *q.symbolFilters

	if price > 0 && filters.TickSize > 0 {
		if filters.MinPrice > 0 && price+epsilon < filters.MinPrice {
			slog.Error("[Filters] Price below minimum", "price", price, "min", filters.MinPrice)
			return false
		}
		if !withinIncrement(price, filters.TickSize) {
			slog.Error("[Filters] Price not aligned to tick size", "price", price, "tick", filters.TickSize)
			return false
		}
	}

	if quantity > 0 && filters.StepSize > 0 {
		if filters.MinQty > 0 && quantity+epsilon < filters.MinQty {
			slog.Error("[Filters] Quantity below minimum", "qty", quantity, "min", filters.MinQty)
			return false
		}
		if !withinIncrement(quantity, filters.StepSize) {
			slog.Error("[Filters] Quantity not aligned to step size", "qty", quantity, "step", filters.StepSize)
			return false
		}
	}

	if notional > 0 && filters.MinNotional > 0 && notional+epsilon < filters.MinNotional {
		slog.Error("[Filters] Notional below minimum", "notional", notional, "min", filters.MinNotional)
		return false
	}

	return true
}

// loadSymbolFilters fetches the venue's declared filters and widens the
// configured increments and precisions where the exchange disagrees.
func (q *Quoter) loadSymbolFilters() {
	filters, err := q.api.ExchangeInfo(q.config.Symbol)
	if err != nil {
		slog.Error("[Config] Failed to load symbol filters", "err", err)
		return
	}

	q.symbolFilters = &filters

	if filters.StepSize > 0 && math.Abs(filters.StepSize-q.config.QuantityIncrement) > 1e-8 {
		slog.Info("[Config] Adjusting quantity increment to exchange step size",
			"configured", q.config.QuantityIncrement, "exchange", filters.StepSize)
		q.config.QuantityIncrement = filters.StepSize
	}
	if filters.StepSize > 0 {
		if p := quant.PrecisionFromStep(filters.StepSize); p > q.config.QuantityPrecision {
			q.config.QuantityPrecision = p
		}
	}
	if filters.TickSize > 0 && math.Abs(filters.TickSize-math.Pow(10, -float64(q.config.PricePrecision))) > 1e-8 {
		slog.Info("[Config] Exchange tick size differs from configured precision; rounding follows the tick",
			"tick", filters.TickSize)
	}
	if filters.TickSize > 0 {
		if p := quant.PrecisionFromStep(filters.TickSize); p > q.config.PricePrecision {
			q.config.PricePrecision = p
		}
	}
}
