package maker

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"mexc_go/internal/book"
	"mexc_go/internal/infra"
	"mexc_go/internal/ledger"
	"mexc_go/internal/mexc"
	"mexc_go/internal/storage"
	"mexc_go/pkg/quant"
)

const (
	basisPoint  = 0.0001
	depthLevels = 5
	epsilon     = 1e-9
)

// SpotAPI is the REST surface the quoter drives. The concrete client lives
// in internal/mexc; tests substitute a scripted fake.
type SpotAPI interface {
	Depth(symbol string, limit int) (book.RestDepth, error)
	ExchangeInfo(symbol string) (mexc.SymbolFilters, error)
	AccountInfo() (mexc.AccountInfo, error)
	OpenOrders(symbol string) ([]mexc.Order, error)
	QueryOrder(symbol, clientOrderID string) (mexc.Order, error)
	NewOrder(symbol, side, orderType string, params url.Values) (mexc.Order, error)
	CancelOrder(symbol, clientOrderID string) (mexc.Order, error)
	CancelOpenOrders(symbol string) error
	AccountTradeList(symbol string, fromID int64, limit int) ([]mexc.Trade, error)
}

// WorkingOrder is a resting quote the loop believes is live on the venue.
type WorkingOrder struct {
	ClientID string
	Side     string
	Price    float64
	Quantity float64
}

// Quoter is the single-threaded market-making control loop. All venue-state
// mutation goes through it; nothing here needs locking.
type Quoter struct {
	api       SpotAPI
	config    infra.MakerConfig
	baseAsset string

	ledger     *ledger.Ledger
	fillStore  *storage.FillStore
	baseScale  int64
	quoteScale int64

	baseBalance  float64
	quoteBalance float64
	baseLocked   float64
	quoteLocked  float64

	buyOrder  *WorkingOrder
	sellOrder *WorkingOrder

	initialNAV     *float64
	sessionPeakNAV *float64
	tradingEnabled bool

	positionBase float64
	positionCost float64
	realizedPnL  float64
	lastTradeID  int64

	tradeCursorInitialized bool
	positionInitialized    bool

	symbolFilters *mexc.SymbolFilters

	lastAccountUpdate  time.Time
	lastDepthUpdateID  int64
	riskDisabledSince  time.Time
	lastEscapeTime     time.Time
	escapeWindowStart  time.Time
	escapeCountWindow  int
	rateLimitedUntil   time.Time
	currentBackoffMS   float64
	rateLimitedLoop    bool
	lastTradesPollTime time.Time

	lastSellEscapeEvent time.Time
	lastBuyEscapeEvent  time.Time
	lastSellEscapePrice float64
	lastBuyEscapePrice  float64

	orderCounter uint64

	// Injectable clock and sleeper keep the time-window logic testable.
	now   func() time.Time
	sleep func(time.Duration)
}

// New wires the quoter with its ledger and optional fill archive.
func New(api SpotAPI, config infra.MakerConfig, fillStore *storage.FillStore) (*Quoter, error) {
	ledgerPath := config.LedgerPath
	if ledgerPath == "" {
		ledgerPath = infra.DefaultLedgerPath(config.Symbol)
	}

	baseScale := quant.Pow10(config.QuantityPrecision)
	quoteScale := quant.Pow10(config.QuotePrecision)

	journal, err := ledger.New(ledger.Config{
		Path:       ledgerPath,
		BaseScale:  baseScale,
		QuoteScale: quoteScale,
	})
	if err != nil {
		return nil, err
	}

	q := &Quoter{
		api:            api,
		config:         config,
		baseAsset:      baseAssetFromSymbol(config.Symbol),
		ledger:         journal,
		fillStore:      fillStore,
		baseScale:      baseScale,
		quoteScale:     quoteScale,
		tradingEnabled: true,
		now:            time.Now,
		sleep:          time.Sleep,
	}

	q.loadTradeLedger()
	q.loadSymbolFilters()

	return q, nil
}

// baseAssetFromSymbol strips the quote suffix: SPYXUSDT -> SPYX.
func baseAssetFromSymbol(symbol string) string {
	if idx := strings.Index(symbol, "USDT"); idx >= 0 {
		return symbol[:idx]
	}
	return symbol
}

// Run drives the control loop until the context is cancelled. A ledger
// overflow is fatal and returned; every other error ends the current
// iteration and the loop continues.
func (q *Quoter) Run(ctx context.Context) error {
	slog.Info("[Strategy] Starting market making", "symbol", q.config.Symbol)
	firstIteration := true
	refreshPeriod := time.Duration(q.config.RefreshIntervalMS) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !q.rateLimitedUntil.IsZero() && q.now().Before(q.rateLimitedUntil) {
			q.sleep(q.rateLimitedUntil.Sub(q.now()))
			continue
		}

		q.rateLimitedLoop = false
		loopStart := q.now()

		if err := q.iterate(ctx, &firstIteration); err != nil {
			if errors.Is(err, ledger.ErrOverflow) {
				return err
			}
			slog.Error("[Strategy] Iteration failed", "err", err)
		}

		elapsed := q.now().Sub(loopStart)
		if elapsed < refreshPeriod {
			q.sleep(refreshPeriod - elapsed)
		}
	}
}

// iterate executes one §control-loop pass. Transport errors are logged (and
// arm the backoff gate on 429) without failing the loop.
func (q *Quoter) iterate(ctx context.Context, firstIteration *bool) error {
	account, err := q.api.AccountInfo()
	if err != nil {
		q.noteTransportError("account_info", err)
		return nil
	}
	if err := q.refreshBalances(account); err != nil {
		slog.Error("[Strategy] Aborting iteration", "err", err)
		return nil
	}

	openOrders, err := q.api.OpenOrders(q.config.Symbol)
	if err != nil {
		q.noteTransportError("open_orders", err)
		return nil
	}
	q.refreshOpenOrders(openOrders)
	openIDs := extractOpenClientOrderIDs(openOrders)
	q.reconcileOrders(openIDs)

	depth, err := q.api.Depth(q.config.Symbol, depthLevels)
	if err != nil {
		q.noteTransportError("depth", err)
		return nil
	}
	bk, err := q.parseOrderBook(depth)
	if err != nil {
		slog.Error("[Strategy] Aborting iteration", "err", err)
		return nil
	}

	q.enforceEscapeConditions(bk, openIDs)

	if !q.positionInitialized {
		mark := bk.Microprice
		if mark <= epsilon {
			mark = maxFloat(bk.BestBid, bk.BestAsk)
		}
		q.positionBase = q.baseBalance + q.baseLocked
		q.positionCost = q.positionBase * mark
		q.positionInitialized = true
	}

	if err := q.pullRecentTrades(ctx); err != nil {
		return err // ledger overflow is fatal
	}

	nav := q.computeNAV(bk)
	baseShare := q.computeBaseShare(nav, bk)
	riskOK := q.enforceRiskLimits(nav, baseShare)
	q.reportPnL(nav, baseShare, *firstIteration)
	*firstIteration = false

	if !riskOK {
		q.noteRequestSuccess()
		return nil
	}

	if !q.ensureStartingInventory(bk) {
		q.noteRequestSuccess()
		return nil
	}

	q.maintainQuotes(bk)

	q.noteRequestSuccess()
	return nil
}

// noteTransportError logs a failed venue call and arms the backoff gate for
// rate-limit rejections.
func (q *Quoter) noteTransportError(op string, err error) {
	slog.Error("[Strategy] HTTP error", "op", op, "err", err)
	if mexc.IsRateLimited(err) {
		q.noteRateLimitHit()
	}
}

// CancelAllQuotes cancels every open order on the symbol (shutdown and risk
// paths).
func (q *Quoter) CancelAllQuotes() {
	if err := q.api.CancelOpenOrders(q.config.Symbol); err != nil {
		slog.Error("[Risk] Failed to cancel open orders", "err", err)
		if mexc.IsRateLimited(err) {
			q.noteRateLimitHit()
		}
	}
}

func extractOpenClientOrderIDs(openOrders []mexc.Order) map[string]struct{} {
	ids := make(map[string]struct{}, len(openOrders))
	for _, order := range openOrders {
		if order.ClientOrderID != "" {
			ids[order.ClientOrderID] = struct{}{}
		}
	}
	return ids
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
