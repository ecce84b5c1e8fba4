package mexc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"mexc_go/internal/book"
	"mexc_go/internal/infra"
)

const (
	defaultRecvWindow = "10000"

	restTotalTimeout   = 5 * time.Second
	restConnectTimeout = 3 * time.Second
)

// Client is the signed MEXC spot REST client. Endpoint groups go through
// their own token bucket, and a shared circuit breaker stops the quoting
// loop from hammering a venue that is rejecting everything.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	breaker *infra.CircuitBreaker

	lastRequestMS float64
}

// NewClient creates a REST client for the base URL (e.g.
// https://api.mexc.com/api/v3).
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	dialer := &net.Dialer{Timeout: restConnectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: restConnectTimeout,
		MaxIdleConnsPerHost: 4,
	}

	return &Client{
		baseURL: baseURL,
		signer:  NewSigner(apiKey, apiSecret),
		http: &http.Client{
			Timeout:   restTotalTimeout,
			Transport: transport,
		},
		breaker: infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("mexc-rest")),
	}
}

// Close wipes the credentials.
func (c *Client) Close() {
	c.signer.Wipe()
}

// LastRequestMS returns the wall time of the most recent request in
// fractional milliseconds (connectivity diagnostics).
func (c *Client) LastRequestMS() float64 {
	return c.lastRequestMS
}

func (c *Client) do(method, path string, params url.Values, signed bool, limiter *infra.RateLimiter) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	if limiter != nil {
		limiter.Wait()
	}

	if params == nil {
		params = url.Values{}
	}

	query := params.Encode()
	if signed {
		if !c.signer.HasCredentials() {
			return nil, fmt.Errorf("mexc: %s requires API credentials", path)
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		if params.Get("recvWindow") == "" {
			params.Set("recvWindow", defaultRecvWindow)
		}
		query = params.Encode()
		// The signature covers the exact query string sent, so it is
		// appended rather than re-encoded into sorted position.
		query += "&signature=" + c.signer.Sign(query)
	}

	reqURL := c.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}

	ctx, cancel := context.WithTimeout(context.Background(), restTotalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MEXC-APIKEY", c.signer.APIKey())
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.lastRequestMS = float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("mexc: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("mexc: read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			if retry := resp.Header.Get("Retry-After"); retry != "" {
				if secs, perr := strconv.Atoi(retry); perr == nil {
					httpErr.RetryAfter = time.Duration(secs) * time.Second
				}
			}
		}
		// Server-side failures count against the breaker; client-side
		// rejections (4xx, including 429) are the caller's problem.
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return nil, httpErr
	}

	c.breaker.RecordSuccess()
	return body, nil
}

// Ping checks connectivity.
func (c *Client) Ping() error {
	_, err := c.do(http.MethodGet, "/ping", nil, false, infra.GetMarketLimiter())
	return err
}

// ServerTime returns the venue clock in epoch milliseconds.
func (c *Client) ServerTime() (int64, error) {
	body, err := c.do(http.MethodGet, "/time", nil, false, infra.GetMarketLimiter())
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime FlexInt64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return int64(resp.ServerTime), nil
}

// Depth fetches the REST depth snapshot. Implements book.DepthFetcher.
func (c *Client) Depth(symbol string, limit int) (book.RestDepth, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(http.MethodGet, "/depth", params, false, infra.GetMarketLimiter())
	if err != nil {
		return book.RestDepth{}, err
	}
	return decodeRestDepth(body)
}

// ExchangeInfo returns the symbol's trading filters.
func (c *Client) ExchangeInfo(symbol string) (SymbolFilters, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(http.MethodGet, "/exchangeInfo", params, false, infra.GetMarketLimiter())
	if err != nil {
		return SymbolFilters{}, err
	}

	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SymbolFilters{}, err
	}

	var filters SymbolFilters
	for _, entry := range resp.Symbols {
		if entry.Symbol != symbol {
			continue
		}
		for _, f := range entry.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				filters.MinPrice = float64(f.MinPrice)
				filters.TickSize = float64(f.TickSize)
			case "LOT_SIZE":
				filters.MinQty = float64(f.MinQty)
				filters.StepSize = float64(f.StepSize)
			case "MIN_NOTIONAL":
				filters.MinNotional = float64(f.MinNotional)
			}
		}
	}
	return filters, nil
}

// AccountInfo fetches the signed account snapshot.
func (c *Client) AccountInfo() (AccountInfo, error) {
	body, err := c.do(http.MethodGet, "/account", nil, true, infra.GetAccountLimiter())
	if err != nil {
		return AccountInfo{}, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return AccountInfo{}, err
	}
	return info, nil
}

// OpenOrders lists the symbol's open orders.
func (c *Client) OpenOrders(symbol string) ([]Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(http.MethodGet, "/openOrders", params, true, infra.GetOrderLimiter())
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// QueryOrder looks up one order by client order id.
func (c *Client) QueryOrder(symbol, clientOrderID string) (Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("origClientOrderId", clientOrderID)

	body, err := c.do(http.MethodGet, "/order", params, true, infra.GetOrderLimiter())
	if err != nil {
		return Order{}, err
	}
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// NewOrder places an order. Params carries the type-specific fields
// (quantity, price, quoteOrderQty, newClientOrderId, timeInForce).
func (c *Client) NewOrder(symbol, side, orderType string, params url.Values) (Order, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", orderType)

	body, err := c.do(http.MethodPost, "/order", params, true, infra.GetOrderLimiter())
	if err != nil {
		return Order{}, err
	}
	var ack Order
	if err := json.Unmarshal(body, &ack); err != nil {
		return Order{}, err
	}
	return ack, nil
}

// CancelOrder cancels one order by client order id.
func (c *Client) CancelOrder(symbol, clientOrderID string) (Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("origClientOrderId", clientOrderID)

	body, err := c.do(http.MethodDelete, "/order", params, true, infra.GetOrderLimiter())
	if err != nil {
		return Order{}, err
	}
	var ack Order
	if err := json.Unmarshal(body, &ack); err != nil {
		return Order{}, err
	}
	return ack, nil
}

// CancelOpenOrders cancels every open order on the symbol.
func (c *Client) CancelOpenOrders(symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, err := c.do(http.MethodDelete, "/openOrders", params, true, infra.GetOrderLimiter())
	return err
}

// AccountTradeList pages the account's fills. fromID 0 means "most recent".
func (c *Client) AccountTradeList(symbol string, fromID int64, limit int) ([]Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if fromID > 0 {
		params.Set("fromId", strconv.FormatInt(fromID, 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(http.MethodGet, "/myTrades", params, true, infra.GetAccountLimiter())
	if err != nil {
		return nil, err
	}
	var trades []Trade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}
