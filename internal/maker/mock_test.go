package maker

import (
	"net/url"
	"sync"

	"mexc_go/internal/book"
	"mexc_go/internal/mexc"
)

// mockAPI is a scripted SpotAPI for tests. Responses are set per field;
// every order-mutating call is recorded.
type mockAPI struct {
	mu sync.Mutex

	depth    book.RestDepth
	depthErr error

	filters    mexc.SymbolFilters
	filtersErr error

	account    mexc.AccountInfo
	accountErr error

	openOrders    []mexc.Order
	openOrdersErr error

	queryOrder    mexc.Order
	queryOrderErr error

	newOrderAck mexc.Order
	newOrderErr error

	trades    []mexc.Trade
	tradesErr error

	placedOrders    []placedOrder
	cancelledOrders []string
	cancelAllCalls  int
	tradeListFromID []int64
}

type placedOrder struct {
	Side   string
	Type   string
	Params url.Values
}

func (m *mockAPI) Depth(symbol string, limit int) (book.RestDepth, error) {
	return m.depth, m.depthErr
}

func (m *mockAPI) ExchangeInfo(symbol string) (mexc.SymbolFilters, error) {
	return m.filters, m.filtersErr
}

func (m *mockAPI) AccountInfo() (mexc.AccountInfo, error) {
	return m.account, m.accountErr
}

func (m *mockAPI) OpenOrders(symbol string) ([]mexc.Order, error) {
	return m.openOrders, m.openOrdersErr
}

func (m *mockAPI) QueryOrder(symbol, clientOrderID string) (mexc.Order, error) {
	return m.queryOrder, m.queryOrderErr
}

func (m *mockAPI) NewOrder(symbol, side, orderType string, params url.Values) (mexc.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.newOrderErr != nil {
		return mexc.Order{}, m.newOrderErr
	}
	m.placedOrders = append(m.placedOrders, placedOrder{Side: side, Type: orderType, Params: params})
	return m.newOrderAck, nil
}

func (m *mockAPI) CancelOrder(symbol, clientOrderID string) (mexc.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelledOrders = append(m.cancelledOrders, clientOrderID)
	return mexc.Order{Status: "CANCELED"}, nil
}

func (m *mockAPI) CancelOpenOrders(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelAllCalls++
	return nil
}

func (m *mockAPI) AccountTradeList(symbol string, fromID int64, limit int) ([]mexc.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradeListFromID = append(m.tradeListFromID, fromID)
	return m.trades, m.tradesErr
}
