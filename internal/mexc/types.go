package mexc

import (
	"strconv"

	"github.com/goccy/go-json"
)

// FlexFloat decodes a JSON number that the venue sends either quoted or
// bare. Unparseable values decode as 0.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt64 decodes a JSON integer, quoted or bare.
type FlexInt64 int64

func (i *FlexInt64) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*i = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = FlexInt64(v)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*i = FlexInt64(int64(v))
		return nil
	}
	*i = 0
	return nil
}

// Balance is one asset row of the account snapshot.
type Balance struct {
	Asset  string    `json:"asset"`
	Free   FlexFloat `json:"free"`
	Locked FlexFloat `json:"locked"`
}

// AccountInfo is the signed account endpoint response.
type AccountInfo struct {
	Balances   []Balance `json:"balances"`
	UpdateTime FlexInt64 `json:"updateTime"`
}

// FindBalance returns the row for the asset, zero-valued when absent.
func (a AccountInfo) FindBalance(asset string) Balance {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b
		}
	}
	return Balance{Asset: asset}
}

// Order is a venue order row (open orders, query order, new-order ack).
type Order struct {
	OrderID       json.RawMessage `json:"orderId"` // string or number, kept raw
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Status        string          `json:"status"`
	Price         FlexFloat       `json:"price"`
	OrigQty       FlexFloat       `json:"origQty"`
	ExecutedQty   FlexFloat       `json:"executedQty"`
}

// OrderIDString renders the raw orderId for logging.
func (o Order) OrderIDString() string {
	s := string(o.OrderID)
	if len(s) >= 2 && s[0] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Closed reports a terminal order status.
func (o Order) Closed() bool {
	switch o.Status {
	case "CANCELED", "FILLED", "REJECTED", "EXPIRED":
		return true
	}
	return false
}

// Trade is one row of the account trade list.
type Trade struct {
	ID              FlexInt64 `json:"id"`
	IsBuyer         bool      `json:"isBuyer"`
	IsMaker         bool      `json:"isMaker"`
	Price           FlexFloat `json:"price"`
	Qty             FlexFloat `json:"qty"`
	QuoteQty        FlexFloat `json:"quoteQty"`
	Commission      FlexFloat `json:"commission"`
	CommissionAsset string    `json:"commissionAsset"`
	Time            FlexInt64 `json:"time"`
}

// SymbolFilters are the venue-declared minima and increments a valid order
// must satisfy.
type SymbolFilters struct {
	MinPrice    float64
	TickSize    float64
	MinQty      float64
	StepSize    float64
	MinNotional float64
}

// exchangeInfoResponse is the raw exchangeInfo payload.
type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string    `json:"filterType"`
			MinPrice    FlexFloat `json:"minPrice"`
			TickSize    FlexFloat `json:"tickSize"`
			MinQty      FlexFloat `json:"minQty"`
			StepSize    FlexFloat `json:"stepSize"`
			MinNotional FlexFloat `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}
