package mexc

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Depth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/depth" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "TESTUSDT" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"lastUpdateId": 7, "bids": [["100","1"]], "asks": [["101","1"]]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", "")
	depth, err := c.Depth("TESTUSDT", 100)
	if err != nil {
		t.Fatal(err)
	}
	if depth.LastUpdateID != 7 || len(depth.Bids) != 1 || len(depth.Asks) != 1 {
		t.Errorf("depth = %+v", depth)
	}
}

func TestClient_SignedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("signature") == "" || q.Get("timestamp") == "" || q.Get("recvWindow") == "" {
			t.Errorf("missing signed params: %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-MEXC-APIKEY") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-MEXC-APIKEY"))
		}
		w.Write([]byte(`{"balances": [{"asset": "USDT", "free": "10.5", "locked": "0"}], "updateTime": 1700000000000}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-secret")
	info, err := c.AccountInfo()
	if err != nil {
		t.Fatal(err)
	}
	usdt := info.FindBalance("USDT")
	if float64(usdt.Free) != 10.5 {
		t.Errorf("USDT free = %v, want 10.5", usdt.Free)
	}
}

func TestClient_SignedRequiresCredentials(t *testing.T) {
	c := NewClient("http://localhost:0", "", "")
	if _, err := c.AccountInfo(); err == nil {
		t.Fatal("signed call without credentials should fail")
	}
}

func TestClient_RateLimitedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code": -1003, "msg": "Too many requests"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", "")
	_, err := c.Depth("TESTUSDT", 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimited(err) {
		t.Errorf("IsRateLimited = false for %v", err)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatal("error should be an HTTPError")
	}
	if httpErr.RetryAfter.Seconds() != 3 {
		t.Errorf("RetryAfter = %v, want 3s", httpErr.RetryAfter)
	}
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2011, "msg": "Unknown order"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "s")
	_, err := c.QueryOrder("TESTUSDT", "missing")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusBadRequest {
		t.Errorf("err = %v, want HTTP 400", err)
	}
	if IsRateLimited(err) {
		t.Error("400 must not classify as rate limited")
	}
}

func TestClient_TradeListPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fromId") != "43" {
			t.Errorf("fromId = %q, want 43", r.URL.Query().Get("fromId"))
		}
		w.Write([]byte(`[{"id": 43, "isBuyer": true, "isMaker": false,
			"price": "1.5", "qty": "10", "quoteQty": "15",
			"commission": "0.015", "commissionAsset": "USDT", "time": 1700000000000}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "s")
	trades, err := c.AccountTradeList("TESTUSDT", 43, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if int64(tr.ID) != 43 || !tr.IsBuyer || tr.IsMaker {
		t.Errorf("trade = %+v", tr)
	}
	if float64(tr.QuoteQty) != 15 || float64(tr.Commission) != 0.015 {
		t.Errorf("trade amounts = %+v", tr)
	}
}
