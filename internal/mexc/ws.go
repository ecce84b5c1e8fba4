package mexc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"mexc_go/internal/book"
	"mexc_go/internal/infra"
)

// aggregated depth at the 100ms cadence; the JSON (non-protobuf) variant.
const depthChannelFormat = "spot@public.aggre.depth.v3.api@100ms@%s"

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int      `json:"id,omitempty"`
}

// WsClient is the spot WebSocket client. It implements book.DepthStream on
// top of the generic worker: connection lifecycle, reconnect and keepalive
// live in infra.BaseWSWorker, this type owns the subscription protocol and
// frame decoding.
type WsClient struct {
	base  *infra.BaseWSWorker
	wsURL string

	mu       sync.RWMutex
	handler  func(book.DepthFrame) bool
	channels map[string]struct{} // active subscriptions, resent on reconnect
	nextID   int
}

// NewWsClient creates the client for the given WS endpoint.
func NewWsClient(wsURL string) *WsClient {
	c := &WsClient{
		wsURL:    wsURL,
		channels: make(map[string]struct{}),
		nextID:   1,
	}
	c.base = infra.NewBaseWSWorker(c)
	return c
}

// Connect starts the connection loop.
func (c *WsClient) Connect(ctx context.Context) {
	c.base.Start(ctx)
}

// Close terminates the connection.
func (c *WsClient) Close() {
	c.base.Stop()
}

// IsConnected reports a live connection.
func (c *WsClient) IsConnected() bool {
	return c.base.IsConnected()
}

// SetDepthHandler installs the frame handler invoked from the reader
// goroutine.
func (c *WsClient) SetDepthHandler(handler func(book.DepthFrame) bool) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// SubscribeDepth sends the aggregated-depth subscription for the symbol.
func (c *WsClient) SubscribeDepth(symbol string) error {
	channel := fmt.Sprintf(depthChannelFormat, symbol)

	c.mu.Lock()
	c.channels[channel] = struct{}{}
	c.mu.Unlock()

	slog.Info("[WS] Sending depth subscription", "channel", channel)
	return c.send("SUBSCRIPTION", channel)
}

// UnsubscribeDepth sends the unsubscribe for the symbol.
func (c *WsClient) UnsubscribeDepth(symbol string) error {
	channel := fmt.Sprintf(depthChannelFormat, symbol)

	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()

	return c.send("UNSUBSCRIPTION", channel)
}

func (c *WsClient) send(method, channel string) error {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	msg, err := json.Marshal(wsRequest{Method: method, Params: []string{channel}, ID: id})
	if err != nil {
		return err
	}
	return c.base.Write(websocket.TextMessage, msg)
}

// ID implements infra.WebSocketHandler.
func (c *WsClient) ID() string { return "MEXC_SPOT" }

// GetURL implements infra.WebSocketHandler.
func (c *WsClient) GetURL() string { return c.wsURL }

// OnConnect re-issues every active subscription after a (re)connect.
func (c *WsClient) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	c.mu.RLock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.RUnlock()

	for _, ch := range channels {
		if err := c.send("SUBSCRIPTION", ch); err != nil {
			return err
		}
	}
	return nil
}

// OnMessage decodes a stream message and routes depth frames to the handler.
func (c *WsClient) OnMessage(ctx context.Context, msg []byte) {
	var probe struct {
		ID   *FlexInt64 `json:"id"`
		Code *FlexInt64 `json:"code"`
		Msg  string     `json:"msg"`
	}
	if err := json.Unmarshal(msg, &probe); err == nil && probe.ID != nil && probe.Code != nil {
		if *probe.Code != 0 {
			slog.Warn("[WS] Subscription rejected", "code", int64(*probe.Code), "msg", probe.Msg)
		} else {
			slog.Info("[WS] Subscription confirmed", "msg", probe.Msg)
		}
		return
	}
	if probe.Msg == "PONG" {
		return
	}

	frame, ok := DecodeDepthFrame(msg)
	if !ok {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(frame)
	}
}

// OnPing keeps the venue connection alive.
func (c *WsClient) OnPing(ctx context.Context, conn *websocket.Conn) error {
	msg, err := json.Marshal(wsRequest{Method: "PING"})
	if err != nil {
		return err
	}
	return c.base.Write(websocket.TextMessage, msg)
}
