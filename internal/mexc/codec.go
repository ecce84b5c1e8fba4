package mexc

import (
	"strconv"

	"github.com/goccy/go-json"

	"mexc_go/internal/book"
)

// Depth payload decoding for both the REST snapshot and the aggregated
// stream. Levels arrive as [price, qty] pairs whose entries may be strings
// or numbers; malformed levels are silently dropped.

type rawDepthPayload struct {
	Bids         []json.RawMessage `json:"bids"`
	Asks         []json.RawMessage `json:"asks"`
	FromVersion  string            `json:"fromVersion"`
	ToVersion    string            `json:"toVersion"`
	Version      FlexInt64         `json:"version"`
	LastUpdateID FlexInt64         `json:"lastUpdateId"`
}

type depthEnvelope struct {
	// MEXC v3 wrapper: {"c": "channel", "d": {...}}
	Channel string          `json:"c"`
	Data    json.RawMessage `json:"d"`
	// Alternative wrapper: {"channel": "...", "data": {...}, "ts": n}
	AltChannel string          `json:"channel"`
	AltData    json.RawMessage `json:"data"`
	Ts         FlexInt64       `json:"ts"`
	// Ack fields for subscription confirmations.
	ID   *FlexInt64 `json:"id"`
	Code *FlexInt64 `json:"code"`
	Msg  string     `json:"msg"`
}

func parseLevel(raw json.RawMessage) (book.PriceLevel, bool) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) < 2 {
		return book.PriceLevel{}, false
	}

	price, ok1 := parseFlexNumber(pair[0])
	qty, ok2 := parseFlexNumber(pair[1])
	if !ok1 || !ok2 || price <= 0 || qty < 0 {
		return book.PriceLevel{}, false
	}
	return book.PriceLevel{Price: price, Quantity: qty}, true
}

func parseFlexNumber(raw json.RawMessage) (float64, bool) {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDepthLevels decodes an array of [price, qty] pairs. Zero quantities
// are preserved — in a delta they mean deletion.
func ParseDepthLevels(raw []json.RawMessage) []book.PriceLevel {
	result := make([]book.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if level, ok := parseLevel(entry); ok {
			result = append(result, level)
		}
	}
	return result
}

// DecodeDepthFrame turns a stream message into a DepthFrame. It tolerates
// the {c,d} and {channel,data} wrappers and falls back to treating the whole
// payload as the depth object. Returns false for non-depth messages
// (subscription acks, pongs, unrelated channels, garbage).
func DecodeDepthFrame(msg []byte) (book.DepthFrame, bool) {
	var env depthEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return book.DepthFrame{}, false
	}

	// Subscription ack / error response, not a data frame.
	if env.ID != nil && env.Code != nil {
		return book.DepthFrame{}, false
	}

	payload := json.RawMessage(msg)
	legacyID := int64(0)
	switch {
	case env.Channel != "" && env.Data != nil:
		payload = env.Data
	case env.AltChannel != "" && env.AltData != nil:
		payload = env.AltData
		legacyID = int64(env.Ts)
	}

	var raw rawDepthPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return book.DepthFrame{}, false
	}

	frame := book.DepthFrame{
		Bids:        ParseDepthLevels(raw.Bids),
		Asks:        ParseDepthLevels(raw.Asks),
		FromVersion: raw.FromVersion,
		ToVersion:   raw.ToVersion,
	}

	switch {
	case raw.Version != 0:
		frame.UpdateID = int64(raw.Version)
	case raw.LastUpdateID != 0:
		frame.UpdateID = int64(raw.LastUpdateID)
	default:
		frame.UpdateID = legacyID
	}

	if len(frame.Bids) == 0 && len(frame.Asks) == 0 {
		return book.DepthFrame{}, false
	}
	return frame, true
}

// decodeRestDepth parses the REST depth snapshot body.
func decodeRestDepth(body []byte) (book.RestDepth, error) {
	var raw rawDepthPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return book.RestDepth{}, err
	}
	return book.RestDepth{
		Bids:         ParseDepthLevels(raw.Bids),
		Asks:         ParseDepthLevels(raw.Asks),
		LastUpdateID: int64(raw.LastUpdateID),
	}, nil
}
