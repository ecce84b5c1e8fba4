package mexc

import (
	"testing"
)

func TestDecodeDepthFrame_WrappedV3(t *testing.T) {
	msg := []byte(`{
		"c": "spot@public.aggre.depth.v3.api@100ms@TESTUSDT",
		"d": {
			"bids": [["100.5", "1.2"], ["100.4", "0"]],
			"asks": [[101.0, 2]],
			"fromVersion": "11",
			"toVersion": "12"
		}
	}`)

	frame, ok := DecodeDepthFrame(msg)
	if !ok {
		t.Fatal("frame should decode")
	}
	if len(frame.Bids) != 2 || len(frame.Asks) != 1 {
		t.Fatalf("levels = %d/%d, want 2/1", len(frame.Bids), len(frame.Asks))
	}
	if frame.Bids[0].Price != 100.5 || frame.Bids[0].Quantity != 1.2 {
		t.Errorf("bid[0] = %+v", frame.Bids[0])
	}
	// Zero quantity survives decoding: it means deletion in a delta.
	if frame.Bids[1].Quantity != 0 {
		t.Errorf("bid[1].Quantity = %v, want 0", frame.Bids[1].Quantity)
	}
	if frame.FromVersion != "11" || frame.ToVersion != "12" {
		t.Errorf("versions = %q/%q", frame.FromVersion, frame.ToVersion)
	}
}

func TestDecodeDepthFrame_AltWrapper(t *testing.T) {
	msg := []byte(`{
		"channel": "depth.snapshot",
		"ts": 1700000000123,
		"data": {"bids": [["1.0", "5"]], "asks": [["1.1", "5"]]}
	}`)

	frame, ok := DecodeDepthFrame(msg)
	if !ok {
		t.Fatal("frame should decode")
	}
	if frame.UpdateID != 1700000000123 {
		t.Errorf("UpdateID = %d, want ts fallback", frame.UpdateID)
	}
}

func TestDecodeDepthFrame_BarePayload(t *testing.T) {
	msg := []byte(`{"bids": [["2.0", "3"]], "asks": [], "lastUpdateId": 42}`)

	frame, ok := DecodeDepthFrame(msg)
	if !ok {
		t.Fatal("frame should decode")
	}
	if frame.UpdateID != 42 {
		t.Errorf("UpdateID = %d, want 42", frame.UpdateID)
	}
}

func TestDecodeDepthFrame_NonDepthMessages(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"id": 1, "code": 0, "msg": "spot@public.aggre.depth.v3.api@100ms@TESTUSDT"}`),
		[]byte(`{"msg": "PONG"}`),
		[]byte(`not json`),
		[]byte(`{"c": "spot@public.deals.v3.api@TESTUSDT", "d": {"deals": []}}`),
	}

	for i, msg := range cases {
		if _, ok := DecodeDepthFrame(msg); ok {
			t.Errorf("case %d should not decode as a depth frame", i)
		}
	}
}

func TestParseDepthLevels_DropsMalformed(t *testing.T) {
	msg := []byte(`{
		"bids": [["100", "1"], ["bad", "1"], ["100"], 7, ["-5", "1"]],
		"asks": [["101", "1"]]
	}`)

	frame, ok := DecodeDepthFrame(msg)
	if !ok {
		t.Fatal("frame should decode")
	}
	if len(frame.Bids) != 1 {
		t.Errorf("bids = %d, want only the well-formed level", len(frame.Bids))
	}
}

func TestDecodeRestDepth(t *testing.T) {
	body := []byte(`{
		"lastUpdateId": 1000,
		"bids": [["100", "1"], ["99", "2"]],
		"asks": [["101", "1"], ["102", "2"]]
	}`)

	depth, err := decodeRestDepth(body)
	if err != nil {
		t.Fatal(err)
	}
	if depth.LastUpdateID != 1000 {
		t.Errorf("LastUpdateID = %d, want 1000", depth.LastUpdateID)
	}
	if len(depth.Bids) != 2 || len(depth.Asks) != 2 {
		t.Errorf("levels = %d/%d, want 2/2", len(depth.Bids), len(depth.Asks))
	}
}
