package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserFillsByTime(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/info" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`[
			{"time": 1000, "coin": "BTC", "side": "B", "dir": "Open Long",
			 "px": "100.5", "sz": "2", "closedPnl": "0", "fee": "0.1"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	fills, err := client.UserFillsByTime(context.Background(), "0x1", 500, 2000, true)
	if err != nil {
		t.Fatalf("UserFillsByTime failed: %v", err)
	}

	if gotBody["type"] != "userFillsByTime" {
		t.Errorf("request type = %v", gotBody["type"])
	}
	if gotBody["user"] != "0x1" {
		t.Errorf("request user = %v", gotBody["user"])
	}
	if gotBody["startTime"] != float64(500) || gotBody["endTime"] != float64(2000) {
		t.Errorf("request window = %v..%v", gotBody["startTime"], gotBody["endTime"])
	}
	if gotBody["aggregateByTime"] != true {
		t.Errorf("request aggregateByTime = %v", gotBody["aggregateByTime"])
	}

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Coin != "BTC" || fills[0].Side != "B" {
		t.Errorf("unexpected fill: %+v", fills[0])
	}
	if string(fills[0].Px) != `"100.5"` {
		t.Errorf("px kept raw = %s", fills[0].Px)
	}
}

func TestClearinghouseState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "clearinghouseState" || body["user"] != "0x2" {
			t.Errorf("unexpected request body: %v", body)
		}
		w.Write([]byte(`{
			"assetPositions": [
				{"type": "oneWay", "position": {
					"coin": "ETH", "szi": "-1.5", "entryPx": "3000",
					"leverage": {"type": "cross", "value": 10}
				}}
			],
			"time": 1700000000000
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	state, err := client.ClearinghouseState(context.Background(), "0x2")
	if err != nil {
		t.Fatalf("ClearinghouseState failed: %v", err)
	}

	if len(state.AssetPositions) != 1 {
		t.Fatalf("expected 1 asset position, got %d", len(state.AssetPositions))
	}
	pos := state.AssetPositions[0].Position
	if pos.Coin != "ETH" || string(pos.Szi) != `"-1.5"` {
		t.Errorf("unexpected position: %+v", pos)
	}
	if pos.Leverage.Type != "cross" {
		t.Errorf("leverage type = %q", pos.Leverage.Type)
	}
}

func TestTransportErrorsPropagate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.UserFillsByTime(context.Background(), "0x1", 0, 1, false); err == nil {
		t.Error("expected error on non-2xx status")
	}
	if _, err := client.ClearinghouseState(context.Background(), "0x1"); err == nil {
		t.Error("expected error on non-2xx status")
	}
}

func TestMalformedJSONIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.UserFillsByTime(context.Background(), "0x1", 0, 1, false); err == nil {
		t.Error("expected decode error")
	}
}
