package hyperliquid

import "encoding/json"

// Fill is one raw trade execution as returned by the userFillsByTime info
// request. Hyperliquid reports prices and sizes as decimal strings and the
// timestamp as a number; numeric fields stay raw until normalization so a
// malformed field degrades to NaN instead of failing the whole decode.
type Fill struct {
	Time        json.RawMessage `json:"time"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Coin        string          `json:"coin"`
	Side        string          `json:"side"`
	Dir         string          `json:"dir"`
	Px          json.RawMessage `json:"px"`
	Sz          json.RawMessage `json:"sz"`
	ClosedPnl   json.RawMessage `json:"closedPnl"`
	Fee         json.RawMessage `json:"fee"`
	Liquidation json.RawMessage `json:"liquidation"`
}

// Leverage describes how a position is margined.
type Leverage struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Position is one asset position inside the clearinghouse snapshot.
type Position struct {
	Coin           string          `json:"coin"`
	Szi            json.RawMessage `json:"szi"`
	EntryPx        json.RawMessage `json:"entryPx"`
	PositionValue  json.RawMessage `json:"positionValue"`
	UnrealizedPnl  json.RawMessage `json:"unrealizedPnl"`
	ReturnOnEquity json.RawMessage `json:"returnOnEquity"`
	LiquidationPx  json.RawMessage `json:"liquidationPx"`
	MarginUsed     json.RawMessage `json:"marginUsed"`
	Leverage       Leverage        `json:"leverage"`
}

// AssetPosition wraps a position with its margin mode marker.
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// ClearinghouseState is the full margin snapshot for one address.
type ClearinghouseState struct {
	AssetPositions []AssetPosition `json:"assetPositions"`
	Time           int64           `json:"time"`
	Withdrawable   json.RawMessage `json:"withdrawable"`
}
