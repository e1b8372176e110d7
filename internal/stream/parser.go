// Package stream handles the WebSocket connection and message parsing for
// live fill updates.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/hlmonitor/engine/internal/hyperliquid"
)

// wsMessage is the base envelope of a Hyperliquid WebSocket message.
type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// userFillsData is the payload of a userFills channel message. Fills share
// the REST wire shape. IsSnapshot marks the historical batch sent right
// after subscribing.
type userFillsData struct {
	User       string             `json:"user"`
	IsSnapshot bool               `json:"isSnapshot"`
	Fills      []hyperliquid.Fill `json:"fills"`
}

// parseMessage decodes a raw WebSocket message. It returns the fills
// payload for userFills messages, or nil with the channel name for
// anything else (pong, subscriptionResponse, ...).
func parseMessage(data []byte) (*userFillsData, string, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, "", fmt.Errorf("decode message failed: %w", err)
	}

	if msg.Channel != "userFills" {
		return nil, msg.Channel, nil
	}

	var payload userFillsData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return nil, msg.Channel, fmt.Errorf("decode userFills failed: %w", err)
	}

	return &payload, msg.Channel, nil
}
