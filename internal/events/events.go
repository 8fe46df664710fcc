package events

import "encoding/json"

// EventsChannel is the pub/sub channel for global events.
const EventsChannel = "channel:events"

// Event is the envelope for a message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// GameFinishedPayload is the payload for the "game_finished" event.
type GameFinishedPayload struct {
	RoomID string `json:"room_id"`
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}
