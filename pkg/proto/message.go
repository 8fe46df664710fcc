package proto

import "tictactoe-rooms/internal/game"

// Client intent names. The set is closed; anything else is rejected at the
// boundary by the oneof rule on ClientMessage.
const (
	IntentJoinRoom  = "join-room"
	IntentMove      = "move"
	IntentSurrender = "surrender"
	IntentPromote   = "promote"
	IntentReset     = "reset"
	IntentLeaveRoom = "leave-room"
)

// Server notification names.
const (
	TypeRoomUpdate    = "room-update"
	TypeAssignment    = "assignment"
	TypeGameOver      = "game-over"
	TypePromoteFailed = "promote-failed"
	TypeError         = "error"
)

// Roles issued at join time.
const (
	RolePlayer    = "player"
	RoleSpectator = "spectator"
)

// ClientMessage is the inbound envelope for every intent.
type ClientMessage struct {
	Type   string `json:"type" validate:"required,oneof=join-room move surrender promote reset leave-room"`
	RoomID string `json:"roomId" validate:"required,max=64"`
	Name   string `json:"name,omitempty" validate:"max=32"`
	Cell   *int   `json:"cell,omitempty" validate:"omitempty,min=0,max=8"`
}

// SeatInfo is the public view of a seat.
type SeatInfo struct {
	Name   string    `json:"name"`
	Symbol game.Mark `json:"symbol"`
}

// RoomSnapshot is the externally visible projection of a room. It carries no
// connection identifiers.
type RoomSnapshot struct {
	Players    []SeatInfo  `json:"players"`
	Spectators int         `json:"spectators"`
	Board      []game.Mark `json:"board"`
	Next       game.Mark   `json:"next"`
	Started    bool        `json:"started"`
	Winner     game.Mark   `json:"winner"`
	Draw       bool        `json:"draw"`
}

// RoomListing is the lobby projection of an active room.
type RoomListing struct {
	ID         string `json:"id"`
	Players    int    `json:"players"`
	Spectators int    `json:"spectators"`
	Started    bool   `json:"started"`
}

// RoomUpdate is broadcast to every participant after a state-affecting
// operation.
type RoomUpdate struct {
	Type   string        `json:"type"`
	RoomID string        `json:"roomId"`
	Room   *RoomSnapshot `json:"room"`
}

func NewRoomUpdate(roomID string, snapshot *RoomSnapshot) *RoomUpdate {
	return &RoomUpdate{Type: TypeRoomUpdate, RoomID: roomID, Room: snapshot}
}

// Assignment tells a joining or promoted connection its role and symbol.
type Assignment struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	Role   string    `json:"role"`
	Symbol game.Mark `json:"symbol,omitempty"`
}

func NewAssignment(roomID, role string, symbol game.Mark) *Assignment {
	return &Assignment{Type: TypeAssignment, RoomID: roomID, Role: role, Symbol: symbol}
}

// GameOver is emitted once when a room reaches its terminal state. Winner is
// empty for a draw.
type GameOver struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	Winner game.Mark `json:"winner"`
	Reason string    `json:"reason"`
}

func NewGameOver(roomID string, winner game.Mark, reason string) *GameOver {
	return &GameOver{Type: TypeGameOver, RoomID: roomID, Winner: winner, Reason: reason}
}

// PromoteFailed answers a promote intent that found no free seat. It is the
// only refusal with its own notification.
type PromoteFailed struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

func NewPromoteFailed(roomID, reason string) *PromoteFailed {
	return &PromoteFailed{Type: TypePromoteFailed, RoomID: roomID, Reason: reason}
}

// ErrorNotice reports a rejected intent back to its sender only.
type ErrorNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorNotice(message string) *ErrorNotice {
	return &ErrorNotice{Type: TypeError, Message: message}
}
