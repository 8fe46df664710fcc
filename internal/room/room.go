package room

import (
	"context"
	"log/slog"
	"sync"

	"tictactoe-rooms/internal/game"
	"tictactoe-rooms/pkg/proto"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("room")
	meter  = otel.Meter("room")
)

var gamesFinished, _ = meter.Int64Counter("games.finished")

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Reason explains why a game ended.
type Reason string

const (
	ReasonWin         Reason = "win"
	ReasonDraw        Reason = "draw"
	ReasonSurrender   Reason = "surrender"
	ReasonAbandonment Reason = "abandonment"
)

// Subscriber receives room notifications. Send must never block; delivery is
// best-effort so a stalled connection cannot stall the room.
type Subscriber interface {
	Send(msg any)
}

// Recorder persists finished games. Calls are made off the room lock and any
// failure is logged, never surfaced to players.
type Recorder interface {
	Record(ctx context.Context, roomID string, winner game.Mark, reason string) error
}

// Seat binds a connection to a turn symbol.
type Seat struct {
	ConnID string
	Name   string
	Mark   game.Mark
}

// JoinResult is the server-issued role assignment for a join.
type JoinResult struct {
	Role string
	Mark game.Mark
}

// Room is the authoritative state for one game instance. Every mutation goes
// through its mutex, so intents targeting the same room apply in arrival
// order while distinct rooms stay fully independent.
type Room struct {
	ID string

	mu         sync.Mutex
	board      game.Board
	seats      []*Seat
	spectators map[string]string // connID -> display name
	subs       map[string]Subscriber
	next       game.Mark
	status     Status
	winner     game.Mark
	reason     Reason

	recorder Recorder
	onEmpty  func(roomID string)
}

// New creates an empty Waiting room. onEmpty is invoked, outside the room
// lock, when the last participant leaves.
func New(id string, recorder Recorder, onEmpty func(roomID string)) *Room {
	return &Room{
		ID:         id,
		spectators: make(map[string]string),
		subs:       make(map[string]Subscriber),
		next:       game.PlayerX,
		status:     StatusWaiting,
		recorder:   recorder,
		onEmpty:    onEmpty,
	}
}

// Join seats the connection if a seat is free, otherwise adds it as a
// spectator. It never fails: a room always accepts a join. The joiner gets an
// explicit assignment and everyone gets a fresh snapshot.
func (r *Room) Join(connID, name string, sub Subscriber) JoinResult {
	_, span := tracer.Start(context.Background(), "room.Join", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	if name == "" {
		name = "Player-" + shortID(connID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[connID] = sub

	res := JoinResult{Role: proto.RoleSpectator}
	if len(r.seats) < 2 {
		seat := r.takeSeatLocked(connID, name)
		res = JoinResult{Role: proto.RolePlayer, Mark: seat.Mark}
	} else {
		r.spectators[connID] = name
	}
	span.SetAttributes(attribute.String("room.role", res.Role))

	sub.Send(proto.NewAssignment(r.ID, res.Role, res.Mark))
	r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
	return res
}

// Move applies a move for the seated connection. Out-of-turn moves, moves on
// marked cells and moves outside an in-progress game are expected UI noise
// and are dropped without a broadcast.
func (r *Room) Move(connID string, cell int) {
	ctx, span := tracer.Start(context.Background(), "room.Move", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.Int("move.cell", cell),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return
	}
	seat := r.seatLocked(connID)
	if seat == nil || seat.Mark != r.next {
		return
	}
	if err := r.board.Apply(cell, seat.Mark); err != nil {
		return
	}

	r.next = r.next.Other()
	if winner := r.board.Winner(); winner != game.None {
		if winner != seat.Mark {
			panic("room " + r.ID + ": winner does not match the moving seat")
		}
		r.finishLocked(ctx, winner, ReasonWin)
	} else if r.board.IsFull() {
		r.finishLocked(ctx, game.None, ReasonDraw)
	}
	r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
}

// Surrender ends an in-progress game in favor of the opponent.
func (r *Room) Surrender(connID string) {
	ctx, span := tracer.Start(context.Background(), "room.Surrender", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return
	}
	seat := r.seatLocked(connID)
	if seat == nil {
		return
	}
	r.finishLocked(ctx, seat.Mark.Other(), ReasonSurrender)
	r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
}

// Promote moves a spectator into a free seat. With no seat free the
// spectator gets a refusal notice and nothing changes.
func (r *Room) Promote(connID string) {
	_, span := tracer.Start(context.Background(), "room.Promote", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.spectators[connID]
	if !ok {
		return
	}
	sub := r.subs[connID]
	if len(r.seats) >= 2 {
		if sub != nil {
			sub.Send(proto.NewPromoteFailed(r.ID, "no-slot"))
		}
		return
	}

	delete(r.spectators, connID)
	seat := r.takeSeatLocked(connID, name)
	if sub != nil {
		sub.Send(proto.NewAssignment(r.ID, proto.RolePlayer, seat.Mark))
	}
	r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
}

// Reset clears a finished game back to a fresh board without touching seat
// occupancy. Only a seated participant may reset. With both seats still
// occupied the next game starts immediately.
func (r *Room) Reset(connID string) {
	_, span := tracer.Start(context.Background(), "room.Reset", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusFinished {
		return
	}
	if r.seatLocked(connID) == nil {
		return
	}

	r.board = game.Board{}
	r.winner = game.None
	r.reason = ""
	r.next = game.PlayerX
	if len(r.seats) == 2 {
		r.status = StatusInProgress
	} else {
		r.status = StatusWaiting
	}
	r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
}

// Leave removes the connection from its seat or the spectator set. A seated
// departure mid-game hands the win to the opponent. Leave is idempotent: a
// connection no longer present is a no-op. An emptied room signals onEmpty.
func (r *Room) Leave(connID string) {
	ctx, span := tracer.Start(context.Background(), "room.Leave", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()

	changed := false
	if _, ok := r.subs[connID]; ok {
		delete(r.subs, connID)
		changed = true
	}
	for i, s := range r.seats {
		if s.ConnID == connID {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			changed = true
			if r.status == StatusInProgress && len(r.seats) == 1 {
				r.finishLocked(ctx, r.seats[0].Mark, ReasonAbandonment)
			}
			break
		}
	}
	if _, ok := r.spectators[connID]; ok {
		delete(r.spectators, connID)
		changed = true
	}

	empty := len(r.seats) == 0 && len(r.spectators) == 0
	if changed && !empty {
		r.broadcastLocked(proto.NewRoomUpdate(r.ID, r.snapshotLocked()))
	}
	r.mu.Unlock()

	if changed && empty && r.onEmpty != nil {
		r.onEmpty(r.ID)
	}
}

// Snapshot returns the externally visible projection of the room.
func (r *Room) Snapshot() *proto.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Listing returns the lobby projection of the room.
func (r *Room) Listing() proto.RoomListing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return proto.RoomListing{
		ID:         r.ID,
		Players:    len(r.seats),
		Spectators: len(r.spectators),
		Started:    r.status == StatusInProgress,
	}
}

// Status returns the current lifecycle state.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) seatLocked(connID string) *Seat {
	for _, s := range r.seats {
		if s.ConnID == connID {
			return s
		}
	}
	return nil
}

// takeSeatLocked assigns the free symbol: X on a fresh room, otherwise
// whichever symbol the current occupant does not hold. That keeps assignment
// FIFO and re-issues a vacated symbol to a promoted spectator.
func (r *Room) takeSeatLocked(connID, name string) *Seat {
	mark := game.PlayerX
	for _, s := range r.seats {
		if s.Mark == game.PlayerX {
			mark = game.PlayerO
		}
	}
	for _, s := range r.seats {
		if s.Mark == mark {
			panic("room " + r.ID + ": seat symbol collision")
		}
	}

	seat := &Seat{ConnID: connID, Name: name, Mark: mark}
	r.seats = append(r.seats, seat)
	if len(r.seats) == 2 && r.status == StatusWaiting {
		r.status = StatusInProgress
	}
	return seat
}

func (r *Room) finishLocked(ctx context.Context, winner game.Mark, reason Reason) {
	r.status = StatusFinished
	r.winner = winner
	r.reason = reason
	r.broadcastLocked(proto.NewGameOver(r.ID, winner, string(reason)))

	gamesFinished.Add(ctx, 1, metricAttrs(reason))
	slog.Info("game finished", "room.id", r.ID, "winner", string(winner), "reason", string(reason))

	if r.recorder != nil {
		id := r.ID
		go func() {
			if err := r.recorder.Record(context.Background(), id, winner, string(reason)); err != nil {
				slog.Warn("failed to record finished game", "room.id", id, "error", err)
			}
		}()
	}
}

func (r *Room) broadcastLocked(msg any) {
	for _, sub := range r.subs {
		sub.Send(msg)
	}
}

func (r *Room) snapshotLocked() *proto.RoomSnapshot {
	players := make([]proto.SeatInfo, 0, len(r.seats))
	for _, s := range r.seats {
		players = append(players, proto.SeatInfo{Name: s.Name, Symbol: s.Mark})
	}
	return &proto.RoomSnapshot{
		Players:    players,
		Spectators: len(r.spectators),
		Board:      r.board.Slice(),
		Next:       r.next,
		Started:    r.status == StatusInProgress,
		Winner:     r.winner,
		Draw:       r.status == StatusFinished && r.winner == game.None,
	}
}

func metricAttrs(reason Reason) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", string(reason)))
}

func shortID(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}
