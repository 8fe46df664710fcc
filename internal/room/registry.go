package room

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"tictactoe-rooms/pkg/proto"
)

var (
	roomsCreated, _ = meter.Int64Counter("rooms.created")
	roomsActive, _  = meter.Int64UpDownCounter("rooms.active")
)

// Registry maps room ids to live rooms. Rooms are created lazily on first
// reference and destroyed when a room reports itself empty; an empty room
// carries no state worth preserving, so removal is unconditional.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	recorder Recorder
}

// NewRegistry creates an empty registry. recorder may be nil when game
// history is unavailable.
func NewRegistry(recorder Recorder) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		recorder: recorder,
	}
}

// FindOrCreate returns the room for id, creating an empty Waiting room on
// first reference. Room ids are opaque caller-supplied strings.
func (g *Registry) FindOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := New(id, g.recorder, g.Remove)
	g.rooms[id] = r
	roomsCreated.Add(context.Background(), 1)
	roomsActive.Add(context.Background(), 1)
	slog.Info("room created", "room.id", id)
	return r
}

// Get returns the room for id without creating one.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Remove drops the room for id. Called by a room once it is empty of seats
// and spectators.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[id]; !ok {
		return
	}
	delete(g.rooms, id)
	roomsActive.Add(context.Background(), -1)
	slog.Info("room destroyed", "room.id", id)
}

// List returns lobby listings for all active rooms, ordered by id.
func (g *Registry) List() []proto.RoomListing {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	out := make([]proto.RoomListing, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Listing())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
