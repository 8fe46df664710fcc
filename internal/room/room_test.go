package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"tictactoe-rooms/internal/game"
	"tictactoe-rooms/pkg/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu   sync.Mutex
	msgs []any
}

func (f *fakeSubscriber) Send(msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeSubscriber) gameOvers() []*proto.GameOver {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*proto.GameOver
	for _, m := range f.msgs {
		if g, ok := m.(*proto.GameOver); ok {
			out = append(out, g)
		}
	}
	return out
}

func (f *fakeSubscriber) lastUpdate() *proto.RoomUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if u, ok := f.msgs[i].(*proto.RoomUpdate); ok {
			return u
		}
	}
	return nil
}

func (f *fakeSubscriber) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if _, ok := m.(*proto.RoomUpdate); ok {
			n++
		}
	}
	return n
}

func (f *fakeSubscriber) promoteFailures() []*proto.PromoteFailed {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*proto.PromoteFailed
	for _, m := range f.msgs {
		if p, ok := m.(*proto.PromoteFailed); ok {
			out = append(out, p)
		}
	}
	return out
}

// twoPlayerRoom seats alice (X) and bob (O), leaving the room in progress.
func twoPlayerRoom(t *testing.T) (*Room, *fakeSubscriber, *fakeSubscriber) {
	t.Helper()
	r := New("r1", nil, nil)
	alice, bob := &fakeSubscriber{}, &fakeSubscriber{}

	resA := r.Join("conn-a", "alice", alice)
	require.Equal(t, proto.RolePlayer, resA.Role)
	require.Equal(t, game.PlayerX, resA.Mark)

	resB := r.Join("conn-b", "bob", bob)
	require.Equal(t, proto.RolePlayer, resB.Role)
	require.Equal(t, game.PlayerO, resB.Mark)

	require.Equal(t, StatusInProgress, r.Status())
	return r, alice, bob
}

func TestJoinAssignsSeatsFIFOThenSpectates(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)

	carol := &fakeSubscriber{}
	resC := r.Join("conn-c", "carol", carol)
	assert.Equal(t, proto.RoleSpectator, resC.Role)
	assert.Equal(t, game.None, resC.Mark)

	snap := r.Snapshot()
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "alice", snap.Players[0].Name)
	assert.Equal(t, game.PlayerX, snap.Players[0].Symbol)
	assert.Equal(t, "bob", snap.Players[1].Name)
	assert.Equal(t, game.PlayerO, snap.Players[1].Symbol)
	assert.Equal(t, 1, snap.Spectators)
	assert.True(t, snap.Started)
}

func TestJoinDefaultsDisplayName(t *testing.T) {
	r := New("r1", nil, nil)
	r.Join("conn-abcdef", "", &fakeSubscriber{})

	snap := r.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Player-conn", snap.Players[0].Name)
}

func TestWinningSequence(t *testing.T) {
	r, alice, bob := twoPlayerRoom(t)

	// X takes the top row while O fills the middle one.
	r.Move("conn-a", 0)
	r.Move("conn-b", 3)
	r.Move("conn-a", 1)
	r.Move("conn-b", 4)
	r.Move("conn-a", 2)

	require.Equal(t, StatusFinished, r.Status())
	overs := alice.gameOvers()
	require.Len(t, overs, 1)
	assert.Equal(t, game.PlayerX, overs[0].Winner)
	assert.Equal(t, string(ReasonWin), overs[0].Reason)
	require.Len(t, bob.gameOvers(), 1)

	snap := r.Snapshot()
	assert.Equal(t, game.PlayerX, snap.Winner)
	assert.False(t, snap.Started)
	assert.False(t, snap.Draw)
}

func TestTurnAlternatesStartingWithX(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)

	assert.Equal(t, game.PlayerX, r.Snapshot().Next)
	r.Move("conn-a", 0)
	assert.Equal(t, game.PlayerO, r.Snapshot().Next)
	r.Move("conn-b", 4)
	assert.Equal(t, game.PlayerX, r.Snapshot().Next)
	assert.NotNil(t, alice.lastUpdate())
}

func TestOutOfTurnMoveIsSilentlyIgnored(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)
	before := alice.updateCount()

	r.Move("conn-b", 0) // O moving while it is X's turn

	snap := r.Snapshot()
	assert.Equal(t, game.Board{}.Slice(), snap.Board)
	assert.Equal(t, game.PlayerX, snap.Next)
	assert.Empty(t, alice.gameOvers())
	assert.Equal(t, before, alice.updateCount(), "ignored move must not broadcast")
}

func TestMoveOnMarkedCellIsIgnored(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)

	r.Move("conn-a", 0)
	r.Move("conn-b", 0)

	snap := r.Snapshot()
	assert.Equal(t, game.PlayerX, snap.Board[0])
	assert.Equal(t, game.PlayerO, snap.Next, "failed move must not consume the turn")
}

func TestMoveFromSpectatorIsIgnored(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)
	r.Join("conn-c", "carol", &fakeSubscriber{})

	r.Move("conn-c", 0)

	assert.Equal(t, game.None, r.Snapshot().Board[0])
}

func TestMoveAfterFinishIsIgnored(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)
	r.Surrender("conn-b")
	require.Equal(t, StatusFinished, r.Status())

	r.Move("conn-a", 0)

	assert.Equal(t, game.None, r.Snapshot().Board[0])
	assert.Len(t, alice.gameOvers(), 1)
}

func TestSurrender(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)

	r.Surrender("conn-a")

	overs := alice.gameOvers()
	require.Len(t, overs, 1)
	assert.Equal(t, game.PlayerO, overs[0].Winner)
	assert.Equal(t, string(ReasonSurrender), overs[0].Reason)
	assert.Equal(t, StatusFinished, r.Status())
}

func TestSurrenderWhileWaitingIsIgnored(t *testing.T) {
	r := New("r1", nil, nil)
	alice := &fakeSubscriber{}
	r.Join("conn-a", "alice", alice)

	r.Surrender("conn-a")

	assert.Equal(t, StatusWaiting, r.Status())
	assert.Empty(t, alice.gameOvers())
}

func TestSeatedDepartureMidGameIsAbandonment(t *testing.T) {
	r, _, bob := twoPlayerRoom(t)

	r.Leave("conn-a")

	overs := bob.gameOvers()
	require.Len(t, overs, 1)
	assert.Equal(t, game.PlayerO, overs[0].Winner)
	assert.Equal(t, string(ReasonAbandonment), overs[0].Reason)
	assert.Equal(t, StatusFinished, r.Status())
}

func TestDepartureWhileWaitingVacatesSeatQuietly(t *testing.T) {
	r := New("r1", nil, nil)
	alice, carol := &fakeSubscriber{}, &fakeSubscriber{}
	r.Join("conn-a", "alice", alice)
	r.Join("conn-c", "carol", carol)
	r.Join("conn-d", "dave", &fakeSubscriber{})
	require.Equal(t, StatusInProgress, r.Status())
	r.Surrender("conn-a")
	r.Leave("conn-a")

	// No opponent mid-game anymore, so carol's later departure from her
	// spectator-free waiting room produces no terminal result.
	r.Reset("conn-c")
	require.Equal(t, StatusWaiting, r.Status())
	r.Leave("conn-c")

	snap := r.Snapshot()
	require.Len(t, snap.Players, 0)
	assert.Equal(t, StatusWaiting, r.Status())
	assert.Empty(t, carol.gameOvers()[1:], "waiting-room departure must not add a terminal result")
}

func TestLeaveIsIdempotent(t *testing.T) {
	r, _, bob := twoPlayerRoom(t)
	r.Join("conn-c", "carol", &fakeSubscriber{})

	r.Leave("conn-a")
	snapOnce := r.Snapshot()
	msgsOnce := bob.updateCount()

	r.Leave("conn-a")
	assert.Equal(t, snapOnce, r.Snapshot())
	assert.Equal(t, msgsOnce, bob.updateCount(), "repeated leave must not broadcast")
	assert.Len(t, bob.gameOvers(), 1)
}

func TestEmptyRoomSignalsOnEmptyOnce(t *testing.T) {
	removed := 0
	r := New("r1", nil, func(id string) {
		assert.Equal(t, "r1", id)
		removed++
	})
	r.Join("conn-a", "alice", &fakeSubscriber{})

	r.Leave("conn-a")
	r.Leave("conn-a")

	assert.Equal(t, 1, removed)
}

func TestSpectatorPromotion(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)
	carol := &fakeSubscriber{}
	require.Equal(t, proto.RoleSpectator, r.Join("conn-c", "carol", carol).Role)

	// Both seats taken: refusal notice, no state change.
	r.Promote("conn-c")
	failures := carol.promoteFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "no-slot", failures[0].Reason)
	assert.Equal(t, 1, r.Snapshot().Spectators)

	// X abandons; the vacated symbol goes to the promoted spectator.
	r.Leave("conn-a")
	r.Promote("conn-c")

	snap := r.Snapshot()
	require.Len(t, snap.Players, 2)
	assert.Equal(t, 0, snap.Spectators)

	marks := map[game.Mark]string{}
	for _, p := range snap.Players {
		marks[p.Symbol] = p.Name
	}
	assert.Equal(t, "carol", marks[game.PlayerX])
	assert.Equal(t, "bob", marks[game.PlayerO])
}

func TestPromoteFromNonSpectatorIsIgnored(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)

	r.Promote("conn-a")
	r.Promote("conn-unknown")

	assert.Empty(t, alice.promoteFailures())
	require.Len(t, r.Snapshot().Players, 2)
}

func TestDraw(t *testing.T) {
	r, alice, bob := twoPlayerRoom(t)

	// X: 0 8 7 2 3, O: 4 1 6 5 — nine cells, no line.
	moves := []struct {
		conn string
		cell int
	}{
		{"conn-a", 0}, {"conn-b", 4}, {"conn-a", 8}, {"conn-b", 1},
		{"conn-a", 7}, {"conn-b", 6}, {"conn-a", 2}, {"conn-b", 5},
		{"conn-a", 3},
	}
	for _, m := range moves {
		r.Move(m.conn, m.cell)
	}

	require.Equal(t, StatusFinished, r.Status())
	overs := alice.gameOvers()
	require.Len(t, overs, 1)
	assert.Equal(t, game.None, overs[0].Winner)
	assert.Equal(t, string(ReasonDraw), overs[0].Reason)
	require.Len(t, bob.gameOvers(), 1)

	snap := r.Snapshot()
	assert.True(t, snap.Draw)
	assert.Equal(t, game.None, snap.Winner)
}

func TestResetAfterFinish(t *testing.T) {
	r, alice, _ := twoPlayerRoom(t)
	r.Move("conn-a", 0)
	r.Surrender("conn-b")
	require.Equal(t, StatusFinished, r.Status())

	// A spectator cannot reset.
	r.Join("conn-c", "carol", &fakeSubscriber{})
	r.Reset("conn-c")
	assert.Equal(t, StatusFinished, r.Status())

	r.Reset("conn-a")

	snap := r.Snapshot()
	assert.Equal(t, game.Board{}.Slice(), snap.Board)
	assert.Equal(t, game.PlayerX, snap.Next)
	assert.Equal(t, game.None, snap.Winner)
	assert.False(t, snap.Draw)
	assert.True(t, snap.Started, "two seated players restart immediately")
	require.Len(t, snap.Players, 2)
	assert.NotNil(t, alice.lastUpdate())
}

func TestResetMidGameIsIgnored(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)
	r.Move("conn-a", 0)

	r.Reset("conn-a")

	assert.Equal(t, game.PlayerX, r.Snapshot().Board[0])
	assert.Equal(t, StatusInProgress, r.Status())
}

func TestResetWithSingleSeatReturnsToWaiting(t *testing.T) {
	r, _, _ := twoPlayerRoom(t)
	r.Surrender("conn-a")
	r.Leave("conn-a")
	require.Equal(t, StatusFinished, r.Status())

	r.Reset("conn-b")

	assert.Equal(t, StatusWaiting, r.Status())
}

type recordingRecorder struct {
	ch chan string
}

func (rec *recordingRecorder) Record(_ context.Context, roomID string, winner game.Mark, reason string) error {
	rec.ch <- roomID + "/" + string(winner) + "/" + reason
	return nil
}

func TestFinishedGameIsRecorded(t *testing.T) {
	rec := &recordingRecorder{ch: make(chan string, 1)}
	r := New("r1", rec, nil)
	r.Join("conn-a", "alice", &fakeSubscriber{})
	r.Join("conn-b", "bob", &fakeSubscriber{})

	r.Surrender("conn-b")

	select {
	case entry := <-rec.ch:
		assert.Equal(t, "r1/X/surrender", entry)
	case <-time.After(time.Second):
		t.Fatal("finished game was never recorded")
	}
}
