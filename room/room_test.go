package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockroom/network"
	"github.com/wfunc/blockroom/puzzle"
	"github.com/wfunc/blockroom/state"
	"github.com/wfunc/blockroom/timer"
)

// MockConn records every frame sent to it.
type MockConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func newMockConn(id string) *MockConn { return &MockConn{id: id} }

func (c *MockConn) GetID() string { return c.id }

func (c *MockConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write: broken pipe")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ofType returns the raw frames whose type field equals typ.
func (c *MockConn) ofType(typ string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(f, &env) == nil && env.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *MockConn) updates(t *testing.T) []Snapshot {
	t.Helper()
	var out []Snapshot
	for _, f := range c.ofType(network.TypeStateUpdate) {
		var msg struct {
			State Snapshot `json:"state"`
		}
		require.NoError(t, json.Unmarshal(f, &msg))
		out = append(out, msg.State)
	}
	return out
}

func (c *MockConn) lastUpdate(t *testing.T) Snapshot {
	t.Helper()
	u := c.updates(t)
	require.NotEmpty(t, u, "no state-update received by %s", c.id)
	return u[len(u)-1]
}

// countingBroadcaster counts Broadcast calls.
type countingBroadcaster struct {
	calls int
}

func (b *countingBroadcaster) Broadcast(roomID string, conns []Conn, data []byte) []Conn {
	b.calls++
	return sendEach{}.Broadcast(roomID, conns, data)
}

type harness struct {
	t     *testing.T
	room  *Room
	clock *timer.ManualClock
	bc    *countingBroadcaster
}

func newHarness(t *testing.T, mode Mode) *harness {
	clock := timer.NewManualClock(time.UnixMilli(1_700_000_000_000))
	bc := &countingBroadcaster{}
	n := 0
	r := New("test-room", Options{
		Mode:        mode,
		Clock:       clock,
		Broadcaster: bc,
		Rules:       puzzle.Rules{LinesPerLevel: 10},
		Seed:        7,
		NewID: func() string {
			n++
			return fmt.Sprintf("p%d", n)
		},
	})
	return &harness{t: t, room: r, clock: clock, bc: bc}
}

// pump handles every queued event on the test goroutine.
func (h *harness) pump() {
	for {
		select {
		case ev := <-h.room.inbox:
			h.room.dispatch(ev)
		default:
			return
		}
	}
}

func (h *harness) connect(id string) *MockConn {
	c := newMockConn(id)
	require.NoError(h.t, h.room.Connect(context.Background(), c))
	h.pump()
	return c
}

func (h *harness) send(c *MockConn, frame string) {
	require.NoError(h.t, h.room.Deliver(context.Background(), c.id, []byte(frame)))
	h.pump()
}

func (h *harness) join(id, username string) *MockConn {
	c := h.connect(id)
	h.send(c, fmt.Sprintf(`{"type":"join","username":%q}`, username))
	return c
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.pump()
}

func TestConnect_SendsWelcome(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	h.room.location = "fra1"

	c := h.connect("c1")

	welcomes := c.ofType(network.TypeWelcome)
	require.Len(t, welcomes, 1)
	assert.JSONEq(t, `{"type":"welcome","id":"c1","serverLocation":"fra1"}`, string(welcomes[0]))
	assert.Zero(t, h.bc.calls, "connecting alone does not broadcast")
}

func TestJoin_FirstPlayer(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.connect("c1")

	h.send(c1, `{"type":"join","username":"Fox"}`)

	updates := c1.updates(t)
	require.Len(t, updates, 1)
	snap := updates[0]
	require.Len(t, snap.Players, 1)
	for id, p := range snap.Players {
		assert.Equal(t, id, p.ID)
		assert.Equal(t, "Fox", p.Username)
		assert.Equal(t, TeamNone, p.Team)
		assert.False(t, p.IsReady)
		assert.Zero(t, p.X)
		assert.Zero(t, p.Y)
	}
	assert.Equal(t, state.StatusWaiting, snap.Status)
	assert.Equal(t, 1, h.bc.calls)

	raw := c1.ofType(network.TypeStateUpdate)[0]
	assert.Contains(t, string(raw), `"team":null`)
}

func TestJoin_OnlyJoinedConnectionsReceiveBroadcasts(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	lurker := h.connect("c2")
	h.join("c3", "Owl")

	assert.Len(t, c1.updates(t), 2)
	assert.Empty(t, lurker.updates(t))
}

func TestJoin_IsIdempotent(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	calls := h.bc.calls

	h.send(c1, `{"type":"join","username":"Fox again"}`)

	assert.Len(t, h.room.players, 1)
	assert.Equal(t, calls, h.bc.calls, "duplicate join must not broadcast")
	assert.Equal(t, "Fox", c1.lastUpdate(t).Players["p1"].Username)
}

func TestSetTeam(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	c2 := h.join("c2", "Owl")

	h.send(c1, `{"type":"set-team","team":"A"}`)

	for _, c := range []*MockConn{c1, c2} {
		snap := c.lastUpdate(t)
		assert.Equal(t, TeamA, snap.Players["p1"].Team)
		assert.Equal(t, TeamNone, snap.Players["p2"].Team)
		assert.Equal(t, "Owl", snap.Players["p2"].Username)
	}
}

func TestSetTeam_NoBalancing(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	for i := 1; i <= 3; i++ {
		c := h.join(fmt.Sprintf("c%d", i), fmt.Sprintf("P%d", i))
		h.send(c, `{"type":"set-team","team":"B"}`)
	}
	for _, p := range h.room.players {
		assert.Equal(t, TeamB, p.Team)
	}
}

func TestUnboundConnectionIsIgnored(t *testing.T) {
	h := newHarness(t, ModeFree)
	c := h.connect("c1")

	for _, frame := range []string{
		`{"type":"set-team","team":"A"}`,
		`{"type":"ready","ready":true}`,
		`{"type":"start"}`,
		`{"type":"move","dx":1,"dy":1}`,
	} {
		h.send(c, frame)
	}

	assert.Zero(t, h.bc.calls)
	assert.Empty(t, h.room.players)
	assert.Equal(t, state.StatusWaiting, h.room.lifecycle.Status())
}

func TestMalformedAndUnknownMessagesAreDropped(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	calls := h.bc.calls

	h.send(c1, `not json`)
	h.send(c1, `{"type":"set-team","team":"Z"}`)
	h.send(c1, `{"type":"emote","what":"wave"}`)

	assert.Equal(t, calls, h.bc.calls)
	assert.False(t, c1.isClosed())
	_, stillThere := h.room.conns["c1"]
	assert.True(t, stillThere)
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	h.join("c1", "Fox")
	calls := h.bc.calls

	require.NoError(t, h.room.Disconnect("c1"))
	h.pump()

	assert.Empty(t, h.room.players)
	assert.Empty(t, h.room.bindings)
	assert.Equal(t, calls+1, h.bc.calls, "disconnect broadcasts exactly once")
}

func TestDisconnect_ObserverSeesRemoval(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	h.join("c1", "Fox")
	c2 := h.join("c2", "Owl")
	before := len(c2.updates(t))

	h.room.Disconnect("c1")
	h.pump()

	updates := c2.updates(t)
	require.Len(t, updates, before+1)
	assert.Len(t, updates[len(updates)-1].Players, 1)
	assert.Contains(t, updates[len(updates)-1].Players, "p2")
}

func TestDisconnect_NeverJoinedIsNoop(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	h.connect("c1")

	h.room.Disconnect("c1")
	h.pump()

	assert.Zero(t, h.bc.calls)
	assert.Empty(t, h.room.conns)
}

func TestPing_RepliesToSenderOnly(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	c2 := h.join("c2", "Owl")
	calls := h.bc.calls
	c2Frames := len(c2.frames)

	h.send(c1, `{"type":"ping","timestamp":1000}`)

	pongs := c1.ofType(network.TypePong)
	require.Len(t, pongs, 1)
	var pong network.Pong
	require.NoError(t, json.Unmarshal(pongs[0], &pong))
	assert.Equal(t, json.Number("1000"), pong.Timestamp)
	assert.Equal(t, h.clock.Now().UnixMilli(), pong.ServerReceivedAt)
	assert.GreaterOrEqual(t, pong.ServerSentAt, pong.ServerReceivedAt)

	assert.Equal(t, calls, h.bc.calls, "ping does not broadcast")
	assert.Len(t, c2.frames, c2Frames)
}

func TestPing_WorksBeforeJoin(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c := h.connect("c1")

	h.send(c, `{"type":"ping","timestamp":5}`)

	assert.Len(t, c.ofType(network.TypePong), 1)
}

func TestReady(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")

	h.send(c1, `{"type":"ready","ready":true}`)
	assert.True(t, c1.lastUpdate(t).Players["p1"].IsReady)

	h.send(c1, `{"type":"ready","ready":false}`)
	assert.False(t, c1.lastUpdate(t).Players["p1"].IsReady)
}

func TestMove_FreeMode(t *testing.T) {
	h := newHarness(t, ModeFree)
	c1 := h.join("c1", "Fox")
	calls := h.bc.calls

	h.send(c1, `{"type":"move","dx":3,"dy":-2}`)
	assert.Equal(t, calls, h.bc.calls, "move while waiting is ignored")

	h.send(c1, `{"type":"start"}`)
	assert.Equal(t, state.StatusPlaying, c1.lastUpdate(t).Status)
	assert.Nil(t, c1.lastUpdate(t).Game)
	assert.Zero(t, h.clock.Pending(), "free rooms do not tick")

	h.send(c1, `{"type":"move","dx":3,"dy":-2}`)
	h.send(c1, `{"type":"move","dx":-100,"dy":0}`)

	p := c1.lastUpdate(t).Players["p1"]
	assert.Equal(t, -97, p.X, "no clamping")
	assert.Equal(t, -2, p.Y)
}

func TestBroadcast_PrunesFailedConnection(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	bad := h.join("c1", "Fox")
	good := h.join("c2", "Owl")
	bad.fail = true
	calls := h.bc.calls

	h.join("c3", "Cat")

	assert.True(t, bad.isClosed())
	assert.NotContains(t, h.room.players, "p1")
	assert.NotContains(t, h.room.conns, "c1")
	assert.Equal(t, calls+1, h.bc.calls, "pruning is not retried or re-broadcast")

	snap := good.lastUpdate(t)
	assert.Len(t, snap.Players, 3, "the failed delivery's broadcast still went out")

	h.send(good, `{"type":"ready","ready":true}`)
	assert.Len(t, good.lastUpdate(t).Players, 2)

	// the transport's own disconnect for the pruned connection is a no-op
	calls = h.bc.calls
	h.room.Disconnect("c1")
	h.pump()
	assert.Equal(t, calls, h.bc.calls)
}

func TestBroadcast_VersionsAreConsecutive(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	h.join("c2", "Owl")
	h.send(c1, `{"type":"set-team","team":"A"}`)
	h.send(c1, `{"type":"ready","ready":true}`)

	updates := c1.updates(t)
	require.Len(t, updates, 4)
	for i, u := range updates {
		assert.Equal(t, uint64(i+1), u.Version)
	}
}

func TestPuzzle_StartTicksAndFalls(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")

	h.send(c1, `{"type":"start"}`)
	started := c1.lastUpdate(t)
	require.Equal(t, state.StatusPlaying, started.Status)
	require.NotNil(t, started.Game)
	require.NotNil(t, started.Game.ActivePiece)
	assert.Equal(t, 1, h.clock.Pending())

	h.advance(999 * time.Millisecond)
	assert.Equal(t, started.Version, c1.lastUpdate(t).Version, "no tick before the interval")

	h.advance(time.Millisecond)
	ticked := c1.lastUpdate(t)
	assert.Equal(t, started.Version+1, ticked.Version)
	assert.Equal(t, started.Game.ActivePiece.Pos.Y+1, ticked.Game.ActivePiece.Pos.Y)
	assert.Equal(t, 1, h.clock.Pending(), "next tick is armed after the last one is handled")

	for i := 0; i < 3; i++ {
		h.advance(time.Second)
	}
	assert.Equal(t, started.Game.ActivePiece.Pos.Y+4, c1.lastUpdate(t).Game.ActivePiece.Pos.Y)
}

func TestPuzzle_IntentsOnlyWhilePlaying(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	calls := h.bc.calls

	h.send(c1, `{"type":"hard-drop"}`)
	assert.Equal(t, calls, h.bc.calls)

	h.send(c1, `{"type":"start"}`)
	x := c1.lastUpdate(t).Game.ActivePiece.Pos.X
	h.send(c1, `{"type":"shift","dir":-1}`)
	assert.Equal(t, x-1, c1.lastUpdate(t).Game.ActivePiece.Pos.X)
}

func TestPuzzle_HardDropUntilGameOver(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	h.send(c1, `{"type":"start"}`)

	for i := 0; i < 200 && h.room.lifecycle.Status() == state.StatusPlaying; i++ {
		h.send(c1, `{"type":"hard-drop"}`)
	}

	snap := c1.lastUpdate(t)
	require.Equal(t, state.StatusEnded, snap.Status)
	assert.True(t, snap.Game.GameOver)
	assert.Zero(t, h.clock.Pending(), "ticks stop on game over")

	calls := h.bc.calls
	h.send(c1, `{"type":"hard-drop"}`)
	h.advance(10 * time.Second)
	assert.Equal(t, calls, h.bc.calls)

	h.send(c1, `{"type":"start"}`)
	restarted := c1.lastUpdate(t)
	assert.Equal(t, state.StatusPlaying, restarted.Status)
	assert.False(t, restarted.Game.GameOver)
	assert.Zero(t, restarted.Score)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestPuzzle_ResetStopsTicks(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	h.send(c1, `{"type":"start"}`)
	h.advance(time.Second)

	h.send(c1, `{"type":"reset"}`)
	snap := c1.lastUpdate(t)
	assert.Equal(t, state.StatusWaiting, snap.Status)
	assert.Equal(t, 0, snap.Game.ActivePiece.Pos.Y)
	assert.Zero(t, h.clock.Pending())

	calls := h.bc.calls
	h.advance(5 * time.Second)
	assert.Equal(t, calls, h.bc.calls)
}

func TestPuzzle_StaleTickIsDiscarded(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	h.send(c1, `{"type":"start"}`)

	// reset is queued ahead of a tick that has already fired
	require.NoError(t, h.room.Deliver(context.Background(), "c1", []byte(`{"type":"reset"}`)))
	h.clock.Advance(time.Second)
	calls := h.bc.calls
	h.pump()

	assert.Equal(t, calls+1, h.bc.calls, "only the reset broadcasts")
	assert.Equal(t, state.StatusWaiting, c1.lastUpdate(t).Status)
}

func TestLastPlayerLeavingStopsGame(t *testing.T) {
	h := newHarness(t, ModePuzzle)
	c1 := h.join("c1", "Fox")
	h.send(c1, `{"type":"start"}`)
	require.Equal(t, 1, h.clock.Pending())

	h.room.Disconnect("c1")
	h.pump()

	assert.Equal(t, state.StatusWaiting, h.room.lifecycle.Status())
	assert.Zero(t, h.clock.Pending())
}

func TestRun_InspectAndShutdown(t *testing.T) {
	r := New("live", Options{Mode: ModePuzzle})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	c := newMockConn("c1")
	require.NoError(t, r.Connect(ctx, c))
	require.NoError(t, r.Deliver(ctx, "c1", []byte(`{"type":"join","username":"Fox"}`)))

	snap, err := r.Inspect(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)
	assert.Equal(t, uint64(1), snap.Version)

	cancel()
	require.NoError(t, <-done)
	<-r.Done()

	assert.True(t, c.isClosed())
	assert.ErrorIs(t, r.Deliver(context.Background(), "c1", []byte(`{}`)), ErrRoomClosed)
	_, err = r.Inspect(context.Background())
	assert.ErrorIs(t, err, ErrRoomClosed)
}
