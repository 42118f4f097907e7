// room/room.go
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/network"
	"github.com/wfunc/blockroom/puzzle"
	"github.com/wfunc/blockroom/state"
	"github.com/wfunc/blockroom/timer"
)

// ErrRoomClosed is returned when posting to a room whose loop has stopped.
var ErrRoomClosed = errors.New("room closed")

// Mode selects what a room hosts.
type Mode string

const (
	// ModePuzzle rooms host a falling-block game driven by gravity ticks.
	ModePuzzle Mode = "puzzle"
	// ModeFree rooms only track player positions moved by move intents.
	ModeFree Mode = "free"
)

// Options configures a room. Zero values get defaults.
type Options struct {
	Mode            Mode
	InboxSize       int
	Clock           timer.Clock
	Broadcaster     Broadcaster
	Recorder        Recorder
	Rules           puzzle.Rules
	Seed            uint64
	MinTickInterval time.Duration
	ServerLocation  string
	NewID           func() string
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModePuzzle
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
	if o.Clock == nil {
		o.Clock = timer.SystemClock{}
	}
	if o.Broadcaster == nil {
		o.Broadcaster = sendEach{}
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Room is the single writer for one room's state. Every input goes through
// the inbox and is handled by Run one at a time, so handlers take no locks.
type Room struct {
	id          string
	mode        Mode
	location    string
	inbox       chan event
	done        chan struct{}
	closeOnce   sync.Once
	broadcaster Broadcaster
	recorder    Recorder
	clock       timer.Clock
	scheduler   *timer.TickScheduler
	minTick     time.Duration
	newID       func() string
	log         *zap.SugaredLogger

	engine    *puzzle.Engine
	game      puzzle.GameState
	score     int
	players   map[string]*Player // playerID -> player
	bindings  map[string]string  // connID -> playerID
	conns     map[string]Conn    // connID -> connection
	lifecycle *state.Lifecycle
	version   uint64
}

// New creates a room in the waiting state. It does nothing until Run is called.
func New(id string, opts Options) *Room {
	opts = opts.withDefaults()
	r := &Room{
		id:          id,
		mode:        opts.Mode,
		location:    opts.ServerLocation,
		inbox:       make(chan event, opts.InboxSize),
		done:        make(chan struct{}),
		broadcaster: opts.Broadcaster,
		recorder:    opts.Recorder,
		clock:       opts.Clock,
		minTick:     opts.MinTickInterval,
		newID:       opts.NewID,
		log:         logger.Log.With("room", id),
		players:     make(map[string]*Player),
		bindings:    make(map[string]string),
		conns:       make(map[string]Conn),
	}
	r.scheduler = timer.NewTickScheduler(r.clock, r.postTick)

	if r.mode == ModePuzzle {
		if opts.Seed != 0 {
			r.engine = puzzle.NewSeededEngine(opts.Rules, opts.Seed)
		} else {
			r.engine = puzzle.NewEngine(opts.Rules, nil)
		}
		r.game = r.engine.Reset()
	}

	r.lifecycle = state.NewLifecycle(r)
	return r
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Mode() Mode {
	return r.mode
}

// Run processes events until ctx is cancelled. Connections still attached
// when it returns are closed.
func (r *Room) Run(ctx context.Context) error {
	defer r.shutdown()
	r.log.Debug("room loop started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.inbox:
			r.dispatch(ev)
		}
	}
}

func (r *Room) shutdown() {
	r.closeOnce.Do(func() { close(r.done) })
	r.scheduler.Stop()
	for id, c := range r.conns {
		c.Close()
		delete(r.conns, id)
	}
	if n := len(r.players); n > 0 {
		r.recorder.PlayersChanged(-n)
	}
	r.log.Debug("room loop stopped")
}

// Done is closed once the room has stopped.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) post(ctx context.Context, ev event) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a connection. It receives a welcome but no broadcasts
// until it joins.
func (r *Room) Connect(ctx context.Context, conn Conn) error {
	return r.post(ctx, connectEvent{conn: conn})
}

// Deliver queues one raw client frame from connID.
func (r *Room) Deliver(ctx context.Context, connID string, raw []byte) error {
	return r.post(ctx, messageEvent{connID: connID, raw: raw})
}

// Disconnect reports that connID is gone. It waits for inbox space rather than
// dropping the event.
func (r *Room) Disconnect(connID string) error {
	return r.post(context.Background(), disconnectEvent{connID: connID})
}

// Inspect returns a copy of the current state without broadcasting.
func (r *Room) Inspect(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := r.post(ctx, inspectEvent{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return Snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// postTick runs on the clock's goroutine.
func (r *Room) postTick(gen uint64) {
	select {
	case r.inbox <- tickEvent{gen: gen}:
	case <-r.done:
	}
}

func (r *Room) dispatch(ev event) {
	start := time.Now()
	switch e := ev.(type) {
	case connectEvent:
		r.onConnect(e.conn)
	case messageEvent:
		r.onMessage(e.connID, e.raw)
	case disconnectEvent:
		r.onDisconnect(e.connID)
	case tickEvent:
		r.onTick(e.gen)
	case inspectEvent:
		e.reply <- r.snapshot()
	}
	r.recorder.EventHandled(ev.kind(), time.Since(start))
}

func (r *Room) onConnect(conn Conn) {
	id := conn.GetID()
	r.conns[id] = conn

	data, err := network.Encode(network.NewWelcome(id, r.location))
	if err != nil {
		r.log.Errorf("encode welcome: %v", err)
		return
	}
	if err := conn.Send(data); err != nil {
		r.log.Warnf("welcome to %s failed: %v", id, err)
		r.prune(id)
	}
}

func (r *Room) onMessage(connID string, raw []byte) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	msg, err := network.Decode(raw)
	if err != nil {
		r.log.Debugf("drop message from %s: %v", connID, err)
		return
	}

	switch m := msg.(type) {
	case network.JoinMsg:
		r.onJoin(connID, m.Username)
	case network.PingMsg:
		r.onPing(conn, m)
	case network.SetTeamMsg:
		r.onSetTeam(connID, Team(m.Team))
	case network.ReadyMsg:
		r.onReady(connID, m.Ready)
	case network.UnknownMsg:
		r.log.Debugf("ignore unknown message type %q from %s", m.Type, connID)
	default:
		r.onAction(connID, msg)
	}
}

func (r *Room) bound(connID string) *Player {
	playerID, ok := r.bindings[connID]
	if !ok {
		return nil
	}
	return r.players[playerID]
}

func (r *Room) onJoin(connID, username string) {
	if r.bound(connID) != nil {
		return
	}
	p := &Player{ID: r.newID(), Username: username}
	r.players[p.ID] = p
	r.bindings[connID] = p.ID
	r.recorder.PlayersChanged(1)
	r.log.Infof("%s joined as %s", username, p.ID)
	r.broadcast()
}

func (r *Room) onSetTeam(connID string, team Team) {
	p := r.bound(connID)
	if p == nil {
		return
	}
	p.Team = team
	r.broadcast()
}

func (r *Room) onReady(connID string, ready bool) {
	p := r.bound(connID)
	if p == nil {
		return
	}
	p.IsReady = ready
	r.broadcast()
}

// onAction hands lifecycle and gameplay intents to the current state.
func (r *Room) onAction(connID string, msg network.Inbound) {
	p := r.bound(connID)
	if p == nil {
		return
	}
	if r.lifecycle.GetCurrentState().HandleAction(p, msg) {
		r.broadcast()
	}
}

// onPing answers only the sender. The server timestamps bracket this handler.
func (r *Room) onPing(conn Conn, m network.PingMsg) {
	receivedAt := r.clock.Now().UnixMilli()
	pong := network.NewPong(m.Timestamp, receivedAt, 0)
	pong.ServerSentAt = r.clock.Now().UnixMilli()

	data, err := network.Encode(pong)
	if err != nil {
		r.log.Errorf("encode pong: %v", err)
		return
	}
	if err := conn.Send(data); err != nil {
		r.log.Warnf("pong to %s failed: %v", conn.GetID(), err)
		r.prune(conn.GetID())
	}
}

func (r *Room) onDisconnect(connID string) {
	delete(r.conns, connID)
	if !r.unbind(connID) {
		return
	}
	r.broadcast()
}

// unbind removes the player bound to connID, if any, and returns the room to
// waiting when the last player of a running game leaves.
func (r *Room) unbind(connID string) bool {
	playerID, ok := r.bindings[connID]
	if !ok {
		return false
	}
	delete(r.bindings, connID)
	if p, ok := r.players[playerID]; ok {
		delete(r.players, playerID)
		r.recorder.PlayersChanged(-1)
		r.log.Infof("%s (%s) left", p.Username, playerID)
	}
	if len(r.players) == 0 && r.lifecycle.Status() == state.StatusPlaying {
		r.ChangeStatus(state.StatusWaiting)
	}
	return true
}

// prune drops a connection that could not be written to. The change shows up
// in the next broadcast.
func (r *Room) prune(connID string) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	r.unbind(connID)
	conn.Close()
}

func (r *Room) onTick(gen uint64) {
	if !r.scheduler.Current(gen) {
		return
	}
	r.lifecycle.GetCurrentState().OnUpdate()
	if r.lifecycle.Status() == state.StatusPlaying && r.engine != nil {
		r.armTick()
	}
	r.broadcast()
}

func (r *Room) armTick() {
	r.scheduler.Arm(timer.LevelInterval(r.game.Level, r.minTick))
}

// broadcast sends the full state to every joined connection. Connections
// that fail are pruned, not retried.
func (r *Room) broadcast() {
	r.version++
	data, err := network.Encode(network.NewStateUpdate(r.snapshot()))
	if err != nil {
		r.log.Errorf("encode state: %v", err)
		return
	}

	targets := make([]Conn, 0, len(r.bindings))
	for connID := range r.bindings {
		if c, ok := r.conns[connID]; ok {
			targets = append(targets, c)
		}
	}

	for _, c := range r.broadcaster.Broadcast(r.id, targets, data) {
		r.log.Warnf("pruning %s after failed delivery", c.GetID())
		r.prune(c.GetID())
	}
}

func (r *Room) snapshot() Snapshot {
	players := make(map[string]Player, len(r.players))
	for id, p := range r.players {
		players[id] = *p
	}
	snap := Snapshot{
		Version: r.version,
		Players: players,
		Status:  r.lifecycle.Status(),
		Score:   r.score,
	}
	if r.engine != nil {
		g := r.game.Clone()
		snap.Game = &g
	}
	return snap
}

// --- state.RoomContext ---

func (r *Room) GetID() string {
	return r.id
}

func (r *Room) PlayerCount() int {
	return len(r.players)
}

func (r *Room) ChangeStatus(status state.Status) error {
	return r.lifecycle.ChangeStatus(status)
}

func (r *Room) HasGame() bool {
	return r.engine != nil
}

func (r *Room) ResetGame() {
	r.game = r.engine.Reset()
	r.score = 0
}

// ApplyGame relies on the engine returning its input unchanged for a no-op;
// every real change carries a new active piece.
func (r *Room) ApplyGame(msg network.Inbound) (changed, over bool) {
	before := r.game
	switch m := msg.(type) {
	case network.ShiftMsg:
		r.game = r.engine.Move(r.game, m.Dir)
	case network.RotateMsg:
		r.game = r.engine.Rotate(r.game, puzzle.Rotation(m.Dir))
	case network.SoftDropMsg:
		r.game = r.engine.SoftDrop(r.game)
	case network.HardDropMsg:
		r.game = r.engine.HardDrop(r.game)
	default:
		return false, r.game.GameOver
	}
	r.score = r.game.Score
	return r.game.ActivePiece != before.ActivePiece, r.game.GameOver
}

func (r *Room) TickGame() bool {
	r.game = r.engine.Tick(r.game)
	r.score = r.game.Score
	return r.game.GameOver
}

func (r *Room) StartTicks() {
	r.armTick()
}

func (r *Room) StopTicks() {
	r.scheduler.Stop()
}

func (r *Room) MovePlayer(playerID string, dx, dy int) bool {
	p, ok := r.players[playerID]
	if !ok {
		return false
	}
	p.X += dx
	p.Y += dy
	return true
}
