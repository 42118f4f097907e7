// state/lifecycle.go
package state

import (
	"fmt"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/network"
)

// Status is the room lifecycle phase reported to clients.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Lifecycle is the room state machine with its three states wired together.
type Lifecycle struct {
	*BaseStateMachine
	room   RoomContext
	states map[Status]State
}

// NewLifecycle builds the waiting, playing and ended states for room and
// enters waiting. A game can only start with at least one player present.
func NewLifecycle(room RoomContext) *Lifecycle {
	waiting := &WaitingState{RoomStateBase{ID: string(StatusWaiting), Room: room}}
	playing := &PlayingState{RoomStateBase{ID: string(StatusPlaying), Room: room}}
	ended := &EndedState{RoomStateBase{ID: string(StatusEnded), Room: room}}

	l := &Lifecycle{
		BaseStateMachine: NewBaseStateMachine(waiting),
		room:             room,
		states: map[Status]State{
			StatusWaiting: waiting,
			StatusPlaying: playing,
			StatusEnded:   ended,
		},
	}
	hasPlayers := func() bool { return room.PlayerCount() > 0 }
	l.AddTransition(waiting, playing, hasPlayers)
	l.AddTransition(ended, playing, hasPlayers)
	return l
}

func (l *Lifecycle) Status() Status {
	return Status(l.GetCurrentState().GetID())
}

// ChangeStatus moves to the named state. Moving to the current state is a no-op.
func (l *Lifecycle) ChangeStatus(status Status) error {
	next, ok := l.states[status]
	if !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	from := l.Status()
	if from == status {
		return nil
	}
	if err := l.ChangeState(next); err != nil {
		return fmt.Errorf("%s -> %s: %w", from, status, err)
	}
	logger.Log.Infof("room %s: %s -> %s", l.room.GetID(), from, status)
	return nil
}

// WaitingState is the lobby: players join, pick teams and get ready.
type WaitingState struct {
	RoomStateBase
}

func (s *WaitingState) OnEnter() {
	s.Room.StopTicks()
}

func (s *WaitingState) HandleAction(player Player, msg network.Inbound) bool {
	switch msg.(type) {
	case network.StartMsg:
		if s.Room.HasGame() {
			s.Room.ResetGame()
		}
		return s.Room.ChangeStatus(StatusPlaying) == nil
	case network.ResetMsg:
		if !s.Room.HasGame() {
			return false
		}
		s.Room.ResetGame()
		return true
	}
	return false
}

// PlayingState runs the game. Gravity ticks only arrive in this state.
type PlayingState struct {
	RoomStateBase
}

func (s *PlayingState) OnEnter() {
	if s.Room.HasGame() {
		s.Room.StartTicks()
	}
}

func (s *PlayingState) OnExit() {
	s.Room.StopTicks()
}

func (s *PlayingState) OnUpdate() {
	if !s.Room.HasGame() {
		return
	}
	if s.Room.TickGame() {
		s.Room.ChangeStatus(StatusEnded)
	}
}

func (s *PlayingState) HandleAction(player Player, msg network.Inbound) bool {
	switch m := msg.(type) {
	case network.MoveMsg:
		return s.Room.MovePlayer(player.GetID(), m.DX, m.DY)
	case network.ShiftMsg, network.RotateMsg, network.SoftDropMsg, network.HardDropMsg:
		if !s.Room.HasGame() {
			return false
		}
		changed, over := s.Room.ApplyGame(msg)
		if over {
			s.Room.ChangeStatus(StatusEnded)
			return true
		}
		return changed
	case network.ResetMsg:
		if s.Room.HasGame() {
			s.Room.ResetGame()
		}
		return s.Room.ChangeStatus(StatusWaiting) == nil
	}
	return false
}

// EndedState holds the final board until someone restarts or resets.
type EndedState struct {
	RoomStateBase
}

func (s *EndedState) HandleAction(player Player, msg network.Inbound) bool {
	switch msg.(type) {
	case network.StartMsg:
		if s.Room.HasGame() {
			s.Room.ResetGame()
		}
		return s.Room.ChangeStatus(StatusPlaying) == nil
	case network.ResetMsg:
		if s.Room.HasGame() {
			s.Room.ResetGame()
		}
		return s.Room.ChangeStatus(StatusWaiting) == nil
	}
	return false
}
