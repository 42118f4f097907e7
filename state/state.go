package state

import (
	"errors"

	"github.com/wfunc/blockroom/network"
)

// StateMachine drives a room through its lifecycle. Implementations are owned
// by a single room goroutine and are not safe for concurrent use.
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// State is one lifecycle phase of a room.
type State interface {
	OnEnter()
	OnExit()
	// OnUpdate handles one scheduled tick.
	OnUpdate()
	GetID() string
	// HandleAction applies a lifecycle or gameplay intent from a joined
	// player and reports whether room state changed.
	HandleAction(player Player, msg network.Inbound) bool
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine checks registered transition conditions before switching.
// Transitions that were never registered are allowed.
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// RoomStateBase provides no-op hooks for room states.
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

func (s *RoomStateBase) OnUpdate() {}

func (s *RoomStateBase) HandleAction(player Player, msg network.Inbound) bool {
	return false
}
