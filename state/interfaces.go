// state/interfaces.go
package state

import "github.com/wfunc/blockroom/network"

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
}

// RoomContext is what a room exposes to its lifecycle states.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	PlayerCount() int
	ChangeStatus(status Status) error

	// HasGame reports whether the room hosts a puzzle engine.
	HasGame() bool
	ResetGame()
	// ApplyGame forwards a gameplay intent to the engine. It reports whether
	// the game changed and whether it is now over.
	ApplyGame(msg network.Inbound) (changed, over bool)
	// TickGame runs one gravity step and reports whether the game is now over.
	TickGame() (over bool)
	StartTicks()
	StopTicks()

	MovePlayer(playerID string, dx, dy int) bool
}
