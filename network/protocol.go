package network

import "encoding/json"

// Message types carried in the "type" field of every frame.
const (
	TypeJoin        = "join"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeSetTeam     = "set-team"
	TypeMove        = "move"
	TypeStateUpdate = "state-update"
	TypeWelcome     = "welcome"

	TypeReady    = "ready"
	TypeStart    = "start"
	TypeReset    = "reset"
	TypeShift    = "shift"
	TypeRotate   = "rotate"
	TypeSoftDrop = "soft-drop"
	TypeHardDrop = "hard-drop"
)

// Inbound is a decoded client message. The set of implementations is closed.
type Inbound interface {
	inbound()
}

type JoinMsg struct {
	Username string
}

// PingMsg keeps the client timestamp as sent so the pong can echo it unchanged.
type PingMsg struct {
	Timestamp json.Number
}

type SetTeamMsg struct {
	Team string
}

type MoveMsg struct {
	DX, DY int
}

type ReadyMsg struct {
	Ready bool
}

type StartMsg struct{}

type ResetMsg struct{}

type ShiftMsg struct {
	Dir int
}

type RotateMsg struct {
	Dir string
}

type SoftDropMsg struct{}

type HardDropMsg struct{}

// UnknownMsg is a well-formed frame whose type this server does not know.
type UnknownMsg struct {
	Type string
}

func (JoinMsg) inbound()     {}
func (PingMsg) inbound()     {}
func (SetTeamMsg) inbound()  {}
func (MoveMsg) inbound()     {}
func (ReadyMsg) inbound()    {}
func (StartMsg) inbound()    {}
func (ResetMsg) inbound()    {}
func (ShiftMsg) inbound()    {}
func (RotateMsg) inbound()   {}
func (SoftDropMsg) inbound() {}
func (HardDropMsg) inbound() {}
func (UnknownMsg) inbound()  {}

// Welcome is the first frame sent on a new connection.
type Welcome struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	ServerLocation string `json:"serverLocation,omitempty"`
}

// Pong answers a ping. Server times are milliseconds since the Unix epoch.
type Pong struct {
	Type             string      `json:"type"`
	Timestamp        json.Number `json:"timestamp"`
	ServerReceivedAt int64       `json:"serverReceivedAt"`
	ServerSentAt     int64       `json:"serverSentAt"`
}

// StateUpdate carries a full room snapshot.
type StateUpdate struct {
	Type  string `json:"type"`
	State any    `json:"state"`
}

func NewWelcome(id, location string) Welcome {
	return Welcome{Type: TypeWelcome, ID: id, ServerLocation: location}
}

func NewPong(ts json.Number, receivedAt, sentAt int64) Pong {
	return Pong{Type: TypePong, Timestamp: ts, ServerReceivedAt: receivedAt, ServerSentAt: sentAt}
}

func NewStateUpdate(state any) StateUpdate {
	return StateUpdate{Type: TypeStateUpdate, State: state}
}
