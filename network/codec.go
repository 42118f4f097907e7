package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that are not JSON objects or lack a
// required field. Such frames are dropped without closing the connection.
var ErrMalformed = errors.New("malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func fields(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return malformed("%v", err)
	}
	return nil
}

// Decode parses one client frame. A frame with an unrecognised type decodes to
// UnknownMsg with a nil error.
func Decode(raw []byte) (Inbound, error) {
	var env struct {
		Type *string `json:"type"`
	}
	if err := fields(raw, &env); err != nil {
		return nil, err
	}
	if env.Type == nil {
		return nil, malformed("missing type")
	}

	switch *env.Type {
	case TypeJoin:
		var p struct {
			Username *string `json:"username"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Username == nil || *p.Username == "" {
			return nil, malformed("join: missing username")
		}
		return JoinMsg{Username: *p.Username}, nil

	case TypePing:
		var p struct {
			Timestamp *json.Number `json:"timestamp"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Timestamp == nil || *p.Timestamp == "" {
			return nil, malformed("ping: missing timestamp")
		}
		return PingMsg{Timestamp: *p.Timestamp}, nil

	case TypeSetTeam:
		var p struct {
			Team *string `json:"team"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Team == nil || (*p.Team != "A" && *p.Team != "B") {
			return nil, malformed("set-team: team must be A or B")
		}
		return SetTeamMsg{Team: *p.Team}, nil

	case TypeMove:
		var p struct {
			DX *int `json:"dx"`
			DY *int `json:"dy"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.DX == nil || p.DY == nil {
			return nil, malformed("move: dx and dy are required")
		}
		return MoveMsg{DX: *p.DX, DY: *p.DY}, nil

	case TypeReady:
		var p struct {
			Ready *bool `json:"ready"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Ready == nil {
			return nil, malformed("ready: missing ready")
		}
		return ReadyMsg{Ready: *p.Ready}, nil

	case TypeShift:
		var p struct {
			Dir *int `json:"dir"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Dir == nil || (*p.Dir != -1 && *p.Dir != 1) {
			return nil, malformed("shift: dir must be -1 or 1")
		}
		return ShiftMsg{Dir: *p.Dir}, nil

	case TypeRotate:
		var p struct {
			Dir *string `json:"dir"`
		}
		if err := fields(raw, &p); err != nil {
			return nil, err
		}
		if p.Dir == nil || (*p.Dir != "CW" && *p.Dir != "CCW") {
			return nil, malformed("rotate: dir must be CW or CCW")
		}
		return RotateMsg{Dir: *p.Dir}, nil

	case TypeStart:
		return StartMsg{}, nil
	case TypeReset:
		return ResetMsg{}, nil
	case TypeSoftDrop:
		return SoftDropMsg{}, nil
	case TypeHardDrop:
		return HardDropMsg{}, nil
	}

	return UnknownMsg{Type: *env.Type}, nil
}

// Encode marshals an outbound message.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}
