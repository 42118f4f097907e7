package room

import (
	"encoding/json"

	"github.com/wfunc/blockroom/puzzle"
	"github.com/wfunc/blockroom/state"
)

// Team is A, B, or TeamNone.
type Team string

const (
	TeamNone Team = ""
	TeamA    Team = "A"
	TeamB    Team = "B"
)

// MarshalJSON encodes TeamNone as null.
func (t Team) MarshalJSON() ([]byte, error) {
	if t == TeamNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Team) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TeamNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Team(s)
	return nil
}

// Player is a joined participant. X and Y are only moved by the free-mode
// move intent.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Team     Team   `json:"team"`
	IsReady  bool   `json:"isReady"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

func (p *Player) GetID() string {
	return p.ID
}

// Snapshot is the full room state sent in every state-update. Version is the
// number of broadcasts the room has made, this one included.
type Snapshot struct {
	Version uint64            `json:"version"`
	Players map[string]Player `json:"players"`
	Status  state.Status      `json:"status"`
	Score   int               `json:"score"`
	Game    *puzzle.GameState `json:"game,omitempty"`
}
