// puzzle/engine.go
package puzzle

import (
	"math/rand/v2"
)

// GameState is one puzzle game. Engine operations never mutate the state
// they are given; they return a new value.
type GameState struct {
	Grid        Grid   `json:"grid"`
	ActivePiece *Piece `json:"activePiece"`
	Score       int    `json:"score"`
	Lines       int    `json:"lines"`
	Level       int    `json:"level"`
	GameOver    bool   `json:"gameOver"`
}

// Clone returns a deep copy of s.
func (s GameState) Clone() GameState {
	if s.ActivePiece != nil {
		p := s.ActivePiece.Clone()
		s.ActivePiece = &p
	}
	return s
}

// Rotation is the direction of a rotate intent.
type Rotation string

const (
	CW  Rotation = "CW"
	CCW Rotation = "CCW"
)

// kickOffsets is tried in order after a rotation; the first legal offset wins.
var kickOffsets = []int{0, -1, 1}

const pointsPerLine = 100

// Rules tune the engine.
type Rules struct {
	// LinesPerLevel raises the level by one every n cleared lines. Zero keeps level 1.
	LinesPerLevel int
	// RerollGameOverProbe tests game over against a second, freshly rolled
	// piece instead of the piece that was actually spawned. The spawned piece
	// stays active either way.
	RerollGameOverProbe bool
}

// DefaultRules returns the rules used when none are configured.
func DefaultRules() Rules {
	return Rules{LinesPerLevel: 10, RerollGameOverProbe: true}
}

// Engine applies puzzle rules. It holds no game state, only its random source.
type Engine struct {
	rules Rules
	rng   *rand.Rand
}

// NewEngine creates an engine. A nil rng uses a randomly seeded source.
func NewEngine(rules Rules, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{rules: rules, rng: rng}
}

// NewSeededEngine creates an engine whose spawn sequence is fixed by seed.
func NewSeededEngine(rules Rules, seed uint64) *Engine {
	return NewEngine(rules, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Rules returns the engine's rules.
func (e *Engine) Rules() Rules {
	return e.rules
}

// RandomPiece picks one of the seven types uniformly and spawns it.
func (e *Engine) RandomPiece() Piece {
	return NewPiece(Types[e.rng.IntN(len(Types))])
}

// Reset returns a brand-new game.
func (e *Engine) Reset() GameState {
	p := e.RandomPiece()
	return GameState{
		Grid:        NewGrid(),
		ActivePiece: &p,
		Level:       1,
	}
}

func playable(s GameState) bool {
	return !s.GameOver && s.ActivePiece != nil
}

// Move shifts the active piece one column left (dir < 0) or right (dir > 0).
func (e *Engine) Move(s GameState, dir int) GameState {
	if !playable(s) || dir == 0 {
		return s
	}
	if dir < 0 {
		dir = -1
	} else {
		dir = 1
	}
	if !IsValidMove(&s.Grid, *s.ActivePiece, dir, 0) {
		return s
	}
	next := s.Clone()
	next.ActivePiece.Pos.X += dir
	return next
}

// Rotate turns the active piece, trying the kick ladder 0, -1, +1.
func (e *Engine) Rotate(s GameState, dir Rotation) GameState {
	if !playable(s) {
		return s
	}
	var rotated Piece
	switch dir {
	case CW:
		rotated = RotateClockwise(*s.ActivePiece)
	case CCW:
		rotated = RotateCounterClockwise(*s.ActivePiece)
	default:
		return s
	}
	for _, dx := range kickOffsets {
		if IsValidMove(&s.Grid, rotated, dx, 0) {
			next := s.Clone()
			rotated.Pos.X += dx
			next.ActivePiece = &rotated
			return next
		}
	}
	return s
}

// SoftDrop forces a single gravity step.
func (e *Engine) SoftDrop(s GameState) GameState {
	return e.Tick(s)
}

// HardDrop drops the active piece as far as it goes and locks it.
func (e *Engine) HardDrop(s GameState) GameState {
	if !playable(s) {
		return s
	}
	next := s.Clone()
	for IsValidMove(&next.Grid, *next.ActivePiece, 0, 1) {
		next.ActivePiece.Pos.Y++
	}
	return e.lock(next)
}

// Tick is one gravity step: fall one row, or lock when blocked.
func (e *Engine) Tick(s GameState) GameState {
	if !playable(s) {
		return s
	}
	if IsValidMove(&s.Grid, *s.ActivePiece, 0, 1) {
		next := s.Clone()
		next.ActivePiece.Pos.Y++
		return next
	}
	return e.lock(s)
}

// lock stamps the active piece, clears full rows, scores, and spawns the next piece.
func (e *Engine) lock(s GameState) GameState {
	grid := s.Grid
	piece := s.ActivePiece
	for _, c := range piece.Cells() {
		if c.Y < 0 || c.Y >= Rows || c.X < 0 || c.X >= Cols {
			continue
		}
		grid[c.Y][c.X] = piece.Type
	}

	grid, cleared := grid.clearFullRows()

	next := GameState{
		Grid:  grid,
		Score: s.Score + cleared*pointsPerLine*s.Level,
		Lines: s.Lines + cleared,
		Level: s.Level,
	}
	if e.rules.LinesPerLevel > 0 {
		if lvl := 1 + next.Lines/e.rules.LinesPerLevel; lvl > next.Level {
			next.Level = lvl
		}
	}

	spawned := e.RandomPiece()
	next.ActivePiece = &spawned

	candidate := spawned
	if e.rules.RerollGameOverProbe {
		candidate = e.RandomPiece()
	}
	next.GameOver = !IsValidMove(&next.Grid, candidate, 0, 0)
	return next
}
