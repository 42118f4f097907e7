// puzzle/grid.go
package puzzle

import "encoding/json"

const (
	Rows = 20
	Cols = 10
)

// PieceType tags a tetromino. The zero value marks an empty grid cell.
type PieceType string

const (
	Empty PieceType = ""
	TypeI PieceType = "I"
	TypeJ PieceType = "J"
	TypeL PieceType = "L"
	TypeO PieceType = "O"
	TypeS PieceType = "S"
	TypeT PieceType = "T"
	TypeZ PieceType = "Z"
)

// MarshalJSON encodes an empty cell as null so clients can test cells for truthiness.
func (t PieceType) MarshalJSON() ([]byte, error) {
	if t == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *PieceType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = PieceType(s)
	return nil
}

// Grid is the playfield. Being an array, it is copied by value and its
// dimensions are fixed by the type.
type Grid [Rows][Cols]PieceType

// NewGrid returns an empty grid.
func NewGrid() Grid {
	return Grid{}
}

// RowFull reports whether every cell of row y is occupied.
func (g *Grid) RowFull(y int) bool {
	for x := 0; x < Cols; x++ {
		if g[y][x] == Empty {
			return false
		}
	}
	return true
}

// Occupied reports whether the cell at (x, y) holds a block. Off-board
// coordinates are reported as unoccupied.
func (g *Grid) Occupied(x, y int) bool {
	if x < 0 || x >= Cols || y < 0 || y >= Rows {
		return false
	}
	return g[y][x] != Empty
}

// clearFullRows removes every full row, scanning top to bottom, and prepends
// the same number of empty rows so the grid keeps Rows rows.
func (g Grid) clearFullRows() (Grid, int) {
	var kept [Rows][Cols]PieceType
	n := 0
	cleared := 0
	for y := 0; y < Rows; y++ {
		if g.RowFull(y) {
			cleared++
			continue
		}
		kept[n] = g[y]
		n++
	}
	if cleared == 0 {
		return g, 0
	}

	var out Grid
	copy(out[cleared:], kept[:n])
	return out, cleared
}

// IsValidMove reports whether piece, shifted by (dx, dy), fits on grid.
// Cells above the board (negative rows) are never tested against the grid.
func IsValidMove(grid *Grid, piece Piece, dx, dy int) bool {
	for _, c := range piece.Cells() {
		x := c.X + dx
		y := c.Y + dy
		if x < 0 || x >= Cols || y >= Rows {
			return false
		}
		if y >= 0 && grid[y][x] != Empty {
			return false
		}
	}
	return true
}
