// puzzle/piece.go
package puzzle

import "encoding/json"

// Point is a grid coordinate; Y grows downwards.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Shape is a row-major occupancy matrix of at most 4x4 cells. On the wire
// each cell is 0 or 1.
type Shape [][]bool

func (s Shape) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	rows := make([][]uint8, len(s))
	for y, row := range s {
		rows[y] = make([]uint8, len(row))
		for x, filled := range row {
			if filled {
				rows[y][x] = 1
			}
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON treats any non-zero cell as filled.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		*s = nil
		return nil
	}
	out := make(Shape, len(rows))
	for y, row := range rows {
		out[y] = make([]bool, len(row))
		for x, v := range row {
			out[y][x] = v != 0
		}
	}
	*s = out
	return nil
}

// Piece is a movable tetromino. Pos is the top-left anchor of Shape.
type Piece struct {
	Type  PieceType `json:"type"`
	Shape Shape     `json:"shape"`
	Pos   Point     `json:"pos"`
	Color string    `json:"color"`
}

type tetromino struct {
	shape Shape
	color string
}

// Types lists the seven piece types in spawn-table order.
var Types = []PieceType{TypeI, TypeJ, TypeL, TypeO, TypeS, TypeT, TypeZ}

var tetrominos = map[PieceType]tetromino{
	TypeI: {shape: shapeOf([]int{1, 1, 1, 1}), color: "#00f0f0"},
	TypeJ: {shape: shapeOf([]int{1, 0, 0}, []int{1, 1, 1}), color: "#0000f0"},
	TypeL: {shape: shapeOf([]int{0, 0, 1}, []int{1, 1, 1}), color: "#f0a000"},
	TypeO: {shape: shapeOf([]int{1, 1}, []int{1, 1}), color: "#f0f000"},
	TypeS: {shape: shapeOf([]int{0, 1, 1}, []int{1, 1, 0}), color: "#00f000"},
	TypeT: {shape: shapeOf([]int{0, 1, 0}, []int{1, 1, 1}), color: "#a000f0"},
	TypeZ: {shape: shapeOf([]int{1, 1, 0}, []int{0, 1, 1}), color: "#f00000"},
}

func shapeOf(rows ...[]int) Shape {
	s := make(Shape, len(rows))
	for y, row := range rows {
		s[y] = make([]bool, len(row))
		for x, v := range row {
			s[y][x] = v != 0
		}
	}
	return s
}

// NewPiece returns a piece of type t in its canonical orientation, centred
// horizontally on row 0.
func NewPiece(t PieceType) Piece {
	tm := tetrominos[t]
	width := 0
	if len(tm.shape) > 0 {
		width = len(tm.shape[0])
	}
	return Piece{
		Type:  t,
		Shape: tm.shape.clone(),
		Pos:   Point{X: Cols/2 - (width+1)/2, Y: 0},
		Color: tm.color,
	}
}

func (s Shape) clone() Shape {
	out := make(Shape, len(s))
	for y := range s {
		out[y] = append([]bool(nil), s[y]...)
	}
	return out
}

// Equal reports whether both shapes have the same dimensions and cells.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for y := range s {
		if len(s[y]) != len(o[y]) {
			return false
		}
		for x := range s[y] {
			if s[y][x] != o[y][x] {
				return false
			}
		}
	}
	return true
}

// Cells returns the absolute coordinates of every occupied cell.
func (p Piece) Cells() []Point {
	cells := make([]Point, 0, 4)
	for y, row := range p.Shape {
		for x, filled := range row {
			if filled {
				cells = append(cells, Point{X: p.Pos.X + x, Y: p.Pos.Y + y})
			}
		}
	}
	return cells
}

// Clone returns a deep copy of p.
func (p Piece) Clone() Piece {
	p.Shape = p.Shape.clone()
	return p
}

// RotateClockwise transposes the shape and reverses each resulting row.
// Position is unchanged and legality is not checked.
func RotateClockwise(p Piece) Piece {
	rows := len(p.Shape)
	if rows == 0 {
		return p.Clone()
	}
	cols := len(p.Shape[0])
	out := make(Shape, cols)
	for i := 0; i < cols; i++ {
		out[i] = make([]bool, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = p.Shape[rows-1-j][i]
		}
	}
	p.Shape = out
	return p
}

// RotateCounterClockwise is the inverse of RotateClockwise: the first row of
// the result is the last column of the input.
func RotateCounterClockwise(p Piece) Piece {
	rows := len(p.Shape)
	if rows == 0 {
		return p.Clone()
	}
	cols := len(p.Shape[0])
	out := make(Shape, cols)
	for i := 0; i < cols; i++ {
		out[i] = make([]bool, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = p.Shape[j][cols-1-i]
		}
	}
	p.Shape = out
	return p
}
