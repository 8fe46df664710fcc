package game

import (
	"errors"
	"fmt"
)

// Mark represents the mark of a player (X, O) or an empty cell.
type Mark string

const (
	None    Mark = ""
	PlayerX Mark = "X"
	PlayerO Mark = "O"
)

// Cells is the number of cells on the board.
const Cells = 9

// ErrIllegalMove is returned for a move on an out-of-range or occupied cell.
var ErrIllegalMove = errors.New("illegal move")

// Board is a flat 3x3 grid, indexed 0-8 row by row.
type Board [Cells]Mark

// winningLines: 3 rows, 3 columns, 2 diagonals.
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Other returns the opposing mark, or None for None.
func (m Mark) Other() Mark {
	switch m {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	}
	return None
}

// Apply marks cell with mark. The board is only mutated on success.
func (b *Board) Apply(cell int, mark Mark) error {
	if cell < 0 || cell >= Cells {
		return fmt.Errorf("%w: cell %d out of range", ErrIllegalMove, cell)
	}
	if b[cell] != None {
		return fmt.Errorf("%w: cell %d already marked", ErrIllegalMove, cell)
	}
	b[cell] = mark
	return nil
}

// Winner returns the mark holding a completed line, or None. Alternating
// turns make it impossible for both marks to hold completed lines at once;
// finding that means the board was corrupted, so Winner panics.
func (b Board) Winner() Mark {
	winner := None
	for _, line := range winningLines {
		m := b[line[0]]
		if m != None && m == b[line[1]] && m == b[line[2]] {
			if winner != None && winner != m {
				panic("game: winning lines for both marks on one board")
			}
			winner = m
		}
	}
	return winner
}

// IsFull reports whether every cell is marked.
func (b Board) IsFull() bool {
	for _, m := range b {
		if m == None {
			return false
		}
	}
	return true
}

// Slice returns a copy of the cells for use in snapshots.
func (b Board) Slice() []Mark {
	out := make([]Mark, Cells)
	copy(out, b[:])
	return out
}
