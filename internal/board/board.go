// Package board implements the 15x15 Scrabble board (spec C3): a fixed grid
// of tile codes and all-or-nothing placement application.
package board

import (
	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/tiles"
)

// Size is the board's edge length.
const Size = 15

// CenterRow and CenterCol locate the mandatory first-play square.
const (
	CenterRow = 7
	CenterCol = 7
)

// Board is a 225-cell grid of tile codes; 0 means empty.
type Board struct {
	Cells [Size * Size]tiles.Tile
}

// New returns an empty board.
func New() *Board {
	return &Board{}
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	out := &Board{}
	out.Cells = b.Cells
	return out
}

// Index converts (row, col) to a flat cell index.
func Index(row, col int) int { return row*Size + col }

// At returns the tile at (row, col).
func (b *Board) At(row, col int) tiles.Tile { return b.Cells[Index(row, col)] }

// IsEmpty reports whether (row, col) has no tile.
func (b *Board) IsEmpty(row, col int) bool { return b.At(row, col) == 0 }

// Placement is one candidate or applied play: a straight line of tiles,
// where a zero entry in Word marks a pre-existing anchor tile rather than a
// newly placed one. Lane is the fixed row (horizontal) or column (vertical)
// index; Idx is the starting row (vertical) or column (horizontal) index.
type Placement struct {
	Down bool
	Lane int8
	Idx  int8
	Word []tiles.Tile
}

// cellRowCol returns the (row, col) of the i-th glyph of a placement.
func (p Placement) cellRowCol(i int) (int, int) {
	if p.Down {
		return int(p.Idx) + i, int(p.Lane)
	}
	return int(p.Lane), int(p.Idx) + i
}

// ApplyPlacement validates and applies a placement to the board (spec
// §4.3): for every glyph, a zero entry must match an existing tile
// (ignoring the blank bit) and a non-zero entry must land on an empty cell.
// Validation is performed for the whole word before any cell is written.
func (b *Board) ApplyPlacement(p Placement) error {
	type write struct {
		row, col int
		tile     tiles.Tile
	}
	var writes []write

	for i, glyph := range p.Word {
		row, col := p.cellRowCol(i)
		if row < 0 || row >= Size || col < 0 || col >= Size {
			return apperr.New(apperr.InvalidPlacement, "placement extends off-board at (%d,%d)", row, col)
		}
		existing := b.At(row, col)
		if glyph == 0 {
			// Anchor cell: must already hold a tile whose face matches.
			if existing.IsBlank() {
				return apperr.New(apperr.OverwriteMismatch, "expected existing tile at (%d,%d), cell is empty", row, col)
			}
			continue
		}
		if !existing.IsBlank() {
			return apperr.New(apperr.OverwriteMismatch, "cell (%d,%d) already holds a conflicting tile", row, col)
		}
		writes = append(writes, write{row, col, glyph})
	}

	for _, w := range writes {
		b.Cells[Index(w.row, w.col)] = w.tile
	}
	return nil
}

// RemovePlacement reverses a previously applied placement: clears every
// cell that the placement newly wrote (word[i] != 0 and wasn't already
// present), used by undo_last_round (spec §4.6.7).
func (b *Board) RemovePlacement(p Placement, before *Board) {
	for i, glyph := range p.Word {
		if glyph == 0 {
			continue
		}
		row, col := p.cellRowCol(i)
		b.Cells[Index(row, col)] = before.At(row, col)
	}
}

// Census returns the tile multiset currently on the board.
func (b *Board) Census() map[string]int {
	out := make(map[string]int)
	for _, t := range b.Cells {
		if t.IsBlank() && t == 0 {
			continue
		}
		if t.PlayedAsBlank() {
			out[""]++
		} else {
			out[t.Letter()]++
		}
	}
	return out
}
