// Package movegen defines the move-generator contract (spec C5) and ships a
// trie-based reference implementation of it, adapted from the teacher's
// TrieNode/searchPlay machinery in common.go and generalized from the
// English alphabet to the Spanish digraph/blank alphabet. Spec §1 treats
// the move generator as an external collaborator (a KWG/KLV dictionary
// engine); this package is the seam such a collaborator plugs into, with an
// in-tree implementation good enough to run the engine end to end.
package movegen

import (
	"dupliscrabble/internal/board"
	"dupliscrabble/internal/tiles"
)

// Generator is the external move-gen contract (spec §4.5): the highest
// scoring legal placement for a rack on a board, and the score of an
// arbitrary user-supplied placement.
type Generator interface {
	// BestPlacement returns the highest-scoring legal placement, tie-broken
	// by (row, col, direction) in a stable total order; found is false if no
	// legal placement exists.
	BestPlacement(b *board.Board, rack []tiles.Tile) (placement board.Placement, score int, found bool)

	// ScorePlacement evaluates a user-supplied placement as if played,
	// returning InvalidPlacement (via apperr) if the word is not in the
	// dictionary, does not cross existing tiles where required, extends
	// off-board, or uses tiles not in rack.
	ScorePlacement(b *board.Board, rack []tiles.Tile, p board.Placement) (int, error)
}
