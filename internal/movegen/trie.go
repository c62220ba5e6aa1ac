package movegen

import (
	"sort"
	"strings"

	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/board"
	"dupliscrabble/internal/tiles"
)

// Premium square patterns, one fixed 15x15 layout shared by every board
// (spec §3: "owned by the move generator's configuration, not re-specified
// here"). Adapted in shape from the teacher's tw/dw/tl/dl arrays in
// common.go.
var (
	tripleWord  = [225]bool{0: true, 7: true, 14: true, 105: true, 119: true, 210: true, 217: true, 224: true}
	doubleWord  = [225]bool{16: true, 28: true, 32: true, 42: true, 48: true, 56: true, 64: true, 70: true, 112: true, 154: true, 160: true, 168: true, 176: true, 182: true, 192: true, 196: true, 208: true}
	tripleLetter = [225]bool{20: true, 24: true, 76: true, 80: true, 84: true, 88: true, 136: true, 140: true, 144: true, 148: true, 200: true, 204: true}
	doubleLetter = [225]bool{3: true, 11: true, 36: true, 38: true, 45: true, 52: true, 59: true, 92: true, 96: true, 98: true, 102: true, 108: true, 116: true, 122: true, 126: true, 128: true, 132: true, 165: true, 172: true, 179: true, 186: true, 188: true, 221: true}
)

// bingoBonus is added when a placement uses all 7 rack tiles, the standard
// Spanish Scrabble "bingo" bonus.
const bingoBonus = 50

// TrieGenerator is the in-tree reference implementation of Generator: a
// trie-guided anchor search adapted from the teacher's searchPlay, emitting
// candidates that a shared scorer (shared with ScorePlacement) validates
// and scores.
type TrieGenerator struct {
	dict *Dictionary
}

// NewTrieGenerator wraps a loaded Dictionary as a Generator.
func NewTrieGenerator(dict *Dictionary) *TrieGenerator {
	return &TrieGenerator{dict: dict}
}

type newCell struct {
	pos  int // linear position along the lane (row if down, col if horizontal)
	tile tiles.Tile
}

// rackCounts tallies available rack tiles by alphabet index; index 0 is the
// blank count.
func rackCounts(rack []tiles.Tile) [tiles.NumLetters + 1]int {
	var c [tiles.NumLetters + 1]int
	for _, t := range rack {
		if t.IsBlank() {
			c[0]++
		} else {
			c[t.LetterIndex()]++
		}
	}
	return c
}

func cellAt(b *board.Board, lane int, pos int, down bool) tiles.Tile {
	if down {
		return b.At(pos, lane)
	}
	return b.At(lane, pos)
}

// BestPlacement searches every lane/anchor and returns the highest-scoring
// legal candidate, tie-broken by (row, col, down).
func (g *TrieGenerator) BestPlacement(b *board.Board, rack []tiles.Tile) (board.Placement, int, bool) {
	candidates := g.generateAll(b, rack)
	if len(candidates) == 0 {
		return board.Placement{}, 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		ri, ci := candidates[i].placement.Lane, candidates[i].placement.Idx
		if candidates[i].placement.Down {
			ri, ci = candidates[i].placement.Idx, candidates[i].placement.Lane
		}
		rj, cj := candidates[j].placement.Lane, candidates[j].placement.Idx
		if candidates[j].placement.Down {
			rj, cj = candidates[j].placement.Idx, candidates[j].placement.Lane
		}
		if ri != rj {
			return ri < rj
		}
		if ci != cj {
			return ci < cj
		}
		return !candidates[i].placement.Down && candidates[j].placement.Down
	})
	best := candidates[0]
	return best.placement, best.score, true
}

type candidate struct {
	placement board.Placement
	score     int
}

// generateAll enumerates candidate placements across all 30 lanes, bounded
// to at most spec §5's 1,000 placements per call.
func (g *TrieGenerator) generateAll(b *board.Board, rack []tiles.Tile) []candidate {
	const maxGen = 1000
	empty := isBoardEmpty(b)
	rc := rackCounts(rack)

	var out []candidate
	emit := func(lane, start, end int, down bool, cells []newCell) {
		if len(out) >= maxGen {
			return
		}
		word := make([]tiles.Tile, end-start+1)
		for i := range word {
			pos := start + i
			if existing := cellAt(b, lane, pos, down); !existing.IsBlank() {
				word[i] = 0
				continue
			}
			for _, nc := range cells {
				if nc.pos == pos {
					word[i] = nc.tile
					break
				}
			}
		}
		p := board.Placement{Down: down, Lane: int8(lane), Idx: int8(start), Word: word}
		score, _, err := g.scoreAndValidate(b, rack, p)
		if err != nil {
			return
		}
		out = append(out, candidate{p, score})
	}

	for down := 0; down < 2; down++ {
		isDown := down == 1
		for lane := 0; lane < board.Size; lane++ {
			anchors := findAnchors(b, lane, isDown, empty)
			for _, anchor := range anchors {
				if len(out) >= maxGen {
					return out
				}
				g.searchLane(b, lane, isDown, anchor, rc, emit)
			}
		}
	}
	return out
}

func isBoardEmpty(b *board.Board) bool {
	for _, t := range b.Cells {
		if t != 0 {
			return false
		}
	}
	return true
}

// findAnchors returns, for a lane, the empty positions that are legal
// anchors: adjacent (in either dimension) to an existing tile, or -- on an
// empty board -- the center square.
func findAnchors(b *board.Board, lane int, down bool, empty bool) []int {
	if empty {
		if lane != board.CenterRow && !down {
			return nil
		}
		if lane != board.CenterCol && down {
			return nil
		}
		if down {
			return []int{board.CenterRow}
		}
		return []int{board.CenterCol}
	}
	var anchors []int
	for pos := 0; pos < board.Size; pos++ {
		if !cellAt(b, lane, pos, down).IsBlank() {
			continue
		}
		row, col := lane, pos
		if down {
			row, col = pos, lane
		}
		if adjacentFilled(b, row, col) {
			anchors = append(anchors, pos)
		}
	}
	return anchors
}

func adjacentFilled(b *board.Board, row, col int) bool {
	if row > 0 && !b.At(row-1, col).IsBlank() {
		return true
	}
	if row < board.Size-1 && !b.At(row+1, col).IsBlank() {
		return true
	}
	if col > 0 && !b.At(row, col-1).IsBlank() {
		return true
	}
	if col < board.Size-1 && !b.At(row, col+1).IsBlank() {
		return true
	}
	return false
}

// searchLane tries every legal word start position for the given anchor and
// recursively extends right through the trie, emitting complete words that
// cover the anchor.
func (g *TrieGenerator) searchLane(b *board.Board, lane int, down bool, anchor int, rc [tiles.NumLetters + 1]int, emit func(lane, start, end int, down bool, cells []newCell)) {
	maxBack := 7
	for start := anchor; start >= 0 && start >= anchor-maxBack; start-- {
		if start > 0 && !cellAt(b, lane, start-1, down).IsBlank() {
			// start-1 is filled: this start would not be a maximal word
			// boundary, so skip it (the run including start-1 is handled
			// when start is moved further left through the filled run).
			continue
		}
		rcCopy := rc
		var cells []newCell
		g.extend(b, lane, down, start, start, anchor, rcCopy, cells, g.dict.root, false, emit)
	}
}

func (g *TrieGenerator) extend(
	b *board.Board, lane int, down bool, wordStart, pos, anchor int,
	rc [tiles.NumLetters + 1]int, cells []newCell, node *trieNode, anchorSeen bool,
	emit func(lane, start, end int, down bool, cells []newCell),
) {
	if node == nil {
		return
	}
	if pos >= board.Size {
		if node.isEnd && anchorSeen && pos-wordStart >= 2 {
			emit(lane, wordStart, pos-1, down, cells)
		}
		return
	}

	existing := cellAt(b, lane, pos, down)
	anchorSeenNow := anchorSeen || pos == anchor
	if !existing.IsBlank() {
		child := node.children[existing.LetterIndex()]
		if child == nil {
			return
		}
		g.extend(b, lane, down, wordStart, pos+1, anchor, rc, cells, child, anchorSeenNow, emit)
		return
	}

	if node.isEnd && anchorSeenNow && pos-wordStart >= 2 {
		emit(lane, wordStart, pos-1, down, cells)
	}

	for idx := 1; idx <= tiles.NumLetters; idx++ {
		child := node.children[idx]
		if child == nil {
			continue
		}
		if rc[idx] > 0 {
			rc[idx]--
			cells = append(cells, newCell{pos, tiles.Tile(idx)})
			g.extend(b, lane, down, wordStart, pos+1, anchor, rc, cells, child, anchorSeenNow, emit)
			cells = cells[:len(cells)-1]
			rc[idx]++
		}
		if rc[0] > 0 {
			rc[0]--
			cells = append(cells, newCell{pos, tiles.Tile(idx) | tiles.Tile(tiles.BlankBit)})
			g.extend(b, lane, down, wordStart, pos+1, anchor, rc, cells, child, anchorSeenNow, emit)
			cells = cells[:len(cells)-1]
			rc[0]++
		}
	}
}

// ScorePlacement validates and scores a user-supplied placement.
func (g *TrieGenerator) ScorePlacement(b *board.Board, rack []tiles.Tile, p board.Placement) (int, error) {
	score, _, err := g.scoreAndValidate(b, rack, p)
	return score, err
}

// scoreAndValidate is the single implementation shared by BestPlacement's
// candidate emission and ScorePlacement: it validates bounds, rack
// availability, dictionary membership of the main word and every new
// cross-word, and computes the score with premium-square multipliers
// applying only to newly placed cells.
func (g *TrieGenerator) scoreAndValidate(b *board.Board, rack []tiles.Tile, p board.Placement) (int, []string, error) {
	if len(p.Word) == 0 {
		return 0, nil, apperr.New(apperr.InvalidPlacement, "empty placement")
	}
	rc := rackCounts(rack)
	newCells := make(map[int]tiles.Tile)
	var mainWord strings.Builder
	touchesExisting := false
	newCount := 0

	for i, glyph := range p.Word {
		pos := int(p.Idx) + i
		row, col := int(p.Lane), pos
		if p.Down {
			row, col = pos, int(p.Lane)
		}
		if row < 0 || row >= board.Size || col < 0 || col >= board.Size {
			return 0, nil, apperr.New(apperr.InvalidPlacement, "placement extends off-board")
		}
		existing := b.At(row, col)
		if glyph == 0 {
			if existing.IsBlank() {
				return 0, nil, apperr.New(apperr.InvalidPlacement, "expected existing tile at (%d,%d)", row, col)
			}
			touchesExisting = true
			mainWord.WriteString(existing.Letter())
			continue
		}
		if !existing.IsBlank() {
			if existing.LetterIndex() != glyph.LetterIndex() {
				return 0, nil, apperr.New(apperr.InvalidPlacement, "conflicting tile at (%d,%d)", row, col)
			}
			touchesExisting = true
			mainWord.WriteString(existing.Letter())
			continue
		}
		// New cell: must come from rack.
		letterIdx := glyph.LetterIndex()
		if glyph.PlayedAsBlank() {
			if rc[0] <= 0 {
				return 0, nil, apperr.New(apperr.InvalidPlacement, "no blank available in rack")
			}
			rc[0]--
		} else {
			if rc[letterIdx] <= 0 {
				return 0, nil, apperr.New(apperr.InvalidPlacement, "letter %s not in rack", glyph.Letter())
			}
			rc[letterIdx]--
		}
		newCells[int(p.Idx)+i] = glyph
		newCount++
		mainWord.WriteString(glyph.Letter())
		if _, _, ok := g.crossWord(b, row, col, !p.Down, glyph); ok {
			// A new tile that forms a perpendicular cross-word is attached
			// to the existing board even though its own lane is all new
			// tiles (e.g. a single letter played across an existing word).
			touchesExisting = true
		}
	}

	if isBoardEmpty(b) {
		if !coversCenter(p) {
			return 0, nil, apperr.New(apperr.InvalidPlacement, "first play must cover the center square")
		}
	} else if !touchesExisting && newCount == len(p.Word) {
		return 0, nil, apperr.New(apperr.InvalidPlacement, "placement does not cross existing tiles")
	}

	if newCount == 0 {
		return 0, nil, apperr.New(apperr.InvalidPlacement, "placement adds no new tiles")
	}

	word := mainWord.String()
	if !g.dict.HasWord(word) {
		return 0, nil, apperr.New(apperr.InvalidPlacement, "%q is not a valid word", word)
	}

	score := 0
	wordMult := 1
	for i, glyph := range p.Word {
		pos := int(p.Idx) + i
		row, col := int(p.Lane), pos
		if p.Down {
			row, col = pos, int(p.Lane)
		}
		cellIdx := board.Index(row, col)
		letterPts := 0
		if glyph == 0 {
			letterPts = b.At(row, col).Points()
		} else if nc, isNew := newCells[pos]; isNew {
			letterPts = nc.Points()
			switch {
			case doubleLetter[cellIdx]:
				letterPts *= 2
			case tripleLetter[cellIdx]:
				letterPts *= 3
			}
			switch {
			case doubleWord[cellIdx]:
				wordMult *= 2
			case tripleWord[cellIdx]:
				wordMult *= 3
			}
		}
		score += letterPts
	}
	score *= wordMult

	var crossWords []string
	for pos, glyph := range newCells {
		row, col := int(p.Lane), pos
		if p.Down {
			row, col = pos, int(p.Lane)
		}
		crossWord, crossScore, ok := g.crossWord(b, row, col, !p.Down, glyph)
		if ok {
			if !g.dict.HasWord(crossWord) {
				return 0, nil, apperr.New(apperr.InvalidPlacement, "%q is not a valid word", crossWord)
			}
			crossWords = append(crossWords, crossWord)
			score += crossScore
		}
	}

	if newCount == 7 {
		score += bingoBonus
	}

	return score, crossWords, nil
}

// crossWord builds the perpendicular word through (row, col) given that
// newTile is being placed there, returning ok=false if the tile has no
// perpendicular neighbors (no cross word formed).
func (g *TrieGenerator) crossWord(b *board.Board, row, col int, down bool, newTile tiles.Tile) (string, int, bool) {
	var cells []struct {
		row, col int
		t        tiles.Tile
	}
	if down {
		r := row
		for r > 0 && !b.At(r-1, col).IsBlank() {
			r--
		}
		for ; r < board.Size; r++ {
			var t tiles.Tile
			if r == row {
				t = newTile
			} else if t = b.At(r, col); t.IsBlank() {
				break
			}
			cells = append(cells, struct {
				row, col int
				t        tiles.Tile
			}{r, col, t})
		}
	} else {
		c := col
		for c > 0 && !b.At(row, c-1).IsBlank() {
			c--
		}
		for ; c < board.Size; c++ {
			var t tiles.Tile
			if c == col {
				t = newTile
			} else if t = b.At(row, c); t.IsBlank() {
				break
			}
			cells = append(cells, struct {
				row, col int
				t        tiles.Tile
			}{row, c, t})
		}
	}
	if len(cells) < 2 {
		return "", 0, false
	}
	var sb strings.Builder
	score := 0
	wordMult := 1
	for _, c := range cells {
		sb.WriteString(c.t.Letter())
		pts := c.t.Points()
		idx := board.Index(c.row, c.col)
		if c.row == row && c.col == col {
			switch {
			case doubleLetter[idx]:
				pts *= 2
			case tripleLetter[idx]:
				pts *= 3
			}
			switch {
			case doubleWord[idx]:
				wordMult *= 2
			case tripleWord[idx]:
				wordMult *= 3
			}
		}
		score += pts
	}
	return sb.String(), score * wordMult, true
}

func coversCenter(p board.Placement) bool {
	for i := range p.Word {
		pos := int(p.Idx) + i
		if p.Down {
			if pos == board.CenterRow && int(p.Lane) == board.CenterCol {
				return true
			}
		} else {
			if pos == board.CenterCol && int(p.Lane) == board.CenterRow {
				return true
			}
		}
	}
	return false
}
