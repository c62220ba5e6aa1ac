package movegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/board"
	"dupliscrabble/internal/tiles"
)

func testDict() *Dictionary {
	return NewDictionaryFromWords([]string{"RETINAS", "RATON", "SED", "AS", "SI", "SOL", "NASO"})
}

func parseRackTiles(t *testing.T, s string) []tiles.Tile {
	t.Helper()
	out, err := tiles.ParseRack(s, false)
	require.NoError(t, err)
	return out
}

func TestBestPlacement_FirstPlayCoversCenter(t *testing.T) {
	g := NewTrieGenerator(testDict())
	b := board.New()
	rack := parseRackTiles(t, "RETINAS")
	p, score, found := g.BestPlacement(b, rack)
	require.True(t, found)
	assert.Greater(t, score, 0)
	assert.True(t, coversCenter(p))
}

func TestScorePlacement_InvalidWord(t *testing.T) {
	g := NewTrieGenerator(testDict())
	b := board.New()
	rack := parseRackTiles(t, "RETINAS")
	rTile, _ := tiles.FromLetter("R")
	word := []tiles.Tile{rTile}
	p := board.Placement{Down: false, Lane: board.CenterRow, Idx: board.CenterCol, Word: word}
	_, err := g.ScorePlacement(b, rack, p)
	assert.Error(t, err) // single letter isn't a dictionary word
}

func TestScorePlacement_RejectsTilesNotInRack(t *testing.T) {
	g := NewTrieGenerator(testDict())
	b := board.New()
	rack := parseRackTiles(t, "AS") // only A, S
	sT, _ := tiles.FromLetter("S")
	oT, _ := tiles.FromLetter("O")
	lT, _ := tiles.FromLetter("L")
	word := []tiles.Tile{sT, oT, lT}
	p := board.Placement{Down: false, Lane: board.CenterRow, Idx: board.CenterCol, Word: word}
	_, err := g.ScorePlacement(b, rack, p)
	assert.Error(t, err)
}
