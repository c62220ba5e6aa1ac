// Package bag implements the tile bag (spec C2): the multiset of tiles not
// yet drawn into a rack or placed on a board, with shuffle, draw, return,
// and census operations. Shuffling takes an injected RNG so tests can use a
// deterministic source, per spec §4.2.
package bag

import (
	"encoding/json"
	"math/rand/v2"

	"dupliscrabble/internal/tiles"
)

// Bag is an ordered sequence of tiles; only the first len(Bag.tiles) matter,
// shuffle reorders them, draw pops from the end.
type Bag struct {
	tiles []tiles.Tile
}

// NewSpanish builds the canonical 100-tile Spanish Scrabble bag (98 letters
// + 2 blanks), unshuffled.
func NewSpanish() *Bag {
	b := &Bag{}
	for _, letter := range tiles.AllLetters() {
		t, _ := tiles.FromLetter(letter)
		for i := 0; i < tiles.FrequencyOf(letter); i++ {
			b.tiles = append(b.tiles, t)
		}
	}
	b.tiles = append(b.tiles, tiles.Blank, tiles.Blank)
	return b
}

// Shuffle reorders the bag's tiles using rng (Fisher-Yates).
func (b *Bag) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(b.tiles), func(i, j int) {
		b.tiles[i], b.tiles[j] = b.tiles[j], b.tiles[i]
	})
}

// DrawOne removes and returns one tile from the bag, or ok=false if empty.
func (b *Bag) DrawOne() (tiles.Tile, bool) {
	if len(b.tiles) == 0 {
		return 0, false
	}
	t := b.tiles[len(b.tiles)-1]
	b.tiles = b.tiles[:len(b.tiles)-1]
	return t, true
}

// DrawN removes and returns up to n tiles; if fewer than n remain, it
// returns as many as are available.
func (b *Bag) DrawN(n int) []tiles.Tile {
	out := make([]tiles.Tile, 0, n)
	for i := 0; i < n; i++ {
		t, ok := b.DrawOne()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out
}

// Return pushes tiles back into the bag. Per the invariant in spec §4.2,
// callers must Shuffle before the next Draw* call.
func (b *Bag) Return(ts []tiles.Tile) {
	b.tiles = append(b.tiles, ts...)
}

// Count returns the number of tiles remaining.
func (b *Bag) Count() int { return len(b.tiles) }

// Census returns, for each letter (plus the blank under key ""), how many
// remain in the bag.
func (b *Bag) Census() map[string]int {
	out := make(map[string]int)
	for _, t := range b.tiles {
		out[t.Letter()]++
	}
	return out
}

// Has reports whether the bag currently contains the given tile face
// (ignoring the played-as-blank bit: a request for letter "A" is satisfied
// by a plain A tile, and a request for "" is satisfied by a blank).
func (b *Bag) Has(letter string) bool {
	for _, t := range b.tiles {
		if letter == "" {
			if t.IsBlank() {
				return true
			}
			continue
		}
		if !t.PlayedAsBlank() && t.Letter() == letter {
			return true
		}
	}
	return false
}

// RemoveOne removes one tile matching the given face (a plain letter, or ""
// for a blank) from the bag, reporting whether one was found. Used by the
// manual-rack path (spec §4.6.1) to decrement specific tiles.
func (b *Bag) RemoveOne(letter string) bool {
	for i, t := range b.tiles {
		match := (letter == "" && t.IsBlank()) || (letter != "" && !t.PlayedAsBlank() && t.Letter() == letter)
		if match {
			b.tiles = append(b.tiles[:i], b.tiles[i+1:]...)
			return true
		}
	}
	return false
}

// Tiles returns a defensive copy of the bag's current contents, for tests
// and census reconciliation.
func (b *Bag) Tiles() []tiles.Tile {
	out := make([]tiles.Tile, len(b.tiles))
	copy(out, b.tiles)
	return out
}

// Clone returns a deep copy, used to take persistence snapshots under the
// store's exclusive lock without holding the lock during serialisation
// (spec §5).
func (b *Bag) Clone() *Bag {
	return &Bag{tiles: b.Tiles()}
}

// MarshalJSON renders the bag as its tile list, for snapshotting.
func (b *Bag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.tiles)
}

// UnmarshalJSON restores a bag from its tile list.
func (b *Bag) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &b.tiles)
}
