// Package tiles implements the Spanish alphabet and tile codec (spec C1):
// the dual display/internal representation for Duplicate Spanish Scrabble
// tiles, including the two-letter digraphs (CH, LL, RR), Ñ, and blanks.
//
// Display form uses bracketed digraphs ("[CH]", "[LL]", "[RR]"), uppercase
// for real letters and lowercase for a blank standing in for that letter.
// Internal form is one byte per tile: bits 0-6 are the alphabet index (0 is
// the blank), bit 0x80 set means "played as a blank", with the chosen
// letter's index in the low bits.
package tiles

import (
	"fmt"
	"strings"
)

// Tile is one byte: low 7 bits = alphabet index (0 = blank), bit 0x80 set
// means this tile was played as a blank standing in for the low-bit letter.
type Tile byte

// BlankBit marks a tile as played-as-blank.
const BlankBit byte = 0x80

// letters is the canonical Spanish Scrabble alphabet, index 1..28; index 0
// is reserved for the blank. Order and membership per spec §3: 25 single
// letters (Ñ included) plus the three digraph tiles CH, LL, RR, each counted
// as a single alphabet symbol.
var letters = []string{
	"", // 0: blank
	"A", "B", "C", "CH", "D", "E", "F", "G", "H", "I", "J", "L", "LL", "M",
	"N", "Ñ", "O", "P", "Q", "R", "RR", "S", "T", "U", "V", "X", "Y", "Z",
}

// NumLetters is the count of non-blank alphabet symbols.
const NumLetters = 28

// index maps a display letter (upper-case, digraph without brackets) to its
// alphabet index.
var index = func() map[string]byte {
	m := make(map[string]byte, len(letters))
	for i, l := range letters {
		if l != "" {
			m[l] = byte(i)
		}
	}
	return m
}()

// points is the per-letter score value, indexed like letters. Index 0
// (blank) is always worth 0 regardless of which letter it stands in for.
var points = map[string]int{
	"A": 1, "B": 3, "C": 3, "CH": 5, "D": 2, "E": 1, "F": 4, "G": 2, "H": 4,
	"I": 1, "J": 8, "L": 1, "LL": 8, "M": 3, "N": 1, "Ñ": 8, "O": 1, "P": 3,
	"Q": 5, "R": 1, "RR": 8, "S": 1, "T": 1, "U": 1, "V": 4, "X": 8, "Y": 4,
	"Z": 10,
}

// frequency is the count of each letter in the canonical 100-tile bag (98
// letters + 2 blanks), taken from the FISE Spanish Scrabble distribution.
var frequency = map[string]int{
	"A": 12, "E": 12, "O": 9, "I": 6, "S": 6, "N": 5, "R": 5, "U": 5, "L": 4,
	"T": 4, "D": 5, "G": 2, "C": 4, "B": 2, "M": 2, "P": 2, "H": 2, "F": 1,
	"V": 1, "Y": 1, "CH": 1, "Q": 1, "J": 1, "LL": 1, "Ñ": 1, "RR": 1, "X": 1,
	"Z": 1,
}

var vowels = map[string]bool{"A": true, "E": true, "I": true, "O": true, "U": true}

// Blank is the zero tile / blank value.
const Blank Tile = 0

// IsBlank reports whether t is an unplayed blank (not yet assigned a letter).
func (t Tile) IsBlank() bool { return t == Blank }

// PlayedAsBlank reports whether t was drawn as a blank and placed standing
// in for some letter.
func (t Tile) PlayedAsBlank() bool { return byte(t)&BlankBit != 0 }

// LetterIndex returns the alphabet index this tile's face shows (ignoring
// the blank bit).
func (t Tile) LetterIndex() byte { return byte(t) &^ BlankBit }

// Letter returns the display letter this tile shows (e.g. "CH", "Ñ"), or ""
// for an unplayed blank.
func (t Tile) Letter() string {
	i := t.LetterIndex()
	if int(i) >= len(letters) {
		return ""
	}
	return letters[i]
}

// IsVowel reports whether the tile's face letter is a vowel. Blanks that
// have not been assigned a letter are neither vowel nor consonant.
func (t Tile) IsVowel() bool {
	return vowels[t.Letter()]
}

// IsConsonant reports whether the tile's face letter is a consonant.
func (t Tile) IsConsonant() bool {
	l := t.Letter()
	return l != "" && !vowels[l]
}

// Points returns the tile's score value. A played blank always scores 0,
// regardless of the letter it stands in for.
func (t Tile) Points() int {
	if t.PlayedAsBlank() {
		return 0
	}
	if t.IsBlank() {
		return 0
	}
	return points[t.Letter()]
}

// FromLetter returns the plain (non-blank) tile for a display letter, e.g.
// "CH" or "Ñ". ok is false for an unrecognised letter.
func FromLetter(letter string) (Tile, bool) {
	i, ok := index[strings.ToUpper(letter)]
	if !ok {
		return 0, false
	}
	return Tile(i), true
}

// AsBlank returns the tile encoding "blank played as letter", e.g.
// AsBlank("CH") yields the tile that displays as lowercase "ch".
func AsBlank(letter string) (Tile, bool) {
	i, ok := index[strings.ToUpper(letter)]
	if !ok {
		return 0, false
	}
	return Tile(i | BlankBit), true
}

// FormatTile renders a single tile in display form: bracketed digraphs,
// uppercase real letters, lowercase letters for a played blank. An unplayed
// blank renders as "?".
func FormatTile(t Tile) string {
	if t.IsBlank() {
		return "?"
	}
	letter := t.Letter()
	if letter == "" {
		return "?"
	}
	display := letter
	if len(letter) > 1 {
		display = "[" + letter + "]"
	}
	if t.PlayedAsBlank() {
		display = strings.ToLower(display)
	}
	return display
}

// FormatRack renders a slice of tiles as a concatenated display string.
func FormatRack(rack []Tile) string {
	var b strings.Builder
	for _, t := range rack {
		b.WriteString(FormatTile(t))
	}
	return b.String()
}

// ParseRack parses a display-form rack string into tiles, recognising
// bracketed digraphs, Ñ, and lowercase-letter blanks. If strict is true the
// parsed rack must contain exactly 7 tiles.
func ParseRack(display string, strict bool) ([]Tile, error) {
	out, err := parseTiles(display)
	if err != nil {
		return nil, err
	}
	if strict && len(out) != 7 {
		return nil, fmt.Errorf("rack must have exactly 7 tiles, got %d", len(out))
	}
	return out, nil
}

// ParseBoardCell parses one board cell's display content ("", letter,
// bracketed digraph, or lowercase variant for a blank) into a tile. An empty
// string yields the empty cell value 0... note 0 is also the blank tile
// code; callers distinguish an empty board cell from a bare blank rack tile
// by context (a bare "?" on a rack vs. "" for an empty cell).
func ParseBoardCell(display string) (Tile, error) {
	if display == "" {
		return 0, nil
	}
	out, err := parseTiles(display)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("board cell %q must be a single tile", display)
	}
	return out[0], nil
}

// parseTiles tokenises a display string into tiles, left to right, greedily
// matching bracketed digraphs, "Ñ"/"ñ", and single letters.
func parseTiles(display string) ([]Tile, error) {
	runes := []rune(display)
	var out []Tile
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '?' {
			out = append(out, Blank)
			i++
			continue
		}
		if c == '[' {
			end := i + 1
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated digraph bracket in %q", display)
			}
			letter := string(runes[i+1 : end])
			blank := letter == strings.ToLower(letter) && letter != strings.ToUpper(letter)
			t, ok := FromLetter(letter)
			if !ok {
				return nil, fmt.Errorf("unknown tile %q in %q", letter, display)
			}
			if blank {
				t, _ = AsBlank(letter)
			}
			out = append(out, t)
			i = end + 1
			continue
		}
		letter := string(c)
		blank := letter == strings.ToLower(letter) && letter != strings.ToUpper(letter)
		t, ok := FromLetter(letter)
		if !ok {
			return nil, fmt.Errorf("unknown tile %q in %q", letter, display)
		}
		if blank {
			t, _ = AsBlank(letter)
		}
		out = append(out, t)
		i++
	}
	return out, nil
}

// AllLetters returns the 28 non-blank alphabet letters in canonical order.
func AllLetters() []string {
	out := make([]string, 0, NumLetters)
	for _, l := range letters[1:] {
		out = append(out, l)
	}
	return out
}

// FrequencyOf returns the canonical bag count for a letter (0 if unknown).
func FrequencyOf(letter string) int { return frequency[strings.ToUpper(letter)] }
