// Package rack implements the rack composition validator (spec C4):
// classifying a rack's vowel/consonant/blank counts and enforcing the
// round-dependent composition rules. Grounded on validate_rack_criteria in
// the original tournament_manager.rs.
package rack

import "dupliscrabble/internal/tiles"

// Counts is the vowel/consonant/blank breakdown of a rack.
type Counts struct {
	Vowels     int
	Consonants int
	Blanks     int
}

// Count classifies every tile of a rack. Unplayed blanks (the common case
// for a freshly drawn rack) count as Blanks; a tile can't simultaneously be
// vowel and consonant.
func Count(rack []tiles.Tile) Counts {
	var c Counts
	for _, t := range rack {
		switch {
		case t.IsBlank():
			c.Blanks++
		case t.IsVowel():
			c.Vowels++
		case t.IsConsonant():
			c.Consonants++
		}
	}
	return c
}

// Validate applies spec §4.4's round-dependent composition rules and
// returns a human-readable rejection reason, or "" if the rack is
// acceptable.
func Validate(rack []tiles.Tile, round int) string {
	c := Count(rack)
	if round <= 15 {
		if c.Vowels > 5 {
			return "demasiadas vocales para esta ronda"
		}
		if c.Consonants > 5 {
			return "demasiadas consonantes para esta ronda"
		}
		if c.Blanks == 0 {
			if c.Vowels < 2 {
				return "muy pocas vocales sin comodín"
			}
			if c.Consonants < 2 {
				return "muy pocas consonantes sin comodín"
			}
		}
		return ""
	}
	// Rounds >= 16.
	if c.Vowels == 0 && c.Blanks == 0 {
		return "sin vocales y sin comodín"
	}
	if c.Consonants == 0 && c.Blanks == 0 {
		return "sin consonantes y sin comodín"
	}
	return ""
}
