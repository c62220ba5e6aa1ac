package rack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/tiles"
)

func parse(t *testing.T, s string) []tiles.Tile {
	t.Helper()
	out, err := tiles.ParseRack(s, false)
	require.NoError(t, err)
	return out
}

func TestValidate_EarlyRound_TooManyVowels(t *testing.T) {
	r := parse(t, "AAEEIOU")
	reason := Validate(r, 1)
	assert.NotEmpty(t, reason)
}

func TestValidate_EarlyRound_Accepts(t *testing.T) {
	r := parse(t, "AEINRST")
	reason := Validate(r, 1)
	assert.Empty(t, reason)
}

func TestValidate_EarlyRound_NoBlankNeedsMinimum(t *testing.T) {
	r := parse(t, "RSTLN") // 0 vowels, 5 consonants, no blank (short end-of-bag rack)
	reason := Validate(r, 1)
	assert.NotEmpty(t, reason)
}

func TestValidate_EarlyRound_BlankRelaxesMinimum(t *testing.T) {
	r := parse(t, "RSTLN??") // 0 vowels, 5 consonants, but has blanks
	reason := Validate(r, 1)
	assert.Empty(t, reason)
}

func TestValidate_LateRound_RequiresAtLeastOneEach(t *testing.T) {
	r := parse(t, "RSTLNDG") // 0 vowels, no blank
	reason := Validate(r, 16)
	assert.NotEmpty(t, reason)
}

func TestValidate_LateRound_BlankSatisfiesEither(t *testing.T) {
	r := parse(t, "RSTLND?")
	reason := Validate(r, 16)
	assert.Empty(t, reason)
}
