package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRack_Digraphs(t *testing.T) {
	rack, err := ParseRack("A[CH]ÑEI?T", false)
	require.NoError(t, err)
	require.Len(t, rack, 7)
	assert.Equal(t, "A", rack[0].Letter())
	assert.Equal(t, "CH", rack[1].Letter())
	assert.Equal(t, "Ñ", rack[2].Letter())
	assert.True(t, rack[5].IsBlank())
}

func TestParseRack_StrictCount(t *testing.T) {
	_, err := ParseRack("AEINRST", true)
	require.NoError(t, err)
	_, err = ParseRack("AEINRS", true)
	require.Error(t, err)
}

func TestParseRack_BlankLowercase(t *testing.T) {
	rack, err := ParseRack("a[ch]", false)
	require.NoError(t, err)
	require.Len(t, rack, 2)
	assert.True(t, rack[0].PlayedAsBlank())
	assert.Equal(t, "A", rack[0].Letter())
	assert.True(t, rack[1].PlayedAsBlank())
	assert.Equal(t, "CH", rack[1].Letter())
}

func TestFormatTile_BracketsDigraphs(t *testing.T) {
	tile, ok := AsBlank("LL")
	require.True(t, ok)
	assert.Equal(t, "[ll]", FormatTile(tile))

	plain, ok := FromLetter("RR")
	require.True(t, ok)
	assert.Equal(t, "[RR]", FormatTile(plain))
}

func TestParseRack_UnknownTile(t *testing.T) {
	_, err := ParseRack("AEW", false)
	assert.Error(t, err)
}

func TestVowelConsonantClassification(t *testing.T) {
	a, _ := FromLetter("A")
	r, _ := FromLetter("R")
	assert.True(t, a.IsVowel())
	assert.False(t, a.IsConsonant())
	assert.True(t, r.IsConsonant())
	assert.False(t, r.IsVowel())
}

func TestPoints_BlankAlwaysZero(t *testing.T) {
	z, _ := FromLetter("Z")
	assert.Equal(t, 10, z.Points())

	blankZ, _ := AsBlank("Z")
	assert.Equal(t, 0, blankZ.Points())
}

func TestFrequencySumsToNinetyEight(t *testing.T) {
	total := 0
	for _, l := range AllLetters() {
		total += FrequencyOf(l)
	}
	assert.Equal(t, 98, total)
}
