package bag

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpanish_HasOneHundredTiles(t *testing.T) {
	b := NewSpanish()
	assert.Equal(t, 100, b.Count())
}

func TestDrawReturnConservesCensus(t *testing.T) {
	b := NewSpanish()
	rng := rand.New(rand.NewPCG(1, 2))
	b.Shuffle(rng)

	drawn := b.DrawN(7)
	require.Len(t, drawn, 7)
	assert.Equal(t, 93, b.Count())

	b.Return(drawn)
	b.Shuffle(rng)
	assert.Equal(t, 100, b.Count())
}

func TestDrawN_ExhaustsGracefully(t *testing.T) {
	b := &Bag{}
	b.Return(nil)
	out := b.DrawN(7)
	assert.Empty(t, out)
}

func TestRemoveOne_SpecificLetter(t *testing.T) {
	b := NewSpanish()
	ok := b.RemoveOne("Z")
	assert.True(t, ok)
	assert.Equal(t, 99, b.Count())

	// Z only had frequency 1.
	ok = b.RemoveOne("Z")
	assert.False(t, ok)
}

func TestDeterministicShuffle(t *testing.T) {
	b1 := NewSpanish()
	b2 := NewSpanish()
	b1.Shuffle(rand.New(rand.NewPCG(42, 7)))
	b2.Shuffle(rand.New(rand.NewPCG(42, 7)))
	assert.Equal(t, b1.Tiles(), b2.Tiles())
}
