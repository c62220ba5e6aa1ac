package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/apperr"
)

func mustUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func samplePlay(tournament, player uuid.UUID, round int) PlayData {
	return PlayData{
		TournamentID: tournament,
		PlayerID:     player,
		RoundNumber:  round,
		Word:         "RATON",
		Score:        12,
		SubmittedAt:  time.Now().UTC(),
	}
}

func TestUnsyncedCache_KeyedByTournamentPlayerRound(t *testing.T) {
	c := NewUnsyncedCache(10)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")
	bob := mustUUID("33333333-3333-3333-3333-333333333333")

	require.NoError(t, c.Store(samplePlay(tournament, alice, 1)))
	require.NoError(t, c.Store(samplePlay(tournament, bob, 1)))
	require.NoError(t, c.Store(samplePlay(tournament, alice, 2)))
	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.ListUnsynced(), 3)
}

func TestUnsyncedCache_StoreReplacesSameKeyWithoutGrowing(t *testing.T) {
	c := NewUnsyncedCache(1)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")

	first := samplePlay(tournament, alice, 1)
	require.NoError(t, c.Store(first))
	second := first
	second.Word = "NASO"
	require.NoError(t, c.Store(second))

	assert.Equal(t, 1, c.Len())
	unsynced := c.ListUnsynced()
	require.Len(t, unsynced, 1)
	assert.Equal(t, "NASO", unsynced[0].Word)
}

func TestUnsyncedCache_EvictsOldestSyncedEntryWhenFull(t *testing.T) {
	c := NewUnsyncedCache(2)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")
	bob := mustUUID("33333333-3333-3333-3333-333333333333")

	require.NoError(t, c.Store(samplePlay(tournament, alice, 1)))
	require.NoError(t, c.Store(samplePlay(tournament, bob, 1)))
	c.MarkSynced(tournament, alice, 1)

	require.NoError(t, c.Store(samplePlay(tournament, alice, 2)))

	unsynced := c.ListUnsynced()
	assert.Len(t, unsynced, 2) // bob/round1 (never synced) and alice/round2 (just inserted)
	for _, pd := range unsynced {
		assert.False(t, pd.PlayerID == alice && pd.RoundNumber == 1)
	}
}

func TestUnsyncedCache_RejectsInsertWhenFullAndNoneSynced(t *testing.T) {
	c := NewUnsyncedCache(1)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")
	bob := mustUUID("33333333-3333-3333-3333-333333333333")

	require.NoError(t, c.Store(samplePlay(tournament, alice, 1)))
	err := c.Store(samplePlay(tournament, bob, 1))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CloudError))
	assert.Equal(t, 1, c.Len())
}

func TestUnsyncedCache_MarkSyncedAndClearSynced(t *testing.T) {
	c := NewUnsyncedCache(10)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")
	bob := mustUUID("33333333-3333-3333-3333-333333333333")

	require.NoError(t, c.Store(samplePlay(tournament, alice, 1)))
	require.NoError(t, c.Store(samplePlay(tournament, bob, 1)))
	c.MarkSynced(tournament, alice, 1)

	assert.Len(t, c.ListUnsynced(), 1)
	removed := c.ClearSynced()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestUnsyncedCache_ExportImportRoundTrips(t *testing.T) {
	c := NewUnsyncedCache(10)
	tournament := mustUUID("11111111-1111-1111-1111-111111111111")
	alice := mustUUID("22222222-2222-2222-2222-222222222222")

	require.NoError(t, c.Store(samplePlay(tournament, alice, 1)))
	c.MarkSynced(tournament, alice, 1)
	require.NoError(t, c.Store(samplePlay(tournament, alice, 2)))

	blob, err := c.ExportJSON()
	require.NoError(t, err)

	restored := NewUnsyncedCache(10)
	require.NoError(t, restored.ImportJSON(blob))
	assert.Equal(t, 2, restored.Len())
	assert.Len(t, restored.ListUnsynced(), 1)
}
