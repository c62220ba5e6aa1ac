package persistence

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/store"
)

func TestLocalSnapshotter_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSnapshotter(dir, zerolog.Nop())
	require.NoError(t, err)

	st := store.New()
	id := st.Create("Club Tournament")
	var tn *store.Tournament
	var bg *bag.Bag
	st.View(id, func(t *store.Tournament, b *bag.Bag) error {
		tn = t
		bg = b
		return nil
	})

	require.NoError(t, s.Save(tn, bg))

	loaded, loadedBag, err := s.Load(tn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, tn.Name, loaded.Name)
	assert.Equal(t, bg.Count(), loadedBag.Count())
}

func TestLocalSnapshotter_LoadFallsBackToNewestValidBackup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSnapshotter(dir, zerolog.Nop())
	require.NoError(t, err)

	st := store.New()
	id := st.Create("Club Tournament")
	var tn *store.Tournament
	var bg *bag.Bag
	st.View(id, func(t *store.Tournament, b *bag.Bag) error {
		tn = t
		bg = b
		return nil
	})
	// Save twice so backups/ holds at least one valid timestamped copy.
	require.NoError(t, s.Save(tn, bg))
	require.NoError(t, s.Save(tn, bg))

	path := s.tournamentPath(tn.ID.String())
	corrupt := []byte(`{"tournament":{"id":"` + tn.ID.String() + `","name":"Tampered"},"bag":null,"checksum":"deadbeef","saved_at":"2020-01-01T00:00:00Z"}`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	loaded, loadedBag, err := s.Load(tn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, tn.Name, loaded.Name)
	assert.Equal(t, bg.Count(), loadedBag.Count())
}

func TestLocalSnapshotter_LoadFailsWhenNoValidBackupExists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSnapshotter(dir, zerolog.Nop())
	require.NoError(t, err)

	st := store.New()
	id := st.Create("Club Tournament")
	var tn *store.Tournament
	var bg *bag.Bag
	st.View(id, func(t *store.Tournament, b *bag.Bag) error {
		tn = t
		bg = b
		return nil
	})
	require.NoError(t, s.Save(tn, bg))

	// Wipe backups/ so the fallback path has nothing valid to find.
	backups, err := os.ReadDir(dir + "/backups")
	require.NoError(t, err)
	for _, e := range backups {
		require.NoError(t, os.Remove(dir+"/backups/"+e.Name()))
	}

	path := s.tournamentPath(tn.ID.String())
	corrupt := []byte(`{"tournament":{"id":"` + tn.ID.String() + `","name":"Tampered"},"bag":null,"checksum":"deadbeef","saved_at":"2020-01-01T00:00:00Z"}`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	_, _, err = s.Load(tn.ID.String())
	assert.Error(t, err)
}

func TestListTournaments_ReflectsSavedSnapshots(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSnapshotter(dir, zerolog.Nop())
	require.NoError(t, err)

	st := store.New()
	id := st.Create("Club Tournament")
	st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		return s.Save(tn, bg)
	})

	ids, err := s.ListTournaments()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, id.String(), ids[0])
}

func TestDictionaryHash_StableForSameContent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/words.txt"
	require.NoError(t, os.WriteFile(path, []byte("RETINAS\nRATON\n"), 0o644))

	h1, err := DictionaryHash(path)
	require.NoError(t, err)
	h2, err := DictionaryHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}
