package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/bag"
)

func TestCreate_StartsEmptyAndCreated(t *testing.T) {
	s := New()
	id := s.Create("Club Tournament")

	err := s.View(id, func(tn *Tournament, bg *bag.Bag) error {
		assert.Equal(t, StatusCreated, tn.Status)
		assert.Equal(t, "Club Tournament", tn.Name)
		assert.Equal(t, 100, bg.Count())
		return nil
	})
	require.NoError(t, err)
}

func TestView_UnknownTournamentIsNotFound(t *testing.T) {
	s := New()
	err := s.View([16]byte{}, func(tn *Tournament, bg *bag.Bag) error { return nil })
	assert.Error(t, err)
}

func TestUpdate_MutationsAreVisibleToSubsequentViews(t *testing.T) {
	s := New()
	id := s.Create("Club Tournament")

	err := s.Update(id, func(tn *Tournament, bg *bag.Bag) error {
		tn.Status = StatusInProgress
		return nil
	})
	require.NoError(t, err)

	err = s.View(id, func(tn *Tournament, bg *bag.Bag) error {
		assert.Equal(t, StatusInProgress, tn.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestClone_ProducesIndependentDeepCopy(t *testing.T) {
	s := New()
	id := s.Create("Club Tournament")

	var clone *Tournament
	err := s.Update(id, func(tn *Tournament, bg *bag.Bag) error {
		tn.Players = append(tn.Players, &Player{Name: "Ana"})
		var cerr error
		clone, cerr = tn.Clone()
		return cerr
	})
	require.NoError(t, err)

	clone.Players[0].Name = "Mutated"

	err = s.View(id, func(tn *Tournament, bg *bag.Bag) error {
		assert.Equal(t, "Ana", tn.Players[0].Name)
		return nil
	})
	require.NoError(t, err)
}

func TestList_ReturnsEveryCreatedTournament(t *testing.T) {
	s := New()
	a := s.Create("A")
	b := s.Create("B")

	ids := s.List()
	require.Len(t, ids, 2)
	assert.Contains(t, ids, a)
	assert.Contains(t, ids, b)
}

func TestRestore_RehydratesFromSnapshot(t *testing.T) {
	s := New()
	id := s.Create("Club Tournament")
	var snapshot *Tournament
	var bagSnap *bag.Bag
	s.Update(id, func(tn *Tournament, bg *bag.Bag) error {
		tn.Status = StatusInProgress
		snap, err := tn.Clone()
		snapshot = snap
		bagSnap = bg.Clone()
		return err
	})

	s2 := New()
	s2.Restore(snapshot, bagSnap)
	err := s2.View(id, func(tn *Tournament, bg *bag.Bag) error {
		assert.Equal(t, StatusInProgress, tn.Status)
		assert.Equal(t, 100, bg.Count())
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_SerializesConcurrentCallers(t *testing.T) {
	s := New()
	id := s.Create("Club Tournament")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(id, func(tn *Tournament, bg *bag.Bag) error {
				tn.Players = append(tn.Players, &Player{Name: "x"})
				return nil
			})
		}()
	}
	wg.Wait()

	err := s.View(id, func(tn *Tournament, bg *bag.Bag) error {
		assert.Len(t, tn.Players, 50)
		return nil
	})
	require.NoError(t, err)
}
