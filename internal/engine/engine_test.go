package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/movegen"
	"dupliscrabble/internal/store"
)

func newTestEngine() (*Engine, *store.Store) {
	dict := movegen.NewDictionaryFromWords([]string{"RETINAS", "RATON", "SED", "AS", "SI", "SOL", "NASO", "ANTES"})
	gen := movegen.NewTrieGenerator(dict)
	st := store.New()
	rng := rand.New(rand.NewPCG(1, 2))
	return New(st, gen, rng, nil), st
}

func TestStartRoundManual_ComputesOptimalImmediately(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")

	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	assert.Equal(t, 1, round.Number)
	assert.Equal(t, store.RoundPending, round.Status)
	require.NotNil(t, round.OptimalPlay)
	assert.Equal(t, "RETINAS", round.OptimalPlay.Word)
	assert.Greater(t, round.OptimalPlay.Score, 0)
}

func TestStartRoundManual_RejectsRackNotInBag(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")

	// Drawing seven Zs is impossible; the canonical bag only has one.
	_, err := e.StartRoundManual(id, "ZZZZZZZ")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.BagInconsistent))
}

func TestSubmitPlay_ScoresAgainstOptimalAndUpserts(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	player, err := e.EnrollPlayer(id, "Ana", "")
	require.NoError(t, err)
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)

	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)

	play, err := e.SubmitPlay(id, player.ID, round.Number, "SI", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	assert.Equal(t, "SI", play.Word)
	assert.Greater(t, play.Score, 0)

	// Resubmitting replaces the prior play rather than appending a second one.
	play2, err := e.SubmitPlay(id, player.ID, round.Number, "AS", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	assert.Equal(t, "AS", play2.Word)

	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		p := tn.FindPlayer(player.ID)
		assert.Len(t, p.Plays, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSubmitPlay_InvalidWordScoresZero(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	player, err := e.EnrollPlayer(id, "Ana", "")
	require.NoError(t, err)
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)

	play, err := e.SubmitPlay(id, player.ID, round.Number, "ZZZ", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	assert.Equal(t, 0, play.Score)
	assert.Contains(t, play.Word, "INVÁLIDA")
}

func TestPlaceOptimal_CompletesRoundAndAdvancesBoard(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)
	_, err = e.RevealOptimal(id, round.Number)
	require.NoError(t, err)

	completed, err := e.PlaceOptimal(id, round.Number)
	require.NoError(t, err)
	assert.Equal(t, store.RoundCompleted, completed.Status)

	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		require.Len(t, tn.MasterPlays, 1)
		assert.Equal(t, completed.OptimalPlay.Score, tn.MasterPlays[0].Score)
		return nil
	})
	require.NoError(t, err)

	// Idempotent: calling again doesn't duplicate the master play.
	_, err = e.PlaceOptimal(id, round.Number)
	require.NoError(t, err)
	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		assert.Len(t, tn.MasterPlays, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestUndoLastRound_RestoresBagCensus(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)
	_, err = e.PlaceOptimal(id, round.Number)
	require.NoError(t, err)

	var beforeUndo int
	st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		beforeUndo = bg.Count()
		return nil
	})

	require.NoError(t, e.UndoLastRound(id))

	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		assert.Empty(t, tn.Rounds)
		assert.Empty(t, tn.MasterPlays)
		assert.Equal(t, 100, bg.Count())
		assert.Greater(t, bg.Count(), beforeUndo)
		return nil
	})
	require.NoError(t, err)
}

func TestRejectRack_ReturnsRackToBagWithoutResidue(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	oldRack := round.Rack

	updated, err := e.RejectRack(id, round.Number)
	require.NoError(t, err)
	assert.True(t, updated.RackRejected)
	assert.Equal(t, store.RoundPending, updated.Status)
	assert.Nil(t, updated.TimerStarted)
	assert.NotEqual(t, oldRack, "")

	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		assert.Equal(t, 93, bg.Count()) // 100 - 7 for the freshly redrawn rack
		return nil
	})
	require.NoError(t, err)
}

func TestSubmitPlay_LateSubmissionScoresZero(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	player, err := e.EnrollPlayer(id, "Ana", "")
	require.NoError(t, err)
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	rtStarted, err := e.StartTimer(id, round.Number)
	require.NoError(t, err)
	past := rtStarted.TimerStarted.Add(-(RoundTimerSeconds + 1) * time.Second)
	rtStarted.TimerStarted = &past

	play, err := e.SubmitPlay(id, player.ID, round.Number, "AS", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	assert.Equal(t, 0, play.Score)
	assert.Contains(t, play.Word, "TIEMPO EXCEDIDO")
}

func TestLeaderboard_SortsByTotalScoreDescending(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	a, err := e.EnrollPlayer(id, "Ana", "")
	require.NoError(t, err)
	b, err := e.EnrollPlayer(id, "Beto", "")
	require.NoError(t, err)
	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)

	_, err = e.SubmitPlay(id, a.ID, round.Number, "AS", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	_, err = e.SubmitPlay(id, b.ID, round.Number, "SI", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)

	board, err := e.Leaderboard(id)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.GreaterOrEqual(t, board[0].TotalScore, board[1].TotalScore)
}

func TestEnrollPlayer_RecordsSession(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")
	player, err := e.EnrollPlayer(id, "Ana", "HW-1")
	require.NoError(t, err)

	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		session := tn.FindSession(player.ID)
		require.NotNil(t, session)
		assert.Equal(t, player.ID, session.PlayerID)
		assert.False(t, session.EnrolledAt.IsZero())
		assert.Equal(t, session.EnrolledAt, session.LastSeenAt)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, e.RecordPlayerActivity(id, player.ID, "203.0.113.5", "okular/1.0"))
	err = st.View(id, func(tn *store.Tournament, bg *bag.Bag) error {
		session := tn.FindSession(player.ID)
		require.NotNil(t, session)
		assert.Equal(t, "203.0.113.5", session.IP)
		assert.Equal(t, "okular/1.0", session.UserAgent)
		assert.True(t, !session.LastSeenAt.Before(session.EnrolledAt))
		return nil
	})
	require.NoError(t, err)
}

type recordingEventLog struct {
	events  []string
	actions []string
}

func (r *recordingEventLog) LogEvent(tournamentID uuid.UUID, format string, args ...any) error {
	r.events = append(r.events, fmt.Sprintf(format, args...))
	return nil
}

func (r *recordingEventLog) LogPlayerAction(tournamentID, playerID uuid.UUID, format string, args ...any) error {
	r.actions = append(r.actions, fmt.Sprintf(format, args...))
	return nil
}

func TestEventLog_RecordsRoundStartRevealAndSubmit(t *testing.T) {
	e, st := newTestEngine()
	events := &recordingEventLog{}
	e.SetEventLog(events)

	id := st.Create("Open Tournament")
	player, err := e.EnrollPlayer(id, "Ana", "")
	require.NoError(t, err)

	round, err := e.StartRoundManual(id, "RETINAS")
	require.NoError(t, err)
	_, err = e.StartTimer(id, round.Number)
	require.NoError(t, err)
	_, err = e.SubmitPlay(id, player.ID, round.Number, "SI", store.Position{Row: 7, Col: 7, Down: false})
	require.NoError(t, err)
	_, err = e.RevealOptimal(id, round.Number)
	require.NoError(t, err)

	require.Len(t, events.events, 2)
	assert.Contains(t, events.events[0], "started")
	assert.Contains(t, events.events[1], "revealed")
	require.Len(t, events.actions, 1)
	assert.Contains(t, events.actions[0], "SI")
}

func TestPersistenceMode_DefaultsToDualLocalFirstAndCanBeSwitched(t *testing.T) {
	e, st := newTestEngine()
	id := st.Create("Open Tournament")

	mode, err := e.GetPersistenceMode(id)
	require.NoError(t, err)
	assert.Equal(t, store.DualLocalFirst, mode)

	for _, mode := range []store.PersistenceMode{store.LocalOnly, store.CloudOnly, store.DualCloudFirst, store.DualLocalFirst} {
		require.NoError(t, e.SetPersistenceMode(id, mode))
		got, err := e.GetPersistenceMode(id)
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	err = e.SetPersistenceMode(id, store.PersistenceMode("bogus"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.PreconditionFailed))
}

