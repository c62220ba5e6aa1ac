// Package engine implements the Round Engine (spec C6): the per-round state
// machine, rack issuance, optimal-play precomputation, submission scoring,
// reveal/place protocol, undo, and game-end detection. Grounded line by
// line on tournament_manager.rs in original_source/, diverging from it only
// where spec §9's design notes mandate (manual rack update recomputes the
// optimal; reject discards residue, normal draw preserves it).
package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/board"
	"dupliscrabble/internal/movegen"
	"dupliscrabble/internal/rack"
	"dupliscrabble/internal/store"
	"dupliscrabble/internal/tiles"
)

// RoundTimerSeconds is the hard per-round submission deadline (spec §4.6.3).
const RoundTimerSeconds = 180

// Persister receives a consistent (tournament, bag) snapshot after every
// successful mutating operation (spec §2: "all durable writes fan out
// through C8 after a successful C7 mutation"). The snapshot is already a
// clone taken under the store's exclusive lock; Persist is called after the
// lock is released.
type Persister interface {
	Persist(t *store.Tournament, bg *bag.Bag)
}

// EventLog receives a human-readable trail of round and player activity
// (spec SUPPLEMENTED FEATURES: event/round logging, grounded on
// tournament_manager.rs's log_event/log_player_action). A nil EventLog
// disables logging entirely.
type EventLog interface {
	LogEvent(tournamentID uuid.UUID, format string, args ...any) error
	LogPlayerAction(tournamentID, playerID uuid.UUID, format string, args ...any) error
}

// Engine is the Round Engine: it holds no state of its own beyond its
// collaborators (store, move generator, RNG, persister), per spec §9
// ("the tournament store and engine are ... explicit injected state").
type Engine struct {
	store        *store.Store
	gen          movegen.Generator
	rng          *rand.Rand
	persister    Persister
	events       EventLog
	timerSeconds int // 0 means RoundTimerSeconds
}

// New builds an Engine. rng is injected so tests can supply a deterministic
// source (spec §4.2).
func New(st *store.Store, gen movegen.Generator, rng *rand.Rand, persister Persister) *Engine {
	return &Engine{store: st, gen: gen, rng: rng, persister: persister}
}

// SetRoundTimerSeconds overrides the submission deadline (spec CONFIGURATION:
// "round_timer_seconds"); zero restores the RoundTimerSeconds default.
func (e *Engine) SetRoundTimerSeconds(seconds int) { e.timerSeconds = seconds }

// SetEventLog attaches the event logger; leaving it unset keeps logging
// disabled, which is what every existing test relies on.
func (e *Engine) SetEventLog(l EventLog) { e.events = l }

// logEvent records a tournament-scoped line, swallowing the write error: a
// full disk or unwritable log directory must never fail a round mutation
// that has already committed to the store.
func (e *Engine) logEvent(id uuid.UUID, format string, args ...any) {
	if e.events == nil {
		return
	}
	_ = e.events.LogEvent(id, format, args...)
}

// logPlayerAction records a player-scoped line, same swallow-on-failure
// rule as logEvent.
func (e *Engine) logPlayerAction(id, playerID uuid.UUID, format string, args ...any) {
	if e.events == nil {
		return
	}
	_ = e.events.LogPlayerAction(id, playerID, format, args...)
}

func (e *Engine) timerDuration() time.Duration {
	if e.timerSeconds <= 0 {
		return RoundTimerSeconds * time.Second
	}
	return time.Duration(e.timerSeconds) * time.Second
}

// mutate wraps store.Update, taking a snapshot clone under the exclusive
// lock on success and handing it to the persister only after the lock is
// released (spec §5: "persistence snapshots are taken from a clone under
// the exclusive lock, then serialised outside").
func (e *Engine) mutate(id uuid.UUID, fn func(t *store.Tournament, bg *bag.Bag) error) error {
	var snapshot *store.Tournament
	var bagSnap *bag.Bag
	err := e.store.Update(id, func(t *store.Tournament, bg *bag.Bag) error {
		if err := fn(t, bg); err != nil {
			return err
		}
		if e.persister != nil {
			clone, cerr := t.Clone()
			if cerr == nil {
				snapshot = clone
				bagSnap = bg.Clone()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if e.persister != nil && snapshot != nil {
		e.persister.Persist(snapshot, bagSnap)
	}
	return nil
}

// EnrollPlayer adds a player (spec §6 enroll_player), only while the
// tournament is still Created.
func (e *Engine) EnrollPlayer(id uuid.UUID, name, hardwareID string) (*store.Player, error) {
	var player *store.Player
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		if t.Status != store.StatusCreated {
			return apperr.New(apperr.PreconditionFailed, "cannot enroll players after tournament has started")
		}
		player = &store.Player{ID: uuid.New(), Name: name, HardwareID: hardwareID}
		t.Players = append(t.Players, player)
		t.Touch(player.ID, "", "", time.Now().UTC())
		if s := t.FindSession(player.ID); s != nil {
			s.HardwareID = hardwareID
		}
		return nil
	})
	return player, err
}

// RecordPlayerActivity updates a player's session with the connection
// details of the caller's current request (IP, user agent) and bumps its
// last-seen timestamp. A transport layer calls this per request; the core
// engine carries no request context of its own (original_source/persistence.rs's
// PlayerSession tracking, added per SUPPLEMENTED FEATURES).
func (e *Engine) RecordPlayerActivity(id, playerID uuid.UUID, ip, userAgent string) error {
	return e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		if t.FindPlayer(playerID) == nil {
			return apperr.New(apperr.NotFound, "player %s not enrolled in tournament %s", playerID, id)
		}
		t.Touch(playerID, ip, userAgent, time.Now().UTC())
		return nil
	})
}

// currentBoard computes the board a new round would start from: the
// accumulated result of every previously Completed round's master play
// (spec §4.6.1).
func currentBoard(t *store.Tournament) (*board.Board, error) {
	last := t.LastRound()
	if last == nil {
		return board.New(), nil
	}
	if last.Status != store.RoundCompleted {
		return nil, apperr.New(apperr.PreconditionFailed, "round %d is not yet completed", last.Number)
	}
	b := last.BoardState.Clone()
	if err := b.ApplyPlacement(last.OptimalPlay.Placement); err != nil {
		return nil, err
	}
	return b, nil
}

// residueOf returns the tiles left over from a completed round's rack after
// its master play consumed some of them (spec glossary: "residue").
func residueOf(round *store.Round) ([]tiles.Tile, error) {
	rackTiles, err := tiles.ParseRack(round.Rack, false)
	if err != nil {
		return nil, err
	}
	if round.OptimalPlay == nil {
		return rackTiles, nil
	}
	counts := make(map[string]int)
	for _, t := range rackTiles {
		counts[faceKey(t)]++
	}
	for _, glyph := range round.OptimalPlay.Placement.Word {
		if glyph == 0 {
			continue
		}
		counts[faceKey(glyph)]--
	}
	var residue []tiles.Tile
	for _, t := range rackTiles {
		k := faceKey(t)
		if counts[k] > 0 {
			residue = append(residue, t)
			counts[k]--
		}
	}
	return residue, nil
}

// faceKey is the rack-accounting key for a tile: the letter for a plain
// tile, "" for any blank (played or not — a played blank still consumes one
// of the rack's blanks, not one of the letter's supply).
func faceKey(t tiles.Tile) string {
	if t.PlayedAsBlank() || t.IsBlank() {
		return ""
	}
	return t.Letter()
}

// drawValidRack draws tiles to append to residue until §4.4 accepts the
// resulting rack, looping (auto path never surfaces a rejection).
func (e *Engine) drawValidRack(bg *bag.Bag, residue []tiles.Tile, round int) []tiles.Tile {
	for {
		need := 7 - len(residue)
		if need < 0 {
			need = 0
		}
		drawn := bg.DrawN(need)
		candidate := append(append([]tiles.Tile{}, residue...), drawn...)
		if reason := rack.Validate(candidate, round); reason == "" {
			return candidate
		}
		bg.Return(drawn)
		bg.Shuffle(e.rng)
	}
}

// StartRound issues a new round with an auto-generated rack (spec §6
// start_round).
func (e *Engine) StartRound(id uuid.UUID) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		newBoard, err := currentBoard(t)
		if err != nil {
			return err
		}
		var residue []tiles.Tile
		if last := t.LastRound(); last != nil {
			residue, err = residueOf(last)
			if err != nil {
				return err
			}
		}
		number := len(t.Rounds) + 1
		if number == 1 {
			bg.Shuffle(e.rng)
		}
		candidate := e.drawValidRack(bg, residue, number)
		round := &store.Round{
			Number:     number,
			Rack:       tiles.FormatRack(candidate),
			BoardState: newBoard,
			Status:     store.RoundPending,
		}
		if err := e.computeOptimal(newBoard, candidate, round); err != nil {
			return err
		}
		t.Rounds = append(t.Rounds, round)
		if t.Status == store.StatusCreated {
			t.Status = store.StatusInProgress
		}
		result = round
		return nil
	})
	if err == nil {
		e.logEvent(id, "round %d started (auto), rack=%s", result.Number, result.Rack)
	}
	return result, err
}

// StartRoundManual issues a new round with an admin-supplied rack (spec §6
// start_round_manual); its tiles must be present in the bag, which is then
// decremented accordingly.
func (e *Engine) StartRoundManual(id uuid.UUID, rackDisplay string) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		newBoard, err := currentBoard(t)
		if err != nil {
			return err
		}
		candidate, err := tiles.ParseRack(rackDisplay, true)
		if err != nil {
			return apperr.Wrap(apperr.BagInconsistent, err, "invalid rack string")
		}
		removed, err := takeFromBag(bg, candidate)
		if err != nil {
			return err
		}
		number := len(t.Rounds) + 1
		if reason := rack.Validate(candidate, number); reason != "" {
			bg.Return(removed)
			bg.Shuffle(e.rng)
			return apperr.New(apperr.RackRejected, reason)
		}
		round := &store.Round{
			Number:     number,
			Rack:       tiles.FormatRack(candidate),
			BoardState: newBoard,
			Status:     store.RoundPending,
		}
		if err := e.computeOptimal(newBoard, candidate, round); err != nil {
			return err
		}
		t.Rounds = append(t.Rounds, round)
		if t.Status == store.StatusCreated {
			t.Status = store.StatusInProgress
		}
		result = round
		return nil
	})
	if err == nil {
		e.logEvent(id, "round %d started (manual), rack=%s", result.Number, result.Rack)
	}
	return result, err
}

// takeFromBag verifies every tile in want is available before removing any
// of them, so a BagInconsistent failure never partially mutates the bag
// (spec §7: "operation is refused without mutating state").
func takeFromBag(bg *bag.Bag, want []tiles.Tile) ([]tiles.Tile, error) {
	probe := bg.Clone()
	for _, t := range want {
		if !probe.RemoveOne(faceKey(t)) {
			return nil, apperr.New(apperr.BagInconsistent, "bag does not contain enough %q tiles for this rack", displayFace(t))
		}
	}
	var removed []tiles.Tile
	for _, t := range want {
		bg.RemoveOne(faceKey(t))
		removed = append(removed, t)
	}
	return removed, nil
}

func displayFace(t tiles.Tile) string {
	if t.IsBlank() {
		return "?"
	}
	return t.Letter()
}

// computeOptimal invokes the move generator and stores the result on the
// round (spec §4.6.2): "immediately after the rack is accepted ... it must
// exist before any submission is scored."
func (e *Engine) computeOptimal(b *board.Board, rackTiles []tiles.Tile, round *store.Round) error {
	placement, score, found := e.gen.BestPlacement(b, rackTiles)
	if !found {
		round.OptimalPlay = nil
		return nil
	}
	round.OptimalPlay = &store.OptimalPlay{
		Word:      mainWordOf(b, placement),
		Position:  positionOf(placement),
		Score:     score,
		Placement: placement,
	}
	return nil
}

// placementCell returns the (row, col) of the i-th glyph of a placement.
func placementCell(p board.Placement, i int) (int, int) {
	if p.Down {
		return int(p.Idx) + i, int(p.Lane)
	}
	return int(p.Lane), int(p.Idx) + i
}

// mainWordOf renders the full word a placement forms, reading existing board
// tiles for anchor glyphs (word[i] == 0) since those aren't in Placement.Word.
func mainWordOf(b *board.Board, p board.Placement) string {
	var sb strings.Builder
	for i, glyph := range p.Word {
		if glyph == 0 {
			row, col := placementCell(p, i)
			sb.WriteString(b.At(row, col).Letter())
			continue
		}
		sb.WriteString(glyph.Letter())
	}
	return sb.String()
}

func positionOf(p board.Placement) store.Position {
	row, col := int(p.Lane), int(p.Idx)
	if p.Down {
		row, col = int(p.Idx), int(p.Lane)
	}
	return store.Position{Row: row, Col: col, Down: p.Down}
}

// UpdateRoundRack replaces a round's rack while it is Active (spec §6
// update_round_rack). Per spec §9 design note 1, the optimal play is
// recomputed so invariant 4 (optimal_revealed ⇒ optimal_play != nil) always
// holds; this diverges from the original source, which left optimal_play
// nil after a manual rack update.
func (e *Engine) UpdateRoundRack(id uuid.UUID, roundNumber int, rackDisplay string) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status != store.RoundActive {
			return apperr.New(apperr.PreconditionFailed, "round %d is not active", roundNumber)
		}
		candidate, err := tiles.ParseRack(rackDisplay, true)
		if err != nil {
			return apperr.Wrap(apperr.BagInconsistent, err, "invalid rack string")
		}
		oldRack, err := tiles.ParseRack(round.Rack, false)
		if err != nil {
			return err
		}
		removed, err := takeFromBag(bg, candidate)
		if err != nil {
			return err
		}
		bg.Return(oldRack)
		bg.Shuffle(e.rng)
		if reason := rack.Validate(candidate, roundNumber); reason != "" {
			bg.Return(removed)
			bg.Shuffle(e.rng)
			return apperr.New(apperr.RackRejected, reason)
		}
		round.Rack = tiles.FormatRack(candidate)
		if err := e.computeOptimal(round.BoardState, candidate, round); err != nil {
			return err
		}
		result = round
		return nil
	})
	return result, err
}

// StartTimer begins the submission window, RoundTimerSeconds unless
// overridden by configuration (spec §6 start_timer).
func (e *Engine) StartTimer(id uuid.UUID, roundNumber int) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status != store.RoundPending {
			return apperr.New(apperr.PreconditionFailed, "round %d is not pending", roundNumber)
		}
		now := time.Now().UTC()
		round.TimerStarted = &now
		round.Status = store.RoundActive
		result = round
		return nil
	})
	return result, err
}

// RejectRack discards the round's current rack entirely (no residue
// preserved, per spec §9 design note 2) and redraws, returning the round to
// Pending.
func (e *Engine) RejectRack(id uuid.UUID, roundNumber int) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status == store.RoundCompleted {
			return apperr.New(apperr.PreconditionFailed, "round %d is already completed", roundNumber)
		}
		old, err := tiles.ParseRack(round.Rack, false)
		if err != nil {
			return err
		}
		bg.Return(old)
		bg.Shuffle(e.rng)
		candidate := e.drawValidRack(bg, nil, roundNumber)
		round.Rack = tiles.FormatRack(candidate)
		round.RackRejected = true
		round.TimerStarted = nil
		round.Status = store.RoundPending
		round.OptimalRevealed = false
		if err := e.computeOptimal(round.BoardState, candidate, round); err != nil {
			return err
		}
		result = round
		return nil
	})
	return result, err
}

// SubmitPlay scores a player's submission against the round's just-computed
// optimum (spec §6 submit_play, §4.6.4).
func (e *Engine) SubmitPlay(id, playerID uuid.UUID, roundNumber int, word string, pos store.Position) (*store.PlayerPlay, error) {
	var result *store.PlayerPlay
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status != store.RoundActive {
			return apperr.New(apperr.PreconditionFailed, "round %d is not active", roundNumber)
		}
		player := t.FindPlayer(playerID)
		if player == nil {
			return apperr.New(apperr.NotFound, "player %s not found", playerID)
		}

		late := round.TimerStarted != nil && time.Since(*round.TimerStarted) > e.timerDuration()

		var score int
		displayWord := word
		if late {
			score = 0
			displayWord = word + " (TIEMPO EXCEDIDO)"
		} else {
			placement, perr := buildPlacement(round.BoardState, word, pos)
			if perr == nil {
				score, perr = e.gen.ScorePlacement(round.BoardState, mustParseRack(round.Rack), placement)
			}
			if perr != nil {
				score = 0
				displayWord = word + " (INVÁLIDA)"
			}
		}

		optimalScore := 0
		if round.OptimalPlay != nil {
			optimalScore = round.OptimalPlay.Score
		}
		percentage := 100.0
		if optimalScore != 0 {
			percentage = 100.0 * float64(score) / float64(optimalScore)
		}
		difference := optimalScore - score

		play := &store.PlayerPlay{
			RoundNumber:           roundNumber,
			Word:                  displayWord,
			Position:              pos,
			Score:                 score,
			PercentageOfOptimal:   percentage,
			SubmittedAt:           time.Now().UTC(),
			DifferenceFromOptimal: difference,
		}
		upsertPlay(player, play)
		result = play
		return nil
	})
	if err == nil {
		e.logPlayerAction(id, playerID, "round %d submitted %q at %s -> score %d", roundNumber, result.Word, FormatCoordinate(result.Position), result.Score)
	}
	return result, err
}

func mustParseRack(display string) []tiles.Tile {
	t, _ := tiles.ParseRack(display, false)
	return t
}

// buildPlacement turns a submitted (word, position) pair into a
// board.Placement, treating any cell already occupied on the board as an
// anchor (word[i] = 0).
func buildPlacement(b *board.Board, word string, pos store.Position) (board.Placement, error) {
	letters, err := tiles.ParseRack(word, false)
	if err != nil {
		return board.Placement{}, err
	}
	lane, idx := pos.Row, pos.Col
	if pos.Down {
		lane, idx = pos.Col, pos.Row
	}
	out := make([]tiles.Tile, len(letters))
	for i, glyph := range letters {
		row, col := pos.Row, pos.Col+i
		if pos.Down {
			row, col = pos.Row+i, pos.Col
		}
		if row < 0 || row >= board.Size || col < 0 || col >= board.Size {
			return board.Placement{}, apperr.New(apperr.InvalidPlacement, "placement extends off-board")
		}
		if !b.At(row, col).IsBlank() {
			out[i] = 0
		} else {
			out[i] = glyph
		}
	}
	return board.Placement{Down: pos.Down, Lane: int8(lane), Idx: int8(idx), Word: out}, nil
}

// upsertPlay replaces any existing play for the same round and recomputes
// the player's cumulative fields in round order (spec §4.6.4, invariant 3).
func upsertPlay(player *store.Player, play *store.PlayerPlay) {
	out := make([]*store.PlayerPlay, 0, len(player.Plays)+1)
	for _, p := range player.Plays {
		if p.RoundNumber != play.RoundNumber {
			out = append(out, p)
		}
	}
	out = append(out, play)
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })

	cumScore, cumDiff := 0, 0
	for _, p := range out {
		cumScore += p.Score
		cumDiff += p.DifferenceFromOptimal
		p.CumulativeScore = cumScore
		p.CumulativeDifference = cumDiff
	}
	player.Plays = out
	player.TotalScore = cumScore
}

// RevealOptimal sets OptimalRevealed so per-round feedback can be served
// (spec §6 reveal_optimal).
func (e *Engine) RevealOptimal(id uuid.UUID, roundNumber int) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status == store.RoundPending {
			return apperr.New(apperr.PreconditionFailed, "round %d has not started", roundNumber)
		}
		round.OptimalRevealed = true
		result = round
		return nil
	})
	if err == nil {
		word := ""
		if result.OptimalPlay != nil {
			word = result.OptimalPlay.Word
		}
		e.logEvent(id, "round %d optimal revealed: %s", result.Number, word)
	}
	return result, err
}

// PlaceOptimal checks that the optimal play applies to the round's board,
// records it as the master play and completes the round (spec §6
// place_optimal, §4.6.6); the next round's board is derived from it by
// currentBoard. Idempotent if already Completed.
func (e *Engine) PlaceOptimal(id uuid.UUID, roundNumber int) (*store.Round, error) {
	var result *store.Round
	err := e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if round.Status == store.RoundCompleted {
			result = round
			return nil
		}
		if round.OptimalPlay == nil {
			return apperr.New(apperr.PreconditionFailed, "round %d has no master play yet", roundNumber)
		}
		probe := round.BoardState.Clone()
		if err := probe.ApplyPlacement(round.OptimalPlay.Placement); err != nil {
			return err
		}

		prevCumulative := 0
		if len(t.MasterPlays) > 0 {
			prevCumulative = t.MasterPlays[len(t.MasterPlays)-1].CumulativeScore
		}
		mp := &store.MasterPlay{
			RoundNumber:     roundNumber,
			Word:            round.OptimalPlay.Word,
			Position:        round.OptimalPlay.Position,
			Score:           round.OptimalPlay.Score,
			CumulativeScore: prevCumulative + round.OptimalPlay.Score,
		}
		t.MasterPlays = append(t.MasterPlays, mp)
		round.Status = store.RoundCompleted
		checkGameEnd(t, bg)
		result = round
		return nil
	})
	return result, err
}

// checkGameEnd implements spec §4.6's game-end detection: the tournament
// finishes once every vowel, or every consonant, of the canonical
// distribution has been placed on some board.
func checkGameEnd(t *store.Tournament, bg *bag.Bag) {
	totalVowels, totalConsonants := 0, 0
	for _, letter := range tiles.AllLetters() {
		tl, _ := tiles.FromLetter(letter)
		n := tiles.FrequencyOf(letter)
		if tl.IsVowel() {
			totalVowels += n
		} else {
			totalConsonants += n
		}
	}

	elsewhereVowels, elsewhereConsonants := 0, 0
	for letter, n := range bg.Census() {
		if letter == "" {
			continue
		}
		tl, ok := tiles.FromLetter(letter)
		if !ok {
			continue
		}
		if tl.IsVowel() {
			elsewhereVowels += n
		} else {
			elsewhereConsonants += n
		}
	}
	if last := t.LastRound(); last != nil {
		// A completed round's rack is on the board except for its residue.
		var rackTiles []tiles.Tile
		var err error
		if last.Status == store.RoundCompleted {
			rackTiles, err = residueOf(last)
		} else {
			rackTiles, err = tiles.ParseRack(last.Rack, false)
		}
		if err == nil {
			for _, rt := range rackTiles {
				if rt.IsBlank() {
					continue
				}
				if rt.IsVowel() {
					elsewhereVowels++
				} else if rt.IsConsonant() {
					elsewhereConsonants++
				}
			}
		}
	}

	onBoardVowels := totalVowels - elsewhereVowels
	onBoardConsonants := totalConsonants - elsewhereConsonants
	if onBoardVowels >= totalVowels || onBoardConsonants >= totalConsonants {
		t.Status = store.StatusFinished
	}
}

// UndoLastRound reverses the last round if it is Completed (spec §6
// undo_last_round, §4.6.7): pops the master play and round, returns the
// round's rack tiles to the bag so the 100-tile census is restored, and
// strips any player submissions for that round.
func (e *Engine) UndoLastRound(id uuid.UUID) error {
	return e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		last := t.LastRound()
		if last == nil || last.Status != store.RoundCompleted {
			return apperr.New(apperr.PreconditionFailed, "last round is not completed")
		}
		rackTiles, err := tiles.ParseRack(last.Rack, false)
		if err != nil {
			return err
		}
		bg.Return(rackTiles)
		bg.Shuffle(e.rng)

		t.Rounds = t.Rounds[:len(t.Rounds)-1]
		if len(t.MasterPlays) > 0 {
			t.MasterPlays = t.MasterPlays[:len(t.MasterPlays)-1]
		}
		for _, p := range t.Players {
			var kept []*store.PlayerPlay
			for _, play := range p.Plays {
				if play.RoundNumber != last.Number {
					kept = append(kept, play)
				}
			}
			cum, cumDiff := 0, 0
			for _, play := range kept {
				cum += play.Score
				cumDiff += play.DifferenceFromOptimal
				play.CumulativeScore = cum
				play.CumulativeDifference = cumDiff
			}
			p.Plays = kept
			p.TotalScore = cum
		}
		if t.Status == store.StatusFinished {
			t.Status = store.StatusInProgress
		}
		return nil
	})
}

// FinishTournament marks the tournament Finished manually (spec §6
// finish_tournament), allowed once at least one round is Completed.
func (e *Engine) FinishTournament(id uuid.UUID) error {
	return e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		hasCompleted := false
		for _, r := range t.Rounds {
			if r.Status == store.RoundCompleted {
				hasCompleted = true
				break
			}
		}
		if !hasCompleted {
			return apperr.New(apperr.PreconditionFailed, "no completed rounds yet")
		}
		t.Status = store.StatusFinished
		return nil
	})
}

// Leaderboard sorts players by total score descending, ties stable by
// insertion order (spec §4.6 "Leaderboard").
func (e *Engine) Leaderboard(id uuid.UUID) ([]*store.Player, error) {
	var out []*store.Player
	err := e.store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		out = append(out, t.Players...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
		return nil
	})
	return out, err
}

// GetPersistenceMode reports a tournament's current C8 persistence mode
// (spec §6 get_persistence_mode).
func (e *Engine) GetPersistenceMode(id uuid.UUID) (store.PersistenceMode, error) {
	var mode store.PersistenceMode
	err := e.store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		mode = t.PersistenceMode
		return nil
	})
	return mode, err
}

// SetPersistenceMode switches a tournament between LocalOnly, CloudOnly,
// DualLocalFirst, and DualCloudFirst (spec §4.8, §6 set_persistence_mode,
// §5 "persistence mode change" mutating operation).
func (e *Engine) SetPersistenceMode(id uuid.UUID, mode store.PersistenceMode) error {
	switch mode {
	case store.LocalOnly, store.CloudOnly, store.DualLocalFirst, store.DualCloudFirst:
	default:
		return apperr.New(apperr.PreconditionFailed, "unknown persistence mode %q", mode)
	}
	return e.mutate(id, func(t *store.Tournament, bg *bag.Bag) error {
		t.PersistenceMode = mode
		return nil
	})
}

// BagTile is one census entry: a letter face and whether it has been drawn.
type BagTile struct {
	Letter string `json:"letter"`
	Used   bool   `json:"used"`
}

// GetBagTiles lists every tile of the canonical distribution with its
// used/unused status (spec §6 get_bag_tiles).
func (e *Engine) GetBagTiles(id uuid.UUID) ([]BagTile, error) {
	var out []BagTile
	err := e.store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		remaining := bg.Census()
		for _, letter := range tiles.AllLetters() {
			total := tiles.FrequencyOf(letter)
			left := remaining[letter]
			for i := 0; i < total; i++ {
				out = append(out, BagTile{Letter: letter, Used: i >= left})
			}
		}
		blanksLeft := remaining[""]
		for i := 0; i < 2; i++ {
			out = append(out, BagTile{Letter: "?", Used: i >= blanksLeft})
		}
		return nil
	})
	return out, err
}

// rowLetters maps a board row to the letter used in coordinate formatting
// (spec §4.6: horizontal "LetterRow+ColNumber" e.g. H8, vertical
// "ColNumber+LetterRow" e.g. 8H).
const rowLetters = "ABCDEFGHIJKLMNO"

// FormatCoordinate renders a Position in the spec's display convention.
func FormatCoordinate(p store.Position) string {
	rowLetter := string(rowLetters[p.Row])
	col := p.Col + 1
	if p.Down {
		return fmt.Sprintf("%d%s", col, rowLetter)
	}
	return fmt.Sprintf("%s%d", rowLetter, col)
}

// RoundFeedback is one row of per-round player-vs-master comparison, served
// only once a round's optimal has been revealed (spec §4.6.5/§6 get_feedback,
// get_player_log).
type RoundFeedback struct {
	RoundNumber           int     `json:"round_number"`
	Rack                  string  `json:"rack"`
	PlayerWord            string  `json:"player_word"`
	PlayerCoordinate      string  `json:"player_coordinate"`
	PlayerScore           int     `json:"player_score"`
	PlayerCumulativeScore int     `json:"player_cumulative_score"`
	PercentageOfOptimal   float64 `json:"percentage_of_optimal"`
	CumulativePercentage  float64 `json:"cumulative_percentage"`
	DifferenceFromOptimal int     `json:"difference_from_optimal"`
	CumulativeDifference  int     `json:"cumulative_difference"`
	MasterWord            string  `json:"master_word"`
	MasterCoordinate      string  `json:"master_coordinate"`
	MasterScore           int     `json:"master_score"`
	MasterCumulativeScore int     `json:"master_cumulative_score"`
}

// feedbackRow builds one RoundFeedback for a (round, player) pair; play may
// be nil if the player never submitted for this round.
func feedbackRow(round *store.Round, play *store.PlayerPlay) RoundFeedback {
	row := RoundFeedback{
		RoundNumber: round.Number,
		Rack:        round.Rack,
	}
	if round.OptimalPlay != nil {
		row.MasterWord = round.OptimalPlay.Word
		row.MasterCoordinate = FormatCoordinate(round.OptimalPlay.Position)
		row.MasterScore = round.OptimalPlay.Score
	}
	if play != nil {
		row.PlayerWord = play.Word
		row.PlayerCoordinate = FormatCoordinate(play.Position)
		row.PlayerScore = play.Score
		row.PlayerCumulativeScore = play.CumulativeScore
		row.PercentageOfOptimal = play.PercentageOfOptimal
		row.DifferenceFromOptimal = play.DifferenceFromOptimal
		row.CumulativeDifference = play.CumulativeDifference
	}
	return row
}

// GetFeedback returns one round's player-vs-master comparison (spec §6
// get_feedback), only once that round's optimal has been revealed.
func (e *Engine) GetFeedback(id, playerID uuid.UUID, roundNumber int) (*RoundFeedback, error) {
	var result *RoundFeedback
	err := e.store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		round := t.FindRound(roundNumber)
		if round == nil {
			return apperr.New(apperr.NotFound, "round %d not found", roundNumber)
		}
		if !round.OptimalRevealed {
			return apperr.New(apperr.PreconditionFailed, "round %d optimal has not been revealed", roundNumber)
		}
		player := t.FindPlayer(playerID)
		if player == nil {
			return apperr.New(apperr.NotFound, "player %s not found", playerID)
		}
		var play *store.PlayerPlay
		for _, p := range player.Plays {
			if p.RoundNumber == roundNumber {
				play = p
				break
			}
		}
		row := feedbackRow(round, play)
		masterCum := 0
		for _, mp := range t.MasterPlays {
			if mp.RoundNumber == roundNumber {
				masterCum = mp.CumulativeScore
				break
			}
		}
		row.MasterCumulativeScore = masterCum
		if masterCum == 0 {
			row.CumulativePercentage = 100
		} else {
			row.CumulativePercentage = 100.0 * float64(row.PlayerCumulativeScore) / float64(masterCum)
		}
		result = &row
		return nil
	})
	return result, err
}

// PlayerLog returns every revealed round a player submitted for, in round
// order (spec §6 get_player_log).
func (e *Engine) PlayerLog(id, playerID uuid.UUID) ([]RoundFeedback, error) {
	var out []RoundFeedback
	err := e.store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		player := t.FindPlayer(playerID)
		if player == nil {
			return apperr.New(apperr.NotFound, "player %s not found", playerID)
		}
		playByRound := make(map[int]*store.PlayerPlay, len(player.Plays))
		for _, p := range player.Plays {
			playByRound[p.RoundNumber] = p
		}
		masterCumByRound := make(map[int]int, len(t.MasterPlays))
		for _, mp := range t.MasterPlays {
			masterCumByRound[mp.RoundNumber] = mp.CumulativeScore
		}
		for _, round := range t.Rounds {
			if !round.OptimalRevealed {
				continue
			}
			play, ok := playByRound[round.Number]
			if !ok {
				continue
			}
			row := feedbackRow(round, play)
			masterCum := masterCumByRound[round.Number]
			row.MasterCumulativeScore = masterCum
			if masterCum == 0 {
				row.CumulativePercentage = 100
			} else {
				row.CumulativePercentage = 100.0 * float64(row.PlayerCumulativeScore) / float64(masterCum)
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}
