// Package store implements the Tournament Store (spec C7): the in-memory
// authoritative map of tournaments, guarded by a single read/write lock so
// mutating operations are totally ordered and reads never observe a partial
// write (spec §5).
package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/board"
)

// TournamentStatus is the lifecycle state of a Tournament.
type TournamentStatus string

const (
	StatusCreated    TournamentStatus = "Created"
	StatusInProgress TournamentStatus = "InProgress"
	StatusFinished   TournamentStatus = "Finished"
)

// RoundStatus is the lifecycle state of a Round.
type RoundStatus string

const (
	RoundPending   RoundStatus = "Pending"
	RoundActive    RoundStatus = "Active"
	RoundCompleted RoundStatus = "Completed"
)

// Position is a board coordinate plus direction, bit-preserved on the wire
// per spec §6.
type Position struct {
	Row  int  `json:"row"`
	Col  int  `json:"col"`
	Down bool `json:"down"`
}

// OptimalPlay is the computed best placement for a round, stored before it
// is revealed or placed.
type OptimalPlay struct {
	Word      string           `json:"word"`
	Position  Position         `json:"position"`
	Score     int              `json:"score"`
	Placement board.Placement  `json:"placement"`
}

// PlayerPlay is one player's submission for a round (spec §3). At most one
// per (player, round); a resubmission replaces it (upsert).
type PlayerPlay struct {
	RoundNumber            int       `json:"round_number"`
	Word                   string    `json:"word"`
	Position               Position  `json:"position"`
	Score                  int       `json:"score"`
	PercentageOfOptimal    float64   `json:"percentage_of_optimal"`
	SubmittedAt            time.Time `json:"submitted_at"`
	CumulativeScore        int       `json:"cumulative_score"`
	DifferenceFromOptimal  int       `json:"difference_from_optimal"`
	CumulativeDifference   int       `json:"cumulative_difference"`
}

// MasterPlay is the optimal play actually placed on the board for a round,
// mirrored for quick cumulative reporting.
type MasterPlay struct {
	RoundNumber     int      `json:"round_number"`
	Word            string   `json:"word"`
	Position        Position `json:"position"`
	Score           int      `json:"score"`
	CumulativeScore int      `json:"cumulative_score"`
}

// Round is one round of play.
type Round struct {
	Number          int          `json:"number"`
	Rack            string       `json:"rack"`
	BoardState      *board.Board `json:"board_state"`
	OptimalPlay     *OptimalPlay `json:"optimal_play"`
	OptimalRevealed bool         `json:"optimal_revealed"`
	Status          RoundStatus  `json:"status"`
	RackRejected    bool         `json:"rack_rejected"`
	RejectionReason *string      `json:"rejection_reason"`
	TimerStarted    *time.Time   `json:"timer_started"`
}

// Player is a tournament participant.
type Player struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	TotalScore  int           `json:"total_score"`
	Plays       []*PlayerPlay `json:"plays"`
	HardwareID  string        `json:"hardware_id,omitempty"`
}

// PlayerSession records one enrollment's connection details, kept alongside
// the tournament snapshot so a restarted server can still answer "who
// connected, from where, and when" (original_source/persistence.rs's
// PlayerSession; not required by spec.md's distillation, added per
// SUPPLEMENTED FEATURES).
type PlayerSession struct {
	PlayerID   uuid.UUID `json:"player_id"`
	HardwareID string    `json:"hardware_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// PersistenceMode controls how a tournament's mutations reach the local
// snapshot and the cloud mirror (spec §4.8, §6
// get_persistence_mode/set_persistence_mode, §7 PersistenceError).
type PersistenceMode string

const (
	// LocalOnly skips the cloud mirror entirely; used when the admin has
	// disabled cloud sync or the cloud has been unreachable.
	LocalOnly PersistenceMode = "LocalOnly"
	// CloudOnly mirrors to the cloud and skips the local snapshot. Falls
	// back to LocalOnly for the duration of the cloud outage whenever the
	// cloud-availability flag is false (spec §4.8).
	CloudOnly PersistenceMode = "CloudOnly"
	// DualLocalFirst writes the local snapshot synchronously, then enqueues
	// the cloud mirror write. The default mode.
	DualLocalFirst PersistenceMode = "DualLocalFirst"
	// DualCloudFirst enqueues the cloud mirror write before writing the
	// local snapshot.
	DualCloudFirst PersistenceMode = "DualCloudFirst"
)

// Tournament is the top-level aggregate owned by the Store.
type Tournament struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	CreatedAt       time.Time        `json:"created_at"`
	Status          TournamentStatus `json:"status"`
	Rounds          []*Round         `json:"rounds"`
	Players         []*Player        `json:"players"`
	MasterPlays     []*MasterPlay    `json:"master_plays"`
	PlayerSessions  []*PlayerSession `json:"player_sessions"`
	PersistenceMode PersistenceMode  `json:"persistence_mode"`
}

// FindSession returns a player's session record by player id, or nil.
func (t *Tournament) FindSession(playerID uuid.UUID) *PlayerSession {
	for _, s := range t.PlayerSessions {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// Touch updates an existing session's last-seen timestamp (and its IP and
// user-agent when given), or appends a new session if the player has none
// yet, as at enrollment. Sessions are looked up by player id only.
func (t *Tournament) Touch(playerID uuid.UUID, ip, userAgent string, at time.Time) {
	if s := t.FindSession(playerID); s != nil {
		s.LastSeenAt = at
		if ip != "" {
			s.IP = ip
		}
		if userAgent != "" {
			s.UserAgent = userAgent
		}
		return
	}
	t.PlayerSessions = append(t.PlayerSessions, &PlayerSession{
		PlayerID:   playerID,
		IP:         ip,
		UserAgent:  userAgent,
		EnrolledAt: at,
		LastSeenAt: at,
	})
}

// TilesRemaining reports the bag's current size; derived, not stored
// directly on the Tournament (spec §3: "tiles_remaining (derived from bag
// size)").
func (t *Tournament) TilesRemaining(bg *bag.Bag) int { return bg.Count() }

// FindPlayer returns a player by id, or nil.
func (t *Tournament) FindPlayer(id uuid.UUID) *Player {
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// LastRound returns the most recently appended round, or nil.
func (t *Tournament) LastRound() *Round {
	if len(t.Rounds) == 0 {
		return nil
	}
	return t.Rounds[len(t.Rounds)-1]
}

// FindRound returns a round by number, or nil.
func (t *Tournament) FindRound(number int) *Round {
	for _, r := range t.Rounds {
		if r.Number == number {
			return r
		}
	}
	return nil
}

// Clone performs a deep copy via JSON round-trip, used to take a
// persistence snapshot under the store's exclusive lock and serialise it
// afterwards without holding the lock (spec §5).
func (t *Tournament) Clone() (*Tournament, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	out := &Tournament{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// entry bundles a Tournament with its co-owned Bag: the two are created and
// destroyed together and neither holds a back-pointer to the other (spec
// §9: "Bag <-> Tournament are co-owned by the store; neither points back").
type entry struct {
	tournament *Tournament
	bagSt      *bag.Bag
}

// Store is the single-writer, rwlock-guarded map of tournaments.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[uuid.UUID]*entry)}
}

// Create builds a new Tournament with a fresh canonical bag and registers
// it, returning the tournament's id.
func (s *Store) Create(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.entries[id] = &entry{
		tournament: &Tournament{
			ID:              id,
			Name:            name,
			CreatedAt:       time.Now().UTC(),
			Status:          StatusCreated,
			PersistenceMode: DualLocalFirst,
		},
		bagSt: bag.NewSpanish(),
	}
	return id
}

// View runs fn while holding the shared (read) lock, giving it read-only
// access to the tournament and its bag. Use for leaderboard, get-tournament,
// feedback-style operations (spec §4.7).
func (s *Store) View(id uuid.UUID, fn func(t *Tournament, bg *bag.Bag) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return apperr.New(apperr.NotFound, "tournament %s not found", id)
	}
	return fn(e.tournament, e.bagSt)
}

// Update runs fn while holding the exclusive (write) lock, giving it
// mutating access to the tournament and its bag. Every C6 transition goes
// through Update so two mutations are always totally ordered (spec §5).
func (s *Store) Update(id uuid.UUID, fn func(t *Tournament, bg *bag.Bag) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return apperr.New(apperr.NotFound, "tournament %s not found", id)
	}
	return fn(e.tournament, e.bagSt)
}

// List returns every tournament id currently known to the store.
func (s *Store) List() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}

// Restore installs a tournament and bag loaded from persistence (used on
// startup to rehydrate the store from a snapshot), bypassing Create's
// fresh-bag initialisation.
func (s *Store) Restore(t *Tournament, bg *bag.Bag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[t.ID] = &entry{tournament: t, bagSt: bg}
}
