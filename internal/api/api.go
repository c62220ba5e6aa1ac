// Package api is the thin command-dispatch surface (spec C10): one method
// per admin/player operation in spec §6, translating between the engine's
// Go types and plain request/response structs a transport of the caller's
// choosing (HTTP, CLI, RPC) can serialise. It is deliberately
// transport-agnostic — no net/http handlers live here, since spec places
// the wire transport itself out of scope (§ Non-goals).
package api

import (
	"context"

	"github.com/google/uuid"

	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/engine"
	"dupliscrabble/internal/persistence"
	"dupliscrabble/internal/store"
)

// API wires together the Round Engine, the Store, and persistence's
// listing/sync operations into one call surface.
type API struct {
	Engine *engine.Engine
	Store  *store.Store
	Local  *persistence.LocalSnapshotter
	Cloud  *persistence.CloudMirror // nil when running local-only
}

// New builds an API over the given collaborators.
func New(e *engine.Engine, st *store.Store, local *persistence.LocalSnapshotter, cloud *persistence.CloudMirror) *API {
	return &API{Engine: e, Store: st, Local: local, Cloud: cloud}
}

// CreateTournamentRequest/Response ------------------------------------------------

type CreateTournamentRequest struct {
	Name        string   `json:"name"`
	PlayerNames []string `json:"player_names,omitempty"`
}

type CreateTournamentResponse struct {
	ID      uuid.UUID       `json:"id"`
	Players []*store.Player `json:"players,omitempty"`
}

// CreateTournament creates the tournament and, per spec §6's
// create_tournament ("name, player names"), immediately enrolls any
// initial roster supplied alongside it.
func (a *API) CreateTournament(req CreateTournamentRequest) (CreateTournamentResponse, error) {
	id := a.Store.Create(req.Name)
	resp := CreateTournamentResponse{ID: id}
	for _, name := range req.PlayerNames {
		player, err := a.Engine.EnrollPlayer(id, name, "")
		if err != nil {
			return resp, err
		}
		resp.Players = append(resp.Players, player)
	}
	return resp, nil
}

// EnrollPlayer ----------------------------------------------------------------

type EnrollPlayerRequest struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	Name         string    `json:"name"`
	HardwareID   string    `json:"hardware_id"`
}

func (a *API) EnrollPlayer(req EnrollPlayerRequest) (*store.Player, error) {
	return a.Engine.EnrollPlayer(req.TournamentID, req.Name, req.HardwareID)
}

// RecordPlayerActivityRequest lets a transport layer report the connection
// details (IP, user agent) it observed for an already-enrolled player.
type RecordPlayerActivityRequest struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

func (a *API) RecordPlayerActivity(req RecordPlayerActivityRequest) error {
	return a.Engine.RecordPlayerActivity(req.TournamentID, req.PlayerID, req.IP, req.UserAgent)
}

// GetTournament -----------------------------------------------------------------

func (a *API) GetTournament(id uuid.UUID) (*store.Tournament, error) {
	var out *store.Tournament
	err := a.Store.View(id, func(t *store.Tournament, bg *bag.Bag) error {
		clone, err := t.Clone()
		out = clone
		return err
	})
	return out, err
}

// ListTournaments returns every tournament id currently held in memory
// (spec §6 list_tournaments).
func (a *API) ListTournaments() []uuid.UUID {
	return a.Store.List()
}

// StartRound / StartRoundManual ----------------------------------------------

func (a *API) StartRound(id uuid.UUID) (*store.Round, error) { return a.Engine.StartRound(id) }

func (a *API) StartRoundManual(id uuid.UUID, rack string) (*store.Round, error) {
	return a.Engine.StartRoundManual(id, rack)
}

func (a *API) UpdateRoundRack(id uuid.UUID, roundNumber int, rack string) (*store.Round, error) {
	return a.Engine.UpdateRoundRack(id, roundNumber, rack)
}

func (a *API) StartTimer(id uuid.UUID, roundNumber int) (*store.Round, error) {
	return a.Engine.StartTimer(id, roundNumber)
}

func (a *API) RejectRack(id uuid.UUID, roundNumber int) (*store.Round, error) {
	return a.Engine.RejectRack(id, roundNumber)
}

// SubmitPlayRequest bundles a player's submission (spec §6 submit_play).
type SubmitPlayRequest struct {
	TournamentID uuid.UUID      `json:"tournament_id"`
	PlayerID     uuid.UUID      `json:"player_id"`
	RoundNumber  int            `json:"round_number"`
	Word         string         `json:"word"`
	Position     store.Position `json:"position"`
}

func (a *API) SubmitPlay(req SubmitPlayRequest) (*store.PlayerPlay, error) {
	return a.Engine.SubmitPlay(req.TournamentID, req.PlayerID, req.RoundNumber, req.Word, req.Position)
}

func (a *API) RevealOptimal(id uuid.UUID, roundNumber int) (*store.Round, error) {
	return a.Engine.RevealOptimal(id, roundNumber)
}

func (a *API) PlaceOptimal(id uuid.UUID, roundNumber int) (*store.Round, error) {
	return a.Engine.PlaceOptimal(id, roundNumber)
}

func (a *API) UndoLastRound(id uuid.UUID) error { return a.Engine.UndoLastRound(id) }

func (a *API) FinishTournament(id uuid.UUID) error { return a.Engine.FinishTournament(id) }

func (a *API) Leaderboard(id uuid.UUID) ([]*store.Player, error) { return a.Engine.Leaderboard(id) }

func (a *API) GetBagTiles(id uuid.UUID) ([]engine.BagTile, error) { return a.Engine.GetBagTiles(id) }

func (a *API) GetFeedback(id, playerID uuid.UUID, roundNumber int) (*engine.RoundFeedback, error) {
	return a.Engine.GetFeedback(id, playerID, roundNumber)
}

func (a *API) PlayerLog(id, playerID uuid.UUID) ([]engine.RoundFeedback, error) {
	return a.Engine.PlayerLog(id, playerID)
}

// SyncCacheToDatabaseResponse reports the outcome of a manual cloud resync
// (spec §9 design note 3: deliberately the only retry path for dropped
// writes).
type SyncCacheToDatabaseResponse struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// GetPersistenceMode / SetPersistenceMode ------------------------------------

func (a *API) GetPersistenceMode(id uuid.UUID) (store.PersistenceMode, error) {
	return a.Engine.GetPersistenceMode(id)
}

func (a *API) SetPersistenceMode(id uuid.UUID, mode store.PersistenceMode) error {
	return a.Engine.SetPersistenceMode(id, mode)
}

func (a *API) SyncCacheToDatabase(ctx context.Context) SyncCacheToDatabaseResponse {
	if a.Cloud == nil {
		return SyncCacheToDatabaseResponse{}
	}
	synced, failed := a.Cloud.SyncCacheToDatabase(ctx)
	return SyncCacheToDatabaseResponse{Synced: synced, Failed: failed}
}
