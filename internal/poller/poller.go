// Package poller implements the Cloud Submission Poller (spec C9): a
// fixed-cadence sweep of a Postgres "pending submission" table for plays
// that arrived through a channel other than the in-process API (e.g. a
// remote client writing directly to the cloud store), applying each one
// through the Round Engine exactly once. Grounded on supabase_poller.rs in
// original_source/, adapted from sqlx to pgx/v5 to match the rest of this
// module's Postgres access (db.go).
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dupliscrabble/internal/store"
)

// DefaultInterval is the poll cadence used unless overridden (spec §4.9).
const DefaultInterval = 500 * time.Millisecond

// PendingSubmission is one row of the cloud-side pending_submissions table,
// written by a remote client and picked up by the poller.
type PendingSubmission struct {
	ID           uuid.UUID
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
	RoundNumber  int
	Word         string
	Position     store.Position
}

// Applier submits one pending play through the Round Engine (typically
// engine.Engine.SubmitPlay, adapted to this signature by the caller).
type Applier func(tournamentID, playerID uuid.UUID, roundNumber int, word string, pos store.Position) error

// Poller periodically drains pending_submissions and applies each one.
type Poller struct {
	pool     *pgxpool.Pool
	apply    Applier
	interval time.Duration
	log      zerolog.Logger
}

// New builds a Poller against an existing pool (shared with the cloud
// mirror, or a dedicated read-oriented pool) and ensures its table exists.
func New(ctx context.Context, pool *pgxpool.Pool, apply Applier, interval time.Duration, log zerolog.Logger) (*Poller, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pending_submissions (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tournament_id  UUID NOT NULL,
			player_id      UUID NOT NULL,
			round_number   INT NOT NULL,
			word           TEXT NOT NULL,
			position       JSONB NOT NULL,
			processed_at   TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_pending_submissions_unprocessed
			ON pending_submissions (created_at) WHERE processed_at IS NULL;
	`); err != nil {
		return nil, fmt.Errorf("migrate pending_submissions table: %w", err)
	}
	return &Poller{pool: pool, apply: apply, interval: interval, log: log.With().Str("component", "poller").Logger()}, nil
}

// Run polls on a fixed cadence until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.sweep(ctx); err != nil {
				p.log.Error().Err(err).Msg("poll sweep failed")
			}
		}
	}
}

// sweep claims every unprocessed row and applies it, marking each processed
// (even on apply failure, to avoid an infinite retry loop against a
// submission the engine will never accept — spec §4.9: "a submission that
// cannot be applied is logged and marked processed, not retried forever").
func (p *Poller) sweep(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, tournament_id, player_id, round_number, word, position
		FROM pending_submissions
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT 100
	`)
	if err != nil {
		return fmt.Errorf("query pending submissions: %w", err)
	}
	var batch []PendingSubmission
	for rows.Next() {
		var s PendingSubmission
		var posJSON []byte
		if err := rows.Scan(&s.ID, &s.TournamentID, &s.PlayerID, &s.RoundNumber, &s.Word, &posJSON); err != nil {
			rows.Close()
			return fmt.Errorf("scan pending submission: %w", err)
		}
		if err := json.Unmarshal(posJSON, &s.Position); err != nil {
			rows.Close()
			return fmt.Errorf("decode submission position: %w", err)
		}
		batch = append(batch, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pending submissions: %w", err)
	}

	for _, s := range batch {
		if err := p.apply(s.TournamentID, s.PlayerID, s.RoundNumber, s.Word, s.Position); err != nil {
			p.log.Warn().Err(err).Str("submission_id", s.ID.String()).Msg("pending submission could not be applied")
		}
		if _, err := p.pool.Exec(ctx, `UPDATE pending_submissions SET processed_at = NOW() WHERE id = $1`, s.ID); err != nil {
			p.log.Error().Err(err).Str("submission_id", s.ID.String()).Msg("failed to mark submission processed")
		}
	}
	return nil
}
