package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/store"
)

// consecutiveFailuresToMarkUnavailable is how many writePlayWithRetry
// exhaustions in a row flip the cloud-availability flag to false (spec
// §4.8: "a cloud-availability flag flips to false on repeated failures").
const consecutiveFailuresToMarkUnavailable = 3

// cloudJob is one tournament mutation to mirror. The worker fans it out
// into one write per player submission (PlayData), since that is the unit
// the cloud mirror and the unsynced cache operate on (spec §4.8).
type cloudJob struct {
	tournament *store.Tournament
	bagSt      *bag.Bag
}

// playDataFrom extracts every player submission currently on the
// tournament into the wire/cache unit the cloud mirror ships.
func playDataFrom(t *store.Tournament) []PlayData {
	out := make([]PlayData, 0, len(t.Players))
	for _, p := range t.Players {
		for _, play := range p.Plays {
			out = append(out, PlayData{
				TournamentID: t.ID,
				PlayerID:     p.ID,
				RoundNumber:  play.RoundNumber,
				Word:         play.Word,
				Position:     play.Position,
				Score:        play.Score,
				SubmittedAt:  play.SubmittedAt,
			})
		}
	}
	return out
}

// CloudMirror asynchronously mirrors player submissions to a Postgres
// table via a single long-lived worker goroutine draining a bounded
// channel, retrying failed writes with exponential backoff (spec
// §4.8/C8, grounded on async_queue.rs). A write that exhausts its retries
// is handed to the UnsyncedCache rather than retried automatically (spec
// §9 design note 3).
type CloudMirror struct {
	pool    *pgxpool.Pool
	queue   chan cloudJob
	cache   *UnsyncedCache
	log     zerolog.Logger
	retries int
	done    chan struct{}

	availMu             sync.Mutex
	available           bool
	consecutiveFailures int
}

// NewCloudMirror connects to Postgres, migrates the mirror table, and
// starts the background worker. queueSize bounds the async channel (spec
// §4.8: "cloud writes never block the Round Engine").
func NewCloudMirror(ctx context.Context, connStr string, queueSize, retries int, cache *UnsyncedCache, log zerolog.Logger) (*CloudMirror, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to cloud mirror database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping cloud mirror database: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS play_mirror (
			tournament_id UUID NOT NULL,
			player_id     UUID NOT NULL,
			round_number  INT NOT NULL,
			payload       JSONB NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tournament_id, player_id, round_number)
		);
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate cloud mirror table: %w", err)
	}

	m := &CloudMirror{
		pool:      pool,
		queue:     make(chan cloudJob, queueSize),
		cache:     cache,
		log:       log.With().Str("component", "cloud_mirror").Logger(),
		retries:   retries,
		done:      make(chan struct{}),
		available: true,
	}
	go m.run(ctx)
	return m, nil
}

// Persist implements engine.Persister: it enqueues the tournament's current
// plays without blocking. If the queue is full, the plays are cached
// directly as unsynced (spec §4.8: "a saturated queue degrades to the
// cache rather than stalling the caller").
func (m *CloudMirror) Persist(t *store.Tournament, bg *bag.Bag) {
	job := cloudJob{tournament: t, bagSt: bg}
	select {
	case m.queue <- job:
	default:
		m.log.Warn().Str("tournament_id", t.ID.String()).Msg("cloud mirror queue full, deferring to unsynced cache")
		for _, pd := range playDataFrom(t) {
			if err := m.cache.Store(pd); err != nil {
				m.log.Error().Err(err).Msg("unsynced cache full, dropping play record")
			}
		}
	}
}

// Pool exposes the underlying connection pool so collaborators that share
// the same database (the poller) don't need to open a second one.
func (m *CloudMirror) Pool() *pgxpool.Pool { return m.pool }

// Available reports the cloud-availability flag: false once repeated
// writes have failed in a row, true again after the next successful write.
// CloudOnly mode falls back to LocalOnly while this is false (spec §4.8).
func (m *CloudMirror) Available() bool {
	m.availMu.Lock()
	defer m.availMu.Unlock()
	return m.available
}

func (m *CloudMirror) recordSuccess() {
	m.availMu.Lock()
	defer m.availMu.Unlock()
	m.consecutiveFailures = 0
	if !m.available {
		m.log.Info().Msg("cloud mirror reachable again, resuming cloud writes")
	}
	m.available = true
}

func (m *CloudMirror) recordFailure() {
	m.availMu.Lock()
	defer m.availMu.Unlock()
	m.consecutiveFailures++
	if m.consecutiveFailures >= consecutiveFailuresToMarkUnavailable && m.available {
		m.available = false
		m.log.Warn().Int("consecutive_failures", m.consecutiveFailures).Msg("cloud mirror marked unavailable, CloudOnly tournaments fall back to LocalOnly")
	}
}

// Close stops accepting new jobs and waits for the worker to drain.
func (m *CloudMirror) Close() {
	close(m.queue)
	<-m.done
	m.pool.Close()
}

func (m *CloudMirror) run(ctx context.Context) {
	defer close(m.done)
	for job := range m.queue {
		for _, pd := range playDataFrom(job.tournament) {
			if err := m.writePlayWithRetry(ctx, pd); err != nil {
				m.log.Error().Err(err).Str("tournament_id", pd.TournamentID.String()).Int("round", pd.RoundNumber).Msg("cloud mirror write exhausted retries, caching locally for manual sync")
				if cacheErr := m.cache.Store(pd); cacheErr != nil {
					m.log.Error().Err(cacheErr).Msg("unsynced cache full, dropping play record")
				}
			}
		}
	}
}

// writePlayWithRetry attempts the upsert of a single play, backing off
// exponentially between attempts (grounded on async_queue.rs's retry
// loop).
func (m *CloudMirror) writePlayWithRetry(ctx context.Context, pd PlayData) error {
	payload, err := json.Marshal(pd)
	if err != nil {
		return fmt.Errorf("marshal cloud mirror payload: %w", err)
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= m.retries; attempt++ {
		_, err := m.pool.Exec(ctx, `
			INSERT INTO play_mirror (tournament_id, player_id, round_number, payload, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (tournament_id, player_id, round_number) DO UPDATE SET payload = $4, updated_at = NOW()
		`, pd.TournamentID, pd.PlayerID, pd.RoundNumber, payload)
		if err == nil {
			m.recordSuccess()
			return nil
		}
		lastErr = err
		if attempt < m.retries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}
	m.recordFailure()
	return fmt.Errorf("upsert play mirror row after %d attempts: %w", m.retries+1, lastErr)
}

// SyncCacheToDatabase flushes every unsynced play the UnsyncedCache is
// holding to Postgres; it does not retry internally beyond writePlayWithRetry's
// own backoff (the manual sync_cache_to_database operation is deliberately
// the only retry path, spec §9 design note 3). Entries that still fail
// remain cached and unsynced; confirmed entries are marked synced and then
// cleared to reclaim cache space.
func (m *CloudMirror) SyncCacheToDatabase(ctx context.Context) (synced, failed int) {
	for _, pd := range m.cache.ListUnsynced() {
		if err := m.writePlayWithRetry(ctx, pd); err != nil {
			m.log.Warn().Err(err).Str("tournament_id", pd.TournamentID.String()).Int("round", pd.RoundNumber).Msg("manual cache sync failed, leaving cached")
			failed++
			continue
		}
		m.cache.MarkSynced(pd.TournamentID, pd.PlayerID, pd.RoundNumber)
		synced++
	}
	m.cache.ClearSynced()
	return synced, failed
}
