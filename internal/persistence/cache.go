package persistence

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dupliscrabble/internal/apperr"
	"dupliscrabble/internal/store"
)

// PlayData is the unit of data the cloud mirror ships and the unsynced
// cache holds: one player's submission for one round (spec §4.8: "a
// bounded channel of PlayData records").
type PlayData struct {
	TournamentID uuid.UUID      `json:"tournament_id"`
	PlayerID     uuid.UUID      `json:"player_id"`
	RoundNumber  int            `json:"round_number"`
	Word         string         `json:"word"`
	Position     store.Position `json:"position"`
	Score        int            `json:"score"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

type cacheKey struct {
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
	RoundNumber  int
}

func keyOf(d PlayData) cacheKey {
	return cacheKey{TournamentID: d.TournamentID, PlayerID: d.PlayerID, RoundNumber: d.RoundNumber}
}

// CacheEntry is one play the cloud mirror hasn't confirmed, or has since
// confirmed via a manual sync pass (spec §4.8: "{play_data, timestamp,
// synced}").
type CacheEntry struct {
	Data      PlayData  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Synced    bool      `json:"synced"`
}

// UnsyncedCache holds PlayData the cloud mirror failed to write after
// exhausting its retries, keyed by (tournament, player, round), bounded so
// a persistently unreachable cloud store can't grow it without limit
// (spec §4.8, grounded on local_cache.rs). When full, the oldest *synced*
// entry is evicted to make room; if none are synced, the insert is
// rejected rather than dropping data nobody has confirmed yet.
type UnsyncedCache struct {
	mu       sync.Mutex
	capacity int
	order    []cacheKey
	entries  map[cacheKey]CacheEntry
}

// NewUnsyncedCache builds a cache holding at most capacity entries.
func NewUnsyncedCache(capacity int) *UnsyncedCache {
	return &UnsyncedCache{capacity: capacity, entries: make(map[cacheKey]CacheEntry)}
}

// Store inserts or replaces one play's cached record as unsynced.
func (c *UnsyncedCache) Store(data PlayData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := keyOf(data)
	if _, exists := c.entries[key]; !exists {
		if c.capacity > 0 && len(c.order) >= c.capacity {
			if !c.evictOldestSyncedLocked() {
				return apperr.New(apperr.CloudError, "cache full with unsynced entries")
			}
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = CacheEntry{Data: data, Timestamp: time.Now().UTC(), Synced: false}
	return nil
}

// evictOldestSyncedLocked drops the oldest entry already marked synced, the
// only entries the spec's eviction policy allows evicting. Reports whether
// room was made.
func (c *UnsyncedCache) evictOldestSyncedLocked() bool {
	for i, key := range c.order {
		if c.entries[key].Synced {
			delete(c.entries, key)
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			return true
		}
	}
	return false
}

// MarkSynced marks a cached play as confirmed by the cloud, making it
// eligible for eviction or ClearSynced.
func (c *UnsyncedCache) MarkSynced(tournamentID, playerID uuid.UUID, roundNumber int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{TournamentID: tournamentID, PlayerID: playerID, RoundNumber: roundNumber}
	if e, ok := c.entries[key]; ok {
		e.Synced = true
		c.entries[key] = e
	}
}

// ListUnsynced returns every cached play not yet marked synced.
func (c *UnsyncedCache) ListUnsynced() []PlayData {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []PlayData
	for _, key := range c.order {
		if e := c.entries[key]; !e.Synced {
			out = append(out, e.Data)
		}
	}
	return out
}

// ClearSynced drops every entry already marked synced, returning how many
// were removed.
func (c *UnsyncedCache) ClearSynced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	removed := 0
	for _, key := range c.order {
		if c.entries[key].Synced {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

// ExportJSON serialises every cached entry, synced or not (spec §4.8
// "export/import JSON").
func (c *UnsyncedCache) ExportJSON() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheEntry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return json.Marshal(out)
}

// ImportJSON replaces the cache's contents with a previously exported set
// of entries.
func (c *UnsyncedCache) ImportJSON(data []byte) error {
	var entries []CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse unsynced cache export: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = make([]cacheKey, 0, len(entries))
	c.entries = make(map[cacheKey]CacheEntry, len(entries))
	for _, e := range entries {
		key := keyOf(e.Data)
		c.order = append(c.order, key)
		c.entries[key] = e
	}
	return nil
}

// Len reports how many plays are currently cached (synced and unsynced).
func (c *UnsyncedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
