package persistence

import (
	"github.com/rs/zerolog"

	"dupliscrabble/internal/bag"
	"dupliscrabble/internal/store"
)

// Coordinator implements engine.Persister: after every successful Round
// Engine mutation it saves the local snapshot synchronously and/or queues
// the cloud mirror asynchronously, in the order the tournament's
// PersistenceMode selects (both, local first, by default; spec §2, §4.8).
type Coordinator struct {
	Local *LocalSnapshotter
	Cloud *CloudMirror // nil when running without a configured cloud store
	log   zerolog.Logger
}

// NewCoordinator wires a LocalSnapshotter and an optional CloudMirror
// together. cloud may be nil for local-only deployments.
func NewCoordinator(local *LocalSnapshotter, cloud *CloudMirror, log zerolog.Logger) *Coordinator {
	return &Coordinator{Local: local, Cloud: cloud, log: log.With().Str("component", "persistence_coordinator").Logger()}
}

// Persist satisfies engine.Persister, dispatching on the tournament's
// PersistenceMode (spec §4.8). CloudOnly falls back to LocalOnly behaviour
// for the duration of a cloud outage, per the cloud-availability flag.
func (c *Coordinator) Persist(t *store.Tournament, bg *bag.Bag) {
	mode := t.PersistenceMode
	if mode == "" {
		mode = store.DualLocalFirst
	}

	if mode == store.CloudOnly && (c.Cloud == nil || !c.Cloud.Available()) {
		c.log.Warn().Str("tournament_id", t.ID.String()).Msg("cloud unavailable, CloudOnly tournament falling back to LocalOnly")
		mode = store.LocalOnly
	}

	switch mode {
	case store.LocalOnly:
		c.saveLocal(t, bg)
	case store.CloudOnly:
		c.mirrorCloud(t, bg)
	case store.DualCloudFirst:
		c.mirrorCloud(t, bg)
		c.saveLocal(t, bg)
	case store.DualLocalFirst:
		c.saveLocal(t, bg)
		c.mirrorCloud(t, bg)
	default:
		c.saveLocal(t, bg)
		c.mirrorCloud(t, bg)
	}
}

func (c *Coordinator) saveLocal(t *store.Tournament, bg *bag.Bag) {
	if err := c.Local.Save(t, bg); err != nil {
		c.log.Error().Err(err).Str("tournament_id", t.ID.String()).Msg("local snapshot failed")
	}
}

func (c *Coordinator) mirrorCloud(t *store.Tournament, bg *bag.Bag) {
	if c.Cloud != nil {
		c.Cloud.Persist(t, bg)
	}
}
