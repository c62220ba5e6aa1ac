// Command tournament runs the Duplicate Spanish Scrabble Tournament engine
// as a long-lived process: it loads configuration, rehydrates any
// tournaments persisted from a previous run, wires the cloud mirror and
// poller if a database is configured, and serves until interrupted.
//
// Dispatch follows the teacher's own main.go: a plain os.Args switch, no
// flag/cobra framework, consistent with loadRuleset's "never fail to start,
// warn and fall back" posture.
package main

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dupliscrabble/internal/api"
	"dupliscrabble/internal/config"
	"dupliscrabble/internal/engine"
	"dupliscrabble/internal/movegen"
	"dupliscrabble/internal/persistence"
	"dupliscrabble/internal/poller"
	"dupliscrabble/internal/store"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe()
		case "sync":
			runSync()
		default:
			fmt.Fprintf(os.Stderr, "usage: tournament [serve|sync]\n")
			os.Exit(1)
		}
		return
	}
	runServe()
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

// buildAPI wires the C1-C8 and C10 components together per config, the
// shared bootstrap path for both "serve" and "sync"; the poller (C9) is
// started separately by runServe.
func buildAPI(ctx context.Context, log zerolog.Logger) (*api.API, *persistence.Coordinator, error) {
	cfg := config.Load("config.json")

	dict, err := movegen.LoadDictionary(cfg.DictionaryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load dictionary: %w", err)
	}
	gen := movegen.NewTrieGenerator(dict)

	local, err := persistence.NewLocalSnapshotter(cfg.SnapshotDir, log)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise local snapshots: %w", err)
	}
	if hash, err := persistence.DictionaryHash(cfg.DictionaryPath); err != nil {
		log.Warn().Err(err).Msg("could not hash dictionary, snapshots will omit it")
	} else {
		local.SetDictionaryHash(hash)
	}

	st := store.New()
	ids, err := local.ListTournaments()
	if err != nil {
		log.Warn().Err(err).Msg("could not list existing snapshots, starting empty")
	}
	for _, id := range ids {
		tn, bg, err := local.Load(id)
		if err != nil {
			log.Warn().Err(err).Str("tournament_id", id).Msg("failed to restore snapshot, skipping")
			continue
		}
		st.Restore(tn, bg)
	}

	var cloud *persistence.CloudMirror
	cache := persistence.NewUnsyncedCache(cfg.UnsyncedCacheCapacity)
	if cfg.CloudConnectionString != "" {
		cloud, err = persistence.NewCloudMirror(ctx, cfg.CloudConnectionString, cfg.CloudQueueSize, cfg.CloudRetries, cache, log)
		if err != nil {
			log.Warn().Err(err).Msg("cloud mirror unavailable, continuing in local-only mode")
			cloud = nil
		}
	}

	coordinator := persistence.NewCoordinator(local, cloud, log)
	rng := rand.New(rand.NewPCG(randSeed(), randSeed()))
	eng := engine.New(st, gen, rng, coordinator)
	eng.SetRoundTimerSeconds(cfg.RoundTimerSeconds)

	events, err := persistence.NewEventLogger(cfg.EventLogDir)
	if err != nil {
		log.Warn().Err(err).Msg("event logger unavailable, round/player activity will not be logged")
	} else {
		eng.SetEventLog(events)
	}

	a := api.New(eng, st, local, cloud)
	return a, coordinator, nil
}

// randSeed reads entropy from the OS so tile shuffles are unpredictable
// across process restarts (spec §4.2 requires an injected RNG, not a fixed
// one, outside of tests).
func randSeed() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return 0x9e3779b97f4a7c15
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// submitApplier adapts Engine.SubmitPlay to the poller.Applier signature.
func submitApplier(a *api.API) func(tournamentID, playerID uuid.UUID, roundNumber int, word string, pos store.Position) error {
	return func(tournamentID, playerID uuid.UUID, roundNumber int, word string, pos store.Position) error {
		_, err := a.Engine.SubmitPlay(tournamentID, playerID, roundNumber, word, pos)
		return err
	}
}

func runServe() {
	log := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, _, err := buildAPI(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start tournament engine")
	}

	if a.Cloud != nil {
		cfg := config.Load("config.json")
		p, err := poller.New(ctx, a.Cloud.Pool(), submitApplier(a), cfg.PollInterval, log)
		if err != nil {
			log.Warn().Err(err).Msg("poller unavailable, remote submissions will not be ingested")
		} else {
			go p.Run(ctx)
		}
	}

	log.Info().Msg("tournament engine running")
	<-ctx.Done()
	log.Info().Msg("shutting down")
	if a.Cloud != nil {
		a.Cloud.Close()
	}
}

func runSync() {
	log := newLogger()
	ctx := context.Background()
	a, _, err := buildAPI(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start tournament engine")
	}
	if a.Cloud == nil {
		fmt.Println("no cloud connection configured, nothing to sync")
		return
	}
	result := a.SyncCacheToDatabase(ctx)
	fmt.Printf("synced=%d failed=%d\n", result.Synced, result.Failed)
}
