// Command losd serves the scenario map and LOS checks to the map editor.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/lob-los/internal/api"
	"github.com/talgya/lob-los/internal/los"
	"github.com/talgya/lob-los/internal/mapdoc"
	"github.com/talgya/lob-los/internal/mapgen"
	"github.com/talgya/lob-los/internal/persistence"
)

const generatorSeedKey = "generator_seed"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	dbPath := envOrDefault("LOSD_DB_PATH", "data/lob.db")
	port := envIntOrDefault("LOSD_PORT", 3000)
	adminKey := os.Getenv("LOSD_ADMIN_KEY")
	scenario := envOrDefault("LOSD_SCENARIO", "south-mountain")
	seedMap := os.Getenv("LOSD_SEED_MAP")
	seed := int64(envIntOrDefault("LOSD_SEED", 0))
	if seed == 0 {
		seed = rand.Int63()
	}

	if adminKey == "" {
		slog.Warn("LOSD_ADMIN_KEY not set, map editing disabled")
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	opts := los.DefaultOptions()
	server := &api.Server{
		Store:    db,
		Scenario: scenario,
		Port:     port,
		AdminKey: adminKey,
		Options:  &opts,
	}

	// ── Load or Seed the Map ─────────────────────────────────────────
	err = server.LoadCurrent()
	if errors.Is(err, persistence.ErrNotFound) {
		slog.Info("no saved map found, seeding...", "scenario", scenario)
		doc, seedErr := seedDocument(scenario, seedMap, seed)
		if seedErr != nil {
			slog.Error("failed to seed map", "error", seedErr)
			os.Exit(1)
		}
		rev, saveErr := db.SaveMap(doc)
		if saveErr != nil {
			slog.Error("failed to store seed map", "error", saveErr)
			os.Exit(1)
		}
		if seedMap == "" {
			recordGeneratorSeed(db, seed)
		}
		slog.Info("seed map stored", "revision", rev.ID)
		err = server.LoadCurrent()
	}
	if err != nil {
		slog.Error("failed to load map", "error", err)
		os.Exit(1)
	}

	server.Start()

	fmt.Printf("\nlosd serving %q\n", scenario)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	fmt.Println("Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}

// seedDocument loads the map at path, or generates one when path is empty.
func seedDocument(scenario, path string, seed int64) (*mapdoc.Document, error) {
	if path != "" {
		doc, err := mapdoc.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := mapdoc.Validate(doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if doc.Scenario != scenario {
			return nil, fmt.Errorf("%s is scenario %q, server edits %q", path, doc.Scenario, scenario)
		}
		for _, w := range mapdoc.Check(doc) {
			slog.Warn("seed map", "path", w.Path, "issue", w.Message)
		}
		return doc, nil
	}

	slog.Info("generating map...", "seed", seed)
	cfg := mapgen.DefaultGenConfig()
	cfg.Scenario = scenario
	cfg.Seed = seed
	doc := mapgen.Generate(cfg)

	for t, c := range mapgen.TerrainCounts(doc) {
		slog.Info("terrain", "type", mapdoc.TerrainName(t), "count", humanize.Comma(int64(c)))
	}
	return doc, nil
}

// recordGeneratorSeed stores the seed a generated map came from. A failure is
// logged and startup continues.
func recordGeneratorSeed(db *persistence.DB, seed int64) bool {
	if err := db.SaveMeta(generatorSeedKey, strconv.FormatInt(seed, 10)); err != nil {
		slog.Warn("failed to record generator seed", "seed", seed, "error", err)
		return false
	}
	return true
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
