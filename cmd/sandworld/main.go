// Command sandworld is a minimal demo binary wiring together the world
// package's manager, loader, generator pipeline and simulator behind a
// console, in the teacher's style of a small cmd/ entry point that
// assembles the library packages rather than containing logic itself.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fallingsand/engine/config"
	"github.com/fallingsand/engine/console"
	"github.com/fallingsand/engine/world"
	"github.com/fallingsand/engine/world/gen"
	"github.com/fallingsand/engine/world/persist"
	"github.com/fallingsand/engine/world/structnode"
)

func main() {
	root := flag.String("root", "./sandworld-data", "world save directory")
	seed := flag.Int64("seed", 1, "world generation seed")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	settings, err := config.Load(*root + "/settings.toml")
	if err != nil {
		log.Error("loading settings", "error", err)
		os.Exit(1)
	}

	registry := world.NewRegistry()
	materials := gen.RegisterDefaults(registry)
	structs := structnode.NewRegistry()

	pipeline := &world.GeneratorPipeline{
		Base: gen.NewTerrainGenerator(materials, *seed),
		Features: []world.FeatureGenerator{
			&gen.VineFeature{Registry: structs, Chance: 0.15},
		},
		Populators: []world.Populator{
			&gen.OrePopulator{StageN: 1, Materials: materials, Seed: *seed, ClustersPer: 3, MinRadius: 3, MaxRadius: 8},
			&gen.OrePopulator{StageN: 2, Materials: materials, Seed: *seed ^ 0x1234, ClustersPer: 2, MinRadius: 2, MaxRadius: 5},
		},
	}

	mgr := world.NewChunkManager(1024)
	loaders := world.NewLoaderSet()
	sim := &world.Simulator{Registry: registry}
	handler := world.NewChunkHandler(log, mgr, loaders, pipeline, sim, *root, *seed, 2)

	w := world.New(log, mgr, loaders, handler, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx)

	mainLoaderUUID := uuid.New()
	mainLoaderID := binary.LittleEndian.Uint64(mainLoaderUUID[:8])
	w.Exec(func(tx *world.Tx) {
		tx.Loaders().Upsert(world.Loader{ID: mainLoaderID, X: 0, Y: 0, ScreenW: 1920, ScreenH: 1080})
	})

	h := console.NewDefaultHandler(w, *root, settings, stop)
	c := console.New(h, log)
	go c.Run(notifyCtx)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	log.Info("sandworld started", "root", *root, "seed", *seed)
	for {
		select {
		case <-notifyCtx.Done():
			log.Info("shutting down, saving resident chunks")
			w.Exec(func(tx *world.Tx) {
				tx.Manager().Range(func(c *world.Chunk) {
					if !c.Ready() {
						return
					}
					if err := persist.Save(*root, c); err != nil {
						log.Error("save on shutdown failed", "pos", c.Pos, "error", err)
					}
				})
			})
			return
		case <-ticker.C:
			w.Tick(ctx, 1.0/60)
		}
	}
}
