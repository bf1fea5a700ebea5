package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/config"
	"github.com/worldsim/worldsim/internal/core/ecs"
	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/data"
	"github.com/worldsim/worldsim/internal/persist"
	"github.com/worldsim/worldsim/internal/scripting"
	"github.com/worldsim/worldsim/internal/system"
	"github.com/worldsim/worldsim/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(path string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              worldsim  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       entity-component world runtime      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mconfig:\033[0m %s\n\n", path)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main simulation logic ─────────────────────────────────────────

func run() error {
	stdin := flag.Bool("stdin", false, "read input events from stdin (\"key w down\", \"scroll 0 1\", ...)")
	flag.Parse()

	// 1. Load config
	cfgPath := config.Path("config/world.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if stop := startProfile(cfg.Profile); stop != nil {
		defer stop()
	}

	printBanner(cfgPath)

	// 3. Scripts, component declarations and templates
	printSection("data")

	scripts, err := scripting.NewEngine(cfg.Data.ScriptDir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer scripts.Close()
	printOK("lua engine ready")

	reg := ecs.NewRegistry()
	decls, err := data.LoadDeclarations(cfg.Data.Components, log)
	if err != nil {
		return fmt.Errorf("load component declarations: %w", err)
	}
	declared := data.Declare(reg, decls, component.Classes(component.Env{Scripts: scripts, Log: log}), log)
	printStat("components", declared)

	tpls, err := data.LoadTemplateDir(cfg.Data.TemplateDir, log)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	table, err := data.ResolveAll(tpls, reg, log)
	if err != nil {
		return fmt.Errorf("resolve templates: %w", err)
	}
	printStat("templates", table.Len())

	w := world.New(reg, table, cfg.World.Bounds(), cfg.World.QuadCapacity, nil, log.Named("world"))
	fmt.Println()

	// 4. Database: restore the latest snapshot when asked to
	var (
		snapshots *persist.SnapshotRepo
		journal   *persist.JournalRepo
		restored  bool
	)
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("postgres connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))

		snapshots = persist.NewSnapshotRepo(db)
		journal = persist.NewJournalRepo(db)

		if cfg.Database.Restore {
			n, err := restoreWorld(ctx, w, snapshots, journal, log)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			restored = n > 0
			printStat("restored entities", n)
		}
		next, err := snapshots.LoadCounter(ctx)
		if err != nil {
			return fmt.Errorf("handle counter: %w", err)
		}
		w.SetNextHandle(ecs.Handle(next))
		printStat("next handle", int(w.NextHandle()))
		fmt.Println()
	}

	// 5. Spawn list, only into an empty world
	if !restored && cfg.Data.SpawnList != "" {
		printSection("spawn")
		n, err := spawnFromList(w, cfg.Data.SpawnList, cfg.World.Seed, log)
		if err != nil {
			return err
		}
		printStat("spawned entities", n)
		fmt.Println()
	}

	// 6. Systems
	input := system.NewInputQueue(256)
	frames := &frameStats{}
	tick := system.NewTickSystem(w)

	runner := coresys.NewRunner(log.Named("runner"), cfg.World.TickRate)
	runner.Register(system.NewInputSystem(w, input, 64, log))
	runner.Register(system.NewEventDispatchSystem(w.Bus()))
	runner.Register(tick)
	runner.Register(system.NewSpatialSystem(w, log))
	runner.Register(system.NewRenderSystem(w, frames))
	var persistSys *system.PersistenceSystem
	if snapshots != nil {
		persistSys = system.NewPersistenceSystem(w, snapshots, journal, log, cfg.Database.AutosaveTicks, cfg.Database.KeepSnapshots)
		runner.Register(persistSys)
	}
	runner.Register(system.NewCleanupSystem(w))

	if *stdin {
		go feedInput(os.Stdin, input, log)
	}

	// 7. Simulation loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("tick %s, %d entities", cfg.World.TickRate, w.Len()))
	if cfg.World.SimTicks > 0 {
		printReady(fmt.Sprintf("stopping after %d ticks", cfg.World.SimTicks))
	}
	fmt.Println()

	shutdown := func(reason string) error {
		log.Info("simulation stopping", zap.String("reason", reason), zap.Uint64("ticks", tick.Ticks()))
		if persistSys != nil {
			if err := persistSys.SaveNow(); err != nil {
				return fmt.Errorf("final snapshot: %w", err)
			}
		}
		s := w.Tree().Stats()
		printSection("summary")
		printStat("ticks", int(tick.Ticks()))
		printStat("entities", w.Len())
		printStat("tree leaves", s.Leaves)
		printStat("tree depth", s.MaxDepth)
		printStat("frames", int(frames.frames))
		printStat("sprites last frame", frames.last)
		printStat("dropped input", int(input.Dropped()))
		_, overruns, slowest := runner.Stats()
		printStat("ticks over budget", int(overruns))
		printReady(fmt.Sprintf("slowest tick %s", slowest))
		return nil
	}

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
			if cfg.World.SimTicks > 0 && tick.Ticks() >= uint64(cfg.World.SimTicks) {
				return shutdown("tick limit")
			}
		case sig := <-shutdownCh:
			return shutdown(sig.String())
		}
	}
}

// restoreWorld rebuilds the entities of the latest snapshot, then replays the
// spawns and destroys journaled after it. Entities that no longer build are
// logged and skipped.
func restoreWorld(ctx context.Context, w *world.World, repo *persist.SnapshotRepo, journal *persist.JournalRepo, log *zap.Logger) (int, error) {
	var since time.Time
	b, err := repo.LoadLatest(ctx)
	switch {
	case errors.Is(err, persist.ErrNoSnapshot):
	case err != nil:
		return 0, err
	default:
		n := 0
		for _, rec := range b.Records {
			if _, err := w.Restore(rec); err != nil {
				log.Warn("skip saved entity", zap.Uint64("handle", rec.Handle), zap.Error(err))
				continue
			}
			n++
		}
		w.SetNextHandle(ecs.Handle(b.NextHandle))
		since = b.TakenAt
		log.Info("snapshot restored", zap.Stringer("batch", b.ID), zap.Time("taken_at", b.TakenAt), zap.Int("entities", n))
	}

	entries, err := journal.Since(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(entries) > 0 {
		spawned, destroyed := system.ReplayJournal(w, entries, log)
		log.Info("journal replayed", zap.Int("entries", len(entries)), zap.Int("spawned", spawned), zap.Int("destroyed", destroyed))
	}
	return w.Len(), nil
}

func spawnFromList(w *world.World, path string, seed int64, log *zap.Logger) (int, error) {
	entries, err := data.LoadSpawnList(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("no spawn list", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("load spawn list: %w", err)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	n := 0
	for _, e := range entries {
		for _, p := range e.Positions(rng) {
			if _, err := w.Spawn(e.Template, p); err != nil {
				log.Warn("spawn failed", zap.String("template", e.Template), zap.Error(err))
				continue
			}
			n++
		}
	}
	return n, nil
}

// frameStats is the renderer used when no window is attached.
type frameStats struct {
	frames uint64
	last   int
}

func (f *frameStats) Draw(fr system.Frame) {
	f.frames = fr.Seq
	f.last = len(fr.Drawables)
}

func startProfile(cfg config.ProfileConfig) func() {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "trace":
		mode = profile.TraceProfile
	default:
		return nil
	}
	p := profile.Start(mode, profile.ProfilePath(cfg.Path), profile.NoShutdownHook, profile.Quiet)
	return p.Stop
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
