package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/lumenshell/widget-runtime/config"
	"github.com/lumenshell/widget-runtime/engine"
	"github.com/lumenshell/widget-runtime/host"
	"github.com/lumenshell/widget-runtime/services"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to runner config YAML")
		modulesDir = flag.String("modules", "", "Directory of widget .wasm modules (overrides config)")
		headless   = flag.Bool("headless", false, "Run without the inspector TUI")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *modulesDir != "" {
		cfg.ModulesDir = *modulesDir
	}

	log, err := buildLogger(cfg.LogLevel, *headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	engine.SetLogger(log.Named("engine"))

	interactive := !*headless && term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(cfg, log, interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildLogger keeps zap on stderr so the inspector owns stdout.
func buildLogger(level string, headless bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if headless && lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func run(cfg config.Config, log *zap.Logger, interactive bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.NewEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: cfg.MemoryLimitPages,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(ctx)

	manager := host.NewManager(eng, log.Named("host"))
	defer manager.Close(ctx)

	loop := host.NewLoop(manager, host.LoopConfig{
		RequestBuffer:    cfg.RequestBuffer,
		EventBuffer:      cfg.EventBuffer,
		RenderQueueBound: cfg.RenderQueueBound,
	}, log.Named("loop"))

	// The event consumer starts before adoption so setup events never
	// back up against a full channel.
	var tui *inspector
	if interactive {
		tui = newInspector(loop.Events(), loop.Requests())
		tui.Start(ctx)
	} else {
		go consumeHeadless(ctx, loop, log)
	}

	paths, err := manager.Discover(cfg.ModulesDir)
	if err != nil {
		return fmt.Errorf("discover modules: %w", err)
	}
	if len(paths) == 0 {
		log.Warn("no widget modules found", zap.String("dir", cfg.ModulesDir))
	}
	manager.LoadAll(ctx, paths, loop.EventSink())

	supervisor := services.NewSupervisor(log.Named("services"))
	supervisor.Add(loop)

	router := services.NewPropertyRouter(loop.Requests(), log.Named("router"))
	for _, m := range manager.Modules() {
		if mask := m.WatchMask(); mask != 0 {
			router.Watch(m.ID, mask)
		}
		for _, timer := range m.Timers() {
			supervisor.Add(services.NewIntervalService(m.ID, timer, loop.Requests(), log.Named("interval")))
		}
	}
	supervisor.Add(router)

	log.Info("runner started",
		zap.Int("modules", len(manager.Modules())),
		zap.Bool("interactive", interactive))

	if !interactive {
		return supervisor.Serve(ctx)
	}

	errc := supervisor.ServeBackground(ctx)
	if err := tui.Run(); err != nil {
		return fmt.Errorf("inspector: %w", err)
	}
	cancel()
	if err := <-errc; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// consumeHeadless acknowledges surface creation immediately, standing in
// for a compositor, and logs the event stream.
func consumeHeadless(ctx context.Context, loop *host.Loop, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-loop.Events():
			switch e := ev.(type) {
			case host.EventCreateSurface:
				log.Info("surface created",
					zap.Uint32("module", e.Module),
					zap.Uint64("handle", uint64(e.Handle)),
					zap.Uint32("surface_id", e.Descriptor.ID))
				select {
				case loop.Requests() <- host.RequestSurfaceReady{Handle: e.Handle}:
				case <-ctx.Done():
					return
				}
			case host.EventDestroySurface:
				log.Info("surface destroyed",
					zap.Uint32("module", e.Module),
					zap.Uint64("handle", uint64(e.Handle)))
			case host.EventUIUpdate:
				log.Debug("ui update",
					zap.Uint32("module", e.Module),
					zap.Uint64("handle", uint64(e.Handle)))
			case host.EventRegisterSubscriptions:
				log.Info("subscriptions registered",
					zap.Uint32("module", e.Module),
					zap.String("name", e.Name),
					zap.Int("count", len(e.Subscriptions)))
			}
		}
	}
}
