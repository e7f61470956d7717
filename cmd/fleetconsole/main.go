package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	cfnats "github.com/Strob0t/fleetconsole/internal/adapter/nats"
	cfotel "github.com/Strob0t/fleetconsole/internal/adapter/otel"
	"github.com/Strob0t/fleetconsole/internal/adapter/ristretto"
	"github.com/Strob0t/fleetconsole/internal/adapter/slogsink"
	"github.com/Strob0t/fleetconsole/internal/adapter/tui"
	"github.com/Strob0t/fleetconsole/internal/adapter/ws"
	"github.com/Strob0t/fleetconsole/internal/config"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/domain/viewport"
	"github.com/Strob0t/fleetconsole/internal/logger"
	"github.com/Strob0t/fleetconsole/internal/port/eventsink"
	"github.com/Strob0t/fleetconsole/internal/resilience"
	"github.com/Strob0t/fleetconsole/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fleetconsole:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	headless := cfg.Headless || !term.IsTerminal(int(os.Stdout.Fd()))

	// --- Logging ---

	// The TUI owns the terminal, so interactive sessions log to a file.
	var logOut io.Writer = os.Stderr
	var statusLine *tui.LogHandler
	var extra []slog.Handler
	if !headless {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f

		statusLine = tui.NewLogHandler(slog.LevelWarn, "service")
		extra = append(extra, statusLine)
	}
	log, logCloser := logger.New(cfg.Logging, logOut, extra...)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"config_file", cfgPath,
		"url", cfg.Backend.URL,
		"fleet_size", cfg.Backend.FleetSize,
		"headless", headless,
	)

	// --- Metrics ---

	reader := sdkmetric.NewManualReader()
	_, shutdownMetrics := cfotel.InitMeterProvider(cfg.Logging.Service, reader)
	metrics, err := cfotel.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		logMetrics(context.Background(), reader)
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("meter provider shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Event sink ---

	sink, closeSink, err := newSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	// --- Services ---

	store := fleet.NewStore(cfg.Events.Capacity)
	syncer := service.NewSynchronizer(store, sink, metrics)
	manager := ws.NewManager(ws.Options{
		URL:            cfg.Backend.URL,
		FleetSize:      cfg.Backend.FleetSize,
		ConnectTimeout: cfg.Backend.ConnectTimeout,
		WriteTimeout:   cfg.Backend.WriteTimeout,
		Backoff:        resilience.NewBackoff(cfg.Reconnect.InitialDelay, cfg.Reconnect.MaxDelay, cfg.Reconnect.Multiplier),
		Handler:        syncer.HandleFrame,
		OnConnected:    syncer.Initialize,
		OnStateChange:  syncer.RecordConnState,
		Metrics:        metrics,
	})
	defer manager.Close()
	dispatcher := service.NewDispatcher(manager, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })

	if headless {
		g.Go(func() error { return runHeadless(gctx, store) })
		return g.Wait()
	}

	// --- Terminal UI ---

	frames, err := ristretto.New(cfg.Cache.MaxCostBytes, cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("render cache: %w", err)
	}
	defer func() {
		slog.Debug("map frame cache", "hit_ratio", frames.HitRatio())
		frames.Close()
	}()

	model := tui.NewModel(tui.Options{
		Store:      store,
		Conn:       manager,
		Dispatcher: dispatcher,
		Viewport: viewport.Config{
			BaseScale:   cfg.Viewport.BaseScale,
			ClickRadius: cfg.Viewport.ClickRadius,
			MinZoom:     cfg.Viewport.MinZoom,
			MaxZoom:     cfg.Viewport.MaxZoom,
		},
		Frames: frames,
	})
	program := tea.NewProgram(model,
		tea.WithContext(gctx),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	statusLine.SetProgram(program)

	g.Go(func() error {
		// Leaving the UI shuts the console down.
		defer stop()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newSink returns the NATS sink when a NATS URL is configured and the log
// sink otherwise.
func newSink(ctx context.Context, cfg *config.Config) (eventsink.Sink, func(), error) {
	if cfg.NATS.URL == "" {
		return slogsink.New(nil), func() {}, nil
	}
	breaker := resilience.NewBreaker("nats", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	sink, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Subject, breaker)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: %w", err)
	}
	return sink, func() {
		if err := sink.Close(); err != nil {
			slog.Warn("nats close failed", "error", err)
		}
	}, nil
}
