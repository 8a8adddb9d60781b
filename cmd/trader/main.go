package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/engine"
	"main/internal/execution"
	"main/internal/ledger"
	"main/internal/mdg"
	"main/internal/ops"
	"main/internal/portfolio"
	"main/internal/remote"
	"main/internal/risk"
	"main/internal/source"
	"main/internal/strategy"
	"main/internal/wal"
	"main/pkg/conn"
	"main/pkg/plugin"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	replayDir := flag.String("replay-dir", "", "Override: replay journal segments from this directory")
	replaySpeed := flag.Float64("replay-speed", -1, "Override: playback speed (1=recorded pace, 0=no pacing)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *replayDir != "" {
		loaded.File.Source.Mode = ops.SourceReplay
		loaded.File.Source.ReplayDir = *replayDir
	}
	if *replaySpeed >= 0 {
		loaded.File.Source.Speed = *replaySpeed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if url := loaded.File.Profiling.PyroscopeURL; url != "" {
		appName := loaded.File.Profiling.AppName
		if appName == "" {
			appName = "trader"
		}
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName,
			ServerAddress:   url,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	report, err := run(ctx, loaded)
	if err != nil {
		log.Fatalf("run failed: %+v", err)
	}
	logs.Infof("run finished: events=%d skipped=%d signals=%d dropped=%d orders=%d fills=%d realized=%s equity=%s",
		report.Events, report.SkippedEvents, report.Signals, report.DroppedSignals,
		report.Orders, report.Fills, report.RealizedPnL, report.FinalEquity)
}

func run(ctx context.Context, loaded ops.Loaded) (engine.Report, error) {
	cfg := loaded.File

	repo, closeRepo, err := buildRepository(cfg.Ledger)
	if err != nil {
		return engine.Report{}, err
	}
	defer closeRepo()

	sequencer, err := ledger.BootstrapSequencer(repo)
	if err != nil {
		return engine.Report{}, err
	}

	strat, stopStrategy, err := buildStrategy(ctx, cfg)
	if err != nil {
		return engine.Report{}, err
	}
	defer stopStrategy()

	exec, err := execution.New(execution.Config{
		PluginDir:        cfg.Execution.PluginDir,
		StateDir:         cfg.Execution.StateDir,
		CallTimeout:      cfg.Execution.CallTimeout(),
		DefaultAlgorithm: cfg.Execution.DefaultAlgorithm,
		Risk: plugin.RiskSnapshot{
			MaxOrderQty: cfg.Risk.MaxOrderQty,
			MaxPosition: cfg.Risk.MaxPosition,
		},
	})
	if err != nil {
		return engine.Report{}, err
	}
	if err := exec.RecoverState(ctx); err != nil {
		return engine.Report{}, err
	}
	defer func() { _ = exec.Close() }()

	src, closeSource, err := buildSource(ctx, cfg.Source)
	if err != nil {
		return engine.Report{}, err
	}
	defer closeSource()

	var recorder *wal.Writer
	if cfg.Journal.Enabled {
		recorder, err = wal.NewWriter(wal.DefaultConfig(cfg.Journal.Dir))
		if err != nil {
			return engine.Report{}, err
		}
		if err := recorder.Start(ctx); err != nil {
			return engine.Report{}, err
		}
		defer func() { _ = recorder.Close() }()
	}

	orch, err := engine.New(engine.Config{
		Exchange: cfg.Exchange,
		FeeRate:  cfg.FeeRate,
	}, engine.Deps{
		Source:    src,
		Strategy:  strat,
		Execution: exec,
		Portfolio: portfolio.NewSnapshot(cfg.StartCash),
		Repo:      repo,
		Sequencer: sequencer,
		Gate:      risk.NewGate(cfg.Risk),
		Registry:  loaded.Registry,
		Recorder:  recorder,
	})
	if err != nil {
		return engine.Report{}, err
	}

	report, err := orch.Run(ctx)

	// Persist whatever is still working so a restart can resume it.
	if perr := exec.PersistState(context.Background()); perr != nil {
		logs.Errorf("persist execution state: %+v", perr)
	}
	return report, err
}

func buildRepository(cfg ops.LedgerConfig) (ledger.Repository, func(), error) {
	switch cfg.Backend {
	case ops.LedgerFile:
		repo, err := ledger.OpenFileRepository(filepath.Join(cfg.Dir, "ledger.journal"))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case ops.LedgerPostgres:
		client, err := conn.New(conn.Option{
			Host:     cfg.PG.Host,
			Port:     cfg.PG.Port,
			User:     cfg.PG.User,
			Password: cfg.PG.Password,
			Database: cfg.PG.Database,
			SSLMode:  cfg.PG.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		repo, err := ledger.NewPgRepository(client.DB())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return repo, func() { _ = client.Close() }, nil
	default:
		return ledger.NewMemoryRepository(), func() {}, nil
	}
}

func buildStrategy(ctx context.Context, cfg ops.FileConfig) (strategy.Strategy, func(), error) {
	if cfg.Remote.Enabled {
		client, err := remote.NewUDSClient(remote.TransportConfig{
			SocketPath:     cfg.Remote.Socket,
			RequestTimeout: cfg.Remote.RequestTimeout(),
			MaxAttempts:    cfg.Remote.MaxAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
		adapter := remote.NewAdapter(client, remote.AdapterConfig{
			Symbols:           cfg.Remote.Symbols,
			InitConfig:        cfg.Remote.InitConfig,
			HeartbeatInterval: cfg.Remote.HeartbeatInterval(),
			MissedThreshold:   cfg.Remote.MissedThreshold,
		})
		if err := adapter.Start(ctx); err != nil {
			return nil, nil, err
		}
		logs.Infof("remote strategy active: symbols=%s", strings.Join(adapter.Symbols(), ","))
		return adapter, func() { _ = adapter.Stop() }, nil
	}

	strat, err := strategy.NewRegistry().New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, nil, err
	}
	return strat, func() {}, nil
}

func buildSource(ctx context.Context, cfg ops.SourceConfig) (source.Source, func(), error) {
	src, cleanup, err := buildBaseSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Chaos.Enabled() {
		wrapped, err := chaos.Wrap(src, cfg.Chaos)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		src = wrapped
	}
	return src, cleanup, nil
}

func buildBaseSource(ctx context.Context, cfg ops.SourceConfig) (source.Source, func(), error) {
	switch cfg.Mode {
	case ops.SourceReplay:
		playback, err := wal.NewPlayback(wal.PlaybackConfig{
			Dir:   cfg.ReplayDir,
			Speed: cfg.Speed,
		})
		if err != nil {
			return nil, nil, err
		}
		return playback, func() { _ = playback.Close() }, nil
	case ops.SourceSynthetic:
		gen, err := mdg.NewGenerator(mdg.Config{
			Symbols:   cfg.Symbols,
			BasePrice: cfg.Synthetic.BasePrice,
			Step:      cfg.Synthetic.Step,
			Interval:  cfg.Synthetic.Interval(),
			Count:     cfg.Synthetic.Count,
			Seed:      cfg.Synthetic.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		return gen, func() {}, nil
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	queue := bus.NewQueue(queueSize)
	feed := source.NewBinanceFeed(ctx, queue)
	if err := feed.Start(ctx); err != nil {
		return nil, nil, err
	}

	unsubscribes := make([]func(), 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		if err := feed.SubscribeTrades(ctx, symbol); err != nil {
			feed.Close()
			return nil, nil, err
		}
		unsubscribes = append(unsubscribes, feed.ObserveTrades(ctx, symbol))
	}

	stopTimer := func() {}
	if interval := cfg.TimerInterval(); interval > 0 {
		stopTimer = source.StartTimer(ctx, queue, interval)
	}

	cleanup := func() {
		stopTimer()
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
		feed.Close()
		queue.Close()
	}
	return source.NewLive(queue), cleanup, nil
}
