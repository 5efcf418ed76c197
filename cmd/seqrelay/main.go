// Command seqrelay runs the reliable-delivery core over a simulated lossy
// link and, optionally, serves the admin surface so the run can be observed.
// It loads configuration, initialises node identity, wires the event sinks
// and metrics, then drives two sessions until every message is delivered.
//
// Usage:
//
//	seqrelay [--config path/to/config.yaml]
//	seqrelay status [--addr http://127.0.0.1:8090]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/snehjoshi/seqrelay/internal/config"
	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/node"
	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/quality"
	"github.com/snehjoshi/seqrelay/internal/sequence"
	"github.com/snehjoshi/seqrelay/internal/sim"
	transphttp "github.com/snehjoshi/seqrelay/internal/transport/http"
	"github.com/snehjoshi/seqrelay/internal/types"
)

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "status" {
		err = runStatus(context.Background(), os.Args[2:], os.Stdout)
	} else {
		err = run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "seqrelay: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	// ── 3. Initialise node identity ──────────────────────────────────────────
	n, err := node.New(cfg.Node.DataDir, types.PeerID(cfg.Node.PeerID), cfg.Node.InstanceID)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}
	slog.Info("seqrelay starting",
		"peer_id", n.PeerID().String(),
		"instance", n.Instance().String(),
		"data_dir", n.DataDir(),
		"numbering", string(cfg.Sequence.Numbering),
	)

	// ── 4. Metrics, peers and event sinks ────────────────────────────────────
	reg := metrics.New()
	peers := peer.NewTable(qualityConfig(cfg))
	memEvents := eventlog.NewMemory(cfg.Events.MemoryLimit)
	events := eventlog.Log(memEvents)

	if cfg.Events.JournalPath != "" {
		path := cfg.Events.JournalPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(n.DataDir(), path)
		}
		journal, jerr := eventlog.OpenJournal(path, cfg.Events.JournalBuffer)
		if jerr != nil {
			return fmt.Errorf("open event journal: %w", jerr)
		}
		defer func() {
			err = multierr.Append(err, journal.Close())
			if d := journal.Dropped(); d > 0 {
				slog.Warn("event journal dropped events", "dropped", d)
			}
		}()
		events = eventlog.Multi(memEvents, journal)
		slog.Info("event journal enabled", "path", path)
	}

	// ── 5. Wire the simulation ───────────────────────────────────────────────
	simCfg, err := simConfig(cfg)
	if err != nil {
		return err
	}
	s, err := sim.New(simCfg, sim.Deps{Metrics: reg, Events: events, Peers: peers})
	if err != nil {
		return fmt.Errorf("init simulation: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 6. Start admin surface ───────────────────────────────────────────────
	var srv *transphttp.Server
	serveErr := make(chan error, 1)
	if cfg.Admin.Enabled {
		srv = transphttp.New(cfg.Admin, transphttp.Deps{
			Node:    n,
			Metrics: reg,
			Peers:   peers,
			Events:  memEvents,
			Logs:    s.Logs(),
		})
		addr := fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port)
		go func() {
			slog.Info("admin server listening", "addr", addr)
			if err := srv.ListenAndServe(addr); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
				return
			}
			serveErr <- nil
		}()
	}

	// ── 7. Run ───────────────────────────────────────────────────────────────
	rep, runErr := s.Run(ctx)
	slog.Info("simulation finished",
		"seed", rep.Seed,
		"messages", rep.Messages,
		"delivered", rep.Delivered,
		"complete", rep.Complete,
		"requests", rep.Requests,
		"resent", rep.Resent,
		"duplicates", rep.Duplicates,
		"dropped", rep.Forward.Dropped+rep.Backward.Dropped,
		"missing", len(rep.Missing),
		"not_found_events", memEvents.Count(eventlog.KindMessageNotInLog),
		"elapsed_ms", rep.Elapsed.Milliseconds(),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("simulation: %w", runErr)
	}

	if srv == nil {
		return nil
	}

	// ── 8. Keep serving until SIGINT / SIGTERM ───────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("admin shutdown error", "err", err)
	}
	slog.Info("seqrelay stopped")
	return nil
}

func qualityConfig(cfg *config.Config) quality.Config {
	return quality.Config{
		PenaltyPerMessage: cfg.Quality.PenaltyPerMessage,
		RecoveryPerSecond: cfg.Quality.RecoveryPerSecond,
		Floor:             cfg.Quality.Floor,
	}
}

// logConfig translates the message_log section.
func logConfig(cfg *config.Config) (msglog.Config, error) {
	recv, err := msglog.FilterByName(cfg.MessageLog.ReceiveFilter)
	if err != nil {
		return msglog.Config{}, err
	}
	send, err := msglog.FilterByName(cfg.MessageLog.SendFilter)
	if err != nil {
		return msglog.Config{}, err
	}
	if cfg.MessageLog.SendFilter == msglog.FilterNone {
		slog.Warn("send filter is none: gap recovery cannot retransmit anything")
	}
	return msglog.Config{
		ReceivedLimit: cfg.MessageLog.ReceivedLimit,
		SentLimit:     cfg.MessageLog.SentLimit,
		SentMapLimit:  cfg.MessageLog.SentMapLimit,
		ReceiveFilter: recv,
		SendFilter:    send,
		Duplicates:    msglog.DuplicatePolicy(cfg.MessageLog.DuplicatePolicy),
	}, nil
}

func simConfig(cfg *config.Config) (sim.Config, error) {
	lc, err := logConfig(cfg)
	if err != nil {
		return sim.Config{}, err
	}
	sender := types.PeerID(cfg.Node.PeerID)
	return sim.Config{
		SenderID:             sender,
		ReceiverID:           sender + 1,
		Messages:             cfg.Simulation.Messages,
		DropProbability:      cfg.Simulation.DropProbability,
		DuplicateProbability: cfg.Simulation.DuplicateProbability,
		RequestInterval:      time.Duration(cfg.Simulation.RequestIntervalMs) * time.Millisecond,
		Timeout:              time.Duration(cfg.Simulation.TimeoutMs) * time.Millisecond,
		Seed:                 cfg.Simulation.Seed,
		Numbering:            sequence.Numbering(cfg.Sequence.Numbering),
		Log:                  lc,
	}, nil
}
