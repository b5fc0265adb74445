package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/blockbridge/config"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/statsdb"
)

// handleRunCommand processes `blockbridge run`.
// Usage:
//
//	blockbridge run graph.toml                    # until interrupted or the graph duration
//	blockbridge run -duration 5s graph.yaml       # override the duration
//	blockbridge run -metrics :9090 graph.toml     # export Prometheus metrics
//	blockbridge run -stats-db runs.db graph.toml  # record work statistics
func handleRunCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	duration := fs.Duration("duration", 0, "Stop after this long (overrides the flowgraph)")
	metricsAddr := fs.String("metrics", "", "Serve Prometheus metrics on this address")
	statsPath := fs.String("stats-db", "", "SQLite database for work statistics (overrides the flowgraph)")
	interval := fs.Duration("stats-interval", time.Second, "How often to record work statistics")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("run needs exactly one flowgraph file")
	}

	cfg, err := config.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	if *duration > 0 {
		cfg.Graph.Duration = *duration
	}
	if *statsPath != "" {
		cfg.Graph.StatsDB = *statsPath
	}

	var opts []engine.Option
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m, err := engine.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithMetrics(m))
		srv := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %s", err)
			}
		}()
		defer srv.Close()
	}

	built, err := cfg.Build(nil, opts...)
	if err != nil {
		return err
	}
	topo := built.Topology
	defer func() {
		if err := topo.Close(); err != nil {
			log.Errorf("closing %s: %s", cfg.Graph.Name, err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Graph.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Graph.Duration)
		defer cancel()
	}

	var recorded chan error
	var store *statsdb.Store
	var runID int64
	if cfg.Graph.StatsDB != "" {
		if store, err = statsdb.Open(cfg.Graph.StatsDB); err != nil {
			return err
		}
		defer store.Close()
		if runID, err = store.BeginRun(cfg.Graph.Name, time.Now()); err != nil {
			return err
		}
		recorded = make(chan error, 1)
		go func() { recorded <- store.Watch(ctx, runID, *interval, topo.Stats) }()
	}

	if err := topo.Activate(); err != nil {
		return fmt.Errorf("activating %s: %w", cfg.Graph.Name, err)
	}
	log.Infof("running %s", cfg.Graph.Name)
	runErr := topo.Run(ctx)
	stop()
	if err := topo.Deactivate(); err != nil {
		log.Errorf("deactivating %s: %s", cfg.Graph.Name, err)
	}

	if store != nil {
		if err := <-recorded; err != nil {
			log.Errorf("recording run %d: %s", runID, err)
		}
		if err := store.EndRun(runID, time.Now()); err != nil {
			log.Errorf("ending run %d: %s", runID, err)
		}
	}
	printStats(topo.Stats())
	return runErr
}

func printStats(stats []engine.WorkStats) {
	fmt.Printf("%-16s %8s %6s %12s %12s %8s\n", "NODE", "CALLS", "ERRORS", "CONSUMED", "PRODUCED", "LABELS")
	for _, s := range stats {
		fmt.Printf("%-16s %8d %6d %12d %12d %8d\n",
			s.Node, s.NumWorkCalls, s.NumWorkErrors, s.BytesConsumed, s.BytesProduced, s.LabelsProduced)
	}
}
