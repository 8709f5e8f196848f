package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/config"
	"fleetpulse/pkg/health"
	"fleetpulse/pkg/histcache"
	"fleetpulse/pkg/monitor"
	"fleetpulse/pkg/poll"
	"fleetpulse/pkg/pushchan"
	"fleetpulse/pkg/statebus"
	"fleetpulse/pkg/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.Info())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := statebus.New()
	mon := buildMonitor(ctx, cfg, bus, logger)
	mon.Start(ctx)
	defer mon.Stop()

	logger.WithFields(logrus.Fields{
		"server":  cfg.ServerURL,
		"push":    cfg.PushURL,
		"version": version.Info().Version,
	}).Info("fleetpulse started")

	cli := NewCLI(mon, bus, cfg.StatusInterval(), logger)
	if err := cli.Run(ctx); err != nil {
		logger.WithError(err).Error("status loop failed")
		os.Exit(1)
	}
}

// buildMonitor wires the cache, poll client, and push channel into a Monitor.
// An unreachable Redis degrades to an in-memory cache so the dashboard still
// comes up; it just loses history across restarts.
func buildMonitor(ctx context.Context, cfg *config.Config, bus *statebus.Bus, logger logrus.FieldLogger) *monitor.Monitor {
	var kv histcache.KV
	redis, err := histcache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Warn("redis unreachable, history cache is in-memory only")
		kv = histcache.NewMemoryKV()
	} else {
		kv = redis
	}
	store := histcache.NewStore(kv, cfg.CacheKey, cfg.RetentionWindow(), cfg.MaxRetainedSamples, nil,
		logger.WithField("component", "histcache"), nil)

	client := poll.NewClient(cfg.ServerURL, cfg.RequestTimeout(), logger.WithField("component", "poll"))

	var dialer pushchan.Dialer
	if cfg.PushURL != "" {
		dialer = &pushchan.WebsocketDialer{}
	}

	return monitor.New(
		monitor.Options{
			StatusInterval:  cfg.StatusInterval(),
			HistoryInterval: cfg.HistoryInterval(),
			ConsoleInterval: cfg.ConsoleInterval(),
			BucketCount:     cfg.BucketCount,
			Reconciler: health.Options{
				MaxRetainedSamples: cfg.MaxRetainedSamples,
				RetentionWindow:    cfg.RetentionWindow(),
				DebounceWindow:     cfg.DebounceWindow(),
			},
		},
		client,
		store,
		bus,
		dialer,
		pushchan.Options{
			URL:                  cfg.PushURL,
			MaxReconnectAttempts: cfg.PushMaxReconnects,
			InitialBackoff:       cfg.PushInitialBackoff(),
			MaxBackoff:           cfg.PushMaxBackoff(),
		},
		nil,
		logger.WithField("component", "monitor"),
	)
}
