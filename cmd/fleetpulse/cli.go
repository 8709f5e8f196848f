package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/health"
	"fleetpulse/pkg/monitor"
	"fleetpulse/pkg/statebus"
)

// CLI prints a periodic plain-text status line per service, plus any
// notifications surfaced on the bus. It is the headless stand-in for the
// dashboard's rendering layer.
type CLI struct {
	monitor  *monitor.Monitor
	bus      *statebus.Bus
	interval time.Duration
	logger   logrus.FieldLogger

	lastPrinted map[string]string
	done        chan struct{}
}

func NewCLI(mon *monitor.Monitor, bus *statebus.Bus, interval time.Duration, logger logrus.FieldLogger) *CLI {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &CLI{
		monitor:     mon,
		bus:         bus,
		interval:    interval,
		logger:      logger,
		lastPrinted: make(map[string]string),
		done:        make(chan struct{}),
	}
}

// Run blocks until ctx ends or Stop is called, printing status on a fixed
// cadence and notifications as they arrive.
func (c *CLI) Run(ctx context.Context) error {
	sub := c.bus.Subscribe(func(changed []string, state map[string]any) {
		for _, key := range changed {
			if key != statebus.KeyNotification {
				continue
			}
			if msg, ok := state[key].(string); ok && msg != "" {
				c.logger.Warn(msg)
			}
		}
	})
	defer sub.Unsubscribe()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutting down")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the status loop.
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints one line per service whose summary changed since the
// last tick.
func (c *CLI) printStatus() {
	services, _ := c.bus.Get(statebus.KeyServices).(map[string]health.ServiceState)
	if len(services) == 0 {
		return
	}

	keys := make([]string, 0, len(services))
	for key := range services {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		line := c.summarize(key, services[key])
		if line == c.lastPrinted[key] {
			continue
		}
		c.lastPrinted[key] = line
		c.logger.WithField("service", key).Info(line)
	}
}

func (c *CLI) summarize(key string, st health.ServiceState) string {
	return fmt.Sprintf("%s uptime=%d%% %s", st.Status, c.monitor.Uptime(key), sparkline(c.monitor.Buckets(key)))
}

// sparkline renders the bucket view as one rune per bucket.
func sparkline(buckets []health.Status) string {
	out := make([]rune, len(buckets))
	for i, b := range buckets {
		switch b {
		case health.StatusHealthy:
			out[i] = '#'
		case health.StatusUnhealthy:
			out[i] = 'x'
		default:
			out[i] = '.'
		}
	}
	return string(out)
}
