// Package monitor is the application root of the health subsystem. It owns
// the per-service reconciled records and wires the cache, the reconciler, the
// push channel, and the poll loops onto the state bus.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/health"
	"fleetpulse/pkg/histcache"
	"fleetpulse/pkg/poll"
	"fleetpulse/pkg/pushchan"
	"fleetpulse/pkg/statebus"
)

// StatusAPI is the slice of the backend REST surface the monitor consumes.
// Implemented by poll.Client.
type StatusAPI interface {
	Snapshot(ctx context.Context) (map[string]health.ServiceState, error)
	History(ctx context.Context) (poll.HistoryResponse, error)
	Console(ctx context.Context, key string) (string, error)
	Jobs(ctx context.Context) (json.RawMessage, error)
}

const (
	DefaultStatusInterval  = 30 * time.Second
	DefaultHistoryInterval = 30 * time.Second
	DefaultConsoleInterval = 5 * time.Second
)

// Options configure the monitor's cadences and reconciliation knobs.
type Options struct {
	StatusInterval  time.Duration
	HistoryInterval time.Duration
	ConsoleInterval time.Duration
	BucketCount     int
	Reconciler      health.Options
}

func (o Options) withDefaults() Options {
	if o.StatusInterval <= 0 {
		o.StatusInterval = DefaultStatusInterval
	}
	if o.HistoryInterval <= 0 {
		o.HistoryInterval = DefaultHistoryInterval
	}
	if o.ConsoleInterval <= 0 {
		o.ConsoleInterval = DefaultConsoleInterval
	}
	if o.BucketCount <= 0 {
		o.BucketCount = health.DefaultBucketCount
	}
	return o
}

// Monitor reconciles live status, server history, and cached history into one
// per-service record map, and publishes every change on the bus. A single
// instance is owned by the application root.
type Monitor struct {
	opts   Options
	api    StatusAPI
	store  *histcache.Store
	bus    *statebus.Bus
	clock  clockwork.Clock
	logger logrus.FieldLogger
	rec    *health.Reconciler
	push   *pushchan.Manager

	mu       sync.Mutex
	records  map[string]*health.Record
	consoles map[string]bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a Monitor. A nil dialer disables the push channel and leaves the
// monitor in polling-only operation. Nil clock falls back to the real clock.
func New(opts Options, api StatusAPI, store *histcache.Store, bus *statebus.Bus, dialer pushchan.Dialer, pushOpts pushchan.Options, clock clockwork.Clock, logger logrus.FieldLogger) *Monitor {
	opts = opts.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Monitor{
		opts:     opts,
		api:      api,
		store:    store,
		bus:      bus,
		clock:    clock,
		logger:   logger,
		rec:      health.NewReconciler(opts.Reconciler, clock),
		records:  make(map[string]*health.Record),
		consoles: make(map[string]bool),
	}
	if dialer != nil {
		m.push = pushchan.NewManager(pushOpts, dialer, bus, clock, logger, pushchan.Hooks{
			Snapshot:    m.observeFromPush,
			RefreshJobs: m.refreshJobs,
		})
	}
	return m
}

// Start loads the cached histories, connects the push channel, runs one
// immediate status poll and history fetch, then starts the periodic loops.
// All loops stop when Stop is called or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.runCtx = ctx

	cached := m.store.Load(ctx)
	m.mu.Lock()
	for key, history := range cached {
		m.records[key] = &health.Record{History: history}
	}
	m.mu.Unlock()
	if len(cached) > 0 {
		m.bus.Set(map[string]any{statebus.KeyHistory: m.clock.Now().UnixMilli()})
	}

	if m.push != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			err := m.push.Run(ctx)
			if errors.Is(err, pushchan.ErrReconnectsExhausted) {
				m.logger.Warn("continuing in polling-only operation")
			}
		}()
	}

	m.pollStatus(ctx)
	m.fetchHistory(ctx)

	m.wg.Add(3)
	go m.loop(ctx, m.opts.StatusInterval, m.pollStatus)
	go m.loop(ctx, m.opts.HistoryInterval, m.fetchHistory)
	go m.loop(ctx, m.opts.ConsoleInterval, m.pollConsoles)
}

// Stop cancels the loops and waits for them to drain.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tick(ctx)
		}
	}
}

// pollStatus fetches the live snapshot and records one observation per
// service. Failures are logged and skipped; the next tick retries.
func (m *Monitor) pollStatus(ctx context.Context) {
	services, err := m.api.Snapshot(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("status poll failed")
		return
	}
	m.observe(ctx, services, true)
}

// observeFromPush handles a status snapshot arriving on the push channel. The
// push layer has already published the services fact.
func (m *Monitor) observeFromPush(services map[string]health.ServiceState) {
	m.observe(m.runCtx, services, false)
}

func (m *Monitor) observe(ctx context.Context, services map[string]health.ServiceState, publishServices bool) {
	now := m.clock.Now()

	m.mu.Lock()
	for key, st := range services {
		m.rec.RecordObservation(m.record(key), st.Status, now)
		m.consoles[key] = st.Console
	}
	histories := m.historiesLocked()
	m.mu.Unlock()

	facts := map[string]any{statebus.KeyHistory: now.UnixMilli()}
	if publishServices {
		facts[statebus.KeyServices] = services
	}
	m.bus.Set(facts)
	m.store.Save(ctx, histories)
}

// fetchHistory merges the server's retained history and adopts its uptime
// figures for every service it reports.
func (m *Monitor) fetchHistory(ctx context.Context) {
	resp, err := m.api.History(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("history fetch failed")
		return
	}

	m.mu.Lock()
	for key, serverHistory := range resp.History {
		rec := m.record(key)
		rec.History = m.rec.Merge(rec.History, serverHistory)
	}
	for key, up := range resp.Uptimes {
		up := up
		m.record(key).ServerUptime = &up
	}
	histories := m.historiesLocked()
	m.mu.Unlock()

	m.bus.Set(map[string]any{statebus.KeyHistory: m.clock.Now().UnixMilli()})
	m.store.Save(ctx, histories)
}

// pollConsoles refreshes the console screens of every service whose snapshot
// advertises one, publishing them as a single fact.
func (m *Monitor) pollConsoles(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.consoles))
	for key, has := range m.consoles {
		if has {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()
	if len(keys) == 0 {
		return
	}

	screens := make(map[string]string, len(keys))
	for _, key := range keys {
		screen, err := m.api.Console(ctx, key)
		if err != nil {
			m.logger.WithError(err).WithField("service", key).Debug("console poll failed")
			continue
		}
		screens[key] = screen
	}
	if len(screens) > 0 {
		m.bus.Set(map[string]any{statebus.KeyConsole: screens})
	}
}

// refreshJobs is invoked on push-channel job events.
func (m *Monitor) refreshJobs() {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := m.api.Jobs(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("jobs refresh failed")
		return
	}
	m.bus.Set(map[string]any{statebus.KeyJobs: raw})
}

// record returns the record for key, creating it lazily. Callers hold mu.
func (m *Monitor) record(key string) *health.Record {
	rec, ok := m.records[key]
	if !ok {
		rec = &health.Record{}
		m.records[key] = rec
	}
	return rec
}

// historiesLocked snapshots every non-empty history for a cache save.
// Callers hold mu.
func (m *Monitor) historiesLocked() map[string][]health.Sample {
	out := make(map[string][]health.Sample, len(m.records))
	for key, rec := range m.records {
		if len(rec.History) == 0 {
			continue
		}
		history := make([]health.Sample, len(rec.History))
		copy(history, rec.History)
		out[key] = history
	}
	return out
}

// Buckets returns the fixed-width bucket view of one service's history.
// Unknown keys yield all-unknown buckets.
func (m *Monitor) Buckets(key string) []health.Status {
	m.mu.Lock()
	var history []health.Sample
	if rec, ok := m.records[key]; ok {
		history = make([]health.Sample, len(rec.History))
		copy(history, rec.History)
	}
	m.mu.Unlock()
	return health.ToBuckets(history, m.opts.BucketCount)
}

// Uptime returns the display uptime percentage for one service. Unknown keys
// report 100. The lock is held across the history scan; the poll loops mutate
// the same slice.
func (m *Monitor) Uptime(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Uptime(m.records[key])
}

// Subscribe registers a bus callback for the rendering layer.
func (m *Monitor) Subscribe(fn statebus.Callback) *statebus.Subscription {
	return m.bus.Subscribe(fn)
}

// ConnectionState reports the push-channel state; closed when the push
// channel is disabled.
func (m *Monitor) ConnectionState() pushchan.State {
	if m.push == nil {
		return pushchan.StateClosed
	}
	return m.push.State()
}
