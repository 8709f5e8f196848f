package pushchan

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/health"
	"fleetpulse/pkg/statebus"
)

// State of the push channel. Owned exclusively by the Manager.
type State string

const (
	StateClosed     State = "closed"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
)

// connectionLost is the connection-fact value published when the reconnect
// budget is exhausted. It is not a State: the machine itself ends closed.
const connectionLost = "lost"

// ErrReconnectsExhausted is returned by Run once the attempt ceiling is
// reached. The UI is expected to prompt for a manual reload at that point.
var ErrReconnectsExhausted = errors.New("push channel reconnect attempts exhausted")

// Handler receives the payload of a dispatched message. Handlers for one
// message type run in registration order on the read goroutine; they are never
// invoked concurrently with each other.
type Handler func(payload json.RawMessage)

// Hooks are callbacks into the owning application for the natively-handled
// message types. Either may be nil.
type Hooks struct {
	// Snapshot receives the decoded service map of a full status snapshot,
	// after the services fact has been published.
	Snapshot func(services map[string]health.ServiceState)
	// RefreshJobs is invoked on every job-lifecycle event.
	RefreshJobs func()
}

// Options configure the connection. Zero values fall back to the defaults.
type Options struct {
	URL                  string
	MaxReconnectAttempts int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
}

const (
	DefaultMaxReconnectAttempts = 5
	DefaultInitialBackoff       = time.Second
	DefaultMaxBackoff           = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	return o
}

// Status reports the connection state with its reconnect bookkeeping.
type Status struct {
	State            State
	ReconnectAttempt int
	CurrentBackoff   time.Duration
}

// Manager owns the lifecycle of the push-channel connection and fans inbound
// messages out to the bus and to registered handlers.
type Manager struct {
	opts   Options
	dialer Dialer
	bus    *statebus.Bus
	clock  clockwork.Clock
	logger logrus.FieldLogger
	hooks  Hooks

	mu             sync.Mutex
	state          State
	conn           Conn
	attempt        int
	currentBackoff time.Duration
	policy         *backoff.ExponentialBackOff
	handlers       map[string][]Handler
}

// NewManager wires a Manager. Nil clock falls back to the real clock.
func NewManager(opts Options, dialer Dialer, bus *statebus.Bus, clock clockwork.Clock, logger logrus.FieldLogger, hooks Hooks) *Manager {
	opts = opts.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.InitialBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = opts.MaxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	return &Manager{
		opts:           opts,
		dialer:         dialer,
		bus:            bus,
		clock:          clock,
		logger:         logger,
		hooks:          hooks,
		state:          StateClosed,
		currentBackoff: opts.InitialBackoff,
		policy:         policy,
		handlers:       make(map[string][]Handler),
	}
}

// On registers a handler for a message type. Registration is expected to
// happen before Run.
func (m *Manager) On(msgType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[msgType] = append(m.handlers[msgType], h)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the connection state with reconnect bookkeeping.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, ReconnectAttempt: m.attempt, CurrentBackoff: m.currentBackoff}
}

// Run connects the push channel and keeps it alive until ctx is cancelled or
// the reconnect budget is exhausted. A successful handshake resets the budget,
// so only consecutive failures count toward the ceiling.
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.setConnecting()
		conn, err := m.dialer.Dial(ctx, m.opts.URL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.WithError(err).Warn("push channel handshake failed")
		} else {
			m.setOpen(conn)
			err = m.readLoop(ctx, conn)
			_ = conn.Close()
			m.setClosed()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.WithError(err).Info("push channel dropped")
		}

		if err := m.waitReconnect(ctx); err != nil {
			return err
		}
	}
}

// Send writes a typed message on the channel. It is a silent no-op whenever
// the channel is not open; callers must not assume delivery.
func (m *Manager) Send(ctx context.Context, msgType string, payload any) {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()
	if state != StateOpen || conn == nil {
		return
	}
	raw, err := EncodeMessage(msgType, payload)
	if err != nil {
		m.logger.WithError(err).Warn("skipping unencodable push message")
		return
	}
	if err := conn.Write(ctx, raw); err != nil {
		// The read loop will notice the broken connection.
		m.logger.WithError(err).Debug("push channel send failed")
	}
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		m.dispatch(raw)
	}
}

// dispatch handles one inbound frame: publish the last-update fact, run
// registered handlers in order, then apply native handling by type. A
// malformed frame is logged and dropped; it never terminates the connection.
func (m *Manager) dispatch(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		m.logger.WithError(err).Warn("dropping malformed push message")
		return
	}

	m.bus.Set(map[string]any{statebus.KeyLastUpdate: m.clock.Now().UnixMilli()})

	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers[env.Type]))
	copy(handlers, m.handlers[env.Type])
	m.mu.Unlock()
	for _, h := range handlers {
		h(env.Payload)
	}

	switch env.Type {
	case TypeStatus:
		var snap struct {
			Services map[string]health.ServiceState `json:"services"`
		}
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			m.logger.WithError(err).Warn("dropping malformed status snapshot")
			return
		}
		m.bus.Set(map[string]any{statebus.KeyServices: snap.Services})
		if m.hooks.Snapshot != nil {
			m.hooks.Snapshot(snap.Services)
		}
	case TypeJob:
		if m.hooks.RefreshJobs != nil {
			m.hooks.RefreshJobs()
		}
	case TypeAlert:
		var alert struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Payload, &alert); err != nil || alert.Message == "" {
			m.logger.Warn("dropping malformed alert message")
			return
		}
		m.bus.Set(map[string]any{statebus.KeyNotification: alert.Message})
	}
}

// waitReconnect sleeps for the next backoff delay, or gives up once the
// attempt ceiling is reached.
func (m *Manager) waitReconnect(ctx context.Context) error {
	delay, ok := m.nextReconnectDelay()
	if !ok {
		m.giveUp()
		return ErrReconnectsExhausted
	}
	m.logger.WithFields(logrus.Fields{
		"attempt": m.Status().ReconnectAttempt,
		"delay":   delay,
	}).Info("scheduling push channel reconnect")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(delay):
		return nil
	}
}

// nextReconnectDelay advances the attempt counter and returns the delay for
// this attempt, or ok=false once the ceiling is reached.
func (m *Manager) nextReconnectDelay() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt >= m.opts.MaxReconnectAttempts {
		return 0, false
	}
	m.attempt++
	m.currentBackoff = m.policy.NextBackOff()
	return m.currentBackoff, true
}

func (m *Manager) setConnecting() {
	m.mu.Lock()
	m.state = StateConnecting
	m.conn = nil
	m.mu.Unlock()
	m.bus.Set(map[string]any{statebus.KeyConnection: string(StateConnecting)})
}

// setOpen records the live connection and resets the reconnect budget: the
// attempt counter restarts from zero and the backoff returns to its base.
func (m *Manager) setOpen(conn Conn) {
	m.mu.Lock()
	m.state = StateOpen
	m.conn = conn
	m.attempt = 0
	m.policy.Reset()
	m.currentBackoff = m.opts.InitialBackoff
	m.mu.Unlock()
	m.logger.Info("push channel open")
	m.bus.Set(map[string]any{statebus.KeyConnection: string(StateOpen)})
}

func (m *Manager) setClosed() {
	m.mu.Lock()
	m.state = StateClosed
	m.conn = nil
	m.mu.Unlock()
	m.bus.Set(map[string]any{statebus.KeyConnection: string(StateClosed)})
}

// giveUp publishes the terminal connection-lost facts. Reconciled history is
// left untouched; the process degrades to polling-only operation.
func (m *Manager) giveUp() {
	m.mu.Lock()
	m.state = StateClosed
	m.conn = nil
	m.mu.Unlock()
	m.logger.Error("push channel lost after exhausting reconnect attempts")
	m.bus.Set(map[string]any{
		statebus.KeyConnection:   connectionLost,
		statebus.KeyNotification: "Connection to the server was lost. Reload the page to reconnect.",
	})
}
