// Package histcache persists per-service sample histories in a key-value
// store so a dashboard session can pick up where the previous one left off.
// Persistence is best-effort: every failure path degrades to an empty or
// unsaved history, never to an error the caller has to handle.
package histcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/health"
)

// KV is the minimal key-value surface the store needs. Get returns (nil, nil)
// when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store loads and saves the {serviceKey -> history} blob under a single key,
// pruning samples outside the retention window on both paths.
type Store struct {
	kv        KV
	key       string
	retention time.Duration
	max       int
	clock     clockwork.Clock
	logger    logrus.FieldLogger

	// diag observes swallowed failures so they stay visible to callers and
	// test suites without breaking the never-throw contract.
	diag func(error)
}

// NewStore creates a Store writing under key. Zero retention/max fall back to
// the health package defaults; nil clock falls back to the real clock; diag
// may be nil.
func NewStore(kv KV, key string, retention time.Duration, max int, clock clockwork.Clock, logger logrus.FieldLogger, diag func(error)) *Store {
	if retention <= 0 {
		retention = health.DefaultRetentionWindow
	}
	if max <= 0 {
		max = health.DefaultMaxRetainedSamples
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		kv:        kv,
		key:       key,
		retention: retention,
		max:       max,
		clock:     clock,
		logger:    logger,
		diag:      diag,
	}
}

// Load reads the persisted histories. An absent, unparsable, or unreadable
// blob yields an empty map: visualization is best-effort and must never block
// on a corrupt cache. Samples outside the retention window are dropped.
func (s *Store) Load(ctx context.Context) map[string][]health.Sample {
	empty := map[string][]health.Sample{}

	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.report(fmt.Errorf("failed to read history cache %q: %w", s.key, err))
		return empty
	}
	if raw == nil {
		return empty
	}

	var histories map[string][]health.Sample
	if err := json.Unmarshal(raw, &histories); err != nil {
		s.report(fmt.Errorf("discarding corrupt history cache %q: %w", s.key, err))
		return empty
	}

	now := s.clock.Now()
	for key, history := range histories {
		sort.Slice(history, func(i, j int) bool { return history[i].Timestamp < history[j].Timestamp })
		history = health.Retain(history, now, s.retention, s.max)
		if len(history) == 0 {
			delete(histories, key)
			continue
		}
		histories[key] = history
	}
	return histories
}

// Save writes the histories after re-applying the retention filter, so a
// long-lived session cannot grow the blob without bound. Write failures are
// reported to the diagnostics hook and otherwise ignored; the in-memory state
// stays authoritative for the session. Callers are expected to batch saves
// rather than call once per sample.
func (s *Store) Save(ctx context.Context, histories map[string][]health.Sample) {
	now := s.clock.Now()
	pruned := make(map[string][]health.Sample, len(histories))
	for key, history := range histories {
		history = health.Retain(history, now, s.retention, s.max)
		if len(history) > 0 {
			pruned[key] = history
		}
	}

	raw, err := json.Marshal(pruned)
	if err != nil {
		s.report(fmt.Errorf("failed to encode history cache: %w", err))
		return
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.report(fmt.Errorf("failed to write history cache %q: %w", s.key, err))
	}
}

func (s *Store) report(err error) {
	if s.logger != nil {
		s.logger.WithError(err).Warn("history cache unavailable")
	}
	if s.diag != nil {
		s.diag(err)
	}
}
