package health

import (
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default history bounds. A 30s sampling cadence over 24 hours yields 2880
// samples, so the cap and the retention window describe the same horizon.
const (
	DefaultMaxRetainedSamples = 2880
	DefaultRetentionWindow    = 24 * time.Hour
	DefaultDebounceWindow     = 10 * time.Second
	DefaultBucketCount        = 24
)

// Options bound a service history. Zero values fall back to the defaults.
type Options struct {
	MaxRetainedSamples int
	RetentionWindow    time.Duration
	DebounceWindow     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetainedSamples <= 0 {
		o.MaxRetainedSamples = DefaultMaxRetainedSamples
	}
	if o.RetentionWindow <= 0 {
		o.RetentionWindow = DefaultRetentionWindow
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	return o
}

// Retain returns the samples of history that fall inside the retention window
// ending at now, capped at max entries by dropping the oldest. History must be
// sorted ascending by timestamp.
func Retain(history []Sample, now time.Time, window time.Duration, max int) []Sample {
	cutoff := now.Add(-window).UnixMilli()
	i := 0
	for i < len(history) && history[i].Timestamp < cutoff {
		i++
	}
	history = history[i:]
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

// Reconciler merges locally-observed sample sequences with the
// server-authoritative history into one deduplicated, time-ordered sequence,
// and resolves which uptime figure to trust.
type Reconciler struct {
	opts  Options
	clock clockwork.Clock
}

// NewReconciler creates a Reconciler with the given bounds and clock. A nil
// clock falls back to the real clock.
func NewReconciler(opts Options, clock clockwork.Clock) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{opts: opts.withDefaults(), clock: clock}
}

// Merge builds the deduplicated union of a local and a server sample sequence,
// sorted ascending by timestamp and bounded by the retention window and sample
// cap. On a timestamp collision the server sample wins: server-side history
// survives tab closure and is treated as ground truth.
//
// Merge is idempotent: feeding its output back in as either argument yields
// the same sequence again.
func (r *Reconciler) Merge(local, server []Sample) []Sample {
	union := make(map[int64]Sample, len(local)+len(server))
	for _, s := range local {
		union[s.Timestamp] = s
	}
	for _, s := range server {
		union[s.Timestamp] = s
	}

	merged := make([]Sample, 0, len(union))
	for _, s := range union {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })

	return Retain(merged, r.clock.Now(), r.opts.RetentionWindow, r.opts.MaxRetainedSamples)
}

// RecordObservation appends a locally-observed sample derived from the raw
// service state, unless the newest sample in the record is younger than the
// debounce window. A most-recent sample at or ahead of now (server history can
// run ahead of the local clock) also suppresses the append so the history
// stays sorted. Reports whether a sample was appended.
func (r *Reconciler) RecordObservation(rec *Record, raw string, now time.Time) bool {
	ts := now.UnixMilli()
	if n := len(rec.History); n > 0 {
		last := rec.History[n-1].Timestamp
		if ts-last < r.opts.DebounceWindow.Milliseconds() {
			return false
		}
	}
	rec.History = append(rec.History, Sample{Timestamp: ts, Status: Classify(raw)})
	rec.History = Retain(rec.History, now, r.opts.RetentionWindow, r.opts.MaxRetainedSamples)
	return true
}

// Uptime resolves the uptime percentage for a record. The server-supplied
// figure wins verbatim (rounded to the nearest integer) when present; otherwise
// the retained history is counted. An empty history reads as 100: no data is
// not treated as down.
func (r *Reconciler) Uptime(rec *Record) int {
	if rec == nil {
		return 100
	}
	if rec.ServerUptime != nil {
		return int(math.Round(*rec.ServerUptime))
	}
	if len(rec.History) == 0 {
		return 100
	}
	healthy := 0
	for _, s := range rec.History {
		if s.Status == StatusHealthy {
			healthy++
		}
	}
	return int(math.Round(100 * float64(healthy) / float64(len(rec.History))))
}
