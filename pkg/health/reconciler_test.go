package health

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func samplesEqual(a, b []Sample) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeDedupServerWins(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1000))
	r := NewReconciler(Options{}, clock)

	local := []Sample{{Timestamp: 100, Status: StatusHealthy}}
	server := []Sample{{Timestamp: 100, Status: StatusUnhealthy}}

	merged := r.Merge(local, server)
	if len(merged) != 1 {
		t.Fatalf("expected exactly one sample at t=100, got %d", len(merged))
	}
	if merged[0].Status != StatusUnhealthy {
		t.Errorf("expected server sample to win on timestamp conflict, got %s", merged[0].Status)
	}
}

func TestMergeIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	r := NewReconciler(Options{}, clock)

	local := []Sample{
		{Timestamp: 100, Status: StatusHealthy},
		{Timestamp: 300, Status: StatusUnhealthy},
		{Timestamp: 500, Status: StatusHealthy},
	}
	server := []Sample{
		{Timestamp: 200, Status: StatusHealthy},
		{Timestamp: 300, Status: StatusHealthy},
		{Timestamp: 700, Status: StatusUnhealthy},
	}

	merged := r.Merge(local, server)

	for i := 1; i < len(merged); i++ {
		if merged[i].Timestamp <= merged[i-1].Timestamp {
			t.Fatalf("merged history not strictly ascending at index %d: %v", i, merged)
		}
	}

	again := r.Merge(merged, server)
	if !samplesEqual(merged, again) {
		t.Errorf("merge(merge(A,B), B) diverged:\n%v\n%v", merged, again)
	}
	again = r.Merge(local, merged)
	if !samplesEqual(merged, again) {
		t.Errorf("merge(A, merge(A,B)) diverged:\n%v\n%v", merged, again)
	}
	again = r.Merge(merged, merged)
	if !samplesEqual(merged, again) {
		t.Errorf("merge(M, M) diverged:\n%v\n%v", merged, again)
	}
}

func TestMergeRetentionBound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	r := NewReconciler(Options{}, clock)

	cutoff := now.Add(-DefaultRetentionWindow).UnixMilli()

	var local, server []Sample
	// 3000 local samples spanning well past the retention window.
	for i := 0; i < 3000; i++ {
		local = append(local, Sample{
			Timestamp: now.Add(-time.Duration(3000-i) * time.Minute).UnixMilli(),
			Status:    StatusHealthy,
		})
	}
	server = append(server, Sample{Timestamp: now.Add(-25 * time.Hour).UnixMilli(), Status: StatusUnhealthy})

	merged := r.Merge(local, server)
	if len(merged) > DefaultMaxRetainedSamples {
		t.Errorf("merged history exceeds sample cap: %d", len(merged))
	}
	for _, s := range merged {
		if s.Timestamp < cutoff {
			t.Fatalf("sample %d older than retention cutoff %d survived the merge", s.Timestamp, cutoff)
		}
	}
}

func TestMergeSampleCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	r := NewReconciler(Options{MaxRetainedSamples: 10}, clock)

	var local []Sample
	for i := 0; i < 25; i++ {
		local = append(local, Sample{Timestamp: now.Add(-time.Duration(25-i) * time.Second).UnixMilli(), Status: StatusHealthy})
	}

	merged := r.Merge(local, nil)
	if len(merged) != 10 {
		t.Fatalf("expected history capped at 10, got %d", len(merged))
	}
	// The newest samples survive.
	if merged[len(merged)-1].Timestamp != local[len(local)-1].Timestamp {
		t.Errorf("cap dropped the newest sample")
	}
}

func TestRecordObservationDebounce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	r := NewReconciler(Options{}, clock)

	rec := &Record{}
	if !r.RecordObservation(rec, "running", now) {
		t.Fatal("first observation should append")
	}
	if r.RecordObservation(rec, "running", now.Add(5*time.Second)) {
		t.Error("observation 5s after the last should be debounced")
	}
	if len(rec.History) != 1 {
		t.Fatalf("expected a single sample after debounce, got %d", len(rec.History))
	}
	if !r.RecordObservation(rec, "stopped", now.Add(11*time.Second)) {
		t.Error("observation past the debounce window should append")
	}
	if len(rec.History) != 2 {
		t.Fatalf("expected two samples, got %d", len(rec.History))
	}
	if rec.History[1].Status != StatusUnhealthy {
		t.Errorf("expected 'stopped' to classify unhealthy, got %s", rec.History[1].Status)
	}
}

func TestRecordObservationClockBehindHistory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	r := NewReconciler(Options{}, clock)

	rec := &Record{History: []Sample{{Timestamp: now.Add(time.Minute).UnixMilli(), Status: StatusHealthy}}}
	if r.RecordObservation(rec, "running", now) {
		t.Error("observation behind the newest sample must be suppressed")
	}
	if len(rec.History) != 1 {
		t.Fatalf("history mutated: %v", rec.History)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"up", StatusHealthy},
		{"running", StatusHealthy},
		{"Running", StatusHealthy},
		{"OK", StatusHealthy},
		{"healthy", StatusHealthy},
		{"online", StatusHealthy},
		{"active", StatusHealthy},
		{" up ", StatusHealthy},
		{"stopped", StatusUnhealthy},
		{"error", StatusUnhealthy},
		{"degraded", StatusUnhealthy},
		{"", StatusUnhealthy},
	}
	for _, tt := range tests {
		if got := Classify(tt.raw); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestUptimeResolution(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	r := NewReconciler(Options{}, clock)

	history := []Sample{
		{Timestamp: 100, Status: StatusHealthy},
		{Timestamp: 200, Status: StatusHealthy},
		{Timestamp: 300, Status: StatusUnhealthy},
		{Timestamp: 400, Status: StatusHealthy},
	}

	serverUptime := 42.0
	tests := []struct {
		name string
		rec  *Record
		want int
	}{
		{"nil record", nil, 100},
		{"empty history is optimistic", &Record{}, 100},
		{"server figure wins verbatim", &Record{History: history, ServerUptime: &serverUptime}, 42},
		{"local fallback", &Record{History: history}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Uptime(tt.rec); got != tt.want {
				t.Errorf("Uptime() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUptimeRounding(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	r := NewReconciler(Options{}, clock)

	rec := &Record{History: []Sample{
		{Timestamp: 100, Status: StatusHealthy},
		{Timestamp: 200, Status: StatusHealthy},
		{Timestamp: 300, Status: StatusUnhealthy},
	}}
	// 2 of 3 healthy rounds 66.67 up to 67.
	if got := r.Uptime(rec); got != 67 {
		t.Errorf("Uptime() = %d, want 67", got)
	}

	server := 41.5
	rec.ServerUptime = &server
	if got := r.Uptime(rec); got != 42 {
		t.Errorf("Uptime() with server figure = %d, want 42", got)
	}
}
