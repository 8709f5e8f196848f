package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"fleetpulse/pkg/health"
	"fleetpulse/pkg/poll"
)

// ScriptedBackend is a reusable fake that implements monitor.StatusAPI for
// tests. Configure the *Return/*Error fields, then assert on the call
// counters.
type ScriptedBackend struct {
	mu sync.Mutex

	SnapshotReturn map[string]health.ServiceState
	SnapshotError  error
	HistoryReturn  poll.HistoryResponse
	HistoryError   error
	ConsoleReturn  map[string]string
	ConsoleError   error
	JobsReturn     json.RawMessage
	JobsError      error

	SnapshotCalls int
	HistoryCalls  int
	ConsoleCalls  []string
	JobsCalls     int
}

func (s *ScriptedBackend) Snapshot(ctx context.Context) (map[string]health.ServiceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SnapshotCalls++
	return s.SnapshotReturn, s.SnapshotError
}

func (s *ScriptedBackend) History(ctx context.Context) (poll.HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HistoryCalls++
	return s.HistoryReturn, s.HistoryError
}

func (s *ScriptedBackend) Console(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConsoleCalls = append(s.ConsoleCalls, key)
	return s.ConsoleReturn[key], s.ConsoleError
}

func (s *ScriptedBackend) Jobs(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JobsCalls++
	return s.JobsReturn, s.JobsError
}

// SetSnapshot swaps the scripted snapshot while the backend is in use.
func (s *ScriptedBackend) SetSnapshot(services map[string]health.ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SnapshotReturn = services
}

// Counts returns the snapshot and history call counters.
func (s *ScriptedBackend) Counts() (snapshots, histories int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SnapshotCalls, s.HistoryCalls
}
