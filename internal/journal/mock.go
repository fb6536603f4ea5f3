package journal

import (
	"context"
	"sync"
)

// MockRecorder is a test double for the Recorder interface.
type MockRecorder struct {
	mu sync.Mutex

	RecordErr error

	// Track calls
	Entries []Entry
	Closed  bool
}

func (m *MockRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockRecorder) Recent(_ context.Context, clusterName string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Entries[i].Cluster == clusterName {
			out = append(out, m.Entries[i])
		}
	}
	return out, nil
}

func (m *MockRecorder) Close(_ context.Context) error {
	m.Closed = true
	return nil
}
