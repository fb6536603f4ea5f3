package dependency

import (
	"context"

	"github.com/hbctl/hbctl/internal/apperrors"
)

// MockLookup is a test double for the Lookup interface.
type MockLookup struct {
	Quorums     map[string]*Quorum
	Filesystems map[string]*Filesystem
	Err         error

	// Track calls
	QuorumCalls     []string
	FilesystemCalls []string
}

func (m *MockLookup) Quorum(_ context.Context, name string) (*Quorum, error) {
	m.QuorumCalls = append(m.QuorumCalls, name)
	if m.Err != nil {
		return nil, m.Err
	}
	q, ok := m.Quorums[name]
	if !ok {
		return nil, apperrors.Dependency("zookeeper", "unknown cluster "+name)
	}
	return q, nil
}

func (m *MockLookup) Filesystem(_ context.Context, name string) (*Filesystem, error) {
	m.FilesystemCalls = append(m.FilesystemCalls, name)
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.Filesystems[name]
	if !ok {
		return nil, apperrors.Dependency("hdfs", "unknown cluster "+name)
	}
	return f, nil
}
