package supervisor

import (
	"context"
	"fmt"
	"sync"
)

// Call is one recorded supervisor call.
type Call struct {
	Op   string
	Job  string
	Host string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s@%s)", c.Op, c.Job, c.Host)
}

// MockDialer is a test double for Dialer. Every client it hands out records
// into the same call log, so tests can assert the cross-host order.
type MockDialer struct {
	mu sync.Mutex

	DataDirs []string
	LogDirs  string
	RunDirs  string

	// Errors makes an op fail on a host; the key is "op@host" (e.g. "stop@h2").
	Errors map[string]error
	// StatusFunc overrides the reported state. n counts status calls per job and host.
	StatusFunc func(job, host string, n int) RunState

	// Track calls
	Calls    []Call
	Launches []LaunchRequest
	Installs []Package
	Tokens   []string

	states      map[string]RunState
	statusCalls map[string]int
}

// NewMockDialer creates a mock whose jobs all start out Running.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		DataDirs: []string{"/home/work/data/hbase"},
		LogDirs:  "/home/work/log/hbase",
		RunDirs:  "/home/work/app/hbase",
	}
}

func (m *MockDialer) For(host, job string) Client {
	return &mockClient{dialer: m, host: host, job: job}
}

// Ops returns the recorded calls as "op(job@host)" strings, optionally keeping only the given ops.
func (m *MockDialer) Ops(only ...string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := make(map[string]bool, len(only))
	for _, op := range only {
		keep[op] = true
	}
	var out []string
	for _, c := range m.Calls {
		if len(keep) == 0 || keep[c.Op] {
			out = append(out, c.String())
		}
	}
	return out
}

func (m *MockDialer) record(op, job, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: op, Job: job, Host: host})
	if err := m.Errors[op+"@"+host]; err != nil {
		return err
	}
	return nil
}

func (m *MockDialer) setState(job, host string, s RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = make(map[string]RunState)
	}
	m.states[job+"@"+host] = s
}

func (m *MockDialer) state(job, host string) RunState {
	m.mu.Lock()
	key := job + "@" + host
	if m.statusCalls == nil {
		m.statusCalls = make(map[string]int)
	}
	m.statusCalls[key]++
	n := m.statusCalls[key]
	s, ok := m.states[key]
	fn := m.StatusFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(job, host, n)
	}
	if !ok {
		return Running
	}
	return s
}

type mockClient struct {
	dialer *MockDialer
	host   string
	job    string
}

func (c *mockClient) AvailableDataDirs(_ context.Context) ([]string, error) {
	if err := c.dialer.record("data_dirs", c.job, c.host); err != nil {
		return nil, err
	}
	return c.dialer.DataDirs, nil
}

func (c *mockClient) LogDir(_ context.Context) (string, error) {
	if err := c.dialer.record("log_dir", c.job, c.host); err != nil {
		return "", err
	}
	return c.dialer.LogDirs + "/" + c.job, nil
}

func (c *mockClient) RunDir(_ context.Context) (string, error) {
	if err := c.dialer.record("run_dir", c.job, c.host); err != nil {
		return "", err
	}
	return c.dialer.RunDirs + "/" + c.job, nil
}

func (c *mockClient) Install(_ context.Context, pkg Package) error {
	if err := c.dialer.record("install", c.job, c.host); err != nil {
		return err
	}
	c.dialer.mu.Lock()
	c.dialer.Installs = append(c.dialer.Installs, pkg)
	c.dialer.mu.Unlock()
	return nil
}

func (c *mockClient) Bootstrap(_ context.Context, _, token string) error {
	if err := c.dialer.record("bootstrap", c.job, c.host); err != nil {
		return err
	}
	c.dialer.mu.Lock()
	c.dialer.Tokens = append(c.dialer.Tokens, token)
	c.dialer.mu.Unlock()
	return nil
}

func (c *mockClient) Start(_ context.Context, req LaunchRequest) error {
	if err := c.dialer.record("start", c.job, c.host); err != nil {
		return err
	}
	c.dialer.mu.Lock()
	c.dialer.Launches = append(c.dialer.Launches, req)
	c.dialer.mu.Unlock()
	c.dialer.setState(c.job, c.host, Running)
	return nil
}

func (c *mockClient) Stop(_ context.Context) error {
	if err := c.dialer.record("stop", c.job, c.host); err != nil {
		return err
	}
	c.dialer.setState(c.job, c.host, Stopped)
	return nil
}

func (c *mockClient) Cleanup(_ context.Context, token string) error {
	if err := c.dialer.record("cleanup", c.job, c.host); err != nil {
		return err
	}
	c.dialer.mu.Lock()
	c.dialer.Tokens = append(c.dialer.Tokens, token)
	c.dialer.mu.Unlock()
	return nil
}

func (c *mockClient) Status(_ context.Context) (RunState, error) {
	if err := c.dialer.record("status", c.job, c.host); err != nil {
		return Unknown, err
	}
	return c.dialer.state(c.job, c.host), nil
}
