// Package supervisor talks to the process supervisor agent running on every
// host. One Client addresses one job (service, cluster, role) on one host.
package supervisor

import (
	"context"
	"strings"
)

// RunState is the supervisor's view of a job process.
type RunState int

const (
	Unknown RunState = iota
	Stopped
	Starting
	Running
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether the process is up or coming up.
func (s RunState) Active() bool {
	return s == Starting || s == Running
}

// ParseRunState maps a supervisor process state name. BACKOFF is a start
// retry and counts as Starting; EXITED and FATAL count as Stopped.
func ParseRunState(s string) RunState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STOPPED", "EXITED", "FATAL":
		return Stopped
	case "STARTING", "BACKOFF":
		return Starting
	case "RUNNING":
		return Running
	case "STOPPING":
		return Stopping
	default:
		return Unknown
	}
}

// Package identifies the tarball a host should fetch on install.
type Package struct {
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
	Name     string `json:"package_name"`
	Checksum string `json:"checksum"`
	URL      string `json:"url"`
}

// LaunchRequest is everything the supervisor needs to (re)start a job.
type LaunchRequest struct {
	Artifact    string            `json:"artifact"`
	Script      string            `json:"script"`
	ConfigFiles map[string]string `json:"config_files"`
	HTTPURL     string            `json:"http_url"`
}

// Client is the per (host, job) supervisor API.
type Client interface {
	AvailableDataDirs(ctx context.Context) ([]string, error)
	LogDir(ctx context.Context) (string, error)
	RunDir(ctx context.Context) (string, error)
	Install(ctx context.Context, pkg Package) error
	Bootstrap(ctx context.Context, artifact, token string) error
	Start(ctx context.Context, req LaunchRequest) error
	Stop(ctx context.Context) error
	Cleanup(ctx context.Context, token string) error
	Status(ctx context.Context) (RunState, error)
}

// Dialer hands out clients for a job on a host.
type Dialer interface {
	For(host, job string) Client
}
