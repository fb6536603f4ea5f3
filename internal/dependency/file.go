package dependency

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
)

const (
	zookeeperService = "zookeeper"
	zookeeperJob     = "zookeeper"
	hdfsService      = "hdfs"
	namenodeJob      = "namenode"
)

// FileLookup reads dependent cluster specs from the same config root as the
// HBase clusters (<root>/zookeeper/<name>.yaml, <root>/hdfs/<name>.yaml).
type FileLookup struct {
	Root string
}

// NewFileLookup creates a FileLookup rooted at root.
func NewFileLookup(root string) *FileLookup {
	return &FileLookup{Root: root}
}

func (l *FileLookup) load(service, name string) (*cluster.Spec, error) {
	spec, err := cluster.Load(l.Root, service, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Dependency(service, fmt.Sprintf("cluster %s is not defined under %s", name, l.Root))
		}
		return nil, err
	}
	return spec, nil
}

// Quorum loads the ZooKeeper ensemble of the named cluster.
func (l *FileLookup) Quorum(_ context.Context, name string) (*Quorum, error) {
	spec, err := l.load(zookeeperService, name)
	if err != nil {
		return nil, err
	}
	job, ok := spec.Jobs[zookeeperJob]
	if !ok || len(job.Hosts) == 0 {
		return nil, apperrors.Dependency(zookeeperService, fmt.Sprintf("cluster %s has no %s job", name, zookeeperJob))
	}
	port, err := basePort(job)
	if err != nil {
		return nil, apperrors.Dependency(zookeeperService, fmt.Sprintf("cluster %s: %v", name, err))
	}
	q := &Quorum{Cluster: name, ClientPort: port}
	for _, a := range job.Hosts {
		q.Hosts = append(q.Hosts, a.Host)
	}
	return q, nil
}

// Filesystem loads the namenodes of the named HDFS cluster.
func (l *FileLookup) Filesystem(_ context.Context, name string) (*Filesystem, error) {
	spec, err := l.load(hdfsService, name)
	if err != nil {
		return nil, err
	}
	job, ok := spec.Jobs[namenodeJob]
	if !ok || len(job.Hosts) == 0 {
		return nil, apperrors.Dependency(hdfsService, fmt.Sprintf("cluster %s has no %s job", name, namenodeJob))
	}
	port, err := basePort(job)
	if err != nil {
		return nil, apperrors.Dependency(hdfsService, fmt.Sprintf("cluster %s: %v", name, err))
	}
	fsys := &Filesystem{
		Name:           name,
		Version:        spec.Cluster.Version,
		EnableSecurity: spec.Cluster.EnableSecurity,
		KerberosRealm:  spec.Cluster.KerberosRealm,
	}
	for _, a := range job.Hosts {
		fsys.NameNodes = append(fsys.NameNodes, Endpoint{
			ID:       a.ID,
			Host:     a.Host,
			RPCPort:  port,
			HTTPPort: port + 1,
		})
	}
	return fsys, nil
}

func basePort(job *cluster.JobSpec) (int, error) {
	switch v := job.Params["base_port"].(type) {
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("base_port is missing")
	default:
		return 0, fmt.Errorf("base_port must be an integer, got %v", v)
	}
}
