// Package resolve turns a ClusterSpec into the fully typed, dependency
// resolved configuration every lifecycle command works from.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/dependency"
	"github.com/hbctl/hbctl/internal/role"
)

// Service is the service name HBase clusters are stored under.
const Service = "hbase"

const defaultKerberosUser = "hbase"

// Options carries values that come from the tool config rather than the cluster spec.
type Options struct {
	RemoteUser string
}

// Security is the cluster wide Kerberos and ACL setup.
type Security struct {
	Enabled  bool
	ACL      bool
	Realm    string
	Username string
}

// Principal is the service principal without realm, e.g. "hbase/hadoop".
func (s Security) Principal() string {
	return s.Username + "/hadoop"
}

// JVM holds heap sizing in MB.
type JVM struct {
	Xmx             int
	Xms             int
	Xmn             int
	MaxDirectMemory int
	MaxPermSize     int
}

// Job is one role after schema validation.
type Job struct {
	Role          role.Role
	BasePort      int
	Tasks         []cluster.Task
	SiteXML       map[string]string
	JVM           JVM
	MetricsPeriod int
	Params        role.Values
}

// Name returns the role name.
func (j *Job) Name() string {
	return j.Role.Name()
}

// Select returns the tasks whose ids are in ids, in the job's own order.
// An empty ids selects every task. An id the job does not have is a validation error.
func (j *Job) Select(ids []int) ([]cluster.Task, error) {
	if len(ids) == 0 {
		out := make([]cluster.Task, len(j.Tasks))
		copy(out, j.Tasks)
		return out, nil
	}
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []cluster.Task
	for _, t := range j.Tasks {
		if want[t.ID] {
			out = append(out, t)
			delete(want, t.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]int, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		sort.Ints(missing)
		return nil, apperrors.Validationf("task", "job %s has no task %v", j.Name(), missing)
	}
	return out, nil
}

// Task returns the task with the given id.
func (j *Job) Task(id int) (cluster.Task, bool) {
	for _, t := range j.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return cluster.Task{}, false
}

// InfoURL is the HTTP status page of a task.
func (j *Job) InfoURL(host string) string {
	return fmt.Sprintf("http://%s:%d", host, role.InfoPort(j.BasePort))
}

// Cluster is a resolved HBase cluster.
type Cluster struct {
	Name           string
	Version        string
	Security       Security
	GangliaAddress string
	SiteXML        map[string]string
	// HDFSRoot is master.hdfs_root without the trailing slash.
	HDFSRoot   string
	Quorum     *dependency.Quorum
	Filesystem *dependency.Filesystem
	RemoteUser string
	Jobs       map[string]*Job
}

// Job returns the resolved job for a role name.
func (c *Cluster) Job(name string) (*Job, error) {
	j, ok := c.Jobs[name]
	if !ok {
		return nil, apperrors.Validationf("job", "cluster %s has no job %q", c.Name, name)
	}
	return j, nil
}

// Hosts returns every distinct host of the given roles, first occurrence wins.
func (c *Cluster) Hosts(roles []role.Role) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range roles {
		j, ok := c.Jobs[r.Name()]
		if !ok {
			continue
		}
		for _, t := range j.Tasks {
			if !seen[t.Host] {
				seen[t.Host] = true
				out = append(out, t.Host)
			}
		}
	}
	return out
}

// Resolve validates spec and looks up its ZooKeeper and HDFS dependencies.
// Schema problems are reported before any lookup is attempted.
func Resolve(ctx context.Context, spec *cluster.Spec, lookup dependency.Lookup, opts Options) (*Cluster, error) {
	c := &Cluster{
		Name:           spec.Cluster.Name,
		Version:        spec.Cluster.Version,
		GangliaAddress: spec.Cluster.GangliaAddress,
		SiteXML:        copyMap(spec.Cluster.SiteXML),
		RemoteUser:     opts.RemoteUser,
		Jobs:           make(map[string]*Job, len(spec.Jobs)),
		Security: Security{
			Enabled:  spec.Cluster.EnableSecurity,
			ACL:      spec.Cluster.EnableACL,
			Realm:    spec.Cluster.KerberosRealm,
			Username: spec.Cluster.KerberosUsername,
		},
	}
	if c.Security.Username == "" {
		c.Security.Username = defaultKerberosUser
	}

	if err := c.resolveJobs(spec); err != nil {
		return nil, err
	}

	if spec.Cluster.ZKCluster == "" {
		return nil, apperrors.Dependency("cluster.zk_cluster", fmt.Sprintf("hbase cluster %s must depend on a zookeeper cluster", c.Name))
	}

	hdfsRoot := c.Jobs[role.Master].Params.String("hdfs_root")
	u, err := url.Parse(hdfsRoot)
	if err != nil || u.Scheme != "hdfs" || u.Host == "" {
		return nil, apperrors.Dependency("jobs.master.hdfs_root", fmt.Sprintf("only hdfs is supported as data root: %q", hdfsRoot))
	}
	c.HDFSRoot = strings.TrimRight(hdfsRoot, "/")

	if c.Quorum, err = lookup.Quorum(ctx, spec.Cluster.ZKCluster); err != nil {
		return nil, err
	}
	if c.Filesystem, err = lookup.Filesystem(ctx, u.Host); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cluster) resolveJobs(spec *cluster.Spec) error {
	var result *multierror.Error

	var unknown []string
	for name := range spec.Jobs {
		if _, ok := role.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		result = multierror.Append(result, fmt.Errorf("jobs.%s: unknown job", name))
	}

	for _, r := range role.All() {
		js, ok := spec.Jobs[r.Name()]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("jobs.%s: job is not defined", r.Name()))
			continue
		}
		job, err := resolveJob(r, js)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		c.Jobs[r.Name()] = job
	}

	if err := result.ErrorOrNil(); err != nil {
		return apperrors.Validation("jobs", fmt.Sprintf("cluster %s: %s", c.Name, err.Error()))
	}
	return nil
}

func resolveJob(r role.Role, js *cluster.JobSpec) (*Job, error) {
	schema := append(append(role.Schema{}, role.CommonSchema...), r.Schema()...)
	values, err := schema.Validate("jobs."+r.Name(), js.Params)
	if err != nil {
		return nil, err
	}
	if len(js.Hosts) == 0 {
		return nil, fmt.Errorf("jobs.%s.hosts: at least one host is required", r.Name())
	}

	job := &Job{
		Role:     r,
		BasePort: values.Int("base_port"),
		SiteXML:  copyMap(js.SiteXML),
		JVM: JVM{
			Xmx:             values.Int("xmx"),
			Xms:             values.Int("xms"),
			Xmn:             values.Int("xmn"),
			MaxDirectMemory: values.Int("max_direct_memory"),
			MaxPermSize:     values.Int("max_perm_size"),
		},
		MetricsPeriod: values.Int("metrics_period"),
		Params:        values,
	}
	for _, a := range js.Hosts {
		job.Tasks = append(job.Tasks, cluster.Task{Role: r.Name(), ID: a.ID, Host: a.Host})
	}
	return job, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
