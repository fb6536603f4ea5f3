package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Spec is the declarative description of one cluster of a service, as written by operators.
type Spec struct {
	Cluster Settings            `yaml:"cluster"`
	Jobs    map[string]*JobSpec `yaml:"jobs"`
}

// Settings holds cluster-wide attributes shared by every job.
type Settings struct {
	Name             string            `yaml:"name"`
	Version          string            `yaml:"version"`
	ZKCluster        string            `yaml:"zk_cluster,omitempty"`
	EnableSecurity   bool              `yaml:"enable_security,omitempty"`
	EnableACL        bool              `yaml:"enable_acl,omitempty"`
	KerberosRealm    string            `yaml:"kerberos_realm,omitempty"`
	KerberosUsername string            `yaml:"kerberos_username,omitempty"`
	GangliaAddress   string            `yaml:"ganglia_address,omitempty"`
	SiteXML          map[string]string `yaml:"site_xml,omitempty"`
}

// JobSpec describes one role of the cluster. Params collects every typed
// parameter (base_port, heap sizes, role specific keys) for schema validation.
type JobSpec struct {
	Hosts   TaskMap           `yaml:"hosts"`
	SiteXML map[string]string `yaml:"site_xml,omitempty"`
	Params  map[string]any    `yaml:",inline"`
}

// Task is a single instance of a role pinned to a host.
type Task struct {
	Role string
	ID   int
	Host string
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%d@%s", t.Role, t.ID, t.Host)
}

// Assignment is one task id to host entry.
type Assignment struct {
	ID   int
	Host string
}

// TaskMap is an ordered task id to host mapping. File order is the default
// iteration order.
type TaskMap []Assignment

// UnmarshalYAML decodes a mapping node, keeping key order and rejecting duplicates.
func (m *TaskMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: hosts must be a mapping of task id to host", node.Line)
	}
	seen := make(map[int]bool, len(node.Content)/2)
	out := make(TaskMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		id, err := strconv.Atoi(key.Value)
		if err != nil {
			return fmt.Errorf("line %d: task id %q is not an integer", key.Line, key.Value)
		}
		if seen[id] {
			return fmt.Errorf("line %d: duplicate task id %d", key.Line, id)
		}
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return fmt.Errorf("line %d: task %d has no host", val.Line, id)
		}
		seen[id] = true
		out = append(out, Assignment{ID: id, Host: val.Value})
	}
	*m = out
	return nil
}

// MarshalYAML writes the mapping back in the same order.
func (m TaskMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(a.ID)},
			&yaml.Node{Kind: yaml.ScalarNode, Value: a.Host},
		)
	}
	return node, nil
}

// Host returns the host assigned to id.
func (m TaskMap) Host(id int) (string, bool) {
	for _, a := range m {
		if a.ID == id {
			return a.Host, true
		}
	}
	return "", false
}

// Path returns where the spec of a cluster lives under the config root.
func Path(root, service, name string) string {
	return filepath.Join(root, service, name+".yaml")
}

// Load reads the spec of the named cluster of a service.
func Load(root, service, name string) (*Spec, error) {
	path := Path(root, service, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s cluster %s: %w", service, name, err)
	}
	return Parse(data, name)
}

// Parse decodes a spec. An empty cluster name is filled from the file name.
func Parse(data []byte, name string) (*Spec, error) {
	s := &Spec{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing cluster %s: %w", name, err)
	}
	if s.Cluster.Name == "" {
		s.Cluster.Name = name
	}
	if s.Jobs == nil {
		s.Jobs = make(map[string]*JobSpec)
	}
	for job, js := range s.Jobs {
		if js == nil {
			return nil, fmt.Errorf("parsing cluster %s: job %s is empty", name, job)
		}
	}
	return s, nil
}
