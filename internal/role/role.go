// Package role defines the HBase job roles, their parameter schemas and the
// fixed order in which they are started and stopped.
package role

import (
	"strconv"

	"github.com/hbctl/hbctl/internal/apperrors"
)

const (
	RegionServer = "regionserver"
	Master       = "master"
)

// Role is the static definition of one kind of HBase process.
type Role interface {
	Name() string
	// Schema lists the parameters specific to this role.
	Schema() Schema
	// EntryPoint is the JVM main class.
	EntryPoint() string
	// RuntimeParams returns the site entries this role contributes, computed
	// from its base port.
	RuntimeParams(basePort int) map[string]string
}

// CommonSchema applies to every role in addition to the role schema.
var CommonSchema = Schema{
	Required("base_port", KindInt),
	Optional("xmx", KindInt, 1024),
	Optional("xms", KindInt, 1024),
	Optional("xmn", KindInt, 512),
	Optional("max_direct_memory", KindInt, 1024),
	Optional("max_perm_size", KindInt, 256),
	Optional("metrics_period", KindInt, 10),
}

// InfoPort is the HTTP status port of a job.
func InfoPort(basePort int) int {
	return basePort + 1
}

type regionServer struct{}

func (regionServer) Name() string       { return RegionServer }
func (regionServer) Schema() Schema     { return nil }
func (regionServer) EntryPoint() string { return "org.apache.hadoop.hbase.regionserver.HRegionServer" }

func (regionServer) RuntimeParams(basePort int) map[string]string {
	return map[string]string{
		"hbase.regionserver.port":      strconv.Itoa(basePort),
		"hbase.regionserver.info.port": strconv.Itoa(InfoPort(basePort)),
	}
}

type master struct{}

func (master) Name() string       { return Master }
func (master) EntryPoint() string { return "org.apache.hadoop.hbase.master.HMaster" }

func (master) Schema() Schema {
	return Schema{Required("hdfs_root", KindString)}
}

func (master) RuntimeParams(basePort int) map[string]string {
	return map[string]string{
		"hbase.master.port":      strconv.Itoa(basePort),
		"hbase.master.info.port": strconv.Itoa(InfoPort(basePort)),
	}
}

// canonical is the start order: region servers must be up before the master.
var canonical = []Role{regionServer{}, master{}}

var registry = func() map[string]Role {
	m := make(map[string]Role, len(canonical))
	for _, r := range canonical {
		m[r.Name()] = r
	}
	return m
}()

// All returns every role in start order.
func All() []Role {
	out := make([]Role, len(canonical))
	copy(out, canonical)
	return out
}

// Lookup returns the role with the given name.
func Lookup(name string) (Role, bool) {
	r, ok := registry[name]
	return r, ok
}

// StartOrder returns the roles named in filter in start order. The filter only
// selects roles; it never changes their relative order. An empty filter selects all.
func StartOrder(filter []string) ([]Role, error) {
	if len(filter) == 0 {
		return All(), nil
	}
	want := make(map[string]bool, len(filter))
	for _, name := range filter {
		if _, ok := registry[name]; !ok {
			return nil, apperrors.Validationf("job", "unknown job %q", name)
		}
		want[name] = true
	}
	var out []Role
	for _, r := range canonical {
		if want[r.Name()] {
			out = append(out, r)
		}
	}
	return out, nil
}

// StopOrder is the exact reverse of StartOrder.
func StopOrder(filter []string) ([]Role, error) {
	roles, err := StartOrder(filter)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(roles)-1; i < j; i, j = i+1, j-1 {
		roles[i], roles[j] = roles[j], roles[i]
	}
	return roles, nil
}

// Names returns the names of roles.
func Names(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Name()
	}
	return out
}
