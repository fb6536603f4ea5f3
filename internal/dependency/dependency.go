// Package dependency resolves the external services an HBase cluster is
// configured against: its ZooKeeper quorum and its HDFS cluster.
package dependency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Lookup is a read-only source of dependent service endpoints.
type Lookup interface {
	Quorum(ctx context.Context, cluster string) (*Quorum, error)
	Filesystem(ctx context.Context, cluster string) (*Filesystem, error)
}

// Quorum describes a ZooKeeper ensemble.
type Quorum struct {
	Cluster    string
	Hosts      []string
	ClientPort int
}

// HostList is the comma separated ensemble used by hbase.zookeeper.quorum.
func (q *Quorum) HostList() string {
	return strings.Join(q.Hosts, ",")
}

// Filesystem describes an HDFS cluster as a client sees it.
type Filesystem struct {
	Name           string
	Version        string
	EnableSecurity bool
	KerberosRealm  string
	NameNodes      []Endpoint
}

// Endpoint is one namenode.
type Endpoint struct {
	ID       int
	Host     string
	RPCPort  int
	HTTPPort int
}

// Name is the namenode id used in HA client keys (host0, host1...).
func (e Endpoint) Name() string {
	return "host" + strconv.Itoa(e.ID)
}

// RPCAddress is host:rpc_port.
func (e Endpoint) RPCAddress() string {
	return fmt.Sprintf("%s:%d", e.Host, e.RPCPort)
}

// HTTPAddress is host:http_port.
func (e Endpoint) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", e.Host, e.HTTPPort)
}
