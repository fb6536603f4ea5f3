// Package testutil provides shared fixtures for lifecycle tests.
package testutil

import (
	"context"
	"testing"

	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/dependency"
	"github.com/hbctl/hbctl/internal/resolve"
)

// SpecYAML is a small secure-off cluster with three region servers and one master.
const SpecYAML = `cluster:
  name: hbase-test
  version: 0.94.11
  zk_cluster: zk-test
  site_xml:
    hbase.hregion.max.filesize: "10737418240"
jobs:
  regionserver:
    base_port: 12600
    xmx: 4096
    hosts:
      0: 10.0.0.1
      1: 10.0.0.2
      2: 10.0.0.3
  master:
    base_port: 12500
    hdfs_root: hdfs://hdfs-test/
    hosts:
      0: 10.0.0.10
`

// Lookup returns a mock dependency lookup that knows zk-test and hdfs-test.
func Lookup() *dependency.MockLookup {
	return &dependency.MockLookup{
		Quorums: map[string]*dependency.Quorum{
			"zk-test": {Cluster: "zk-test", Hosts: []string{"zk1", "zk2", "zk3"}, ClientPort: 2181},
		},
		Filesystems: map[string]*dependency.Filesystem{
			"hdfs-test": {
				Name:    "hdfs-test",
				Version: "2.0.0-mdh1.1",
				NameNodes: []dependency.Endpoint{
					{ID: 0, Host: "nn1", RPCPort: 12400, HTTPPort: 12401},
					{ID: 1, Host: "nn2", RPCPort: 12400, HTTPPort: 12401},
				},
			},
		},
	}
}

// Spec parses SpecYAML, applying mutate to the result.
func Spec(tb testing.TB, mutate ...func(*cluster.Spec)) *cluster.Spec {
	tb.Helper()
	spec, err := cluster.Parse([]byte(SpecYAML), "hbase-test")
	if err != nil {
		tb.Fatalf("parsing fixture: %v", err)
	}
	for _, m := range mutate {
		m(spec)
	}
	return spec
}

// Cluster resolves the fixture spec.
func Cluster(tb testing.TB, mutate ...func(*cluster.Spec)) *resolve.Cluster {
	tb.Helper()
	c, err := resolve.Resolve(context.Background(), Spec(tb, mutate...), Lookup(), resolve.Options{RemoteUser: "ops"})
	if err != nil {
		tb.Fatalf("resolving fixture: %v", err)
	}
	return c
}

// Secure turns on Kerberos and ACLs.
func Secure(spec *cluster.Spec) {
	spec.Cluster.EnableSecurity = true
	spec.Cluster.EnableACL = true
	spec.Cluster.KerberosRealm = "EXAMPLE.COM"
}
