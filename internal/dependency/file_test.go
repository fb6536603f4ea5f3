package dependency

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hbctl/hbctl/internal/apperrors"
)

func writeSpec(t *testing.T, root, service, name, content string) {
	t.Helper()
	dir := filepath.Join(root, service)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileLookupQuorum(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "zookeeper", "zk-prod", `cluster:
  version: 3.4.5
jobs:
  zookeeper:
    base_port: 2181
    hosts:
      0: zk1
      1: zk2
      2: zk3
`)

	q, err := NewFileLookup(root).Quorum(context.Background(), "zk-prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.ClientPort != 2181 {
		t.Errorf("client port = %d", q.ClientPort)
	}
	if q.HostList() != "zk1,zk2,zk3" {
		t.Errorf("host list = %q", q.HostList())
	}
}

func TestFileLookupFilesystem(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "hdfs", "hdfs-prod", `cluster:
  version: 2.0.0-mdh1.1
  enable_security: true
  kerberos_realm: EXAMPLE.COM
jobs:
  namenode:
    base_port: 12400
    hosts:
      0: nn1
      1: nn2
`)

	fsys, err := NewFileLookup(root).Filesystem(context.Background(), "hdfs-prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fsys.Version != "2.0.0-mdh1.1" || !fsys.EnableSecurity {
		t.Errorf("unexpected filesystem: %+v", fsys)
	}
	want := []Endpoint{
		{ID: 0, Host: "nn1", RPCPort: 12400, HTTPPort: 12401},
		{ID: 1, Host: "nn2", RPCPort: 12400, HTTPPort: 12401},
	}
	if !reflect.DeepEqual(fsys.NameNodes, want) {
		t.Errorf("namenodes = %+v", fsys.NameNodes)
	}
	if fsys.NameNodes[1].Name() != "host1" || fsys.NameNodes[1].RPCAddress() != "nn2:12400" {
		t.Errorf("unexpected endpoint naming: %s %s", fsys.NameNodes[1].Name(), fsys.NameNodes[1].RPCAddress())
	}
}

func TestFileLookupMissingCluster(t *testing.T) {
	_, err := NewFileLookup(t.TempDir()).Quorum(context.Background(), "nope")
	if !errors.Is(err, apperrors.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestFileLookupMissingJob(t *testing.T) {
	root := t.TempDir()
	writeSpec(t, root, "hdfs", "empty", "cluster:\n  version: 2.0.0\n")

	_, err := NewFileLookup(root).Filesystem(context.Background(), "empty")
	if !errors.Is(err, apperrors.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
