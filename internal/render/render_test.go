package render_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/render"
	"github.com/hbctl/hbctl/internal/role"
	"github.com/hbctl/hbctl/internal/testutil"
)

var host = render.HostContext{
	Host:     "10.0.0.1",
	DataDirs: []string{"/home/work/data/hbase", "/home/work/data1/hbase"},
	LogDir:   "/home/work/log/hbase/hbase-test/regionserver",
	RunDir:   "/home/work/app/hbase/hbase-test/regionserver",
}

func fileNames(files []render.File) []string {
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func TestConfigFilesWithoutSecurity(t *testing.T) {
	r := render.New(testutil.Cluster(t), "")

	files, err := r.ConfigFiles(role.RegionServer, host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"core-site.xml", "hdfs-site.xml", "hbase-site.xml", "hadoop-metrics.properties", "configuration.xsl", "log4j.xml"}
	if got := fileNames(files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}

	params, err := r.JVMParams(role.RegionServer, host)
	if err != nil {
		t.Fatal(err)
	}
	for _, flag := range []string{"-Djava.security.krb5.conf", "-Djava.security.auth.login.config", "-Xbootclasspath"} {
		if strings.Contains(params, flag) {
			t.Errorf("params should not contain %s when security is off", flag)
		}
	}
}

func TestConfigFilesWithSecurity(t *testing.T) {
	r := render.New(testutil.Cluster(t, testutil.Secure), "[libdefaults]\n")

	files, err := r.ConfigFiles(role.Master, host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"core-site.xml", "hdfs-site.xml", "hbase-site.xml", "hadoop-metrics.properties", "jaas.conf", "configuration.xsl", "log4j.xml", "krb5.conf"}
	if got := fileNames(files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}

	params, err := r.JVMParams(role.Master, host)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(params, "-Djava.security.auth.login.config="+host.RunDir+"/jaas.conf") {
		t.Errorf("login config flag must point at the deployed jaas.conf: %s", params)
	}
	if !strings.Contains(params, "-Xbootclasspath/p:$package_dir/lib/hadoop-security-2.0.0-mdh1.1.jar") {
		t.Errorf("bootclasspath should use the hdfs version: %s", params)
	}
	if !strings.HasSuffix(params, "org.apache.hadoop.hbase.master.HMaster") {
		t.Errorf("params must end with the main class: %s", params)
	}
}

func TestRenderingIsDeterministic(t *testing.T) {
	c := testutil.Cluster(t, testutil.Secure)
	first, err := render.New(c, "krb").ConfigFiles(role.RegionServer, host)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := render.New(c, "krb").ConfigFiles(role.RegionServer, host)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("render %d differs from the first", i)
		}
	}
}

func TestHBaseSitePrecedence(t *testing.T) {
	c := testutil.Cluster(t, func(s *cluster.Spec) {
		s.Cluster.SiteXML["hbase.regionserver.handler.count"] = "10"
		s.Cluster.SiteXML["hbase.cluster.name"] = "overridden"
		s.Jobs[role.RegionServer].SiteXML = map[string]string{"hbase.regionserver.handler.count": "50"}
	})
	props, err := render.New(c, "").HBaseSite(role.RegionServer, &host)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"hbase.regionserver.handler.count":    "50",
		"hbase.cluster.name":                  "hbase-test",
		"hbase.hregion.max.filesize":          "10737418240",
		"hbase.rootdir":                       "hdfs://hdfs-test/hbase/hbase-test/",
		"hbase.zookeeper.quorum":              "zk1,zk2,zk3",
		"hbase.zookeeper.property.clientPort": "2181",
		"hbase.master.port":                   "12500",
		"hbase.master.info.port":              "12501",
		"hbase.regionserver.port":             "12600",
		"hbase.regionserver.info.port":        "12601",
		"zookeeper.znode.parent":              "/hbase/hbase-test",
		"hbase.tmp.dir":                       "/home/work/data/hbase",
	}
	for k, want := range tests {
		if props[k] != want {
			t.Errorf("%s = %q, want %q", k, props[k], want)
		}
	}
	if _, ok := props["hbase.security.authentication"]; ok {
		t.Error("kerberos keys must not be set when security is off")
	}
}

func TestHBaseSiteACL(t *testing.T) {
	props, err := render.New(testutil.Cluster(t, testutil.Secure), "").HBaseSite(role.Master, nil)
	if err != nil {
		t.Fatal(err)
	}
	if props["hbase.coprocessor.region.classes"] != "org.apache.hadoop.hbase.security.token.TokenProvider,org.apache.hadoop.hbase.security.access.AccessController" {
		t.Errorf("region coprocessors = %q", props["hbase.coprocessor.region.classes"])
	}
	if props["hbase.master.kerberos.principal"] != "hbase/hadoop@EXAMPLE.COM" {
		t.Errorf("principal = %q", props["hbase.master.kerberos.principal"])
	}
	if _, ok := props["hbase.tmp.dir"]; ok {
		t.Error("hbase.tmp.dir needs a host")
	}
}

func TestHBaseSiteNoDataDirs(t *testing.T) {
	_, err := render.New(testutil.Cluster(t), "").HBaseSite(role.RegionServer, &render.HostContext{Host: "h"})
	if err == nil {
		t.Fatal("expected error when the host has no data dirs")
	}
}

func TestSiteXMLSortedAndEscaped(t *testing.T) {
	out, err := render.New(testutil.Cluster(t), "").SiteXML(map[string]string{
		"b.key": "x<y",
		"a.key": "1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(out, "a.key") > strings.Index(out, "b.key") {
		t.Error("properties should be sorted by name")
	}
	if !strings.Contains(out, "<value>x&lt;y</value>") {
		t.Errorf("value should be escaped:\n%s", out)
	}
}

func TestHDFSSiteHAClient(t *testing.T) {
	props := render.New(testutil.Cluster(t), "").HDFSSite()
	if props["dfs.ha.namenodes.hdfs-test"] != "host0,host1" {
		t.Errorf("namenodes = %q", props["dfs.ha.namenodes.hdfs-test"])
	}
	if props["dfs.namenode.rpc-address.hdfs-test.host1"] != "nn2:12400" {
		t.Errorf("rpc address = %q", props["dfs.namenode.rpc-address.hdfs-test.host1"])
	}
}

func TestMetricsGangliaSwitch(t *testing.T) {
	c := testutil.Cluster(t)
	job, _ := c.Job(role.RegionServer)

	off, err := render.New(c, "").Metrics(job, host)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(off, "# hbase.class=org.apache.hadoop.metrics.ganglia.GangliaContext31") {
		t.Error("ganglia lines should be commented out without an address")
	}

	c.GangliaAddress = "ganglia:8649"
	on, err := render.New(c, "").Metrics(job, host)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(on, "\nhbase.servers=ganglia:8649") {
		t.Errorf("ganglia lines should be active:\n%s", on)
	}
	if !strings.Contains(on, "hbase.period=10") {
		t.Error("metrics period should default to 10")
	}
}

func TestJVMParamsOrder(t *testing.T) {
	params, err := render.New(testutil.Cluster(t), "").JVMParams(role.RegionServer, host)
	if err != nil {
		t.Fatal(err)
	}
	ordered := []string{
		"-Xmx4096m", "-Xms1024m", "-Xmn512m", "-Xss256k",
		"-XX:MaxDirectMemorySize=1024m", "-XX:MaxPermSize=256m",
		"-Xloggc:$log_dir/regionserver_gc_${start_time}.log",
		"-Dproc_regionserver", "-Dhbase.cluster=hbase-test", "-Dhbase.id.str=ops",
		"org.apache.hadoop.hbase.regionserver.HRegionServer",
	}
	last := -1
	for _, flag := range ordered {
		idx := strings.Index(params, flag)
		if idx < 0 {
			t.Fatalf("missing %s in %s", flag, params)
		}
		if idx < last {
			t.Errorf("%s is out of order", flag)
		}
		last = idx
	}
}

func TestStartScript(t *testing.T) {
	script, err := render.New(testutil.Cluster(t), "").StartScript(role.RegionServer, host)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"artifact=hbase-0.94.11",
		"job_name=regionserver",
		"run_dir=" + host.RunDir,
		"HRegionServer start",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestJAAS(t *testing.T) {
	if got := render.New(testutil.Cluster(t), "").JAAS(); got != "" {
		t.Errorf("jaas should be empty without security, got %q", got)
	}
	jaas := render.New(testutil.Cluster(t, testutil.Secure), "").JAAS()
	want := `Client {
  com.sun.security.auth.module.Krb5LoginModule required
  debug=true
  keyTab="/etc/hadoop/conf/hbase.keytab"
  principal="hbase/hadoop"
  storeKey=true
  useKeyTab=true
  useTicketCache=false;
};
`
	if jaas != want {
		t.Errorf("jaas =\n%s\nwant\n%s", jaas, want)
	}
}

func TestShellOptions(t *testing.T) {
	opts, err := render.New(testutil.Cluster(t), "").ShellOptions()
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(opts, " ")
	if !strings.Contains(joined, "-Dhadoop.property.fs.defaultFS=hdfs://hdfs-test") {
		t.Errorf("missing core-site option: %s", joined)
	}
	if !strings.Contains(joined, "-Dhadoop.property.hbase.zookeeper.quorum=zk1,zk2,zk3") {
		t.Errorf("missing hbase-site option: %s", joined)
	}
}
