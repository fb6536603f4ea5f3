package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hbctl/hbctl/internal/role"
)

const (
	tokenProvider    = "org.apache.hadoop.hbase.security.token.TokenProvider"
	accessController = "org.apache.hadoop.hbase.security.access.AccessController"
	failoverProvider = "org.apache.hadoop.hdfs.server.namenode.ha.ConfiguredFailoverProxyProvider"
)

// HBaseSite returns the hbase-site.xml properties for a job. Cluster site_xml
// is overridden by the job's site_xml, which is overridden by computed keys.
// With a nil host the per-host keys are left out (used for the region mover
// and balancer scripts run from the operator machine).
func (r *Renderer) HBaseSite(jobName string, host *HostContext) (map[string]string, error) {
	c := r.Cluster
	job, err := c.Job(jobName)
	if err != nil {
		return nil, err
	}

	props := make(map[string]string)
	for k, v := range c.SiteXML {
		props[k] = v
	}
	for k, v := range job.SiteXML {
		props[k] = v
	}

	props["hbase.cluster.name"] = c.Name
	props["hbase.rootdir"] = fmt.Sprintf("%s/hbase/%s/", c.HDFSRoot, c.Name)
	props["hbase.cluster.distributed"] = "true"
	props["hbase.zookeeper.quorum"] = c.Quorum.HostList()
	props["hbase.zookeeper.property.clientPort"] = strconv.Itoa(c.Quorum.ClientPort)
	for _, rl := range role.All() {
		j, ok := c.Jobs[rl.Name()]
		if !ok {
			continue
		}
		for k, v := range rl.RuntimeParams(j.BasePort) {
			props[k] = v
		}
	}
	props["zookeeper.znode.parent"] = "/hbase/" + c.Name
	props["hbase.master.allow.shutdown"] = "false"

	if host != nil {
		if len(host.DataDirs) == 0 {
			return nil, fmt.Errorf("host %s reports no available data dirs", host.Host)
		}
		props["hbase.tmp.dir"] = host.DataDirs[0]
	}

	if c.Security.Enabled {
		principal := fmt.Sprintf("%s@%s", c.Security.Principal(), c.Security.Realm)
		props["hbase.security.authentication"] = "kerberos"
		props["hbase.rpc.engine"] = "org.apache.hadoop.hbase.ipc.SecureRpcEngine"
		props["hbase.regionserver.kerberos.principal"] = principal
		props["hbase.regionserver.keytab.file"] = r.keytab()
		props["hbase.master.kerberos.principal"] = principal
		props["hbase.master.keytab.file"] = r.keytab()
		props["hbase.zookeeper.property.authProvider.1"] = "org.apache.zookeeper.server.auth.SASLAuthenticationProvider"
		props["hbase.zookeeper.property.kerberos.removeHostFromPrincipal"] = "true"
		props["hbase.zookeeper.property.kerberos.removeRealmFromPrincipal"] = "true"
		props["hbase.security.authorization"] = "true"
		props["hbase.coprocessor.region.classes"] = tokenProvider
	}

	if c.Security.ACL {
		props["hbase.coprocessor.master.classes"] = accessController
		props["hbase.coprocessor.region.classes"] = tokenProvider + "," + accessController
		props["hbase.superuser"] = "hbase_admin"
	}
	return props, nil
}

// CoreSite returns the core-site.xml properties of an HDFS client.
func (r *Renderer) CoreSite() map[string]string {
	c := r.Cluster
	props := map[string]string{
		"fs.defaultFS":                   "hdfs://" + c.Filesystem.Name,
		"hadoop.security.authentication": "simple",
		"hadoop.security.authorization":  "false",
		"io.file.buffer.size":            "131072",
	}
	if c.Security.Enabled {
		props["hadoop.security.authentication"] = "kerberos"
		props["hadoop.security.authorization"] = "true"
		props["hadoop.security.use-weak-http-crypto"] = "false"
	}
	return props
}

// HDFSSite returns the HA client view of the HDFS cluster.
func (r *Renderer) HDFSSite() map[string]string {
	fsys := r.Cluster.Filesystem
	ns := fsys.Name

	ids := make([]string, 0, len(fsys.NameNodes))
	props := map[string]string{
		"dfs.nameservices":                         ns,
		"dfs.client.failover.proxy.provider." + ns: failoverProvider,
	}
	for _, nn := range fsys.NameNodes {
		ids = append(ids, nn.Name())
		props[fmt.Sprintf("dfs.namenode.rpc-address.%s.%s", ns, nn.Name())] = nn.RPCAddress()
		props[fmt.Sprintf("dfs.namenode.http-address.%s.%s", ns, nn.Name())] = nn.HTTPAddress()
	}
	props["dfs.ha.namenodes."+ns] = strings.Join(ids, ",")

	if fsys.EnableSecurity {
		props["dfs.namenode.kerberos.principal"] = "hdfs/hadoop@" + fsys.KerberosRealm
		props["dfs.block.access.token.enable"] = "true"
	}
	return props
}

// ShellOptions are the -D flags that let a JRuby script on the operator
// machine reach the cluster without a local conf dir.
func (r *Renderer) ShellOptions() ([]string, error) {
	hbase, err := r.HBaseSite(role.Master, nil)
	if err != nil {
		return nil, err
	}
	var opts []string
	for _, dict := range []map[string]string{r.CoreSite(), r.HDFSSite(), hbase} {
		for _, k := range sortedKeys(dict) {
			opts = append(opts, fmt.Sprintf("-D%s%s=%s", HadoopPropertyPrefix, k, dict[k]))
		}
	}
	return opts, nil
}

// HadoopPropertyPrefix marks -D options the hbase launcher copies into its Configuration.
const HadoopPropertyPrefix = "hadoop.property."

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
