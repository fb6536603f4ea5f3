package render

import (
	"fmt"
	"strings"
)

// jarDirs includes both the package dir and its jars; the dir itself holds the webapps.
const jarDirs = "$package_dir/:$package_dir/lib/*:$package_dir/*"

// tuningFlags and collectorFlags are the fixed GC setup shared by every role.
var tuningFlags = []string{
	"-XX:+HeapDumpOnOutOfMemoryError",
	"-XX:HeapDumpPath=$log_dir",
	"-XX:+PrintGCApplicationStoppedTime",
	"-XX:+UseConcMarkSweepGC",
	"-verbose:gc",
	"-XX:+PrintGCDetails",
	"-XX:+PrintGCDateStamps",
}

var collectorFlags = []string{
	"-XX:+UseMembar",
	"-XX:SurvivorRatio=1",
	"-XX:+UseCMSCompactAtFullCollection",
	"-XX:CMSInitiatingOccupancyFraction=75",
	"-XX:+UseCMSInitiatingOccupancyOnly",
	"-XX:+CMSParallelRemarkEnabled",
	"-XX:+UseNUMA",
	"-XX:+CMSClassUnloadingEnabled",
	"-XX:+PrintSafepointStatistics",
	"-XX:PrintSafepointStatisticsCount=1",
	"-XX:+PrintHeapAtGC",
	"-XX:+PrintTenuringDistribution",
	"-XX:CMSMaxAbortablePrecleanTime=10000",
	"-XX:TargetSurvivorRatio=80",
	"-XX:+UseGCLogFileRotation",
	"-XX:NumberOfGCLogFiles=100",
	"-XX:GCLogFileSize=128m",
	"-XX:CMSWaitDuration=2000",
	"-XX:+CMSScavengeBeforeRemark",
	"-XX:+PrintClassHistogramAfterFullGC",
	"-XX:+PrintClassHistogramBeforeFullGC",
	"-XX:+PrintPromotionFailure",
	"-XX:ConcGCThreads=8",
	"-XX:ParallelGCThreads=8",
	"-XX:PretenureSizeThreshold=4m",
	"-XX:+CMSConcurrentMTEnabled",
	"-XX:+ExplicitGCInvokesConcurrent",
	"-XX:+SafepointTimeout",
	"-XX:MonitorBound=16384",
	"-XX:OldPLABSize=16",
	"-XX:-ResizeOldPLAB",
	"-XX:-UseBiasedLocking",
}

// Artifact is the package name of the cluster version, e.g. hbase-0.94.11.
func (r *Renderer) Artifact() string {
	return "hbase-" + r.Cluster.Version
}

// JVMParams assembles the java argument string of a job, ending with its main
// class. Flag order is fixed.
func (r *Renderer) JVMParams(jobName string, host HostContext) (string, error) {
	c := r.Cluster
	job, err := c.Job(jobName)
	if err != nil {
		return "", err
	}
	jvm := job.JVM

	params := []string{
		fmt.Sprintf("-Xmx%dm", jvm.Xmx),
		fmt.Sprintf("-Xms%dm", jvm.Xms),
		fmt.Sprintf("-Xmn%dm", jvm.Xmn),
		"-Xss256k",
		fmt.Sprintf("-XX:MaxDirectMemorySize=%dm", jvm.MaxDirectMemory),
		fmt.Sprintf("-XX:MaxPermSize=%dm", jvm.MaxPermSize),
		fmt.Sprintf("-XX:PermSize=%dm", jvm.MaxPermSize),
	}
	params = append(params, tuningFlags...)
	params = append(params, fmt.Sprintf("-Xloggc:$log_dir/%s_gc_${start_time}.log", jobName))
	params = append(params, collectorFlags...)
	params = append(params,
		"-Dproc_"+jobName,
		"-Djava.net.preferIPv4Stack=true",
		"-Dhbase.log.dir=$log_dir",
		"-Dhbase.pid=$pid",
		"-Dhbase.cluster="+c.Name,
		"-Dhbase.policy.file=hbase-policy.xml",
		"-Dhbase.home.dir=$package_dir",
		"-Dhbase.id.str="+c.RemoteUser,
	)

	if c.Security.Enabled {
		params = append(params,
			"-Djava.security.krb5.conf=$run_dir/"+Krb5Conf,
			fmt.Sprintf("-Djava.security.auth.login.config=%s/%s", host.RunDir, JAASFile),
			fmt.Sprintf("-Xbootclasspath/p:$package_dir/lib/hadoop-security-%s.jar", c.Filesystem.Version),
		)
	}

	params = append(params, job.Role.EntryPoint())
	return strings.Join(params, " "), nil
}

// StartScript renders the launch script of a task.
func (r *Renderer) StartScript(jobName string, host HostContext) (string, error) {
	params, err := r.JVMParams(jobName, host)
	if err != nil {
		return "", err
	}
	return execute("start.sh.tmpl", struct {
		Artifact string
		JobName  string
		JarDirs  string
		RunDir   string
		LogDir   string
		Params   string
	}{
		Artifact: r.Artifact(),
		JobName:  jobName,
		JarDirs:  jarDirs,
		RunDir:   host.RunDir,
		LogDir:   host.LogDir,
		Params:   params + " start",
	})
}
