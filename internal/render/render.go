// Package render produces the config files and launch script of one task.
// Output depends only on the resolved cluster and the host context, so
// rendering twice with the same inputs yields identical bytes.
package render

import (
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"github.com/hbctl/hbctl/internal/resolve"
)

//go:embed templates
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).ParseFS(templateFS, "templates/*.tmpl"))

// DefaultConfDir is where keytabs are installed on every host.
const DefaultConfDir = "/etc/hadoop/conf"

// Config file names, in the order they are handed to the supervisor.
const (
	CoreSite         = "core-site.xml"
	HDFSSite         = "hdfs-site.xml"
	HBaseSite        = "hbase-site.xml"
	MetricsFile      = "hadoop-metrics.properties"
	JAASFile         = "jaas.conf"
	ConfigurationXSL = "configuration.xsl"
	Log4jXML         = "log4j.xml"
	Krb5Conf         = "krb5.conf"
)

// HostContext is what the supervisor of a host reports before a start.
type HostContext struct {
	Host     string
	DataDirs []string
	LogDir   string
	RunDir   string
}

// File is one rendered config file.
type File struct {
	Name    string
	Content string
}

// Renderer renders files for one resolved cluster.
type Renderer struct {
	Cluster *resolve.Cluster
	// Krb5Conf is copied verbatim into krb5.conf when security is enabled.
	Krb5Conf string
	ConfDir  string
}

// New creates a renderer using DefaultConfDir.
func New(c *resolve.Cluster, krb5Conf string) *Renderer {
	return &Renderer{Cluster: c, Krb5Conf: krb5Conf, ConfDir: DefaultConfDir}
}

func (r *Renderer) keytab() string {
	return fmt.Sprintf("%s/%s.keytab", r.ConfDir, r.Cluster.Security.Username)
}

type property struct {
	Name  string
	Value string
}

// SiteXML renders properties sorted by name.
func (r *Renderer) SiteXML(props map[string]string) (string, error) {
	names := sortedKeys(props)
	data := struct {
		Cluster    string
		Properties []property
	}{Cluster: r.Cluster.Name}
	for _, n := range names {
		data.Properties = append(data.Properties, property{Name: n, Value: props[n]})
	}
	return execute("site.xml.tmpl", data)
}

// JAAS renders the ZooKeeper client login section. Empty when security is off.
func (r *Renderer) JAAS() string {
	if !r.Cluster.Security.Enabled {
		return ""
	}
	return jaasSection(map[string]string{
		"useKeyTab":      "true",
		"useTicketCache": "false",
		"keyTab":         fmt.Sprintf("%q", r.keytab()),
		"principal":      fmt.Sprintf("%q", r.Cluster.Security.Principal()),
		"debug":          "true",
		"storeKey":       "true",
	})
}

// ClientJAAS is the login section for an operator running a shell from the
// ticket cache of principal.
func (r *Renderer) ClientJAAS(principal string) string {
	return jaasSection(map[string]string{
		"useKeyTab":      "false",
		"useTicketCache": "true",
		"principal":      fmt.Sprintf("%q", principal),
		"debug":          "false",
	})
}

func jaasSection(opts map[string]string) string {
	keys := sortedKeys(opts)
	var b strings.Builder
	b.WriteString("Client {\n  com.sun.security.auth.module.Krb5LoginModule required\n")
	for i, k := range keys {
		fmt.Fprintf(&b, "  %s=%s", k, opts[k])
		if i == len(keys)-1 {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	b.WriteString("};\n")
	return b.String()
}

// Metrics renders hadoop-metrics.properties. Ganglia lines are commented out
// unless the cluster has a ganglia address.
func (r *Renderer) Metrics(job *resolve.Job, host HostContext) (string, error) {
	sw := "# "
	if r.Cluster.GangliaAddress != "" {
		sw = ""
	}
	return execute("hadoop-metrics.properties.tmpl", struct {
		JobName        string
		Period         int
		DataDir        string
		GangliaAddress string
		GangliaSwitch  string
	}{
		JobName:        job.Name(),
		Period:         job.MetricsPeriod,
		DataDir:        host.LogDir,
		GangliaAddress: r.Cluster.GangliaAddress,
		GangliaSwitch:  sw,
	})
}

// ConfigFiles renders every file a task needs. jaas.conf and krb5.conf are
// only present when security is enabled.
func (r *Renderer) ConfigFiles(jobName string, host HostContext) ([]File, error) {
	job, err := r.Cluster.Job(jobName)
	if err != nil {
		return nil, err
	}
	hbaseDict, err := r.HBaseSite(jobName, &host)
	if err != nil {
		return nil, err
	}

	core, err := r.SiteXML(r.CoreSite())
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", CoreSite, err)
	}
	hdfs, err := r.SiteXML(r.HDFSSite())
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", HDFSSite, err)
	}
	hbase, err := r.SiteXML(hbaseDict)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", HBaseSite, err)
	}
	metrics, err := r.Metrics(job, host)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", MetricsFile, err)
	}
	xsl, err := templateFS.ReadFile("templates/" + ConfigurationXSL)
	if err != nil {
		return nil, err
	}
	log4j, err := templateFS.ReadFile("templates/" + Log4jXML)
	if err != nil {
		return nil, err
	}

	files := []File{
		{Name: CoreSite, Content: core},
		{Name: HDFSSite, Content: hdfs},
		{Name: HBaseSite, Content: hbase},
		{Name: MetricsFile, Content: metrics},
	}
	if r.Cluster.Security.Enabled {
		files = append(files, File{Name: JAASFile, Content: r.JAAS()})
	}
	files = append(files,
		File{Name: ConfigurationXSL, Content: string(xsl)},
		File{Name: Log4jXML, Content: string(log4j)},
	)
	if r.Cluster.Security.Enabled {
		files = append(files, File{Name: Krb5Conf, Content: r.Krb5Conf})
	}
	return files, nil
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
