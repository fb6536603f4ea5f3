// Package hbshell runs HBase JRuby scripts from the operator machine against
// a cluster: the region mover used to drain region servers and the shell
// command that switches the balancer.
package hbshell

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/render"
)

const jrubyMain = "org.jruby.Main"

// Runner executes an external program.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Shell launches JRuby against the unpacked HBase package of the cluster version.
type Shell struct {
	Renderer *render.Renderer
	// PackageDir is the unpacked hbase-<version> directory.
	PackageDir string
	// Krb5Path is the operator side krb5 config, only read when security is on.
	Krb5Path string
	// Principal is the operator principal; when empty it is read from klist.
	Principal  string
	Runner     Runner
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
	Logger     *slog.Logger
}

// New creates a shell for the package unpacked under packageRoot.
func New(r *render.Renderer, packageRoot, krb5Path string, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		Renderer:   r,
		PackageDir: filepath.Join(packageRoot, r.Artifact()),
		Krb5Path:   krb5Path,
		Runner:     ExecRunner{},
		LookupAddr: net.DefaultResolver.LookupAddr,
		Logger:     logger,
	}
}

func (s *Shell) classPath() string {
	return fmt.Sprintf("%s/:%s/lib/*:%s/*", s.PackageDir, s.PackageDir, s.PackageDir)
}

// Ruby runs a ruby script with the cluster configuration.
func (s *Shell) Ruby(ctx context.Context, args ...string) error {
	return s.run(ctx, args)
}

// Script feeds a file of shell commands to the HBase shell.
func (s *Shell) Script(ctx context.Context, commands ...string) error {
	f, err := os.CreateTemp("", "hbctl-shell-*.rb")
	if err != nil {
		return fmt.Errorf("creating shell script: %w", err)
	}
	defer os.Remove(f.Name())
	for _, c := range append(commands, "exit") {
		if _, err := fmt.Fprintln(f, c); err != nil {
			f.Close()
			return fmt.Errorf("writing shell script: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.run(ctx, []string{"-X+O", s.PackageDir + "/bin/hirb.rb", f.Name()})
}

func (s *Shell) run(ctx context.Context, mainArgs []string) error {
	opts, err := s.Renderer.ShellOptions()
	if err != nil {
		return err
	}
	args := []string{"-cp", s.classPath()}
	args = append(args, opts...)

	if s.Renderer.Cluster.Security.Enabled {
		jaas, err := s.writeClientJAAS(ctx)
		if err != nil {
			return err
		}
		defer os.Remove(jaas)
		args = append(args,
			"-Djava.security.krb5.conf="+s.Krb5Path,
			"-Djava.security.auth.login.config="+jaas,
		)
	}
	args = append(args, jrubyMain)
	args = append(args, mainArgs...)

	s.Logger.Debug("running hbase shell", "args", mainArgs)
	var out bytes.Buffer
	if err := s.Runner.Run(ctx, "java", args, &out, &out); err != nil {
		return fmt.Errorf("%s %s: %w: %s", jrubyMain, strings.Join(mainArgs, " "), err, tail(out.String(), 5))
	}
	return nil
}

func (s *Shell) writeClientJAAS(ctx context.Context) (string, error) {
	principal := s.Principal
	if principal == "" {
		var err error
		if principal, err = s.ticketPrincipal(ctx); err != nil {
			return "", err
		}
	}
	f, err := os.CreateTemp("", "hbctl-jaas-*.conf")
	if err != nil {
		return "", fmt.Errorf("creating jaas file: %w", err)
	}
	if _, err := f.WriteString(s.Renderer.ClientJAAS(principal)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing jaas file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ticketPrincipal reads the default principal of the operator's ticket cache.
func (s *Shell) ticketPrincipal(ctx context.Context) (string, error) {
	var out bytes.Buffer
	if err := s.Runner.Run(ctx, "klist", nil, &out, io.Discard); err != nil {
		return "", apperrors.Dependency("kerberos ticket", fmt.Sprintf("klist failed, run kinit first: %v", err))
	}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if p, ok := strings.CutPrefix(line, "Default principal:"); ok {
			return strings.TrimSpace(p), nil
		}
	}
	return "", apperrors.Dependency("kerberos ticket", "no default principal in the ticket cache")
}

// Unload moves every region off the region server on ip.
func (s *Shell) Unload(ctx context.Context, ip string) error {
	return s.moveRegions(ctx, "unload", ip)
}

// Load moves regions back onto the region server on ip.
func (s *Shell) Load(ctx context.Context, ip string) error {
	return s.moveRegions(ctx, "load", ip)
}

func (s *Shell) moveRegions(ctx context.Context, verb, ip string) error {
	host, err := s.hostname(ctx, ip)
	if err != nil {
		return err
	}
	s.Logger.Info("moving regions", "action", verb, "host", host, "ip", ip)
	return s.Ruby(ctx, s.PackageDir+"/bin/region_mover.rb", verb, host)
}

// SetEnabled switches the cluster balancer.
func (s *Shell) SetEnabled(ctx context.Context, enabled bool) error {
	s.Logger.Info("switching balancer", "cluster", s.Renderer.Cluster.Name, "enabled", enabled)
	return s.Script(ctx, fmt.Sprintf("balance_switch %t", enabled))
}

// hostname resolves ip by reverse DNS; the region mover matches servers by name.
func (s *Shell) hostname(ctx context.Context, ip string) (string, error) {
	names, err := s.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return "", apperrors.Dependency("dns", fmt.Sprintf("no reverse record for %s: %v", ip, err))
	}
	return strings.TrimSuffix(names[0], "."), nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
