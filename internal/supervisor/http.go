package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultPort is the port the supervisor agent listens on.
const DefaultPort = 9001

// DialerConfig holds configuration for creating an HTTPDialer.
type DialerConfig struct {
	Service  string
	Cluster  string
	Port     int
	Username string
	Password string
	// HTTPClient is shared by every host. If nil, a pooled cleanhttp client is used.
	HTTPClient *http.Client
}

// HTTPDialer creates HTTP clients for the supervisor agents of one cluster.
type HTTPDialer struct {
	cfg DialerConfig
}

// NewHTTPDialer creates a dialer.
func NewHTTPDialer(cfg DialerConfig) *HTTPDialer {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = cleanhttp.DefaultPooledClient()
	}
	return &HTTPDialer{cfg: cfg}
}

// For returns the client of job on host.
func (d *HTTPDialer) For(host, job string) Client {
	base := "http://" + host + ":" + strconv.Itoa(d.cfg.Port)
	return &HTTPClient{
		baseURL:    base,
		jobPath:    "/v1/jobs/" + url.PathEscape(d.cfg.Service) + "/" + url.PathEscape(d.cfg.Cluster) + "/" + url.PathEscape(job),
		username:   d.cfg.Username,
		password:   d.cfg.Password,
		httpClient: d.cfg.HTTPClient,
	}
}

// HTTPClient speaks JSON to one job endpoint of a supervisor agent. It never retries.
type HTTPClient struct {
	baseURL    string
	jobPath    string
	username   string
	password   string
	httpClient *http.Client

	dirs *dirsResponse
}

type dirsResponse struct {
	DataDirs []string `json:"data_dirs"`
	LogDir   string   `json:"log_dir"`
	RunDir   string   `json:"run_dir"`
}

type statusResponse struct {
	State string `json:"state"`
}

type resultResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// NewHTTPClient creates a client for an explicit base URL and job path, used in tests.
func NewHTTPClient(baseURL, jobPath string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultClient()
	}
	return &HTTPClient{baseURL: baseURL, jobPath: jobPath, httpClient: httpClient}
}

func (c *HTTPClient) loadDirs(ctx context.Context) (*dirsResponse, error) {
	if c.dirs != nil {
		return c.dirs, nil
	}
	var resp dirsResponse
	if err := c.do(ctx, http.MethodGet, "/dirs", nil, &resp); err != nil {
		return nil, err
	}
	c.dirs = &resp
	return c.dirs, nil
}

// AvailableDataDirs returns the data directories of the job, best first.
func (c *HTTPClient) AvailableDataDirs(ctx context.Context) ([]string, error) {
	d, err := c.loadDirs(ctx)
	if err != nil {
		return nil, err
	}
	return d.DataDirs, nil
}

// LogDir returns the log directory of the job.
func (c *HTTPClient) LogDir(ctx context.Context) (string, error) {
	d, err := c.loadDirs(ctx)
	if err != nil {
		return "", err
	}
	return d.LogDir, nil
}

// RunDir returns the working directory of the job.
func (c *HTTPClient) RunDir(ctx context.Context) (string, error) {
	d, err := c.loadDirs(ctx)
	if err != nil {
		return "", err
	}
	return d.RunDir, nil
}

func (c *HTTPClient) Install(ctx context.Context, pkg Package) error {
	return c.action(ctx, "/install", pkg)
}

func (c *HTTPClient) Bootstrap(ctx context.Context, artifact, token string) error {
	return c.action(ctx, "/bootstrap", map[string]string{"artifact": artifact, "cleanup_token": token})
}

func (c *HTTPClient) Start(ctx context.Context, req LaunchRequest) error {
	return c.action(ctx, "/start", req)
}

func (c *HTTPClient) Stop(ctx context.Context) error {
	return c.action(ctx, "/stop", nil)
}

func (c *HTTPClient) Cleanup(ctx context.Context, token string) error {
	return c.action(ctx, "/cleanup", map[string]string{"cleanup_token": token})
}

// Status queries the live process state.
func (c *HTTPClient) Status(ctx context.Context) (RunState, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return Unknown, err
	}
	return ParseRunState(resp.State), nil
}

func (c *HTTPClient) action(ctx context.Context, path string, payload any) error {
	var resp resultResponse
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("supervisor %s: %s", path, resp.Message)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.jobPath+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supervisor %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading supervisor %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var r resultResponse
		if json.Unmarshal(data, &r) == nil && r.Message != "" {
			return fmt.Errorf("supervisor %s: HTTP %d: %s", path, resp.StatusCode, r.Message)
		}
		return fmt.Errorf("supervisor %s: HTTP %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding supervisor %s response: %w", path, err)
	}
	return nil
}
