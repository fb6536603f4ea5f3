package observability

import (
	"context"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the counters of one command invocation. A nil *Metrics
// records nothing, so callers never need to check for it.
type Metrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	TaskOpDuration  metric.Float64Histogram
	TaskOpsTotal    metric.Int64Counter
	TaskErrorsTotal metric.Int64Counter
	WaitDuration    metric.Float64Histogram
	RollingHosts    metric.Int64Counter
	BalancerToggles metric.Int64Counter
	CommandDuration metric.Float64Histogram
}

// NewMetrics creates the meters on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("hbctl")
	m := &Metrics{registry: registry, provider: provider}

	m.TaskOpDuration, err = meter.Float64Histogram(
		"task_operation_duration_seconds",
		metric.WithDescription("Supervisor call latency per task in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.TaskOpsTotal, err = meter.Int64Counter(
		"task_operations_total",
		metric.WithDescription("Total number of per-task operations"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskErrorsTotal, err = meter.Int64Counter(
		"task_errors_total",
		metric.WithDescription("Total number of failed per-task operations"),
	)
	if err != nil {
		return nil, err
	}

	m.WaitDuration, err = meter.Float64Histogram(
		"convergence_wait_seconds",
		metric.WithDescription("Time spent waiting for a task to reach a run state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	m.RollingHosts, err = meter.Int64Counter(
		"rolling_update_hosts_total",
		metric.WithDescription("Hosts processed by rolling updates"),
	)
	if err != nil {
		return nil, err
	}

	m.BalancerToggles, err = meter.Int64Counter(
		"balancer_toggles_total",
		metric.WithDescription("Cluster balancer switch calls"),
	)
	if err != nil {
		return nil, err
	}

	m.CommandDuration, err = meter.Float64Histogram(
		"command_duration_seconds",
		metric.WithDescription("Wall clock duration of an hbctl command"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 30, 60, 300, 900, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTaskOp records one supervisor operation on a task.
func (m *Metrics) RecordTaskOp(ctx context.Context, op, role string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(opAttr(op), roleAttr(role))
	m.TaskOpDuration.Record(ctx, durationSeconds, attrs)
	m.TaskOpsTotal.Add(ctx, 1, metric.WithAttributes(opAttr(op), roleAttr(role), successAttr(success)))
	if !success {
		m.TaskErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordWait records a convergence wait.
func (m *Metrics) RecordWait(ctx context.Context, op, role string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.WaitDuration.Record(ctx, durationSeconds, metric.WithAttributes(opAttr(op), roleAttr(role)))
}

// RecordRollingHost records one host finished (or failed) by a rolling update.
func (m *Metrics) RecordRollingHost(ctx context.Context, role string, success bool) {
	if m == nil {
		return
	}
	m.RollingHosts.Add(ctx, 1, metric.WithAttributes(roleAttr(role), successAttr(success)))
}

// RecordBalancer records a balancer switch call.
func (m *Metrics) RecordBalancer(ctx context.Context, enabled bool) {
	if m == nil {
		return
	}
	m.BalancerToggles.Add(ctx, 1, metric.WithAttributes(enabledAttr(enabled)))
}

// RecordCommand records the duration of a whole command.
func (m *Metrics) RecordCommand(ctx context.Context, command string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CommandDuration.Record(ctx, durationSeconds, metric.WithAttributes(commandAttr(command), successAttr(success)))
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() promclient.Gatherer {
	return m.registry
}

// Push sends the collected metrics to a Prometheus pushgateway, grouped by cluster.
func (m *Metrics) Push(ctx context.Context, gatewayURL, clusterName string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	err := push.New(gatewayURL, "hbctl").
		Gatherer(m.registry).
		Grouping("cluster", clusterName).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

// Shutdown releases the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
