package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	if m.Gatherer() == nil {
		t.Fatal("Expected gatherer to be non-nil")
	}
}

func TestRecordTaskOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	m.RecordTaskOp(ctx, "start", "regionserver", true, 0.2)
	m.RecordTaskOp(ctx, "start", "regionserver", true, 0.3)
	m.RecordTaskOp(ctx, "stop", "master", false, 1.5)

	if got := counterValue(t, m, "task_operations_total"); got != 3 {
		t.Errorf("task_operations_total = %v, want 3", got)
	}
	if got := counterValue(t, m, "task_errors_total"); got != 1 {
		t.Errorf("task_errors_total = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	ctx := context.Background()

	// Should not panic
	m.RecordTaskOp(ctx, "start", "regionserver", true, 0.1)
	m.RecordWait(ctx, "wait-running", "regionserver", 2)
	m.RecordRollingHost(ctx, "regionserver", true)
	m.RecordBalancer(ctx, false)
	m.RecordCommand(ctx, "start", true, 3)
	if err := m.Push(ctx, "http://unused", "c"); err != nil {
		t.Errorf("nil push should be a no-op, got %v", err)
	}
}

func TestPush(t *testing.T) {
	t.Parallel()
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	m.RecordBalancer(context.Background(), false)

	if err := m.Push(context.Background(), srv.URL, "hbase-test"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/metrics/job/hbctl/cluster/hbase-test" {
		t.Errorf("push path = %s", path)
	}
	if body == "" {
		t.Error("push body should not be empty")
	}
	if !strings.Contains(path, "hbase-test") {
		t.Error("push should be grouped by cluster")
	}
}
