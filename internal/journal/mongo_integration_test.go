//go:build integration

package journal

import (
	"context"
	"os"
	"testing"
	"time"
)

func mongoURI() string {
	if v := os.Getenv("HBCTL_TEST_MONGO_URI"); v != "" {
		return v
	}
	return "mongodb://localhost:27018"
}

func TestMongoRecorderRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := "hbctl_journal_test_" + time.Now().Format("150405")
	r, err := NewMongoRecorder(ctx, mongoURI(), db)
	if err != nil {
		t.Skipf("mongodb not available: %v", err)
	}
	defer func() {
		_ = r.client.Database(db).Drop(ctx)
		_ = r.Close(ctx)
	}()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, op := range []string{"stop", "start"} {
		err := r.Record(ctx, Entry{
			Time:    base.Add(time.Duration(i) * time.Second),
			Command: "restart",
			Cluster: "hbase-it",
			Op:      op,
			Role:    "regionserver",
			Host:    "h1",
			Outcome: OK,
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := r.Recent(ctx, "hbase-it", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 || entries[0].Op != "start" {
		t.Errorf("expected newest first, got %+v", entries)
	}
}
