// Package journal keeps a history of every per-task operation hbctl performs.
package journal

import (
	"context"
	"time"
)

// Outcome values.
const (
	OK     = "ok"
	Failed = "failed"
)

// Entry is one per-task operation.
type Entry struct {
	Time     time.Time     `bson:"time"`
	Command  string        `bson:"command"`
	Cluster  string        `bson:"cluster"`
	Op       string        `bson:"op"`
	Role     string        `bson:"role,omitempty"`
	TaskID   int           `bson:"task_id"`
	Host     string        `bson:"host,omitempty"`
	Outcome  string        `bson:"outcome"`
	Error    string        `bson:"error,omitempty"`
	Duration time.Duration `bson:"duration_ns"`
}

// Recorder stores journal entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, clusterName string, limit int) ([]Entry, error)
	Close(ctx context.Context) error
}

// Nop discards every entry. Used when no journal is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

func (Nop) Close(context.Context) error { return nil }
