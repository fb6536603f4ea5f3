package rolling

import (
	"context"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/observability"
)

// Balancer switches the cluster region balancer.
type Balancer interface {
	SetEnabled(ctx context.Context, enabled bool) error
}

// Lease tracks whether this run turned the balancer off. Release only
// switches it back on when Acquire succeeded.
type Lease struct {
	balancer Balancer
	metrics  *observability.Metrics
	held     bool
}

// NewLease wraps a balancer.
func NewLease(b Balancer, m *observability.Metrics) *Lease {
	return &Lease{balancer: b, metrics: m}
}

// Acquire turns the balancer off.
func (l *Lease) Acquire(ctx context.Context) error {
	if l.held {
		return nil
	}
	err := l.balancer.SetEnabled(ctx, false)
	l.metrics.RecordBalancer(ctx, false)
	if err != nil {
		return apperrors.Remote("balance_switch false", "", 0, "", err)
	}
	l.held = true
	return nil
}

// Release turns the balancer back on.
func (l *Lease) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	err := l.balancer.SetEnabled(ctx, true)
	l.metrics.RecordBalancer(ctx, true)
	if err != nil {
		return apperrors.Remote("balance_switch true", "", 0, "", err)
	}
	l.held = false
	return nil
}

// Held reports whether the balancer is still off because of this lease.
func (l *Lease) Held() bool {
	return l.held
}
