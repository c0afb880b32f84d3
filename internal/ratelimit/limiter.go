package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/tenantcrm/pkg/metrics"
)

// Namespaces of the limiters the server wires up. Counter keys take the form
// rl:<namespace>:<subject>.
const (
	NamespaceResetRequest   = "reset"
	NamespacePasswordChange = "pwchange"
	NamespaceAPI            = "api"
)

// Policy bounds attempts per key inside a fixed window.
type Policy struct {
	Window time.Duration
	Max    int
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies a Policy to keys under a namespace. Every attempt is counted,
// rejected ones included, so a caller that keeps retrying stays blocked until
// the window that was opened by its first attempt elapses.
type Limiter struct {
	store     CounterStore
	namespace string
	policy    Policy
}

// New constructs a Limiter. The namespace keeps counters of different flows apart.
func New(store CounterStore, namespace string, policy Policy) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if namespace == "" {
		return nil, errors.New("ratelimit: namespace is required")
	}
	if policy.Window <= 0 || policy.Max <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid policy window=%s max=%d", policy.Window, policy.Max)
	}
	return &Limiter{store: store, namespace: namespace, policy: policy}, nil
}

// Policy returns the configured policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow counts an attempt for key and reports whether it is within the policy.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.store.IncrementWithTTL(ctx, Key(l.namespace, key), l.policy.Window)
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(l.namespace, "error").Inc()
		return Decision{}, fmt.Errorf("ratelimit: increment: %w", err)
	}

	decision := Decision{
		Allowed: count <= int64(l.policy.Max),
		Count:   count,
	}
	if remaining := int64(l.policy.Max) - count; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
		metrics.RateLimitDecisions.WithLabelValues(l.namespace, "deny").Inc()
	} else {
		metrics.RateLimitDecisions.WithLabelValues(l.namespace, "allow").Inc()
	}
	return decision, nil
}

// Key returns the counter key used for subject under namespace.
func Key(namespace, subject string) string {
	return "rl:" + namespace + ":" + subject
}
