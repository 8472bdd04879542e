// Package breaker provides a small circuit breaker for the Kafka-backed
// sinks: after a run of failures the breaker opens and outbound writes
// fast-fail instead of piling up timeouts, then a probe closes it again.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned on fast-fail while the breaker is open.
var ErrOpen = errors.New("circuit breaker open; fast-fail")

// Config tunes the breaker.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultConfig matches the sink write profile: trip after five consecutive
// failures, retry after ten seconds.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 10 * time.Second}
}

// Breaker wraps an operation with open/half-open/closed bookkeeping.
type Breaker struct {
	name string
	cfg  Config
	lg   *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
}

// New builds a breaker. Zero config fields take defaults.
func New(name string, cfg Config, lg *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	return &Breaker{name: name, cfg: cfg, lg: lg, state: Closed}
}

// Execute runs op under the breaker. While open and before the reset
// timeout it returns ErrOpen without invoking op; after the timeout one
// half-open attempt decides whether to close or re-open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.lg.Info("breaker half-open probe", "name", b.name)
	}
	b.mu.Unlock()

	err := op(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != Closed {
			b.lg.Info("breaker closed", "name", b.name, "from", b.state.String())
		}
		b.state = Closed
		b.recentFails = 0
		return nil
	}
	b.recentFails++
	if b.state == HalfOpen || b.recentFails >= b.cfg.MaxFailures {
		if b.state != Open {
			b.lg.Warn("breaker opened", "name", b.name, "failures", b.recentFails, "error", err)
		}
		b.state = Open
		b.openedAt = time.Now()
	}
	return err
}

// State reports the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
