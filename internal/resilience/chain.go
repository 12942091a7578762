package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrExhausted is returned when every backend in a [Chain] failed or had an
// open breaker.
var ErrExhausted = errors.New("resilience: all backends exhausted")

// backend pairs one provider instance with its dedicated breaker.
type backend[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds an ordered list of interchangeable backends, each behind its
// own [Breaker]. Calls go to the first backend whose breaker admits them;
// a failure moves on to the next. Registration order is priority order.
//
// Backends are registered at startup; [Try] may then be called concurrently.
type Chain[T any] struct {
	cfg Config

	mu       sync.RWMutex
	backends []backend[T]
}

// NewChain creates an empty chain. cfg seeds each backend's breaker; the
// Name field is overwritten per backend.
func NewChain[T any](cfg Config) *Chain[T] {
	return &Chain[T]{cfg: cfg}
}

// Add appends a backend with the lowest priority so far.
func (c *Chain[T]) Add(name string, v T) {
	bcfg := c.cfg
	bcfg.Name = name
	c.mu.Lock()
	c.backends = append(c.backends, backend[T]{name: name, value: v, breaker: NewBreaker(bcfg)})
	c.mu.Unlock()
}

// Len reports how many backends are registered.
func (c *Chain[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.backends)
}

// Try runs fn against each backend in priority order until one succeeds,
// skipping backends with open breakers. Package-level because Go has no
// method-level type parameters.
func Try[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	c.mu.RLock()
	backends := c.backends
	c.mu.RUnlock()

	var (
		zero    R
		lastErr error
	)
	for i := range backends {
		be := &backends[i]
		var result R
		err := be.breaker.Do(func() error {
			var inner error
			result, inner = fn(be.value)
			return inner
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping backend, breaker open", "backend", be.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", be.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
