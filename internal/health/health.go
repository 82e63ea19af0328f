// Package health runs named readiness checks against the service's
// dependencies (settings database, Jira, the chat endpoint).
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const checkTimeout = 5 * time.Second

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of one named check.
type Result struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Checker manages readiness checks for all dependencies.
type Checker struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]CheckFunc
	logger zerolog.Logger
}

// NewChecker creates a health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named check. Registration order is the report order.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = fn
}

// RunAll executes all checks concurrently and reports them in registration
// order.
func (c *Checker) RunAll(ctx context.Context) []Result {
	c.mu.RLock()
	names := make([]string, len(c.names))
	copy(names, c.names)
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, fn CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			results[i] = Result{Name: name, OK: true}
			if err := fn(checkCtx); err != nil {
				results[i] = Result{Name: name, OK: false, Error: err.Error()}
				c.logger.Warn().Str("check", name).Err(err).Msg("health check failed")
			}
		}(i, name, checks[name])
	}
	wg.Wait()
	return results
}

// Ready reports whether every check passes.
func (c *Checker) Ready(ctx context.Context) ([]Result, bool) {
	results := c.RunAll(ctx)
	for _, r := range results {
		if !r.OK {
			return results, false
		}
	}
	return results, true
}
