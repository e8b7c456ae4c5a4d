// Package strategy runs ordered fallback chains of detection or actuation
// attempts until one yields a definitive result.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrInconclusive marks an attempt that could not determine a value.
// Any error returned from Attempt is treated the same way.
var ErrInconclusive = errors.New("strategy inconclusive")

// Strategy is one way of answering a yes/no question about the system.
type Strategy interface {
	Name() string
	// Attempt returns a definitive answer, or an error if it could not
	// produce one.
	Attempt(ctx context.Context) (bool, error)
}

// Func adapts a function into a Strategy.
type Func struct {
	ID string
	Fn func(ctx context.Context) (bool, error)
}

// Name returns the strategy name.
func (f Func) Name() string { return f.ID }

// Attempt calls the wrapped function.
func (f Func) Attempt(ctx context.Context) (bool, error) { return f.Fn(ctx) }

// Mode selects which answers end the chain.
type Mode int

const (
	// FirstDefinitive stops at the first attempt that returns without error.
	FirstDefinitive Mode = iota
	// FirstTrue stops only at an attempt that returns true; false answers
	// and errors both move on to the next strategy.
	FirstTrue
)

// Outcome records one attempt.
type Outcome struct {
	Strategy string        `json:"strategy"`
	Value    bool          `json:"value"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Definitive reports whether the attempt produced an answer.
func (o Outcome) Definitive() bool {
	return o.Err == nil
}

// Chain is an ordered list of strategies with a fallback value.
type Chain struct {
	name       string
	strategies []Strategy
	mode       Mode
	fallback   bool
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithMode sets the short-circuit mode.
func WithMode(m Mode) Option {
	return func(c *Chain) { c.mode = m }
}

// WithFallback sets the value returned when no strategy decides.
func WithFallback(v bool) Option {
	return func(c *Chain) { c.fallback = v }
}

// WithTimeout bounds each attempt. Zero means no per-attempt bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Chain) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a chain. The default fallback is false.
func NewChain(name string, strategies []Strategy, opts ...Option) *Chain {
	c := &Chain{
		name:       name,
		strategies: strategies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return c.name
}

// Strategies returns the strategy names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run tries each strategy in order and returns the first decisive answer,
// or the fallback when every strategy is exhausted.
func (c *Chain) Run(ctx context.Context) bool {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		o := c.attempt(ctx, s)
		if !o.Definitive() {
			c.logger.Debug("strategy inconclusive", "chain", c.name, "strategy", o.Strategy, "error", o.Err)
			continue
		}
		if c.mode == FirstTrue && !o.Value {
			continue
		}
		c.logger.Debug("strategy decided", "chain", c.name, "strategy", o.Strategy, "value", o.Value)
		return o.Value
	}
	c.logger.Debug("chain exhausted, using fallback", "chain", c.name, "fallback", c.fallback)
	return c.fallback
}

// Explain runs every strategy without short-circuiting and reports each
// outcome together with the verdict Run would have produced.
func (c *Chain) Explain(ctx context.Context) ([]Outcome, bool) {
	outcomes := make([]Outcome, 0, len(c.strategies))
	verdict, decided := c.fallback, false
	for _, s := range c.strategies {
		o := c.attempt(ctx, s)
		outcomes = append(outcomes, o)
		if decided || !o.Definitive() {
			continue
		}
		if c.mode == FirstTrue && !o.Value {
			continue
		}
		verdict, decided = o.Value, true
	}
	return outcomes, verdict
}

// attempt runs one strategy, converting panics into errors.
func (c *Chain) attempt(ctx context.Context, s Strategy) (o Outcome) {
	o.Strategy = s.Name()
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			o.Value = false
			o.Err = fmt.Errorf("%w: panic: %v", ErrInconclusive, r)
		}
		o.Elapsed = time.Since(start)
		if o.Err != nil {
			o.Error = o.Err.Error()
		}
	}()

	o.Value, o.Err = s.Attempt(ctx)
	return o
}
