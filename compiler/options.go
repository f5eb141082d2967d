package compiler

import (
	"github.com/rs/zerolog"
)

// Option describes a function used to configure a compilation.
type Option func(*config)

type config struct {
	registry       *Registry
	logger         zerolog.Logger
	fragmentChecks bool
}

func newConfig(opts ...Option) *config {
	cfg := &config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}
	return cfg
}

// WithLogger supplies the logger that receives per-thread debug output and a
// summary of each compilation. Logging is disabled by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithRegistry replaces the set of known block kinds. Use
// DefaultRegistry().Clone() to extend the built-in set.
func WithRegistry(r *Registry) Option {
	return func(cfg *config) {
		cfg.registry = r
	}
}

// WithFragmentChecks enables a stack analysis of every generated block
// fragment. A fragment must leave exactly one value of its declared type on
// the stack, or nothing for a statement. This catches generators that lie
// about their type at the cost of re-analyzing nested code.
func WithFragmentChecks(enabled bool) Option {
	return func(cfg *config) {
		cfg.fragmentChecks = enabled
	}
}
