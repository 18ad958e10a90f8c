package bc

import (
	"fmt"

	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/form"
)

type config struct {
	method         fespace.Method
	jacobian       *form.Form
	preconditioner *form.Form
}

// Option configures boundary condition construction.
type Option func(*config) error

func newConfig(opts ...Option) (config, error) {
	cfg := config{method: fespace.Topological}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

// WithMethod selects how boundary nodes are resolved; the default is
// fespace.Topological.
func WithMethod(m fespace.Method) Option {
	return func(cfg *config) error {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown method %q", ErrConfiguration, m)
		}
		cfg.method = m
		return nil
	}
}

// WithJacobian supplies an explicit Jacobian form to NewEquation instead
// of the default linearization of the residual.
func WithJacobian(J *form.Form) Option {
	return func(cfg *config) error {
		cfg.jacobian = J
		return nil
	}
}

// WithPreconditioner supplies a separate preconditioner form to
// NewEquation; by default the Jacobian form preconditions itself.
func WithPreconditioner(Jp *form.Form) Option {
	return func(cfg *config) error {
		cfg.preconditioner = Jp
		return nil
	}
}
