// Package prover runs the lending-criteria circuit over metric inputs.
package prover

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
)

// Proof is the result of one circuit execution.
type Proof struct {
	Outputs [model.NumCriteria]bool
	// Raw is the executor's unmodified output.
	Raw     string
	Backend string
	// Padded is the number of outputs filled with false by lenient parsing.
	Padded int
}

// Backend executes the circuit. Implementations are safe for concurrent use.
type Backend interface {
	Name() string
	Prove(ctx context.Context, in model.MetricInputs) (*Proof, error)
}

// NewBackend creates a Backend based on config.
func NewBackend(cfg config.ProverConfig) (Backend, error) {
	switch cfg.Backend {
	case "nargo", "":
		return NewNargo(cfg), nil
	case "local":
		return NewLocal(), nil
	default:
		return nil, eris.Errorf("prover: unknown backend %q", cfg.Backend)
	}
}
