package prover

import (
	"context"

	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/scorer"
)

// Local evaluates the circuit's comparisons in process. It produces no
// proof artifact and is meant for development and for hosts without nargo.
type Local struct{}

// NewLocal creates a Local backend.
func NewLocal() *Local { return &Local{} }

// Name implements Backend.
func (l *Local) Name() string { return "local" }

// Prove implements Backend. Like the circuit, an undecidable criterion
// yields false.
func (l *Local) Prove(ctx context.Context, in model.MetricInputs) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{Kind: KindTimeout, Err: err}
	}
	out := scorer.ProofBits(scorer.Evaluate(in, model.SetAll))
	return &Proof{
		Outputs: out,
		Raw:     "Circuit output: " + FormatOutputs(out),
		Backend: l.Name(),
	}, nil
}
