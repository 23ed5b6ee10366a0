// Package pipeline runs a scoring request end to end: intake, ledger
// aggregation, circuit execution, scorecard assembly and the audit record.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/ledger"
	"github.com/sells-group/zkcredit/internal/metrics"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/prover"
	"github.com/sells-group/zkcredit/internal/resilience"
	"github.com/sells-group/zkcredit/internal/scorer"
	"github.com/sells-group/zkcredit/internal/session"
)

// EvaluatorBackend names responses produced by the in-process evaluator
// without running a circuit.
const EvaluatorBackend = "evaluator"

// RunRecorder persists proof-run audit records.
type RunRecorder interface {
	CreateProofRun(ctx context.Context, run *model.ProofRun) error
}

// Pipeline orchestrates scoring requests.
type Pipeline struct {
	policy  config.LenderConfig
	backend prover.Backend
	source  ledger.Source
	runs    RunRecorder
	now     func() time.Time
}

// New creates a Pipeline. source and runs may be nil: without a source
// connected requests fail, and without runs nothing is audited.
func New(policy config.LenderConfig, backend prover.Backend, source ledger.Source, runs RunRecorder) *Pipeline {
	return &Pipeline{
		policy:  policy,
		backend: backend,
		source:  source,
		runs:    runs,
		now:     time.Now,
	}
}

// Backend returns the name of the proof backend in use.
func (p *Pipeline) Backend() string { return p.backend.Name() }

// UpstreamStatus reports the ledger source's circuit breaker, if it has one.
func (p *Pipeline) UpstreamStatus() (resilience.Status, bool) {
	r, ok := p.source.(ledger.StatusReporter)
	if !ok {
		return resilience.Status{}, false
	}
	return r.Status(), true
}

// Manual proves a request whose actuals are supplied by the caller.
func (p *Pipeline) Manual(ctx context.Context, sessionID string, raw intake.Values) (*model.ProofResponse, error) {
	sub, err := intake.ParseManual(raw, p.policy)
	if err != nil {
		metrics.ValidationFailures.Inc()
		return nil, err
	}
	return p.Prove(ctx, sessionID, sub)
}

// Reliability proves the three reliability fields only. Every other
// criterion is masked.
func (p *Pipeline) Reliability(ctx context.Context, sessionID string, raw intake.Values) (*model.ProofResponse, error) {
	sub, err := intake.ParseReliability(raw)
	if err != nil {
		metrics.ValidationFailures.Inc()
		return nil, err
	}
	return p.Prove(ctx, sessionID, sub)
}

// Connected proves all six criteria with actuals aggregated from the
// session's accounting ledger. raw may carry thresholds.
func (p *Pipeline) Connected(ctx context.Context, sess *model.Session, raw intake.Values) (*model.ProofResponse, error) {
	if !sess.Connected() {
		return nil, session.ErrNotConnected
	}
	if p.source == nil {
		return nil, eris.New("pipeline: no ledger source configured")
	}

	sub, err := intake.ParseConnected(raw, p.policy)
	if err != nil {
		metrics.ValidationFailures.Inc()
		return nil, err
	}

	log := zap.L().With(zap.String("session_id", sess.ID))
	start := p.now()
	failed := func(err error) error {
		p.finish(ctx, &model.ProofRun{
			SessionID: sess.ID,
			Mode:      sub.Mode,
			Backend:   p.backend.Name(),
			Status:    model.RunStatusFailed,
			ErrorKind: "upstream",
		}, start)
		return err
	}

	l, err := p.source.Fetch(ctx, sess)
	if err != nil {
		log.Error("pipeline: ledger fetch failed", zap.Error(err))
		return nil, failed(err)
	}

	actuals := ledger.Aggregate(*l, p.now())
	log.Info("pipeline: ledger aggregated",
		zap.Int("invoices", len(l.Invoices)),
		zap.Int("payments", len(l.Payments)),
	)
	// Actuals come from the accounting system, so an inconsistent set is
	// bad upstream data rather than a bad request.
	if err := sub.WithActuals(actuals); err != nil {
		log.Error("pipeline: aggregated ledger is inconsistent", zap.Error(err))
		return nil, failed(&ledger.UpstreamError{Op: "aggregate", Err: err})
	}
	return p.Prove(ctx, sess.ID, sub)
}

// Prove masks inactive criteria, runs the backend and builds the response.
// The run is recorded whether or not the backend succeeds.
func (p *Pipeline) Prove(ctx context.Context, sessionID string, sub *intake.Submission) (*model.ProofResponse, error) {
	backend := p.backend.Name()
	log := zap.L().With(
		zap.String("mode", string(sub.Mode)),
		zap.String("backend", backend),
		zap.Strings("active", sub.Active.Keys()),
	)
	run := &model.ProofRun{SessionID: sessionID, Mode: sub.Mode, Backend: backend}

	log.Debug("pipeline: proving")
	start := p.now()
	proof, err := p.backend.Prove(ctx, scorer.ApplyMask(sub.Inputs, sub.Active))
	metrics.ProofDuration.WithLabelValues(backend).Observe(p.now().Sub(start).Seconds())
	if err != nil {
		kind := string(prover.KindIO)
		if ee, ok := prover.AsExecution(err); ok {
			kind = string(ee.Kind)
		}
		metrics.ProverErrors.WithLabelValues(kind).Inc()
		run.Status = model.RunStatusFailed
		run.ErrorKind = kind
		p.finish(ctx, run, start)
		log.Error("pipeline: proof failed", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}

	outcomes := scorer.FromProof(proof.Outputs, sub.Inputs, sub.Active)
	sc := scorer.Build(outcomes, sub.Active)
	countOutcomes(outcomes, sub.Active)

	run.Status = model.RunStatusComplete
	run.Proof = model.ProofBits(proof.Outputs)
	run.Overall = sc.Overall
	p.finish(ctx, run, start)

	log.Info("pipeline: proof complete",
		zap.String("run_id", run.ID),
		zap.String("overall", sc.Overall.String()),
		zap.Int64("duration_ms", run.DurationMs),
	)

	return &model.ProofResponse{
		RunID:             run.ID,
		Mode:              sub.Mode,
		Backend:           backend,
		Proof:             proof.Outputs,
		Criteria:          sc.Criteria,
		OverallPass:       sc.Overall,
		RawExecutorOutput: proof.Raw,
	}, nil
}

// Evaluate scores a manual request in process without running a circuit
// or recording a run.
func (p *Pipeline) Evaluate(raw intake.Values) (*model.ProofResponse, error) {
	sub, err := intake.ParseManual(raw, p.policy)
	if err != nil {
		metrics.ValidationFailures.Inc()
		return nil, err
	}
	return EvaluateSubmission(sub), nil
}

// EvaluateSubmission scores an already validated submission in process.
func EvaluateSubmission(sub *intake.Submission) *model.ProofResponse {
	outcomes := scorer.Evaluate(sub.Inputs, sub.Active)
	sc := scorer.Build(outcomes, sub.Active)
	return &model.ProofResponse{
		Mode:        sub.Mode,
		Backend:     EvaluatorBackend,
		Proof:       scorer.ProofBits(outcomes),
		Criteria:    sc.Criteria,
		OverallPass: sc.Overall,
	}
}

// finish stamps and stores the run. Audit failures are logged, never
// returned: the caller already has a result.
func (p *Pipeline) finish(ctx context.Context, run *model.ProofRun, start time.Time) {
	run.ID = uuid.New().String()
	run.DurationMs = p.now().Sub(start).Milliseconds()
	metrics.ProofRuns.WithLabelValues(string(run.Mode), run.Backend, string(run.Status)).Inc()

	if p.runs == nil {
		return
	}
	if err := p.runs.CreateProofRun(ctx, run); err != nil {
		zap.L().Warn("pipeline: failed to record proof run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

func countOutcomes(outcomes [model.NumCriteria]model.Outcome, active model.CriterionSet) {
	for _, c := range model.AllCriteria {
		if !active.Has(c) {
			continue
		}
		metrics.CriterionOutcomes.WithLabelValues(c.Key(), outcomes[c].String()).Inc()
	}
}
