package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/prover"
)

// --- Backend Mock ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Prove(ctx context.Context, in model.MetricInputs) (*prover.Proof, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prover.Proof), args.Error(1)
}

// --- Source Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, sess *model.Session) (*model.Ledger, error) {
	args := m.Called(ctx, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ledger), args.Error(1)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) CreateProofRun(ctx context.Context, run *model.ProofRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
