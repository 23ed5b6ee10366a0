// Package store persists sessions and the proof-run audit log.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing proof runs.
type RunFilter struct {
	SessionID string          `json:"session_id,omitempty"`
	Mode      model.Mode      `json:"mode,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// DefaultRunLimit caps ListProofRuns when no limit is given.
const DefaultRunLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultRunLimit
	}
	return f.Limit
}

// Store defines the persistence interface.
type Store interface {
	// Sessions
	SaveSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Proof runs. Inputs are never stored, only public outputs.
	CreateProofRun(ctx context.Context, run *model.ProofRun) error
	ListProofRuns(ctx context.Context, filter RunFilter) ([]model.ProofRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend. The schema is not migrated.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
