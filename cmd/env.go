package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/ledger"
	"github.com/sells-group/zkcredit/internal/pipeline"
	"github.com/sells-group/zkcredit/internal/prover"
	"github.com/sells-group/zkcredit/internal/scorer"
	"github.com/sells-group/zkcredit/internal/session"
	"github.com/sells-group/zkcredit/internal/store"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// appEnv holds the wired dependencies shared by serve and prove.
type appEnv struct {
	Store    store.Store
	Sessions *session.Manager
	Pipeline *pipeline.Pipeline
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv wires the store, session manager, ledger source and pipeline.
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := scorer.ValidateConfig(cfg.Lender); err != nil {
		return nil, err
	}
	backend, err := prover.NewBackend(cfg.Prover)
	if err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.QuickBooks, st)
	source := ledger.NewQuickBooks(cfg, sessions.HTTPClient)
	return &appEnv{
		Store:    st,
		Sessions: sessions,
		Pipeline: pipeline.New(cfg.Lender, backend, source, st),
	}, nil
}

// loadValues reads field values from a YAML, JSON or TOML file. A
// Prover.toml written by the nargo backend is accepted as is.
func loadValues(path string) (intake.Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read input %s", path)
	}

	vals := intake.Values{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		err = yaml.Unmarshal(data, &vals)
	case ".toml":
		err = toml.Unmarshal(data, &vals)
	default:
		return nil, eris.Errorf("input %s: unsupported extension (want .yaml, .yml, .json or .toml)", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "parse input %s", path)
	}
	return vals, nil
}

// collectValues merges an optional input file with --set overrides.
func collectValues(inputPath string, overrides map[string]string) (intake.Values, error) {
	vals := intake.Values{}
	if inputPath != "" {
		v, err := loadValues(inputPath)
		if err != nil {
			return nil, err
		}
		vals = v
	}
	for k, v := range overrides {
		vals[k] = v
	}
	return vals, nil
}
