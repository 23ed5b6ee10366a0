package prover

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/metrics"
	"github.com/sells-group/zkcredit/internal/model"
)

// Nargo proves inputs by writing Prover.toml into a Noir circuit directory
// and running `nargo execute` there.
//
// Prover.toml is a fixed path inside the circuit directory, so executions
// against a shared directory are serialized. With isolation enabled each
// call runs in a private copy of the circuit and up to MaxConcurrent calls
// proceed at once.
type Nargo struct {
	binPath    string
	circuitDir string
	timeout    time.Duration
	isolate    bool
	lenient    bool
	sem        *semaphore.Weighted
}

// NewNargo creates a Nargo backend. If NargoPath is empty, "nargo" is used.
func NewNargo(cfg config.ProverConfig) *Nargo {
	bin := cfg.NargoPath
	if bin == "" {
		bin = "nargo"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	slots := int64(1)
	if cfg.Isolate && cfg.MaxConcurrent > 1 {
		slots = int64(cfg.MaxConcurrent)
	}
	return &Nargo{
		binPath:    bin,
		circuitDir: cfg.CircuitDir,
		timeout:    timeout,
		isolate:    cfg.Isolate,
		lenient:    cfg.LenientOutputs,
		sem:        semaphore.NewWeighted(slots),
	}
}

// Name implements Backend.
func (n *Nargo) Name() string { return "nargo" }

// Prove implements Backend.
func (n *Nargo) Prove(ctx context.Context, in model.MetricInputs) (*Proof, error) {
	doc, err := Encode(in)
	if err != nil {
		return nil, &ExecutionError{Kind: KindEncode, Err: err}
	}

	if err := n.sem.Acquire(ctx, 1); err != nil {
		return nil, &ExecutionError{Kind: KindTimeout, Err: eris.Wrap(err, "waiting for executor slot")}
	}
	defer n.sem.Release(1)

	dir := n.circuitDir
	if n.isolate {
		tmp, err := os.MkdirTemp("", "zkcredit-circuit-*")
		if err != nil {
			return nil, &ExecutionError{Kind: KindIO, Err: eris.Wrap(err, "create isolated circuit dir")}
		}
		defer os.RemoveAll(tmp) //nolint:errcheck
		if err := copyCircuit(n.circuitDir, tmp); err != nil {
			return nil, &ExecutionError{Kind: KindIO, Err: err}
		}
		dir = tmp
	}

	if err := os.WriteFile(filepath.Join(dir, InputFile), doc, 0o600); err != nil {
		return nil, &ExecutionError{Kind: KindIO, Err: eris.Wrap(err, "write "+InputFile)}
	}

	runCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, n.binPath, "execute")
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		kind := KindExit
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
			kind = KindTimeout
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && kind == KindExit {
			// Binary missing or not executable.
			kind = KindIO
		}
		return nil, &ExecutionError{
			Kind:   kind,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    eris.Wrapf(runErr, "%s execute", n.binPath),
		}
	}

	outputs, padded, err := ParseOutputs(stdout.String(), n.lenient)
	if err != nil {
		return nil, &ExecutionError{
			Kind:   KindParse,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	if padded > 0 {
		metrics.PaddedOutputs.Add(float64(padded))
		zap.L().Warn("prover: padded missing circuit outputs",
			zap.Int("padded", padded),
			zap.String("stdout", stdout.String()),
		)
	}

	zap.L().Debug("prover: nargo execute complete",
		zap.String("dir", dir),
		zap.Duration("elapsed", elapsed),
	)

	return &Proof{
		Outputs: outputs,
		Raw:     stdout.String(),
		Backend: n.Name(),
		Padded:  padded,
	}, nil
}

// copyCircuit copies the circuit sources into dst, skipping build output
// and any stale input file.
func copyCircuit(src, dst string) error {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rel == "target" {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if rel == InputFile || !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
	return eris.Wrapf(err, "copy circuit %s", src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}
