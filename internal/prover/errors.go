package prover

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an ExecutionError.
type ErrorKind string

const (
	KindEncode  ErrorKind = "encode"
	KindIO      ErrorKind = "io"
	KindExit    ErrorKind = "exit"
	KindTimeout ErrorKind = "timeout"
	KindParse   ErrorKind = "parse"
)

// ExecutionError reports a failed or unreadable circuit execution. Stdout
// and Stderr carry whatever the executor printed.
type ExecutionError struct {
	Kind   ErrorKind
	Stdout string
	Stderr string
	Err    error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("prover: %s", e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Raw returns the executor output for diagnostics.
func (e *ExecutionError) Raw() string {
	switch {
	case e.Stderr == "":
		return e.Stdout
	case e.Stdout == "":
		return e.Stderr
	default:
		return e.Stdout + "\n" + e.Stderr
	}
}

// AsExecution unwraps err to an ExecutionError if it holds one.
func AsExecution(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
