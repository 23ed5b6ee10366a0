package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/resilience"
)

// Source fetches a ledger snapshot for a connected session.
type Source interface {
	Fetch(ctx context.Context, sess *model.Session) (*model.Ledger, error)
}

// StatusReporter is implemented by sources that guard their calls with a
// circuit breaker.
type StatusReporter interface {
	Status() resilience.Status
}

// UpstreamError reports that the accounting provider was unreachable,
// rejected the credentials, or returned data that could not be read.
// Reconnect is set when the user has to authorize again.
type UpstreamError struct {
	Op        string
	Reconnect bool
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AsUpstream unwraps err to an UpstreamError if it holds one.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
