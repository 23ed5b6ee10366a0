package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/ledger"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/prover"
	"github.com/sells-group/zkcredit/internal/session"
)

// Error kinds reported in ErrorResponse.Kind besides the prover's own.
const (
	kindValidation   = "validation"
	kindNotConnected = "not_connected"
	kindOAuthState   = "oauth_state"
	kindUpstream     = "upstream"
	kindBadRequest   = "bad_request"
	kindInternal     = "internal"
)

// errorStatus maps an error to its HTTP status and response body.
func errorStatus(err error) (int, model.ErrorResponse) {
	resp := model.ErrorResponse{Error: err.Error()}

	if ee, ok := prover.AsExecution(err); ok {
		resp.Kind = string(ee.Kind)
		resp.RawExecutorOutput = ee.Raw()
		return http.StatusInternalServerError, resp
	}
	if ue, ok := ledger.AsUpstream(err); ok {
		resp.Kind = kindUpstream
		resp.Reconnect = ue.Reconnect
		return http.StatusBadGateway, resp
	}

	switch {
	case intake.IsValidation(err):
		resp.Kind = kindValidation
		return http.StatusBadRequest, resp
	case errors.Is(err, session.ErrNotConnected):
		resp.Kind = kindNotConnected
		resp.Reconnect = true
		return http.StatusUnauthorized, resp
	case errors.Is(err, session.ErrStateMismatch):
		resp.Kind = kindOAuthState
		return http.StatusBadRequest, resp
	case errors.Is(err, errBadRequest):
		resp.Kind = kindBadRequest
		return http.StatusBadRequest, resp
	}

	resp.Kind = kindInternal
	return http.StatusInternalServerError, resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorStatus(err)
	log := zap.L().With(
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("kind", resp.Kind),
	)
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed", zap.Error(err))
	} else {
		log.Warn("api: request rejected", zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
