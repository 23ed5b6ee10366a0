package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/store"
)

var errBadRequest = eris.New("bad request")

// maxBodyBytes bounds request bodies; a full submission is well under 2 KiB.
const maxBodyBytes = 64 << 10

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "backend": s.pipeline.Backend()}
	if st, ok := s.pipeline.UpstreamStatus(); ok {
		resp["upstream"] = st
	}
	render.JSON(w, r, resp)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "pong")
}

// decodeValues reads a JSON object of field values. Numbers keep their
// literal text so large integers survive; an empty body is an empty object.
func decodeValues(r *http.Request) (intake.Values, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	vals := intake.Values{}
	if err := dec.Decode(&vals); err != nil {
		if errors.Is(err, io.EOF) {
			return vals, nil
		}
		return nil, eris.Wrapf(errBadRequest, "request body must be a JSON object: %v", err)
	}
	return vals, nil
}

func (s *Server) prove(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.pipeline.Manual(r.Context(), cookieSession(r), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// reliabilityResponse extends the proof response with the fields of the
// original reliability-only endpoint.
type reliabilityResponse struct {
	*model.ProofResponse
	IsReliable  bool   `json:"isReliable"`
	NargoOutput string `json:"nargoOutput"`
}

func (s *Server) proveReliability(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.pipeline.Reliability(r.Context(), cookieSession(r), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, reliabilityResponse{
		ProofResponse: resp,
		IsReliable:    resp.Criteria[model.CriterionReliability].Pass == model.OutcomePass,
		NargoOutput:   resp.RawExecutorOutput,
	})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.pipeline.Evaluate(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (s *Server) proveConnected(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.pipeline.Connected(r.Context(), sessionFrom(r.Context()), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.sessions.Connect(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess := sessionFrom(r.Context())

	if denied := q.Get("error"); denied != "" {
		zap.L().Warn("api: quickbooks authorization denied",
			zap.String("session_id", sess.ID),
			zap.String("error", denied),
		)
		s.finishCallback(w, r, "denied", eris.Wrapf(errBadRequest, "authorization denied: %s", denied))
		return
	}

	err := s.sessions.Callback(r.Context(), sess, q.Get("state"), q.Get("code"), q.Get("realmId"))
	if err != nil {
		s.finishCallback(w, r, "error", err)
		return
	}
	s.finishCallback(w, r, "connected", nil)
}

// finishCallback redirects back to the frontend when one is configured and
// otherwise answers with JSON.
func (s *Server) finishCallback(w http.ResponseWriter, r *http.Request, result string, err error) {
	if s.cfg.FrontendURL != "" {
		if err != nil {
			zap.L().Warn("api: quickbooks callback failed", zap.Error(err))
		}
		target, perr := url.Parse(s.cfg.FrontendURL)
		if perr == nil {
			q := target.Query()
			q.Set("quickbooks", result)
			target.RawQuery = q.Encode()
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, s.sessions.StatusOf(sessionFrom(r.Context())))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.sessions.StatusOf(sessionFrom(r.Context())))
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.sessions.Disconnect(r.Context(), sess); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, s.sessions.StatusOf(sess))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Mode:   model.Mode(q.Get("mode")),
		Status: model.RunStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, eris.Wrapf(errBadRequest, "limit must be a non-negative integer, got %q", v))
			return
		}
		filter.Limit = n
	}

	runs, err := s.runs.ListProofRuns(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.ProofRun{}
	}
	render.JSON(w, r, map[string]any{"runs": runs})
}
