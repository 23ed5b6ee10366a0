package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/ledger"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/pipeline"
	"github.com/sells-group/zkcredit/internal/prover"
	"github.com/sells-group/zkcredit/internal/scorer"
	"github.com/sells-group/zkcredit/internal/session"
	"github.com/sells-group/zkcredit/internal/store"
)

type fakeSource struct {
	ledger *model.Ledger
	err    error
}

func (f *fakeSource) Fetch(_ context.Context, _ *model.Session) (*model.Ledger, error) {
	return f.ledger, f.err
}

func recentLedger() *model.Ledger {
	now := time.Now().UTC()
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }
	return &model.Ledger{
		Invoices: []model.Invoice{
			{ID: "1", CustomerID: "a", IssueDate: ago(40), DueDate: ago(10), TotalAmount: 1000, PaymentIDs: []string{"p1"}},
			{ID: "2", CustomerID: "b", IssueDate: ago(30), DueDate: now, TotalAmount: 1000, PaymentIDs: []string{"p2"}},
			{ID: "3", CustomerID: "c", IssueDate: ago(5), DueDate: now.AddDate(0, 0, 25), TotalAmount: 500, Balance: 500},
		},
		Payments: []model.Payment{
			{ID: "p1", Date: ago(20), TotalAmount: 1000},
			{ID: "p2", Date: ago(10), TotalAmount: 1000},
		},
	}
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	store  *store.SQLiteStore
}

func newTestEnv(t *testing.T, cfg config.ServerConfig) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokens.Close)

	sessions := session.NewManager(config.QuickBooksConfig{
		ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/api/quickbooks/callback",
	}, st, session.WithEndpoint(oauth2.Endpoint{
		AuthURL:   "https://appcenter.intuit.com/connect/oauth2",
		TokenURL:  tokens.URL,
		AuthStyle: oauth2.AuthStyleInHeader,
	}))

	p := pipeline.New(scorer.DefaultLenderConfig(), prover.NewLocal(), &fakeSource{ledger: recentLedger()}, st)
	srv := httptest.NewServer(NewServer(cfg, p, sessions, st).Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, client: client, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const scenarioBody = `{
	"total_invoices": 100, "paid_invoices": 90, "threshold_percent": 90,
	"total_debt": 40000, "total_income": 100000, "dti_threshold_bp": 4000,
	"dso": 44, "dso_threshold": 45,
	"ar_over60": 9000, "ar_total": 100000, "ar_pct_threshold_bp": 1000,
	"revenue12mo": 121000, "revenue_threshold": 120000,
	"largest_cust_sales": 49999, "total_sales": 100000, "concentration_threshold_bp": 5000
}`

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","backend":"local"}`, string(body))
}

func TestHealth_ReportsUpstreamBreaker(t *testing.T) {
	p := pipeline.New(scorer.DefaultLenderConfig(), prover.NewLocal(), ledger.NewQuickBooks(&config.Config{}, nil), nil)
	srv := NewServer(config.ServerConfig{}, p, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"local",
		"upstream":{"service":"quickbooks","state":"closed","failures":0}}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	get := func(t *testing.T, origins []string, origin string) http.Header {
		t.Helper()
		p := pipeline.New(scorer.DefaultLenderConfig(), prover.NewLocal(), nil, nil)
		srv := NewServer(config.ServerConfig{CORSOrigins: origins}, p, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		return rec.Header()
	}

	t.Run("wildcard without credentials", func(t *testing.T) {
		for _, origins := range [][]string{nil, {"*"}, {"https://app.example.com", "*"}} {
			h := get(t, origins, "https://evil.example.com")
			assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
			assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
		}
	})

	t.Run("explicit origins allow credentials", func(t *testing.T) {
		origins := []string{"https://app.example.com"}
		h := get(t, origins, "https://app.example.com")
		assert.Equal(t, "https://app.example.com", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))

		h = get(t, origins, "https://evil.example.com")
		assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
	})
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodGet, "/api/quickbooks/ping", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	env.do(t, http.MethodPost, "/api/prove", scenarioBody)

	resp, body := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "zkcredit_proof_runs_total")
}

func TestProve_Scenario(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove", scenarioBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out model.ProofResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, [model.NumCriteria]bool{true, true, true, true, true, true}, out.Proof)
	assert.Equal(t, model.OutcomePass, out.OverallPass)
	assert.Equal(t, "local", out.Backend)
	assert.Contains(t, out.RawExecutorOutput, "Field(1)")
	require.NotEmpty(t, out.RunID)

	resp, body = env.do(t, http.MethodGet, "/api/runs?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Runs []model.ProofRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, out.RunID, listed.Runs[0].ID)
	assert.Equal(t, "111111", listed.Runs[0].Proof)
	assert.NotContains(t, string(body), "49999")
}

func TestProve_NumericStrings(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove",
		`{"total_invoices":"100","paid_invoices":"89","threshold_percent":"90"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"overallPass":false`)
}

func TestProve_ValidationError(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove", `{"total_invoices": 10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out model.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, kindValidation, out.Kind)
	assert.Contains(t, out.Error, "paid_invoices")
	assert.Contains(t, out.Error, "threshold_percent")
}

func TestProve_MalformedBody(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove", `{"total_invoices":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), kindBadRequest)
}

func TestProve_UnknownOverallIsNull(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove",
		`{"total_invoices":10,"paid_invoices":10,"threshold_percent":90,"total_debt":0,"total_income":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"overallPass":null`)
}

func TestProveReliability(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/prove-reliability",
		`{"total_invoices":100,"paid_invoices":90,"threshold_percent":90,"total_debt":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		IsReliable  bool   `json:"isReliable"`
		NargoOutput string `json:"nargoOutput"`
		OverallPass *bool  `json:"overallPass"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.IsReliable)
	assert.NotEmpty(t, out.NargoOutput)
	require.NotNil(t, out.OverallPass)
	assert.True(t, *out.OverallPass)
}

func TestEvaluate(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, body := env.do(t, http.MethodPost, "/api/evaluate", scenarioBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"backend":"evaluator"`)

	// evaluation is not audited
	_, body = env.do(t, http.MethodGet, "/api/runs", "")
	assert.JSONEq(t, `{"runs":[]}`, string(body))
}

func TestListRuns_BadLimit(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, _ := env.do(t, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuickBooksFlow(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	resp, body := env.do(t, http.MethodGet, "/api/quickbooks/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st session.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.Connected)
	require.NotEmpty(t, st.SessionID)

	// not connected yet
	resp, body = env.do(t, http.MethodPost, "/api/quickbooks/prove", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), `"reconnect":true`)

	resp, _ = env.do(t, http.MethodGet, "/api/quickbooks/connect", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cb := "/api/quickbooks/callback?" + url.Values{
		"state": {state}, "code": {"good-code"}, "realmId": {"realm-9"},
	}.Encode()
	resp, body = env.do(t, http.MethodGet, cb, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.Connected)
	assert.Equal(t, "realm-9", st.RealmID)

	resp, body = env.do(t, http.MethodPost, "/api/quickbooks/prove",
		`{"threshold_percent":50,"revenue_threshold":1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out model.ProofResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, model.ModeConnected, out.Mode)
	assert.Equal(t, model.OutcomePass, out.OverallPass)

	// actuals cannot be supplied in connected mode
	resp, _ = env.do(t, http.MethodPost, "/api/quickbooks/prove", `{"dso":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/quickbooks/disconnect", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.Connected)

	resp, _ = env.do(t, http.MethodPost, "/api/quickbooks/prove", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallback_StateMismatch(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	resp, _ := env.do(t, http.MethodGet, "/api/quickbooks/connect", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/quickbooks/callback?state=forged&code=good-code&realmId=r", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), kindOAuthState)
}

func TestCallback_RedirectsToFrontend(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{FrontendURL: "http://localhost:5173/app"})

	resp, _ := env.do(t, http.MethodGet, "/api/quickbooks/connect", "")
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	cb := "/api/quickbooks/callback?" + url.Values{
		"state": {loc.Query().Get("state")}, "code": {"good-code"}, "realmId": {"r"},
	}.Encode()
	resp, _ = env.do(t, http.MethodGet, cb, "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173/app?quickbooks=connected", resp.Header.Get("Location"))

	resp, _ = env.do(t, http.MethodGet, "/api/quickbooks/callback?error=access_denied", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173/app?quickbooks=denied", resp.Header.Get("Location"))
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{CookieSecure: true})
	req := httptest.NewRequest(http.MethodGet, "/api/quickbooks/status", nil)
	rec := httptest.NewRecorder()
	env.srv.Config.Handler.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close() //nolint:errcheck
	var found *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == CookieName {
			found = c
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.HttpOnly)
	assert.True(t, found.Secure)
	assert.NotEmpty(t, found.Value)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"exit", &prover.ExecutionError{Kind: prover.KindExit, Stdout: "out", Stderr: "boom"}, http.StatusInternalServerError, "exit"},
		{"parse", &prover.ExecutionError{Kind: prover.KindParse, Stdout: "[Field(1)]"}, http.StatusInternalServerError, "parse"},
		{"not connected", session.ErrNotConnected, http.StatusUnauthorized, kindNotConnected},
		{"state", session.ErrStateMismatch, http.StatusBadRequest, kindOAuthState},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError, kindInternal},
		{"validation", &intake.ValidationError{}, http.StatusBadRequest, kindValidation},
		{"inconsistent ledger", &ledger.UpstreamError{Op: "aggregate", Err: &intake.ValidationError{}}, http.StatusBadGateway, kindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}

	_, resp := errorStatus(&prover.ExecutionError{Kind: prover.KindExit, Stdout: "out", Stderr: "boom"})
	assert.Equal(t, "out\nboom", resp.RawExecutorOutput)
}

func TestConnectedProve_UpstreamFailure(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	defer st.Close() //nolint:errcheck

	sess := &model.Session{ID: "s1", RealmID: "r", AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, st.SaveSession(context.Background(), sess))

	src := &fakeSource{err: fmt.Errorf("fetch: %w", &ledger.UpstreamError{
		Op: "invoices", Reconnect: true, Err: errors.New("401 unauthorized"),
	})}
	p := pipeline.New(scorer.DefaultLenderConfig(), prover.NewLocal(), src, st)
	h := NewServer(config.ServerConfig{}, p, session.NewManager(config.QuickBooksConfig{}, st), st).Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/quickbooks/prove", bytes.NewReader(nil))
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "s1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"upstream"`)
	assert.Contains(t, rec.Body.String(), `"reconnect":true`)
}
