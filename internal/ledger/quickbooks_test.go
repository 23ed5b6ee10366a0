package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
)

func connected() *model.Session {
	return &model.Session{ID: "s1", RealmID: "4620816365", AccessToken: "tok"}
}

func newTestSource(t *testing.T, h http.HandlerFunc) *QuickBooks {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		QuickBooks: config.QuickBooksConfig{BaseURL: srv.URL, MinorVersion: 75, PageSize: 100},
		Retry:      config.RetryConfig{MaxAttempts: 3, InitialBackoffMs: 1, MaxBackoffMs: 2},
		Circuit:    config.CircuitConfig{FailureThreshold: 10, ResetTimeoutSecs: 30},
	}
	q := NewQuickBooks(cfg, func(context.Context, *model.Session) (*http.Client, error) {
		return srv.Client(), nil
	})
	q.now = func() time.Time { return now }
	return q
}

const invoicesJSON = `{"QueryResponse":{"Invoice":[
	{"Id":"1","TxnDate":"2024-01-01","DueDate":"2024-01-31","TotalAmt":1000,"Balance":0,
	 "CustomerRef":{"value":"acme","name":"Acme"},"LinkedTxn":[{"TxnId":"p1","TxnType":"Payment"}],
	 "MetaData":{"LastUpdatedTime":"2024-01-21T10:00:00-08:00"}},
	{"Id":"2","TxnDate":"2024-03-02","DueDate":"2024-04-01","TotalAmt":400,"Balance":250,
	 "CustomerRef":{"value":"globex"}}
]}}`

const paymentsJSON = `{"QueryResponse":{"Payment":[{"Id":"p1","TxnDate":"2024-01-21","TotalAmt":1000}]}}`

func TestQuickBooks_Fetch(t *testing.T) {
	q := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/4620816365/query", r.URL.Path)
		if strings.Contains(r.URL.Query().Get("query"), "FROM Invoice") {
			fmt.Fprint(w, invoicesJSON)
			return
		}
		fmt.Fprint(w, paymentsJSON)
	})

	l, err := q.Fetch(context.Background(), connected())
	require.NoError(t, err)
	require.Len(t, l.Invoices, 2)
	require.Len(t, l.Payments, 1)
	assert.Equal(t, now, l.FetchedAt)

	inv := l.Invoices[0]
	assert.Equal(t, "acme", inv.CustomerID)
	assert.Equal(t, "Acme", inv.CustomerName)
	assert.Equal(t, []string{"p1"}, inv.PaymentIDs)
	assert.Equal(t, date(2024, 1, 1), inv.IssueDate)
	assert.False(t, inv.LastModified.IsZero())

	in := Aggregate(*l, now)
	assert.Equal(t, uint64(20), in.DSO)
	assert.Equal(t, uint64(250), in.AROver60)
}

func TestQuickBooks_RetriesThrottling(t *testing.T) {
	var invoiceCalls atomic.Int32
	q := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("query"), "FROM Invoice") {
			if invoiceCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, invoicesJSON)
			return
		}
		fmt.Fprint(w, paymentsJSON)
	})

	l, err := q.Fetch(context.Background(), connected())
	require.NoError(t, err)
	assert.Len(t, l.Invoices, 2)
	assert.Equal(t, int32(2), invoiceCalls.Load())
}

func TestQuickBooks_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	q := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"Fault":{"Error":[{"Message":"AuthenticationFailed","code":"3200"}]}}`)
	})

	_, err := q.Fetch(context.Background(), connected())
	ue, ok := AsUpstream(err)
	require.True(t, ok)
	assert.True(t, ue.Reconnect)
	assert.Equal(t, "fetch", ue.Op)
	// 401 is not retried
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestQuickBooks_ServerErrorExhaustsRetries(t *testing.T) {
	q := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := q.Fetch(context.Background(), connected())
	ue, ok := AsUpstream(err)
	require.True(t, ok)
	assert.False(t, ue.Reconnect)
	assert.Contains(t, ue.Error(), "unexpected status 503")

	st := q.Status()
	assert.Equal(t, "quickbooks", st.Service)
	assert.Equal(t, "closed", st.State)
	assert.Positive(t, st.Failures)
}

func TestQuickBooks_MalformedDate(t *testing.T) {
	q := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("query"), "FROM Invoice") {
			fmt.Fprint(w, `{"QueryResponse":{"Invoice":[{"Id":"9","TxnDate":"01/02/2024","TotalAmt":1,"Balance":0,"CustomerRef":{"value":"a"}}]}}`)
			return
		}
		fmt.Fprint(w, `{"QueryResponse":{}}`)
	})

	_, err := q.Fetch(context.Background(), connected())
	ue, ok := AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, "decode", ue.Op)
	assert.Contains(t, ue.Error(), "invoice 9")
}

func TestQuickBooks_NotConnected(t *testing.T) {
	q := newTestSource(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := q.Fetch(context.Background(), &model.Session{ID: "s"})
	ue, ok := AsUpstream(err)
	require.True(t, ok)
	assert.True(t, ue.Reconnect)
}

func TestQuickBooks_TokenRefreshFailure(t *testing.T) {
	cfg := &config.Config{}
	q := NewQuickBooks(cfg, func(context.Context, *model.Session) (*http.Client, error) {
		return nil, &oauth2.RetrieveError{ErrorCode: "invalid_grant"}
	})
	_, err := q.Fetch(context.Background(), connected())
	ue, ok := AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, "authorize", ue.Op)
	assert.True(t, ue.Reconnect)
}

func TestUpstream_ReconnectOnRetrieveError(t *testing.T) {
	ue := upstream("fetch", fmt.Errorf("wrapped: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}))
	assert.True(t, ue.Reconnect)
	assert.False(t, upstream("fetch", fmt.Errorf("dial tcp: refused")).Reconnect)
}
