package ledger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/metrics"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/resilience"
	"github.com/sells-group/zkcredit/pkg/quickbooks"
)

// HTTPClientFunc returns an HTTP client that authenticates as the session.
type HTTPClientFunc func(ctx context.Context, sess *model.Session) (*http.Client, error)

// QuickBooks fetches invoices and payments from QuickBooks Online.
type QuickBooks struct {
	httpClient HTTPClientFunc
	opts       []quickbooks.Option
	guard      *resilience.Guard
	now        func() time.Time
}

// NewQuickBooks creates a QuickBooks source. Requests from every session
// share one rate limiter.
func NewQuickBooks(cfg *config.Config, httpClient HTTPClientFunc) *QuickBooks {
	baseURL := cfg.QuickBooks.BaseURL
	if baseURL == "" {
		baseURL = quickbooks.BaseURL(cfg.QuickBooks.Environment)
	}
	opts := []quickbooks.Option{
		quickbooks.WithBaseURL(baseURL),
		quickbooks.WithMinorVersion(cfg.QuickBooks.MinorVersion),
		quickbooks.WithPageSize(cfg.QuickBooks.PageSize),
	}
	if lim := quickbooks.NewLimiter(cfg.QuickBooks.RatePerMinute); lim != nil {
		opts = append(opts, quickbooks.WithLimiter(lim))
	}
	return &QuickBooks{
		httpClient: httpClient,
		opts:       opts,
		guard:      resilience.NewGuard("quickbooks", cfg.Retry, cfg.Circuit),
		now:        time.Now,
	}
}

// Status reports the circuit breaker guarding QuickBooks calls.
func (q *QuickBooks) Status() resilience.Status { return q.guard.Status() }

// Fetch implements Source. Invoices and payments are read concurrently.
func (q *QuickBooks) Fetch(ctx context.Context, sess *model.Session) (*model.Ledger, error) {
	if !sess.Connected() {
		return nil, &UpstreamError{Op: "connect", Reconnect: true, Err: eris.New("session is not connected")}
	}
	hc, err := q.httpClient(ctx, sess)
	if err != nil {
		return nil, &UpstreamError{Op: "authorize", Reconnect: true, Err: err}
	}
	client := quickbooks.NewClient(hc, q.opts...)

	var (
		invoices []quickbooks.Invoice
		payments []quickbooks.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = guarded(gctx, q.guard, "invoice", func(ctx context.Context) ([]quickbooks.Invoice, error) {
			return client.Invoices(ctx, sess.RealmID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = guarded(gctx, q.guard, "payment", func(ctx context.Context) ([]quickbooks.Payment, error) {
			return client.Payments(ctx, sess.RealmID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, upstream("fetch", err)
	}

	l, err := convert(invoices, payments)
	if err != nil {
		return nil, &UpstreamError{Op: "decode", Err: err}
	}
	l.FetchedAt = q.now()

	zap.L().Info("ledger: fetched quickbooks ledger",
		zap.String("session_id", sess.ID),
		zap.Int("invoices", len(l.Invoices)),
		zap.Int("payments", len(l.Payments)),
	)
	return l, nil
}

// guarded runs fn under the guard, counting each attempt and marking
// throttling and server errors as retryable.
func guarded[T any](ctx context.Context, g *resilience.Guard, entity string, fn func(context.Context) (T, error)) (T, error) {
	return resilience.Call(ctx, g, entity, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.UpstreamRequests.WithLabelValues(entity, result).Inc()

		var apiErr *quickbooks.APIError
		if errors.As(err, &apiErr) && resilience.RetryableStatus(apiErr.StatusCode) {
			err = resilience.Transient(err, apiErr.StatusCode)
		}
		return v, err
	})
}

func upstream(op string, err error) *UpstreamError {
	ue := &UpstreamError{Op: op, Err: err}
	var apiErr *quickbooks.APIError
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		ue.Reconnect = true
	case errors.As(err, &retrieveErr):
		ue.Reconnect = true
	}
	return ue
}

func convert(invoices []quickbooks.Invoice, payments []quickbooks.Payment) (*model.Ledger, error) {
	l := &model.Ledger{
		Invoices: make([]model.Invoice, 0, len(invoices)),
		Payments: make([]model.Payment, 0, len(payments)),
	}
	for _, qi := range invoices {
		issued, err := quickbooks.ParseDate(qi.TxnDate)
		if err != nil {
			return nil, eris.Wrapf(err, "invoice %s", qi.ID)
		}
		due, err := quickbooks.ParseDate(qi.DueDate)
		if err != nil {
			return nil, eris.Wrapf(err, "invoice %s", qi.ID)
		}
		modified, err := quickbooks.ParseTimestamp(qi.MetaData.LastUpdatedTime)
		if err != nil {
			return nil, eris.Wrapf(err, "invoice %s", qi.ID)
		}
		l.Invoices = append(l.Invoices, model.Invoice{
			ID:           qi.ID,
			CustomerID:   qi.CustomerRef.Value,
			CustomerName: qi.CustomerRef.Name,
			IssueDate:    issued,
			DueDate:      due,
			TotalAmount:  qi.TotalAmt,
			Balance:      qi.Balance,
			PaymentIDs:   qi.PaymentIDs(),
			LastModified: modified,
		})
	}
	for _, qp := range payments {
		paid, err := quickbooks.ParseDate(qp.TxnDate)
		if err != nil {
			return nil, eris.Wrapf(err, "payment %s", qp.ID)
		}
		l.Payments = append(l.Payments, model.Payment{ID: qp.ID, Date: paid, TotalAmount: qp.TotalAmt})
	}
	return l, nil
}
