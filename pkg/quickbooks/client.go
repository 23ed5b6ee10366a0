// Package quickbooks is a minimal client for the QuickBooks Online
// accounting API.
package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	ProductionBaseURL = "https://quickbooks.api.intuit.com"

	defaultMinorVersion = 75
	// MaxPageSize is the largest MAXRESULTS QuickBooks accepts.
	MaxPageSize = 1000
)

// BaseURL returns the API host for an environment name.
func BaseURL(environment string) string {
	if strings.EqualFold(environment, "production") {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Client reads accounting entities for one connected company.
type Client interface {
	Invoices(ctx context.Context, realmID string) ([]Invoice, error)
	Payments(ctx context.Context, realmID string) ([]Payment, error)
	CompanyInfo(ctx context.Context, realmID string) (*CompanyInfo, error)
}

// APIError is a non-200 response from the API.
type APIError struct {
	StatusCode int
	Fault      *Fault
	Body       string
}

func (e *APIError) Error() string {
	if e.Fault != nil && len(e.Fault.Error) > 0 {
		f := e.Fault.Error[0]
		return fmt.Sprintf("quickbooks: unexpected status %d: %s: %s", e.StatusCode, f.Message, f.Detail)
	}
	return fmt.Sprintf("quickbooks: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the token was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMinorVersion sets the minorversion query parameter.
func WithMinorVersion(v int) Option {
	return func(c *httpClient) {
		if v > 0 {
			c.minorVersion = v
		}
	}
}

// WithPageSize sets MAXRESULTS for paged queries, capped at MaxPageSize.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = min(n, MaxPageSize)
		}
	}
}

// WithLimiter shares a rate limiter across clients of the same app.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// NewLimiter returns a limiter allowing perMinute requests with a small burst.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), max(perMinute/60, 1))
}

type httpClient struct {
	http         *http.Client
	baseURL      string
	minorVersion int
	pageSize     int
	limiter      *rate.Limiter
}

// NewClient creates a client. hc must attach the OAuth bearer token, as the
// client returned by oauth2.Config.Client does.
func NewClient(hc *http.Client, opts ...Option) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	c := &httpClient{
		http:         hc,
		baseURL:      SandboxBaseURL,
		minorVersion: defaultMinorVersion,
		pageSize:     MaxPageSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type queryResponse struct {
	QueryResponse struct {
		Invoice       []Invoice     `json:"Invoice"`
		Payment       []Payment     `json:"Payment"`
		CompanyInfo   []CompanyInfo `json:"CompanyInfo"`
		StartPosition int           `json:"startPosition"`
		MaxResults    int           `json:"maxResults"`
	} `json:"QueryResponse"`
}

func (c *httpClient) Invoices(ctx context.Context, realmID string) ([]Invoice, error) {
	var all []Invoice
	err := c.paginate(ctx, realmID, "Invoice", func(r *queryResponse) int {
		all = append(all, r.QueryResponse.Invoice...)
		return len(r.QueryResponse.Invoice)
	})
	return all, err
}

func (c *httpClient) Payments(ctx context.Context, realmID string) ([]Payment, error) {
	var all []Payment
	err := c.paginate(ctx, realmID, "Payment", func(r *queryResponse) int {
		all = append(all, r.QueryResponse.Payment...)
		return len(r.QueryResponse.Payment)
	})
	return all, err
}

func (c *httpClient) CompanyInfo(ctx context.Context, realmID string) (*CompanyInfo, error) {
	var resp queryResponse
	if err := c.query(ctx, realmID, "SELECT * FROM CompanyInfo", &resp); err != nil {
		return nil, err
	}
	if len(resp.QueryResponse.CompanyInfo) == 0 {
		return nil, eris.New("quickbooks: company info not found")
	}
	return &resp.QueryResponse.CompanyInfo[0], nil
}

// paginate walks STARTPOSITION pages until one comes back short.
func (c *httpClient) paginate(ctx context.Context, realmID, entity string, collect func(*queryResponse) int) error {
	for start := 1; ; start += c.pageSize {
		q := fmt.Sprintf("SELECT * FROM %s STARTPOSITION %d MAXRESULTS %d", entity, start, c.pageSize)
		var resp queryResponse
		if err := c.query(ctx, realmID, q, &resp); err != nil {
			return eris.Wrapf(err, "quickbooks: query %s", entity)
		}
		if collect(&resp) < c.pageSize {
			return nil
		}
	}
}

func (c *httpClient) query(ctx context.Context, realmID, q string, out *queryResponse) error {
	if realmID == "" {
		return eris.New("quickbooks: realm id is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "quickbooks: rate limit")
		}
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("minorversion", strconv.Itoa(c.minorVersion))
	u := c.baseURL + "/v3/company/" + url.PathEscape(realmID) + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "quickbooks: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "quickbooks: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "quickbooks: read response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		var wrapper struct {
			Fault *Fault `json:"Fault"`
		}
		if json.Unmarshal(body, &wrapper) == nil {
			apiErr.Fault = wrapper.Fault
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "quickbooks: unmarshal response")
	}
	return nil
}
