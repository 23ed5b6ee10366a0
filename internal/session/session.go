// Package session manages callers' QuickBooks connections: the OAuth
// handshake, token persistence and authenticated HTTP clients.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/store"
	"github.com/sells-group/zkcredit/pkg/quickbooks"
)

var (
	// ErrNotConnected is returned when an operation needs a connected account.
	ErrNotConnected = eris.New("session: accounting account is not connected")
	// ErrStateMismatch is returned when a callback does not match the
	// pending authorization.
	ErrStateMismatch = eris.New("session: oauth state mismatch")
)

// Store is the persistence the manager needs.
type Store interface {
	SaveSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
}

// Status describes a session's connection for display.
type Status struct {
	SessionID string    `json:"sessionId"`
	Connected bool      `json:"connected"`
	RealmID   string    `json:"realmId,omitempty"`
	Expiry    time.Time `json:"expiry,omitempty"`
}

// Manager runs the OAuth flow and hands out authenticated clients.
type Manager struct {
	oauth *oauth2.Config
	store Store
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithEndpoint overrides the OAuth endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(m *Manager) { m.oauth.Endpoint = ep }
}

// NewManager creates a Manager for the configured QuickBooks app.
func NewManager(cfg config.QuickBooksConfig, st Store, opts ...Option) *Manager {
	m := &Manager{
		oauth: quickbooks.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		store: st,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Resolve loads the session with the given id, creating a new one when id
// is empty or unknown.
func (m *Manager) Resolve(ctx context.Context, id string) (*model.Session, error) {
	if id != "" {
		sess, err := m.store.GetSession(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	sess := &model.Session{ID: uuid.New().String()}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Connect starts authorization and returns the provider URL to redirect to.
func (m *Manager) Connect(ctx context.Context, sess *model.Session) (string, error) {
	sess.OAuthState = uuid.New().String()
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return "", err
	}
	return m.oauth.AuthCodeURL(sess.OAuthState, oauth2.AccessTypeOffline), nil
}

// Callback completes authorization: it checks state, exchanges the code
// and stores the tokens with the company's realm id.
func (m *Manager) Callback(ctx context.Context, sess *model.Session, state, code, realmID string) error {
	if sess.OAuthState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(sess.OAuthState)) != 1 {
		return ErrStateMismatch
	}
	if code == "" || realmID == "" {
		return eris.New("session: callback is missing code or realmId")
	}

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return eris.Wrap(err, "session: exchange code")
	}

	sess.OAuthState = ""
	sess.RealmID = realmID
	applyToken(sess, tok)
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	zap.L().Info("session: quickbooks connected",
		zap.String("session_id", sess.ID),
		zap.String("realm_id", realmID),
	)
	return nil
}

// Disconnect forgets the session's credentials.
func (m *Manager) Disconnect(ctx context.Context, sess *model.Session) error {
	sess.RealmID = ""
	sess.AccessToken = ""
	sess.RefreshToken = ""
	sess.TokenType = ""
	sess.Expiry = time.Time{}
	sess.OAuthState = ""
	return m.store.SaveSession(ctx, sess)
}

// StatusOf reports the connection state of sess.
func (m *Manager) StatusOf(sess *model.Session) Status {
	st := Status{SessionID: sess.ID, Connected: sess.Connected()}
	if st.Connected {
		st.RealmID = sess.RealmID
		st.Expiry = sess.Expiry
	}
	return st
}

// HTTPClient returns a client that authenticates as sess, refreshing the
// access token when it expires and persisting refreshed tokens.
func (m *Manager) HTTPClient(ctx context.Context, sess *model.Session) (*http.Client, error) {
	if !sess.Connected() {
		return nil, ErrNotConnected
	}
	tok := &oauth2.Token{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
		Expiry:       sess.Expiry,
	}
	src := &persistingSource{
		ctx:   ctx,
		base:  m.oauth.TokenSource(ctx, tok),
		store: m.store,
		sess:  sess,
		last:  sess.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

func applyToken(sess *model.Session, tok *oauth2.Token) {
	sess.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	sess.TokenType = tok.TokenType
	sess.Expiry = tok.Expiry
}

// persistingSource saves the session whenever the underlying source
// produces a new access token.
type persistingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store Store
	sess  *model.Session

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken
	applyToken(p.sess, tok)
	if err := p.store.SaveSession(p.ctx, p.sess); err != nil {
		zap.L().Error("session: persist refreshed token",
			zap.String("session_id", p.sess.ID),
			zap.Error(err),
		)
	} else {
		zap.L().Debug("session: refreshed access token", zap.String("session_id", p.sess.ID))
	}
	return tok, nil
}
