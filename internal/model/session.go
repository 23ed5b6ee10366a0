package model

import "time"

// Session ties a browser or CLI caller to one connected accounting account.
// It replaces a process-wide "connected" flag: every request resolves its
// own session and nothing about the connection lives in package state.
type Session struct {
	ID           string    `json:"id"`
	OAuthState   string    `json:"-"`
	RealmID      string    `json:"realm_id,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Connected reports whether the session holds a usable credential.
func (s *Session) Connected() bool {
	return s != nil && s.RealmID != "" && (s.AccessToken != "" || s.RefreshToken != "")
}
