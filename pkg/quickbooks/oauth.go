package quickbooks

import (
	"golang.org/x/oauth2"
)

// ScopeAccounting grants read access to accounting entities.
const ScopeAccounting = "com.intuit.quickbooks.accounting"

// Endpoint is Intuit's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://appcenter.intuit.com/connect/oauth2",
	TokenURL:  "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// OAuthConfig builds the OAuth 2.0 client configuration for an app.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     Endpoint,
		Scopes:       []string{ScopeAccounting},
	}
}
