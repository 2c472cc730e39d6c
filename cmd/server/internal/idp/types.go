// Package idp defines the external identity provider surface. The server
// supports a single optional OIDC provider configured at startup.
package idp

import "errors"

// OIDCSettings configures the OIDC authenticator.
type OIDCSettings struct {
	IssuerURL     string   `json:"issuer_url"`
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	RedirectURI   string   `json:"redirect_uri"`
	Scopes        []string `json:"scopes"`
	UsernameClaim string   `json:"username_claim,omitempty"` // defaults to preferred_username
	DefaultScopes []string `json:"default_scopes,omitempty"` // scopes granted to auto-created users
}

// AuthResult is the identity established by an external provider.
type AuthResult struct {
	ExternalID string         `json:"external_id"`
	Username   string         `json:"username"`
	Email      string         `json:"email,omitempty"`
	Fullname   string         `json:"fullname,omitempty"`
	RawClaims  map[string]any `json:"raw_claims,omitempty"`
}

var (
	ErrConfigInvalid = errors.New("invalid identity provider configuration")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrStateMismatch = errors.New("state mismatch")
)
