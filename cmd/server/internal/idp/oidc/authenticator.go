// Package oidc implements the OIDC authorization-code flow against the
// configured provider.
package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/acta-labs/acta/cmd/server/internal/idp"
)

// Authenticator drives the authorization-code flow.
type Authenticator struct {
	settings     *idp.OIDCSettings
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// NewAuthenticator discovers the provider and prepares the flow.
func NewAuthenticator(ctx context.Context, settings *idp.OIDCSettings) (*Authenticator, error) {
	if settings == nil || settings.IssuerURL == "" || settings.ClientID == "" {
		return nil, idp.ErrConfigInvalid
	}

	provider, err := oidc.NewProvider(ctx, settings.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC provider: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURI,
		Endpoint:     provider.Endpoint(),
		Scopes:       settings.Scopes,
	}
	if len(oauth2Config.Scopes) == 0 {
		oauth2Config.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: settings.ClientID})

	return &Authenticator{
		settings:     settings,
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
	}, nil
}

// AuthorizationURL builds the provider login URL for the given state.
func (a *Authenticator) AuthorizationURL(state string) string {
	return a.oauth2Config.AuthCodeURL(state)
}

// Authenticate exchanges the authorization code, verifies the ID token,
// and extracts the user's identity from its claims.
func (a *Authenticator) Authenticate(ctx context.Context, code string) (*idp.AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, err := a.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", idp.ErrAuthFailed, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: no id_token in token response", idp.ErrAuthFailed)
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id token: %v", idp.ErrAuthFailed, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", idp.ErrAuthFailed, err)
	}

	usernameClaim := a.settings.UsernameClaim
	if usernameClaim == "" {
		usernameClaim = "preferred_username"
	}
	username, _ := claimString(claims, usernameClaim)
	if username == "" {
		for _, claim := range []string{"preferred_username", "email", "sub"} {
			if v, ok := claimString(claims, claim); ok && v != "" {
				username = v
				break
			}
		}
	}
	if username == "" {
		return nil, fmt.Errorf("%w: cannot determine username from claims", idp.ErrAuthFailed)
	}

	email, _ := claimString(claims, "email")
	fullname, _ := claimString(claims, "name")
	externalID, _ := claimString(claims, "sub")

	return &idp.AuthResult{
		ExternalID: externalID,
		Username:   username,
		Email:      email,
		Fullname:   fullname,
		RawClaims:  claims,
	}, nil
}

// DefaultScopes returns the scopes granted to auto-created users.
func (a *Authenticator) DefaultScopes() []string {
	return a.settings.DefaultScopes
}

func claimString(claims map[string]any, key string) (string, bool) {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
