package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearerToken = errors.New("auth: bearer token required")
	ErrMissingAPIKey      = errors.New("auth: api key required")
	ErrInvalidAPIKey      = errors.New("auth: invalid api key")
	ErrMissingTokenIssuer = errors.New("auth: token issuer required")
)

const bearerPrefix = "bearer "

// RequestCredentials are the two credentials every platform request carries: the project api key
// and a bearer token that is either the api key itself or a user access token.
type RequestCredentials struct {
	APIKey string
	Bearer string
}

// Anonymous reports whether the bearer is the api key rather than a user token.
func (c RequestCredentials) Anonymous() bool {
	return c.Bearer == "" || c.Bearer == c.APIKey
}

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (AccessClaims, error)
}

// SessionValidator checks request credentials against the configured api key and access tokens.
type SessionValidator struct {
	apiKey string
	tokens TokenValidator
}

// NewSessionValidator constructs a validator for apiKey and tokens.
func NewSessionValidator(apiKey string, tokens TokenValidator) (*SessionValidator, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	if tokens == nil {
		return nil, ErrMissingTokenIssuer
	}
	return &SessionValidator{apiKey: key, tokens: tokens}, nil
}

// ExtractCredentials reads the apikey header and the Authorization bearer from r.
func ExtractCredentials(r *http.Request) RequestCredentials {
	if r == nil {
		return RequestCredentials{}
	}
	credentials := RequestCredentials{APIKey: strings.TrimSpace(r.Header.Get("apikey"))}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		credentials.Bearer = strings.TrimSpace(header[len(bearerPrefix):])
	}
	return credentials
}

// CheckAPIKey verifies the request's api key.
func (v *SessionValidator) CheckAPIKey(credentials RequestCredentials) error {
	if credentials.APIKey == "" {
		return ErrMissingAPIKey
	}
	if credentials.APIKey != v.apiKey {
		return ErrInvalidAPIKey
	}
	return nil
}

// ValidateRequest returns the caller's claims, or nil claims for an anonymous request.
// A bearer that is neither the api key nor a valid access token is an error.
func (v *SessionValidator) ValidateRequest(r *http.Request) (*AccessClaims, error) {
	credentials := ExtractCredentials(r)
	if err := v.CheckAPIKey(credentials); err != nil {
		return nil, err
	}
	if credentials.Anonymous() {
		return nil, nil
	}
	claims, err := v.tokens.ValidateAccessToken(credentials.Bearer)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// RequireUser is ValidateRequest for endpoints that need a signed-in caller.
func (v *SessionValidator) RequireUser(r *http.Request) (AccessClaims, error) {
	claims, err := v.ValidateRequest(r)
	if err != nil {
		return AccessClaims{}, err
	}
	if claims == nil {
		return AccessClaims{}, ErrMissingBearerToken
	}
	return *claims, nil
}
