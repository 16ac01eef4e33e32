package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

type credentialsPayload struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Data     models.Metadata `json:"data,omitempty"`
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// signUpResponse carries either a full session or, when confirmation is pending, a bare identity.
type signUpResponse struct {
	models.Session
	models.Identity
}

// SignUp registers a new identity. The session is nil when email confirmation is pending.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata models.Metadata) (*models.Identity, *models.Session, error) {
	var response signUpResponse
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentialsPayload{Email: strings.TrimSpace(email), Password: password, Data: metadata},
	})
	if err != nil {
		return nil, nil, err
	}
	if err := decodeInto(body, &response); err != nil {
		return nil, nil, err
	}
	if response.AccessToken == "" {
		identity := response.Identity
		return &identity, nil, nil
	}
	session := response.Session
	if err := c.storeSession(&session); err != nil {
		return nil, nil, err
	}
	c.publish(models.AuthEventSignedIn, &session)
	identity := session.User
	return &identity, &session, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := c.token(ctx, "password", credentialsPayload{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(session); err != nil {
		return nil, err
	}
	c.publish(models.AuthEventSignedIn, session)
	return session, nil
}

// SignOut revokes the session remotely and forgets it locally.
// A token the platform no longer recognizes still counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	if session != nil {
		_, err := c.do(ctx, request{
			method:      http.MethodPost,
			path:        "/auth/v1/logout",
			accessToken: session.AccessToken,
		})
		var apiErr *APIError
		if err != nil && !(errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound)) {
			return err
		}
	}
	if err := c.storeSession(nil); err != nil {
		return err
	}
	c.publish(models.AuthEventSignedOut, nil)
	return nil
}

// GetSession returns the stored session, refreshing it when it is about to expire.
// A refresh token the platform rejects ends the session.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	session, err := c.currentSession()
	if err != nil || session == nil {
		return nil, err
	}
	if !session.ExpiresWithin(c.clock(), refreshMargin) {
		return session, nil
	}
	return c.RefreshSession(ctx)
}

// RefreshSession exchanges the stored refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if session == nil || session.RefreshToken == "" {
		return nil, ErrNoSession
	}
	refreshed, err := c.token(ctx, "refresh_token", refreshPayload{RefreshToken: session.RefreshToken})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Info("session refresh rejected", zap.String("code", apiErr.Code), zap.Error(err))
			if clearErr := c.storeSession(nil); clearErr != nil {
				c.logger.Warn("failed to clear rejected session", zap.Error(clearErr))
			}
			c.publish(models.AuthEventSignedOut, nil)
		}
		return nil, err
	}
	if err := c.storeSession(refreshed); err != nil {
		return nil, err
	}
	c.publish(models.AuthEventTokenRefreshed, refreshed)
	return refreshed, nil
}

// GetUser fetches the authoritative identity for the current session.
func (c *Client) GetUser(ctx context.Context) (*models.Identity, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &APIError{Status: http.StatusUnauthorized, Code: "session_missing", Message: "Auth session missing!"}
	}
	body, err := c.do(ctx, request{
		method:      http.MethodGet,
		path:        "/auth/v1/user",
		accessToken: session.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	var identity models.Identity
	if err := decodeInto(body, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// OnAuthStateChange streams auth events until ctx ends or the cleanup runs.
func (c *Client) OnAuthStateChange(ctx context.Context) (<-chan models.AuthEvent, func()) {
	return c.events.Subscribe(ctx)
}

func (c *Client) token(ctx context.Context, grantType string, payload any) (*models.Session, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": []string{grantType}},
		body:   payload,
	})
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := decodeInto(body, &session); err != nil {
		return nil, err
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = c.clock().Unix() + session.ExpiresIn
	}
	return &session, nil
}

func (c *Client) currentSession() (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		stored, err := c.storage.Load()
		if err != nil {
			return nil, err
		}
		c.session = stored
		c.loaded = true
	}
	if c.session == nil {
		return nil, nil
	}
	copied := *c.session
	return &copied, nil
}

func (c *Client) storeSession(session *models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.Save(session); err != nil {
		return err
	}
	c.loaded = true
	if session == nil {
		c.session = nil
		return nil
	}
	copied := *session
	c.session = &copied
	return nil
}

func (c *Client) publish(eventType models.AuthEventType, session *models.Session) {
	event := models.AuthEvent{Type: eventType, Timestamp: c.clock()}
	if session != nil {
		copied := *session
		event.Session = &copied
	}
	c.events.Publish(event)
}
