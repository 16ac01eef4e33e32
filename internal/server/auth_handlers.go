package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anlik-eleman/backend/internal/auth"
	"github.com/anlik-eleman/backend/internal/models"
	"github.com/anlik-eleman/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	grantTypePassword     = "password"
	grantTypeRefreshToken = "refresh_token"
	tokenTypeBearer       = "bearer"
)

type authErrorPayload struct {
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

func writeAuthError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, authErrorPayload{ErrorCode: code, Msg: message})
}

type credentialsRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Data     models.Metadata `json:"data"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request credentialsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.metrics.RecordSignUp("rejected")
		writeAuthError(c, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	account, err := h.accounts.SignUp(c.Request.Context(), request.Email, request.Password, request.Data)
	if err != nil {
		h.metrics.RecordSignUp("rejected")
		h.writeAccountError(c, err)
		return
	}

	identity := account.Identity()
	if !identity.Confirmed() {
		h.metrics.RecordSignUp("pending")
		c.JSON(http.StatusOK, identity)
		return
	}

	session, err := h.issueSession(c, account)
	if err != nil {
		h.metrics.RecordSignUp("rejected")
		return
	}
	h.metrics.RecordSignUp("confirmed")
	c.JSON(http.StatusOK, session)
}

func (h *httpHandler) handleToken(c *gin.Context) {
	grantType := strings.TrimSpace(c.Query("grant_type"))
	switch grantType {
	case grantTypePassword:
		h.handlePasswordGrant(c)
	case grantTypeRefreshToken:
		h.handleRefreshGrant(c)
	default:
		h.metrics.RecordSignIn("unsupported", "rejected")
		writeAuthError(c, http.StatusBadRequest, "unsupported_grant_type", "unsupported_grant_type")
	}
}

func (h *httpHandler) handlePasswordGrant(c *gin.Context) {
	var request credentialsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.metrics.RecordSignIn(grantTypePassword, "rejected")
		writeAuthError(c, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.metrics.RecordSignIn(grantTypePassword, "rejected")
		h.writeAccountError(c, err)
		return
	}

	session, err := h.issueSession(c, account)
	if err != nil {
		h.metrics.RecordSignIn(grantTypePassword, "failed")
		return
	}
	h.metrics.RecordSignIn(grantTypePassword, "success")
	c.JSON(http.StatusOK, session)
}

func (h *httpHandler) handleRefreshGrant(c *gin.Context) {
	var request refreshRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.RefreshToken) == "" {
		h.metrics.RecordSignIn(grantTypeRefreshToken, "rejected")
		writeAuthError(c, http.StatusBadRequest, "validation_failed", "refresh_token required")
		return
	}

	account, refresh, err := h.accounts.RotateRefreshToken(c.Request.Context(), request.RefreshToken)
	if err != nil {
		h.metrics.RecordSignIn(grantTypeRefreshToken, "rejected")
		h.writeAccountError(c, err)
		return
	}

	access, err := h.tokens.IssueAccessToken(account.ID, account.Email)
	if err != nil {
		h.metrics.RecordSignIn(grantTypeRefreshToken, "failed")
		h.logger.Error("failed to issue access token", zap.String("user_id", account.ID), zap.Error(err))
		writeAuthError(c, http.StatusInternalServerError, "unexpected_failure", "Unable to issue session")
		return
	}
	h.metrics.RecordSignIn(grantTypeRefreshToken, "success")
	c.JSON(http.StatusOK, newSessionPayload(account, access, refresh))
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	claims, err := h.validator.RequireUser(c.Request)
	if err != nil {
		h.rejectAuthCredentials(c, err)
		return
	}
	if err := h.accounts.RevokeRefreshTokens(c.Request.Context(), claims.Subject); err != nil {
		h.logger.Error("failed to revoke refresh tokens", zap.String("user_id", claims.Subject), zap.Error(err))
		writeAuthError(c, http.StatusInternalServerError, "unexpected_failure", "Unable to sign out")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUser(c *gin.Context) {
	claims, err := h.validator.RequireUser(c.Request)
	if err != nil {
		h.rejectAuthCredentials(c, err)
		return
	}
	account, err := h.accounts.Lookup(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, account.Identity())
}

// issueSession signs a new access token and refresh token for account. On failure the
// error response has already been written.
func (h *httpHandler) issueSession(c *gin.Context, account users.Account) (models.Session, error) {
	access, err := h.tokens.IssueAccessToken(account.ID, account.Email)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.String("user_id", account.ID), zap.Error(err))
		writeAuthError(c, http.StatusInternalServerError, "unexpected_failure", "Unable to issue session")
		return models.Session{}, err
	}
	refresh, err := h.accounts.IssueRefreshToken(c.Request.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to issue refresh token", zap.String("user_id", account.ID), zap.Error(err))
		writeAuthError(c, http.StatusInternalServerError, "unexpected_failure", "Unable to issue session")
		return models.Session{}, err
	}
	return newSessionPayload(account, access, refresh), nil
}

func newSessionPayload(account users.Account, access auth.IssuedToken, refresh users.RefreshToken) models.Session {
	return models.Session{
		AccessToken:  access.Value,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    access.ExpiresIn,
		ExpiresAt:    access.ExpiresAt.Unix(),
		RefreshToken: refresh.Token,
		User:         account.Identity(),
	}
}

func (h *httpHandler) writeAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		writeAuthError(c, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
	case errors.Is(err, users.ErrEmailNotConfirmed):
		writeAuthError(c, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
	case errors.Is(err, users.ErrAlreadyRegistered):
		writeAuthError(c, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	case errors.Is(err, users.ErrWeakPassword):
		writeAuthError(c, http.StatusUnprocessableEntity, "weak_password",
			fmt.Sprintf("Password should be at least %d characters", h.accounts.MinPasswordLength()))
	case errors.Is(err, users.ErrInvalidEmail):
		writeAuthError(c, http.StatusBadRequest, "validation_failed", "Invalid email address")
	case errors.Is(err, users.ErrSignupDisabled):
		writeAuthError(c, http.StatusUnprocessableEntity, "signup_disabled", "Email signup is disabled")
	case errors.Is(err, users.ErrInvalidRefreshToken):
		writeAuthError(c, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
	case errors.Is(err, users.ErrAccountNotFound):
		writeAuthError(c, http.StatusNotFound, "user_not_found", "User from sub claim in JWT does not exist")
	default:
		h.logger.Error("account operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeAuthError(c, http.StatusInternalServerError, "unexpected_failure", "Unexpected failure")
	}
}

func (h *httpHandler) rejectAuthCredentials(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingAPIKey):
		writeAuthError(c, http.StatusUnauthorized, "no_api_key", "No API key found in request")
	case errors.Is(err, auth.ErrInvalidAPIKey):
		writeAuthError(c, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
	case errors.Is(err, auth.ErrMissingBearerToken):
		writeAuthError(c, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
	case errors.Is(err, auth.ErrExpiredAccessToken):
		h.logger.Info("token validation failed", zap.Error(err))
		writeAuthError(c, http.StatusUnauthorized, "bad_jwt", "invalid JWT: token is expired")
	default:
		h.logger.Warn("token validation failed", zap.Error(err))
		writeAuthError(c, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
	}
}
