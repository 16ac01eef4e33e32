package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/anlik-eleman/backend/internal/auth"
	"github.com/anlik-eleman/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMinPasswordLength = 6
	defaultRefreshTTL        = 30 * 24 * time.Hour
)

var (
	ErrMissingDatabase     = errors.New("users: database connection required")
	ErrInvalidCredentials  = errors.New("users: invalid login credentials")
	ErrEmailNotConfirmed   = errors.New("users: email not confirmed")
	ErrAlreadyRegistered   = errors.New("users: user already registered")
	ErrWeakPassword        = errors.New("users: password too short")
	ErrInvalidEmail        = errors.New("users: invalid email address")
	ErrSignupDisabled      = errors.New("users: signup disabled")
	ErrInvalidRefreshToken = errors.New("users: invalid refresh token")
	ErrAccountNotFound     = errors.New("users: account not found")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database          *gorm.DB
	Clock             func() time.Time
	Logger            *zap.Logger
	AutoConfirm       bool
	SignupsDisabled   bool
	MinPasswordLength int
	RefreshTTL        time.Duration
}

// Service manages email/password accounts and their refresh tokens.
type Service struct {
	db                *gorm.DB
	now               func() time.Time
	logger            *zap.Logger
	autoConfirm       bool
	signupsDisabled   bool
	minPasswordLength int
	refreshTTL        time.Duration
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, ErrMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minLength := cfg.MinPasswordLength
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Service{
		db:                cfg.Database,
		now:               clock,
		logger:            logger,
		autoConfirm:       cfg.AutoConfirm,
		signupsDisabled:   cfg.SignupsDisabled,
		minPasswordLength: minLength,
		refreshTTL:        refreshTTL,
	}, nil
}

// MinPasswordLength returns the enforced minimum password length.
func (s *Service) MinPasswordLength() int {
	return s.minPasswordLength
}

// SignUp registers an account. The account is confirmed immediately when auto-confirm is on.
func (s *Service) SignUp(ctx context.Context, email, password string, metadata models.Metadata) (Account, error) {
	if s.signupsDisabled {
		return Account{}, ErrSignupDisabled
	}
	normalized, err := validateEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(password) < s.minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	var existing Account
	err = s.db.WithContext(ctx).Where("email = ?", normalized).Take(&existing).Error
	if err == nil {
		return Account{}, ErrAlreadyRegistered
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("users: hash password: %w", err)
	}
	if metadata == nil {
		metadata = models.Metadata{}
	}
	account := Account{
		ID:           models.NewID(),
		Email:        normalized,
		PasswordHash: hash,
		Metadata:     metadata,
	}
	if s.autoConfirm {
		confirmedAt := s.now().UTC()
		account.EmailConfirmedAt = &confirmedAt
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Account{}, ErrAlreadyRegistered
		}
		return Account{}, err
	}
	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.Bool("confirmed", account.EmailConfirmedAt != nil))
	return account, nil
}

// Authenticate checks credentials and records the sign-in time.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if err := auth.CheckPassword(account.PasswordHash, password); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if account.EmailConfirmedAt == nil {
		return Account{}, ErrEmailNotConfirmed
	}

	signedInAt := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Update("last_sign_in_at", signedInAt).Error; err != nil {
		s.logger.Warn("failed to record sign in", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastSignInAt = &signedInAt
	}
	return account, nil
}

// Lookup returns the account with id.
func (s *Service) Lookup(ctx context.Context, id string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	return account, err
}

// ConfirmEmail marks the account with email as confirmed. Confirming twice keeps the first time.
func (s *Service) ConfirmEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	if account.EmailConfirmedAt != nil {
		return account, nil
	}
	confirmedAt := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Update("email_confirmed_at", confirmedAt).Error; err != nil {
		return Account{}, err
	}
	account.EmailConfirmedAt = &confirmedAt
	return account, nil
}

// IssueRefreshToken creates a new refresh token for accountID.
func (s *Service) IssueRefreshToken(ctx context.Context, accountID string) (RefreshToken, error) {
	return s.issueRefreshToken(s.db.WithContext(ctx), accountID)
}

// RotateRefreshToken revokes token and issues its replacement. Revoked, expired and unknown
// tokens all fail with ErrInvalidRefreshToken.
func (s *Service) RotateRefreshToken(ctx context.Context, token string) (Account, RefreshToken, error) {
	var (
		account Account
		rotated RefreshToken
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current RefreshToken
		err := tx.Where("token = ?", strings.TrimSpace(token)).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidRefreshToken
		}
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if current.RevokedAt != nil || !now.Before(current.ExpiresAt) {
			return ErrInvalidRefreshToken
		}
		result := tx.Model(&RefreshToken{}).
			Where("token = ? AND revoked_at IS NULL", current.Token).
			Update("revoked_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvalidRefreshToken
		}
		if err := tx.Where("id = ?", current.AccountID).Take(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		rotated, err = s.issueRefreshToken(tx, account.ID)
		return err
	})
	if err != nil {
		return Account{}, RefreshToken{}, err
	}
	return account, rotated, nil
}

// RevokeRefreshTokens revokes every outstanding refresh token of accountID.
func (s *Service) RevokeRefreshTokens(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Update("revoked_at", s.now().UTC()).Error
}

func (s *Service) issueRefreshToken(db *gorm.DB, accountID string) (RefreshToken, error) {
	token := RefreshToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		AccountID: accountID,
		ExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}
	if err := db.Create(&token).Error; err != nil {
		return RefreshToken{}, err
	}
	return token, nil
}

func validateEmail(value string) (string, error) {
	normalized := normalizeEmail(value)
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}
