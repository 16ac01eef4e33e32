package users

import (
	"strings"
	"time"

	"github.com/anlik-eleman/backend/internal/models"
)

// Account is an email/password login. Its id is the identity id shared by the profile row.
type Account struct {
	ID               string          `gorm:"column:id;primaryKey;size:36"`
	Email            string          `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash     string          `gorm:"column:password_hash;size:100;not null"`
	Metadata         models.Metadata `gorm:"column:user_metadata;serializer:json"`
	EmailConfirmedAt *time.Time      `gorm:"column:email_confirmed_at"`
	LastSignInAt     *time.Time      `gorm:"column:last_sign_in_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "auth_users"
}

// Identity is the public view of the account.
func (a Account) Identity() models.Identity {
	metadata := a.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}
	return models.Identity{
		ID:               a.ID,
		Email:            a.Email,
		EmailConfirmedAt: a.EmailConfirmedAt,
		UserMetadata:     metadata,
		CreatedAt:        a.CreatedAt,
		LastSignInAt:     a.LastSignInAt,
	}
}

// RefreshToken is a single-use credential exchanged for a new session.
type RefreshToken struct {
	Token     string     `gorm:"column:token;primaryKey;size:64"`
	AccountID string     `gorm:"column:account_id;size:36;not null;index"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing refresh tokens.
func (RefreshToken) TableName() string {
	return "auth_refresh_tokens"
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
