package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserType distinguishes the three kinds of accounts.
type UserType string

const (
	UserTypeJobSeeker UserType = "job_seeker"
	UserTypeEmployer  UserType = "employer"
	UserTypeAdmin     UserType = "admin"
)

// ParseUserType maps free-form metadata to a UserType, defaulting to job_seeker.
func ParseUserType(value string) UserType {
	switch UserType(strings.ToLower(strings.TrimSpace(value))) {
	case UserTypeEmployer:
		return UserTypeEmployer
	case UserTypeAdmin:
		return UserTypeAdmin
	default:
		return UserTypeJobSeeker
	}
}

// Profile is the application's record of a user, sharing the identity id.
type Profile struct {
	ID               string     `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserType         UserType   `json:"user_type" gorm:"column:user_type;size:16;not null;index"`
	FirstName        string     `json:"first_name" gorm:"column:first_name;size:120;not null"`
	LastName         string     `json:"last_name" gorm:"column:last_name;size:120;not null"`
	Phone            *string    `json:"phone" gorm:"column:phone;size:32"`
	City             *string    `json:"city" gorm:"column:city;size:120"`
	AvatarURL        *string    `json:"avatar_url" gorm:"column:avatar_url;size:512"`
	Bio              *string    `json:"bio" gorm:"column:bio"`
	ExperienceYears  *int       `json:"experience_years" gorm:"column:experience_years"`
	HourlyRate       *float64   `json:"hourly_rate" gorm:"column:hourly_rate"`
	IsActive         bool       `json:"is_active" gorm:"column:is_active;not null"`
	IsVerified       bool       `json:"is_verified" gorm:"column:is_verified;not null"`
	IsPremium        bool       `json:"is_premium" gorm:"column:is_premium;not null"`
	IsApproved       bool       `json:"is_approved" gorm:"column:is_approved;not null"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at" gorm:"column:premium_expires_at"`
	LastSeenAt       *time.Time `json:"last_seen_at" gorm:"column:last_seen_at"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing profiles.
func (Profile) TableName() string {
	return "profiles"
}

// FullName joins the first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NeedsApproval reports whether an employer is still waiting for back-office approval.
func (p Profile) NeedsApproval() bool {
	return p.UserType == UserTypeEmployer && !p.IsApproved
}

// ProfileInsert is the row written when a profile is provisioned.
// Boolean flags are always sent explicitly so the stored row never depends on column defaults.
type ProfileInsert struct {
	ID         string   `json:"id"`
	UserType   UserType `json:"user_type"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Phone      *string  `json:"phone"`
	City       *string  `json:"city"`
	IsActive   bool     `json:"is_active"`
	IsVerified bool     `json:"is_verified"`
	IsPremium  bool     `json:"is_premium"`
	IsApproved bool     `json:"is_approved"`
}

// NewProfileInsert builds the provisioning row for id from sign-up metadata.
func NewProfileInsert(id string, metadata Metadata) ProfileInsert {
	return ProfileInsert{
		ID:         id,
		UserType:   ParseUserType(metadata.String("user_type")),
		FirstName:  strings.TrimSpace(metadata.String("first_name")),
		LastName:   strings.TrimSpace(metadata.String("last_name")),
		Phone:      optionalString(strings.TrimSpace(metadata.String("phone"))),
		City:       optionalString(strings.TrimSpace(metadata.String("city"))),
		IsActive:   true,
		IsVerified: false,
		IsPremium:  false,
		IsApproved: false,
	}
}

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName       *string    `json:"first_name,omitempty"`
	LastName        *string    `json:"last_name,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	City            *string    `json:"city,omitempty"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	Bio             *string    `json:"bio,omitempty"`
	ExperienceYears *int       `json:"experience_years,omitempty"`
	HourlyRate      *float64   `json:"hourly_rate,omitempty"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

// Empty reports whether the update carries no change.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.City == nil &&
		u.AvatarURL == nil && u.Bio == nil && u.ExperienceYears == nil && u.HourlyRate == nil &&
		u.LastSeenAt == nil
}

// BeforeCreate keeps the shared-key invariant: a profile without an id is rejected.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingRowID
	}
	if p.UserType == "" {
		p.UserType = UserTypeJobSeeker
	}
	return nil
}
