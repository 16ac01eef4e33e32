package models

import (
	"fmt"
	"strings"
	"time"
)

// Metadata holds the free-form attributes captured at sign-up.
type Metadata map[string]any

// String returns the value stored under key as a string, or "" when absent.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	switch value := m[key].(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// Identity is the authenticated account as reported by the identity service.
type Identity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	UserMetadata     Metadata   `json:"user_metadata"`
	CreatedAt        time.Time  `json:"created_at"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
}

// Confirmed reports whether the identity's email address has been confirmed.
func (i Identity) Confirmed() bool {
	return i.EmailConfirmedAt != nil
}

// Session is the credential bundle issued by the identity service.
type Session struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         Identity `json:"user"`
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (s Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(time.Unix(s.ExpiresAt, 0))
}

// AuthEventType enumerates the auth-state change notifications.
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is published whenever the current session changes.
// Session is nil when the change left no authenticated session behind.
type AuthEvent struct {
	Type      AuthEventType
	Session   *Session
	Timestamp time.Time
}

// SignUpAttributes are the profile attributes collected by the registration form.
type SignUpAttributes struct {
	FirstName          string
	LastName           string
	UserType           UserType
	Phone              string
	City               string
	CompanyName        string
	CompanyTitle       string
	CompanyDescription string
	CompanyWebsite     string
	EmployeeCount      string
}

// Metadata renders the attributes the way they are stored on the identity.
func (a SignUpAttributes) Metadata() Metadata {
	userType := a.UserType
	if userType == "" {
		userType = UserTypeJobSeeker
	}
	metadata := Metadata{
		"first_name":    strings.TrimSpace(a.FirstName),
		"last_name":     strings.TrimSpace(a.LastName),
		"user_type":     string(userType),
		"phone":         strings.TrimSpace(a.Phone),
		"city":          strings.TrimSpace(a.City),
		"company_name":  strings.TrimSpace(a.CompanyName),
		"company_title": strings.TrimSpace(a.CompanyTitle),
	}
	if description := strings.TrimSpace(a.CompanyDescription); description != "" {
		metadata["company_description"] = description
	}
	if website := strings.TrimSpace(a.CompanyWebsite); website != "" {
		metadata["company_website"] = website
	}
	if count := strings.TrimSpace(a.EmployeeCount); count != "" {
		metadata["employee_count"] = count
	}
	return metadata
}
