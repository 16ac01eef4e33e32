// Package i18n holds the user-facing messages in Turkish and English.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Locale selects the message language.
type Locale string

const (
	Turkish Locale = "tr"
	English Locale = "en"
)

// ParseLocale maps a language tag such as "en-US" to a supported locale, defaulting to Turkish.
func ParseLocale(value string) Locale {
	tag := strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(tag, "en") {
		return English
	}
	return Turkish
}

// MessageID names a catalog entry.
type MessageID string

const (
	MsgSessionLoadFailed        MessageID = "session_load_failed"
	MsgAuthInitFailed           MessageID = "auth_init_failed"
	MsgProfileLoadFailed        MessageID = "profile_load_failed"
	MsgProfileCreateFailed      MessageID = "profile_create_failed"
	MsgProfileCreateError       MessageID = "profile_create_error"
	MsgProfileUpdateFailed      MessageID = "profile_update_failed"
	MsgUserSessionMissing       MessageID = "user_session_missing"
	MsgFirstNameRequired        MessageID = "first_name_required"
	MsgLastNameRequired         MessageID = "last_name_required"
	MsgEmailRequired            MessageID = "email_required"
	MsgPasswordRequired         MessageID = "password_required"
	MsgOffline                  MessageID = "offline"
	MsgNetworkError             MessageID = "network_error"
	MsgTimeout                  MessageID = "timeout"
	MsgSignOutFailed            MessageID = "sign_out_failed"
	MsgInvalidCredentials       MessageID = "invalid_credentials"
	MsgEmailNotConfirmed        MessageID = "email_not_confirmed"
	MsgTooManyRequests          MessageID = "too_many_requests"
	MsgInvalidEmail             MessageID = "invalid_email"
	MsgWeakPassword             MessageID = "weak_password"
	MsgAlreadyRegistered        MessageID = "already_registered"
	MsgSignupDisabled           MessageID = "signup_disabled"
	MsgSignUpFailed             MessageID = "sign_up_failed"
	MsgSignInFailed             MessageID = "sign_in_failed"
	MsgUnexpected               MessageID = "unexpected"
	MsgUnknownError             MessageID = "unknown_error"
	MsgCompanyCheckFailed       MessageID = "company_check_failed"
	MsgCompanyCreateFailed      MessageID = "company_create_failed"
	MsgCompaniesLoadFailed      MessageID = "companies_load_failed"
	MsgCompanyUpdateFailed      MessageID = "company_update_failed"
	MsgCategoriesLoadFailed     MessageID = "categories_load_failed"
	MsgJobsLoadFailed           MessageID = "jobs_load_failed"
	MsgJobNotFound              MessageID = "job_not_found"
	MsgJobDeleteFailed          MessageID = "job_delete_failed"
	MsgJobCreateFailed          MessageID = "job_create_failed"
	MsgJobSaveFailed            MessageID = "job_save_failed"
	MsgJobUnsaveFailed          MessageID = "job_unsave_failed"
	MsgSavedJobsLoadFailed      MessageID = "saved_jobs_load_failed"
	MsgNotificationsFailed      MessageID = "notifications_load_failed"
	MsgNotificationsMarkErr     MessageID = "notifications_mark_failed"
	MsgApprovalFailed           MessageID = "approval_failed"
	MsgApplyFailed              MessageID = "apply_failed"
	MsgAlreadyApplied           MessageID = "already_applied"
	MsgApplicationsLoadFailed   MessageID = "applications_load_failed"
	MsgApplicationUpdateFailed  MessageID = "application_update_failed"
	MsgReviewsLoadFailed        MessageID = "reviews_load_failed"
	MsgReviewCreateFailed       MessageID = "review_create_failed"
	MsgRatingOutOfRange         MessageID = "rating_out_of_range"
	MsgTestimonialsFailed       MessageID = "testimonials_load_failed"
	MsgNotificationCreateFailed MessageID = "notification_create_failed"
	MsgStatsLoadFailed          MessageID = "stats_load_failed"
	MsgEmployerDashboardFailed  MessageID = "employer_dashboard_failed"
	MsgAdminDashboardFailed     MessageID = "admin_dashboard_failed"
	MsgApplicationStatusTitle   MessageID = "application_status_title"
	MsgApplicationStatusBody    MessageID = "application_status_body"
)

//go:embed locales/*.json
var localeFiles embed.FS

var localeFilePaths = map[Locale]string{
	Turkish: "locales/active.tr.json",
	English: "locales/active.en.json",
}

var bundle = mustLoadBundle()

func mustLoadBundle() *goi18n.Bundle {
	loaded := goi18n.NewBundle(language.Turkish)
	for locale, path := range localeFilePaths {
		if _, err := loaded.LoadMessageFileFS(localeFiles, path); err != nil {
			panic(fmt.Sprintf("i18n: load %s catalog: %v", locale, err))
		}
	}
	return loaded
}

// Translator renders catalog messages for one locale, falling back to Turkish.
type Translator struct {
	locale    Locale
	localizer *goi18n.Localizer
}

// NewTranslator returns a translator for locale; unknown locales fall back to Turkish.
func NewTranslator(locale Locale) Translator {
	if _, ok := localeFilePaths[locale]; !ok {
		locale = Turkish
	}
	return Translator{
		locale:    locale,
		localizer: goi18n.NewLocalizer(bundle, string(locale), string(Turkish)),
	}
}

// Locale reports the active locale.
func (t Translator) Locale() Locale {
	if t.locale == "" {
		return Turkish
	}
	return t.locale
}

// T returns the message for id, or the id itself when no catalog has an entry.
func (t Translator) T(id MessageID) string {
	return t.Tf(id, nil)
}

// Tf renders the message template for id with data, such as {"Detail": "..."}.
func (t Translator) Tf(id MessageID, data map[string]any) string {
	localizer := t.localizer
	if localizer == nil {
		localizer = NewTranslator(Turkish).localizer
	}
	message, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    string(id),
		TemplateData: data,
	})
	if err != nil || message == "" {
		return string(id)
	}
	return message
}
