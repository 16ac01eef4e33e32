// Package dataaccess wraps the platform client in typed requests with localized failures.
package dataaccess

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anlik-eleman/backend/internal/client"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

const (
	TableProfiles      = "profiles"
	TableCompanies     = "companies"
	TableJobCategories = "job_categories"
	TableJobPostings   = "job_postings"
	TableSavedJobs     = "saved_jobs"
	TableNotifications = "notifications"
	TableApplications  = "applications"
	TableReviews       = "reviews"

	defaultPageSize         = 20
	defaultNotificationPage = 50
	codeUniqueViolation     = "23505"
)

const (
	opGetSession           = "dataaccess.get_session"
	opGetCurrentIdentity   = "dataaccess.get_current_identity"
	opSignUpIdentity       = "dataaccess.sign_up_identity"
	opSignInIdentity       = "dataaccess.sign_in_identity"
	opSignOutIdentity      = "dataaccess.sign_out_identity"
	opGetProfileByID       = "dataaccess.get_profile_by_id"
	opInsertProfile        = "dataaccess.insert_profile"
	opUpdateProfile        = "dataaccess.update_profile"
	opCompanyExists        = "dataaccess.company_exists_for_owner"
	opInsertCompany        = "dataaccess.insert_company"
	opListCompanies        = "dataaccess.list_companies"
	opUpdateCompany        = "dataaccess.update_company"
	opListJobCategories    = "dataaccess.list_job_categories"
	opListJobPostings      = "dataaccess.list_job_postings"
	opGetJobPosting        = "dataaccess.get_job_posting"
	opInsertJobPosting     = "dataaccess.insert_job_posting"
	opDeleteJobPosting     = "dataaccess.delete_job_posting"
	opSaveJob              = "dataaccess.save_job"
	opUnsaveJob            = "dataaccess.unsave_job"
	opListSavedJobs        = "dataaccess.list_saved_jobs"
	opListNotifications    = "dataaccess.list_notifications"
	opMarkNotificationRead = "dataaccess.mark_notifications_read"
	opUnreadCount          = "dataaccess.unread_notification_count"
	opSetProfileApproval   = "dataaccess.set_profile_approval"
	opApplyToJob           = "dataaccess.apply_to_job"
	opListApplications     = "dataaccess.list_applications"
	opUpdateApplication    = "dataaccess.update_application"
	opListReviews          = "dataaccess.list_reviews"
	opListTestimonials     = "dataaccess.list_testimonials"
	opCreateReview         = "dataaccess.create_review"
	opCreateNotification   = "dataaccess.create_notification"
	opPlatformStats        = "dataaccess.platform_stats"
	opEmployerDashboard    = "dataaccess.employer_dashboard"
	opAdminDashboard       = "dataaccess.admin_dashboard"
)

var errMissingClient = errors.New("dataaccess: platform client required")

// Config wires the façade.
type Config struct {
	Client     *client.Client
	Translator i18n.Translator
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Facade issues typed platform requests. Every failure is returned as *Error.
type Facade struct {
	client     *client.Client
	translator i18n.Translator
	logger     *zap.Logger
	clock      func() time.Time
}

func New(cfg Config) (*Facade, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Facade{
		client:     cfg.Client,
		translator: cfg.Translator,
		logger:     logger,
		clock:      clock,
	}, nil
}

// Translator exposes the locale the façade renders messages in.
func (f *Facade) Translator() i18n.Translator {
	return f.translator
}

func (f *Facade) GetSession(ctx context.Context) (*models.Session, error) {
	session, err := f.client.GetSession(ctx)
	if err != nil {
		return nil, f.fail(opGetSession, err, i18n.MsgSessionLoadFailed)
	}
	return session, nil
}

func (f *Facade) GetCurrentIdentity(ctx context.Context) (*models.Identity, error) {
	identity, err := f.client.GetUser(ctx)
	if err != nil {
		return nil, f.fail(opGetCurrentIdentity, err, i18n.MsgUserSessionMissing)
	}
	return identity, nil
}

func (f *Facade) OnAuthStateChange(ctx context.Context) (<-chan models.AuthEvent, func()) {
	return f.client.OnAuthStateChange(ctx)
}

func (f *Facade) SignUpIdentity(ctx context.Context, email, password string, attrs models.SignUpAttributes) (*models.Identity, error) {
	if err := f.validateCredentials(email, password); err != nil {
		return nil, err
	}
	identity, _, err := f.client.SignUp(ctx, email, password, attrs.Metadata())
	if err != nil {
		return nil, f.fail(opSignUpIdentity, err, i18n.MsgSignUpFailed)
	}
	return identity, nil
}

func (f *Facade) SignInIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := f.validateCredentials(email, password); err != nil {
		return nil, err
	}
	session, err := f.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, f.fail(opSignInIdentity, err, i18n.MsgSignInFailed)
	}
	identity := session.User
	return &identity, nil
}

func (f *Facade) SignOutIdentity(ctx context.Context) error {
	if err := f.client.SignOut(ctx); err != nil {
		return f.fail(opSignOutIdentity, err, i18n.MsgSignOutFailed)
	}
	return nil
}

// GetProfileByID fetches one profile. A missing row fails with Code CodeNoRows.
func (f *Facade) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := f.client.From(TableProfiles).Eq("id", id).Single(ctx, &profile); err != nil {
		classified := f.classify(err, i18n.MsgProfileLoadFailed)
		if classified.Kind != KindNotFound {
			f.logError(opGetProfileByID, classified, zap.String("profile_id", id))
		}
		return nil, classified
	}
	return &profile, nil
}

func (f *Facade) InsertProfile(ctx context.Context, row models.ProfileInsert) (*models.Profile, error) {
	var profile models.Profile
	if err := f.client.From(TableProfiles).Insert(ctx, row, &profile); err != nil {
		classified := f.classify(err, i18n.MsgProfileCreateError)
		if classified.Kind == KindService || classified.Kind == KindUnknown || classified.Kind == KindNotFound {
			classified.Kind = KindService
			classified.Message = f.translator.Tf(i18n.MsgProfileCreateFailed, map[string]any{"Detail": detail(err, f.translator)})
		}
		f.logError(opInsertProfile, classified, zap.String("profile_id", row.ID))
		return nil, classified
	}
	return &profile, nil
}

func (f *Facade) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	var profile models.Profile
	if err := f.client.From(TableProfiles).Eq("id", id).Update(ctx, update, &profile); err != nil {
		return nil, f.fail(opUpdateProfile, err, i18n.MsgProfileUpdateFailed, zap.String("profile_id", id))
	}
	return &profile, nil
}

// CompanyExistsForOwner counts at most one company row owned by ownerID.
func (f *Facade) CompanyExistsForOwner(ctx context.Context, ownerID string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	if err := f.client.From(TableCompanies).Columns("id").Eq("owner_id", ownerID).Limit(1).Select(ctx, &rows); err != nil {
		return false, f.fail(opCompanyExists, err, i18n.MsgCompanyCheckFailed, zap.String("owner_id", ownerID))
	}
	return len(rows) > 0, nil
}

func (f *Facade) InsertCompany(ctx context.Context, row models.CompanyInsert) (*models.Company, error) {
	var company models.Company
	if err := f.client.From(TableCompanies).Insert(ctx, row, &company); err != nil {
		return nil, f.fail(opInsertCompany, err, i18n.MsgCompanyCreateFailed, zap.String("owner_id", row.OwnerID))
	}
	return &company, nil
}

// ListCompanies returns the companies of ownerID, or every company when ownerID is empty.
func (f *Facade) ListCompanies(ctx context.Context, ownerID string) ([]models.Company, error) {
	query := f.client.From(TableCompanies).Order("created_at", false)
	if ownerID != "" {
		query = query.Eq("owner_id", ownerID)
	}
	companies := []models.Company{}
	if err := query.Select(ctx, &companies); err != nil {
		return nil, f.fail(opListCompanies, err, i18n.MsgCompaniesLoadFailed)
	}
	return companies, nil
}

func (f *Facade) UpdateCompany(ctx context.Context, id string, update models.CompanyUpdate) (*models.Company, error) {
	var company models.Company
	if err := f.client.From(TableCompanies).Eq("id", id).Update(ctx, update, &company); err != nil {
		return nil, f.fail(opUpdateCompany, err, i18n.MsgCompanyUpdateFailed, zap.String("company_id", id))
	}
	return &company, nil
}

func (f *Facade) ListJobCategories(ctx context.Context) ([]models.JobCategory, error) {
	categories := []models.JobCategory{}
	err := f.client.From(TableJobCategories).
		Eq("is_active", true).
		Order("sort_order", true).
		Select(ctx, &categories)
	if err != nil {
		return nil, f.fail(opListJobCategories, err, i18n.MsgCategoriesLoadFailed)
	}
	return categories, nil
}

// ListJobPostings returns active postings, newest first.
func (f *Facade) ListJobPostings(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, error) {
	query := f.client.From(TableJobPostings).Eq("status", models.JobStatusActive)
	if filter.CategoryID != "" {
		query = query.Eq("category_id", filter.CategoryID)
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		query = query.Eq("city", city)
	}
	if filter.JobType != "" {
		query = query.Eq("job_type", filter.JobType)
	}
	if filter.RemoteOnly {
		query = query.Eq("is_remote", true)
	}
	if filter.SalaryMin > 0 {
		query = query.Gte("salary_min", filter.SalaryMin)
	}
	if filter.SalaryMax > 0 {
		query = query.Lte("salary_max", filter.SalaryMax)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	postings := []models.JobPosting{}
	err := query.Order("created_at", false).Range(offset, offset+limit-1).Select(ctx, &postings)
	if err != nil {
		return nil, f.fail(opListJobPostings, err, i18n.MsgJobsLoadFailed)
	}
	return postings, nil
}

func (f *Facade) GetJobPosting(ctx context.Context, id string) (*models.JobPosting, error) {
	var posting models.JobPosting
	if err := f.client.From(TableJobPostings).Eq("id", id).Single(ctx, &posting); err != nil {
		classified := f.classify(err, i18n.MsgJobNotFound)
		if classified.Kind != KindNotFound {
			classified.Message = f.translator.T(i18n.MsgJobsLoadFailed)
			f.logError(opGetJobPosting, classified, zap.String("job_id", id))
		}
		return nil, classified
	}
	return &posting, nil
}

func (f *Facade) InsertJobPosting(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error) {
	var stored models.JobPosting
	if err := f.client.From(TableJobPostings).Insert(ctx, posting, &stored); err != nil {
		return nil, f.fail(opInsertJobPosting, err, i18n.MsgJobCreateFailed, zap.String("employer_id", posting.EmployerID))
	}
	return &stored, nil
}

func (f *Facade) DeleteJobPosting(ctx context.Context, id string) error {
	if err := f.client.From(TableJobPostings).Eq("id", id).Delete(ctx); err != nil {
		return f.fail(opDeleteJobPosting, err, i18n.MsgJobDeleteFailed, zap.String("job_id", id))
	}
	return nil
}

// SaveJob bookmarks jobID for userID. Saving an already saved job returns the existing bookmark.
func (f *Facade) SaveJob(ctx context.Context, userID, jobID string) (*models.SavedJob, error) {
	var saved models.SavedJob
	err := f.client.From(TableSavedJobs).Insert(ctx, models.SavedJob{UserID: userID, JobID: jobID}, &saved)
	if err == nil {
		return &saved, nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeUniqueViolation {
		lookupErr := f.client.From(TableSavedJobs).Eq("user_id", userID).Eq("job_id", jobID).Single(ctx, &saved)
		if lookupErr == nil {
			return &saved, nil
		}
		err = lookupErr
	}
	return nil, f.fail(opSaveJob, err, i18n.MsgJobSaveFailed, zap.String("job_id", jobID))
}

func (f *Facade) UnsaveJob(ctx context.Context, userID, jobID string) error {
	if err := f.client.From(TableSavedJobs).Eq("user_id", userID).Eq("job_id", jobID).Delete(ctx); err != nil {
		return f.fail(opUnsaveJob, err, i18n.MsgJobUnsaveFailed, zap.String("job_id", jobID))
	}
	return nil
}

func (f *Facade) ListSavedJobs(ctx context.Context, userID string) ([]models.SavedJob, error) {
	saved := []models.SavedJob{}
	if err := f.client.From(TableSavedJobs).Eq("user_id", userID).Order("created_at", false).Select(ctx, &saved); err != nil {
		return nil, f.fail(opListSavedJobs, err, i18n.MsgSavedJobsLoadFailed)
	}
	return saved, nil
}

func (f *Facade) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	notifications := []models.Notification{}
	err := f.client.From(TableNotifications).
		Eq("user_id", userID).
		Order("created_at", false).
		Limit(limit).
		Select(ctx, &notifications)
	if err != nil {
		return nil, f.fail(opListNotifications, err, i18n.MsgNotificationsFailed)
	}
	return notifications, nil
}

// MarkNotificationsRead marks ids as read, or every unread notification of userID when ids is empty.
func (f *Facade) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	query := f.client.From(TableNotifications).Eq("user_id", userID)
	if len(ids) > 0 {
		values := make([]any, 0, len(ids))
		for _, id := range ids {
			values = append(values, id)
		}
		query = query.In("id", values...)
	} else {
		query = query.Eq("is_read", false)
	}
	if err := query.Update(ctx, map[string]any{"is_read": true}, nil); err != nil {
		return f.fail(opMarkNotificationRead, err, i18n.MsgNotificationsMarkErr)
	}
	return nil
}

func (f *Facade) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	count, err := countRows(ctx, f.client.From(TableNotifications).Eq("user_id", userID).Eq("is_read", false))
	if err != nil {
		return 0, f.fail(opUnreadCount, err, i18n.MsgNotificationsFailed)
	}
	return count, nil
}

// SetProfileApproval is the back-office switch for employer approval.
func (f *Facade) SetProfileApproval(ctx context.Context, profileID string, approved bool) (*models.Profile, error) {
	var profile models.Profile
	err := f.client.From(TableProfiles).Eq("id", profileID).Update(ctx, map[string]any{"is_approved": approved}, &profile)
	if err != nil {
		return nil, f.fail(opSetProfileApproval, err, i18n.MsgApprovalFailed, zap.String("profile_id", profileID))
	}
	return &profile, nil
}

func (f *Facade) validateCredentials(email, password string) *Error {
	if strings.TrimSpace(email) == "" {
		return NewValidationError(f.translator.T(i18n.MsgEmailRequired))
	}
	if password == "" {
		return NewValidationError(f.translator.T(i18n.MsgPasswordRequired))
	}
	return nil
}

func (f *Facade) fail(operation string, err error, fallback i18n.MessageID, fields ...zap.Field) *Error {
	classified := f.classify(err, fallback)
	f.logError(operation, classified, fields...)
	return classified
}

func (f *Facade) logError(operation string, err *Error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", string(err.Kind)),
	}
	if err.Code != "" {
		attrs = append(attrs, zap.String("code", err.Code))
	}
	if err.Cause != nil {
		attrs = append(attrs, zap.Error(err.Cause))
	}
	attrs = append(attrs, fields...)
	f.logger.Warn("platform request failed", attrs...)
}
