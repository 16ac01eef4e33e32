package dataaccess

import (
	"context"
	"errors"

	"github.com/anlik-eleman/backend/internal/client"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

const (
	defaultTestimonialCount = 3
	recentUsersCount        = 10
)

// ApplyToJob submits row. Applying twice to the same posting fails with MsgAlreadyApplied.
func (f *Facade) ApplyToJob(ctx context.Context, row models.ApplicationInsert) (*models.Application, error) {
	var application models.Application
	err := f.client.From(TableApplications).Insert(ctx, row, &application)
	if err == nil {
		return &application, nil
	}
	fallback := i18n.MsgApplyFailed
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeUniqueViolation {
		fallback = i18n.MsgAlreadyApplied
	}
	return nil, f.fail(opApplyToJob, err, fallback, zap.String("job_id", row.JobID))
}

// ListApplications returns the applications the caller may see, newest first.
func (f *Facade) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	query := f.client.From(TableApplications)
	if filter.JobID != "" {
		query = query.Eq("job_id", filter.JobID)
	}
	if filter.ApplicantID != "" {
		query = query.Eq("applicant_id", filter.ApplicantID)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := max(filter.Offset, 0)
	applications := []models.Application{}
	err := query.Order("applied_at", false).Range(offset, offset+limit-1).Select(ctx, &applications)
	if err != nil {
		return nil, f.fail(opListApplications, err, i18n.MsgApplicationsLoadFailed)
	}
	return applications, nil
}

// UpdateApplication applies update. A status change stamps the review time unless one is given.
func (f *Facade) UpdateApplication(ctx context.Context, id string, update models.ApplicationUpdate) (*models.Application, error) {
	if update.Status != nil && update.ReviewedAt == nil {
		reviewedAt := f.clock().UTC()
		update.ReviewedAt = &reviewedAt
	}
	var application models.Application
	if err := f.client.From(TableApplications).Eq("id", id).Update(ctx, update, &application); err != nil {
		return nil, f.fail(opUpdateApplication, err, i18n.MsgApplicationUpdateFailed, zap.String("application_id", id))
	}
	return &application, nil
}

// ReviewApplication records the employer's decision and notifies the applicant. A failed
// notification is logged but does not undo the decision.
func (f *Facade) ReviewApplication(ctx context.Context, id string, status models.ApplicationStatus, notes *string) (*models.Application, error) {
	application, err := f.UpdateApplication(ctx, id, models.ApplicationUpdate{Status: &status, EmployerNotes: notes})
	if err != nil {
		return nil, err
	}
	title := application.JobID
	if posting, err := f.GetJobPosting(ctx, application.JobID); err == nil {
		title = posting.Title
	}
	message := f.translator.Tf(i18n.MsgApplicationStatusBody, map[string]any{
		"Title":  title,
		"Status": string(status),
	})
	notice := models.NotificationInsert{
		UserID:  application.ApplicantID,
		Type:    models.NotificationApplication,
		Title:   f.translator.T(i18n.MsgApplicationStatusTitle),
		Message: message,
	}
	if err := f.CreateNotification(ctx, notice); err != nil {
		f.logger.Debug("applicant not notified", zap.String("application_id", id))
	}
	return application, nil
}

// ListReviews returns the public reviews of revieweeID, newest first.
func (f *Facade) ListReviews(ctx context.Context, revieweeID string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := f.client.From(TableReviews).
		Eq("reviewee_id", revieweeID).
		Eq("is_public", true).
		Order("created_at", false).
		Select(ctx, &reviews)
	if err != nil {
		return nil, f.fail(opListReviews, err, i18n.MsgReviewsLoadFailed, zap.String("reviewee_id", revieweeID))
	}
	return reviews, nil
}

// ListTestimonials returns the best rated public reviews.
func (f *Facade) ListTestimonials(ctx context.Context, limit int) ([]models.Review, error) {
	if limit <= 0 {
		limit = defaultTestimonialCount
	}
	reviews := []models.Review{}
	err := f.client.From(TableReviews).
		Eq("is_public", true).
		Order("rating", false).
		Order("created_at", false).
		Limit(limit).
		Select(ctx, &reviews)
	if err != nil {
		return nil, f.fail(opListTestimonials, err, i18n.MsgTestimonialsFailed)
	}
	return reviews, nil
}

func (f *Facade) CreateReview(ctx context.Context, row models.ReviewInsert) (*models.Review, error) {
	if row.Rating < models.MinRating || row.Rating > models.MaxRating {
		return nil, NewValidationError(f.translator.Tf(i18n.MsgRatingOutOfRange, map[string]any{
			"Min": models.MinRating,
			"Max": models.MaxRating,
		}))
	}
	var review models.Review
	if err := f.client.From(TableReviews).Insert(ctx, row, &review); err != nil {
		return nil, f.fail(opCreateReview, err, i18n.MsgReviewCreateFailed, zap.String("reviewee_id", row.RevieweeID))
	}
	return &review, nil
}

// CreateNotification addresses a notification to row.UserID, who need not be the caller.
func (f *Facade) CreateNotification(ctx context.Context, row models.NotificationInsert) error {
	if row.Type == "" {
		row.Type = models.NotificationSystem
	}
	if err := f.client.From(TableNotifications).Insert(ctx, row, nil); err != nil {
		return f.fail(opCreateNotification, err, i18n.MsgNotificationCreateFailed, zap.String("user_id", row.UserID))
	}
	return nil
}

// PlatformStats counts users, employers, active postings and companies.
func (f *Facade) PlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	counts := []struct {
		query *client.Query
		dest  *int
	}{
		{f.client.From(TableProfiles), &stats.TotalUsers},
		{f.client.From(TableProfiles).Eq("user_type", models.UserTypeEmployer), &stats.TotalEmployers},
		{f.client.From(TableJobPostings).Eq("status", models.JobStatusActive), &stats.ActiveJobs},
		{f.client.From(TableCompanies), &stats.TotalCompanies},
	}
	for _, count := range counts {
		total, err := countRows(ctx, count.query)
		if err != nil {
			return nil, f.fail(opPlatformStats, err, i18n.MsgStatsLoadFailed)
		}
		*count.dest = total
	}
	return &stats, nil
}

// EmployerDashboard gathers every posting of employerID and the applications they received.
func (f *Facade) EmployerDashboard(ctx context.Context, employerID string) (*models.EmployerDashboard, error) {
	dashboard := models.EmployerDashboard{JobPostings: []models.JobPosting{}}
	err := f.client.From(TableJobPostings).
		Eq("employer_id", employerID).
		Order("created_at", false).
		Select(ctx, &dashboard.JobPostings)
	if err != nil {
		return nil, f.fail(opEmployerDashboard, err, i18n.MsgEmployerDashboardFailed, zap.String("employer_id", employerID))
	}
	dashboard.TotalJobs = len(dashboard.JobPostings)
	if dashboard.TotalJobs == 0 {
		return &dashboard, nil
	}
	ids := make([]any, 0, dashboard.TotalJobs)
	for _, posting := range dashboard.JobPostings {
		ids = append(ids, posting.ID)
		if posting.Status == models.JobStatusActive {
			dashboard.ActiveJobs++
		}
	}
	total, err := countRows(ctx, f.client.From(TableApplications).In("job_id", ids...))
	if err != nil {
		return nil, f.fail(opEmployerDashboard, err, i18n.MsgEmployerDashboardFailed, zap.String("employer_id", employerID))
	}
	dashboard.TotalApplications = total
	return &dashboard, nil
}

// AdminDashboard lists pending postings, the newest users and employers awaiting approval.
func (f *Facade) AdminDashboard(ctx context.Context) (*models.AdminDashboard, error) {
	dashboard := models.AdminDashboard{
		PendingJobs:      []models.JobPosting{},
		RecentUsers:      []models.Profile{},
		PendingEmployers: []models.Profile{},
	}
	steps := []func() error{
		func() error {
			return f.client.From(TableJobPostings).
				Eq("status", models.JobStatusPending).
				Order("created_at", false).
				Select(ctx, &dashboard.PendingJobs)
		},
		func() error {
			return f.client.From(TableProfiles).
				Order("created_at", false).
				Limit(recentUsersCount).
				Select(ctx, &dashboard.RecentUsers)
		},
		func() error {
			return f.client.From(TableProfiles).
				Eq("user_type", models.UserTypeEmployer).
				Eq("is_approved", false).
				Order("created_at", true).
				Select(ctx, &dashboard.PendingEmployers)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, f.fail(opAdminDashboard, err, i18n.MsgAdminDashboardFailed)
		}
	}
	return &dashboard, nil
}

func countRows(ctx context.Context, query *client.Query) (int, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	if err := query.Columns("id").Select(ctx, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
